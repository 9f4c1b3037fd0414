// Package pcapreader imports FIX traffic from pcap and pcapng captures.
package pcapreader

import (
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/types"
)

type packetSource interface {
	LinkType() layers.LinkType
	ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error)
	Close()
}

func detectFormat(path string) (format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Read first 8 bytes to check magic
	header := make([]byte, 8)
	n, err := file.Read(header)
	if err != nil || n < 4 {
		return "pcap", nil // Default to pcap
	}

	// PCAPNG starts with a Section Header Block, 0x0A0D0D0A
	magic := uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16 | uint32(header[3])<<24
	if magic == 0x0A0D0D0A {
		return "pcapng", nil
	}

	return "pcap", nil
}

func openPacketSource(path string) (packetSource, error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	if format == "pcapng" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		reader, err := pcapgo.NewNgReader(file, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			file.Close()
			return nil, err
		}
		return &pcapngSource{reader: reader, file: file}, nil
	}

	// Classic pcap
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, err
	}
	return &pcapSource{handle: handle}, nil
}

type pcapSource struct {
	handle *pcap.Handle
}

func (p *pcapSource) LinkType() layers.LinkType {
	return p.handle.LinkType()
}

func (p *pcapSource) ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error) {
	return p.handle.ReadPacketData()
}

func (p *pcapSource) Close() { p.handle.Close() }

type pcapngSource struct {
	reader *pcapgo.NgReader
	file   *os.File
}

func (p *pcapngSource) LinkType() layers.LinkType {
	return p.reader.LinkType()
}

func (p *pcapngSource) ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error) {
	return p.reader.ReadPacketData()
}

func (p *pcapngSource) Close() { p.file.Close() }

// flow is one direction of one TCP connection.
type flow struct {
	buf  []byte
	next uint32
	seen bool
}

// accept returns the part of payload not already seen on the flow. A gap
// drops the partial frame being assembled.
func (f *flow) accept(seq uint32, payload []byte) []byte {
	if f.seen {
		switch d := int32(seq - f.next); {
		case d < 0:
			overlap := int(-d)
			if overlap >= len(payload) {
				return nil
			}
			payload = payload[overlap:]
			seq = f.next
		case d > 0:
			f.buf = nil
		}
	}
	f.seen = true
	f.next = seq + uint32(len(payload))
	return payload
}

// Options tune ReadPCAP.
type Options struct {
	// LocalPort marks frames sent to it as Inbound. Zero means the
	// destination port of the first FIX frame in the capture.
	LocalPort int
	Logger    *zap.Logger
}

// ReadPCAP reassembles each TCP flow in the capture and decodes every
// complete FIX frame, stamped with the capture time of the segment that
// completed it.
func ReadPCAP(path string, opts Options) ([]types.DecodedMessage, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("pcap")

	source, err := openPacketSource(path)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	flows := make(map[string]*flow)
	localPort := opts.LocalPort
	var msgs []types.DecodedMessage
	packets := 0

	packetSrc := gopacket.NewPacketSource(source, source.LinkType())
	for packet := range packetSrc.Packets() {
		packets++

		net := packet.NetworkLayer()
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if net == nil || tcpLayer == nil {
			continue
		}
		tcp := tcpLayer.(*layers.TCP)
		if len(tcp.Payload) == 0 {
			continue
		}

		key := net.NetworkFlow().String() + "|" + tcp.TransportFlow().String()
		f, ok := flows[key]
		if !ok {
			f = &flow{}
			flows[key] = f
		}

		payload := f.accept(tcp.Seq, tcp.Payload)
		if len(payload) == 0 {
			continue
		}
		f.buf = append(f.buf, payload...)

		frames, rest := codec.SplitStream(f.buf)
		f.buf = append([]byte(nil), rest...)
		if len(frames) == 0 {
			continue
		}

		if localPort == 0 {
			localPort = int(tcp.DstPort)
			log.Debug("local port taken from first frame", zap.Int("port", localPort))
		}
		dir := types.Outbound
		if int(tcp.DstPort) == localPort {
			dir = types.Inbound
		}

		ts := packet.Metadata().Timestamp
		for _, frame := range frames {
			msgs = append(msgs, codec.Decode(string(frame), dir, ts))
		}
	}

	log.Info("capture read", zap.String("path", path), zap.Int("packets", packets), zap.Int("flows", len(flows)), zap.Int("messages", len(msgs)))
	return msgs, nil
}
