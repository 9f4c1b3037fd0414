package codec

import "bytes"

var (
	beginField    = []byte("8=")
	checksumField = []byte(SOH + "10=")
	soh           = []byte(SOH)
)

// SplitStream cuts complete FIX frames (8=... through 10=NNN<SOH>) out of a
// TCP byte stream. Bytes before the first BeginString are discarded; an
// incomplete trailing frame is returned as rest for the next call.
func SplitStream(buf []byte) (frames [][]byte, rest []byte) {
	for {
		start := frameStart(buf)
		if start < 0 {
			if n := len(buf); n > 0 && buf[n-1] == beginField[0] {
				return frames, buf[n-1:]
			}
			return frames, nil
		}
		buf = buf[start:]

		cs := bytes.Index(buf, checksumField)
		if cs < 0 {
			return frames, buf
		}
		end := bytes.Index(buf[cs+len(checksumField):], soh)
		if end < 0 {
			return frames, buf
		}
		end += cs + len(checksumField) + 1

		frame := make([]byte, end)
		copy(frame, buf[:end])
		frames = append(frames, frame)
		buf = buf[end:]
	}
}

// frameStart finds "8=" at the start of a field.
func frameStart(buf []byte) int {
	off := 0
	for {
		i := bytes.Index(buf[off:], beginField)
		if i < 0 {
			return -1
		}
		i += off
		if i == 0 || buf[i-1] == soh[0] {
			return i
		}
		off = i + 1
	}
}
