package types

import (
	"fmt"
	"strings"
	"time"
)

// Role is the side of the TCP handshake the session takes.
type Role int

const (
	RoleInitiator Role = iota
	RoleAcceptor
)

func (r Role) String() string {
	switch r {
	case RoleAcceptor:
		return "acceptor"
	case RoleInitiator:
		return "initiator"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole accepts "acceptor"/"server" and "initiator"/"client", case-insensitive.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "acceptor", "server":
		return RoleAcceptor, nil
	case "initiator", "client", "":
		return RoleInitiator, nil
	}
	return RoleInitiator, fmt.Errorf("%w: unknown role %q", ErrInvalidEndpoint, s)
}

const maxPort = 65535

// SessionEndpoint is the connect-time configuration of one session.
// It is passed by value and never modified once a connect is requested.
type SessionEndpoint struct {
	Host     string
	Port     int
	SenderID string
	TargetID string
	Role     Role
}

// Validate reports ErrInvalidEndpoint when a field is missing or the port is out of range.
func (e SessionEndpoint) Validate() error {
	switch {
	case strings.TrimSpace(e.Host) == "":
		return fmt.Errorf("%w: host is required", ErrInvalidEndpoint)
	case e.Port <= 0 || e.Port > maxPort:
		return fmt.Errorf("%w: port %d out of range (1-%d)", ErrInvalidEndpoint, e.Port, maxPort)
	case strings.TrimSpace(e.SenderID) == "":
		return fmt.Errorf("%w: sender id is required", ErrInvalidEndpoint)
	case strings.TrimSpace(e.TargetID) == "":
		return fmt.Errorf("%w: target id is required", ErrInvalidEndpoint)
	case e.Role != RoleAcceptor && e.Role != RoleInitiator:
		return fmt.Errorf("%w: %s", ErrInvalidEndpoint, e.Role)
	}
	return nil
}

func (e SessionEndpoint) String() string {
	return fmt.Sprintf("%s %s->%s@%s:%d", e.Role, e.SenderID, e.TargetID, e.Host, e.Port)
}

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// ActionLabel is the text of the connect toggle for the state.
func (s ConnectionState) ActionLabel() string {
	switch s {
	case StateConnected:
		return "Disconnect"
	case StateConnecting:
		return "Connecting..."
	default:
		return "Connect"
	}
}

const (
	MinSeqNum uint64 = 1
	MaxSeqNum uint64 = 999999
)

// SequencePair holds the next expected inbound and outbound sequence numbers.
type SequencePair struct {
	Inbound  uint64
	Outbound uint64
}

// InitialSequence is the pair every fresh or reset session starts from.
var InitialSequence = SequencePair{Inbound: 1, Outbound: 1}

// CheckOverride validates a user supplied pair against [MinSeqNum, MaxSeqNum].
func (p SequencePair) CheckOverride() error {
	if p.Inbound < MinSeqNum || p.Inbound > MaxSeqNum {
		return fmt.Errorf("%w: inbound %d not in [%d, %d]", ErrOutOfRangeSeqNum, p.Inbound, MinSeqNum, MaxSeqNum)
	}
	if p.Outbound < MinSeqNum || p.Outbound > MaxSeqNum {
		return fmt.Errorf("%w: outbound %d not in [%d, %d]", ErrOutOfRangeSeqNum, p.Outbound, MinSeqNum, MaxSeqNum)
	}
	return nil
}

func (p SequencePair) String() string {
	return fmt.Sprintf("in=%d out=%d", p.Inbound, p.Outbound)
}

type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "Outbound"
	}
	return "Inbound"
}

// Arrow is the one-rune marker used in lists.
func (d Direction) Arrow() string {
	if d == Outbound {
		return "→"
	}
	return "←"
}

type DecodedField struct {
	Tag         string
	Name        string
	Value       string
	Description string
}

// DecodedMessage is created once per message event and never mutated afterwards.
type DecodedMessage struct {
	ID          string
	Timestamp   time.Time
	Direction   Direction
	MsgType     string
	RawText     string
	Description string
	Fields      []DecodedField
}

// Field returns the first field with the given tag.
func (m DecodedMessage) Field(tag string) (DecodedField, bool) {
	for _, f := range m.Fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return DecodedField{}, false
}
