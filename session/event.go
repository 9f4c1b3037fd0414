package session

import (
	"time"

	"github.com/samaelod/fixdesk/types"
)

type EventKind int

const (
	EventLogon EventKind = iota
	EventLogout
	EventInbound
	EventOutbound
	EventSequence
)

func (k EventKind) String() string {
	switch k {
	case EventLogon:
		return "logon"
	case EventLogout:
		return "logout"
	case EventInbound:
		return "inbound"
	case EventOutbound:
		return "outbound"
	case EventSequence:
		return "sequence"
	}
	return "unknown"
}

// Event is a Role's translation of one engine callback.
type Event struct {
	Kind     EventKind
	At       time.Time
	Raw      string             // EventInbound, EventOutbound
	Sequence types.SequencePair // EventSequence
}
