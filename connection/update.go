package connection

import "github.com/samaelod/fixdesk/types"

type UpdateKind int

const (
	UpdateState UpdateKind = iota
	UpdateSequence
	UpdateMessage
	UpdatePending
	UpdateCleared
	UpdateError
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateState:
		return "state"
	case UpdateSequence:
		return "sequence"
	case UpdateMessage:
		return "message"
	case UpdatePending:
		return "pending"
	case UpdateCleared:
		return "cleared"
	case UpdateError:
		return "error"
	}
	return "unknown"
}

// Update is a UI-facing change notification. Only the field matching Kind is set.
type Update struct {
	Kind     UpdateKind
	State    types.ConnectionState
	Sequence types.SequencePair
	Message  types.DecodedMessage
	Pending  int
	Err      error
}
