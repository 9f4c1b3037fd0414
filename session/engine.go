package session

import "github.com/samaelod/fixdesk/types"

// Handle identifies one engine session. It is only valid between the logon
// and logout callbacks that carry it.
type Handle string

// Settings is everything the engine needs to open one session.
type Settings struct {
	Role              types.Role
	Host              string
	Port              int
	SenderCompID      string
	TargetCompID      string
	BeginString       string
	DefaultApplVerID  string
	HeartBtInt        int // seconds
	ReconnectInterval int // seconds, initiator only
	LogoutTimeout     int // seconds
	ResetOnLogon      bool
	ResetOnDisconnect bool
}

// Handler receives engine callbacks. Engines call it from their own
// goroutines.
type Handler interface {
	OnSessionCreated(h Handle)
	OnLogon(h Handle)
	OnLogout(h Handle)
	OnAdminIn(raw string, h Handle)
	OnAdminOut(raw string, h Handle)
	OnAppIn(raw string, h Handle)
	OnAppOut(raw string, h Handle)
}

// Engine is the FIX protocol engine: framing, admin messages, persistence
// and socket transport all live behind it.
type Engine interface {
	// Start begins listening or connecting and returns once the transport is
	// up. Bind and configuration errors are returned here.
	Start(s Settings, h Handler) error
	Stop()
	// Send is a single attempt; false means no such session or a rejected send.
	Send(raw string, h Handle) bool
	SequenceNumbers(h Handle) (types.SequencePair, error)
	ResetSequenceNumbers(h Handle) error
	SetSequenceNumbers(h Handle, p types.SequencePair) error
}

// EngineFactory builds a fresh engine for each connection attempt.
type EngineFactory func() Engine
