package types

import "errors"

var (
	ErrInvalidEndpoint      = errors.New("invalid endpoint")
	ErrSessionStartFailed   = errors.New("session start failed")
	ErrOutOfRangeSeqNum     = errors.New("sequence number out of range")
	ErrInvalidMessageSyntax = errors.New("invalid message syntax")

	// ErrNotConnected is returned for sends attempted outside StateConnected.
	ErrNotConnected = errors.New("not connected")
	// ErrNoSession is returned by engine operations when no session handle is bound.
	ErrNoSession = errors.New("no active session")

	ErrDispatchAbandoned = errors.New("dispatch abandoned")
	ErrMaxAttempts       = errors.New("dispatch attempts exhausted")
)
