// Package engine runs FIX sessions on quickfixgo and exposes them through
// session.Engine.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/session"
	"github.com/samaelod/fixdesk/types"
)

var errAlreadyStarted = errors.New("engine already started")

// Engine is a single acceptor or initiator. It is started once.
type Engine struct {
	mu       sync.Mutex
	started  bool
	handler  session.Handler
	sessions map[session.Handle]quickfix.SessionID
	log      *zap.Logger

	acceptor  *quickfix.Acceptor
	initiator *quickfix.Initiator
}

// New returns an unstarted engine that logs to log.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		sessions: make(map[session.Handle]quickfix.SessionID),
		log:      log.Named("quickfix"),
	}
}

// Factory builds a fresh Engine per connection attempt.
func Factory(log *zap.Logger) session.EngineFactory {
	return func() session.Engine { return New(log) }
}

func (e *Engine) Start(s session.Settings, h session.Handler) error {
	settings, err := buildSettings(s)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errAlreadyStarted
	}
	e.started = true
	e.handler = h
	e.mu.Unlock()

	// quickfix calls OnCreate from inside the constructors, so e.mu must not
	// be held past this point.
	logs := newLogFactory(e.log)
	stores := quickfix.NewMemoryStoreFactory()
	app := &application{engine: e}

	switch s.Role {
	case types.RoleAcceptor:
		a, err := quickfix.NewAcceptor(app, stores, settings, logs)
		if err != nil {
			return fmt.Errorf("create acceptor: %w", err)
		}
		if err := a.Start(); err != nil {
			e.unregister(settings)
			return fmt.Errorf("start acceptor on port %d: %w", s.Port, err)
		}
		e.mu.Lock()
		e.acceptor = a
		e.mu.Unlock()
	default:
		i, err := quickfix.NewInitiator(app, stores, settings, logs)
		if err != nil {
			return fmt.Errorf("create initiator: %w", err)
		}
		if err := i.Start(); err != nil {
			e.unregister(settings)
			return fmt.Errorf("start initiator to %s:%d: %w", s.Host, s.Port, err)
		}
		e.mu.Lock()
		e.initiator = i
		e.mu.Unlock()
	}

	e.log.Info("engine started", zap.Stringer("role", s.Role), zap.String("host", s.Host), zap.Int("port", s.Port))
	return nil
}

// unregister frees session ids registered by a constructor whose Start
// failed. quickfix keeps them in a process-wide registry and would refuse
// the next attempt with the same comp ids.
func (e *Engine) unregister(settings *quickfix.Settings) {
	for sid := range settings.SessionSettings() {
		if err := quickfix.UnregisterSession(sid); err != nil {
			e.log.Debug("unregister session", zap.String("session", sid.String()), zap.Error(err))
		}
	}
	e.mu.Lock()
	e.sessions = make(map[session.Handle]quickfix.SessionID)
	e.mu.Unlock()
}

// Stop shuts the engine down and blocks until its sessions have logged out
// and left quickfix's registry. Calling it again is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	a, i := e.acceptor, e.initiator
	e.acceptor, e.initiator = nil, nil
	e.mu.Unlock()
	if a == nil && i == nil {
		return
	}

	// quickfix delivers OnLogout during Stop, so the lock must not be held.
	if a != nil {
		a.Stop()
	}
	if i != nil {
		i.Stop()
	}

	e.mu.Lock()
	e.sessions = make(map[session.Handle]quickfix.SessionID)
	e.mu.Unlock()
	e.log.Info("engine stopped")
}

func (e *Engine) lookup(h session.Handle) (quickfix.SessionID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sid, ok := e.sessions[h]
	return sid, ok
}

func (e *Engine) register(sid quickfix.SessionID) session.Handle {
	h := session.Handle(sid.String())
	e.mu.Lock()
	e.sessions[h] = sid
	e.mu.Unlock()
	return h
}

func (e *Engine) currentHandler() session.Handler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler
}

func (e *Engine) sessionID(h session.Handle) (quickfix.SessionID, error) {
	sid, ok := e.lookup(h)
	if !ok {
		return quickfix.SessionID{}, fmt.Errorf("%w: %s", types.ErrNoSession, h)
	}
	return sid, nil
}

func (e *Engine) Send(raw string, h session.Handle) bool {
	sid, ok := e.lookup(h)
	if !ok {
		return false
	}
	msg, err := buildMessage(raw)
	if err != nil {
		e.log.Warn("cannot build message", zap.Error(err))
		return false
	}
	if err := quickfix.SendToTarget(msg, sid); err != nil {
		e.log.Debug("send rejected", zap.String("session", sid.String()), zap.Error(err))
		return false
	}
	return true
}

// SequenceNumbers reads the next expected inbound and outbound numbers.
func (e *Engine) SequenceNumbers(h session.Handle) (types.SequencePair, error) {
	sid, err := e.sessionID(h)
	if err != nil {
		return types.SequencePair{}, err
	}
	in, err := quickfix.GetExpectedTargetNum(sid)
	if err != nil {
		return types.SequencePair{}, fmt.Errorf("%w: %s: %v", types.ErrNoSession, h, err)
	}
	out, err := quickfix.GetExpectedSenderNum(sid)
	if err != nil {
		return types.SequencePair{}, fmt.Errorf("%w: %s: %v", types.ErrNoSession, h, err)
	}
	return types.SequencePair{Inbound: uint64(in), Outbound: uint64(out)}, nil
}

// ResetSequenceNumbers goes through quickfix's session reset, which sends a
// Logout first when the session is logged on.
func (e *Engine) ResetSequenceNumbers(h session.Handle) error {
	sid, err := e.sessionID(h)
	if err != nil {
		return err
	}
	if err := quickfix.ResetSession(sid); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	e.log.Info("sequence numbers reset", zap.String("session", string(h)))
	return nil
}

func (e *Engine) SetSequenceNumbers(h session.Handle, p types.SequencePair) error {
	sid, err := e.sessionID(h)
	if err != nil {
		return err
	}
	if err := quickfix.SetNextTargetMsgSeqNum(sid, int(p.Inbound)); err != nil {
		return fmt.Errorf("set inbound: %w", err)
	}
	if err := quickfix.SetNextSenderMsgSeqNum(sid, int(p.Outbound)); err != nil {
		return fmt.Errorf("set outbound: %w", err)
	}
	e.log.Info("sequence numbers set", zap.String("session", string(h)), zap.Stringer("sequence", p))
	return nil
}

// application adapts quickfix callbacks to session.Handler.
type application struct {
	engine *Engine
}

func (a *application) OnCreate(sid quickfix.SessionID) {
	h := a.engine.register(sid)
	if hd := a.engine.currentHandler(); hd != nil {
		hd.OnSessionCreated(h)
	}
}

func (a *application) OnLogon(sid quickfix.SessionID) {
	h := a.engine.register(sid)
	if hd := a.engine.currentHandler(); hd != nil {
		hd.OnLogon(h)
	}
}

func (a *application) OnLogout(sid quickfix.SessionID) {
	if hd := a.engine.currentHandler(); hd != nil {
		hd.OnLogout(session.Handle(sid.String()))
	}
}

func (a *application) ToAdmin(msg *quickfix.Message, sid quickfix.SessionID) {
	if hd := a.engine.currentHandler(); hd != nil {
		hd.OnAdminOut(msg.String(), session.Handle(sid.String()))
	}
}

func (a *application) ToApp(msg *quickfix.Message, sid quickfix.SessionID) error {
	if hd := a.engine.currentHandler(); hd != nil {
		hd.OnAppOut(msg.String(), session.Handle(sid.String()))
	}
	return nil
}

func (a *application) FromAdmin(msg *quickfix.Message, sid quickfix.SessionID) quickfix.MessageRejectError {
	if hd := a.engine.currentHandler(); hd != nil {
		hd.OnAdminIn(msg.String(), session.Handle(sid.String()))
	}
	return nil
}

func (a *application) FromApp(msg *quickfix.Message, sid quickfix.SessionID) quickfix.MessageRejectError {
	if hd := a.engine.currentHandler(); hd != nil {
		hd.OnAppIn(msg.String(), session.Handle(sid.String()))
	}
	return nil
}
