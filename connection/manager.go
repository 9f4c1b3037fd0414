// Package connection is the user-facing connection lifecycle: it starts and
// stops Session Roles, applies their events to the sequence tracker and the
// message history, and dispatches outbound messages.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/dispatch"
	"github.com/samaelod/fixdesk/history"
	"github.com/samaelod/fixdesk/metrics"
	"github.com/samaelod/fixdesk/sequence"
	"github.com/samaelod/fixdesk/session"
	"github.com/samaelod/fixdesk/types"
)

const updateBuffer = 256

var (
	ErrShutdown      = errors.New("connection manager shut down")
	ErrShutdownGrace = errors.New("shutdown grace period exceeded")
)

// RoleFactory builds the Role for one connection attempt.
type RoleFactory func(ep types.SessionEndpoint) session.Role

type Options struct {
	NewRole          RoleFactory
	Logger           *zap.Logger
	Metrics          *metrics.Metrics
	DispatchInterval time.Duration
	MaxAttempts      int
	Now              func() time.Time
}

// activeSession is the one live connection attempt. It is replaced, never
// reused, on every connect.
type activeSession struct {
	ep       types.SessionEndpoint
	role     session.Role
	cancel   context.CancelFunc
	done     chan struct{}
	loggedOn bool
}

type Manager struct {
	mu       sync.Mutex
	state    types.ConnectionState
	active   *activeSession
	last     *activeSession
	endpoint types.SessionEndpoint
	closed   bool
	pending  int

	ctx           context.Context
	cancel        context.CancelFunc
	pendingCtx    context.Context
	cancelPending context.CancelFunc
	sessions      sync.WaitGroup
	sends         sync.WaitGroup

	newRole    RoleFactory
	tracker    *sequence.Tracker
	history    *history.Log
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
	updates    chan Update
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		ctx:     ctx,
		cancel:  cancel,
		newRole: opts.NewRole,
		tracker: sequence.NewTracker(opts.Logger),
		history: history.New(),
		metrics: opts.Metrics,
		log:     opts.Logger.Named("connection"),
		now:     opts.Now,
		updates: make(chan Update, updateBuffer),
	}
	m.pendingCtx, m.cancelPending = context.WithCancel(ctx)

	m.dispatcher = dispatch.New(
		dispatch.SenderFunc(m.sendOnce),
		dispatch.WithInterval(opts.DispatchInterval),
		dispatch.WithMaxAttempts(opts.MaxAttempts),
		dispatch.WithObserver(opts.Metrics),
		dispatch.WithLogger(opts.Logger),
	)

	m.tracker.OnChange(func(p types.SequencePair) {
		m.metrics.SequencePair(p)
		m.publish(Update{Kind: UpdateSequence, Sequence: p})
	})
	m.metrics.State(types.StateDisconnected)
	m.metrics.SequencePair(types.InitialSequence)
	return m
}

// Updates delivers change notifications. They are hints: when the buffer is
// full an update is dropped, so consumers read the snapshot getters.
func (m *Manager) Updates() <-chan Update {
	return m.updates
}

func (m *Manager) publish(u Update) {
	select {
	case m.updates <- u:
	default:
		m.log.Debug("update dropped, consumer is behind", zap.Stringer("kind", u.Kind))
	}
}

func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Endpoint is the endpoint of the current or most recent connection.
func (m *Manager) Endpoint() types.SessionEndpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endpoint
}

func (m *Manager) Sequence() types.SequencePair {
	return m.tracker.Current()
}

func (m *Manager) Messages() []types.DecodedMessage {
	return m.history.Snapshot()
}

func (m *Manager) History() *history.Log {
	return m.history
}

// Pending is the number of outbound messages still being dispatched.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

func (m *Manager) setStateLocked(s types.ConnectionState) Update {
	prev := m.state
	m.state = s
	m.metrics.State(s)
	m.log.Info("connection state", zap.Stringer("from", prev), zap.Stringer("to", s))
	return Update{Kind: UpdateState, State: s}
}

// Connect starts a session for ep. It is a no-op unless Disconnected.
func (m *Manager) Connect(ep types.SessionEndpoint) error {
	if err := ep.Validate(); err != nil {
		m.log.Warn("connect refused", zap.Error(err))
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShutdown
	}
	if state := m.state; state != types.StateDisconnected {
		m.mu.Unlock()
		m.log.Debug("connect ignored", zap.Stringer("state", state))
		return nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	a := &activeSession{
		ep:     ep,
		role:   m.newRole(ep),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	prev := m.last
	m.active = a
	m.last = a
	m.endpoint = ep
	u := m.setStateLocked(types.StateConnecting)
	m.sessions.Add(1)
	m.mu.Unlock()

	m.log.Info("connecting", zap.Stringer("endpoint", ep))
	m.publish(u)
	go m.supervise(ctx, a, prev)
	return nil
}

// Disconnect cancels the active session, if any.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	a := m.active
	if a == nil {
		m.mu.Unlock()
		return
	}
	m.active = nil
	m.tracker.Unbind()
	u := m.setStateLocked(types.StateDisconnected)
	m.mu.Unlock()

	m.log.Info("disconnect requested", zap.Stringer("endpoint", a.ep))
	a.cancel()
	m.publish(u)
}

// Toggle connects when Disconnected and disconnects otherwise.
func (m *Manager) Toggle(ep types.SessionEndpoint) error {
	if m.State() == types.StateDisconnected {
		return m.Connect(ep)
	}
	m.Disconnect()
	return nil
}

// supervise is the only consumer of the Role's events. The engine keeps
// session ids in a process-wide registry, so a Role is not started until the
// one before it has fully stopped.
func (m *Manager) supervise(ctx context.Context, a *activeSession, prev *activeSession) {
	defer m.sessions.Done()
	defer close(a.done)

	if prev != nil {
		select {
		case <-prev.done:
		default:
			m.log.Info("waiting for previous session to stop", zap.Stringer("endpoint", prev.ep))
			select {
			case <-prev.done:
			case <-ctx.Done():
				m.finish(a, nil)
				return
			}
		}
	}

	errc := make(chan error, 1)
	go func() { errc <- a.role.Start(ctx) }()

	events := a.role.Events()
	for {
		select {
		case ev := <-events:
			m.handle(a, ev)
		case err := <-errc:
			m.drain(a, events)
			m.finish(a, err)
			return
		}
	}
}

func (m *Manager) drain(a *activeSession, events <-chan session.Event) {
	for {
		select {
		case ev := <-events:
			m.handle(a, ev)
		default:
			return
		}
	}
}

func (m *Manager) isActive(a *activeSession) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active == a
}

func (m *Manager) handle(a *activeSession, ev session.Event) {
	switch ev.Kind {
	case session.EventLogon:
		m.mu.Lock()
		if m.active != a {
			m.mu.Unlock()
			return
		}
		a.loggedOn = true
		replay := m.tracker.Attach(a.role)
		u := m.setStateLocked(types.StateConnected)
		m.mu.Unlock()

		m.metrics.Connect(a.ep.Role, nil)
		m.publish(u)
		if err := replay(); err != nil {
			m.log.Error("applying pending sequence override failed", zap.Error(err))
			m.publish(Update{Kind: UpdateError, Err: err})
		}

	case session.EventLogout:
		m.mu.Lock()
		if m.active != a {
			m.mu.Unlock()
			return
		}
		m.active = nil
		m.tracker.Unbind()
		u := m.setStateLocked(types.StateDisconnected)
		m.mu.Unlock()

		m.log.Info("session logged out", zap.Stringer("endpoint", a.ep))
		a.cancel()
		m.publish(u)

	case session.EventInbound:
		m.record(ev.Raw, types.Inbound, ev.At)

	case session.EventOutbound:
		m.record(ev.Raw, types.Outbound, ev.At)

	case session.EventSequence:
		if m.isActive(a) {
			m.tracker.Observe(ev.Sequence)
		}
	}
}

func (m *Manager) record(raw string, dir types.Direction, at time.Time) {
	if at.IsZero() {
		at = m.now()
	}
	msg := codec.Decode(raw, dir, at)
	m.history.Append(msg)
	m.metrics.Message(dir, msg.MsgType)
	m.publish(Update{Kind: UpdateMessage, Message: msg})
}

func (m *Manager) finish(a *activeSession, err error) {
	a.cancel()

	m.mu.Lock()
	var u *Update
	if m.active == a {
		m.active = nil
		m.tracker.Unbind()
		s := m.setStateLocked(types.StateDisconnected)
		u = &s
	}
	m.mu.Unlock()

	if u != nil {
		m.publish(*u)
	}
	if err != nil {
		m.log.Error("session failed", zap.Stringer("endpoint", a.ep), zap.Error(err))
		m.metrics.Connect(a.ep.Role, err)
		m.publish(Update{Kind: UpdateError, Err: err})
		return
	}
	m.log.Info("session ended", zap.Stringer("endpoint", a.ep))
}

// Send encodes text and hands it to the dispatcher in the background. Syntax
// errors and sends outside Connected are reported synchronously.
func (m *Manager) Send(text string) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	if state != types.StateConnected {
		return fmt.Errorf("%w: state is %s", types.ErrNotConnected, state)
	}

	raw, err := codec.Encode(text)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShutdown
	}
	ctx := m.pendingCtx
	m.pending++
	n := m.pending
	m.sends.Add(1)
	m.mu.Unlock()

	m.notePending(n)
	go m.dispatch(ctx, raw)
	return nil
}

func (m *Manager) dispatch(ctx context.Context, raw string) {
	defer m.sends.Done()

	attempts, err := m.dispatcher.Dispatch(ctx, raw)

	m.mu.Lock()
	m.pending--
	n := m.pending
	m.mu.Unlock()
	m.notePending(n)

	if err != nil {
		m.log.Warn("outbound message not sent", zap.Int("attempts", attempts), zap.String("msg", codec.Display(raw)), zap.Error(err))
		m.publish(Update{Kind: UpdateError, Err: err})
		return
	}
	m.log.Debug("outbound message handed to engine", zap.Int("attempts", attempts))
}

func (m *Manager) notePending(n int) {
	m.metrics.Pending(n)
	m.publish(Update{Kind: UpdatePending, Pending: n})
}

// sendOnce is the dispatcher's single attempt against whichever session is
// logged on right now.
func (m *Manager) sendOnce(raw string) bool {
	m.mu.Lock()
	a := m.active
	ok := a != nil && a.loggedOn
	m.mu.Unlock()
	if !ok {
		return false
	}
	return a.role.Send(raw)
}

// CancelPending abandons every message still being dispatched.
func (m *Manager) CancelPending() {
	m.mu.Lock()
	m.cancelPending()
	m.pendingCtx, m.cancelPending = context.WithCancel(m.ctx)
	m.mu.Unlock()
	m.log.Info("pending sends cancelled")
}

func (m *Manager) ResetSequence() error {
	return m.tracker.Reset()
}

func (m *Manager) SetSequence(inbound, outbound uint64) error {
	return m.tracker.SetExplicit(types.SequencePair{Inbound: inbound, Outbound: outbound})
}

func (m *Manager) ClearLog() {
	m.history.Clear()
	m.publish(Update{Kind: UpdateCleared})
}

// Import appends already decoded messages, e.g. from a capture file.
func (m *Manager) Import(msgs []types.DecodedMessage) {
	for _, msg := range msgs {
		m.history.Append(msg)
		m.metrics.Message(msg.Direction, msg.MsgType)
	}
	m.log.Info("imported messages", zap.Int("count", len(msgs)))
	m.publish(Update{Kind: UpdateMessage})
}

// Shutdown disconnects, abandons pending sends and waits up to grace for the
// session and dispatch goroutines to exit.
func (m *Manager) Shutdown(grace time.Duration) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	var u *Update
	if m.active != nil {
		m.active = nil
		m.tracker.Unbind()
		s := m.setStateLocked(types.StateDisconnected)
		u = &s
	}
	m.mu.Unlock()

	if u != nil {
		m.publish(*u)
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.sessions.Wait()
		m.sends.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("connection manager stopped")
		return nil
	case <-time.After(grace):
		m.log.Warn("shutdown grace period exceeded", zap.Duration("grace", grace))
		return ErrShutdownGrace
	}
}
