// Package session owns the lifecycle of one engine session and turns engine
// callbacks into Events.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/types"
)

const (
	defaultRefreshInterval = time.Second
	eventBuffer            = 256
)

var errAlreadyStarted = errors.New("session already started")

// Role is one Acceptor or Initiator session. A Role is started once; build a
// new one for every connection attempt.
type Role interface {
	Kind() types.Role
	Endpoint() types.SessionEndpoint
	// Start blocks until ctx is cancelled or the engine fails to start.
	Start(ctx context.Context) error
	Send(raw string) bool
	Events() <-chan Event
	LoggedOn() bool
	ResetSequence() error
	SetSequence(p types.SequencePair) error
}

// Options tune a Role. Zero values fall back to defaults.
type Options struct {
	RefreshInterval time.Duration
	Settings        Settings // engine tuning; endpoint fields are overwritten
	Logger          *zap.Logger
	Now             func() time.Time
}

// New returns the Role variant for ep.Role.
func New(ep types.SessionEndpoint, engine Engine, opts Options) Role {
	if ep.Role == types.RoleAcceptor {
		return NewAcceptor(ep, engine, opts)
	}
	return NewInitiator(ep, engine, opts)
}

type base struct {
	kind   types.Role
	ep     types.SessionEndpoint
	engine Engine
	opts   Options
	log    *zap.Logger

	events  chan Event
	stopped chan struct{}
	started atomic.Bool

	mu          sync.RWMutex
	handle      Handle
	bound       bool
	runCtx      context.Context
	stopRefresh context.CancelFunc
}

func newBase(kind types.Role, ep types.SessionEndpoint, engine Engine, opts Options) *base {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ep.Role = kind
	return &base{
		kind:    kind,
		ep:      ep,
		engine:  engine,
		opts:    opts,
		log:     opts.Logger.Named(kind.String()).With(zap.String("sender", ep.SenderID), zap.String("target", ep.TargetID)),
		events:  make(chan Event, eventBuffer),
		stopped: make(chan struct{}),
	}
}

func (b *base) Kind() types.Role                { return b.kind }
func (b *base) Endpoint() types.SessionEndpoint { return b.ep }
func (b *base) Events() <-chan Event            { return b.events }

func (b *base) LoggedOn() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bound
}

func (b *base) settings() Settings {
	s := b.opts.Settings
	s.Role = b.kind
	s.Host = b.ep.Host
	s.Port = b.ep.Port
	s.SenderCompID = b.ep.SenderID
	s.TargetCompID = b.ep.TargetID
	return s
}

func (b *base) run(ctx context.Context, s Settings) error {
	if !b.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	defer close(b.stopped)

	b.mu.Lock()
	b.runCtx = ctx
	b.mu.Unlock()

	if err := b.engine.Start(s, b); err != nil {
		b.log.Error("engine start failed", zap.Error(err))
		return fmt.Errorf("%w: %s on %s:%d: %v", types.ErrSessionStartFailed, b.kind, b.ep.Host, b.ep.Port, err)
	}
	b.log.Info("session started", zap.String("host", b.ep.Host), zap.Int("port", b.ep.Port))

	<-ctx.Done()

	b.log.Info("session cancelled, stopping engine")
	b.cancelRefresh()
	b.engine.Stop()
	b.unbind("")
	b.log.Info("session stopped")
	return nil
}

// emit blocks while the buffer is full so no event is lost; once the Role
// has stopped late callbacks are dropped.
func (b *base) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.opts.Now()
	}
	select {
	case b.events <- ev:
	case <-b.stopped:
	}
}

func (b *base) current() (Handle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle, b.bound
}

func (b *base) unbind(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h == "" || b.handle == h {
		b.handle = ""
		b.bound = false
	}
}

func (b *base) Send(raw string) bool {
	h, ok := b.current()
	if !ok {
		return false
	}
	return b.engine.Send(raw, h)
}

func (b *base) ResetSequence() error {
	h, ok := b.current()
	if !ok {
		return types.ErrNoSession
	}
	if err := b.engine.ResetSequenceNumbers(h); err != nil {
		return err
	}
	b.refreshSequence(h)
	return nil
}

func (b *base) SetSequence(p types.SequencePair) error {
	h, ok := b.current()
	if !ok {
		return types.ErrNoSession
	}
	if err := b.engine.SetSequenceNumbers(h, p); err != nil {
		return err
	}
	b.refreshSequence(h)
	return nil
}

func (b *base) refreshSequence(h Handle) {
	p, err := b.engine.SequenceNumbers(h)
	if err != nil {
		b.log.Debug("sequence lookup failed", zap.Error(err))
		return
	}
	b.emit(Event{Kind: EventSequence, Sequence: p})
}

func (b *base) startRefresh(h Handle) {
	b.mu.Lock()
	if b.stopRefresh != nil {
		b.stopRefresh()
	}
	parent := b.runCtx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	b.stopRefresh = cancel
	b.mu.Unlock()

	go func() {
		ticker := time.NewTicker(b.opts.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.refreshSequence(h)
			}
		}
	}()
}

func (b *base) cancelRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopRefresh != nil {
		b.stopRefresh()
		b.stopRefresh = nil
	}
}

func (b *base) OnSessionCreated(h Handle) {
	b.log.Info("session created", zap.String("session", string(h)))
}

func (b *base) OnLogon(h Handle) {
	b.mu.Lock()
	b.handle = h
	b.bound = true
	b.mu.Unlock()

	b.log.Info("logon", zap.String("session", string(h)))
	b.emit(Event{Kind: EventLogon})
	b.refreshSequence(h)
	b.startRefresh(h)
}

func (b *base) OnLogout(h Handle) {
	b.cancelRefresh()
	b.unbind(h)
	b.log.Info("logout", zap.String("session", string(h)))
	b.emit(Event{Kind: EventLogout})
}

func (b *base) OnAdminIn(raw string, h Handle) {
	b.log.Debug("admin in", zap.String("session", string(h)), zap.String("msg", codec.Display(raw)))
}

func (b *base) OnAdminOut(raw string, h Handle) {
	b.log.Debug("admin out", zap.String("session", string(h)), zap.String("msg", codec.Display(raw)))
}

func (b *base) OnAppIn(raw string, h Handle) {
	b.log.Info("app in", zap.String("msg", codec.Display(raw)))
	b.emit(Event{Kind: EventInbound, Raw: raw})
	b.refreshSequence(h)
}

func (b *base) OnAppOut(raw string, h Handle) {
	b.log.Info("app out", zap.String("msg", codec.Display(raw)))
	b.emit(Event{Kind: EventOutbound, Raw: raw})
	b.refreshSequence(h)
}

// Acceptor listens for the counterparty.
type Acceptor struct{ *base }

func NewAcceptor(ep types.SessionEndpoint, engine Engine, opts Options) *Acceptor {
	return &Acceptor{newBase(types.RoleAcceptor, ep, engine, opts)}
}

func (a *Acceptor) Start(ctx context.Context) error {
	s := a.settings()
	s.ReconnectInterval = 0
	return a.run(ctx, s)
}

// Initiator connects out to the counterparty and keeps reconnecting.
type Initiator struct{ *base }

func NewInitiator(ep types.SessionEndpoint, engine Engine, opts Options) *Initiator {
	return &Initiator{newBase(types.RoleInitiator, ep, engine, opts)}
}

func (i *Initiator) Start(ctx context.Context) error {
	return i.run(ctx, i.settings())
}
