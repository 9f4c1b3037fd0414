// Package sequence keeps the session's inbound/outbound sequence numbers in
// step with the engine and writes user overrides back to it.
package sequence

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/types"
)

// Store is the engine-side session state an override is written through to.
type Store interface {
	ResetSequence() error
	SetSequence(types.SequencePair) error
}

type override struct {
	reset bool
	pair  types.SequencePair
}

// Tracker is safe for concurrent use. Engine observations and user overrides
// are last-write-wins.
type Tracker struct {
	mu       sync.Mutex
	pair     types.SequencePair
	store    Store
	pending  *override
	onChange func(types.SequencePair)
	log      *zap.Logger
}

func NewTracker(log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		pair: types.InitialSequence,
		log:  log.Named("sequence"),
	}
}

// OnChange registers fn to be called, outside the lock, after every change.
func (t *Tracker) OnChange(fn func(types.SequencePair)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tracker) Current() types.SequencePair {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pair
}

// Pending reports whether an override is waiting for a session to be bound.
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Observe records the most recent engine-reported counters. Observations
// with a zero counter are ignored.
func (t *Tracker) Observe(p types.SequencePair) {
	if p.Inbound < types.MinSeqNum || p.Outbound < types.MinSeqNum {
		return
	}
	t.mu.Lock()
	if t.pair == p {
		t.mu.Unlock()
		return
	}
	t.pair = p
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(p)
	}
}

// Reset sets both counters to 1 and asks the engine to do the same. With no
// session bound the reset is kept and applied by the next Bind.
func (t *Tracker) Reset() error {
	return t.apply(override{reset: true, pair: types.InitialSequence})
}

// SetExplicit overrides both counters. Values outside [1, 999999] are
// rejected with ErrOutOfRangeSeqNum and leave the state untouched.
func (t *Tracker) SetExplicit(p types.SequencePair) error {
	if err := p.CheckOverride(); err != nil {
		return err
	}
	return t.apply(override{pair: p})
}

func (t *Tracker) apply(o override) error {
	t.mu.Lock()
	t.pair = o.pair
	store := t.store
	fn := t.onChange
	if store == nil {
		t.pending = &o
	}
	t.mu.Unlock()

	if fn != nil {
		fn(o.pair)
	}

	if store == nil {
		t.log.Info("no active session, override kept for next logon", zap.Stringer("sequence", o.pair), zap.Bool("reset", o.reset))
		return nil
	}

	if err := writeThrough(store, o); err != nil {
		t.mu.Lock()
		t.pending = &o
		t.mu.Unlock()
		return err
	}
	return nil
}

// Bind attaches the active session's store and replays any pending override.
func (t *Tracker) Bind(store Store) error {
	return t.Attach(store)()
}

// Attach makes store the write-through target and returns the replay of any
// pending override. Callers that order Attach and Unbind under their own lock
// attach while holding it and replay after releasing it.
func (t *Tracker) Attach(store Store) (replay func() error) {
	t.mu.Lock()
	t.store = store
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	return func() error {
		if pending == nil || store == nil {
			return nil
		}
		t.log.Info("applying pending override", zap.Stringer("sequence", pending.pair), zap.Bool("reset", pending.reset))
		if err := writeThrough(store, *pending); err != nil {
			t.mu.Lock()
			if t.pending == nil {
				t.pending = pending
			}
			t.mu.Unlock()
			return err
		}
		return nil
	}
}

// Unbind detaches the store; later overrides stay local until the next Bind.
func (t *Tracker) Unbind() {
	t.mu.Lock()
	t.store = nil
	t.mu.Unlock()
}

func writeThrough(store Store, o override) error {
	if o.reset {
		if err := store.ResetSequence(); err != nil {
			return fmt.Errorf("reset engine sequence: %w", err)
		}
		return nil
	}
	if err := store.SetSequence(o.pair); err != nil {
		return fmt.Errorf("set engine sequence %s: %w", o.pair, err)
	}
	return nil
}
