// Package dispatch retries outbound sends until the engine accepts them.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/types"
)

const DefaultInterval = time.Second

// Sender makes a single send attempt.
type Sender interface {
	Send(raw string) bool
}

type SenderFunc func(raw string) bool

func (f SenderFunc) Send(raw string) bool { return f(raw) }

// Observer is told about every attempt. Optional.
type Observer interface {
	Attempt(ok bool)
}

type Dispatcher struct {
	sender      Sender
	interval    time.Duration
	maxAttempts int
	observer    Observer
	log         *zap.Logger
}

type Option func(*Dispatcher)

// WithInterval sets the wait between failed attempts.
func WithInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithMaxAttempts caps the attempts; 0 retries until cancelled.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxAttempts = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

func New(sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:   sender,
		interval: DefaultInterval,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.Named("dispatch")
	return d
}

// Dispatch calls Send until it returns true, waiting Interval between
// failures. It returns the number of attempts made. Cancelling ctx abandons
// the message with ErrDispatchAbandoned.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string) (int, error) {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return attempts, fmt.Errorf("%w after %d attempts: %v", types.ErrDispatchAbandoned, attempts, err)
		}

		attempts++
		ok := d.sender.Send(raw)
		if d.observer != nil {
			d.observer.Attempt(ok)
		}
		if ok {
			if attempts > 1 {
				d.log.Info("message sent after retries", zap.Int("attempts", attempts))
			}
			return attempts, nil
		}

		if d.maxAttempts > 0 && attempts >= d.maxAttempts {
			d.log.Warn("giving up on message", zap.Int("attempts", attempts))
			return attempts, fmt.Errorf("%w (%d)", types.ErrMaxAttempts, attempts)
		}

		d.log.Debug("send failed, retrying", zap.Int("attempt", attempts), zap.Duration("in", d.interval))

		timer := time.NewTimer(d.interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempts, fmt.Errorf("%w after %d attempts: %v", types.ErrDispatchAbandoned, attempts, ctx.Err())
		}
	}
}
