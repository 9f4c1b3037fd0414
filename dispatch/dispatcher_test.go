package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samaelod/fixdesk/types"
)

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []string
}

func (s *flakySender) Send(raw string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return false
	}
	s.got = append(s.got, raw)
	return true
}

type countObserver struct {
	mu       sync.Mutex
	ok, fail int
}

func (o *countObserver) Attempt(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.ok++
	} else {
		o.fail++
	}
}

func TestDispatchFirstAttempt(t *testing.T) {
	s := &flakySender{}
	n, err := New(s).Dispatch(context.Background(), "35=D")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"35=D"}, s.got)
}

func TestDispatchRetriesUntilAccepted(t *testing.T) {
	const interval = 20 * time.Millisecond
	for _, k := range []int{1, 3} {
		s := &flakySender{failures: k}
		obs := &countObserver{}
		d := New(s, WithInterval(interval), WithObserver(obs))

		start := time.Now()
		n, err := d.Dispatch(context.Background(), "35=D")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, k+1, n)
		assert.GreaterOrEqual(t, elapsed, time.Duration(k)*interval)
		assert.Equal(t, k, obs.fail)
		assert.Equal(t, 1, obs.ok)
	}
}

func TestDispatchAbandonedOnCancel(t *testing.T) {
	s := &flakySender{failures: 1 << 30}
	d := New(s, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	n, err := d.Dispatch(ctx, "35=D")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDispatchAbandoned))
	assert.GreaterOrEqual(t, n, 2)
	assert.Empty(t, s.got)
}

func TestDispatchCancelledBeforeFirstAttempt(t *testing.T) {
	s := &flakySender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := New(s).Dispatch(ctx, "35=D")
	assert.ErrorIs(t, err, types.ErrDispatchAbandoned)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, s.calls)
}

func TestDispatchMaxAttempts(t *testing.T) {
	s := &flakySender{failures: 10}
	d := New(s, WithInterval(time.Millisecond), WithMaxAttempts(3))

	n, err := d.Dispatch(context.Background(), "35=D")
	assert.ErrorIs(t, err, types.ErrMaxAttempts)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, s.calls)
}

func TestSenderFunc(t *testing.T) {
	var got string
	n, err := New(SenderFunc(func(raw string) bool {
		got = raw
		return true
	})).Dispatch(context.Background(), "35=0")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "35=0", got)
}
