package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samaelod/fixdesk/session"
	"github.com/samaelod/fixdesk/types"
)

const wait = time.Second
const tick = 5 * time.Millisecond

type fakeRole struct {
	ep       types.SessionEndpoint
	events   chan session.Event
	startErr error
	hold     chan struct{}

	mu        sync.Mutex
	started   bool
	accept    bool
	sent      []string
	sets      []types.SequencePair
	resets    int
	cancelled bool
}

func newFakeRole(ep types.SessionEndpoint) *fakeRole {
	return &fakeRole{ep: ep, events: make(chan session.Event, 16), accept: true}
}

func (r *fakeRole) Kind() types.Role                { return r.ep.Role }
func (r *fakeRole) Endpoint() types.SessionEndpoint { return r.ep }
func (r *fakeRole) Events() <-chan session.Event    { return r.events }
func (r *fakeRole) LoggedOn() bool                  { return true }

func (r *fakeRole) Start(ctx context.Context) error {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	if r.startErr != nil {
		return fmt.Errorf("%w: %v", types.ErrSessionStartFailed, r.startErr)
	}
	<-ctx.Done()
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
	if r.hold != nil {
		<-r.hold
	}
	return nil
}

func (r *fakeRole) isStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *fakeRole) Send(raw string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accept {
		return false
	}
	r.sent = append(r.sent, raw)
	return true
}

func (r *fakeRole) ResetSequence() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
	return nil
}

func (r *fakeRole) SetSequence(p types.SequencePair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = append(r.sets, p)
	return nil
}

func (r *fakeRole) setAccept(ok bool) {
	r.mu.Lock()
	r.accept = ok
	r.mu.Unlock()
}

func (r *fakeRole) sentMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func (r *fakeRole) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

type harness struct {
	m     *Manager
	mu    sync.Mutex
	roles []*fakeRole
	err   error
	hold  chan struct{}
}

func newHarness(t *testing.T) *harness {
	h := &harness{}
	h.m = NewManager(Options{
		NewRole: func(ep types.SessionEndpoint) session.Role {
			r := newFakeRole(ep)
			h.mu.Lock()
			r.startErr = h.err
			r.hold = h.hold
			h.roles = append(h.roles, r)
			h.mu.Unlock()
			return r
		},
		DispatchInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() { _ = h.m.Shutdown(wait) })
	return h
}

func (h *harness) role(i int) *fakeRole {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roles[i]
}

func (h *harness) roleCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.roles)
}

func (h *harness) stateIs(t *testing.T, s types.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return h.m.State() == s }, wait, tick, "want %s, have %s", s, h.m.State())
}

func (h *harness) connected(t *testing.T) *fakeRole {
	t.Helper()
	require.NoError(t, h.m.Connect(validEndpoint))
	r := h.role(h.roleCount() - 1)
	r.events <- session.Event{Kind: session.EventLogon}
	h.stateIs(t, types.StateConnected)
	return r
}

var validEndpoint = types.SessionEndpoint{Host: "127.0.0.1", Port: 9878, SenderID: "CLIENT", TargetID: "SERVER", Role: types.RoleInitiator}

const newOrder = "8=FIXT.1.1|35=D|49=ABC|56=XYZ|34=12|11=ORD1|55=MSFT|54=1|38=100|44=25.50|10=128"

func TestConnectInvalidEndpoint(t *testing.T) {
	h := newHarness(t)
	for _, ep := range []types.SessionEndpoint{
		{Port: 9878, SenderID: "A", TargetID: "B"},
		{Host: "h", Port: 0, SenderID: "A", TargetID: "B"},
		{Host: "h", Port: 70000, SenderID: "A", TargetID: "B"},
		{Host: "h", Port: 1, TargetID: "B"},
		{Host: "h", Port: 1, SenderID: "A"},
	} {
		err := h.m.Connect(ep)
		assert.ErrorIs(t, err, types.ErrInvalidEndpoint, "%+v", ep)
		assert.Equal(t, types.StateDisconnected, h.m.State())
	}
	assert.Equal(t, 0, h.roleCount())
}

func TestConnectLogonLogout(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.m.Connect(validEndpoint))
	assert.Equal(t, types.StateConnecting, h.m.State())
	assert.Equal(t, validEndpoint, h.m.Endpoint())

	require.NoError(t, h.m.Connect(validEndpoint), "second connect is a no-op")
	assert.Equal(t, 1, h.roleCount())

	r := h.role(0)
	r.events <- session.Event{Kind: session.EventLogon}
	h.stateIs(t, types.StateConnected)

	r.events <- session.Event{Kind: session.EventLogout}
	h.stateIs(t, types.StateDisconnected)
	assert.Eventually(t, r.isCancelled, wait, tick, "role context cancelled on logout")
}

func TestSequenceLastWriteWins(t *testing.T) {
	h := newHarness(t)
	r := h.connected(t)

	for _, p := range []types.SequencePair{{Inbound: 1, Outbound: 1}, {Inbound: 2, Outbound: 1}, {Inbound: 2, Outbound: 2}} {
		r.events <- session.Event{Kind: session.EventSequence, Sequence: p}
	}
	assert.Eventually(t, func() bool {
		return h.m.Sequence() == types.SequencePair{Inbound: 2, Outbound: 2}
	}, wait, tick)
}

func TestStartFailure(t *testing.T) {
	h := newHarness(t)
	h.err = errors.New("bind: address already in use")

	require.NoError(t, h.m.Connect(validEndpoint))
	h.stateIs(t, types.StateDisconnected)

	var got error
	require.Eventually(t, func() bool {
		for {
			select {
			case u := <-h.m.Updates():
				if u.Kind == UpdateError {
					got = u.Err
					return true
				}
			default:
				return false
			}
		}
	}, wait, tick)
	assert.ErrorIs(t, got, types.ErrSessionStartFailed)

	h.err = nil
	require.NoError(t, h.m.Connect(validEndpoint), "a new attempt is allowed after failure")
	assert.Equal(t, types.StateConnecting, h.m.State())
}

func TestUserCancelWhileConnecting(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Connect(validEndpoint))
	r := h.role(0)

	require.NoError(t, h.m.Toggle(validEndpoint))
	assert.Equal(t, types.StateDisconnected, h.m.State())
	assert.Eventually(t, r.isCancelled, wait, tick)

	r.events <- session.Event{Kind: session.EventLogon}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, types.StateDisconnected, h.m.State(), "late logon of a cancelled role is ignored")

	require.NoError(t, h.m.ResetSequence(), "sequence reset stays local")
	r.mu.Lock()
	assert.Equal(t, 0, r.resets)
	r.mu.Unlock()
}

func (h *harness) holdStops(c chan struct{}) {
	h.mu.Lock()
	h.hold = c
	h.mu.Unlock()
}

func TestReconnectWaitsForPreviousStop(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.holdStops(release)
	r := h.connected(t)
	h.holdStops(nil)

	h.m.Disconnect()
	require.Eventually(t, r.isCancelled, wait, tick)

	require.NoError(t, h.m.Connect(validEndpoint))
	assert.Equal(t, types.StateConnecting, h.m.State())
	r2 := h.role(1)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, r2.isStarted(), "the next role starts only after the previous one stopped")

	close(release)
	require.Eventually(t, r2.isStarted, wait, tick)
	r2.events <- session.Event{Kind: session.EventLogon}
	h.stateIs(t, types.StateConnected)
}

func TestDisconnectWhileWaitingForPreviousStop(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	defer close(release)
	h.holdStops(release)
	h.connected(t)
	h.holdStops(nil)

	h.m.Disconnect()
	require.NoError(t, h.m.Connect(validEndpoint))
	r2 := h.role(1)

	h.m.Disconnect()
	assert.Equal(t, types.StateDisconnected, h.m.State())
	time.Sleep(20 * time.Millisecond)
	assert.False(t, r2.isStarted())
}

func TestSendRequiresConnected(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.m.Send(newOrder), types.ErrNotConnected)

	require.NoError(t, h.m.Connect(validEndpoint))
	assert.ErrorIs(t, h.m.Send(newOrder), types.ErrNotConnected)
}

func TestSendInvalidSyntax(t *testing.T) {
	h := newHarness(t)
	h.connected(t)

	for _, text := range []string{"", "49=ABC|56=XYZ", "x=1|35=D"} {
		assert.ErrorIs(t, h.m.Send(text), types.ErrInvalidMessageSyntax, text)
	}
	assert.Equal(t, 0, h.m.Pending())
}

func TestSendDispatchesEncodedMessage(t *testing.T) {
	h := newHarness(t)
	r := h.connected(t)

	require.NoError(t, h.m.Send(newOrder))
	require.Eventually(t, func() bool { return len(r.sentMessages()) == 1 }, wait, tick)
	assert.Contains(t, r.sentMessages()[0], "35=D\x0149=ABC")
	assert.Eventually(t, func() bool { return h.m.Pending() == 0 }, wait, tick)
}

func TestPendingSendSurvivesReconnect(t *testing.T) {
	h := newHarness(t)
	r := h.connected(t)
	r.setAccept(false)

	require.NoError(t, h.m.Send(newOrder))
	assert.Equal(t, 1, h.m.Pending())

	r.events <- session.Event{Kind: session.EventLogout}
	h.stateIs(t, types.StateDisconnected)
	assert.Equal(t, 1, h.m.Pending())

	r2 := h.connected(t)
	require.Eventually(t, func() bool { return len(r2.sentMessages()) == 1 }, wait, tick)
	assert.Eventually(t, func() bool { return h.m.Pending() == 0 }, wait, tick)
	assert.Empty(t, r.sentMessages())
}

func TestCancelPending(t *testing.T) {
	h := newHarness(t)
	r := h.connected(t)
	r.setAccept(false)

	require.NoError(t, h.m.Send(newOrder))
	require.NoError(t, h.m.Send(newOrder))
	assert.Equal(t, 2, h.m.Pending())

	h.m.CancelPending()
	assert.Eventually(t, func() bool { return h.m.Pending() == 0 }, wait, tick)

	r.setAccept(true)
	require.NoError(t, h.m.Send(newOrder))
	assert.Eventually(t, func() bool { return len(r.sentMessages()) == 1 }, wait, tick)
}

func TestMessagesRecorded(t *testing.T) {
	h := newHarness(t)
	r := h.connected(t)

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	r.events <- session.Event{Kind: session.EventInbound, Raw: "8=FIXT.1.1\x0135=D\x0155=MSFT\x01", At: at}
	r.events <- session.Event{Kind: session.EventOutbound, Raw: "8=FIXT.1.1\x0135=8\x0155=MSFT\x01", At: at}

	require.Eventually(t, func() bool { return len(h.m.Messages()) == 2 }, wait, tick)
	msgs := h.m.Messages()
	assert.Equal(t, types.Inbound, msgs[0].Direction)
	assert.Equal(t, "New Order Single", msgs[0].Description)
	assert.Equal(t, at, msgs[0].Timestamp)
	assert.Equal(t, types.Outbound, msgs[1].Direction)
	assert.Equal(t, "Execution Report", msgs[1].Description)

	r.events <- session.Event{Kind: session.EventLogout}
	h.stateIs(t, types.StateDisconnected)
	assert.Len(t, h.m.Messages(), 2, "history survives disconnect")

	h.m.ClearLog()
	assert.Empty(t, h.m.Messages())
	assert.Equal(t, "No messages received yet", h.m.History().StatusText())
}

func TestSequenceOverrides(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.m.SetSequence(5, 6))
	assert.Equal(t, types.SequencePair{Inbound: 5, Outbound: 6}, h.m.Sequence())
	assert.ErrorIs(t, h.m.SetSequence(0, 5), types.ErrOutOfRangeSeqNum)
	assert.ErrorIs(t, h.m.SetSequence(5, 1000000), types.ErrOutOfRangeSeqNum)
	assert.Equal(t, types.SequencePair{Inbound: 5, Outbound: 6}, h.m.Sequence())

	r := h.connected(t)
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.sets) == 1
	}, wait, tick, "override made while disconnected is applied on logon")

	require.NoError(t, h.m.ResetSequence())
	assert.Equal(t, types.InitialSequence, h.m.Sequence())
	r.mu.Lock()
	assert.Equal(t, 1, r.resets)
	r.mu.Unlock()
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)
	r := h.connected(t)
	r.setAccept(false)
	require.NoError(t, h.m.Send(newOrder))

	require.NoError(t, h.m.Shutdown(wait))
	assert.Equal(t, types.StateDisconnected, h.m.State())
	assert.True(t, r.isCancelled())
	assert.Equal(t, 0, h.m.Pending())
	assert.ErrorIs(t, h.m.Connect(validEndpoint), ErrShutdown)
}
