package engine

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/session"
	"github.com/samaelod/fixdesk/types"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) has(call string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (r *recorder) OnSessionCreated(h session.Handle) { r.add("created " + string(h)) }
func (r *recorder) OnLogon(h session.Handle)          { r.add("logon " + string(h)) }
func (r *recorder) OnLogout(h session.Handle)         { r.add("logout " + string(h)) }
func (r *recorder) OnAdminIn(raw string, _ session.Handle) {
	r.add("admin in")
}
func (r *recorder) OnAdminOut(raw string, _ session.Handle) {
	r.add("admin out")
}
func (r *recorder) OnAppIn(raw string, _ session.Handle)  { r.add("app in") }
func (r *recorder) OnAppOut(raw string, _ session.Handle) { r.add("app out") }

var sid = quickfix.SessionID{BeginString: "FIXT.1.1", SenderCompID: "CLIENT", TargetCompID: "SERVER"}

func setting(t *testing.T, s *quickfix.Settings, key string) string {
	t.Helper()
	ss := s.SessionSettings()[sid]
	require.NotNil(t, ss)
	v, err := ss.Setting(key)
	require.NoError(t, err, key)
	return v
}

func TestBuildSettingsInitiator(t *testing.T) {
	s, err := buildSettings(session.Settings{
		Role:              types.RoleInitiator,
		Host:              "fix.example.com",
		Port:              9878,
		SenderCompID:      "CLIENT",
		TargetCompID:      "SERVER",
		HeartBtInt:        10,
		ReconnectInterval: 60,
		ResetOnLogon:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, "FIXT.1.1", setting(t, s, config.BeginString))
	assert.Equal(t, "FIX.5.0", setting(t, s, config.DefaultApplVerID))
	assert.Equal(t, "fix.example.com", setting(t, s, config.SocketConnectHost))
	assert.Equal(t, "9878", setting(t, s, config.SocketConnectPort))
	assert.Equal(t, "10", setting(t, s, config.HeartBtInt))
	assert.Equal(t, "60", setting(t, s, config.ReconnectInterval))
	assert.Equal(t, "Y", setting(t, s, config.ResetOnLogon))
	assert.Equal(t, "N", setting(t, s, config.ResetOnDisconnect))
}

func TestBuildSettingsAcceptor(t *testing.T) {
	s, err := buildSettings(session.Settings{
		Role:         types.RoleAcceptor,
		Host:         "127.0.0.1",
		Port:         9878,
		SenderCompID: "CLIENT",
		TargetCompID: "SERVER",
	})
	require.NoError(t, err)
	assert.Equal(t, "9878", setting(t, s, config.SocketAcceptPort))
	assert.Equal(t, "127.0.0.1", setting(t, s, config.SocketAcceptHost))
	assert.Equal(t, "30", setting(t, s, config.HeartBtInt))
}

func TestBuildSettingsInvalid(t *testing.T) {
	_, err := buildSettings(session.Settings{Port: 9878, SenderCompID: "A"})
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)
	_, err = buildSettings(session.Settings{Port: 0, SenderCompID: "A", TargetCompID: "B"})
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)
}

func TestBuildMessage(t *testing.T) {
	raw := "8=FIXT.1.1\x019=99\x0135=D\x0149=ABC\x0156=XYZ\x0111=ORD1\x0155=MSFT\x0154=1\x0110=128\x01"
	msg, err := buildMessage(raw)
	require.NoError(t, err)

	typ, rerr := msg.Header.GetString(quickfix.Tag(35))
	require.Nil(t, rerr)
	assert.Equal(t, "D", typ)
	sym, rerr := msg.Body.GetString(quickfix.Tag(55))
	require.Nil(t, rerr)
	assert.Equal(t, "MSFT", sym)

	assert.False(t, msg.Header.Has(quickfix.Tag(9)))
	assert.False(t, msg.Trailer.Has(quickfix.Tag(10)))
	assert.False(t, msg.Body.Has(quickfix.Tag(49)))
}

func TestBuildMessageRequiresMsgType(t *testing.T) {
	_, err := buildMessage("49=ABC\x0156=XYZ\x01")
	assert.ErrorIs(t, err, types.ErrInvalidMessageSyntax)
}

func TestCallbacksCarryHandle(t *testing.T) {
	e := New(zap.NewNop())
	rec := &recorder{}
	e.handler = rec
	app := &application{engine: e}

	app.OnCreate(sid)
	app.OnLogon(sid)
	require.Nil(t, app.FromApp(quickfix.NewMessage(), sid))
	require.NoError(t, app.ToApp(quickfix.NewMessage(), sid))
	app.ToAdmin(quickfix.NewMessage(), sid)
	app.OnLogout(sid)

	h := string(session.Handle(sid.String()))
	assert.Equal(t, []string{"created " + h, "logon " + h, "app in", "app out", "admin out", "logout " + h}, rec.calls)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func loopSettings(role types.Role, port int, sender, target string) session.Settings {
	return session.Settings{
		Role:              role,
		Host:              "127.0.0.1",
		Port:              port,
		SenderCompID:      sender,
		TargetCompID:      target,
		ReconnectInterval: 1,
		LogoutTimeout:     1,
	}
}

func handleFor(sender, target string) session.Handle {
	return session.Handle(quickfix.SessionID{BeginString: quickfix.BeginStringFIXT11, SenderCompID: sender, TargetCompID: target}.String())
}

func TestStartReturnsAndRegistersSession(t *testing.T) {
	e := New(nil)
	rec := &recorder{}
	s := loopSettings(types.RoleAcceptor, freePort(t), "SEQ-ACC", "SEQ-INI")
	done := make(chan error, 1)
	go func() { done <- e.Start(s, rec) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
	defer e.Stop()

	h := handleFor("SEQ-ACC", "SEQ-INI")
	assert.True(t, rec.has("created "+string(h)))
	assert.ErrorIs(t, e.Start(loopSettings(types.RoleAcceptor, 1, "SEQ-ACC", "SEQ-INI"), rec), errAlreadyStarted)

	p, err := e.SequenceNumbers(h)
	require.NoError(t, err)
	assert.Equal(t, types.InitialSequence, p)

	require.NoError(t, e.SetSequenceNumbers(h, types.SequencePair{Inbound: 12, Outbound: 7}))
	p, err = e.SequenceNumbers(h)
	require.NoError(t, err)
	assert.Equal(t, types.SequencePair{Inbound: 12, Outbound: 7}, p)

	// The session goroutine sets its initial state after Start returns.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, e.ResetSequenceNumbers(h))
	p, err = e.SequenceNumbers(h)
	require.NoError(t, err)
	assert.Equal(t, types.InitialSequence, p)
}

func TestLoopbackSession(t *testing.T) {
	port := freePort(t)
	acc, ini := New(nil), New(nil)
	accRec, iniRec := &recorder{}, &recorder{}
	accH, iniH := handleFor("LOOP-ACC", "LOOP-INI"), handleFor("LOOP-INI", "LOOP-ACC")

	require.NoError(t, acc.Start(loopSettings(types.RoleAcceptor, port, "LOOP-ACC", "LOOP-INI"), accRec))
	defer acc.Stop()
	require.NoError(t, ini.Start(loopSettings(types.RoleInitiator, port, "LOOP-INI", "LOOP-ACC"), iniRec))
	defer ini.Stop()

	require.Eventually(t, func() bool {
		return accRec.has("logon "+string(accH)) && iniRec.has("logon "+string(iniH))
	}, 10*time.Second, 20*time.Millisecond)

	assert.True(t, ini.Send("35=D\x0111=ORD1\x0155=MSFT\x0154=1\x01", iniH))
	assert.Eventually(t, func() bool { return iniRec.has("app out") && accRec.has("app in") }, 5*time.Second, 20*time.Millisecond)

	// Logon took 1 in each direction, the order took 2 outbound.
	assert.Eventually(t, func() bool {
		p, err := ini.SequenceNumbers(iniH)
		return err == nil && p == types.SequencePair{Inbound: 2, Outbound: 3}
	}, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		p, err := acc.SequenceNumbers(accH)
		return err == nil && p == types.SequencePair{Inbound: 3, Outbound: 2}
	}, 5*time.Second, 20*time.Millisecond)

	ini.Stop()
	assert.Eventually(t, func() bool { return accRec.has("logout " + string(accH)) }, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return iniRec.has("logout " + string(iniH)) }, 5*time.Second, 20*time.Millisecond)

	_, err := ini.SequenceNumbers(iniH)
	assert.ErrorIs(t, err, types.ErrNoSession)
	assert.False(t, ini.Send("35=D\x01", iniH))
	ini.Stop()
}

func TestRestartWithSameCompIDs(t *testing.T) {
	port := freePort(t)
	s := loopSettings(types.RoleAcceptor, port, "AGAIN-ACC", "AGAIN-INI")

	first := New(nil)
	require.NoError(t, first.Start(s, &recorder{}))
	first.Stop()

	second := New(nil)
	require.NoError(t, second.Start(s, &recorder{}))
	second.Stop()
}

func TestFailedStartReleasesSession(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port
	s := loopSettings(types.RoleAcceptor, port, "BUSY-ACC", "BUSY-INI")

	assert.Error(t, New(nil).Start(s, &recorder{}))

	require.NoError(t, busy.Close())
	e := New(nil)
	require.NoError(t, e.Start(s, &recorder{}), "session id must be free after a failed start")
	e.Stop()
}

func TestUnknownHandle(t *testing.T) {
	e := New(nil)
	assert.False(t, e.Send("35=D\x01", "nope"))
	_, err := e.SequenceNumbers("nope")
	assert.ErrorIs(t, err, types.ErrNoSession)
	assert.ErrorIs(t, e.ResetSequenceNumbers("nope"), types.ErrNoSession)
	assert.ErrorIs(t, e.SetSequenceNumbers("nope", types.InitialSequence), types.ErrNoSession)
	e.Stop()
}
