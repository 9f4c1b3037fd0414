package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/config"
	"github.com/samaelod/fixdesk/connection"
	"github.com/samaelod/fixdesk/types"
)

func newTestModel(t *testing.T, profiles *types.Profiles) Model {
	t.Helper()
	mgr := connection.NewManager(connection.Options{})
	t.Cleanup(func() { mgr.Shutdown(time.Second) })

	m := New("test", Deps{Manager: mgr, Config: config.Default(), Profiles: profiles})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 50})
	return next.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func TestFormEndpoint(t *testing.T) {
	m := newTestModel(t, nil)
	assert.False(t, m.canConnect(), "sender and target start empty")

	m.inputs[fieldSender].SetValue("CLIENT")
	m.inputs[fieldTarget].SetValue("BROKER")
	ep, err := m.endpoint()
	require.NoError(t, err)
	assert.Equal(t, types.SessionEndpoint{Host: "127.0.0.1", Port: 9878, SenderID: "CLIENT", TargetID: "BROKER", Role: types.RoleInitiator}, ep)
	assert.True(t, m.canConnect())

	m.inputs[fieldPort].SetValue("98x")
	_, err = m.endpoint()
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)

	m.inputs[fieldPort].SetValue("70000")
	_, err = m.endpoint()
	assert.ErrorIs(t, err, types.ErrInvalidEndpoint)
}

func TestRoleToggle(t *testing.T) {
	m := newTestModel(t, nil)
	m.focusForm(fieldRole)
	m = press(m, "l")
	assert.Equal(t, types.RoleAcceptor, m.role)
	m = press(m, "h")
	assert.Equal(t, types.RoleInitiator, m.role)
}

func TestProfilesFillForm(t *testing.T) {
	profiles := &types.Profiles{Sessions: []types.Profile{
		{Name: "uat", Host: "10.0.0.5", Port: 9880, Sender: "A", Target: "B", Role: "acceptor"},
		{Name: "prod", Host: "10.0.0.6", Port: 9881, Sender: "C", Target: "D", Role: "initiator"},
	}}
	m := newTestModel(t, profiles)

	ep, err := m.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ep.Host)
	assert.Equal(t, types.RoleAcceptor, ep.Role)

	m.focusForm(fieldProfiles)
	m = press(m, "j", "enter")
	ep, err = m.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "prod", m.profileList.SelectedItem().(profileItem).Name)
	assert.Equal(t, types.SessionEndpoint{Host: "10.0.0.6", Port: 9881, SenderID: "C", TargetID: "D", Role: types.RoleInitiator}, ep)
	assert.Equal(t, fieldConnect, m.formFocus)
}

func TestConnectInvalidFormStays(t *testing.T) {
	m := newTestModel(t, nil)
	m.focusForm(fieldConnect)
	m = press(m, "enter")
	assert.Equal(t, screenConnect, m.screen)
	assert.ErrorIs(t, m.err, types.ErrInvalidEndpoint)
}

func TestSeqDialog(t *testing.T) {
	m := newTestModel(t, nil)
	m.screen = screenSession
	m = press(m, "S")
	require.True(t, m.seqOpen)
	assert.Equal(t, "1", m.seqInputs[0].Value())

	m.seqInputs[0].SetValue("0")
	m = press(m, "enter")
	assert.True(t, m.seqOpen)
	assert.ErrorIs(t, m.seqErr, types.ErrOutOfRangeSeqNum)

	m.seqInputs[0].SetValue("abc")
	m = press(m, "enter")
	assert.ErrorIs(t, m.seqErr, types.ErrOutOfRangeSeqNum)

	m.seqInputs[0].SetValue("7")
	m.seqInputs[1].SetValue("12")
	m = press(m, "enter")
	assert.False(t, m.seqOpen)
	assert.Equal(t, types.SequencePair{Inbound: 7, Outbound: 12}, m.deps.Manager.Sequence())
}

func TestSendRequiresSession(t *testing.T) {
	m := newTestModel(t, nil)
	m.screen = screenSession
	m = press(m, "s")
	require.Equal(t, focusSend, m.focus)

	m.send.SetValue("35=0")
	m = press(m, "enter")
	assert.ErrorIs(t, m.err, types.ErrNotConnected)
	assert.Equal(t, "35=0", m.send.Value(), "text is kept when the send is refused")
}

func TestSendHint(t *testing.T) {
	m := newTestModel(t, nil)
	m.screen = screenSession
	m = press(m, "s", "3", "5", "=", "D")
	assert.Equal(t, codec.SeverityWarn, m.hint.Severity)
}

func TestTemplateCycle(t *testing.T) {
	profiles := &types.Profiles{Messages: []types.Template{{Name: "hb", Value: "35=0"}, {Name: "test", Value: "35=1|112=X"}}}
	m := newTestModel(t, profiles)
	m.screen = screenSession
	m = press(m, "s")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	assert.Equal(t, "35=0", m.send.Value())
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	assert.Equal(t, "35=1|112=X", m.send.Value())
}

func TestImportedMessagesListed(t *testing.T) {
	m := newTestModel(t, nil)
	m.screen = screenSession

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	msgs := []types.DecodedMessage{
		codec.Decode("8=FIXT.1.1\x019=5\x0135=0\x0110=003\x01", types.Inbound, at),
		codec.Decode("8=FIXT.1.1\x019=5\x0135=D\x0111=1\x0110=003\x01", types.Outbound, at),
	}
	next, _ := m.Update(captureLoadedMsg{messages: msgs, path: "/tmp/session.pcapng"})
	m = next.(Model)

	require.Len(t, m.messages.Items(), 2)
	assert.Equal(t, 1, m.messages.Index(), "list follows the newest message")
	assert.Contains(t, m.status, "Imported 2 messages")

	m = press(m, "x")
	assert.Empty(t, m.deps.Manager.Messages())
}

func TestRenderMessageDetails(t *testing.T) {
	msg := codec.Decode("8=FIXT.1.1\x019=20\x0135=D\x0111=ORD1\x0154=1\x0110=001\x01", types.Outbound, time.Now())
	out := plainMessageDetails(msg)
	assert.Contains(t, out, "New Order Single")
	assert.Contains(t, out, "ClOrdID")
	assert.Contains(t, out, "ORD1")

	assert.Contains(t, renderMessageDetails(msg, 80), "Fields")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abcd", 3))
	assert.Equal(t, "…", truncate("abcd", 1))
}
