package tui

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/connection"
	"github.com/samaelod/fixdesk/logging"
	"github.com/samaelod/fixdesk/lua"
	"github.com/samaelod/fixdesk/pcapreader"
	"github.com/samaelod/fixdesk/types"
)

func openInEditor(prefix, content string) tea.Cmd {
	// Create temp file first
	f, err := os.CreateTemp("", prefix+"-*.log")
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}

	_, err = f.WriteString(content)
	if err != nil {
		f.Close()
		return func() tea.Msg { return errMsg{err} }
	}
	f.Close()
	tempPath := f.Name()

	c := exec.Command(editor(), tempPath)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		// Clean up temp file after editor closes
		os.Remove(tempPath)
		return nil
	})
}

func editor() string {
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "nano"
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if msg.String() == "q" && !m.typing() {
			return m, tea.Quit
		}
	}

	// Handle global messages regardless of screen
	switch msg := msg.(type) {
	case updateMsg:
		cmd := m.applyUpdate(connection.Update(msg))
		return m, tea.Batch(cmd, waitForUpdate(m.deps.Manager.Updates()))

	case logMsg:
		m.logContent = m.deps.Logs.ReadAll()
		m.logViewport.SetContent(m.logContent)
		if m.focus != focusLogs || m.logViewport.AtBottom() {
			m.logViewport.GotoBottom()
		}
		return m, waitForLog(m.deps.Logs)

	case profilesLoadedMsg:
		m.profiles = msg.profiles
		m.profilePath = msg.path
		m.profileList = newProfileList(msg.profiles, m.profileList.Width(), m.profileList.Height())
		m.template = 0
		m.err = nil
		if len(m.profileList.Items()) > 0 {
			m.applyProfile(0)
		}
		m.status = fmt.Sprintf("Loaded %d profiles from %s", len(m.profileList.Items()), filepath.Base(msg.path))
		return m, nil

	case captureLoadedMsg:
		m.deps.Manager.Import(msg.messages)
		m.status = fmt.Sprintf("Imported %d messages from %s", len(msg.messages), filepath.Base(msg.path))
		m.reloadMessages()
		return m, nil

	case savedMsg:
		m.log.Info("profile saved", zap.String("path", msg.path))
		return m, nil

	case editorFinishedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if m.profilePath != "" {
			return m, loadProfilesCmd(m.profilePath)
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	switch m.screen {
	case screenConnect:
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+e" && m.profilePath != "" {
			c := exec.Command(editor(), m.profilePath)
			return m, tea.ExecProcess(c, func(err error) tea.Msg {
				return editorFinishedMsg{err}
			})
		}
		return m.updateConnect(msg)

	case screenFilePicker:
		return m.updateFilePicker(msg)

	case screenSession:
		if m.seqOpen {
			return m.updateSeqDialog(msg)
		}
		return m.updateSession(msg)
	}

	return m, nil
}

// typing reports whether keys currently go to a text input.
func (m Model) typing() bool {
	switch {
	case m.screen == screenConnect:
		return m.formFocus < len(m.inputs)
	case m.screen == screenSession:
		return m.seqOpen || m.focus == focusSend
	case m.screen == screenFilePicker:
		return m.picker.filtering()
	}
	return false
}

func (m *Model) applyUpdate(u connection.Update) tea.Cmd {
	switch u.Kind {
	case connection.UpdateState:
		prev := m.state
		m.state = u.State
		switch {
		case u.State == types.StateConnected && prev != types.StateConnected:
			m.err = nil
			m.status = "Logged on"
			return m.saveRecentCmd(m.deps.Manager.Endpoint())
		case u.State == types.StateDisconnected && prev != types.StateDisconnected:
			m.status = "Session ended"
		}
	case connection.UpdateMessage, connection.UpdateCleared:
		m.reloadMessages()
	case connection.UpdateError:
		m.err = u.Err
	}
	return nil
}

func (m *Model) reloadMessages() {
	if m.deps.Manager == nil {
		return
	}
	msgs := m.deps.Manager.Messages()
	follow := m.followTail || len(m.messages.Items()) == 0
	index := m.messages.Index()

	m.messages.SetItems(messageItems(msgs))
	if follow && len(msgs) > 0 {
		m.messages.Select(len(msgs) - 1)
	} else if index < len(msgs) {
		m.messages.Select(index)
	}
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	item, ok := m.messages.SelectedItem().(messageItem)
	if !ok {
		m.detail.SetContent(styleSubtext.Render("No message selected"))
		return
	}
	m.detail.SetContent(renderMessageDetails(types.DecodedMessage(item), m.detail.Width))
	m.detail.GotoTop()
}

func (m *Model) setFocus(f int) {
	m.focus = (f + focusCount) % focusCount
	if m.focus == focusSend {
		m.send.Focus()
	} else {
		m.send.Blur()
	}
	m.layout()
}

func (m Model) updateSession(msg tea.Msg) (tea.Model, tea.Cmd) {
	mgr := m.deps.Manager
	key, isKey := msg.(tea.KeyMsg)

	if isKey && m.focus == focusSend {
		switch key.String() {
		case "enter":
			if err := mgr.Send(m.send.Value()); err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.status = "Message queued"
			m.send.Reset()
			m.hint = codec.Hint{}
			return m, nil
		case "esc":
			m.setFocus(focusMessages)
			return m, nil
		case "tab":
			m.setFocus(m.focus + 1)
			return m, nil
		case "shift+tab":
			m.setFocus(m.focus - 1)
			return m, nil
		case "ctrl+t":
			m.nextTemplate()
			return m, nil
		}
		var cmd tea.Cmd
		m.send, cmd = m.send.Update(msg)
		m.hint = codec.Check(m.send.Value())
		return m, cmd
	}

	if isKey {
		switch key.String() {
		case "tab":
			m.setFocus(m.focus + 1)
			return m, nil
		case "shift+tab":
			m.setFocus(m.focus - 1)
			return m, nil
		case "s", "/":
			m.setFocus(focusSend)
			return m, nil
		case "c":
			ep := mgr.Endpoint()
			if mgr.State() == types.StateDisconnected {
				formEp, err := m.endpoint()
				if err != nil {
					m.err = err
					return m, nil
				}
				ep = formEp
			}
			if err := mgr.Toggle(ep); err != nil {
				m.err = err
			}
			m.state = mgr.State()
			return m, nil
		case "r":
			if err := mgr.ResetSequence(); err != nil {
				m.err = err
			} else {
				m.status = "Sequence numbers reset"
			}
			return m, nil
		case "S":
			m.openSeqDialog()
			return m, nil
		case "x":
			mgr.ClearLog()
			m.status = "Message log cleared"
			return m, nil
		case "X":
			mgr.CancelPending()
			m.status = "Pending sends cancelled"
			return m, nil
		case "i":
			return m.openBrowser(purposeCapture)
		case "e":
			if m.focus == focusLogs {
				return m, openInEditor("fixdesk-logs", m.logContent)
			}
			if item, ok := m.messages.SelectedItem().(messageItem); ok {
				return m, openInEditor("fixdesk-message", plainMessageDetails(types.DecodedMessage(item)))
			}
			return m, nil
		case "g":
			if m.focus == focusLogs {
				m.logViewport.GotoTop()
			} else {
				m.messages.Select(0)
				m.followTail = false
				m.refreshDetail()
			}
			return m, nil
		case "G":
			if m.focus == focusLogs {
				m.logViewport.GotoBottom()
			} else if n := len(m.messages.Items()); n > 0 {
				m.messages.Select(n - 1)
				m.followTail = true
				m.refreshDetail()
			}
			return m, nil
		case "esc":
			if mgr.State() == types.StateDisconnected {
				m.screen = screenConnect
				m.focusForm(fieldConnect)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusMessages:
		prev := m.messages.Index()
		m.messages, cmd = m.messages.Update(msg)
		if m.messages.Index() != prev {
			m.followTail = m.messages.Index() == len(m.messages.Items())-1
			m.refreshDetail()
		}
	case focusLogs:
		m.logViewport, cmd = m.logViewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) nextTemplate() {
	if m.profiles == nil || len(m.profiles.Messages) == 0 {
		m.status = "No message templates loaded"
		return
	}
	t := m.profiles.Messages[m.template%len(m.profiles.Messages)]
	m.template++
	m.send.SetValue(t.Value)
	m.send.CursorEnd()
	m.hint = codec.Check(t.Value)
	m.status = "Template: " + t.Name
}

func (m *Model) openSeqDialog() {
	seq := m.deps.Manager.Sequence()
	m.seqInputs[0].SetValue(strconv.FormatUint(seq.Inbound, 10))
	m.seqInputs[1].SetValue(strconv.FormatUint(seq.Outbound, 10))
	m.seqErr = nil
	m.seqOpen = true
	m.focusSeq(0)
}

func (m *Model) focusSeq(i int) {
	m.seqFocus = (i + len(m.seqInputs)) % len(m.seqInputs)
	for j := range m.seqInputs {
		if j == m.seqFocus {
			m.seqInputs[j].Focus()
		} else {
			m.seqInputs[j].Blur()
		}
	}
}

func parseSeq(label, v string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", types.ErrOutOfRangeSeqNum, label, v)
	}
	return n, nil
}

func (m Model) updateSeqDialog(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.seqOpen = false
			return m, nil
		case "tab", "shift+tab", "up", "down":
			m.focusSeq(m.seqFocus + 1)
			return m, nil
		case "enter":
			in, err := parseSeq("inbound", m.seqInputs[0].Value())
			if err != nil {
				m.seqErr = err
				return m, nil
			}
			out, err := parseSeq("outbound", m.seqInputs[1].Value())
			if err != nil {
				m.seqErr = err
				return m, nil
			}
			if err := m.deps.Manager.SetSequence(in, out); err != nil {
				m.seqErr = err
				return m, nil
			}
			m.seqOpen = false
			m.status = fmt.Sprintf("Sequence numbers set to in=%d out=%d", in, out)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.seqInputs[m.seqFocus], cmd = m.seqInputs[m.seqFocus].Update(msg)
	return m, cmd
}

func (m Model) openBrowser(p purpose) (tea.Model, tea.Cmd) {
	accept := kindProfile
	if p == purposeCapture {
		accept = kindCapture
	}
	m.purpose = p
	m.picker = newFilePicker(accept, m.picker.dir)
	m.back = m.screen
	m.screen = screenFilePicker
	m.layout()
	return m, nil
}

func (m Model) updateFilePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && !m.picker.filtering() {
		switch key.String() {
		case "esc":
			if !m.picker.filtered() {
				m.screen = m.back
				return m, nil
			}
		case "enter":
			if path, ok := m.picker.picked(); ok {
				m.log.Info("file selected", zap.String("path", path))
				m.screen = m.back
				if m.purpose == purposeCapture {
					return m, loadCaptureCmd(path, m.captureLocalPort(), m.log)
				}
				return m, loadProfilesCmd(path)
			}
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

// captureLocalPort is the port treated as ours when classifying captured
// frames. An initiator's port is ephemeral, so it is inferred instead.
func (m Model) captureLocalPort() int {
	ep := m.deps.Manager.Endpoint()
	if ep.Role == types.RoleAcceptor {
		return ep.Port
	}
	return 0
}

func (m Model) saveRecentCmd(ep types.SessionEndpoint) tea.Cmd {
	p := &types.Profiles{Sessions: []types.Profile{types.ProfileFor("", ep)}}
	if m.profiles != nil {
		p.Messages = m.profiles.Messages
	}
	dir := m.deps.Config.RecentDir
	return func() tea.Msg {
		path, err := lua.SaveToRecent(dir, p, p.Sessions[0].Name)
		if err != nil {
			return errMsg{err}
		}
		return savedMsg{path}
	}
}

func loadProfilesCmd(path string) tea.Cmd {
	return func() tea.Msg {
		p, err := lua.ReadProfiles(path)
		if err != nil {
			return errMsg{fmt.Errorf("load profiles: %w", err)}
		}
		return profilesLoadedMsg{profiles: p, path: path}
	}
}

func loadCaptureCmd(path string, localPort int, log *zap.Logger) tea.Cmd {
	return func() tea.Msg {
		msgs, err := pcapreader.ReadPCAP(path, pcapreader.Options{LocalPort: localPort, Logger: log})
		if err != nil {
			return errMsg{fmt.Errorf("import capture: %w", err)}
		}
		return captureLoadedMsg{messages: msgs, path: path}
	}
}

type profilesLoadedMsg struct {
	profiles *types.Profiles
	path     string
}

type captureLoadedMsg struct {
	messages []types.DecodedMessage
	path     string
}

type updateMsg connection.Update
type savedMsg struct{ path string }
type errMsg struct{ err error }
type editorFinishedMsg struct{ err error }
type logMsg string

func waitForUpdate(ch <-chan connection.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func waitForLog(buf *logging.Buffer) tea.Cmd {
	return func() tea.Msg {
		ch := buf.Chan()
		if ch == nil {
			return nil
		}
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(msg)
	}
}
