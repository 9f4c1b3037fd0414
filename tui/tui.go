package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/config"
	"github.com/samaelod/fixdesk/types"
)

func New(version string, deps Deps) Model {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	m := Model{
		screen:      screenConnect,
		deps:        deps,
		log:         deps.Logger.Named("tui"),
		picker:      newFilePicker(kindProfile, ""),
		profiles:    deps.Profiles,
		profilePath: deps.ProfilePath,
		detail:      viewport.New(10, 10),
		logViewport: viewport.New(10, 10),
		followTail:  true,
		version:     version,
	}

	m.inputs = newFormInputs(deps.Config.DefaultEndpoint())
	m.role = deps.Config.DefaultEndpoint().Role
	m.profileList = newProfileList(m.profiles, defaultListWidth, 10)
	if len(m.profileList.Items()) > 0 {
		m.applyProfile(0)
	}
	m.focusForm(fieldHost)

	m.send = textinput.New()
	m.send.Placeholder = "35=D|11=ORD1|55=MSFT|54=1|38=100|40=1"
	m.send.Prompt = "> "
	m.send.CharLimit = 4096

	m.seqInputs = []textinput.Model{newSeqInput("Inbound"), newSeqInput("Outbound")}

	m.messages = newMessageList(nil, defaultListWidth, 10)
	m.state = types.StateDisconnected
	if deps.Manager != nil {
		m.state = deps.Manager.State()
		m.reloadMessages()
	}
	m.logContent = deps.Logs.ReadAll()
	m.logViewport.SetContent(m.logContent)

	return m
}

func newFormInputs(ep types.SessionEndpoint) []textinput.Model {
	fields := []struct {
		placeholder string
		value       string
	}{
		{"127.0.0.1", ep.Host},
		{"9878", portString(ep.Port)},
		{"SENDER", ep.SenderID},
		{"TARGET", ep.TargetID},
	}

	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = f.placeholder
		ti.Prompt = ""
		ti.CharLimit = 64
		ti.SetValue(f.value)
		inputs[i] = ti
	}
	inputs[fieldPort].CharLimit = 5
	return inputs
}

func newSeqInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.CharLimit = 6
	return ti
}

func portString(p int) string {
	if p == 0 {
		return ""
	}
	return strconv.Itoa(p)
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForLog(m.deps.Logs)}
	if m.deps.Manager != nil {
		cmds = append(cmds, waitForUpdate(m.deps.Manager.Updates()))
	}
	return tea.Batch(cmds...)
}

// Run blocks until the user quits.
func Run(version string, deps Deps) error {
	p := tea.NewProgram(New(version, deps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
