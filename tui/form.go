package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/samaelod/fixdesk/types"
)

// endpoint builds the endpoint described by the connect form.
func (m Model) endpoint() (types.SessionEndpoint, error) {
	ep := types.SessionEndpoint{
		Host:     strings.TrimSpace(m.inputs[fieldHost].Value()),
		SenderID: strings.TrimSpace(m.inputs[fieldSender].Value()),
		TargetID: strings.TrimSpace(m.inputs[fieldTarget].Value()),
		Role:     m.role,
	}
	if v := strings.TrimSpace(m.inputs[fieldPort].Value()); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return ep, fmt.Errorf("%w: port %q is not a number", types.ErrInvalidEndpoint, v)
		}
		ep.Port = port
	}
	return ep, ep.Validate()
}

// canConnect reports whether the connect action is enabled.
func (m Model) canConnect() bool {
	_, err := m.endpoint()
	return err == nil
}

func (m *Model) focusForm(field int) {
	m.formFocus = (field + formFields) % formFields
	for i := range m.inputs {
		if i == m.formFocus {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *Model) applyProfile(index int) {
	items := m.profileList.Items()
	if index < 0 || index >= len(items) {
		return
	}
	p, ok := items[index].(profileItem)
	if !ok {
		return
	}
	ep, err := types.Profile(p).Endpoint()
	if err != nil {
		m.err = err
		return
	}
	m.inputs[fieldHost].SetValue(ep.Host)
	m.inputs[fieldPort].SetValue(portString(ep.Port))
	m.inputs[fieldSender].SetValue(ep.SenderID)
	m.inputs[fieldTarget].SetValue(ep.TargetID)
	m.role = ep.Role
	m.status = "Loaded profile " + p.Name
}

func (m *Model) toggleRole() {
	if m.role == types.RoleAcceptor {
		m.role = types.RoleInitiator
	} else {
		m.role = types.RoleAcceptor
	}
}

func (m Model) updateConnect(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.formFocus < len(m.inputs) {
			var cmd tea.Cmd
			m.inputs[m.formFocus], cmd = m.inputs[m.formFocus].Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch key.String() {
	case "tab":
		m.focusForm(m.formFocus + 1)
		return m, nil
	case "shift+tab":
		m.focusForm(m.formFocus - 1)
		return m, nil
	case "down":
		if m.formFocus != fieldProfiles {
			m.focusForm(m.formFocus + 1)
			return m, nil
		}
	case "up":
		if m.formFocus != fieldProfiles || m.profileList.Index() == 0 {
			m.focusForm(m.formFocus - 1)
			return m, nil
		}
	case "ctrl+o":
		return m.openBrowser(purposeProfiles)
	case "esc":
		if m.deps.Manager != nil && m.deps.Manager.State() != types.StateDisconnected {
			m.screen = screenSession
		}
		return m, nil
	}

	switch m.formFocus {
	case fieldRole:
		switch key.String() {
		case "left", "right", "h", "l", " ":
			m.toggleRole()
		case "enter":
			m.focusForm(fieldConnect)
		}
		return m, nil

	case fieldConnect:
		if key.String() == "enter" {
			return m.connect()
		}
		return m, nil

	case fieldProfiles:
		switch key.String() {
		case "enter":
			m.applyProfile(m.profileList.Index())
			m.focusForm(fieldConnect)
			return m, nil
		}
		var cmd tea.Cmd
		m.profileList, cmd = m.profileList.Update(msg)
		return m, cmd
	}

	if key.String() == "enter" {
		m.focusForm(m.formFocus + 1)
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.formFocus], cmd = m.inputs[m.formFocus].Update(msg)
	return m, cmd
}

func (m Model) connect() (tea.Model, tea.Cmd) {
	ep, err := m.endpoint()
	if err != nil {
		m.err = err
		return m, nil
	}
	if m.deps.Manager == nil {
		return m, nil
	}
	if err := m.deps.Manager.Connect(ep); err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.status = ""
	m.state = m.deps.Manager.State()
	m.screen = screenSession
	m.setFocus(focusMessages)
	m.layout()
	return m, nil
}
