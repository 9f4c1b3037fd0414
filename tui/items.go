package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samaelod/fixdesk/types"
)

type messageItem types.DecodedMessage

func (i messageItem) Title() string {
	return fmt.Sprintf("%s %s %s", i.Timestamp.Format("15:04:05.000"), i.Direction.Arrow(), i.Description)
}
func (i messageItem) Description() string { return i.RawText }
func (i messageItem) FilterValue() string { return i.Description + " " + i.MsgType }

type messagesDelegate struct{}

func (d messagesDelegate) Height() int                               { return 1 }
func (d messagesDelegate) Spacing() int                              { return 0 }
func (d messagesDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d messagesDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(messageItem)
	if !ok {
		return
	}

	str := i.Title()
	if width := m.Width() - 2; width > 1 && lipgloss.Width(str) > width {
		str = truncate(str, width)
	}

	if index == m.Index() {
		fmt.Fprint(w, styleSelected.Render("> "+str))
		return
	}
	style := styleInbound
	if i.Direction == types.Outbound {
		style = styleOutbound
	}
	fmt.Fprint(w, style.Render("  "+str))
}

type profileItem types.Profile

func (p profileItem) Title() string {
	return p.Name
}
func (p profileItem) Description() string {
	return fmt.Sprintf("%s %s:%d", p.Role, p.Host, p.Port)
}
func (p profileItem) FilterValue() string { return p.Name }

type profilesDelegate struct{}

func (d profilesDelegate) Height() int                               { return 1 }
func (d profilesDelegate) Spacing() int                              { return 0 }
func (d profilesDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d profilesDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	p, ok := listItem.(profileItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%s  %s", p.Title(), styleSubtext.Render(p.Description()))
	if index == m.Index() {
		fmt.Fprint(w, styleSelected.Render("> "+p.Title())+"  "+styleSubtext.Render(p.Description()))
		return
	}
	fmt.Fprint(w, lipgloss.NewStyle().Foreground(colorText).Render("  "+str))
}

func newMessageList(msgs []types.DecodedMessage, width, height int) list.Model {
	l := list.New(messageItems(msgs), messagesDelegate{}, width, height)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	return l
}

func messageItems(msgs []types.DecodedMessage) []list.Item {
	items := make([]list.Item, 0, len(msgs))
	for _, msg := range msgs {
		items = append(items, messageItem(msg))
	}
	return items
}

func newProfileList(p *types.Profiles, width, height int) list.Model {
	var items []list.Item
	if p != nil {
		for _, s := range p.Sessions {
			items = append(items, profileItem(s))
		}
	}
	l := list.New(items, profilesDelegate{}, width, height)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	return l
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
