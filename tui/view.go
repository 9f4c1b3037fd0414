package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/types"
)

func renderScrollbar(vp viewport.Model, height int) string {
	total := vp.TotalLineCount()
	visible := vp.VisibleLineCount()

	if total <= visible {
		return ""
	}

	trackHeight := height
	if trackHeight < 1 {
		trackHeight = visible
	}

	scrollPercent := vp.ScrollPercent()

	thumbPos := int(float64(trackHeight-1) * scrollPercent)
	if thumbPos < 0 {
		thumbPos = 0
	}
	if thumbPos > trackHeight-1 {
		thumbPos = trackHeight - 1
	}

	var sb strings.Builder
	for i := 0; i < trackHeight; i++ {
		if i == thumbPos {
			sb.WriteString(scrollbarThumb.Render("█"))
		} else {
			sb.WriteString(scrollbarTrack.Render("│"))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// sessionDims is the session screen geometry shared by layout and View.
type sessionDims struct {
	windowWidth   int
	listWidth     int
	rightWidth    int
	panelHeight   int
	detailsHeight int
	logsHeight    int
}

func (m Model) sessionLayout() sessionDims {
	windowWidth := m.width - 4
	windowHeight := m.height - 4

	// -1 for the title
	availHeight := windowHeight - 1 - footerHeight - statusHeight - sendHeight
	if availHeight < 10 {
		availHeight = 10
	}

	listWidth := defaultListWidth
	if listWidth > windowWidth/3 {
		listWidth = windowWidth / 3
	}
	if listWidth < minListWidth {
		listWidth = minListWidth
	}
	rightWidth := windowWidth - listWidth
	if rightWidth < 0 {
		rightWidth = 0
	}

	logsHeight := (availHeight * 40) / 100
	if m.focus == focusLogs {
		logsHeight = (availHeight * 65) / 100
	}
	detailsHeight := availHeight - logsHeight
	if detailsHeight < 6 {
		detailsHeight = 6
		logsHeight = availHeight - detailsHeight
	}

	return sessionDims{
		windowWidth:   windowWidth,
		listWidth:     listWidth,
		rightWidth:    rightWidth,
		panelHeight:   availHeight,
		detailsHeight: detailsHeight,
		logsHeight:    logsHeight,
	}
}

// layout sizes every component for the current window. It must run after
// a resize or a focus change.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	// Browser: 1/3 for list, 2/3 for preview
	// H - 2 (window) - 1 (title) - 4 (panel border+title) = H - 7
	m.picker.setSize(max(m.width/3-8, 1), max(m.height-10, 1))

	d := m.sessionLayout()
	m.profileList.SetSize(d.listWidth-4, max(m.height-14, 1))
	m.messages.SetSize(d.listWidth-4, d.panelHeight-4)

	// -2 padding, -1 scrollbar; -2 border, -2 title and its margin
	m.detail.Width = d.rightWidth - 3
	m.detail.Height = max(d.detailsHeight-4, 1)
	m.logViewport.Width = d.rightWidth - 3
	m.logViewport.Height = max(d.logsHeight-4, 1)
	m.send.Width = d.windowWidth - 10

	m.refreshDetail()
}

func (m Model) View() string {
	var content string

	// Calculate inner dimensions
	// Window border (2) + margin (2)
	windowWidth := m.width - 4
	windowHeight := m.height - 4

	if windowWidth < minWindowWidth || windowHeight < minWindowHeight {
		return styleScreenTooSmall.
			Width(m.width).
			Height(m.height).
			Render("Terminal window is too small.\nPlease resize.")
	}

	appTitle := styleAppTitle.Width(windowWidth).Render("FIXDESK " + m.version)

	switch m.screen {
	case screenConnect:
		content = lipgloss.JoinVertical(lipgloss.Top,
			appTitle,
			m.viewConnect(windowWidth, windowHeight-1),
		)

	case screenFilePicker:
		content = lipgloss.JoinVertical(lipgloss.Top,
			appTitle,
			m.viewFilePicker(windowWidth, windowHeight-1),
		)

	case screenSession:
		if m.seqOpen {
			content = lipgloss.JoinVertical(lipgloss.Top,
				appTitle,
				lipgloss.Place(windowWidth, windowHeight-1, lipgloss.Center, lipgloss.Center, m.viewSeqDialog()),
			)
			break
		}
		content = lipgloss.JoinVertical(lipgloss.Top, appTitle, m.viewSession())
	}

	// Apply global window style
	return styleWindow.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m Model) viewConnect(width, height int) string {
	listWidth := defaultListWidth
	if listWidth > width/3 {
		listWidth = width / 3
	}
	formWidth := width - listWidth
	panelHeight := height - footerHeight

	// Left: profiles loaded from a Lua file
	profilesTitle := styleTitle.MarginBottom(1).Render("Profiles")
	var profilesContent string
	if len(m.profileList.Items()) == 0 {
		profilesContent = styleSubtext.Render("No profiles loaded.\nctrl+o to open a .lua file.")
	} else {
		profilesContent = m.profileList.View()
	}
	profilesColor := colorSubtext
	if m.formFocus == fieldProfiles {
		profilesColor = colorSecondary
	}
	profilesPanel := stylePanelTitled.
		BorderForeground(profilesColor).
		Width(listWidth - 4).
		Height(panelHeight - 2).
		Render(profilesTitle + "\n" + profilesContent)

	// Right: the endpoint form
	labels := []string{"Host:", "Port:", "Sender:", "Target:"}
	rows := make([]string, 0, len(labels)+6)
	for i, label := range labels {
		labelStyle := styleLabel
		if m.formFocus == i {
			labelStyle = labelStyle.Foreground(colorSecondary)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(label),
			styleValue.Render(m.inputs[i].View()),
		))
	}

	cardInitiator, cardAcceptor := styleMenuItem, styleMenuItem
	if m.role == types.RoleAcceptor {
		cardAcceptor = styleMenuItemSelected
	} else {
		cardInitiator = styleMenuItemSelected
	}
	if m.formFocus == fieldRole {
		cardInitiator = cardInitiator.BorderForeground(colorPrimary)
		cardAcceptor = cardAcceptor.BorderForeground(colorPrimary)
		if m.role == types.RoleAcceptor {
			cardAcceptor = cardAcceptor.BorderForeground(colorSecondary)
		} else {
			cardInitiator = cardInitiator.BorderForeground(colorSecondary)
		}
	}
	roleCards := lipgloss.JoinHorizontal(lipgloss.Center,
		cardInitiator.Render("Initiator"),
		cardAcceptor.Render("Acceptor"),
	)

	state := types.StateDisconnected
	if m.deps.Manager != nil {
		state = m.deps.Manager.State()
	}
	button := styleMenuItem.Foreground(colorSubtext)
	if m.canConnect() {
		button = styleMenuItem.Foreground(colorSuccess)
	}
	if m.formFocus == fieldConnect {
		button = button.BorderForeground(colorSecondary).Bold(true)
	}

	rows = append(rows, "", roleCards, "", button.Render(state.ActionLabel()))
	if m.err != nil {
		rows = append(rows, "", styleError.Render(truncate(m.err.Error(), formWidth-6)))
	} else if m.status != "" {
		rows = append(rows, "", styleSubtext.Render(truncate(m.status, formWidth-6)))
	}

	formTitle := styleTitle.MarginBottom(1).Render("New Session")
	formPanel := stylePanelTitled.
		BorderForeground(colorSubtext).
		Width(formWidth).
		Height(panelHeight - 2).
		Render(formTitle + "\n" + lipgloss.JoinVertical(lipgloss.Left, rows...))

	footer := renderFooter(width,
		"<tab>", "next field",
		"←/→", "role",
		"enter", "confirm",
		"ctrl+o", "open profiles",
		"ctrl+e", "edit profiles",
		"ctrl+c", "quit",
	)

	return lipgloss.JoinVertical(lipgloss.Top,
		lipgloss.JoinHorizontal(lipgloss.Top, profilesPanel, formPanel),
		footer,
	)
}

func (m Model) viewFilePicker(width, height int) string {
	// Split View: Browser (1/3) | Preview (2/3)
	listWidth := width / 3
	previewWidth := width - listWidth

	// Determine border colors
	browserColor := colorSecondary
	if m.picker.accepted > 0 {
		browserColor = colorSuccess
	}

	previewColor := colorSecondary
	if e, ok := m.picker.selected(); ok && e.kind != kindDir {
		if e.kind == m.picker.accept {
			previewColor = colorSuccess
		} else {
			previewColor = colorError
		}
	}

	title := "Select Profiles"
	if m.purpose == purposeCapture {
		title = "Select Capture"
	}
	browserTitle := styleTitle.MarginBottom(1).Render(title)
	browserView := stylePanelTitled.
		BorderForeground(browserColor).
		Width(listWidth - 4).
		Height(height - 2).
		Render(browserTitle + "\n" + m.picker.dir + "\n" + m.picker.View())

	previewTitle := styleTitle.MarginBottom(1).Render("File Preview")

	// Truncate content to fit panel
	contentHeight := height - 5 // -2 border, -1 title, -1 margin, -1 dots
	previewLines := strings.Split(m.picker.preview, "\n")
	if contentHeight > 1 && len(previewLines) > contentHeight {
		previewLines = previewLines[:contentHeight-1]
		previewLines = append(previewLines, "...")
	}
	previewView := stylePanelTitled.
		BorderForeground(previewColor).
		Width(previewWidth).
		Height(height - 2).
		Render(previewTitle + "\n" + strings.Join(previewLines, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, browserView, previewView)
}

func (m Model) viewSession() string {
	d := m.sessionLayout()
	mgr := m.deps.Manager

	// Status line
	state := mgr.State()
	dot := lipgloss.NewStyle().Foreground(stateColor(state)).Render("●")
	parts := []string{
		dot + " " + styleValue.Render(state.String()),
		styleSubtext.Render(mgr.Endpoint().String()),
		styleValue.Render(mgr.Sequence().String()),
		styleValue.Render(fmt.Sprintf("pending=%d", mgr.Pending())),
		styleSubtext.Render(mgr.History().StatusText()),
	}
	statusLine := strings.Join(parts, styleSubtext.Render("  │  "))
	if m.err != nil {
		statusLine += "  " + styleError.Render(m.err.Error())
	} else if m.status != "" {
		statusLine += "  " + styleHintWarn.Render(m.status)
	}
	statusView := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(stateColor(state)).
		Padding(0, 1).
		Width(d.windowWidth - 2).
		MaxHeight(statusHeight).
		Render(statusLine)

	// Left: message list
	messagesTitle := styleTitle.MarginBottom(1).Render("Messages")
	var messagesContent string
	if len(m.messages.Items()) == 0 {
		messagesContent = styleSubtext.Render(mgr.History().StatusText())
	} else {
		messagesContent = m.messages.View()
	}
	messagesColor := colorSubtext
	if m.focus == focusMessages {
		messagesColor = colorSecondary
	}
	messagesPanel := stylePanelTitled.
		BorderForeground(messagesColor).
		Width(d.listWidth - 4).
		Height(d.panelHeight - 2).
		Render(messagesTitle + "\n" + messagesContent)

	// Right top: decoded message
	detailsTitle := styleTitle.MarginBottom(1).Render("Message Details")
	detailsContent := lipgloss.JoinHorizontal(lipgloss.Top,
		m.detail.View(),
		scrollbarTrack.Width(1).Render(renderScrollbar(m.detail, m.detail.Height)),
	)
	detailsPanel := stylePanelTitled.
		BorderForeground(colorSubtext).
		Width(d.rightWidth).
		Height(d.detailsHeight - 2).
		Render(detailsTitle + "\n" + detailsContent)

	// Right bottom: logs
	logsColor := colorSubtext
	if m.focus == focusLogs {
		logsColor = colorSecondary
	}
	logsTitle := styleTitle.MarginBottom(1).Render("Logs")
	logsContent := lipgloss.JoinHorizontal(lipgloss.Top,
		m.logViewport.View(),
		scrollbarTrack.Width(1).Render(renderScrollbar(m.logViewport, m.logViewport.Height)),
	)
	logsPanel := stylePanelTitled.
		BorderForeground(logsColor).
		Width(d.rightWidth).
		Height(d.logsHeight - 2).
		Render(logsTitle + "\n" + logsContent)

	topArea := lipgloss.JoinHorizontal(lipgloss.Top,
		messagesPanel,
		lipgloss.JoinVertical(lipgloss.Top, detailsPanel, logsPanel),
	)

	// Send box with live structure hint
	hint := styleSubtext.Render("Type tag=value pairs separated by | and press enter")
	switch m.hint.Severity {
	case codec.SeverityOK:
		hint = styleHintOK.Render(m.hint.Text)
	case codec.SeverityWarn:
		hint = styleHintWarn.Render(m.hint.Text)
	}
	sendColor := colorSubtext
	if m.focus == focusSend {
		sendColor = colorSecondary
	}
	sendView := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(sendColor).
		Padding(0, 1).
		Width(d.windowWidth - 2).
		Render(m.send.View() + "\n" + hint)

	var footer string
	switch m.focus {
	case focusSend:
		footer = renderFooter(d.windowWidth,
			"enter", "send",
			"ctrl+t", "template",
			"esc", "leave",
			"<tab>", "switch focus",
		)
	case focusLogs:
		footer = renderFooter(d.windowWidth,
			"<tab>", "switch focus",
			"e", "editor",
			"g", "top",
			"G", "bottom",
			"q", "quit",
		)
	default:
		footer = renderFooter(d.windowWidth,
			"<tab>", "switch focus",
			"c", strings.ToLower(state.ActionLabel()),
			"s", "send",
			"r", "reset seq",
			"S", "set seq",
			"x", "clear",
			"X", "cancel pending",
			"i", "import",
			"e", "editor",
			"q", "quit",
		)
	}

	return lipgloss.JoinVertical(lipgloss.Top, statusView, topArea, sendView, footer)
}

func (m Model) viewSeqDialog() string {
	labels := []string{"Inbound:", "Outbound:"}
	rows := []string{styleTitle.MarginBottom(1).Render("Set Sequence Numbers")}
	for i, label := range labels {
		labelStyle := styleLabel
		if m.seqFocus == i {
			labelStyle = labelStyle.Foreground(colorSecondary)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(label),
			m.seqInputs[i].View(),
		))
	}
	rows = append(rows, "", styleSubtext.Render(fmt.Sprintf("Range %d-%d", types.MinSeqNum, types.MaxSeqNum)))
	if m.seqErr != nil {
		rows = append(rows, styleError.Render(m.seqErr.Error()))
	}
	rows = append(rows, "", renderKeys("enter", "apply", "<tab>", "next", "esc", "cancel"))
	return styleDialog.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderKeys renders key/description pairs, key in orange, description in gray.
func renderKeys(pairs ...string) string {
	keyStyle := lipgloss.NewStyle().Foreground(colorSecondary).Bold(true)
	sep := styleSubtext.Render(" • ")

	parts := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+styleSubtext.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, sep)
}

func renderFooter(width int, pairs ...string) string {
	// Wrap footer in a thin border panel
	return lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(colorSubtext).
		Padding(0, 1).
		Width(width - 2).
		Render(renderKeys(pairs...))
}

func renderMessageDetails(msg types.DecodedMessage, width int) string {
	// Label width 10. Gap 1.
	valueMaxWidth := width - 11
	if valueMaxWidth < 5 {
		valueMaxWidth = 5
	}

	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Left,
			styleLabel.Render(label),
			styleValue.Render(truncate(value, valueMaxWidth)),
		)
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		row("Time:", msg.Timestamp.Format("2006-01-02 15:04:05.000")),
		row("Dir:", msg.Direction.Arrow()+" "+msg.Direction.String()),
		row("Type:", fmt.Sprintf("%s (35=%s)", msg.Description, msg.MsgType)),
		row("ID:", msg.ID),
	)

	sectionStyle := lipgloss.NewStyle().
		MarginTop(1).
		Foreground(colorSecondary).
		Bold(true)

	var fields strings.Builder
	for i, f := range msg.Fields {
		if i > 0 {
			fields.WriteByte('\n')
		}
		line := fmt.Sprintf("%5s %-22s %s", f.Tag, truncate(f.Name, 22), f.Value)
		if f.Description != "" {
			line += " " + styleSubtext.Render("("+f.Description+")")
		}
		fields.WriteString(line)
	}
	if len(msg.Fields) == 0 {
		fields.WriteString(styleSubtext.Render("No fields"))
	}

	raw := lipgloss.NewStyle().Width(max(width, 10)).Render(codec.Display(msg.RawText))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		sectionStyle.Render("Fields"),
		fields.String(),
		sectionStyle.Render("Raw"),
		raw,
	)
}

// plainMessageDetails is the unstyled form written to the editor.
func plainMessageDetails(msg types.DecodedMessage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s (35=%s)\n", msg.Timestamp.Format("2006-01-02 15:04:05.000"), msg.Direction, msg.Description, msg.MsgType)
	fmt.Fprintf(&sb, "id: %s\n\n", msg.ID)
	for _, f := range msg.Fields {
		fmt.Fprintf(&sb, "%5s %-22s %s", f.Tag, f.Name, f.Value)
		if f.Description != "" {
			fmt.Fprintf(&sb, " (%s)", f.Description)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\n")
	sb.WriteString(codec.Format(msg.RawText))
	sb.WriteString("\n")
	return sb.String()
}
