package tui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samaelod/fixdesk/lua"
)

// fileKind is what the picker makes of a directory entry.
type fileKind int

const (
	kindOther fileKind = iota
	kindDir
	kindProfile
	kindCapture
)

func kindOf(name string, isDir bool) fileKind {
	if isDir {
		return kindDir
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".lua":
		return kindProfile
	case ".pcap", ".pcapng", ".cap":
		return kindCapture
	}
	return kindOther
}

type fileEntry struct {
	name string
	path string
	kind fileKind
	size int64
}

func (e fileEntry) Title() string {
	if e.kind == kindDir {
		return e.name + "/"
	}
	return e.name
}

func (e fileEntry) Description() string {
	if e.kind == kindDir {
		return "Directory"
	}
	return byteSize(e.size)
}

func (e fileEntry) FilterValue() string { return e.name }

func byteSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

type pickerDelegate struct {
	accept fileKind
}

func (d pickerDelegate) Height() int                         { return 1 }
func (d pickerDelegate) Spacing() int                        { return 0 }
func (d pickerDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d pickerDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	e, ok := item.(fileEntry)
	if !ok {
		return
	}

	prefix, style := "  ", lipgloss.NewStyle().Foreground(colorSubtext).Faint(true)
	switch e.kind {
	case kindDir:
		style = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	case d.accept:
		style = lipgloss.NewStyle().Foreground(colorPrimary)
	}
	if index == m.Index() {
		prefix, style = "> ", styleSelected
	}

	line := prefix + e.Title()
	if e.kind == d.accept {
		line += styleSubtext.Render("  " + byteSize(e.size))
	}
	fmt.Fprint(w, style.Render(line))
}

// filePicker browses the file system for one kind of file: Lua profiles or
// packet captures.
type filePicker struct {
	list     list.Model
	dir      string
	accept   fileKind
	accepted int
	preview  string
	err      error
	height   int
}

// newFilePicker opens dir, or the working directory when dir is empty.
func newFilePicker(accept fileKind, dir string) filePicker {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	l := list.New(nil, pickerDelegate{accept: accept}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	p := filePicker{list: l, accept: accept}
	p.open(dir)
	return p
}

// open lists dir with directories first. Hidden entries are skipped.
func (p *filePicker) open(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.err = err
		return
	}
	p.dir, p.err, p.accepted = dir, nil, 0

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	var items []list.Item
	if parent := filepath.Dir(dir); parent != dir {
		items = append(items, fileEntry{name: "..", path: parent, kind: kindDir})
	}
	for _, de := range entries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		e := fileEntry{name: de.Name(), path: filepath.Join(dir, de.Name()), kind: kindOf(de.Name(), de.IsDir())}
		if info, err := de.Info(); err == nil {
			e.size = info.Size()
		}
		if e.kind == p.accept {
			p.accepted++
		}
		items = append(items, e)
	}

	p.list.ResetFilter()
	p.list.SetItems(items)
	p.list.ResetSelected()
	p.refreshPreview()
}

func (p filePicker) selected() (fileEntry, bool) {
	e, ok := p.list.SelectedItem().(fileEntry)
	return e, ok
}

// picked is the path under the cursor when it is a file of the accepted kind.
func (p filePicker) picked() (string, bool) {
	e, ok := p.selected()
	if !ok || e.kind != p.accept {
		return "", false
	}
	return e.path, true
}

func (p filePicker) filtering() bool { return p.list.SettingFilter() }
func (p filePicker) filtered() bool  { return p.list.FilterState() != list.Unfiltered }

func (p *filePicker) refreshPreview() {
	e, ok := p.selected()
	if !ok {
		p.preview = ""
		return
	}

	var text string
	switch e.kind {
	case kindDir:
		text = fmt.Sprintf("Directory: %s\n\nItems: %d", e.name, countEntries(e.path))
	case kindProfile:
		if p.accept != kindProfile {
			text = "Lua profile file. Profiles are loaded from the connect screen."
			break
		}
		text = profilesPreview(e.path)
	case kindCapture:
		if p.accept != kindCapture {
			text = "Packet capture. Captures are imported from the session screen."
			break
		}
		text = fmt.Sprintf("Capture file\nSize: %s\n\nEnter imports its FIX messages into the message log.", byteSize(e.size))
	default:
		text = "File type not supported."
	}

	if limit := p.height; limit > 0 {
		if lines := strings.Split(text, "\n"); len(lines) > limit {
			text = strings.Join(lines[:limit], "\n") + "\n... (truncated)"
		}
	}
	p.preview = text
}

// Update moves the cursor and walks directories: enter opens the directory
// under the cursor, backspace or left goes up one level.
func (p filePicker) Update(msg tea.Msg) (filePicker, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && !p.filtering() {
		switch key.String() {
		case "enter":
			if e, ok := p.selected(); ok && e.kind == kindDir {
				p.open(e.path)
				return p, nil
			}
		case "backspace", "left":
			if parent := filepath.Dir(p.dir); parent != p.dir {
				p.open(parent)
				return p, nil
			}
		}
	}

	var cmd tea.Cmd
	prev := p.list.Index()
	p.list, cmd = p.list.Update(msg)
	if p.list.Index() != prev {
		p.refreshPreview()
	}
	return p, cmd
}

func (p *filePicker) setSize(width, height int) {
	p.height = height
	p.list.SetSize(width, height)
	p.refreshPreview()
}

func (p filePicker) View() string {
	if p.err != nil {
		return styleError.Render(p.err.Error()) + "\n" + p.list.View()
	}
	return p.list.View()
}

// profilesPreview lists the sessions and templates in a Lua profile file,
// or the parse error when it does not load.
func profilesPreview(path string) string {
	p, err := lua.ReadProfiles(path)
	if err != nil {
		return "Invalid profile file:\n\n" + err.Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sessions: %d\n", len(p.Sessions))
	for _, s := range p.Sessions {
		fmt.Fprintf(&sb, "  %-16s %-9s %s:%d  %s -> %s\n", s.Name, s.Role, s.Host, s.Port, s.Sender, s.Target)
	}
	fmt.Fprintf(&sb, "\nMessage templates: %d\n", len(p.Messages))
	for _, t := range p.Messages {
		fmt.Fprintf(&sb, "  %-16s %s\n", t.Name, t.Value)
	}
	return sb.String()
}

func countEntries(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n
}
