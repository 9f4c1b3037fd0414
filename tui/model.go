package tui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"go.uber.org/zap"

	"github.com/samaelod/fixdesk/codec"
	"github.com/samaelod/fixdesk/config"
	"github.com/samaelod/fixdesk/connection"
	"github.com/samaelod/fixdesk/logging"
	"github.com/samaelod/fixdesk/types"
)

type screen int

const (
	screenConnect screen = iota
	screenFilePicker
	screenSession
)

// purpose is what a file picked in the browser is used for.
type purpose int

const (
	purposeProfiles purpose = iota
	purposeCapture
)

// form fields, in focus order
const (
	fieldHost = iota
	fieldPort
	fieldSender
	fieldTarget
	fieldRole
	fieldConnect
	fieldProfiles
	formFields
)

// session screen focus
const (
	focusMessages = iota
	focusSend
	focusLogs
	focusCount
)

// Deps are the long-lived collaborators the UI drives.
type Deps struct {
	Manager     *connection.Manager
	Config      *config.Config
	Logs        *logging.Buffer
	Logger      *zap.Logger
	Profiles    *types.Profiles
	ProfilePath string
}

type Model struct {
	screen screen
	back   screen
	deps   Deps
	log    *zap.Logger

	err    error
	status string

	// connect form
	inputs      []textinput.Model
	role        types.Role
	formFocus   int
	profiles    *types.Profiles
	profilePath string
	profileList list.Model

	// picker for selecting Lua profiles and captures
	picker filePicker
	purpose     purpose

	// session screen
	state       types.ConnectionState
	messages    list.Model
	detail      viewport.Model
	logViewport viewport.Model
	logContent  string // cached log content for editor
	send        textinput.Model
	hint        codec.Hint
	focus       int
	template    int
	followTail  bool

	// sequence dialog
	seqOpen   bool
	seqInputs []textinput.Model
	seqFocus  int
	seqErr    error

	width   int
	height  int
	version string
}

const (
	minWindowWidth   = 80
	minWindowHeight  = 20
	defaultListWidth = 44
	minListWidth     = 30
	footerHeight     = 3
	statusHeight     = 3
	sendHeight       = 4
)
