// Package ui is the terminal front end: it renders groups and discovered
// lights and turns key presses into store mutations and control calls.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dokzlo13/ambience/internal/control"
	"github.com/dokzlo13/ambience/internal/discovery"
	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/reconcile"
	"github.com/dokzlo13/ambience/internal/registry"
)

type mode int

const (
	modeBrowse mode = iota
	modeDiscover
	modeLight
	modeInput
	modeConfirm
)

type inputPurpose int

const (
	inputNewGroup inputPurpose = iota
	inputRenameGroup
	inputLabel
)

// Deps are the services the UI drives.
type Deps struct {
	Runner  *discovery.Runner
	Groups  *groups.Store
	Lights  *registry.Registry
	Control *control.Facade
}

// row is one line of the browse list: a group header or one of its members.
type row struct {
	group  string
	member *reconcile.Member
}

// Model is the bubbletea model. It is only touched from the bubbletea
// goroutine; blocking work runs in commands and comes back as messages.
type Model struct {
	ctx  context.Context
	deps Deps

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	input   textinput.Model
	styles  styles

	mode    mode
	prev    mode
	purpose inputPurpose

	// browse
	views  []reconcile.GroupView
	rows   []row
	cursor int

	// discovery
	target     string
	entries    []reconcile.Entry
	elsewhere  map[string]string
	discCursor int
	scanning   bool
	waiting    bool
	scanGen    uint64
	lastScan   []registry.Light

	// light detail
	lightID string
	field   int

	// pending input or confirmation subject
	subject string

	status string
	err    error
	width  int
}

// New creates the UI model.
func New(ctx context.Context, deps Deps) *Model {
	st := newStyles()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPink))

	ti := textinput.New()
	ti.CharLimit = 32
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorCyan))
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorForeground))
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorComment))

	m := &Model{
		ctx:       ctx,
		deps:      deps,
		keys:      newKeyMap(),
		help:      help.New(),
		spinner:   sp,
		input:     ti,
		styles:    st,
		elsewhere: make(map[string]string),
	}
	m.rebuild()
	return m
}

// Init starts the first scan so the browse view learns which lights are online.
func (m *Model) Init() tea.Cmd {
	return m.startScan()
}

// startScan supersedes any scan in flight and makes sure exactly one
// command is waiting for results.
func (m *Model) startScan() tea.Cmd {
	m.scanGen = m.deps.Runner.Start(m.ctx)
	m.scanning = true
	m.status = "Scanning…"

	return tea.Batch(m.spinner.Tick, m.listen())
}

// listen returns a command waiting for the next scan result unless one is
// already outstanding.
func (m *Model) listen() tea.Cmd {
	if m.waiting {
		return nil
	}
	m.waiting = true
	return waitForScan(m.deps.Runner.Results())
}

// rebuild refreshes the browse rows from the store and registry.
func (m *Model) rebuild() {
	m.views = reconcile.Groups(m.deps.Groups.Snapshot(), m.deps.Lights)

	m.rows = m.rows[:0]
	for gi := range m.views {
		g := &m.views[gi]
		m.rows = append(m.rows, row{group: g.Label})
		for mi := range g.Members {
			m.rows = append(m.rows, row{group: g.Label, member: &g.Members[mi]})
		}
	}
	m.cursor = clamp(m.cursor, 0, len(m.rows)-1)
}

// reclassify recomputes discovery entries against the current document.
func (m *Model) reclassify() {
	doc := m.deps.Groups.Snapshot()

	m.elsewhere = make(map[string]string)
	for _, e := range reconcile.Reconcile(m.lastScan, doc) {
		if e.Added() {
			m.elsewhere[e.Light.ID] = e.Group
		}
	}

	if m.target != "" {
		m.entries = reconcile.ForGroup(m.lastScan, doc, m.target)
	} else {
		m.entries = reconcile.Reconcile(m.lastScan, doc)
	}
	m.discCursor = clamp(m.discCursor, 0, len(m.entries)-1)
}

// selected returns the browse row under the cursor.
func (m *Model) selected() (row, bool) {
	if len(m.rows) == 0 {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m *Model) currentLight() (registry.Light, bool) {
	return m.deps.Lights.Get(m.lightID)
}

// field identifies an adjustable light property.
type field int

const (
	fieldHue field = iota
	fieldSaturation
	fieldBrightness
	fieldKelvin
	fieldInfrared
)

func (f field) String() string {
	switch f {
	case fieldHue:
		return "Hue"
	case fieldSaturation:
		return "Saturation"
	case fieldBrightness:
		return "Brightness"
	case fieldKelvin:
		return "Kelvin"
	case fieldInfrared:
		return "Infrared"
	}
	return "?"
}

// fieldsFor lists the controls a light supports. Lights whose capabilities
// are unknown get every color control.
func fieldsFor(l registry.Light) []field {
	caps := l.Capabilities
	unknown := caps == 0

	var out []field
	if unknown || caps.Has(lifx.Color) {
		out = append(out, fieldHue, fieldSaturation)
	}
	out = append(out, fieldBrightness)
	if unknown || caps.Has(lifx.Temperature) {
		out = append(out, fieldKelvin)
	}
	if caps.Has(lifx.Infrared) {
		out = append(out, fieldInfrared)
	}
	return out
}

func clamp[T int | float64](v, lo, hi T) T {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}
