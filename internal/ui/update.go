package ui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dokzlo13/ambience/internal/control"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/registry"
)

// Adjustment steps per key press, in slider units.
const (
	hueStep      = 5.0
	percentStep  = 5.0
	kelvinStep   = 250.0
	infraredStep = 10.0
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanDoneMsg:
		return m, m.handleScan(msg)

	case controlDoneMsg:
		m.handleControl(msg)
		return m, nil

	case groupDoneMsg:
		m.handleGroup(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleScan applies a scan result and re-arms the listener, so results of
// background rescans reach the view too.
func (m *Model) handleScan(msg scanDoneMsg) tea.Cmd {
	m.waiting = false
	res := msg.result
	next := m.listen()

	if res.Generation < m.scanGen {
		// Superseded by a scan we already started
		return next
	}

	own := m.scanning
	m.scanGen = res.Generation
	m.scanning = false
	if res.Err != nil {
		if own {
			if !errors.Is(res.Err, context.Canceled) {
				m.err = fmt.Errorf("scan failed: %w", res.Err)
			}
			m.status = ""
		}
		return next
	}

	m.deps.Groups.RefreshCache(res.Entries())
	m.lastScan = res.Lights
	if own {
		m.err = nil
		m.status = fmt.Sprintf("Found %d lights in %s", len(res.Lights), res.Took.Round(10*time.Millisecond))
	}
	m.rebuild()
	m.reclassify()
	return next
}

func (m *Model) handleControl(msg controlDoneMsg) {
	m.rebuild()
	if msg.err == nil {
		m.err = nil
		return
	}

	name := msg.id
	if l, ok := m.deps.Lights.Get(msg.id); ok && l.Label != "" {
		name = l.Label
	}
	switch {
	case errors.Is(msg.err, lifx.ErrUnreachable):
		m.err = fmt.Errorf("%s is unreachable", name)
	case errors.Is(msg.err, lifx.ErrLabelTooLong):
		m.err = fmt.Errorf("label must fit in %d bytes", lifx.MaxLabelBytes)
	case errors.Is(msg.err, lifx.ErrUnsupported):
		m.err = fmt.Errorf("%s does not support %s", name, msg.op)
	default:
		m.err = fmt.Errorf("%s: %w", name, msg.err)
	}
}

func (m *Model) handleGroup(msg groupDoneMsg) {
	m.rebuild()
	if msg.err != nil {
		m.err = msg.err
		return
	}
	if failed := len(msg.result.Failed); failed > 0 {
		total := failed + len(msg.result.Applied)
		m.err = fmt.Errorf("%s: %d of %d lights unreachable", msg.result.Group, failed, total)
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("%s: %d lights updated", msg.result.Group, len(msg.result.Applied))
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Text entry swallows every key
	switch m.mode {
	case modeInput:
		return m, m.handleInputKey(msg)
	case modeConfirm:
		m.handleConfirmKey(msg)
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	switch m.mode {
	case modeDiscover:
		return m, m.handleDiscoverKey(msg)
	case modeLight:
		return m, m.handleLightKey(msg)
	default:
		return m, m.handleBrowseKey(msg)
	}
}

func (m *Model) handleBrowseKey(msg tea.KeyMsg) tea.Cmd {
	r, ok := m.selected()

	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = clamp(m.cursor-1, 0, len(m.rows)-1)
	case key.Matches(msg, m.keys.Down):
		m.cursor = clamp(m.cursor+1, 0, len(m.rows)-1)

	case key.Matches(msg, m.keys.Open):
		if ok && r.member != nil {
			m.openLight(r.member.ID)
			return refresh(m.ctx, m.deps.Control, r.member.ID)
		}

	case key.Matches(msg, m.keys.Scan):
		m.target = ""
		if ok {
			m.target = r.group
		}
		m.mode = modeDiscover
		m.reclassify()
		return m.startScan()

	case key.Matches(msg, m.keys.Power):
		if !ok {
			return nil
		}
		if r.member != nil {
			return setPower(m.ctx, m.deps.Control, r.member.ID, !r.member.Power)
		}
		return groupPower(m.ctx, m.deps.Control, r.group, !m.anyOn(r.group))

	case key.Matches(msg, m.keys.NewGroup):
		return m.prompt(inputNewGroup, "", "New group name")

	case key.Matches(msg, m.keys.Rename):
		if ok {
			m.subject = r.group
			return m.prompt(inputRenameGroup, r.group, "Group name")
		}

	case key.Matches(msg, m.keys.Delete):
		if ok {
			m.subject = r.group
			m.prev = m.mode
			m.mode = modeConfirm
		}

	case key.Matches(msg, m.keys.Remove):
		if ok && r.member != nil {
			if err := m.deps.Groups.RemoveLight(r.group, r.member.ID); err != nil {
				m.err = err
				return nil
			}
			m.err = nil
			m.status = fmt.Sprintf("Removed %s from %s", r.member.Label, r.group)
			m.rebuild()
		}

	case key.Matches(msg, m.keys.Label):
		if ok && r.member != nil {
			m.subject = r.member.ID
			return m.prompt(inputLabel, r.member.Label, "Light label")
		}
	}
	return nil
}

func (m *Model) handleDiscoverKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.discCursor = clamp(m.discCursor-1, 0, len(m.entries)-1)
	case key.Matches(msg, m.keys.Down):
		m.discCursor = clamp(m.discCursor+1, 0, len(m.entries)-1)

	case key.Matches(msg, m.keys.Scan):
		return m.startScan()

	case key.Matches(msg, m.keys.Toggle):
		if len(m.entries) == 0 {
			return nil
		}
		if m.target == "" {
			m.err = errors.New("create a group first (n)")
			return nil
		}
		entry := &m.entries[m.discCursor]
		if err := control.ToggleMembership(m.deps.Groups, entry, m.target); err != nil {
			m.err = err
			return nil
		}
		m.err = nil
		verb := "Removed"
		if entry.Added() {
			verb = "Added"
		}
		m.status = fmt.Sprintf("%s %s: %s", verb, m.target, entry.Light.Label)
		m.rebuild()
		m.reclassify()

	case key.Matches(msg, m.keys.Power):
		if len(m.entries) > 0 {
			l := m.entries[m.discCursor].Light
			if cur, ok := m.deps.Lights.Get(l.ID); ok {
				l = cur
			}
			return setPower(m.ctx, m.deps.Control, l.ID, !l.Power)
		}

	case key.Matches(msg, m.keys.Open):
		if len(m.entries) > 0 {
			id := m.entries[m.discCursor].Light.ID
			m.openLight(id)
			return refresh(m.ctx, m.deps.Control, id)
		}

	case key.Matches(msg, m.keys.Back):
		m.mode = modeBrowse
		m.rebuild()
	}
	return nil
}

func (m *Model) openLight(id string) {
	m.prev = m.mode
	m.mode = modeLight
	m.lightID = id
	m.field = 0
}

func (m *Model) handleLightKey(msg tea.KeyMsg) tea.Cmd {
	l, ok := m.currentLight()
	if !ok {
		m.mode = modeBrowse
		return nil
	}
	fields := fieldsFor(l)
	m.field = clamp(m.field, 0, len(fields)-1)

	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = m.prev
		if m.mode == modeLight {
			m.mode = modeBrowse
		}
		m.rebuild()
	case key.Matches(msg, m.keys.Up):
		m.field = clamp(m.field-1, 0, len(fields)-1)
	case key.Matches(msg, m.keys.Down):
		m.field = clamp(m.field+1, 0, len(fields)-1)
	case key.Matches(msg, m.keys.Left):
		return m.adjust(l, fields[m.field], -1)
	case key.Matches(msg, m.keys.Right):
		return m.adjust(l, fields[m.field], 1)
	case key.Matches(msg, m.keys.Power):
		return setPower(m.ctx, m.deps.Control, l.ID, !l.Power)
	case key.Matches(msg, m.keys.Label):
		m.subject = l.ID
		return m.prompt(inputLabel, l.Label, "Light label")
	}
	return nil
}

// adjust moves one control a step in dir and pushes the result.
func (m *Model) adjust(l registry.Light, f field, dir float64) tea.Cmd {
	d := l.Color.ToDisplay()
	if d.Kelvin == 0 {
		d.Kelvin = 3500
	}

	switch f {
	case fieldHue:
		d.Hue = math.Mod(d.Hue+dir*hueStep+lifx.HueScale, lifx.HueScale)
	case fieldSaturation:
		d.Saturation = clamp(d.Saturation+dir*percentStep, 0, 100)
	case fieldBrightness:
		d.Brightness = clamp(d.Brightness+dir*percentStep, 0, 100)
	case fieldKelvin:
		d.Kelvin = clamp(d.Kelvin+dir*kelvinStep, float64(lifx.MinKelvin), float64(lifx.MaxKelvin))
	case fieldInfrared:
		level := clamp(lifx.DecodePercent(l.Infrared)+dir*infraredStep, 0, 100)
		return setInfrared(m.ctx, m.deps.Control, l.ID, lifx.EncodePercent(level))
	}
	return setDisplay(m.ctx, m.deps.Control, l.ID, d)
}

func (m *Model) prompt(purpose inputPurpose, value, placeholder string) tea.Cmd {
	m.prev = m.mode
	m.mode = modeInput
	m.purpose = purpose
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.input.Blur()
		m.mode = m.prev
		return nil
	case tea.KeyEnter:
		m.input.Blur()
		m.mode = m.prev
		return m.submit(m.input.Value())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit applies the text entered in the prompt. Store mutations happen
// here on the UI goroutine, so document writes never overlap.
func (m *Model) submit(value string) tea.Cmd {
	var err error

	switch m.purpose {
	case inputNewGroup:
		if err = m.deps.Groups.CreateGroup(value); err == nil {
			m.status = fmt.Sprintf("Created group %q", value)
		}
	case inputRenameGroup:
		if err = m.deps.Groups.RenameGroup(m.subject, value); err == nil {
			if m.target == m.subject {
				m.target = value
			}
			m.status = fmt.Sprintf("Renamed %q to %q", m.subject, value)
		}
	case inputLabel:
		return setLabel(m.ctx, m.deps.Control, m.subject, value)
	}

	m.err = err
	m.rebuild()
	return nil
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) {
	m.mode = m.prev
	if msg.String() != "y" {
		m.status = "Cancelled"
		return
	}

	if err := m.deps.Groups.DeleteGroup(m.subject); err != nil {
		m.err = err
		return
	}
	if m.target == m.subject {
		m.target = ""
	}
	m.err = nil
	m.status = fmt.Sprintf("Deleted group %q", m.subject)
	m.rebuild()
}

func (m *Model) anyOn(group string) bool {
	for _, g := range m.views {
		if g.Label != group {
			continue
		}
		for _, mem := range g.Members {
			if mem.Online && mem.Power {
				return true
			}
		}
	}
	return false
}
