package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/reconcile"
	"github.com/dokzlo13/ambience/internal/registry"
)

const barWidth = 24

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch m.mode {
	case modeDiscover:
		b.WriteString(m.discoverView())
	case modeLight:
		b.WriteString(m.lightView())
	case modeInput:
		b.WriteString(m.input.View())
	case modeConfirm:
		b.WriteString(m.styles.error.Render(fmt.Sprintf("Delete group %q? (y/N)", m.subject)))
	default:
		b.WriteString(m.browseView())
	}

	b.WriteString("\n\n")
	b.WriteString(m.footer())

	return m.styles.app.Render(b.String())
}

func (m *Model) header() string {
	title := "ambience"
	switch m.mode {
	case modeDiscover:
		if m.target != "" {
			title += " · discover for " + m.target
		} else {
			title += " · discover"
		}
	case modeLight:
		title += " · light"
	}

	out := m.styles.title.Render(title)
	if m.scanning {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, "  ", m.spinner.View(), m.styles.help.Render(" scanning"))
	}
	return out
}

func (m *Model) footer() string {
	var lines []string
	if m.err != nil {
		lines = append(lines, m.styles.error.Render(m.err.Error()))
	} else if m.status != "" {
		lines = append(lines, m.styles.status.Render(m.status))
	}
	lines = append(lines, m.help.View(m.keys))
	return strings.Join(lines, "\n")
}

func (m *Model) browseView() string {
	if len(m.rows) == 0 {
		return m.styles.help.Render("No groups yet. Press n to create one, s to scan.")
	}

	var lines []string
	for i, r := range m.rows {
		prefix := "  "
		if i == m.cursor {
			prefix = m.styles.cursor.Render("> ")
		}

		if r.member == nil {
			lines = append(lines, prefix+m.groupLine(r.group))
			continue
		}
		lines = append(lines, prefix+"  "+m.memberLine(*r.member))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) groupLine(label string) string {
	for _, g := range m.views {
		if g.Label == label {
			count := fmt.Sprintf(" (%d/%d online)", g.Online(), len(g.Members))
			return m.styles.group.Render(label) + m.styles.help.Render(count)
		}
	}
	return m.styles.group.Render(label)
}

func (m *Model) memberLine(mem reconcile.Member) string {
	if !mem.Online {
		return m.styles.offline.Render(fmt.Sprintf("○ %s  offline", displayName(mem.Light)))
	}
	power := "off"
	if mem.Power {
		power = "on"
	}
	return m.styles.light.Render(fmt.Sprintf("● %s  %s", displayName(mem.Light), power)) +
		m.styles.help.Render("  "+mem.Address)
}

func (m *Model) discoverView() string {
	if len(m.entries) == 0 {
		if m.scanning {
			return m.styles.help.Render("Looking for lights…")
		}
		return m.styles.help.Render("No lights found. Press s to scan again.")
	}

	var lines []string
	for i, e := range m.entries {
		prefix := "  "
		if i == m.discCursor {
			prefix = m.styles.cursor.Render("> ")
		}

		marker := m.styles.notAdded.Render("[ ]")
		if e.Added() {
			marker = m.styles.added.Render("[x]")
		}

		line := fmt.Sprintf("%s %s %s", marker, displayName(e.Light), m.styles.help.Render(e.Light.ID))
		if g, ok := m.elsewhere[e.Light.ID]; ok && !e.Added() {
			line += m.styles.help.Render("  in " + g)
		}
		lines = append(lines, prefix+line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) lightView() string {
	l, ok := m.currentLight()
	if !ok {
		return m.styles.help.Render("Light is gone.")
	}

	var lines []string
	name := m.styles.group.Render(displayName(l))
	if !l.Online {
		name += m.styles.offline.Render("  offline")
	}
	lines = append(lines, name, "")

	for _, kv := range m.infoRows(l) {
		lines = append(lines, m.styles.label.Render(kv[0])+m.styles.value.Render(kv[1]))
	}
	lines = append(lines, "")

	d := l.Color.ToDisplay()
	for i, f := range fieldsFor(l) {
		prefix := "  "
		if i == m.field {
			prefix = m.styles.cursor.Render("> ")
		}
		value, fraction := fieldValue(f, d, l)
		lines = append(lines, prefix+m.styles.label.Render(f.String())+bar(fraction)+" "+m.styles.value.Render(value))
	}
	return strings.Join(lines, "\n")
}

// infoRows lists identity and the free-form info map in a stable order.
func (m *Model) infoRows(l registry.Light) [][2]string {
	power := "off"
	if l.Power {
		power = "on"
	}
	rows := [][2]string{
		{"ID", l.ID},
		{"Power", power},
		{"Features", l.Capabilities.String()},
	}

	info := l.Info
	group := info[lifx.InfoGroup]
	if group == "" {
		for _, e := range reconcile.Reconcile([]registry.Light{l}, m.deps.Groups.Snapshot()) {
			group = e.Group
		}
	}
	ip := info[lifx.InfoIP]
	if ip == "" {
		ip = l.Address
	}

	for _, kv := range [][2]string{
		{"Model", info[lifx.InfoModel]},
		{"IP", ip},
		{"Group", group},
		{"Location", info[lifx.InfoLocation]},
	} {
		if kv[1] != "" {
			rows = append(rows, kv)
		}
	}
	return rows
}

func fieldValue(f field, d lifx.Display, l registry.Light) (string, float64) {
	switch f {
	case fieldHue:
		return fmt.Sprintf("%d°", int(d.Hue)), d.Hue / lifx.HueScale
	case fieldSaturation:
		return fmt.Sprintf("%d%%", int(d.Saturation)), d.Saturation / 100
	case fieldBrightness:
		return fmt.Sprintf("%d%%", int(d.Brightness)), d.Brightness / 100
	case fieldKelvin:
		span := float64(lifx.MaxKelvin - lifx.MinKelvin)
		return fmt.Sprintf("%dK", int(d.Kelvin)), (d.Kelvin - float64(lifx.MinKelvin)) / span
	case fieldInfrared:
		return fmt.Sprintf("%d%%", int(lifx.DecodePercent(l.Infrared))), l.Infrared
	}
	return "", 0
}

func bar(fraction float64) string {
	filled := int(clamp(fraction, 0, 1) * barWidth)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("·", barWidth-filled) + "]"
}

func displayName(l registry.Light) string {
	if l.Label != "" {
		return l.Label
	}
	return l.ID
}
