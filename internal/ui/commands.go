package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dokzlo13/ambience/internal/control"
	"github.com/dokzlo13/ambience/internal/discovery"
	"github.com/dokzlo13/ambience/internal/lifx"
)

// scanDoneMsg carries a finished scan back to the UI goroutine.
type scanDoneMsg struct {
	result discovery.Result
}

// controlDoneMsg reports a single-light call.
type controlDoneMsg struct {
	id  string
	op  control.Op
	err error
}

// groupDoneMsg reports a group fan-out.
type groupDoneMsg struct {
	result control.GroupResult
	err    error
}

// waitForScan blocks on the runner's result channel. At most one of these is
// outstanding at a time.
func waitForScan(results <-chan discovery.Result) tea.Cmd {
	return func() tea.Msg {
		return scanDoneMsg{result: <-results}
	}
}

func setPower(ctx context.Context, c *control.Facade, id string, on bool) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{id: id, op: control.OpSetPower, err: c.SetPower(ctx, id, on)}
	}
}

func setDisplay(ctx context.Context, c *control.Facade, id string, d lifx.Display) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{id: id, op: control.OpSetColor, err: c.SetDisplay(ctx, id, d)}
	}
}

func setInfrared(ctx context.Context, c *control.Facade, id string, level float64) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{id: id, op: control.OpSetInfrared, err: c.SetInfrared(ctx, id, level)}
	}
}

func setLabel(ctx context.Context, c *control.Facade, id, label string) tea.Cmd {
	return func() tea.Msg {
		return controlDoneMsg{id: id, op: control.OpSetLabel, err: c.SetLabel(ctx, id, label)}
	}
}

func refresh(ctx context.Context, c *control.Facade, id string) tea.Cmd {
	return func() tea.Msg {
		_, err := c.Refresh(ctx, id)
		return controlDoneMsg{id: id, op: control.OpRefresh, err: err}
	}
}

func groupPower(ctx context.Context, c *control.Facade, group string, on bool) tea.Cmd {
	return func() tea.Msg {
		res, err := c.GroupSetPower(ctx, group, on)
		return groupDoneMsg{result: res, err: err}
	}
}
