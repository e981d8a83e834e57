// Package lifxtest provides in-memory lifx.Client and lifx.Device fakes.
package lifxtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dokzlo13/ambience/internal/lifx"
)

// Device is a scriptable lifx.Device.
type Device struct {
	mu sync.Mutex

	ID       string
	Addr     string
	Name     string
	On       bool
	HSBK     lifx.HSBK
	Caps     lifx.Capabilities
	IR       float64
	Model    string
	Offline  bool // every call fails with lifx.ErrUnreachable
	NoLabel  bool // label fetch fails
	NoID     bool // identifier fetch fails
	SetCalls []string
}

func (d *Device) fail(op string) error {
	return fmt.Errorf("%w: %s %s", lifx.ErrUnreachable, d.ID, op)
}

func (d *Device) record(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline {
		return d.fail(op)
	}
	d.SetCalls = append(d.SetCalls, op)
	return nil
}

// Calls returns the setters invoked so far.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.SetCalls...)
}

func (d *Device) Identifier(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline || d.NoID {
		return "", d.fail("identifier")
	}
	return d.ID, nil
}

func (d *Device) Address(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline {
		return "", d.fail("address")
	}
	return d.Addr, nil
}

func (d *Device) Label(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline || d.NoLabel {
		return "", d.fail("label")
	}
	return d.Name, nil
}

func (d *Device) Power(context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline {
		return false, d.fail("power")
	}
	return d.On, nil
}

func (d *Device) Color(context.Context) (lifx.HSBK, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline {
		return lifx.HSBK{}, d.fail("color")
	}
	return d.HSBK, nil
}

func (d *Device) Capabilities(context.Context) (lifx.Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline {
		return 0, d.fail("capabilities")
	}
	return d.Caps, nil
}

func (d *Device) Infrared(context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline {
		return 0, d.fail("infrared")
	}
	if !d.Caps.Has(lifx.Infrared) {
		return 0, lifx.ErrUnsupported
	}
	return d.IR, nil
}

func (d *Device) Info(context.Context) (lifx.Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Offline {
		return nil, d.fail("info")
	}
	return lifx.Info{lifx.InfoModel: d.Model, lifx.InfoIP: d.Addr}, nil
}

func (d *Device) SetPower(_ context.Context, on bool) error {
	if err := d.record("set_power"); err != nil {
		return err
	}
	d.mu.Lock()
	d.On = on
	d.mu.Unlock()
	return nil
}

func (d *Device) SetColor(_ context.Context, color lifx.HSBK) error {
	if err := d.record("set_color"); err != nil {
		return err
	}
	d.mu.Lock()
	d.HSBK = color
	d.mu.Unlock()
	return nil
}

func (d *Device) SetLabel(_ context.Context, label string) error {
	if err := d.record("set_label"); err != nil {
		return err
	}
	d.mu.Lock()
	d.Name = label
	d.mu.Unlock()
	return nil
}

func (d *Device) SetInfrared(_ context.Context, level float64) error {
	if err := d.record("set_infrared"); err != nil {
		return err
	}
	d.mu.Lock()
	d.IR = level
	d.mu.Unlock()
	return nil
}

// SetOffline toggles reachability.
func (d *Device) SetOffline(offline bool) {
	d.mu.Lock()
	d.Offline = offline
	d.mu.Unlock()
}

// Client is a lifx.Client over a fixed set of fake devices.
type Client struct {
	mu      sync.Mutex
	devices map[string]*Device
	order   []string

	// Visible limits which devices Discover returns; nil means all.
	Visible map[string]bool
	// Gate, when set, blocks Discover until it is closed or ctx ends.
	Gate chan struct{}
	// DiscoverErr is returned by Discover alongside the devices.
	DiscoverErr error
	Scans       int
}

// NewClient returns a client knowing the given devices.
func NewClient(devices ...*Device) *Client {
	c := &Client{devices: make(map[string]*Device)}
	for _, d := range devices {
		c.Add(d)
	}
	return c
}

// Add registers another device.
func (c *Client) Add(d *Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.devices[d.ID]; !ok {
		c.order = append(c.order, d.ID)
	}
	c.devices[d.ID] = d
}

// Get returns the fake registered under id.
func (c *Client) Get(id string) *Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices[id]
}

func (c *Client) Discover(ctx context.Context) ([]lifx.Device, error) {
	c.mu.Lock()
	c.Scans++
	gate := c.Gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []lifx.Device
	for _, id := range c.order {
		if c.Visible != nil && !c.Visible[id] {
			continue
		}
		out = append(out, c.devices[id])
	}
	return out, c.DiscoverErr
}

func (c *Client) Device(id, address string) (lifx.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.devices[id]; ok {
		return d, nil
	}
	// Unknown to the fake network: behaves like a bulb that never answers.
	d := &Device{ID: id, Addr: address, Offline: true}
	c.devices[id] = d
	return d, nil
}
