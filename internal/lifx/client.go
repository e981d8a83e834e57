// Package lifx adapts the lifxlan LAN library to the small device surface
// the rest of ambience works with.
package lifx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.yhsif.com/lifxlan"
	"go.yhsif.com/lifxlan/light"
)

// DefaultPort is the UDP port LIFX bulbs listen on.
const DefaultPort = "56700"

// MaxLabelBytes is the size of a bulb's label field in UTF-8 bytes.
const MaxLabelBytes = lifxlan.LabelLength

// Raw LAN message types the lifxlan Device interface does not wrap.
const (
	msgSetLabel    lifxlan.MessageType = 24
	msgSetInfrared lifxlan.MessageType = 122
)

// Device is a single LIFX light.
type Device interface {
	// Identifier returns the stable hardware address (MAC) of the light.
	Identifier(ctx context.Context) (string, error)
	// Address returns the ip:port the light answers on.
	Address(ctx context.Context) (string, error)

	Label(ctx context.Context) (string, error)
	Power(ctx context.Context) (bool, error)
	Color(ctx context.Context) (HSBK, error)
	Capabilities(ctx context.Context) (Capabilities, error)
	Infrared(ctx context.Context) (float64, error)
	Info(ctx context.Context) (Info, error)

	SetPower(ctx context.Context, on bool) error
	SetColor(ctx context.Context, color HSBK) error
	SetLabel(ctx context.Context, label string) error
	SetInfrared(ctx context.Context, level float64) error
}

// Client enumerates and addresses lights on the LAN.
type Client interface {
	// Discover broadcasts on the local segment and returns every light that
	// answered before the scan window closed.
	Discover(ctx context.Context) ([]Device, error)
	// Device returns a handle to a known light without touching the network.
	Device(id, address string) (Device, error)
}

// LANClient is the lifxlan-backed Client.
type LANClient struct {
	broadcastHost string
	scanTimeout   time.Duration
	dialTimeout   time.Duration
}

// NewClient creates a LAN client. Zero timeouts fall back to sane defaults.
func NewClient(broadcastHost string, scanTimeout, dialTimeout time.Duration) *LANClient {
	if scanTimeout == 0 {
		scanTimeout = 3 * time.Second
	}
	if dialTimeout == 0 {
		dialTimeout = 2 * time.Second
	}
	return &LANClient{
		broadcastHost: broadcastHost,
		scanTimeout:   scanTimeout,
		dialTimeout:   dialTimeout,
	}
}

// Discover implements Client.
func (c *LANClient) Discover(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, c.scanTimeout)
	defer cancel()

	found := make(chan lifxlan.Device)
	done := make(chan error, 1)
	go func() {
		done <- lifxlan.Discover(ctx, found, c.broadcastHost)
	}()

	seen := make(map[lifxlan.Target]bool)
	var devices []Device
	for {
		select {
		case dev, ok := <-found:
			if !ok {
				return devices, discoverErr(<-done)
			}
			if seen[dev.Target()] {
				continue
			}
			seen[dev.Target()] = true
			devices = append(devices, c.wrap(dev))
		case err := <-done:
			return devices, discoverErr(err)
		}
	}
}

// The scan window elapsing is how discovery normally ends.
func discoverErr(err error) error {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Device implements Client.
func (c *LANClient) Device(id, address string) (Device, error) {
	target, err := lifxlan.ParseTarget(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidID, id, err)
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultPort)
	}
	return c.wrap(lifxlan.NewDevice(address, lifxlan.ServiceUDP, target)), nil
}

func (c *LANClient) wrap(dev lifxlan.Device) *lanDevice {
	return &lanDevice{dev: dev, timeout: c.dialTimeout}
}

// lanDevice implements Device on top of a lifxlan.Device.
// Every request dials a fresh UDP socket, lifxlan's intended usage.
type lanDevice struct {
	dev     lifxlan.Device
	timeout time.Duration

	mu       sync.Mutex
	hwLoaded bool
	caps     Capabilities
	model    string
	infrared float64
}

func (d *lanDevice) Identifier(_ context.Context) (string, error) {
	target := d.dev.Target()
	if target == 0 {
		return "", ErrInvalidID
	}
	return NormalizeID(target.String()), nil
}

func (d *lanDevice) Address(ctx context.Context) (string, error) {
	var addr string
	err := d.do(ctx, "address", func(_ context.Context, conn net.Conn) error {
		addr = conn.RemoteAddr().String()
		return nil
	})
	return addr, err
}

func (d *lanDevice) Label(ctx context.Context) (string, error) {
	var label string
	err := d.do(ctx, "get_label", func(ctx context.Context, conn net.Conn) error {
		if err := d.dev.GetLabel(ctx, conn); err != nil {
			return err
		}
		label = d.dev.Label().String()
		return nil
	})
	return label, err
}

func (d *lanDevice) Power(ctx context.Context) (bool, error) {
	var on bool
	err := d.do(ctx, "get_power", func(ctx context.Context, conn net.Conn) error {
		p, err := d.dev.GetPower(ctx, conn)
		if err != nil {
			return err
		}
		on = p.On()
		return nil
	})
	return on, err
}

func (d *lanDevice) Color(ctx context.Context) (HSBK, error) {
	var color HSBK
	err := d.do(ctx, "get_color", func(ctx context.Context, conn net.Conn) error {
		ld, err := light.Wrap(ctx, d.dev, true)
		if err != nil {
			return err
		}
		c, err := ld.GetColor(ctx, conn)
		if err != nil {
			return err
		}
		color = HSBK{
			Hue:        fromWire(c.Hue),
			Saturation: fromWire(c.Saturation),
			Brightness: fromWire(c.Brightness),
			Kelvin:     c.Kelvin,
		}
		return nil
	})
	return color, err
}

func (d *lanDevice) Capabilities(ctx context.Context) (Capabilities, error) {
	if err := d.loadHardware(ctx); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps, nil
}

// Infrared reports the last level written through this handle; lifxlan has
// no infrared getter.
func (d *lanDevice) Infrared(ctx context.Context) (float64, error) {
	caps, err := d.Capabilities(ctx)
	if err != nil {
		return 0, err
	}
	if !caps.Has(Infrared) {
		return 0, ErrUnsupported
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.infrared, nil
}

func (d *lanDevice) Info(ctx context.Context) (Info, error) {
	info := Info{}
	if addr, err := d.Address(ctx); err == nil {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			info[InfoIP] = host
		}
	}
	if err := d.loadHardware(ctx); err != nil {
		return info, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.model != "" {
		info[InfoModel] = d.model
	}
	return info, nil
}

func (d *lanDevice) SetPower(ctx context.Context, on bool) error {
	power := lifxlan.PowerOff
	if on {
		power = lifxlan.PowerOn
	}
	return d.do(ctx, "set_power", func(ctx context.Context, conn net.Conn) error {
		return d.dev.SetPower(ctx, conn, power, true)
	})
}

func (d *lanDevice) SetColor(ctx context.Context, color HSBK) error {
	return d.do(ctx, "set_color", func(ctx context.Context, conn net.Conn) error {
		ld, err := light.Wrap(ctx, d.dev, true)
		if err != nil {
			return err
		}
		return ld.SetColor(ctx, conn, &lifxlan.Color{
			Hue:        toWire(color.Hue),
			Saturation: toWire(color.Saturation),
			Brightness: toWire(color.Brightness),
			Kelvin:     color.Kelvin,
		}, 0, true)
	})
}

func (d *lanDevice) SetLabel(ctx context.Context, label string) error {
	if len(label) > MaxLabelBytes {
		return fmt.Errorf("%w: %d bytes", ErrLabelTooLong, len(label))
	}
	var payload lifxlan.Label
	copy(payload[:], label)
	return d.do(ctx, "set_label", func(ctx context.Context, conn net.Conn) error {
		return d.sendAcked(ctx, conn, msgSetLabel, &payload)
	})
}

func (d *lanDevice) SetInfrared(ctx context.Context, level float64) error {
	payload := struct{ Brightness uint16 }{Brightness: toWire(level)}
	err := d.do(ctx, "set_infrared", func(ctx context.Context, conn net.Conn) error {
		return d.sendAcked(ctx, conn, msgSetInfrared, &payload)
	})
	if err == nil {
		d.mu.Lock()
		d.infrared = level
		d.mu.Unlock()
	}
	return err
}

func (d *lanDevice) sendAcked(ctx context.Context, conn net.Conn, msg lifxlan.MessageType, payload any) error {
	seq, err := d.dev.Send(ctx, conn, lifxlan.FlagAckRequired, msg, payload)
	if err != nil {
		return err
	}
	return lifxlan.WaitForAcks(ctx, conn, d.dev.Source(), seq)
}

// loadHardware resolves the product entry once per handle.
func (d *lanDevice) loadHardware(ctx context.Context) error {
	d.mu.Lock()
	loaded := d.hwLoaded
	d.mu.Unlock()
	if loaded {
		return nil
	}

	return d.do(ctx, "get_version", func(ctx context.Context, conn net.Conn) error {
		if err := d.dev.GetHardwareVersion(ctx, conn); err != nil {
			return err
		}
		var fw lifxlan.FirmwareUpgrade
		if err := d.dev.GetFirmware(ctx, conn); err != nil {
			log.Debug().Err(err).Str("device", d.dev.Target().String()).Msg("Firmware unknown, using base features")
		} else if f := d.dev.Firmware(); f != nil {
			fw = *f
		}
		caps, model := productCapabilities(d.dev.HardwareVersion(), fw)

		d.mu.Lock()
		d.caps = caps
		d.model = model
		d.hwLoaded = true
		d.mu.Unlock()
		return nil
	})
}

// productCapabilities maps a hardware version to capability flags and the
// product name. Features added by firmware upgrades count once the light
// runs that firmware.
func productCapabilities(hw *lifxlan.HardwareVersion, fw lifxlan.FirmwareUpgrade) (Capabilities, string) {
	if hw == nil {
		return 0, ""
	}
	product, ok := lifxlan.ProductMap[lifxlan.ProductMapKey(hw.VendorID, hw.ProductID)]
	if !ok {
		// Unknown products still take white light
		return Temperature, ""
	}

	features := product.FeaturesAt(fw)
	if features.Relays.Get() {
		return 0, product.ProductName
	}
	caps := Temperature
	if features.Color.Get() {
		caps |= Color
	}
	if features.Infrared.Get() {
		caps |= Infrared
	}
	return caps, product.ProductName
}

func (d *lanDevice) do(ctx context.Context, op string, fn func(context.Context, net.Conn) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	id := d.dev.Target().String()

	conn, err := d.dev.Dial()
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnreachable, id, op, err)
	}
	defer conn.Close()

	if err := fn(ctx, conn); err != nil {
		log.Debug().Err(err).Str("device", id).Str("op", op).Msg("LIFX request failed")
		return fmt.Errorf("%w: %s %s: %w", ErrUnreachable, id, op, err)
	}
	return nil
}

// NormalizeID lower-cases a MAC-style identifier so comparisons are stable.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
