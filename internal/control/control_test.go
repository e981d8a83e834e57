package control

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/lifx/lifxtest"
	"github.com/dokzlo13/ambience/internal/reconcile"
	"github.com/dokzlo13/ambience/internal/registry"
)

type fixture struct {
	client *lifxtest.Client
	lights *registry.Registry
	store  *groups.Store
	facade *Facade
	lamp   *lifxtest.Device
	strip  *lifxtest.Device
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lamp := &lifxtest.Device{ID: "d073d5000001", Addr: "10.0.0.2:56700", Name: "Lamp", Caps: lifx.Color | lifx.Temperature}
	strip := &lifxtest.Device{ID: "d073d5000002", Addr: "10.0.0.3:56700", Name: "Strip", Caps: lifx.Temperature}
	client := lifxtest.NewClient(lamp, strip)

	lights := registry.New()
	lights.MergeScan([]registry.Light{
		{ID: lamp.ID, Label: lamp.Name, Address: lamp.Addr, Capabilities: lamp.Caps},
		{ID: strip.ID, Label: strip.Name, Address: strip.Addr, Capabilities: strip.Caps, Color: lifx.HSBK{Hue: 0.25, Kelvin: 2700}},
	})

	store := groups.Open(filepath.Join(t.TempDir(), "groups.json"))
	require.NoError(t, store.CreateGroup("Living Room"))
	require.NoError(t, store.AddLight("Living Room", groups.LightEntry{ID: lamp.ID, Label: "Lamp"}))
	require.NoError(t, store.AddLight("Living Room", groups.LightEntry{ID: strip.ID, Label: "Strip"}))

	return &fixture{
		client: client,
		lights: lights,
		store:  store,
		facade: New(client, lights, store, 0),
		lamp:   lamp,
		strip:  strip,
	}
}

func TestSetPower(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.facade.SetPower(context.Background(), f.lamp.ID, true))
	assert.True(t, f.lamp.On)

	l, _ := f.lights.Get(f.lamp.ID)
	assert.True(t, l.Power)
	assert.True(t, l.Online)
}

func TestSetPower_UnknownLight(t *testing.T) {
	f := newFixture(t)

	err := f.facade.SetPower(context.Background(), "d073d5ffffff", true)
	assert.ErrorIs(t, err, ErrUnknownLight)
}

func TestUnreachableLight_LeavesOthersAndConfigAlone(t *testing.T) {
	f := newFixture(t)
	f.lamp.SetOffline(true)
	before := f.store.Snapshot()

	err := f.facade.SetPower(context.Background(), f.lamp.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, lifx.ErrUnreachable)

	lamp, _ := f.lights.Get(f.lamp.ID)
	assert.False(t, lamp.Online)

	require.NoError(t, f.facade.SetPower(context.Background(), f.strip.ID, true))
	strip, _ := f.lights.Get(f.strip.ID)
	assert.True(t, strip.Online)
	assert.True(t, f.strip.On)

	assert.Equal(t, before, f.store.Snapshot())
}

func TestSetColor_GatesByCapability(t *testing.T) {
	f := newFixture(t)
	want := lifx.HSBK{Hue: 0.5, Saturation: 0.8, Brightness: 0.6, Kelvin: 4000}

	require.NoError(t, f.facade.SetColor(context.Background(), f.lamp.ID, want))
	assert.Equal(t, want, f.lamp.HSBK)

	// White-only light keeps its hue and drops saturation
	require.NoError(t, f.facade.SetColor(context.Background(), f.strip.ID, want))
	assert.Equal(t, lifx.HSBK{Hue: 0.25, Saturation: 0, Brightness: 0.6, Kelvin: 4000}, f.strip.HSBK)

	l, _ := f.lights.Get(f.strip.ID)
	assert.Equal(t, f.strip.HSBK, l.Color)
}

func TestSetDisplay_SkipsUnchanged(t *testing.T) {
	f := newFixture(t)
	color := lifx.HSBK{Hue: 0.5, Saturation: 0.5, Brightness: 0.5, Kelvin: 3500}
	require.NoError(t, f.facade.SetColor(context.Background(), f.lamp.ID, color))
	calls := len(f.lamp.Calls())

	require.NoError(t, f.facade.SetDisplay(context.Background(), f.lamp.ID, color.ToDisplay()))
	assert.Len(t, f.lamp.Calls(), calls, "unchanged values must not be sent")

	d := color.ToDisplay()
	d.Brightness = 80
	require.NoError(t, f.facade.SetDisplay(context.Background(), f.lamp.ID, d))
	assert.Len(t, f.lamp.Calls(), calls+1)
	assert.InDelta(t, 0.8, f.lamp.HSBK.Brightness, 1e-9)
}

func TestSetLabel_UpdatesBulbAndDocument(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.facade.SetLabel(context.Background(), f.lamp.ID, "  Reading Lamp "))
	assert.Equal(t, "Reading Lamp", f.lamp.Name)

	l, _ := f.lights.Get(f.lamp.ID)
	assert.Equal(t, "Reading Lamp", l.Label)

	g, ok := f.store.Group("Living Room")
	require.True(t, ok)
	assert.Equal(t, "Reading Lamp", g.Lights[0].Label)
}

func TestSetLabel_Empty(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.facade.SetLabel(context.Background(), f.lamp.ID, "   "), ErrEmptyLabel)
	assert.Empty(t, f.lamp.Calls())
}

func TestSetLabel_ByteLimit(t *testing.T) {
	f := newFixture(t)

	// 32 runes but 36 bytes
	err := f.facade.SetLabel(context.Background(), f.lamp.ID, "Küchenlampe über dem Esstisch ÄÖ")
	assert.ErrorIs(t, err, lifx.ErrLabelTooLong)
	assert.Empty(t, f.lamp.Calls())
	assert.Equal(t, "Lamp", f.lamp.Name)

	l, _ := f.lights.Get(f.lamp.ID)
	assert.Equal(t, "Lamp", l.Label)
	g, _ := f.store.Group("Living Room")
	assert.Equal(t, "Lamp", g.Lights[0].Label)

	require.NoError(t, f.facade.SetLabel(context.Background(), f.lamp.ID, "Küchenlampe über dem Esstisch"))
	assert.Equal(t, "Küchenlampe über dem Esstisch", f.lamp.Name)
	g, _ = f.store.Group("Living Room")
	assert.Equal(t, f.lamp.Name, g.Lights[0].Label)
}

func TestSetInfrared(t *testing.T) {
	f := newFixture(t)

	err := f.facade.SetInfrared(context.Background(), f.lamp.ID, 0.5)
	assert.ErrorIs(t, err, lifx.ErrUnsupported)
	assert.Empty(t, f.lamp.Calls())

	// Rejected calls do not mark the light offline
	l, _ := f.lights.Get(f.lamp.ID)
	assert.True(t, l.Online)

	ir := &lifxtest.Device{ID: "d073d5000003", Addr: "10.0.0.4:56700", Name: "Porch", Caps: lifx.Temperature | lifx.Infrared}
	f.client.Add(ir)
	f.lights.Put(registry.Light{ID: ir.ID, Address: ir.Addr, Capabilities: ir.Caps})

	require.NoError(t, f.facade.SetInfrared(context.Background(), ir.ID, 0.5))
	assert.InDelta(t, 0.5, ir.IR, 1e-9)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	f.lamp.Name = "Desk"
	f.lamp.On = true
	f.lamp.HSBK = lifx.HSBK{Hue: 0.1, Saturation: 1, Brightness: 1, Kelvin: 3500}
	f.lamp.Model = "LIFX A19"

	l, err := f.facade.Refresh(context.Background(), f.lamp.ID)
	require.NoError(t, err)

	assert.Equal(t, "Desk", l.Label)
	assert.True(t, l.Power)
	assert.Equal(t, f.lamp.HSBK, l.Color)
	assert.Equal(t, "LIFX A19", l.Info[lifx.InfoModel])
}

func TestObserver(t *testing.T) {
	f := newFixture(t)
	var got []Outcome
	f.facade.SetObserver(func(o Outcome) { got = append(got, o) })

	f.lamp.SetOffline(true)
	_ = f.facade.SetPower(context.Background(), f.lamp.ID, true)
	_ = f.facade.SetPower(context.Background(), f.strip.ID, true)

	require.Len(t, got, 2)
	assert.Equal(t, OpSetPower, got[0].Op)
	assert.Error(t, got[0].Err)
	assert.NoError(t, got[1].Err)
}

func TestGroupSetPower_ContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	f.lamp.SetOffline(true)

	res, err := f.facade.GroupSetPower(context.Background(), "Living Room", true)
	require.NoError(t, err)

	assert.Equal(t, []string{f.strip.ID}, res.Applied)
	require.Contains(t, res.Failed, f.lamp.ID)
	assert.ErrorIs(t, res.Err(), lifx.ErrUnreachable)
	assert.True(t, f.strip.On)
}

func TestGroupOutcomesCarryGroup(t *testing.T) {
	f := newFixture(t)
	var got []Outcome
	f.facade.SetObserver(func(o Outcome) { got = append(got, o) })

	_, err := f.facade.GroupSetPower(context.Background(), "Living Room", true)
	require.NoError(t, err)
	require.NoError(t, f.facade.SetPower(context.Background(), f.lamp.ID, false))

	require.Len(t, got, 3)
	assert.Equal(t, "Living Room", got[0].Group)
	assert.Equal(t, "Living Room", got[1].Group)
	assert.Empty(t, got[2].Group)
}

func TestGroupSetColor(t *testing.T) {
	f := newFixture(t)
	color := lifx.HSBK{Brightness: 0.3, Kelvin: 2500}

	res, err := f.facade.GroupSetColor(context.Background(), "Living Room", color)
	require.NoError(t, err)
	assert.NoError(t, res.Err())
	assert.Len(t, res.Applied, 2)
}

func TestGroupOperation_MissingGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.facade.GroupSetPower(context.Background(), "Garage", true)
	assert.ErrorIs(t, err, groups.ErrGroupNotFound)
}

func TestGroupOperation_UnscannedMember(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddLight("Living Room", groups.LightEntry{ID: "d073d5000009", Address: "10.0.0.9:56700", Label: "Ghost"}))

	res, err := f.facade.GroupSetPower(context.Background(), "Living Room", false)
	require.NoError(t, err)
	assert.Len(t, res.Applied, 2)
	assert.ErrorIs(t, res.Failed["d073d5000009"], lifx.ErrUnreachable)
}

func TestMembership(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.CreateGroup("Bedroom"))

	found := []registry.Light{{ID: "d073d5000005", Label: "Bedside"}}
	entries := reconcile.ForGroup(found, f.store.Snapshot(), "Bedroom")
	entry := &entries[0]
	require.Equal(t, reconcile.NotAdded, entry.State)

	require.NoError(t, AddToGroup(f.store, entry, "Bedroom"))
	assert.Equal(t, reconcile.Added, entry.State)
	assert.True(t, reconcile.InGroup(f.store.Snapshot(), "Bedroom", "d073d5000005"))

	require.NoError(t, ToggleMembership(f.store, entry, "Bedroom"))
	assert.Equal(t, reconcile.NotAdded, entry.State)
	assert.False(t, reconcile.InGroup(f.store.Snapshot(), "Bedroom", "d073d5000005"))
}

func TestMembership_SaveFailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	store := groups.Open(filepath.Join(dir, "groups.json"))
	require.NoError(t, store.CreateGroup("Bedroom"))

	// Replace the directory with a file so the next save fails
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))
	t.Cleanup(func() { _ = os.Remove(dir) })

	entry := &reconcile.Entry{Light: registry.Light{ID: "d073d5000005"}}
	err := AddToGroup(store, entry, "Bedroom")
	require.Error(t, err)
	assert.False(t, errors.Is(err, groups.ErrDuplicateLight))
	assert.Equal(t, reconcile.NotAdded, entry.State)
	assert.False(t, reconcile.InGroup(store.Snapshot(), "Bedroom", "d073d5000005"))
}
