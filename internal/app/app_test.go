package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/ambience/internal/config"
	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/ledger"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/lifx/lifxtest"
	"github.com/dokzlo13/ambience/internal/reconcile"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	cfg.Store.Path = filepath.Join(dir, "ambience.json")
	cfg.Database.Path = filepath.Join(dir, "ambience.sqlite")
	cfg.LIFX.RateLimitRPS = 0
	return cfg
}

func newTestApp(t *testing.T, devices ...*lifxtest.Device) (*App, *lifxtest.Client) {
	t.Helper()
	cfg := testConfig(t)
	client := lifxtest.NewClient(devices...)

	services, err := NewServicesWithClient(cfg, client)
	require.NoError(t, err)

	a := NewWithServices(cfg, services)
	require.NoError(t, a.Start(context.Background()))
	return a, client
}

// waitForEvents polls the ledger until n entries of the type are recorded.
func waitForEvents(t *testing.T, l *ledger.Ledger, eventType ledger.EventType, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, err := l.Count(eventType)
		return err == nil && got >= n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScan_ClassifiesAgainstDocument(t *testing.T) {
	lamp := &lifxtest.Device{ID: "d073d5000001", Addr: "10.0.0.2:56700", Name: "Lamp", Caps: lifx.Color | lifx.Temperature}
	strip := &lifxtest.Device{ID: "d073d5000002", Addr: "10.0.0.3:56700", Name: "Strip"}
	a, _ := newTestApp(t, lamp, strip)
	s := a.Services()

	require.NoError(t, s.Groups.CreateGroup("Living Room"))
	require.NoError(t, s.Groups.AddLight("Living Room", groups.LightEntry{ID: lamp.ID, Label: "Old name"}))

	entries, err := a.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Lamp", entries[0].Light.Label)
	assert.Equal(t, reconcile.Added, entries[0].State)
	assert.Equal(t, "Living Room", entries[0].Group)
	assert.Equal(t, reconcile.NotAdded, entries[1].State)

	// Scan results reach the registry and refresh cached labels
	l, ok := s.Lights.Get(lamp.ID)
	require.True(t, ok)
	assert.True(t, l.Online)
	g, _ := s.Groups.Group("Living Room")
	assert.Equal(t, "Lamp", g.Lights[0].Label)

	waitForEvents(t, s.Ledger, ledger.EventScanCompleted, 1)
	require.NoError(t, a.Stop())
}

func TestScan_Failure(t *testing.T) {
	a, client := newTestApp(t)
	client.DiscoverErr = assert.AnError

	_, err := a.Scan(context.Background())
	assert.Error(t, err)

	waitForEvents(t, a.Services().Ledger, ledger.EventScanFailed, 1)
	require.NoError(t, a.Stop())
}

func TestEventsRecorded(t *testing.T) {
	lamp := &lifxtest.Device{ID: "d073d5000001", Addr: "10.0.0.2:56700", Name: "Lamp"}
	a, _ := newTestApp(t, lamp)
	s := a.Services()

	_, err := a.Scan(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Groups.CreateGroup("Kitchen"))
	require.NoError(t, s.Control.SetPower(context.Background(), lamp.ID, true))
	lamp.SetOffline(true)
	require.Error(t, s.Control.SetPower(context.Background(), lamp.ID, false))

	waitForEvents(t, s.Ledger, ledger.EventGroupChanged, 1)
	waitForEvents(t, s.Ledger, ledger.EventControlCompleted, 1)
	waitForEvents(t, s.Ledger, ledger.EventControlFailed, 1)

	failed, err := s.Ledger.GetByType(ledger.EventControlFailed, 1)
	require.NoError(t, err)
	assert.Equal(t, lamp.ID, failed[0].LightID)
	assert.NotEmpty(t, failed[0].Payload["error"])

	deleted, err := a.ResetHistory()
	require.NoError(t, err)
	assert.Positive(t, deleted)

	require.NoError(t, a.Stop())
}

func TestStartSeedsRegistryFromDocument(t *testing.T) {
	cfg := testConfig(t)
	store := groups.Open(cfg.Store.Path)
	require.NoError(t, store.CreateGroup("Porch"))
	require.NoError(t, store.AddLight("Porch", groups.LightEntry{ID: "d073d5000009", Label: "Porch", Address: "10.0.0.9:56700"}))
	require.NoError(t, store.Close())

	services, err := NewServicesWithClient(cfg, lifxtest.NewClient())
	require.NoError(t, err)
	defer services.Stop(context.Background())

	l, ok := services.Lights.Get("d073d5000009")
	require.True(t, ok)
	assert.False(t, l.Online)
	assert.Equal(t, "Porch", l.Label)
}

func TestHealthHandler(t *testing.T) {
	cfg := testConfig(t)
	h := NewHealthService(cfg, func() Status {
		return Status{Lights: 3, Online: 2, Groups: 1}
	})
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	h.SetReady(true)
	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, Status{Lights: 3, Online: 2, Groups: 1}, st)
}

func TestMaintenance_Cleanup(t *testing.T) {
	a, _ := newTestApp(t)
	s := a.Services()

	require.NoError(t, s.Ledger.Append(ledger.Entry{EventType: ledger.EventScanCompleted, Timestamp: time.Now().Add(-60 * 24 * time.Hour)}))
	require.NoError(t, s.Ledger.Append(ledger.Entry{EventType: ledger.EventScanCompleted}))

	s.Maintenance.cleanup()

	n, err := s.Ledger.Count(ledger.EventScanCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, a.Stop())
}
