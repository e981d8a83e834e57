package groups

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ambience", "ambience.json")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_MissingFileCreatesPlaceholder(t *testing.T) {
	path := docPath(t)

	s := Open(path)

	assert.Empty(t, s.Snapshot().Groups)
	assert.NotNil(t, s.Snapshot().Groups)
	_, err := os.Stat(path)
	assert.NoError(t, err, "placeholder file should exist")
}

func TestLoad_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"whitespace", "  \n"},
		{"invalid json", "{groups: ["},
		{"wrong shape", `{"groups": "nope"}`},
		{"no groups key", `{}`},
		{"null groups", `{"groups": null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := docPath(t)
			writeFile(t, path, tt.content)

			doc := Open(path).Snapshot()
			assert.NotNil(t, doc.Groups)
			assert.Empty(t, doc.Groups)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := docPath(t)
	original := `{
  "groups": [
    {
      "label": "Living Room",
      "lights": [
        {"mac": "d0:73:d5:00:00:01", "ip": "192.168.1.20:56700", "label": "Lamp"},
        {"mac": "d0:73:d5:00:00:02", "ip": "192.168.1.21:56700", "label": "Strip"}
      ]
    },
    {"label": "Empty", "lights": []}
  ]
}`
	writeFile(t, path, original)

	s := Open(path)
	require.NoError(t, s.Save())

	var want, got Document
	require.NoError(t, json.Unmarshal([]byte(original), &want))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, got)

	// A second store sees the same document.
	assert.Equal(t, s.Snapshot(), Open(path).Snapshot())
}

func TestGroupLookup(t *testing.T) {
	path := docPath(t)
	s := Open(path)
	require.NoError(t, s.CreateGroup("Kitchen"))
	require.NoError(t, s.CreateGroup("Bedroom"))

	assert.Equal(t, []string{"Kitchen", "Bedroom"}, s.GroupLabels())

	g, ok := s.Group("Bedroom")
	assert.True(t, ok)
	assert.Equal(t, "Bedroom", g.Label)

	_, ok = s.Group("Garage")
	assert.False(t, ok)
}

func TestCreateGroup_RejectsCollisions(t *testing.T) {
	s := Open(docPath(t))
	require.NoError(t, s.CreateGroup("Kitchen"))

	err := s.CreateGroup("Kitchen")
	assert.True(t, errors.Is(err, ErrDuplicateGroup))
	assert.ErrorIs(t, s.CreateGroup("   "), ErrEmptyLabel)
	assert.Len(t, s.GroupLabels(), 1)
}

func TestRenameGroup(t *testing.T) {
	s := Open(docPath(t))
	require.NoError(t, s.CreateGroup("Kitchen"))
	require.NoError(t, s.CreateGroup("Bedroom"))

	// Own label is a no-op
	assert.NoError(t, s.RenameGroup("Kitchen", "Kitchen"))
	// Collision with another group is rejected
	assert.ErrorIs(t, s.RenameGroup("Kitchen", "Bedroom"), ErrDuplicateGroup)
	assert.ErrorIs(t, s.RenameGroup("Garage", "Shed"), ErrGroupNotFound)

	require.NoError(t, s.RenameGroup("Kitchen", "Dining"))
	assert.Equal(t, []string{"Dining", "Bedroom"}, s.GroupLabels())
	assert.Equal(t, []string{"Dining", "Bedroom"}, Open(s.Path()).GroupLabels())
}

func TestDeleteGroup(t *testing.T) {
	s := Open(docPath(t))
	require.NoError(t, s.CreateGroup("Kitchen"))
	require.NoError(t, s.AddLight("Kitchen", LightEntry{ID: "AA:BB", Label: "Lamp"}))

	require.NoError(t, s.DeleteGroup("Kitchen"))
	assert.Empty(t, s.GroupLabels())
	assert.ErrorIs(t, s.DeleteGroup("Kitchen"), ErrGroupNotFound)
}

func TestAddRemoveLight(t *testing.T) {
	s := Open(docPath(t))
	require.NoError(t, s.CreateGroup("Kitchen"))

	require.NoError(t, s.AddLight("Kitchen", LightEntry{ID: "AA:BB", Address: "10.0.0.2", Label: "Lamp"}))
	assert.ErrorIs(t, s.AddLight("Kitchen", LightEntry{ID: "aa:bb"}), ErrDuplicateLight)
	assert.ErrorIs(t, s.AddLight("Garage", LightEntry{ID: "cc:dd"}), ErrGroupNotFound)

	g, _ := s.Group("Kitchen")
	require.Len(t, g.Lights, 1)
	assert.Equal(t, "aa:bb", g.Lights[0].ID)

	assert.ErrorIs(t, s.RemoveLight("Kitchen", "cc:dd"), ErrLightNotFound)
	require.NoError(t, s.RemoveLight("Kitchen", "AA:BB"))
	g, _ = s.Group("Kitchen")
	assert.Empty(t, g.Lights)
}

func TestSameLightInTwoGroups(t *testing.T) {
	s := Open(docPath(t))
	require.NoError(t, s.CreateGroup("Kitchen"))
	require.NoError(t, s.CreateGroup("Downstairs"))

	require.NoError(t, s.AddLight("Kitchen", LightEntry{ID: "aa:bb", Label: "Lamp"}))
	require.NoError(t, s.AddLight("Downstairs", LightEntry{ID: "aa:bb", Label: "Lamp"}))

	require.NoError(t, s.UpdateLightLabel("aa:bb", "Reading Lamp"))
	for _, label := range []string{"Kitchen", "Downstairs"} {
		g, _ := s.Group(label)
		assert.Equal(t, "Reading Lamp", g.Lights[0].Label)
	}
}

func TestMutationFailureLeavesDocumentUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ambience.json")
	s := Open(path)
	require.NoError(t, s.CreateGroup("Kitchen"))

	// Replace the directory with a file so the next save cannot succeed.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))
	t.Cleanup(func() { os.Remove(dir) })

	err := s.AddLight("Kitchen", LightEntry{ID: "aa:bb"})
	require.Error(t, err)

	g, ok := s.Group("Kitchen")
	require.True(t, ok)
	assert.Empty(t, g.Lights)
}

func TestObserverSeesPersistedMutations(t *testing.T) {
	s := Open(docPath(t))
	var seen []Mutation
	s.SetObserver(func(m Mutation) { seen = append(seen, m) })

	require.NoError(t, s.CreateGroup("Kitchen"))
	require.NoError(t, s.AddLight("Kitchen", LightEntry{ID: "AA:BB", Label: "Lamp"}))
	assert.Error(t, s.CreateGroup("Kitchen"))

	require.Len(t, seen, 2)
	assert.Equal(t, OpCreateGroup, seen[0].Op)
	assert.Equal(t, Mutation{Op: OpAddLight, Group: "Kitchen", LightID: "aa:bb", Label: "Lamp"}, seen[1])
}

func TestRefreshCacheFlushedOnClose(t *testing.T) {
	path := docPath(t)
	s := Open(path)
	require.NoError(t, s.CreateGroup("Kitchen"))
	require.NoError(t, s.AddLight("Kitchen", LightEntry{ID: "aa:bb", Address: "10.0.0.2:56700", Label: "Lamp"}))

	changed := s.RefreshCache([]LightEntry{
		{ID: "AA:BB", Address: "10.0.0.9:56700", Label: "Lamp"},
		{ID: "cc:dd", Address: "10.0.0.3:56700", Label: "Other"},
	})
	assert.True(t, changed)
	assert.False(t, s.RefreshCache([]LightEntry{{ID: "aa:bb", Address: "10.0.0.9:56700"}}))

	// Not yet on disk
	g, _ := Open(path).Group("Kitchen")
	assert.Equal(t, "10.0.0.2:56700", g.Lights[0].Address)

	require.NoError(t, s.Close())
	g, _ = Open(path).Group("Kitchen")
	assert.Equal(t, "10.0.0.9:56700", g.Lights[0].Address)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := Open(docPath(t))
	require.NoError(t, s.CreateGroup("Kitchen"))
	require.NoError(t, s.AddLight("Kitchen", LightEntry{ID: "aa:bb"}))

	snap := s.Snapshot()
	snap.Groups[0].Lights[0].Label = "mutated"
	snap.Groups[0].Label = "mutated"

	g, ok := s.Group("Kitchen")
	require.True(t, ok)
	assert.Empty(t, g.Lights[0].Label)
}
