// Package groups persists user-defined light groups as a JSON document.
//
// The document is read once when the store is opened and rewritten after
// every user mutation. Unreadable or malformed files never fail the caller;
// they degrade to an empty document so the application can still start.
package groups

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/lifx"
)

// Op names a kind of document mutation.
type Op string

const (
	OpCreateGroup Op = "group_created"
	OpRenameGroup Op = "group_renamed"
	OpDeleteGroup Op = "group_deleted"
	OpAddLight    Op = "light_added"
	OpRemoveLight Op = "light_removed"
	OpLabelLight  Op = "light_labelled"
)

// Mutation describes a change that has been persisted.
type Mutation struct {
	Op      Op
	Group   string
	NewName string
	LightID string
	Label   string
}

// Store owns the group document and its file.
type Store struct {
	path string

	mu       sync.RWMutex
	doc      Document
	dirty    bool // cache refreshes not yet written
	observer func(Mutation)
}

// Open creates a store for the document at path and loads it.
func Open(path string) *Store {
	s := &Store{path: path, doc: Empty()}
	s.Load()
	return s
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// SetObserver registers a callback invoked after every persisted mutation.
func (s *Store) SetObserver(fn func(Mutation)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Load re-reads the document from disk, replacing the in-memory copy.
// A missing file is created empty; unparsable content is logged and
// treated as an empty document.
func (s *Store) Load() Document {
	doc := s.read()

	s.mu.Lock()
	s.doc = doc
	s.dirty = false
	s.mu.Unlock()

	return doc.Clone()
}

func (s *Store) read() Document {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.createPlaceholder(); err != nil {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to create group document")
		}
		return Empty()
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Failed to read group document")
		return Empty()
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		log.Warn().Str("path", s.path).Msg("Group document is empty")
		return Empty()
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Group document is not valid JSON")
		return Empty()
	}
	doc.normalize()

	log.Debug().Str("path", s.path).Int("groups", len(doc.Groups)).Msg("Group document loaded")
	return doc
}

func (s *Store) createPlaceholder() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return err
	}
	return f.Close()
}

// Save writes the full document back to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	s.doc.normalize()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode group document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ambience-*.json")
	if err != nil {
		return fmt.Errorf("failed to write group document: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write group document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write group document: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace group document: %w", err)
	}

	s.dirty = false
	return nil
}

// Close flushes pending cache refreshes.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked()
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Group returns the group with the given label.
func (s *Store) Group(label string) (Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.doc.indexOf(label)
	if i < 0 {
		return Group{}, false
	}
	g := s.doc.Groups[i]
	return Group{Label: g.Label, Lights: append([]LightEntry{}, g.Lights...)}, true
}

// GroupLabels returns all group labels in document order.
func (s *Store) GroupLabels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make([]string, 0, len(s.doc.Groups))
	for _, g := range s.doc.Groups {
		labels = append(labels, g.Label)
	}
	return labels
}

// CreateGroup appends an empty group.
func (s *Store) CreateGroup(label string) error {
	label = strings.TrimSpace(label)
	return s.mutate(Mutation{Op: OpCreateGroup, Group: label}, func(doc *Document) error {
		if label == "" {
			return ErrEmptyLabel
		}
		if doc.indexOf(label) >= 0 {
			return fmt.Errorf("%w: %q", ErrDuplicateGroup, label)
		}
		doc.Groups = append(doc.Groups, Group{Label: label, Lights: []LightEntry{}})
		return nil
	})
}

// RenameGroup changes a group's label. Renaming a group to its current label
// succeeds without touching the file.
func (s *Store) RenameGroup(label, newLabel string) error {
	newLabel = strings.TrimSpace(newLabel)

	s.mu.RLock()
	i := s.doc.indexOf(label)
	s.mu.RUnlock()
	if i >= 0 && label == newLabel {
		return nil
	}

	return s.mutate(Mutation{Op: OpRenameGroup, Group: label, NewName: newLabel}, func(doc *Document) error {
		if newLabel == "" {
			return ErrEmptyLabel
		}
		i := doc.indexOf(label)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrGroupNotFound, label)
		}
		if doc.indexOf(newLabel) >= 0 {
			return fmt.Errorf("%w: %q", ErrDuplicateGroup, newLabel)
		}
		doc.Groups[i].Label = newLabel
		return nil
	})
}

// DeleteGroup removes a group and its memberships.
func (s *Store) DeleteGroup(label string) error {
	return s.mutate(Mutation{Op: OpDeleteGroup, Group: label}, func(doc *Document) error {
		i := doc.indexOf(label)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrGroupNotFound, label)
		}
		doc.Groups = append(doc.Groups[:i], doc.Groups[i+1:]...)
		return nil
	})
}

// AddLight adds a light to a group.
func (s *Store) AddLight(group string, entry LightEntry) error {
	entry.ID = lifx.NormalizeID(entry.ID)
	m := Mutation{Op: OpAddLight, Group: group, LightID: entry.ID, Label: entry.Label}
	return s.mutate(m, func(doc *Document) error {
		i := doc.indexOf(group)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrGroupNotFound, group)
		}
		if doc.Groups[i].Has(entry.ID) {
			return fmt.Errorf("%w: %s in %q", ErrDuplicateLight, entry.ID, group)
		}
		doc.Groups[i].Lights = append(doc.Groups[i].Lights, entry)
		return nil
	})
}

// RemoveLight removes a light from a group.
func (s *Store) RemoveLight(group, id string) error {
	id = lifx.NormalizeID(id)
	return s.mutate(Mutation{Op: OpRemoveLight, Group: group, LightID: id}, func(doc *Document) error {
		i := doc.indexOf(group)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrGroupNotFound, group)
		}
		j := doc.Groups[i].indexOf(id)
		if j < 0 {
			return fmt.Errorf("%w: %s in %q", ErrLightNotFound, id, group)
		}
		lights := doc.Groups[i].Lights
		doc.Groups[i].Lights = append(lights[:j], lights[j+1:]...)
		return nil
	})
}

// UpdateLightLabel rewrites the cached label of a light in every group that
// holds it. A light that is in no group is not an error.
func (s *Store) UpdateLightLabel(id, label string) error {
	id = lifx.NormalizeID(id)

	s.mu.RLock()
	held := s.holds(id)
	s.mu.RUnlock()
	if !held {
		return nil
	}

	return s.mutate(Mutation{Op: OpLabelLight, LightID: id, Label: label}, func(doc *Document) error {
		for gi := range doc.Groups {
			for li := range doc.Groups[gi].Lights {
				if doc.Groups[gi].Lights[li].ID == id {
					doc.Groups[gi].Lights[li].Label = label
				}
			}
		}
		return nil
	})
}

// RefreshCache updates cached labels and addresses from live data without
// writing the file; the change is flushed by the next mutation or Close.
// It reports whether anything changed.
func (s *Store) RefreshCache(entries []LightEntry) bool {
	live := make(map[string]LightEntry, len(entries))
	for _, e := range entries {
		live[lifx.NormalizeID(e.ID)] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for gi := range s.doc.Groups {
		for li := range s.doc.Groups[gi].Lights {
			cached := &s.doc.Groups[gi].Lights[li]
			e, ok := live[cached.ID]
			if !ok {
				continue
			}
			if e.Label != "" && e.Label != cached.Label {
				cached.Label = e.Label
				changed = true
			}
			if e.Address != "" && e.Address != cached.Address {
				cached.Address = e.Address
				changed = true
			}
		}
	}
	if changed {
		s.dirty = true
	}
	return changed
}

func (s *Store) holds(id string) bool {
	for _, g := range s.doc.Groups {
		if g.Has(id) {
			return true
		}
	}
	return false
}

// mutate applies fn to the document and saves it. On any failure the
// in-memory document is left as it was.
func (s *Store) mutate(m Mutation, fn func(*Document) error) error {
	s.mu.Lock()

	prev := s.doc.Clone()
	if err := fn(&s.doc); err != nil {
		s.doc = prev
		s.mu.Unlock()
		return err
	}
	if err := s.saveLocked(); err != nil {
		s.doc = prev
		s.mu.Unlock()
		log.Error().Err(err).Str("op", string(m.Op)).Msg("Failed to persist group change")
		return err
	}
	observer := s.observer
	s.mu.Unlock()

	log.Debug().
		Str("op", string(m.Op)).
		Str("group", m.Group).
		Str("light", m.LightID).
		Msg("Group document updated")

	if observer != nil {
		observer(m)
	}
	return nil
}
