// Package reconcile matches live lights against the persisted group
// document and builds the view models the UI renders.
package reconcile

import (
	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/registry"
)

// State is the membership state of a discovered light.
type State int

const (
	NotAdded State = iota
	Added
)

func (s State) String() string {
	if s == Added {
		return "added"
	}
	return "not_added"
}

// Entry is a discovered light with its membership classification.
type Entry struct {
	Light registry.Light
	State State
	Group string // first group holding the light, empty when NotAdded
}

// Added reports whether the light belongs to some group.
func (e Entry) Added() bool {
	return e.State == Added
}

// Reconcile classifies every discovered light against the document.
// Groups are searched in document order and the first group holding a light
// with the same identifier wins; label and address play no part.
// Neither input is modified.
func Reconcile(found []registry.Light, doc groups.Document) []Entry {
	index := membership(doc)

	entries := make([]Entry, 0, len(found))
	for _, l := range found {
		e := Entry{Light: l, State: NotAdded}
		if group, ok := index[lifx.NormalizeID(l.ID)]; ok {
			e.State = Added
			e.Group = group
		}
		entries = append(entries, e)
	}
	return entries
}

// membership maps each identifier to the first group that holds it.
func membership(doc groups.Document) map[string]string {
	index := make(map[string]string)
	for _, g := range doc.Groups {
		for _, l := range g.Lights {
			id := lifx.NormalizeID(l.ID)
			if _, ok := index[id]; !ok {
				index[id] = g.Label
			}
		}
	}
	return index
}

// InGroup reports whether the light is a member of the named group.
func InGroup(doc groups.Document, group, id string) bool {
	id = lifx.NormalizeID(id)
	for _, g := range doc.Groups {
		if g.Label != group {
			continue
		}
		for _, l := range g.Lights {
			if lifx.NormalizeID(l.ID) == id {
				return true
			}
		}
	}
	return false
}

// ForGroup classifies discovered lights relative to a single target group,
// which is what the add/remove workflow acts on.
func ForGroup(found []registry.Light, doc groups.Document, group string) []Entry {
	entries := make([]Entry, 0, len(found))
	for _, l := range found {
		e := Entry{Light: l, State: NotAdded}
		if InGroup(doc, group, l.ID) {
			e.State = Added
			e.Group = group
		}
		entries = append(entries, e)
	}
	return entries
}
