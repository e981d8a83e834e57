// Package registry keeps the in-memory set of known lights, whether they
// were seen by a live scan or only remembered by the group document.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/lifx"
)

// Light is one physical device as known to the application.
type Light struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	Address      string            `json:"address"`
	Online       bool              `json:"online"`
	Capabilities lifx.Capabilities `json:"capabilities"`
	Color        lifx.HSBK         `json:"color"`
	Power        bool              `json:"power"`
	Infrared     float64           `json:"infrared"`
	Info         lifx.Info         `json:"info,omitempty"`
	SeenAt       time.Time         `json:"seen_at"`
}

// Entry returns the group-document form of the light.
func (l Light) Entry() groups.LightEntry {
	return groups.LightEntry{ID: l.ID, Address: l.Address, Label: l.Label}
}

func (l Light) clone() Light {
	if l.Info != nil {
		info := make(lifx.Info, len(l.Info))
		for k, v := range l.Info {
			info[k] = v
		}
		l.Info = info
	}
	return l
}

// Registry is a thread-safe map of lights keyed by stable identifier.
type Registry struct {
	mu     sync.RWMutex
	lights map[string]*Light
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{lights: make(map[string]*Light)}
}

// Get returns a copy of the light with the given identifier.
func (r *Registry) Get(id string) (Light, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.lights[lifx.NormalizeID(id)]
	if !ok {
		return Light{}, false
	}
	return l.clone(), true
}

// List returns all lights ordered by label, then identifier.
func (r *Registry) List() []Light {
	r.mu.RLock()
	out := make([]Light, 0, len(r.lights))
	for _, l := range r.lights {
		out = append(out, l.clone())
	}
	r.mu.RUnlock()

	Sort(out)
	return out
}

// Len returns the number of known lights.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lights)
}

// Online returns the number of lights currently marked reachable.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, l := range r.lights {
		if l.Online {
			n++
		}
	}
	return n
}

// Put stores a light, replacing any previous record with the same identifier.
func (r *Registry) Put(l Light) {
	l.ID = lifx.NormalizeID(l.ID)

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := l.clone()
	r.lights[l.ID] = &stored
}

// Update applies fn to the stored light, if present.
func (r *Registry) Update(id string, fn func(*Light)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lights[lifx.NormalizeID(id)]
	if !ok {
		return false
	}
	fn(l)
	return true
}

// SetOnline flips the reachability flag of a light.
func (r *Registry) SetOnline(id string, online bool) {
	r.Update(id, func(l *Light) {
		l.Online = online
		if online {
			l.SeenAt = time.Now()
		}
	})
}

// Remove drops a light from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lights, lifx.NormalizeID(id))
}

// LoadDocument seeds the registry with every light remembered by the group
// document. Lights already known keep their live attributes; new ones start
// offline with their cached label and address.
func (r *Registry) LoadDocument(doc groups.Document) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, g := range doc.Groups {
		for _, e := range g.Lights {
			id := lifx.NormalizeID(e.ID)
			if _, ok := r.lights[id]; ok {
				continue
			}
			r.lights[id] = &Light{ID: id, Label: e.Label, Address: e.Address}
			added++
		}
	}

	log.Debug().Int("added", added).Int("total", len(r.lights)).Msg("Registry seeded from group document")
	return added
}

// MergeScan records the lights found by a scan as online, replacing their
// live attributes. Known lights absent from the scan are marked offline.
func (r *Registry) MergeScan(found []Light) {
	seen := make(map[string]bool, len(found))

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, l := range found {
		l.ID = lifx.NormalizeID(l.ID)
		l.Online = true
		l.SeenAt = now
		stored := l.clone()
		r.lights[l.ID] = &stored
		seen[l.ID] = true
	}
	for id, l := range r.lights {
		if !seen[id] {
			l.Online = false
		}
	}
}

// Sort orders lights by label, then identifier.
func Sort(lights []Light) {
	sort.SliceStable(lights, func(i, j int) bool {
		if lights[i].Label != lights[j].Label {
			return lights[i].Label < lights[j].Label
		}
		return lights[i].ID < lights[j].ID
	})
}
