package reconcile

import (
	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/registry"
)

// Member is a group member resolved against the registry.
type Member struct {
	registry.Light
	Known bool // present in the registry
}

// GroupView is a group ready for display.
type GroupView struct {
	Label   string
	Members []Member
}

// Online counts reachable members.
func (g GroupView) Online() int {
	n := 0
	for _, m := range g.Members {
		if m.Online {
			n++
		}
	}
	return n
}

// LightLookup resolves identifiers to known lights.
type LightLookup interface {
	Get(id string) (registry.Light, bool)
}

// Groups builds the browse view: every group in document order with its
// members. Members the registry knows carry their live attributes; the rest
// fall back to the cached label and address and are shown offline.
func Groups(doc groups.Document, lights LightLookup) []GroupView {
	views := make([]GroupView, 0, len(doc.Groups))
	for _, g := range doc.Groups {
		view := GroupView{Label: g.Label, Members: make([]Member, 0, len(g.Lights))}
		for _, e := range g.Lights {
			id := lifx.NormalizeID(e.ID)
			if l, ok := lights.Get(id); ok {
				if l.Label == "" {
					l.Label = e.Label
				}
				if l.Address == "" {
					l.Address = e.Address
				}
				view.Members = append(view.Members, Member{Light: l, Known: true})
				continue
			}
			view.Members = append(view.Members, Member{
				Light: registry.Light{ID: id, Label: e.Label, Address: e.Address},
			})
		}
		views = append(views, view)
	}
	return views
}
