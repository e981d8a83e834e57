package groups

// LightEntry is a light as remembered inside a group. The label and address
// are cached so the light can be listed while it is unreachable.
type LightEntry struct {
	ID      string `json:"mac"`
	Address string `json:"ip"`
	Label   string `json:"label"`
}

// Group is a user-defined, uniquely labelled collection of lights.
type Group struct {
	Label  string       `json:"label"`
	Lights []LightEntry `json:"lights"`
}

// Has reports whether the group contains a light with the given identifier.
func (g *Group) Has(id string) bool {
	return g.indexOf(id) >= 0
}

func (g *Group) indexOf(id string) int {
	for i, l := range g.Lights {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Document is the persisted root: every group in display order.
type Document struct {
	Groups []Group `json:"groups"`
}

// Empty returns a document with no groups.
func Empty() Document {
	return Document{Groups: []Group{}}
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := Document{Groups: make([]Group, len(d.Groups))}
	for i, g := range d.Groups {
		out.Groups[i] = Group{
			Label:  g.Label,
			Lights: append(make([]LightEntry, 0, len(g.Lights)), g.Lights...),
		}
	}
	return out
}

func (d *Document) indexOf(label string) int {
	for i, g := range d.Groups {
		if g.Label == label {
			return i
		}
	}
	return -1
}

// normalize makes nil slices empty so the file always spells out
// "groups": [] and "lights": [].
func (d *Document) normalize() {
	if d.Groups == nil {
		d.Groups = []Group{}
	}
	for i := range d.Groups {
		if d.Groups[i].Lights == nil {
			d.Groups[i].Lights = []LightEntry{}
		}
	}
}
