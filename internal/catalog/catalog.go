// Package catalog describes the departments whose booking forms can be
// watched, and discovers which appointment types each one currently offers.
package catalog

import (
	"sort"
)

// Department is a plain descriptor of one booking office. The set of
// departments is data, not code: adding one means appending to Defaults().
type Department struct {
	// ID is the stable machine-readable identifier stored in subscriptions.
	ID string
	// Name is the human-readable office name shown in menus.
	Name string
	// FrameURL is the booking form endpoint, used both for type discovery
	// and for availability lookups.
	FrameURL string
	// BasePage is the public page embedding the frame. Not used by the bot
	// itself, kept for debugging against the live site.
	BasePage string
	// TypicalTypes are the most requested appointment types, pinned on top
	// of the selection menu. They must match the discovered type strings
	// literally.
	TypicalTypes []string
}

// Registry maps department IDs to descriptors.
type Registry struct {
	deps []Department
	byID map[string]Department
}

func NewRegistry(deps ...Department) *Registry {
	r := &Registry{byID: make(map[string]Department, len(deps))}
	for _, d := range deps {
		if _, dup := r.byID[d.ID]; dup {
			continue
		}
		r.deps = append(r.deps, d)
		r.byID[d.ID] = d
	}
	return r
}

// Departments returns descriptors in registration order.
func (r *Registry) Departments() []Department {
	out := make([]Department, len(r.deps))
	copy(out, r.deps)
	return out
}

func (r *Registry) ByID(id string) (Department, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// IDs returns all department IDs, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.deps))
	for _, d := range r.deps {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return ids
}

// Defaults returns the Munich departments served by the
// .../termin/index.php booking frames.
func Defaults() *Registry {
	return NewRegistry(
		Department{
			ID:       "fs",
			Name:     "Führerscheinstelle",
			FrameURL: "https://www22.muenchen.de/termin/index.php?loc=FS",
			BasePage: "https://www.muenchen.de/rathaus/terminvereinbarung_fs.html",
			TypicalTypes: []string{
				"FS Umschreibung Ausländischer FS",
			},
		},
		Department{
			ID:       "bb",
			Name:     "Bürgerbüro",
			FrameURL: "https://www56.muenchen.de/termin/index.php?loc=BB",
			BasePage: "https://www.muenchen.de/rathaus/terminvereinbarung_bb.html",
			TypicalTypes: []string{
				"An- oder Ummeldung - Einzelperson",
				"An- oder Ummeldung - Einzelperson mit eigenen Fahrzeugen",
				"An- oder Ummeldung - Familie",
				"An- oder Ummeldung - Familie mit eigenen Fahrzeugen",
				"Abmeldung (Einzelperson oder Familie)",
			},
		},
		Department{
			ID:       "abh",
			Name:     "Ausländerbehörde",
			FrameURL: "https://www46.muenchen.de/termin/index.php?loc=ABH",
			BasePage: "https://www.muenchen.de/rathaus/terminvereinbarung_abh.html?cts=",
			TypicalTypes: []string{
				"Aufenthaltserlaubnis Blaue Karte EU",
				"Aufenthaltserlaubnis zum Studium",
				"Niederlassungserlaubnis allgemein",
			},
		},
		Department{
			ID:       "kfz",
			Name:     "Kfz-Zulassung",
			FrameURL: "https://www22.muenchen.de/termin/index.php?loc=KFZ",
			BasePage: "https://www.muenchen.de/rathaus/terminvereinbarung_kfz.html",
			TypicalTypes: []string{
				"ZUL Fabrikneues Fahrzeug",
			},
		},
		Department{
			ID:       "va",
			Name:     "Versicherungsamt",
			FrameURL: "https://www5.muenchen.de/termin/index.php?loc=VA",
			BasePage: "https://www.muenchen.de/rathaus/terminvereinbarung_va.html",
		},
	)
}
