// Package draft holds per-entity user overrides layered on top of a preview
// snapshot. The store only ever contains meaningful diffs: an override that
// normalizes to the entity's current preview value is dropped, and an entity
// whose overrides all drop is removed from the store entirely.
package draft

import (
	"github.com/agentstation/metastage/pkg/normalize"
	"github.com/agentstation/metastage/pkg/preview"
)

// Draft is the set of pending overrides for one entity. A nil field means
// untouched. An aspect override mapped to nil is an explicit remove, which
// is distinct from the aspect being absent from the map.
type Draft struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Aspects     map[string]*string `json:"aspects,omitempty"`
}

// IsZero reports whether the draft carries no overrides at all.
func (d Draft) IsZero() bool {
	return d.Name == nil && d.Description == nil && len(d.Aspects) == 0
}

func (d Draft) equal(other Draft) bool {
	if !ptrEqual(d.Name, other.Name) || !ptrEqual(d.Description, other.Description) {
		return false
	}
	if len(d.Aspects) != len(other.Aspects) {
		return false
	}
	for name, value := range d.Aspects {
		otherValue, ok := other.Aspects[name]
		if !ok || !ptrEqual(value, otherValue) {
			return false
		}
	}
	return true
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// normalized returns the draft reduced to overrides that actually differ
// from the entity's current preview values.
func (d Draft) normalized(row *preview.EntityRow) Draft {
	out := Draft{}

	if d.Name != nil && *d.Name != row.Name {
		out.Name = d.Name
	}
	if d.Description != nil && !normalize.EqualFoldEmpty(d.Description, row.Description) {
		out.Description = d.Description
	}

	for name, value := range d.Aspects {
		aspect := row.Aspect(name)
		var current *string
		if aspect != nil {
			current = aspect.NewValue
		}
		if normalize.Equal(value, current) {
			continue
		}
		if out.Aspects == nil {
			out.Aspects = make(map[string]*string)
		}
		out.Aspects[name] = value
	}

	return out
}

// merge overlays a partial update onto the draft, last write wins per field
// and per aspect name.
func (d Draft) merge(partial Draft) Draft {
	out := Draft{
		Name:        d.Name,
		Description: d.Description,
	}
	if partial.Name != nil {
		out.Name = partial.Name
	}
	if partial.Description != nil {
		out.Description = partial.Description
	}

	if len(d.Aspects) > 0 || len(partial.Aspects) > 0 {
		out.Aspects = make(map[string]*string, len(d.Aspects)+len(partial.Aspects))
		for name, value := range d.Aspects {
			out.Aspects[name] = value
		}
		for name, value := range partial.Aspects {
			out.Aspects[name] = value
		}
	}

	return out
}
