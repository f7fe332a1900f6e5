// Package preview models a server-provided entity import preview: a batch of
// proposed metadata changes grouped by entity type, with per-row original and
// proposed values. Snapshots are rebuilt fresh on every fetch and never
// mutated in place.
package preview

// Status classifies the state of a previewed entity.
type Status string

const (
	// StatusReady indicates the change can be applied as-is.
	StatusReady Status = "READY"
	// StatusConflict indicates the change collides with existing metadata.
	StatusConflict Status = "CONFLICT"
	// StatusNew indicates the entity does not yet exist upstream.
	StatusNew Status = "NEW"
	// StatusSkipped indicates the entity was excluded from the import.
	StatusSkipped Status = "SKIPPED"
)

// Statuses lists every status in display order. Status count maps always
// carry all four keys.
var Statuses = []Status{StatusReady, StatusConflict, StatusNew, StatusSkipped}

// Aspect is a single proposed aspect delta on an entity.
type Aspect struct {
	Name          string  `json:"name"`
	DisplayName   string  `json:"displayName"`
	Description   *string `json:"description,omitempty"`
	NewValue      *string `json:"newValue,omitempty"`      // proposed value (stringified structured value or plain string)
	PreviousValue *string `json:"previousValue,omitempty"` // original value, same representation
	ChangeType    string  `json:"changeType,omitempty"`    // freeform server tag, e.g. UPSERT or DELETE
}

// EntityRow is one previewed entity. Children are tree-owned; a row appears
// under at most one parent within its group.
type EntityRow struct {
	URN                 string       `json:"urn"`
	EntityType          string       `json:"entityType"`
	Name                string       `json:"name"`         // proposed display name
	OriginalName        string       `json:"originalName"` // name before the import
	Description         *string      `json:"description,omitempty"`
	OriginalDescription *string      `json:"originalDescription,omitempty"`
	Status              Status       `json:"status"`
	Path                []string     `json:"path,omitempty"`
	ParentURN           *string      `json:"parentUrn,omitempty"`
	Children            []*EntityRow `json:"children,omitempty"`
	Aspects             []Aspect     `json:"aspects,omitempty"`

	// Placeholder marks rows whose URN was synthesized locally because the
	// server did not assign one. Placeholder URNs are list-key material only
	// and must never be submitted in a patch.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Aspect returns the row's aspect with the given name, or nil.
func (r *EntityRow) Aspect(name string) *Aspect {
	for i := range r.Aspects {
		if r.Aspects[i].Name == name {
			return &r.Aspects[i]
		}
	}
	return nil
}

// EntityGroup is a flat-friendly bucket of previewed entities sharing an
// entity type, with hierarchy reassembled from parent references.
type EntityGroup struct {
	Key          string         `json:"key"`
	Label        string         `json:"label"`
	Total        int            `json:"total"`
	StatusCounts map[Status]int `json:"statusCounts"`
	Rows         []*EntityRow   `json:"rows"`
}

// Baseline is the flat URN to row index derived from a snapshot's groups.
// It is a pure derivation and is rebuilt whenever the groups are.
type Baseline map[string]*EntityRow

// BaselineOf flattens a set of groups into a Baseline, walking every row
// tree including reassembled children.
func BaselineOf(groups []EntityGroup) Baseline {
	baseline := make(Baseline)
	for gi := range groups {
		for _, row := range groups[gi].Rows {
			indexRow(baseline, row)
		}
	}
	return baseline
}

func indexRow(baseline Baseline, row *EntityRow) {
	baseline[row.URN] = row
	for _, child := range row.Children {
		indexRow(baseline, child)
	}
}
