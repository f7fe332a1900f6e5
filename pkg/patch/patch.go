// Package patch compiles the minimal set of field-level operations needed to
// turn an entity's original metadata into its effective target state: the
// server's proposed preview values overlaid with any user draft. Comparison
// is always against the untouched original, never the preview, so a proposed
// change the user left alone is still part of the patch.
package patch

// Op is the kind of a patch operation.
type Op string

const (
	// OpAdd introduces a value at a path that did not exist.
	OpAdd Op = "add"
	// OpReplace sets the value at a path.
	OpReplace Op = "replace"
	// OpRemove clears the value at a path.
	OpRemove Op = "remove"
)

// Operation is one field-level change instruction targeting a
// JSON-pointer-like path.
type Operation struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// EntityPatch is the ordered operation list for one entity.
type EntityPatch struct {
	URN        string      `json:"urn"`
	EntityType string      `json:"entityType"`
	Operations []Operation `json:"operations"`
}

// IsEmpty reports whether the patch carries no operations.
func (p *EntityPatch) IsEmpty() bool {
	return len(p.Operations) == 0
}
