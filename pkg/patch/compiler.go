package patch

import (
	"sort"

	"github.com/agentstation/metastage/pkg/draft"
	"github.com/agentstation/metastage/pkg/normalize"
	"github.com/agentstation/metastage/pkg/preview"
)

// Compile produces the ordered operation list for one entity: name first,
// then description, then aspects sorted by name for reproducible output.
func Compile(d draft.Draft, row *preview.EntityRow) []Operation {
	var ops []Operation

	if op := compileName(d, row); op != nil {
		ops = append(ops, *op)
	}
	if op := compileDescription(d, row); op != nil {
		ops = append(ops, *op)
	}
	ops = append(ops, compileAspects(d, row)...)

	return ops
}

// ForEntity compiles a full entity patch, or nil when nothing changed.
func ForEntity(d draft.Draft, row *preview.EntityRow) *EntityPatch {
	ops := Compile(d, row)
	if len(ops) == 0 {
		return nil
	}
	return &EntityPatch{
		URN:        row.URN,
		EntityType: row.EntityType,
		Operations: ops,
	}
}

func compileName(d draft.Draft, row *preview.EntityRow) *Operation {
	effective := row.Name
	if d.Name != nil {
		effective = *d.Name
	}
	if effective == row.OriginalName {
		return nil
	}
	return &Operation{Op: OpReplace, Path: "/name", Value: effective}
}

func compileDescription(d draft.Draft, row *preview.EntityRow) *Operation {
	effective := row.Description
	if d.Description != nil {
		effective = d.Description
	}
	if normalize.EqualFoldEmpty(effective, row.OriginalDescription) {
		return nil
	}

	value := normalize.Resolve(effective)
	if value == nil {
		value = ""
	}
	return &Operation{Op: OpReplace, Path: "/description", Value: value}
}

func compileAspects(d draft.Draft, row *preview.EntityRow) []Operation {
	names := aspectUnion(d, row)

	var ops []Operation
	for _, name := range names {
		aspect := row.Aspect(name)

		// Effective target: draft override when explicitly provided,
		// otherwise the baseline's current preview value. A baseline aspect
		// with a nil preview value is a proposed deletion and flows through
		// to the comparison rather than being skipped as unset.
		var effective *string
		override, touched := d.Aspects[name]
		switch {
		case touched:
			effective = override
		case aspect != nil:
			effective = aspect.NewValue
		default:
			continue
		}

		var original *string
		if aspect != nil {
			original = aspect.PreviousValue
		}
		if normalize.Equal(effective, original) {
			continue
		}

		path := "/aspects/" + name
		resolved := normalize.Resolve(effective)
		if resolved == nil {
			ops = append(ops, Operation{Op: OpRemove, Path: path})
			continue
		}

		// Replace covers wholly new aspects too; the mutation endpoint
		// upserts on replace, add exists only for wire compatibility.
		ops = append(ops, Operation{Op: OpReplace, Path: path, Value: resolved})
	}

	return ops
}

// aspectUnion is the sorted union of aspect names known to the baseline and
// names touched by the draft.
func aspectUnion(d draft.Draft, row *preview.EntityRow) []string {
	seen := make(map[string]bool, len(row.Aspects)+len(d.Aspects))
	names := make([]string, 0, len(row.Aspects)+len(d.Aspects))

	for i := range row.Aspects {
		if name := row.Aspects[i].Name; !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range d.Aspects {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names
}
