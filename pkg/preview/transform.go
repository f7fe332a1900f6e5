package preview

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// placeholderPrefix marks locally synthesized URNs for rows the server sent
// without an identifier.
const placeholderPrefix = "urn:li:placeholder:"

// titleCase builds a fresh caser per call: cases.Caser carries internal
// state and is not safe for concurrent use across overlapping transforms.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// Transform converts a raw nested server response into flat-friendly groups
// keyed by normalized entity type.
//
// Raw groups sharing a key are merged first (summed totals, merged status
// counts, concatenated entity and sub-group lists), since the server may
// split one logical group across pages or sections. Nested sub-group rows
// are flattened into their parent group's row list. Every row, including
// previously nested children, is then re-bucketed by its own entity type and
// the hierarchy is rebuilt from parent references, so an entity is grouped
// by what it is even when it arrived nested under a different-typed parent.
func Transform(raw []RawGroup) []EntityGroup {
	merged := mergeRawGroups(raw)

	// Per-key server metadata survives the re-bucketing below.
	serverCounts := make(map[string]map[string]int, len(merged))
	serverTotals := make(map[string]int, len(merged))
	labels := make(map[string]string, len(merged))
	for _, m := range merged {
		serverCounts[m.key] = m.counts
		serverTotals[m.key] = m.total
		if m.label != "" {
			labels[m.key] = m.label
		}
	}

	// Flatten every row tree from every merged group into one list.
	var flat []*EntityRow
	for _, m := range merged {
		for _, entity := range m.entities {
			flattenRow(rowFromRaw(entity), &flat)
		}
		for _, sub := range m.subgroups {
			flattenSubGroup(sub, &flat)
		}
	}

	// Re-bucket by each row's own entity type, preserving first-seen group
	// order and appending types that only occurred as nested children.
	order := make([]string, 0, len(merged))
	buckets := make(map[string][]*EntityRow)
	for _, m := range merged {
		order = append(order, m.key)
		buckets[m.key] = nil
	}
	for _, row := range flat {
		key := normalizeGroupKey(row.EntityType)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], row)
	}

	groups := make([]EntityGroup, 0, len(order))
	for _, key := range order {
		rows := buckets[key]
		if len(rows) == 0 {
			continue
		}
		roots := rebuildHierarchy(rows)

		counts := statusCountsFor(serverCounts[key], roots)
		total := serverTotals[key]
		if total == 0 {
			total = len(rows)
		}

		groups = append(groups, EntityGroup{
			Key:          key,
			Label:        groupLabel(key, labels[key]),
			Total:        total,
			StatusCounts: counts,
			Rows:         roots,
		})
	}

	return groups
}

// mergedGroup accumulates raw groups sharing a normalized key.
type mergedGroup struct {
	key       string
	label     string
	total     int
	counts    map[string]int
	entities  []RawEntity
	subgroups []RawGroup
}

func mergeRawGroups(raw []RawGroup) []*mergedGroup {
	var order []*mergedGroup
	byKey := make(map[string]*mergedGroup)

	for _, g := range raw {
		key := normalizeGroupKey(g.Type)
		m, ok := byKey[key]
		if !ok {
			m = &mergedGroup{key: key, counts: make(map[string]int)}
			byKey[key] = m
			order = append(order, m)
		}
		if m.label == "" {
			m.label = strings.TrimSpace(g.Label)
		}
		m.total += g.Total
		for status, n := range g.StatusCounts {
			m.counts[status] += n
		}
		m.entities = append(m.entities, g.Entities...)
		m.subgroups = append(m.subgroups, g.Groups...)
	}

	return order
}

// flattenSubGroup flattens a nested sub-group's rows (and those of its own
// sub-groups) into the accumulator.
func flattenSubGroup(g RawGroup, out *[]*EntityRow) {
	for _, entity := range g.Entities {
		flattenRow(rowFromRaw(entity), out)
	}
	for _, sub := range g.Groups {
		flattenSubGroup(sub, out)
	}
}

// flattenRow appends a row and its descendants as siblings, detaching the
// nested structure so hierarchy can be rebuilt from parent references.
func flattenRow(row *EntityRow, out *[]*EntityRow) {
	children := row.Children
	row.Children = nil
	*out = append(*out, row)
	for _, child := range children {
		// A nested child without an explicit parent reference still belongs
		// to the row it arrived under.
		if child.ParentURN == nil {
			parent := row.URN
			child.ParentURN = &parent
		}
		flattenRow(child, out)
	}
}

func rowFromRaw(e RawEntity) *EntityRow {
	row := &EntityRow{
		URN:                 e.URN,
		EntityType:          strings.TrimSpace(e.Type),
		Name:                e.Name,
		OriginalName:        e.PreviousName,
		Description:         e.Description,
		OriginalDescription: e.PreviousDescription,
		Status:              parseStatus(e.Status),
		Path:                append([]string(nil), e.Path...),
		ParentURN:           e.ParentURN,
	}

	if row.URN == "" {
		// Not-yet-persisted previews have no server identifier; synthesize
		// one so rows stay uniquely addressable within this snapshot.
		row.URN = placeholderPrefix + uuid.NewString()
		row.Placeholder = true
	}
	if row.OriginalName == "" {
		row.OriginalName = e.Name
	}

	for _, a := range e.Aspects {
		row.Aspects = append(row.Aspects, Aspect{
			Name:          a.AspectName,
			DisplayName:   aspectLabel(a),
			Description:   a.Description,
			NewValue:      a.NewValue,
			PreviousValue: a.PreviousValue,
			ChangeType:    a.ChangeType,
		})
	}

	for _, child := range e.Children {
		row.Children = append(row.Children, rowFromRaw(child))
	}

	return row
}

// rebuildHierarchy turns a flat bucket back into trees: rows whose parent is
// present in the same bucket become children of it, everything else is a
// root.
func rebuildHierarchy(rows []*EntityRow) []*EntityRow {
	index := make(map[string]*EntityRow, len(rows))
	for _, row := range rows {
		index[row.URN] = row
	}

	var roots []*EntityRow
	for _, row := range rows {
		if row.ParentURN != nil {
			if parent, ok := index[*row.ParentURN]; ok && parent != row {
				parent.Children = append(parent.Children, row)
				continue
			}
		}
		roots = append(roots, row)
	}
	return roots
}

// statusCountsFor prefers server-provided counts when any are non-zero and
// otherwise derives them by walking the row tree. All four statuses are
// always present in the result.
func statusCountsFor(server map[string]int, roots []*EntityRow) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}

	provided := false
	for _, n := range server {
		if n != 0 {
			provided = true
			break
		}
	}

	if provided {
		for status, n := range server {
			counts[parseStatus(status)] += n
		}
		return counts
	}

	for _, root := range roots {
		tallyStatus(root, counts)
	}
	return counts
}

func tallyStatus(row *EntityRow, counts map[Status]int) {
	counts[row.Status]++
	for _, child := range row.Children {
		tallyStatus(child, counts)
	}
}

// parseStatus maps a raw server status to the known set. Empty and
// unrecognized values fall back to READY, so a new server-side status counts
// toward the READY tally until it is added here.
func parseStatus(raw string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusConflict:
		return StatusConflict
	case StatusNew:
		return StatusNew
	case StatusSkipped:
		return StatusSkipped
	default:
		return StatusReady
	}
}

func normalizeGroupKey(entityType string) string {
	key := strings.ToUpper(strings.TrimSpace(entityType))
	if key == "" {
		return "UNKNOWN"
	}
	return key
}

func groupLabel(key, serverLabel string) string {
	if serverLabel != "" {
		return serverLabel
	}
	return titleCase(strings.ToLower(strings.ReplaceAll(key, "_", " ")))
}

func aspectLabel(a RawAspect) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return titleCase(strings.ToLower(strings.ReplaceAll(a.AspectName, "_", " ")))
}
