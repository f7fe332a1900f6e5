package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformMergesGroupsWithSameKey(t *testing.T) {
	raw := []RawGroup{
		{
			Type:  "DATASET",
			Total: 2,
			Entities: []RawEntity{
				{URN: "urn:li:dataset:1", Type: "DATASET", Name: "one", Status: "READY"},
				{URN: "urn:li:dataset:2", Type: "DATASET", Name: "two", Status: "NEW"},
			},
		},
		{
			Type:  "dataset", // same logical group, different casing
			Total: 1,
			Entities: []RawEntity{
				{URN: "urn:li:dataset:3", Type: "DATASET", Name: "three", Status: "READY"},
			},
		},
	}

	groups := Transform(raw)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "DATASET", g.Key)
	assert.Equal(t, "Dataset", g.Label)
	assert.Equal(t, 3, g.Total)
	assert.Len(t, g.Rows, 3)
	assert.Equal(t, 2, g.StatusCounts[StatusReady])
	assert.Equal(t, 1, g.StatusCounts[StatusNew])
	assert.Equal(t, 0, g.StatusCounts[StatusConflict])
	assert.Equal(t, 0, g.StatusCounts[StatusSkipped])
}

func TestTransformPrefersServerCounts(t *testing.T) {
	raw := []RawGroup{
		{
			Type:         "DATASET",
			Total:        10,
			StatusCounts: map[string]int{"READY": 7, "CONFLICT": 3},
			Entities: []RawEntity{
				{URN: "urn:li:dataset:1", Type: "DATASET", Name: "page-one-row", Status: "READY"},
			},
		},
	}

	groups := Transform(raw)
	require.Len(t, groups, 1)

	// Server counts cover the whole group even though only one page of rows
	// arrived, so they win over a derived tally.
	assert.Equal(t, 7, groups[0].StatusCounts[StatusReady])
	assert.Equal(t, 3, groups[0].StatusCounts[StatusConflict])
	assert.Equal(t, 10, groups[0].Total)
}

func TestTransformRebucketsNestedChildrenByOwnType(t *testing.T) {
	raw := []RawGroup{
		{
			Type: "CONTAINER",
			Entities: []RawEntity{
				{
					URN:  "urn:li:container:db",
					Type: "CONTAINER",
					Name: "warehouse",
					Children: []RawEntity{
						{URN: "urn:li:dataset:a", Type: "DATASET", Name: "orders"},
						{URN: "urn:li:dataset:b", Type: "DATASET", Name: "users"},
					},
				},
			},
		},
	}

	groups := Transform(raw)
	require.Len(t, groups, 2)

	assert.Equal(t, "CONTAINER", groups[0].Key)
	require.Len(t, groups[0].Rows, 1)
	assert.Empty(t, groups[0].Rows[0].Children)

	assert.Equal(t, "DATASET", groups[1].Key)
	assert.Len(t, groups[1].Rows, 2)
	for _, row := range groups[1].Rows {
		// Parent lives in a different bucket, so these are roots here.
		require.NotNil(t, row.ParentURN)
		assert.Equal(t, "urn:li:container:db", *row.ParentURN)
	}
}

func TestTransformRebuildsHierarchyWithinBucket(t *testing.T) {
	parent := "urn:li:dataset:parent"
	raw := []RawGroup{
		{
			Type: "DATASET",
			Entities: []RawEntity{
				{URN: parent, Type: "DATASET", Name: "parent"},
				{URN: "urn:li:dataset:child", Type: "DATASET", Name: "child", ParentURN: &parent},
				{URN: "urn:li:dataset:orphan", Type: "DATASET", Name: "orphan", ParentURN: strptr("urn:li:dataset:gone")},
			},
		},
	}

	groups := Transform(raw)
	require.Len(t, groups, 1)

	rows := groups[0].Rows
	require.Len(t, rows, 2) // parent and orphan are roots

	byURN := map[string]*EntityRow{}
	for _, r := range rows {
		byURN[r.URN] = r
	}
	require.Contains(t, byURN, parent)
	require.Len(t, byURN[parent].Children, 1)
	assert.Equal(t, "urn:li:dataset:child", byURN[parent].Children[0].URN)
	assert.Contains(t, byURN, "urn:li:dataset:orphan")
}

func TestTransformFlattensSubGroups(t *testing.T) {
	raw := []RawGroup{
		{
			Type: "DATASET",
			Entities: []RawEntity{
				{URN: "urn:li:dataset:top", Type: "DATASET", Name: "top"},
			},
			Groups: []RawGroup{
				{
					Type: "DATASET",
					Entities: []RawEntity{
						{URN: "urn:li:dataset:nested", Type: "DATASET", Name: "nested"},
					},
				},
			},
		},
	}

	groups := Transform(raw)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Rows, 2)
}

func TestTransformSynthesizesPlaceholderURNs(t *testing.T) {
	raw := []RawGroup{
		{
			Type: "DATASET",
			Entities: []RawEntity{
				{Type: "DATASET", Name: "not yet persisted", Status: "NEW"},
			},
		},
	}

	groups := Transform(raw)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Rows, 1)

	row := groups[0].Rows[0]
	assert.True(t, row.Placeholder)
	assert.True(t, strings.HasPrefix(row.URN, placeholderPrefix))
	assert.NotEqual(t, placeholderPrefix, row.URN)
}

func TestTransformUnknownStatusFallsBackToReady(t *testing.T) {
	raw := []RawGroup{
		{
			Type: "DATASET",
			Entities: []RawEntity{
				{URN: "urn:li:dataset:1", Type: "DATASET", Name: "a", Status: "SOMETHING_NEW"},
				{URN: "urn:li:dataset:2", Type: "DATASET", Name: "b", Status: ""},
			},
		},
	}

	groups := Transform(raw)
	require.Len(t, groups, 1)

	assert.Equal(t, StatusReady, groups[0].Rows[0].Status)
	assert.Equal(t, StatusReady, groups[0].Rows[1].Status)
	assert.Equal(t, 2, groups[0].StatusCounts[StatusReady])
}

func TestTransformDefaultsOriginalName(t *testing.T) {
	raw := []RawGroup{
		{
			Type: "DATASET",
			Entities: []RawEntity{
				{URN: "urn:li:dataset:1", Type: "DATASET", Name: "unchanged"},
				{URN: "urn:li:dataset:2", Type: "DATASET", Name: "Users Table", PreviousName: "users_table"},
			},
		},
	}

	groups := Transform(raw)
	require.Len(t, groups, 1)

	assert.Equal(t, "unchanged", groups[0].Rows[0].OriginalName)
	assert.Equal(t, "users_table", groups[0].Rows[1].OriginalName)
}

func TestBaselineOfIndexesChildren(t *testing.T) {
	parent := "urn:li:dataset:parent"
	raw := []RawGroup{
		{
			Type: "DATASET",
			Entities: []RawEntity{
				{URN: parent, Type: "DATASET", Name: "parent"},
				{URN: "urn:li:dataset:child", Type: "DATASET", Name: "child", ParentURN: &parent},
			},
		},
	}

	baseline := BaselineOf(Transform(raw))
	assert.Len(t, baseline, 2)
	assert.Contains(t, baseline, parent)
	assert.Contains(t, baseline, "urn:li:dataset:child")
}

func strptr(s string) *string { return &s }
