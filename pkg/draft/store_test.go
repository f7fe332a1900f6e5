package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/metastage/pkg/preview"
)

func strptr(s string) *string { return &s }

func testBaseline() preview.Baseline {
	docs := strptr("old docs")
	return preview.Baseline{
		"urn:li:dataset:orders": {
			URN:          "urn:li:dataset:orders",
			EntityType:   "DATASET",
			Name:         "Orders",
			OriginalName: "orders_raw",
			Description:  strptr("order events"),
			Aspects: []preview.Aspect{
				{Name: "documentation", NewValue: docs, PreviousValue: docs},
			},
		},
		"urn:li:dataset:users": {
			URN:          "urn:li:dataset:users",
			EntityType:   "DATASET",
			Name:         "Users",
			OriginalName: "Users",
		},
	}
}

func TestUpdateStoresMeaningfulOverride(t *testing.T) {
	baseline := testBaseline()
	store := NewStore()

	next := store.Update("urn:li:dataset:orders", Draft{Name: strptr("Orders v2")}, baseline)
	require.NotSame(t, store, next)

	d, ok := next.Get("urn:li:dataset:orders")
	require.True(t, ok)
	require.NotNil(t, d.Name)
	assert.Equal(t, "Orders v2", *d.Name)
}

func TestUpdateDropsOverrideEqualToPreview(t *testing.T) {
	baseline := testBaseline()
	store := NewStore()

	// Overriding with the current preview name is not a meaningful diff.
	next := store.Update("urn:li:dataset:orders", Draft{Name: strptr("Orders")}, baseline)
	assert.Same(t, store, next)
	assert.Equal(t, 0, next.Len())
}

func TestUpdateDropsAspectEqualToPreviewAfterNormalization(t *testing.T) {
	baseline := preview.Baseline{
		"urn:li:dataset:x": {
			URN:  "urn:li:dataset:x",
			Name: "x",
			Aspects: []preview.Aspect{
				{Name: "schema", NewValue: strptr(`{"a":1,"b":2}`)},
			},
		},
	}
	store := NewStore()

	// Equivalent JSON with different key order and whitespace.
	next := store.Update("urn:li:dataset:x", Draft{
		Aspects: map[string]*string{"schema": strptr(` { "b": 2, "a": 1 } `)},
	}, baseline)
	assert.Same(t, store, next)
}

func TestUpdateUnknownURNIsNoOp(t *testing.T) {
	store := NewStore()
	next := store.Update("urn:li:dataset:missing", Draft{Name: strptr("x")}, testBaseline())
	assert.Same(t, store, next)
}

func TestUpdateIsIdempotent(t *testing.T) {
	baseline := testBaseline()
	partial := Draft{
		Name:    strptr("Orders v2"),
		Aspects: map[string]*string{"documentation": strptr("new docs")},
	}

	once := NewStore().Update("urn:li:dataset:orders", partial, baseline)
	twice := once.Update("urn:li:dataset:orders", partial, baseline)
	assert.Same(t, once, twice)
}

func TestUpdateMergesAspectsLastWriteWins(t *testing.T) {
	baseline := testBaseline()
	store := NewStore().
		Update("urn:li:dataset:orders", Draft{Aspects: map[string]*string{"documentation": strptr("first")}}, baseline).
		Update("urn:li:dataset:orders", Draft{Aspects: map[string]*string{"documentation": strptr("second"), "ownership": strptr("team-a")}}, baseline)

	d, ok := store.Get("urn:li:dataset:orders")
	require.True(t, ok)
	require.Len(t, d.Aspects, 2)
	assert.Equal(t, "second", *d.Aspects["documentation"])
	assert.Equal(t, "team-a", *d.Aspects["ownership"])
}

func TestUpdateRemovesEntryWhenAllOverridesRevert(t *testing.T) {
	baseline := testBaseline()
	store := NewStore().Update("urn:li:dataset:orders", Draft{Name: strptr("Orders v2")}, baseline)
	require.Equal(t, 1, store.Len())

	// Reverting the name back to the preview value empties the draft.
	store = store.Update("urn:li:dataset:orders", Draft{Name: strptr("Orders")}, baseline)
	assert.Equal(t, 0, store.Len())
}

func TestExplicitAspectRemoveIsKept(t *testing.T) {
	baseline := testBaseline()
	store := NewStore().Update("urn:li:dataset:orders", Draft{
		Aspects: map[string]*string{"documentation": nil},
	}, baseline)

	d, ok := store.Get("urn:li:dataset:orders")
	require.True(t, ok)
	value, present := d.Aspects["documentation"]
	require.True(t, present)
	assert.Nil(t, value)
}

func TestPruneDropsVanishedEntities(t *testing.T) {
	baseline := testBaseline()
	store := NewStore().
		Update("urn:li:dataset:orders", Draft{Name: strptr("Orders v2")}, baseline).
		Update("urn:li:dataset:users", Draft{Name: strptr("Users v2")}, baseline)
	require.Equal(t, 2, store.Len())

	shrunk := preview.Baseline{"urn:li:dataset:users": baseline["urn:li:dataset:users"]}
	pruned := store.Prune(shrunk)

	assert.Equal(t, 1, pruned.Len())
	_, ok := pruned.Get("urn:li:dataset:orders")
	assert.False(t, ok)

	// Pruning against a baseline that still has everything is a no-op.
	assert.Same(t, pruned, pruned.Prune(shrunk))
}

func TestRemove(t *testing.T) {
	baseline := testBaseline()
	store := NewStore().Update("urn:li:dataset:orders", Draft{Name: strptr("Orders v2")}, baseline)

	removed := store.Remove("urn:li:dataset:orders")
	assert.Equal(t, 0, removed.Len())
	assert.Same(t, removed, removed.Remove("urn:li:dataset:orders"))
}

func TestURNsSorted(t *testing.T) {
	baseline := testBaseline()
	store := NewStore().
		Update("urn:li:dataset:users", Draft{Name: strptr("U")}, baseline).
		Update("urn:li:dataset:orders", Draft{Name: strptr("O")}, baseline)

	assert.Equal(t, []string{"urn:li:dataset:orders", "urn:li:dataset:users"}, store.URNs())
}
