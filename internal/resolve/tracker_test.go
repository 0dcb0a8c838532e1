package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/meshflow/internal/metadata"
	"github.com/vk/meshflow/internal/state"
)

type insertion struct {
	placement Placement
	pkg, name string
}

type recordingSink struct {
	got []insertion
}

func (r *recordingSink) Insert(p Placement, pkg, name string, _ metadata.Descriptor) error {
	r.got = append(r.got, insertion{placement: p, pkg: pkg, name: name})
	return nil
}

func TestPlacementKey(t *testing.T) {
	assert.Equal(t, "hydro::rho", MangleAndInsert.Key("hydro", "rho"))
	assert.Equal(t, "rho", InsertBare.Key("hydro", "rho"))
	assert.Equal(t, "mangle", MangleAndInsert.String())
	assert.Equal(t, "bare", InsertBare.String())
}

func TestTrackerSort(t *testing.T) {
	tr := NewTracker("variable")
	sink := &recordingSink{}

	require.NoError(t, tr.Sort("a", "tmp", metadata.New(metadata.Private, cell), sink))
	require.NoError(t, tr.Sort("a", "rho", metadata.New(metadata.Provides, cell), sink))
	require.NoError(t, tr.Sort("b", "rho", metadata.New(metadata.Requires, cell), sink))
	require.NoError(t, tr.Sort("b", "eps", metadata.New(metadata.Overridable, cell), sink))

	assert.Equal(t, []insertion{
		{MangleAndInsert, "a", "tmp"},
		{InsertBare, "a", "rho"},
	}, sink.got, "requires and overridable are deferred")
	assert.True(t, tr.Provided("rho"))
	assert.False(t, tr.Provided("eps"))
	assert.NoError(t, tr.CheckRequires())

	err := tr.Sort("c", "rho", metadata.New(metadata.Provides, cell), sink)
	assert.ErrorIs(t, err, state.ErrSchemaConflict)
}

func TestTrackerSortCollectionOrder(t *testing.T) {
	tr := NewTracker("variable")
	sink := &recordingSink{}

	err := tr.SortCollection("a", map[string]metadata.Descriptor{
		"c": metadata.New(metadata.Provides, cell),
		"a": metadata.New(metadata.Provides, cell),
		"b": metadata.New(metadata.Private, cell),
	}, sink)
	require.NoError(t, err)
	assert.Equal(t, []insertion{
		{InsertBare, "a", "a"},
		{MangleAndInsert, "a", "b"},
		{InsertBare, "a", "c"},
	}, sink.got)
}

func TestTrackerCheckOverridable(t *testing.T) {
	tr := NewTracker("variable")
	sink := &recordingSink{}

	require.NoError(t, tr.Sort("a", "eps", metadata.New(metadata.Overridable, cell), sink))
	require.NoError(t, tr.Sort("b", "eps", metadata.New(metadata.Overridable, cell), sink))
	require.NoError(t, tr.Sort("a", "gamma", metadata.New(metadata.Overridable, cell), sink))
	require.NoError(t, tr.Sort("c", "gamma", metadata.New(metadata.Provides, cell), sink))
	sink.got = nil

	warnings, err := tr.CheckOverridable(sink)
	require.NoError(t, err)
	assert.Equal(t, []insertion{{InsertBare, "a", "eps"}}, sink.got)
	require.Len(t, warnings, 1)
	assert.Equal(t, "eps", warnings[0].Name)
	assert.Equal(t, 2, warnings[0].Count)
}

func TestTrackerUnknownRole(t *testing.T) {
	tr := NewTracker("swarm")
	err := tr.Sort("a", "s", metadata.New(metadata.None, 0), &recordingSink{})
	assert.ErrorIs(t, err, state.ErrUnknownDependency)
	assert.ErrorContains(t, err, "unknown dependency role 'none'")
}
