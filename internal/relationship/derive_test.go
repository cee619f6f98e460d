package relationship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/introspection"
	"gql2sql/internal/naming"
	"gql2sql/internal/testutil/sakila"
)

func findEntry(entries []Entry, name, left, right string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name && e.Left == left && e.Right == right {
			return e, true
		}
	}
	return Entry{}, false
}

func TestDerive_Sakila(t *testing.T) {
	catalog, err := introspection.Parse(sakila.CatalogYAML)
	require.NoError(t, err)

	entries := Derive(catalog, naming.Default())

	tests := []struct {
		name     string
		left     string
		right    string
		strategy Strategy
	}{
		{"language", "film", "language", Direct},
		{"original_language", "film", "language", Direct},
		{"language_films", "language", "film", Reverse},
		{"original_language_films", "language", "film", Reverse},
		{"inventories", "store", "inventory", Reverse},
		{"film", "inventory", "film", Direct},
		{"parent_category", "category", "category", Self},
		{"categories", "category", "category", Self},
		{"actors", "film", "actor", Junction},
		{"films", "actor", "film", Junction},
		{"categories", "film", "category", Junction},
		{"films", "category", "film", Junction},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.left, func(t *testing.T) {
			e, ok := findEntry(entries, tt.name, tt.left, tt.right)
			require.True(t, ok)
			assert.Equal(t, tt.strategy, e.Strategy)
			assert.NoError(t, Check(e, catalog))
		})
	}

	// inventory has its own primary key, so it is not a junction.
	_, ok := findEntry(entries, "stores", "film", "store")
	assert.False(t, ok)
}

func TestDerive_JunctionColumns(t *testing.T) {
	catalog, err := introspection.Parse(sakila.CatalogYAML)
	require.NoError(t, err)

	e, ok := findEntry(Derive(catalog, nil), "actors", "film", "actor")
	require.True(t, ok)
	require.NotNil(t, e.Through)
	assert.Equal(t, "film_actor", e.Through.Table)
	assert.Equal(t, []JunctionPair{{Column: "film_id", Junction: "film_id"}}, e.Through.Left)
	assert.Equal(t, []JunctionPair{{Column: "actor_id", Junction: "actor_id"}}, e.Through.Right)
}

func TestCheck_UnknownColumn(t *testing.T) {
	catalog, err := introspection.Parse(sakila.CatalogYAML)
	require.NoError(t, err)

	err = Check(Entry{Name: "x", Left: "film", Right: "language", Strategy: Direct, On: []ColumnPair{{Left: "lang", Right: "language_id"}}}, catalog)
	assert.ErrorContains(t, err, "unknown column film.lang")

	err = Check(Entry{Name: "x", Left: "film", Right: "nope", Strategy: Direct, On: []ColumnPair{{Left: "language_id", Right: "id"}}}, catalog)
	assert.ErrorContains(t, err, "unknown table nope")
}

func TestParse(t *testing.T) {
	entries, err := Parse(sakila.RelationshipsYAML)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, Reverse, entries[0].Strategy)
	assert.Equal(t, Self, entries[1].Strategy)
	assert.Equal(t, Junction, entries[2].Strategy)

	entries, err = Parse([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Parse([]byte("relationships:\n  - name: x\n    left: a\n    right: b\n    bogus: 1\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("relationships:\n  - name: x\n    left: a\n    right: b\n"))
	assert.ErrorContains(t, err, "relationships[0]")
}

func TestBuild(t *testing.T) {
	catalog, err := introspection.Parse(sakila.CatalogYAML)
	require.NoError(t, err)
	overlay, err := Parse(sakila.RelationshipsYAML)
	require.NoError(t, err)

	derived, err := Build(catalog, naming.Default(), true, overlay)
	require.NoError(t, err)
	_, ok := derived.Lookup("actors", "film", "actor")
	assert.True(t, ok)
	_, ok = derived.Lookup("subcategories", "category", "category")
	assert.True(t, ok)

	overlayOnly, err := Build(catalog, naming.Default(), false, overlay)
	require.NoError(t, err)
	assert.Equal(t, len(overlay), overlayOnly.Len())

	_, err = Build(catalog, naming.Default(), false, []Entry{{
		Name: "ghost", Left: "film", Right: "nowhere", Strategy: Direct,
		On: []ColumnPair{{Left: "film_id", Right: "film_id"}},
	}})
	require.Error(t, err)
}
