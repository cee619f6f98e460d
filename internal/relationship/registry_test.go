package relationship

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/introspection"
	"gql2sql/internal/naming"
	"gql2sql/internal/testutil/sakila"
)

func sakilaRegistry(t *testing.T) *Registry {
	t.Helper()
	catalog, err := introspection.Parse(sakila.CatalogYAML)
	require.NoError(t, err)
	overlay, err := Parse(sakila.RelationshipsYAML)
	require.NoError(t, err)

	registry := NewRegistry()
	for _, e := range append(Derive(catalog, naming.Default()), overlay...) {
		require.NoError(t, Check(e, catalog), e.Name)
		require.NoError(t, registry.Register(e))
	}
	return registry
}

func resolveSQL(t *testing.T, r *Registry, name string, left, right TableRef) string {
	t.Helper()
	pred, err := r.Resolve(name, left, right)
	require.NoError(t, err)
	sql, args, err := pred.ToSql()
	require.NoError(t, err)
	assert.Empty(t, args)
	return sql
}

func TestResolve_Strategies(t *testing.T) {
	registry := sakilaRegistry(t)

	tests := []struct {
		name     string
		relation string
		left     TableRef
		right    TableRef
		expected string
	}{
		{
			name:     "direct foreign key",
			relation: "language",
			left:     TableRef{Table: "film", Alias: "films-1"},
			right:    TableRef{Table: "language", Alias: "language-2"},
			expected: "`films-1`.`language_id` = `language-2`.`language_id`",
		},
		{
			name:     "second foreign key to the same table",
			relation: "original_language",
			left:     TableRef{Table: "film", Alias: "films-1"},
			right:    TableRef{Table: "language", Alias: "original_language-2"},
			expected: "`films-1`.`original_language_id` = `original_language-2`.`language_id`",
		},
		{
			name:     "reverse foreign key",
			relation: "inventories",
			left:     TableRef{Table: "store", Alias: "stores-1"},
			right:    TableRef{Table: "inventory", Alias: "inventories-2"},
			expected: "`stores-1`.`store_id` = `inventories-2`.`store_id`",
		},
		{
			name:     "junction table",
			relation: "actors",
			left:     TableRef{Table: "film", Alias: "films-1"},
			right:    TableRef{Table: "actor", Alias: "actors-2"},
			expected: "EXISTS (SELECT 1 FROM `film_actor` AS `j_actors-2` WHERE `j_actors-2`.`film_id` = `films-1`.`film_id` AND `j_actors-2`.`actor_id` = `actors-2`.`actor_id`)",
		},
		{
			name:     "junction table from the other side",
			relation: "films",
			left:     TableRef{Table: "actor", Alias: "actors-1"},
			right:    TableRef{Table: "film", Alias: "films-2"},
			expected: "EXISTS (SELECT 1 FROM `film_actor` AS `j_films-2` WHERE `j_films-2`.`actor_id` = `actors-1`.`actor_id` AND `j_films-2`.`film_id` = `films-2`.`film_id`)",
		},
		{
			name:     "self reference to parent",
			relation: "parent_category",
			left:     TableRef{Table: "category", Alias: "categories-1"},
			right:    TableRef{Table: "category", Alias: "parent_category-2"},
			expected: "`categories-1`.`parent_category_id` = `parent_category-2`.`category_id`",
		},
		{
			name:     "self reference to children",
			relation: "subcategories",
			left:     TableRef{Table: "category", Alias: "categories-1"},
			right:    TableRef{Table: "category", Alias: "subcategories-2"},
			expected: "`categories-1`.`category_id` = `subcategories-2`.`parent_category_id`",
		},
		{
			name:     "overlay junction through an attribute table",
			relation: "stores",
			left:     TableRef{Table: "film", Alias: "films-1"},
			right:    TableRef{Table: "store", Alias: "stores-2"},
			expected: "EXISTS (SELECT 1 FROM `inventory` AS `j_stores-2` WHERE `j_stores-2`.`film_id` = `films-1`.`film_id` AND `j_stores-2`.`store_id` = `stores-2`.`store_id`)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveSQL(t, registry, tt.relation, tt.left, tt.right))
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	registry := sakilaRegistry(t)

	_, err := registry.Resolve("actors", TableRef{Table: "language", Alias: "l"}, TableRef{Table: "actor", Alias: "a"})
	require.Error(t, err)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "actors", notFound.Name)
	assert.Equal(t, `no relationship called "actors" found for tables language and actor`, err.Error())
}

func TestResolve_DirectionMatters(t *testing.T) {
	registry := sakilaRegistry(t)

	_, ok := registry.Lookup("language", "film", "language")
	assert.True(t, ok)
	_, ok = registry.Lookup("language", "language", "film")
	assert.False(t, ok)
}

func TestRegister_OverridesByKey(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(Entry{Name: "owner", Left: "pet", Right: "person", Strategy: Direct, On: []ColumnPair{{Left: "owner_id", Right: "id"}}}))
	require.NoError(t, registry.Register(Entry{Name: "owner", Left: "pet", Right: "person", Strategy: Direct, On: []ColumnPair{{Left: "person_id", Right: "id"}}}))

	assert.Equal(t, 1, registry.Len())
	sql := resolveSQL(t, registry, "owner", TableRef{Table: "pet", Alias: "p"}, TableRef{Table: "person", Alias: "o"})
	assert.Equal(t, "`p`.`person_id` = `o`.`id`", sql)
}

func TestRegister_MultiColumnKey(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(Entry{
		Name: "store", Left: "rental", Right: "store", Strategy: Direct,
		On: []ColumnPair{{Left: "tenant_id", Right: "tenant_id"}, {Left: "store_id", Right: "store_id"}},
	}))
	sql := resolveSQL(t, registry, "store", TableRef{Table: "rental", Alias: "r"}, TableRef{Table: "store", Alias: "s"})
	assert.Equal(t, "`r`.`tenant_id` = `s`.`tenant_id` AND `r`.`store_id` = `s`.`store_id`", sql)
}

func TestResolve_JunctionAliasIgnoresTableNameLength(t *testing.T) {
	through := strings.Repeat("x", 60)
	registry := NewRegistry()
	require.NoError(t, registry.Register(Entry{
		Name: "tags", Left: "post", Right: "tag", Strategy: Junction,
		Through: &Through{
			Table: through,
			Left:  []JunctionPair{{Column: "post_id", Junction: "post_id"}},
			Right: []JunctionPair{{Column: "tag_id", Junction: "tag_id"}},
		},
	}))

	rightAlias := strings.Repeat("t", 40) + "-12"
	sql := resolveSQL(t, registry, "tags", TableRef{Table: "post", Alias: "p"}, TableRef{Table: "tag", Alias: rightAlias})
	junctionAlias := "j_" + rightAlias
	assert.LessOrEqual(t, len(junctionAlias), 64)
	assert.Equal(t, "EXISTS (SELECT 1 FROM `"+through+"` AS `"+junctionAlias+"` WHERE `"+junctionAlias+"`.`post_id` = `p`.`post_id` AND `"+junctionAlias+"`.`tag_id` = `"+rightAlias+"`.`tag_id`)", sql)
}

func TestRegister_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{name: "missing name", entry: Entry{Left: "a", Right: "b", Strategy: Direct, On: []ColumnPair{{Left: "x", Right: "y"}}}},
		{name: "no columns", entry: Entry{Name: "b", Left: "a", Right: "b", Strategy: Direct}},
		{name: "self across tables", entry: Entry{Name: "b", Left: "a", Right: "b", Strategy: Self, On: []ColumnPair{{Left: "x", Right: "y"}}}},
		{name: "junction without table", entry: Entry{Name: "b", Left: "a", Right: "b", Strategy: Junction}},
		{name: "unknown strategy", entry: Entry{Name: "b", Left: "a", Right: "b", Strategy: "lateral", On: []ColumnPair{{Left: "x", Right: "y"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewRegistry().Register(tt.entry))
		})
	}
}

func TestEntries_Sorted(t *testing.T) {
	registry := sakilaRegistry(t)
	entries := registry.Entries()
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i-1].Left, entries[i].Left)
	}
}
