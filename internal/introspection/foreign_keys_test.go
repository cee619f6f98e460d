package introspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignKeyConstraints_GroupsByConstraintName(t *testing.T) {
	table := Table{
		Name: "rental",
		ForeignKeys: []ForeignKey{
			{ConstraintName: "fk_store", ColumnName: "store_id", ReferencedTable: "store", ReferencedColumn: "store_id", OrdinalPosition: 2},
			{ConstraintName: "fk_store", ColumnName: "tenant_id", ReferencedTable: "store", ReferencedColumn: "tenant_id", OrdinalPosition: 1},
			{ConstraintName: "fk_film", ColumnName: "film_id", ReferencedTable: "film", ReferencedColumn: "film_id", OrdinalPosition: 1},
		},
	}

	got := ForeignKeyConstraints(table)
	require.Len(t, got, 2)
	assert.Equal(t, "fk_film", got[0].ConstraintName)
	assert.Equal(t, "fk_store", got[1].ConstraintName)
	assert.Equal(t, []string{"tenant_id", "store_id"}, got[1].ColumnNames)
	assert.Equal(t, []string{"tenant_id", "store_id"}, got[1].ReferencedColumns)
}

func TestForeignKeyConstraints_UnnamedRowsStayIsolated(t *testing.T) {
	table := Table{
		Name: "film",
		ForeignKeys: []ForeignKey{
			{ColumnName: "language_id", ReferencedTable: "language", ReferencedColumn: "language_id"},
			{ColumnName: "original_language_id", ReferencedTable: "language", ReferencedColumn: "language_id"},
		},
	}

	got := ForeignKeyConstraints(table)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ColumnNames[0], got[1].ColumnNames[0])
}

func TestForeignKeyConstraints_Empty(t *testing.T) {
	assert.Nil(t, ForeignKeyConstraints(Table{Name: "actor"}))
}
