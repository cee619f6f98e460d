package introspection

import (
	"fmt"
	"sort"
)

// ForeignKeyConstraint is a whole foreign key: its local columns paired
// positionally with the referenced columns.
type ForeignKeyConstraint struct {
	ConstraintName    string
	ReferencedTable   string
	ColumnNames       []string
	ReferencedColumns []string
}

// ForeignKeyConstraints groups a table's per-column foreign key rows by
// constraint, sorted by constraint name then ordinal position.
func ForeignKeyConstraints(table Table) []ForeignKeyConstraint {
	if len(table.ForeignKeys) == 0 {
		return nil
	}

	type keyed struct {
		key string
		fk  ForeignKey
	}
	rows := make([]keyed, len(table.ForeignKeys))
	for i, fk := range table.ForeignKeys {
		key := fk.ConstraintName
		if key == "" {
			key = fmt.Sprintf("~%s_%03d", fk.ColumnName, i)
		}
		rows[i] = keyed{key: key, fk: fk}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].key != rows[j].key {
			return rows[i].key < rows[j].key
		}
		return rows[i].fk.OrdinalPosition < rows[j].fk.OrdinalPosition
	})

	var result []ForeignKeyConstraint
	lastKey := ""
	for _, row := range rows {
		if len(result) == 0 || row.key != lastKey {
			result = append(result, ForeignKeyConstraint{
				ConstraintName:  row.fk.ConstraintName,
				ReferencedTable: row.fk.ReferencedTable,
			})
			lastKey = row.key
		}
		group := &result[len(result)-1]
		group.ColumnNames = append(group.ColumnNames, row.fk.ColumnName)
		group.ReferencedColumns = append(group.ReferencedColumns, row.fk.ReferencedColumn)
	}
	return result
}
