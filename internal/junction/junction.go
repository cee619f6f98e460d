// Package junction recognizes many-to-many junction tables in a catalog.
// A pure junction holds only the two foreign keys; an attribute junction
// carries extra columns such as a last_update timestamp.
package junction

import (
	"gql2sql/internal/introspection"
)

// Type classifies a junction table.
type Type int

const (
	// NotJunction indicates the table is not a junction table.
	NotJunction Type = iota
	// PureJunction indicates a junction with only FK columns.
	PureJunction
	// AttributeJunction indicates a junction with additional non-FK columns.
	AttributeJunction
)

// String returns a human-readable representation of the junction type.
func (t Type) String() string {
	switch t {
	case NotJunction:
		return "NotJunction"
	case PureJunction:
		return "PureJunction"
	case AttributeJunction:
		return "AttributeJunction"
	default:
		return "Unknown"
	}
}

// FKInfo is one side of a junction: the junction's foreign key columns and
// the columns they reference, paired by position.
type FKInfo struct {
	Columns           []string // e.g., ["film_id"]
	ReferencedTable   string   // e.g., "film"
	ReferencedColumns []string // e.g., ["film_id"]
}

// Info contains classification metadata for a junction table.
type Info struct {
	Table string
	Type  Type
	// LeftFK references the alphabetically first table.
	LeftFK  FKInfo
	RightFK FKInfo
	// AttributeColumns lists non-FK column names.
	AttributeColumns []string
}

// Map maps junction table names to their classification info.
type Map map[string]Info

// ClassifyJunctions returns every table that qualifies as a junction:
//   - exactly 2 foreign key constraints, to different tables
//   - both referenced tables exist in the catalog
//   - all FK columns are NOT NULL
//   - the primary key or a unique index covers all FK columns
func ClassifyJunctions(schema *introspection.Schema) Map {
	result := make(Map)
	for _, table := range schema.Tables {
		if info, ok := classifyTable(schema, table); ok {
			result[table.Name] = info
		}
	}
	return result
}

func classifyTable(schema *introspection.Schema, table introspection.Table) (Info, bool) {
	constraints := introspection.ForeignKeyConstraints(table)
	if len(constraints) != 2 {
		return Info{}, false
	}
	first, second := constraints[0], constraints[1]
	if first.ReferencedTable == second.ReferencedTable {
		return Info{}, false
	}
	if _, ok := schema.Table(first.ReferencedTable); !ok {
		return Info{}, false
	}
	if _, ok := schema.Table(second.ReferencedTable); !ok {
		return Info{}, false
	}

	fkCols := make(map[string]bool)
	for _, c := range constraints {
		for _, col := range c.ColumnNames {
			fkCols[col] = true
		}
	}
	for _, col := range table.Columns {
		if fkCols[col.Name] && col.IsNullable {
			return Info{}, false
		}
	}
	if !hasCoveringConstraint(table, fkCols) {
		return Info{}, false
	}

	attributeCols := findAttributeColumns(table, fkCols)
	junctionType := PureJunction
	if len(attributeCols) > 0 {
		junctionType = AttributeJunction
	}
	left, right := orderFKs(first, second)
	return Info{
		Table:            table.Name,
		Type:             junctionType,
		LeftFK:           left,
		RightFK:          right,
		AttributeColumns: attributeCols,
	}, true
}

func hasCoveringConstraint(table introspection.Table, fkCols map[string]bool) bool {
	if coversAll(toSet(table.PrimaryKey), fkCols) {
		return true
	}
	for _, idx := range table.Indexes {
		if idx.Unique && coversAll(toSet(idx.Columns), fkCols) {
			return true
		}
	}
	return false
}

func toSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, col := range cols {
		set[col] = true
	}
	return set
}

// coversAll returns true if covering contains all keys from required.
func coversAll(covering, required map[string]bool) bool {
	for col := range required {
		if !covering[col] {
			return false
		}
	}
	return true
}

func findAttributeColumns(table introspection.Table, fkCols map[string]bool) []string {
	var attrs []string
	for _, col := range table.Columns {
		if !fkCols[col.Name] {
			attrs = append(attrs, col.Name)
		}
	}
	return attrs
}

func orderFKs(a, b introspection.ForeignKeyConstraint) (FKInfo, FKInfo) {
	left := FKInfo{Columns: a.ColumnNames, ReferencedTable: a.ReferencedTable, ReferencedColumns: a.ReferencedColumns}
	right := FKInfo{Columns: b.ColumnNames, ReferencedTable: b.ReferencedTable, ReferencedColumns: b.ReferencedColumns}
	if left.ReferencedTable > right.ReferencedTable {
		left, right = right, left
	}
	return left, right
}
