package relationship

import (
	"fmt"
	"sort"

	"gql2sql/internal/introspection"
	"gql2sql/internal/junction"
	"gql2sql/internal/naming"
)

// Derive builds entries from catalog foreign keys and junction tables.
// Every foreign key yields a many-to-one entry and the inverse one-to-many
// entry; every junction table yields a many-to-many entry in each direction.
func Derive(schema *introspection.Schema, namer *naming.Namer) []Entry {
	if namer == nil {
		namer = naming.Default()
	}
	var entries []Entry
	for _, table := range schema.Tables {
		constraints := introspection.ForeignKeyConstraints(table)
		perTarget := make(map[string]int)
		for _, c := range constraints {
			perTarget[c.ReferencedTable]++
		}
		for _, c := range constraints {
			toOne := Entry{
				Name:     namer.ManyToOneName(c.ColumnNames),
				Left:     table.Name,
				Right:    c.ReferencedTable,
				Strategy: Direct,
			}
			toMany := Entry{
				Name:     namer.OneToManyName(table.Name, c.ColumnNames, perTarget[c.ReferencedTable] == 1),
				Left:     c.ReferencedTable,
				Right:    table.Name,
				Strategy: Reverse,
			}
			if table.Name == c.ReferencedTable {
				toOne.Strategy = Self
				toMany.Strategy = Self
			}
			for i := range c.ColumnNames {
				toOne.On = append(toOne.On, ColumnPair{Left: c.ColumnNames[i], Right: c.ReferencedColumns[i]})
				toMany.On = append(toMany.On, ColumnPair{Left: c.ReferencedColumns[i], Right: c.ColumnNames[i]})
			}
			entries = append(entries, toOne, toMany)
		}
	}

	junctions := junction.ClassifyJunctions(schema)
	names := make([]string, 0, len(junctions))
	for name := range junctions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		info := junctions[name]
		entries = append(entries,
			throughEntry(namer, info.Table, info.LeftFK, info.RightFK),
			throughEntry(namer, info.Table, info.RightFK, info.LeftFK),
		)
	}
	return entries
}

func throughEntry(namer *naming.Namer, table string, from, to junction.FKInfo) Entry {
	through := &Through{Table: table}
	for i := range from.Columns {
		through.Left = append(through.Left, JunctionPair{Column: from.ReferencedColumns[i], Junction: from.Columns[i]})
	}
	for i := range to.Columns {
		through.Right = append(through.Right, JunctionPair{Column: to.ReferencedColumns[i], Junction: to.Columns[i]})
	}
	return Entry{
		Name:     namer.ManyToManyName(to.ReferencedTable),
		Left:     from.ReferencedTable,
		Right:    to.ReferencedTable,
		Strategy: Junction,
		Through:  through,
	}
}

// Check verifies that every table and column an entry names exists in schema.
func Check(e Entry, schema *introspection.Schema) error {
	left, ok := schema.Table(e.Left)
	if !ok {
		return fmt.Errorf("relationship %s: unknown table %s", e.Name, e.Left)
	}
	right, ok := schema.Table(e.Right)
	if !ok {
		return fmt.Errorf("relationship %s: unknown table %s", e.Name, e.Right)
	}
	for _, p := range e.On {
		if _, ok := left.Column(p.Left); !ok {
			return fmt.Errorf("relationship %s: unknown column %s.%s", e.Name, e.Left, p.Left)
		}
		if _, ok := right.Column(p.Right); !ok {
			return fmt.Errorf("relationship %s: unknown column %s.%s", e.Name, e.Right, p.Right)
		}
	}
	if e.Through == nil {
		return nil
	}
	through, ok := schema.Table(e.Through.Table)
	if !ok {
		return fmt.Errorf("relationship %s: unknown junction table %s", e.Name, e.Through.Table)
	}
	sides := []struct {
		table *introspection.Table
		pairs []JunctionPair
	}{{left, e.Through.Left}, {right, e.Through.Right}}
	for _, side := range sides {
		for _, p := range side.pairs {
			if _, ok := side.table.Column(p.Column); !ok {
				return fmt.Errorf("relationship %s: unknown column %s.%s", e.Name, side.table.Name, p.Column)
			}
			if _, ok := through.Column(p.Junction); !ok {
				return fmt.Errorf("relationship %s: unknown column %s.%s", e.Name, through.Name, p.Junction)
			}
		}
	}
	return nil
}

// Build returns a registry holding the entries derived from schema, when
// derive is set, overlaid with extra. Every entry is checked against schema.
func Build(schema *introspection.Schema, namer *naming.Namer, derive bool, extra []Entry) (*Registry, error) {
	var entries []Entry
	if derive {
		entries = Derive(schema, namer)
	}
	entries = append(entries, extra...)

	registry := NewRegistry()
	for _, e := range entries {
		if err := Check(e, schema); err != nil {
			return nil, err
		}
		if err := registry.Register(e); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
