package introspection

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gql2sql/internal/naming"
)

// Table returns the table named name.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableForType maps a GraphQL object type to its backing table. An explicit
// TypeTables entry wins, then the lowercased type name, then its snake_case form.
func (s *Schema) TableForType(typeName string) (*Table, error) {
	if mapped, ok := s.mappedTable(typeName); ok {
		if table, ok := s.Table(mapped); ok {
			return table, nil
		}
		return nil, fmt.Errorf("type %s is mapped to unknown table %s", typeName, mapped)
	}
	if table, ok := s.Table(strings.ToLower(typeName)); ok {
		return table, nil
	}
	if table, ok := s.Table(naming.ToSnakeCase(typeName)); ok {
		return table, nil
	}
	return nil, fmt.Errorf("no table found for type %s", typeName)
}

// mappedTable looks typeName up in TypeTables, exactly first and then
// ignoring case.
func (s *Schema) mappedTable(typeName string) (string, bool) {
	if mapped, ok := s.TypeTables[typeName]; ok {
		return mapped, true
	}
	for name, mapped := range s.TypeTables {
		if strings.EqualFold(name, typeName) {
			return mapped, true
		}
	}
	return "", false
}

// Column returns the column for a GraphQL field name. Exact matches win over
// case-insensitive ones.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns all column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// IsPrimaryKey reports whether column is part of the primary key.
func (t *Table) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == column {
			return true
		}
	}
	return false
}

// LoadFile reads a YAML catalog file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document and checks its internal references.
func Parse(data []byte) (*Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := schema.check(); err != nil {
		return nil, err
	}
	return &schema, nil
}

func (s *Schema) check() error {
	seen := make(map[string]struct{}, len(s.Tables))
	for _, table := range s.Tables {
		if table.Name == "" {
			return fmt.Errorf("catalog table without a name")
		}
		if _, dup := seen[table.Name]; dup {
			return fmt.Errorf("catalog table %s declared twice", table.Name)
		}
		seen[table.Name] = struct{}{}
		for _, pk := range table.PrimaryKey {
			if _, ok := table.Column(pk); !ok {
				return fmt.Errorf("table %s: primary key column %s is not a column", table.Name, pk)
			}
		}
		for _, fk := range table.ForeignKeys {
			if _, ok := table.Column(fk.ColumnName); !ok {
				return fmt.Errorf("table %s: foreign key column %s is not a column", table.Name, fk.ColumnName)
			}
		}
	}
	for _, table := range s.Tables {
		for _, fk := range table.ForeignKeys {
			if _, ok := seen[fk.ReferencedTable]; !ok {
				return fmt.Errorf("table %s: foreign key references unknown table %s", table.Name, fk.ReferencedTable)
			}
		}
	}
	return nil
}
