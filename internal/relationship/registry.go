// Package relationship maps a relation field between two tables to the SQL
// predicate that joins them. Relations are registry entries, so adding one
// needs configuration rather than compiler changes.
package relationship

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"gql2sql/internal/sqlutil"
)

// Strategy selects how an entry joins its two tables.
type Strategy string

const (
	// Direct joins a foreign key on the left table to a key on the right table.
	Direct Strategy = "direct"
	// Reverse joins a key on the left table to a foreign key on the right table.
	Reverse Strategy = "reverse"
	// Junction joins through a third table holding keys of both sides.
	Junction Strategy = "junction"
	// Self joins a table to itself, e.g. a parent/child tree.
	Self Strategy = "self"
)

// ColumnPair equates a left table column with a right table column.
type ColumnPair struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// JunctionPair equates a column of an outer table with a junction column.
type JunctionPair struct {
	Column   string `yaml:"column"`
	Junction string `yaml:"junction"`
}

// Through describes the junction table of a many-to-many entry.
type Through struct {
	Table string         `yaml:"table"`
	Left  []JunctionPair `yaml:"left"`
	Right []JunctionPair `yaml:"right"`
}

// Entry is one registered relation. Left is the table of the parent
// selection and Right the table of the nested selection.
type Entry struct {
	Name     string       `yaml:"name"`
	Left     string       `yaml:"left"`
	Right    string       `yaml:"right"`
	Strategy Strategy     `yaml:"strategy"`
	On       []ColumnPair `yaml:"on,omitempty"`
	Through  *Through     `yaml:"through,omitempty"`
}

// TableRef is a table as it appears in a statement: its name and alias.
type TableRef struct {
	Table string
	Alias string
}

// NotFoundError reports a relation with no registry entry.
type NotFoundError struct {
	Name  string
	Left  string
	Right string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no relationship called %q found for tables %s and %s", e.Name, e.Left, e.Right)
}

type key struct {
	name  string
	left  string
	right string
}

// Registry holds entries keyed by relation name and the ordered table pair.
// It is filled at startup and read-only afterwards.
type Registry struct {
	entries map[key]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[key]Entry)}
}

// Register validates e and stores it, replacing any entry with the same key.
func (r *Registry) Register(e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	r.entries[key{name: e.Name, left: e.Left, right: e.Right}] = e
	return nil
}

// Lookup returns the entry for name between left and right.
func (r *Registry) Lookup(name, left, right string) (Entry, bool) {
	e, ok := r.entries[key{name: name, left: left, right: right}]
	return e, ok
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns all entries sorted by left table, name and right table.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Left != out[j].Left {
			return out[i].Left < out[j].Left
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Right < out[j].Right
	})
	return out
}

// Resolve returns the join predicate for the relation name from left to right.
func (r *Registry) Resolve(name string, left, right TableRef) (sq.Sqlizer, error) {
	e, ok := r.Lookup(name, left.Table, right.Table)
	if !ok {
		return nil, &NotFoundError{Name: name, Left: left.Table, Right: right.Table}
	}
	return e.predicate(left, right), nil
}

func (e Entry) predicate(left, right TableRef) sq.Sqlizer {
	if e.Strategy == Junction {
		alias := "j_" + right.Alias
		conds := make([]string, 0, len(e.Through.Left)+len(e.Through.Right))
		for _, p := range e.Through.Left {
			conds = append(conds, sqlutil.Qualify(alias, p.Junction)+" = "+sqlutil.Qualify(left.Alias, p.Column))
		}
		for _, p := range e.Through.Right {
			conds = append(conds, sqlutil.Qualify(alias, p.Junction)+" = "+sqlutil.Qualify(right.Alias, p.Column))
		}
		sub := sq.Select("1").
			From(sqlutil.QuoteIdentifier(e.Through.Table) + " AS " + sqlutil.QuoteIdentifier(alias)).
			Where(strings.Join(conds, " AND "))
		return sq.Expr("EXISTS (?)", sub)
	}

	conds := make([]string, len(e.On))
	for i, p := range e.On {
		conds[i] = sqlutil.Qualify(left.Alias, p.Left) + " = " + sqlutil.Qualify(right.Alias, p.Right)
	}
	return sq.Expr(strings.Join(conds, " AND "))
}

func (e Entry) validate() error {
	if e.Name == "" || e.Left == "" || e.Right == "" {
		return fmt.Errorf("relationship entry needs name, left and right (got %q, %q, %q)", e.Name, e.Left, e.Right)
	}
	switch e.Strategy {
	case Direct, Reverse, Self:
		if len(e.On) == 0 {
			return fmt.Errorf("relationship %s (%s -> %s): strategy %s needs at least one column pair", e.Name, e.Left, e.Right, e.Strategy)
		}
		if e.Strategy == Self && e.Left != e.Right {
			return fmt.Errorf("relationship %s: self strategy joins one table, got %s and %s", e.Name, e.Left, e.Right)
		}
	case Junction:
		if e.Through == nil || e.Through.Table == "" || len(e.Through.Left) == 0 || len(e.Through.Right) == 0 {
			return fmt.Errorf("relationship %s (%s -> %s): junction strategy needs a through table with left and right pairs", e.Name, e.Left, e.Right)
		}
	default:
		return fmt.Errorf("relationship %s: unknown strategy %q", e.Name, e.Strategy)
	}
	return nil
}
