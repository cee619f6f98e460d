// Package naming derives relationship field names from SQL table and column
// names, including pluralization with per-word overrides.
package naming

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Config lets deployments fix words the inflection rules get wrong for
// their schema, e.g. plural_overrides: {staff: staff}.
type Config struct {
	PluralOverrides   map[string]string `mapstructure:"plural_overrides"`
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`
}

func DefaultConfig() Config {
	return Config{PluralOverrides: map[string]string{}, SingularOverrides: map[string]string{}}
}

// Namer produces relationship field names for relations derived from
// foreign keys and junction tables. Names stay in SQL snake_case so they
// line up with column-backed fields in the same schema.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PluralOverrides == nil {
		cfg.PluralOverrides = map[string]string{}
	}
	if cfg.SingularOverrides == nil {
		cfg.SingularOverrides = map[string]string{}
	}
	return &Namer{config: cfg, logger: logger}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// ManyToOneName names the relation that follows a foreign key to the row it
// references. Common key suffixes are stripped.
// Example: "language_id" -> "language", "parent_category_id" -> "parent_category"
func (n *Namer) ManyToOneName(fkColumns []string) string {
	if len(fkColumns) == 0 {
		return ""
	}
	name := strings.ToLower(fkColumns[len(fkColumns)-1])
	for _, suffix := range []string{"_id", "_fk"} {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return name
}

// OneToManyName names the relation from a referenced table back to the rows
// that point at it. When the source table has more than one foreign key to
// the same target, the many-to-one name is used as a prefix.
// Example: isOnlyFK=true: "inventory" -> "inventories"
// Example: isOnlyFK=false, fk "original_language_id": "film" -> "original_language_films"
func (n *Namer) OneToManyName(sourceTable string, fkColumns []string, isOnlyFK bool) string {
	plural := n.Pluralize(strings.ToLower(sourceTable))
	if isOnlyFK {
		return plural
	}
	return n.ManyToOneName(fkColumns) + "_" + plural
}

// ManyToManyName names a relation reached through a junction table.
// Example: "actor" -> "actors"
func (n *Namer) ManyToManyName(targetTable string) string {
	return n.Pluralize(strings.ToLower(targetTable))
}

// ToSnakeCase converts a type name such as "FilmActor" to "film_actor".
func ToSnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && runes[i-1] != '_')) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (n *Namer) Pluralize(word string) string {
	if word, ok := n.config.PluralOverrides[word]; ok {
		return word
	}
	return inflection.Plural(word)
}

func (n *Namer) Singularize(word string) string {
	if word, ok := n.config.SingularOverrides[word]; ok {
		return word
	}
	return inflection.Singular(word)
}
