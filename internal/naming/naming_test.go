package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralize(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"film", "films"},
		{"category", "categories"},
		{"inventory", "inventories"},
		{"actor", "actors"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.Pluralize(tt.input))
		})
	}
}

func TestPluralizeWithOverrides(t *testing.T) {
	namer := New(Config{PluralOverrides: map[string]string{"category": "subcategories"}}, nil)
	assert.Equal(t, "subcategories", namer.Pluralize("category"))
	assert.Equal(t, "films", namer.Pluralize("film"))
}

func TestSingularizeWithOverrides(t *testing.T) {
	namer := New(Config{SingularOverrides: map[string]string{"data": "datum"}}, nil)
	assert.Equal(t, "datum", namer.Singularize("data"))
	assert.Equal(t, "film", namer.Singularize("films"))
}

func TestManyToOneName(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    []string
		expected string
	}{
		{[]string{"language_id"}, "language"},
		{[]string{"original_language_id"}, "original_language"},
		{[]string{"parent_category_id"}, "parent_category"},
		{[]string{"owner_fk"}, "owner"},
		{[]string{"tenant_id", "store_id"}, "store"},
		{[]string{"_id"}, "_id"},
		{nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.ManyToOneName(tt.input))
		})
	}
}

func TestOneToManyName(t *testing.T) {
	namer := Default()
	assert.Equal(t, "inventories", namer.OneToManyName("inventory", []string{"store_id"}, true))
	assert.Equal(t, "original_language_films", namer.OneToManyName("film", []string{"original_language_id"}, false))
}

func TestManyToManyName(t *testing.T) {
	assert.Equal(t, "actors", Default().ManyToManyName("actor"))
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Film", "film"},
		{"FilmActor", "film_actor"},
		{"film_actor", "film_actor"},
		{"HTTPLog", "http_log"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToSnakeCase(tt.input))
		})
	}
}
