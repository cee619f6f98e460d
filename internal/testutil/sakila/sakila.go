// Package sakila embeds a small film-rental schema used as a shared test
// fixture: GraphQL SDL, a YAML table catalog and a relationship overlay.
package sakila

import (
	_ "embed"
)

// SDL is the GraphQL schema of the fixture.
//
//go:embed schema.graphql
var SDL string

// CatalogYAML describes the fixture tables.
//
//go:embed catalog.yaml
var CatalogYAML []byte

// RelationshipsYAML holds relations that cannot be derived from foreign keys.
//
//go:embed relationships.yaml
var RelationshipsYAML []byte
