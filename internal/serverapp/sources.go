package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gql2sql/internal/config"
	"gql2sql/internal/introspection"
	"gql2sql/internal/logging"
	"gql2sql/internal/naming"
	"gql2sql/internal/relationship"
	"gql2sql/internal/schema"
)

// Sources are the inputs an engine compiles against.
type Sources struct {
	Schema        *schema.Schema
	Catalog       *introspection.Schema
	Relationships *relationship.Registry
}

// LoadSources reads the SDL, the catalog and the relationship registry.
// The catalog comes from cfg.CatalogFile when set and otherwise from
// introspecting databaseName through db.
func LoadSources(ctx context.Context, cfg config.SchemaConfig, names naming.Config, logger *logging.Logger, db introspection.Queryer, databaseName string) (*Sources, error) {
	sdl, err := schema.LoadFile(cfg.SDLFile)
	if err != nil {
		return nil, err
	}

	catalog, err := loadCatalog(ctx, cfg, db, databaseName)
	if err != nil {
		return nil, err
	}
	if len(cfg.TypeTables) > 0 && catalog.TypeTables == nil {
		catalog.TypeTables = make(map[string]string, len(cfg.TypeTables))
	}
	for typeName, table := range cfg.TypeTables {
		catalog.TypeTables[typeName] = table
	}

	var extra []relationship.Entry
	if cfg.RelationshipsFile != "" {
		extra, err = relationship.LoadFile(cfg.RelationshipsFile)
		if err != nil {
			return nil, err
		}
	}
	registry, err := relationship.Build(catalog, naming.New(names, logger.Logger), cfg.DeriveRelationships, extra)
	if err != nil {
		return nil, fmt.Errorf("failed to build relationship registry: %w", err)
	}

	logger.Info("compiler sources loaded",
		slog.String("sdl_file", cfg.SDLFile),
		slog.Int("tables", len(catalog.Tables)),
		slog.Int("type_mappings", len(catalog.TypeTables)),
		slog.Int("relationships", registry.Len()),
		slog.Bool("derived_relationships", cfg.DeriveRelationships),
	)
	return &Sources{Schema: sdl, Catalog: catalog, Relationships: registry}, nil
}

func loadCatalog(ctx context.Context, cfg config.SchemaConfig, db introspection.Queryer, databaseName string) (*introspection.Schema, error) {
	if cfg.CatalogFile != "" {
		return introspection.LoadFile(cfg.CatalogFile)
	}
	if db == nil {
		return nil, errors.New("no catalog file configured and no database to introspect")
	}
	catalog, err := introspection.IntrospectDatabaseContext(ctx, db, databaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database %s: %w", databaseName, err)
	}
	return catalog, nil
}
