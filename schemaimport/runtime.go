package schemaimport

import (
	"context"

	"github.com/dbforensic/dbforensic/catalog"
)

// Runtime holds resolved tbls configuration alongside the catalog.Catalog
// converted from it.
type Runtime struct {
	Config  Config
	Catalog *catalog.Catalog
}

// LoadRuntime resolves tbls configuration from opts, loads schema JSON, and
// converts it into a catalog.Catalog.
func LoadRuntime(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := ResolveConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	importer := NewImporter(cfg)
	if err := importer.LoadSchemaJSON(ctx); err != nil {
		return nil, err
	}

	cat, err := importer.Convert(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Verbose {
		cfg.logf("Runtime prepared: tables=%d views=%d routines=%d",
			len(cat.Tables()), len(cat.Views()), len(cat.Routines()))
	}

	return &Runtime{Config: cfg, Catalog: cat}, nil
}
