package server

import (
	"context"
	"fmt"

	"github.com/woozymasta/quakemap/assets"
	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/pipeline"

	"github.com/rs/zerolog/log"
)

// SnapshotSource provides the current map snapshot and recently replaced
// ones by id.
type SnapshotSource interface {
	Get(ctx context.Context) (*pipeline.Snapshot, error)
	Lookup(id string) (*pipeline.Snapshot, bool)
	Peek() *pipeline.Snapshot
}

// TileSource resolves cached base tiles.
type TileSource interface {
	Get(ctx context.Context, layer string, t geo.TileCoordinate) (string, error)
	Transparent() []byte
	ObserveFallback(layer string)
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config    *config.Config
	Snapshots SnapshotSource
	Tiles     TileSource // nil when the tile proxy is disabled
	IndexHTML []byte
	Favicon   []byte
}

// NewServerContext builds the static assets and wires the data sources.
func NewServerContext(cfg *config.Config, snapshots SnapshotSource, tiles TileSource) (*ServerContext, error) {
	index, err := assets.Build(cfg.Title)
	if err != nil {
		return nil, fmt.Errorf("build index page: %w", err)
	}

	favicon, err := assets.Favicon()
	if err != nil {
		return nil, fmt.Errorf("build favicon: %w", err)
	}

	log.Info().
		Int("index_bytes", len(index)).
		Bool("tile_proxy", tiles != nil).
		Int("base_layers", len(cfg.Layers)).
		Msg("Server context initialized")

	return &ServerContext{
		Config:    cfg,
		Snapshots: snapshots,
		Tiles:     tiles,
		IndexHTML: index,
		Favicon:   favicon,
	}, nil
}
