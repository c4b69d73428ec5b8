package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/logger"
	"github.com/woozymasta/quakemap/internal/pipeline"
	"github.com/woozymasta/quakemap/internal/render"
	"github.com/woozymasta/quakemap/internal/scale"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string        `short:"c" long:"config"  env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Output     string        `short:"o" long:"out"     description:"Output file path. Writes to stdout if empty"`
	Format     string        `short:"f" long:"format"  description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Timeout    time.Duration `short:"t" long:"timeout" description:"Overall deadline for fetching the feeds" default:"1m"`
	Strict     bool          `short:"s" long:"strict"  description:"Exit non-zero when any layer failed"`
}

// output is the offline form of one pipeline run.
type output struct {
	GeneratedAt time.Time                    `json:"generated_at" yaml:"generated_at"`
	Scale       *scale.Linear                `json:"scale,omitempty" yaml:"scale,omitempty"`
	ID          string                       `json:"id" yaml:"id"`
	LegendTitle string                       `json:"legend_title" yaml:"legend_title"`
	Legend      []scale.LegendEntry          `json:"legend" yaml:"legend"`
	Errors      []render.LayerError          `json:"errors" yaml:"errors"`
	Quakes      geo.GeoJSONFeatureCollection `json:"quakes" yaml:"quakes"`
	Skipped     int                          `json:"skipped" yaml:"skipped"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	renderer, err := render.NewRenderer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure renderer")
	}
	p, err := pipeline.New(cfg, feed.NewClient(cfg.Feeds, nil), renderer, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure pipeline")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	snap := p.Run(ctx)
	cancel()

	doc := snap.Document
	out := output{
		GeneratedAt: snap.GeneratedAt,
		Scale:       doc.Scale,
		ID:          snap.ID,
		LegendTitle: doc.LegendTitle,
		Legend:      doc.Legend,
		Errors:      doc.Errors,
		Quakes:      render.MarkersGeoJSON(doc.Markers),
		Skipped:     snap.Skipped,
	}

	data, err := marshal(out, opts.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal snapshot")
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			log.Fatal().Err(err).Str("path", opts.Output).Msg("Failed to write snapshot")
		}
		log.Info().
			Str("path", opts.Output).
			Str("format", opts.Format).
			Int("quakes", len(doc.Markers)).
			Int("errors", len(doc.Errors)).
			Msg("Snapshot written")
	} else {
		fmt.Println(string(data))
	}

	if opts.Strict && snap.Partial() {
		for _, e := range doc.Errors {
			log.Error().Str("layer", e.Layer).Msg(e.Message)
		}
		os.Exit(2)
	}
}

func marshal(v any, format string) ([]byte, error) {
	if format == "yaml" {
		return yaml.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
