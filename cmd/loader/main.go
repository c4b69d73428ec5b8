package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/logger"
	"github.com/woozymasta/quakemap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"       env:"CONFIG_FILE"  description:"Path to configuration file" default:"config.yaml"`
	Layers      []string `short:"L" long:"layer"        env:"LIMIT_LAYERS" description:"Limit prefetching to specific base layers"`
	Concurrency int      `short:"p" long:"concurrency"  env:"CONCURRENCY"  description:"Concurrency"`
	ZoomLimit   int      `short:"z" long:"zoom-limit"   env:"ZOOM_LIMIT"   description:"Tiles zoom limit"`
	Radius      int      `short:"r" long:"radius"       env:"RADIUS"       description:"Tiles around the view center per zoom level" default:"4"`
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

	if opts.Concurrency <= 0 {
		opts.Concurrency = cfg.Tiles.Concurrency
	}
	if opts.ZoomLimit <= 0 {
		opts.ZoomLimit = cfg.Tiles.ZoomLimit
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: 15 * time.Second,
	}

	cache, err := tiles.New(cfg, client, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure tile cache")
	}

	// Filter layers if limit is set
	layers := cfg.Layers
	if len(opts.Layers) > 0 {
		layers = make([]config.Layer, 0, len(opts.Layers))
		seen := make(map[string]bool)
		for _, name := range opts.Layers {
			if seen[name] {
				continue
			}
			seen[name] = true

			if l, ok := cfg.LayerByName(name); ok {
				layers = append(layers, l)
			} else {
				log.Error().
					Str("name", name).
					Msg("Layer specified in --layer not found in configuration")
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Int("layers_total", len(cfg.Layers)).
		Int("layers_queued", len(layers)).
		Int("zoom_limit", opts.ZoomLimit).
		Int("radius", opts.Radius).
		Str("cache_dir", cfg.Tiles.CacheDir).
		Msg("Starting loader")

	for _, l := range layers {
		start := time.Now()
		cached, failed := cache.PrefetchAround(ctx, l.Name, cfg.View.Center, opts.ZoomLimit, opts.Radius, opts.Concurrency)

		log.Info().
			Str("layer", l.Name).
			Int("cached", cached).
			Int("failed", failed).
			Dur("duration", time.Since(start)).
			Msg("Layer prefetched")

		if ctx.Err() != nil {
			log.Warn().Msg("Loader interrupted")
			stop()
			os.Exit(1)
		}
	}

	log.Info().Msg("Loader finished successfully")
}
