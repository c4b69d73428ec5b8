package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/logger"
	"github.com/woozymasta/quakemap/internal/observability"
	"github.com/woozymasta/quakemap/internal/pipeline"
	"github.com/woozymasta/quakemap/internal/render"
	"github.com/woozymasta/quakemap/internal/server"
	"github.com/woozymasta/quakemap/internal/store"
	"github.com/woozymasta/quakemap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string        `short:"c" long:"config"      env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	Addr       string        `short:"a" long:"addr"        env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	Port       int           `short:"p" long:"port"        env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
	TTL        time.Duration `short:"t" long:"ttl"         env:"REFRESH_TTL"    description:"Override snapshot refresh interval"`
	Tiles      bool          `short:"T" long:"tile-proxy"  env:"TILE_PROXY"     description:"Serve base tiles through the local cache"`
	Warm       bool          `short:"w" long:"warm"        env:"WARM_SNAPSHOT"  description:"Build the first snapshot before accepting requests"`
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

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.TTL > 0 {
		cfg.Refresh.TTL = opts.TTL
	}
	if opts.Tiles {
		cfg.Tiles.Enabled = true
	}

	metrics := observability.NewMetrics()

	renderer, err := render.NewRenderer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure renderer")
	}

	builder, err := pipeline.New(cfg, feed.NewClient(cfg.Feeds, metrics), renderer, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure pipeline")
	}
	snapshots := store.New(builder, cfg.Refresh.TTL, clockwork.NewRealClock())

	var tileSource server.TileSource
	if cfg.Tiles.Enabled {
		cache, err := tiles.New(cfg, &http.Client{Timeout: cfg.Feeds.Timeout}, metrics)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure tile cache")
		}
		tileSource = cache
	}

	srvCtx, err := server.NewServerContext(cfg, snapshots, tileSource)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	if opts.Warm {
		if _, err := snapshots.Get(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Initial snapshot failed")
		}
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", listenAddr).
			Dur("ttl", cfg.Refresh.TTL).
			Bool("tile_proxy", cfg.Tiles.Enabled).
			Msg("Web server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
