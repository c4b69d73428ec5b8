package main

import (
	"os"
	"path/filepath"

	"github.com/woozymasta/quakemap/assets"
	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config" env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	OutDir     string `short:"o" long:"out"    description:"Output directory for index.html and favicon.svg" default:"dist"`
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

	index, err := assets.Build(cfg.Title)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build index page")
	}
	favicon, err := assets.Favicon()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build favicon")
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", opts.OutDir).Msg("Failed to create output directory")
	}

	files := map[string][]byte{
		"index.html":  index,
		"favicon.svg": favicon,
	}
	for name, data := range files {
		path := filepath.Join(opts.OutDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to write asset")
		}
		log.Info().Str("path", path).Int("bytes", len(data)).Msg("Asset written")
	}

	log.Info().Msg("Minify done")
}
