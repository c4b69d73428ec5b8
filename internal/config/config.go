// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // timezone names must resolve on minimal images

	"github.com/woozymasta/quakemap/internal/scale"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Default feed endpoints.
const (
	DefaultSeismicURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson"
	DefaultPlatesURL  = "https://raw.githubusercontent.com/fraxen/tectonicplates/master/GeoJSON/PB2002_boundaries.json"
)

// Config represents the root configuration file structure.
type Config struct {
	Title    string  `yaml:"title,omitempty"`
	Feeds    Feeds   `yaml:"feeds"`
	Layers   []Layer `yaml:"layers"`
	View     View    `yaml:"view"`
	Scale    Scale   `yaml:"scale"`
	Markers  Markers `yaml:"markers"`
	Plates   Plates  `yaml:"plates"`
	Tiles    Tiles   `yaml:"tiles"`
	Refresh  Refresh `yaml:"refresh"`
	Server   Server  `yaml:"server"`
	Timezone string  `yaml:"timezone,omitempty"`
}

// Feeds describes the remote GeoJSON sources.
type Feeds struct {
	Seismic    string        `yaml:"seismic"`
	Plates     string        `yaml:"plates"`
	UserAgent  string        `yaml:"user_agent,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	RetryDelay time.Duration `yaml:"retry_delay,omitempty"`
	Retries    int           `yaml:"retries,omitempty"` // extra attempts after the first
}

// Layer is a selectable base tile layer.
type Layer struct {
	Name        string `yaml:"name" json:"name"` // used in tile proxy paths
	Title       string `yaml:"title" json:"title"`
	URL         string `yaml:"url" json:"-"`
	Attribution string `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Default     bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

// View is the initial map viewport.
type View struct {
	Center [2]float64 `yaml:"center"` // [lat, lon]
	Zoom   int        `yaml:"zoom"`
}

// Scale configures the depth color scale and its legend.
type Scale struct {
	Low         string `yaml:"low"`
	High        string `yaml:"high"`
	Mode        string `yaml:"mode,omitempty"`
	LegendTitle string `yaml:"legend_title,omitempty"`
	Ticks       int    `yaml:"ticks"`
}

// Markers configures per-event circle markers.
type Markers struct {
	RadiusFactor float64 `yaml:"radius_factor"`
	MinRadius    float64 `yaml:"min_radius"`
	FillOpacity  float64 `yaml:"fill_opacity"`
}

// Plates configures the plate boundary overlay style.
type Plates struct {
	Color   string  `yaml:"color"`
	Weight  float64 `yaml:"weight"`
	Opacity float64 `yaml:"opacity"`
	Visible bool    `yaml:"visible,omitempty"`
}

// Tiles configures the base tile cache proxy.
type Tiles struct {
	CacheDir    string   `yaml:"cache_dir"`
	Subdomains  []string `yaml:"subdomains,omitempty"`
	ZoomLimit   int      `yaml:"zoom"`
	Quality     int      `yaml:"quality,omitempty"`
	Concurrency int      `yaml:"concurrency,omitempty"`
	Enabled     bool     `yaml:"enabled"`
}

// Refresh controls how long a built snapshot is reused.
type Refresh struct {
	TTL time.Duration `yaml:"ttl"`
}

// Server holds HTTP surface settings.
type Server struct {
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// Default returns the configuration reproducing the stock map.
func Default() *Config {
	return &Config{
		Feeds: Feeds{
			Seismic:    DefaultSeismicURL,
			Plates:     DefaultPlatesURL,
			UserAgent:  "quakemap",
			Timeout:    15 * time.Second,
			Retries:    3,
			RetryDelay: time.Second,
		},
		Layers: []Layer{
			{
				Name:        "street",
				Title:       "Street Map",
				URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
				Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
				Default:     true,
			},
			{
				Name:  "topo",
				Title: "Topographic Map",
				URL:   "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
				Attribution: `Map data: &copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors, ` +
					`<a href="http://viewfinderpanoramas.org">SRTM</a> | Map style: &copy; <a href="https://opentopomap.org">OpenTopoMap</a> ` +
					`(<a href="https://creativecommons.org/licenses/by-sa/3.0/">CC-BY-SA</a>)`,
			},
		},
		View: View{Center: [2]float64{37.09, -95.71}, Zoom: 5},
		Scale: Scale{
			Low:         "yellow",
			High:        "red",
			Ticks:       5,
			Mode:        scale.ModeEven,
			LegendTitle: "Depth Legend",
		},
		Markers: Markers{RadiusFactor: 3, MinRadius: 0.5, FillOpacity: 0.7},
		Plates:  Plates{Color: "orange", Weight: 2, Opacity: 1},
		Tiles: Tiles{
			CacheDir:    "tiles",
			Subdomains:  []string{"a", "b", "c"},
			ZoomLimit:   6,
			Quality:     80,
			Concurrency: 8,
		},
		Refresh:  Refresh{TTL: 5 * time.Minute},
		Timezone: "UTC",
	}
}

// Load reads and parses the YAML configuration file from the specified path.
// Keys missing from the file keep their default values; a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("Configuration file not found, using defaults")
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	return cfg, nil
}

// fillDefaults restores zero values an explicit empty key may have left behind.
func (c *Config) fillDefaults() {
	def := Default()

	if c.Feeds.Timeout <= 0 {
		c.Feeds.Timeout = def.Feeds.Timeout
	}
	if c.Feeds.Retries < 0 {
		c.Feeds.Retries = 0
	}
	if c.Scale.Ticks <= 0 {
		c.Scale.Ticks = def.Scale.Ticks
	}
	if c.Scale.Mode == "" {
		c.Scale.Mode = def.Scale.Mode
	}
	if c.Tiles.Quality <= 0 || c.Tiles.Quality > 100 {
		c.Tiles.Quality = def.Tiles.Quality
	}
	if c.Tiles.Concurrency <= 0 {
		c.Tiles.Concurrency = def.Tiles.Concurrency
	}
	if len(c.Tiles.Subdomains) == 0 {
		c.Tiles.Subdomains = def.Tiles.Subdomains
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Feeds.Seismic == "" {
		return errors.New("feeds.seismic is required")
	}
	if len(c.Layers) == 0 {
		return errors.New("at least one base layer is required")
	}

	seen := make(map[string]bool, len(c.Layers))
	for _, l := range c.Layers {
		if l.Name == "" || l.URL == "" {
			return fmt.Errorf("layer %q: name and url are required", l.Title)
		}
		if seen[l.Name] {
			return fmt.Errorf("layer %q: duplicate name", l.Name)
		}
		seen[l.Name] = true
	}

	for key, value := range map[string]string{
		"scale.low":    c.Scale.Low,
		"scale.high":   c.Scale.High,
		"plates.color": c.Plates.Color,
	} {
		if _, err := scale.ParseColor(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if c.Scale.Mode != scale.ModeEven && c.Scale.Mode != scale.ModeNice {
		return fmt.Errorf("scale.mode: unknown mode %q", c.Scale.Mode)
	}
	if c.View.Zoom < 0 || c.View.Zoom > 22 {
		return fmt.Errorf("view.zoom: %d out of range", c.View.Zoom)
	}
	if c.Markers.FillOpacity < 0 || c.Markers.FillOpacity > 1 {
		return fmt.Errorf("markers.fill_opacity: %v out of range", c.Markers.FillOpacity)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	return nil
}

// Location resolves the timezone used for popup timestamps.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DefaultLayer returns the layer shown on load.
func (c *Config) DefaultLayer() Layer {
	for _, l := range c.Layers {
		if l.Default {
			return l
		}
	}
	return c.Layers[0]
}

// LayerByName finds a base layer by its path name.
func (c *Config) LayerByName(name string) (Layer, bool) {
	for _, l := range c.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}
