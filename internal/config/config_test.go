package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultSeismicURL, cfg.Feeds.Seismic)
	assert.Equal(t, [2]float64{37.09, -95.71}, cfg.View.Center)
	assert.Equal(t, 5, cfg.View.Zoom)
	assert.Equal(t, "street", cfg.DefaultLayer().Name)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesKeepOtherDefaults(t *testing.T) {
	path := writeConfig(t, `
feeds:
  seismic: http://localhost/quakes.geojson
  timeout: 3s
view:
  center: [10, 20]
  zoom: 3
scale:
  low: "#00ff00"
  high: blue
  mode: nice
tiles:
  enabled: true
  zoom: 4
refresh:
  ttl: 30s
timezone: Europe/Berlin
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost/quakes.geojson", cfg.Feeds.Seismic)
	assert.Equal(t, DefaultPlatesURL, cfg.Feeds.Plates)
	assert.Equal(t, 3*time.Second, cfg.Feeds.Timeout)
	assert.Equal(t, [2]float64{10, 20}, cfg.View.Center)
	assert.Equal(t, "#00ff00", cfg.Scale.Low)
	assert.Equal(t, "nice", cfg.Scale.Mode)
	assert.Equal(t, 5, cfg.Scale.Ticks)
	assert.True(t, cfg.Tiles.Enabled)
	assert.Equal(t, 4, cfg.Tiles.ZoomLimit)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Tiles.Subdomains)
	assert.Equal(t, 30*time.Second, cfg.Refresh.TTL)
	assert.Len(t, cfg.Layers, 2)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadRetriesCountExtraAttempts(t *testing.T) {
	cfg, err := Load(writeConfig(t, "feeds:\n  retries: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Feeds.Retries)

	cfg, err = Load(writeConfig(t, "feeds:\n  retries: -2\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Feeds.Retries)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad color":      "scale:\n  low: not-a-color\n",
		"bad mode":       "scale:\n  mode: log\n",
		"bad zoom":       "view:\n  zoom: 40\n",
		"bad timezone":   "timezone: Mars/Olympus\n",
		"no layers url":  "layers:\n  - name: street\n    title: Street\n",
		"duplicate name": "layers:\n  - {name: a, url: x}\n  - {name: a, url: y}\n",
		"bad opacity":    "markers:\n  fill_opacity: 2\n",
		"bad yaml":       "feeds: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLayerByName(t *testing.T) {
	cfg := Default()

	l, ok := cfg.LayerByName("topo")
	require.True(t, ok)
	assert.Equal(t, "Topographic Map", l.Title)

	_, ok = cfg.LayerByName("satellite")
	assert.False(t, ok)
}

func TestLoadExampleFile(t *testing.T) {
	cfg, err := Load("../../config.example.yaml")
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Feeds, cfg.Feeds)
	assert.Equal(t, def.View, cfg.View)
	assert.Equal(t, def.Refresh, cfg.Refresh)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Len(t, cfg.Layers, 2)
	assert.Equal(t, "street", cfg.DefaultLayer().Name)
}
