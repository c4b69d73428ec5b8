// Package tiles proxies base map tiles through a WebP disk cache.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/observability"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TileSize is the edge length of a slippy map tile in pixels.
const TileSize = 256

var (
	// ErrUnknownLayer is returned for layer names missing from the configuration.
	ErrUnknownLayer = errors.New("unknown tile layer")
	// ErrInvalidTile is returned for coordinates outside the tile pyramid or zoom limit.
	ErrInvalidTile = errors.New("invalid tile coordinate")
	// ErrNotFound is returned when the upstream has no usable image for a tile.
	ErrNotFound = errors.New("tile not found")
)

// Cache downloads upstream tiles on demand and stores them as WebP files.
type Cache struct {
	client      *http.Client
	metrics     *observability.Metrics
	layers      map[string]config.Layer
	dir         string
	subdomains  []string
	transparent []byte
	next        atomic.Uint64
	zoomLimit   int
	quality     int
}

// New creates a tile cache for the configured base layers.
func New(cfg *config.Config, client *http.Client, metrics *observability.Metrics) (*Cache, error) {
	transparent, err := transparentTile()
	if err != nil {
		return nil, fmt.Errorf("encode transparent tile: %w", err)
	}

	layers := make(map[string]config.Layer, len(cfg.Layers))
	for _, l := range cfg.Layers {
		layers[l.Name] = l
	}

	return &Cache{
		client:      client,
		metrics:     metrics,
		layers:      layers,
		dir:         cfg.Tiles.CacheDir,
		subdomains:  cfg.Tiles.Subdomains,
		transparent: transparent,
		zoomLimit:   cfg.Tiles.ZoomLimit,
		quality:     cfg.Tiles.Quality,
	}, nil
}

// Transparent returns the WebP tile served when no upstream image exists.
func (c *Cache) Transparent() []byte {
	return c.transparent
}

// Path returns where a tile is stored on disk.
func (c *Cache) Path(layer string, t geo.TileCoordinate) string {
	return filepath.Join(
		c.dir,
		layer,
		strconv.Itoa(t.Z),
		strconv.Itoa(t.X),
		strconv.Itoa(t.Y)+".webp",
	)
}

// Get returns the path of a cached tile, downloading it on a miss.
func (c *Cache) Get(ctx context.Context, layer string, t geo.TileCoordinate) (string, error) {
	l, ok := c.layers[layer]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownLayer, layer)
	}
	if !geo.ValidTile(t) || (c.zoomLimit > 0 && t.Z > c.zoomLimit) {
		return "", fmt.Errorf("%w: %d/%d/%d", ErrInvalidTile, t.Z, t.X, t.Y)
	}

	path := c.Path(layer, t)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		c.observe(layer, "hit")
		return path, nil
	}

	c.observe(layer, "miss")
	if err := c.downloadAndConvert(ctx, c.buildURL(l.URL, t), path); err != nil {
		return "", err
	}

	return path, nil
}

// Prefetch warms the cache for the given tiles with a bounded worker pool and
// reports how many tiles are now cached.
func (c *Cache) Prefetch(ctx context.Context, layer string, tiles []geo.TileCoordinate, concurrency int) (cached, failed int) {
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan geo.TileCoordinate, len(tiles))
	for _, t := range tiles {
		jobs <- t
	}
	close(jobs)

	var (
		wg      sync.WaitGroup
		okCount atomic.Int64
		errs    atomic.Int64
	)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				if ctx.Err() != nil {
					errs.Add(1)
					continue
				}
				if _, err := c.Get(ctx, layer, t); err != nil {
					log.Trace().
						Err(err).
						Str("layer", layer).
						Int("z", t.Z).Int("x", t.X).Int("y", t.Y).
						Msg("Failed to prefetch tile")
					errs.Add(1)
					continue
				}
				okCount.Add(1)
			}
		}()
	}
	wg.Wait()

	return int(okCount.Load()), int(errs.Load())
}

// PrefetchAround warms every zoom level up to zoomLimit with the tiles within
// radius of center ([lat, lon]).
func (c *Cache) PrefetchAround(ctx context.Context, layer string, center [2]float64, zoomLimit, radius, concurrency int) (cached, failed int) {
	if c.zoomLimit > 0 && zoomLimit > c.zoomLimit {
		zoomLimit = c.zoomLimit
	}

	var queue []geo.TileCoordinate
	for z := 0; z <= zoomLimit; z++ {
		queue = append(queue, geo.TilesAround(center[0], center[1], z, radius)...)
	}

	log.Info().
		Str("layer", layer).
		Int("tiles", len(queue)).
		Int("zoom_limit", zoomLimit).
		Msg("Prefetching tiles")

	return c.Prefetch(ctx, layer, queue, concurrency)
}

func (c *Cache) downloadAndConvert(ctx context.Context, url, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "quakemap tile cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Trace().Str("url", url).Msg("Tile not found (404)")
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tile %s: status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		log.Trace().Err(err).Str("url", url).Msg("Failed to decode tile")
		return fmt.Errorf("%w: %s: %v", ErrNotFound, url, err)
	}

	// Filter out empty/1px tiles often returned by map servers for OOB areas
	if img.Bounds().Dx() <= 1 {
		log.Trace().Str("url", url).Msg("Filtered empty tile")
		return fmt.Errorf("%w: %s: empty image", ErrNotFound, url)
	}

	return c.write(outPath, img)
}

// write encodes into a temporary file and renames it so readers never see
// a partial tile.
func (c *Cache) write(outPath string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".tile-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := webp.Encode(tmp, img, &webp.Options{Lossless: false, Quality: float32(c.quality)}); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), outPath)
}

// buildURL fills a tile URL template. {s} rotates over the subdomains.
func (c *Cache) buildURL(tpl string, t geo.TileCoordinate) string {
	sub := ""
	if len(c.subdomains) > 0 {
		sub = c.subdomains[c.next.Add(1)%uint64(len(c.subdomains))]
	}
	return buildURL(tpl, t, sub)
}

func buildURL(tpl string, t geo.TileCoordinate, subdomain string) string {
	s := strings.ReplaceAll(tpl, "{s}", subdomain)
	s = strings.ReplaceAll(s, "{z}", strconv.Itoa(t.Z))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(t.X))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(t.Y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << t.Z) - 1
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(maxCoord-t.Y))
	}

	return s
}

func (c *Cache) observe(layer, result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.TileRequests.WithLabelValues(layer, result).Inc()
}

// ObserveFallback counts a request answered with the transparent tile.
func (c *Cache) ObserveFallback(layer string) {
	c.observe(layer, "fallback")
}

func transparentTile() ([]byte, error) {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize))
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
