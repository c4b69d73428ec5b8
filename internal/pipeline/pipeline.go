// Package pipeline builds map snapshots: it fetches both feeds, derives the
// depth scale and renders markers, legend and overlays.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/observability"
	"github.com/woozymasta/quakemap/internal/render"
	"github.com/woozymasta/quakemap/internal/scale"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Feed names used in logs, metrics and errors.
const (
	FeedSeismic = "seismic"
	FeedPlates  = "plates"
)

// Fetcher downloads a GeoJSON feature collection.
type Fetcher interface {
	Fetch(ctx context.Context, name, url string) (*geo.GeoJSONFeatureCollection, error)
}

// Snapshot is the result of one pipeline run.
type Snapshot struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Document    *render.MapDocument `json:"document"`
	ID          string              `json:"id"`
	Skipped     int                 `json:"skipped"`
}

// Partial reports whether any layer failed to load.
func (s *Snapshot) Partial() bool {
	return len(s.Document.Errors) > 0
}

// Pipeline runs the fetch, derive-scale, render-markers and render-legend stages.
type Pipeline struct {
	fetcher    Fetcher
	renderer   *render.Renderer
	metrics    *observability.Metrics
	clock      clockwork.Clock
	seismicURL string
	platesURL  string
	low        scale.Color
	high       scale.Color
}

// New creates a pipeline for the configured feeds.
func New(cfg *config.Config, fetcher Fetcher, renderer *render.Renderer, metrics *observability.Metrics) (*Pipeline, error) {
	low, err := scale.ParseColor(cfg.Scale.Low)
	if err != nil {
		return nil, err
	}
	high, err := scale.ParseColor(cfg.Scale.High)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		fetcher:    fetcher,
		renderer:   renderer,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
		seismicURL: cfg.Feeds.Seismic,
		platesURL:  cfg.Feeds.Plates,
		low:        low,
		high:       high,
	}, nil
}

// SetClock swaps the time source stamped on snapshots. Pass nil to reset to real time.
func (p *Pipeline) SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	p.clock = c
}

// Run builds one snapshot. Both feeds are fetched concurrently and the
// document is assembled only after both have resolved; a failed feed leaves
// its layer out and records a visible error instead of aborting the run.
func (p *Pipeline) Run(ctx context.Context) *Snapshot {
	start := time.Now()

	var (
		wg         sync.WaitGroup
		quakes     *geo.GeoJSONFeatureCollection
		plates     *geo.GeoJSONFeatureCollection
		errQ, errP error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		quakes, errQ = p.fetcher.Fetch(ctx, FeedSeismic, p.seismicURL)
	}()

	if p.platesURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plates, errP = p.fetcher.Fetch(ctx, FeedPlates, p.platesURL)
		}()
	}

	wg.Wait()

	var layers render.Layers

	if errQ != nil {
		log.Error().Err(errQ).Msg("Seismic feed unavailable, rendering without earthquakes")
		layers.Errors = append(layers.Errors, render.LayerError{
			Layer:   render.OverlayEarthquakes,
			Message: errQ.Error(),
		})
	} else {
		layers.HasSeismic = true
	}

	skipped := 0
	if quakes != nil {
		decoded, n := Decode(quakes)
		skipped = n

		s, err := DeriveScale(decoded, p.low, p.high)
		if err != nil {
			msg := "feed contains no events"
			if skipped > 0 {
				msg = fmt.Sprintf("no usable events (%d skipped)", skipped)
			}
			log.Warn().Err(err).Int("skipped", skipped).Msg("Seismic feed has no usable events, legend left empty")
			layers.Errors = append(layers.Errors, render.LayerError{
				Layer:   render.OverlayEarthquakes,
				Message: msg,
			})
			layers.Markers = []render.Marker{}
		} else {
			layers.Scale = &s
			layers.Markers = p.RenderMarkers(decoded, s)
			layers.Legend = p.RenderLegend(s)
		}
	}

	if errP != nil {
		log.Error().Err(errP).Msg("Plate boundary feed unavailable, rendering without plates")
		layers.Errors = append(layers.Errors, render.LayerError{
			Layer:   render.OverlayPlates,
			Message: errP.Error(),
		})
	}
	layers.Plates = plates

	snap := &Snapshot{
		ID:          uuid.NewString(),
		GeneratedAt: p.clock.Now(),
		Document:    p.renderer.Assemble(layers),
		Skipped:     skipped,
	}
	snap.Document.Snapshot = snap.ID

	p.observe(snap, skipped, time.Since(start))

	log.Info().
		Str("snapshot", snap.ID).
		Int("markers", len(snap.Document.Markers)).
		Int("overlays", len(snap.Document.Overlays)).
		Int("skipped", skipped).
		Int("errors", len(snap.Document.Errors)).
		Dur("duration", time.Since(start)).
		Msg("Snapshot built")

	return snap
}

// Decode reads every seismic event, skipping features without a point geometry.
func Decode(fc *geo.GeoJSONFeatureCollection) ([]geo.Quake, int) {
	quakes := make([]geo.Quake, 0, len(fc.Features))
	skipped := 0

	for _, f := range fc.Features {
		q, err := geo.DecodeQuake(f)
		if err != nil {
			skipped++
			log.Trace().Err(err).Interface("id", f.ID).Msg("Skipping feature")
			continue
		}
		quakes = append(quakes, q)
	}

	return quakes, skipped
}

// DeriveScale builds the depth color scale over the current events.
func DeriveScale(quakes []geo.Quake, low, high scale.Color) (scale.Linear, error) {
	depths := make([]float64, len(quakes))
	for i, q := range quakes {
		depths[i] = q.Depth
	}

	lo, hi, err := scale.Extent(depths)
	if err != nil {
		return scale.Linear{}, err
	}

	return scale.NewLinear(lo, hi, low, high), nil
}

// RenderMarkers styles the events with the scale.
func (p *Pipeline) RenderMarkers(quakes []geo.Quake, s scale.Linear) []render.Marker {
	return p.renderer.Markers(quakes, s)
}

// RenderLegend derives the legend for the scale.
func (p *Pipeline) RenderLegend(s scale.Linear) []scale.LegendEntry {
	return p.renderer.Legend(s)
}

func (p *Pipeline) observe(snap *Snapshot, skipped int, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}

	outcome := "complete"
	if snap.Partial() {
		outcome = "partial"
	}
	p.metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	p.metrics.PipelineDuration.Observe(elapsed.Seconds())
	p.metrics.SkippedFeatures.Add(float64(skipped))
}
