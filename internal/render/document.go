// Package render turns decoded feeds into the map document drawn by the
// browser client: base layers, styled markers, overlays and the legend.
package render

import (
	"fmt"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/scale"
)

// Overlay names as shown in the layer control.
const (
	OverlayEarthquakes = "Earthquakes"
	OverlayPlates      = "Tectonic Plates"
)

// Overlay kinds tell the client how to draw an overlay.
const (
	KindMarkers = "markers"
	KindGeoJSON = "geojson"
)

// TileProxyPath is the URL template of the local tile cache.
const TileProxyPath = "/tiles/%s/{z}/{x}/{y}.webp"

// TileLayer is a selectable base layer.
type TileLayer struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Attribution string `json:"attribution,omitempty"`
	Subdomains  string `json:"subdomains,omitempty"`
	Default     bool   `json:"default"`
}

// Overlay is a togglable layer listed in the layer control.
type Overlay struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Visible bool   `json:"visible"`
}

// PathStyle is the fixed vector style of an overlay.
type PathStyle struct {
	Color   string  `json:"color" yaml:"color"`
	Weight  float64 `json:"weight" yaml:"weight"`
	Opacity float64 `json:"opacity" yaml:"opacity"`
	Fill    bool    `json:"fill" yaml:"fill"`
}

// View is the initial viewport.
type View struct {
	Center [2]float64 `json:"center"` // [lat, lon]
	Zoom   int        `json:"zoom"`
}

// LayerError is the visible error state of a layer that failed to load.
type LayerError struct {
	Layer   string `json:"layer"`
	Message string `json:"message"`
}

// MapDocument is everything the client needs to draw one map. It is built
// once per pipeline run after every feed result is known.
type MapDocument struct {
	Snapshot    string                        `json:"snapshot"` // id of the snapshot that owns this document
	Plates      *geo.GeoJSONFeatureCollection `json:"plates,omitempty"`
	Scale       *scale.Linear                 `json:"scale,omitempty"`
	LegendTitle string                        `json:"legend_title"`
	BaseLayers  []TileLayer                   `json:"base_layers"`
	Overlays    []Overlay                     `json:"overlays"`
	Markers     []Marker                      `json:"markers"`
	Legend      []scale.LegendEntry           `json:"legend"`
	Errors      []LayerError                  `json:"errors"`
	PlateStyle  PathStyle                     `json:"plate_style"`
	View        View                          `json:"view"`
}

// Layers collects the per-feed results handed to Assemble.
type Layers struct {
	Plates     *geo.GeoJSONFeatureCollection // nil when the plate feed failed
	Scale      *scale.Linear                 // nil when no depth domain exists
	Markers    []Marker
	Legend     []scale.LegendEntry
	Errors     []LayerError
	HasSeismic bool // false when the seismic feed failed
}

// Renderer holds the presentation settings derived from configuration.
type Renderer struct {
	location    *time.Location
	layers      []config.Layer
	subdomains  []string
	legendTitle string
	mode        string
	plateStyle  PathStyle
	view        View
	markers     config.Markers
	ticks       int
	plates      bool
	tileProxy   bool
}

// NewRenderer validates the presentation parts of cfg.
func NewRenderer(cfg *config.Config) (*Renderer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	plateColor, err := scale.ParseColor(cfg.Plates.Color)
	if err != nil {
		return nil, fmt.Errorf("plates color: %w", err)
	}

	return &Renderer{
		location:    loc,
		layers:      cfg.Layers,
		subdomains:  cfg.Tiles.Subdomains,
		legendTitle: cfg.Scale.LegendTitle,
		mode:        cfg.Scale.Mode,
		ticks:       cfg.Scale.Ticks,
		markers:     cfg.Markers,
		plates:      cfg.Plates.Visible,
		tileProxy:   cfg.Tiles.Enabled,
		view:        View{Center: cfg.View.Center, Zoom: cfg.View.Zoom},
		plateStyle: PathStyle{
			Color:   plateColor.Hex(),
			Weight:  cfg.Plates.Weight,
			Opacity: cfg.Plates.Opacity,
		},
	}, nil
}

// BaseLayers lists the base tile layers; the default one is shown on load.
func (r *Renderer) BaseLayers() []TileLayer {
	defaultName := r.layers[0].Name
	for _, l := range r.layers {
		if l.Default {
			defaultName = l.Name
			break
		}
	}

	out := make([]TileLayer, 0, len(r.layers))
	for _, l := range r.layers {
		tl := TileLayer{
			Name:        l.Name,
			Title:       l.Title,
			URL:         l.URL,
			Attribution: l.Attribution,
			Default:     l.Name == defaultName,
		}
		if r.tileProxy {
			tl.URL = fmt.Sprintf(TileProxyPath, l.Name)
		} else {
			for _, s := range r.subdomains {
				tl.Subdomains += s
			}
		}
		out = append(out, tl)
	}

	return out
}

// Legend derives the legend rows for a scale.
func (r *Renderer) Legend(s scale.Linear) []scale.LegendEntry {
	return s.Legend(r.ticks, r.mode)
}

// Assemble builds the map document. The overlay list is derived here, after
// every layer result is in, so the layer control never misses a late layer.
func (r *Renderer) Assemble(l Layers) *MapDocument {
	doc := &MapDocument{
		View:        r.view,
		BaseLayers:  r.BaseLayers(),
		Overlays:    []Overlay{},
		Markers:     []Marker{},
		Legend:      []scale.LegendEntry{},
		Errors:      []LayerError{},
		LegendTitle: r.legendTitle,
		PlateStyle:  r.plateStyle,
		Scale:       l.Scale,
	}

	if l.HasSeismic {
		doc.Overlays = append(doc.Overlays, Overlay{Name: OverlayEarthquakes, Kind: KindMarkers, Visible: true})
		if l.Markers != nil {
			doc.Markers = l.Markers
		}
		if l.Legend != nil {
			doc.Legend = l.Legend
		}
	}

	if l.Plates != nil {
		doc.Overlays = append(doc.Overlays, Overlay{Name: OverlayPlates, Kind: KindGeoJSON, Visible: r.plates})
		doc.Plates = l.Plates
	}

	if l.Errors != nil {
		doc.Errors = l.Errors
	}

	return doc
}
