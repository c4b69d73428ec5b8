package render

import (
	"html"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/scale"
)

// PopupTimeLayout mimics the browser's default Date rendering.
const PopupTimeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// Marker is a styled circle marker for one seismic event.
type Marker struct {
	Magnitude   *float64    `json:"mag"`
	ID          string      `json:"id,omitempty"`
	Place       string      `json:"place"`
	Popup       string      `json:"popup"`
	Color       scale.Color `json:"color"`
	FillColor   scale.Color `json:"fill_color"`
	Lat         float64     `json:"lat"`
	Lon         float64     `json:"lon"`
	Depth       float64     `json:"depth"`
	Radius      float64     `json:"radius"`
	FillOpacity float64     `json:"fill_opacity"`
	Time        int64       `json:"time"`
}

var popupTemplate = template.Must(template.New("popup").Parse(
	`<h3>{{.Place}}</h3><p>Magnitude: {{.Magnitude}}</p><p>Depth: {{.Depth}}</p><hr><p>{{.Time}}</p>`,
))

// Radius sizes a marker by magnitude. A missing magnitude, or one whose
// scaled value is zero or NaN, gets the minimum radius.
func (r *Renderer) Radius(mag *float64) float64 {
	if mag == nil {
		return r.markers.MinRadius
	}
	radius := *mag * r.markers.RadiusFactor
	if radius == 0 || math.IsNaN(radius) {
		return r.markers.MinRadius
	}
	return radius
}

// Popup renders the popup HTML of an event.
func (r *Renderer) Popup(q geo.Quake) string {
	magnitude := "unknown"
	if q.Magnitude != nil {
		magnitude = formatNumber(*q.Magnitude)
	}

	var b strings.Builder
	// Executing a parsed template into a strings.Builder does not fail for these fields
	_ = popupTemplate.Execute(&b, struct {
		Place     string
		Magnitude template.HTML
		Depth     template.HTML
		Time      template.HTML
	}{
		Place:     q.Place,
		Magnitude: template.HTML(html.EscapeString(magnitude)),
		Depth:     template.HTML(html.EscapeString(formatNumber(q.Depth))),
		Time:      template.HTML(html.EscapeString(r.FormatTime(q.Time))),
	})

	return b.String()
}

// FormatTime renders epoch milliseconds in the configured location.
func (r *Renderer) FormatTime(ms int64) string {
	return time.UnixMilli(ms).In(r.location).Format(PopupTimeLayout)
}

// Markers styles every event with the depth scale.
func (r *Renderer) Markers(quakes []geo.Quake, s scale.Linear) []Marker {
	markers := make([]Marker, 0, len(quakes))
	for _, q := range quakes {
		c := s.Color(q.Depth)
		markers = append(markers, Marker{
			ID:          q.ID,
			Place:       q.Place,
			Magnitude:   q.Magnitude,
			Time:        q.Time,
			Lat:         q.Lat,
			Lon:         q.Lon,
			Depth:       q.Depth,
			Radius:      r.Radius(q.Magnitude),
			Color:       c,
			FillColor:   c,
			FillOpacity: r.markers.FillOpacity,
			Popup:       r.Popup(q),
		})
	}
	return markers
}

// MarkersGeoJSON re-emits styled markers as a point feature collection.
func MarkersGeoJSON(markers []Marker) geo.GeoJSONFeatureCollection {
	fc := geo.GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]geo.GeoJSONFeature, 0, len(markers)),
	}

	for _, m := range markers {
		props := map[string]interface{}{
			"place":        m.Place,
			"time":         m.Time,
			"depth":        m.Depth,
			"radius":       m.Radius,
			"color":        m.Color.String(),
			"fill_color":   m.FillColor.String(),
			"fill_opacity": m.FillOpacity,
			"popup":        m.Popup,
			"mag":          nil,
		}
		if m.Magnitude != nil {
			props["mag"] = *m.Magnitude
		}

		f := geo.GeoJSONFeature{
			Type:       "Feature",
			Geometry:   geo.PointGeometry(m.Lon, m.Lat, m.Depth),
			Properties: props,
		}
		if m.ID != "" {
			f.ID = m.ID
		}
		fc.Features = append(fc.Features, f)
	}

	return fc
}

// formatNumber prints the shortest decimal form: 3, 2.5, -0.12.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
