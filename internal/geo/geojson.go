// Package geo handles geographic data structures and coordinate conversions.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrNotPoint is returned when a feature cannot be read as a seismic event.
var ErrNotPoint = errors.New("geometry is not a point with depth")

// GeoJSONFeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type" yaml:"type"`
	Features []GeoJSONFeature `json:"features" yaml:"features"`
}

// GeoJSONFeature represents a single geographic feature with geometry and properties.
type GeoJSONFeature struct {
	ID         any                    `json:"id,omitempty" yaml:"id,omitempty"`
	Properties map[string]interface{} `json:"properties" yaml:"properties"`
	Type       string                 `json:"type" yaml:"type"`
	Geometry   GeoJSONGeometry        `json:"geometry" yaml:"geometry"`
}

// GeoJSONGeometry represents the geometry of a feature (Point, Polygon, etc.).
// Coordinates stay raw so plate polygons and lines pass through untouched.
type GeoJSONGeometry struct {
	Type        string          `json:"type" yaml:"type"`
	Coordinates json.RawMessage `json:"coordinates" yaml:"coordinates"`
}

// MarshalYAML emits the raw coordinates as nested sequences instead of bytes.
func (g GeoJSONGeometry) MarshalYAML() (interface{}, error) {
	var coords interface{}
	if len(g.Coordinates) > 0 {
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decode coordinates: %w", err)
		}
	}
	return struct {
		Type        string      `yaml:"type"`
		Coordinates interface{} `yaml:"coordinates"`
	}{Type: g.Type, Coordinates: coords}, nil
}

// PointGeometry builds a Point geometry from [lon, lat(, depth)].
func PointGeometry(coords ...float64) GeoJSONGeometry {
	raw, _ := json.Marshal(coords)
	return GeoJSONGeometry{Type: "Point", Coordinates: raw}
}

// Quake is one seismic event read from the feed.
type Quake struct {
	ID        string
	Place     string
	Magnitude *float64 // nil when the feed reports null
	Lon       float64
	Lat       float64
	Depth     float64 // km below the surface
	Time      int64   // epoch milliseconds
}

// DecodeQuake extracts the attributes the map consumes from a seismic feature.
func DecodeQuake(f GeoJSONFeature) (Quake, error) {
	if f.Geometry.Type != "" && f.Geometry.Type != "Point" {
		return Quake{}, fmt.Errorf("%w: got %s", ErrNotPoint, f.Geometry.Type)
	}

	var coords []float64
	if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
		return Quake{}, fmt.Errorf("%w: %v", ErrNotPoint, err)
	}
	if len(coords) < 3 {
		return Quake{}, fmt.Errorf("%w: %d coordinates", ErrNotPoint, len(coords))
	}

	q := Quake{
		Lon:   coords[0],
		Lat:   coords[1],
		Depth: coords[2],
	}

	switch id := f.ID.(type) {
	case string:
		q.ID = id
	case float64:
		q.ID = fmt.Sprintf("%v", id)
	}

	if place, ok := f.Properties["place"].(string); ok {
		q.Place = place
	}
	if mag, ok := number(f.Properties["mag"]); ok {
		q.Magnitude = &mag
	}
	if t, ok := number(f.Properties["time"]); ok {
		q.Time = int64(t)
	}

	return q, nil
}

// number accepts the numeric shapes encoding/json and yaml produce.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
