package geo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const usgsFeature = `{
	"type": "Feature",
	"id": "us7000abcd",
	"properties": {"mag": 4.6, "place": "10 km SW of Somewhere", "time": 1700000000000},
	"geometry": {"type": "Point", "coordinates": [-122.5, 38.1, 12.3]}
}`

func TestDecodeQuake(t *testing.T) {
	var f GeoJSONFeature
	require.NoError(t, json.Unmarshal([]byte(usgsFeature), &f))

	q, err := DecodeQuake(f)
	require.NoError(t, err)

	assert.Equal(t, "us7000abcd", q.ID)
	assert.Equal(t, -122.5, q.Lon)
	assert.Equal(t, 38.1, q.Lat)
	assert.Equal(t, 12.3, q.Depth)
	require.NotNil(t, q.Magnitude)
	assert.Equal(t, 4.6, *q.Magnitude)
	assert.Equal(t, "10 km SW of Somewhere", q.Place)
	assert.Equal(t, int64(1700000000000), q.Time)
}

func TestDecodeQuakeNullMagnitude(t *testing.T) {
	var f GeoJSONFeature
	raw := `{"type":"Feature","properties":{"mag":null,"place":"x","time":0},"geometry":{"type":"Point","coordinates":[1,2,3]}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	q, err := DecodeQuake(f)
	require.NoError(t, err)
	assert.Nil(t, q.Magnitude)
}

func TestDecodeQuakeRejectsNonPoints(t *testing.T) {
	tests := map[string]string{
		"line":       `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]}}`,
		"no depth":   `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,2]}}`,
		"null coord": `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":null}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			var f GeoJSONFeature
			require.NoError(t, json.Unmarshal([]byte(raw), &f))
			_, err := DecodeQuake(f)
			require.ErrorIs(t, err, ErrNotPoint)
		})
	}
}

func TestGeometryKeepsRawCoordinates(t *testing.T) {
	raw := `{"type":"Feature","properties":{"Name":"AF-AN"},"geometry":{"type":"LineString","coordinates":[[-0.4,-54.8],[0.1,-54.4]]}}`

	var f GeoJSONFeature
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	out, err := json.Marshal(f.Geometry)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"LineString","coordinates":[[-0.4,-54.8],[0.1,-54.4]]}`, string(out))
}

func TestPointGeometry(t *testing.T) {
	g := PointGeometry(1.5, 2.5, 10)
	assert.Equal(t, "Point", g.Type)
	assert.JSONEq(t, `[1.5,2.5,10]`, string(g.Coordinates))
}

func TestLonLatToTile(t *testing.T) {
	assert.Equal(t, TileCoordinate{0, 0, 0}, LonLatToTile(-95.71, 37.09, 0))
	assert.Equal(t, TileCoordinate{1, 0, 0}, LonLatToTile(-95.71, 37.09, 1))
	assert.Equal(t, TileCoordinate{1, 1, 1}, LonLatToTile(10, -10, 1))
	assert.Equal(t, TileCoordinate{5, 7, 12}, LonLatToTile(-95.71, 37.09, 5))

	// poles are clamped into the pyramid
	assert.Equal(t, TileCoordinate{2, 3, 0}, LonLatToTile(179.9, 90, 2))
	assert.Equal(t, TileCoordinate{2, 0, 3}, LonLatToTile(-180, -90, 2))
}

func TestTilesAround(t *testing.T) {
	tiles := TilesAround(37.09, -95.71, 1, 1)
	assert.ElementsMatch(t, []TileCoordinate{
		{1, 0, 0}, {1, 1, 0},
		{1, 0, 1}, {1, 1, 1},
	}, tiles)

	assert.Len(t, TilesAround(37.09, -95.71, 5, 1), 9)
	assert.Len(t, TilesAround(37.09, -95.71, 0, 3), 1)
}

func TestValidTile(t *testing.T) {
	assert.True(t, ValidTile(TileCoordinate{0, 0, 0}))
	assert.True(t, ValidTile(TileCoordinate{3, 7, 7}))
	assert.False(t, ValidTile(TileCoordinate{3, 8, 0}))
	assert.False(t, ValidTile(TileCoordinate{-1, 0, 0}))
	assert.False(t, ValidTile(TileCoordinate{2, 0, -1}))
}

func TestGeometryYAML(t *testing.T) {
	out, err := yaml.Marshal(PointGeometry(1.5, 2, 3))
	require.NoError(t, err)

	var back struct {
		Type        string    `yaml:"type"`
		Coordinates []float64 `yaml:"coordinates"`
	}
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "Point", back.Type)
	assert.Equal(t, []float64{1.5, 2, 3}, back.Coordinates)
}
