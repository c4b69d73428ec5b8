package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/pipeline"
	"github.com/woozymasta/quakemap/internal/render"
	"github.com/woozymasta/quakemap/internal/store"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shiftingFetcher moves every event 100 km deeper on each seismic fetch, so
// consecutive snapshots never share a legend.
type shiftingFetcher struct {
	runs atomic.Int32
}

func (f *shiftingFetcher) Fetch(_ context.Context, name, _ string) (*geo.GeoJSONFeatureCollection, error) {
	fc := &geo.GeoJSONFeatureCollection{Type: "FeatureCollection"}
	if name != pipeline.FeedSeismic {
		return fc, nil
	}

	offset := 100 * float64(f.runs.Add(1))
	for i, depth := range []float64{0, 50, 100} {
		fc.Features = append(fc.Features, geo.GeoJSONFeature{
			Type:       "Feature",
			Geometry:   geo.PointGeometry(float64(i), float64(i), depth+offset),
			Properties: map[string]interface{}{"mag": 3.0, "place": "Somewhere", "time": float64(0)},
		})
	}
	return fc, nil
}

func newStoreServer(t *testing.T, ttl time.Duration) (http.Handler, *clockwork.FakeClock) {
	t.Helper()
	cfg := config.Default()

	r, err := render.NewRenderer(cfg)
	require.NoError(t, err)
	p, err := pipeline.New(cfg, &shiftingFetcher{}, r, nil)
	require.NoError(t, err)

	clk := clockwork.NewFakeClock()
	return newTestServer(t, store.New(p, ttl, clk), nil), clk
}

type mapBody struct {
	Snapshot string `json:"snapshot"`
	Legend   []struct {
		Label string `json:"label"`
	} `json:"legend"`
}

func fetchMap(t *testing.T, h http.Handler) mapBody {
	t.Helper()
	rec := get(h, "/api/map")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc mapBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.NotEmpty(t, doc.Snapshot)
	require.NotEmpty(t, doc.Legend)
	assert.Equal(t, `"`+doc.Snapshot+`"`, rec.Header().Get("ETag"))
	return doc
}

func TestLegendMatchesMapAcrossRebuild(t *testing.T) {
	h, clk := newStoreServer(t, time.Minute)

	doc := fetchMap(t, h)
	first := doc.Legend[0].Label
	assert.Contains(t, first, "100.00 - ")

	clk.Advance(time.Minute)

	rec := get(h, "/api/legend?snapshot="+doc.Snapshot)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), first)

	// Without a pinned id the legend follows the rebuilt snapshot.
	rec = get(h, "/api/legend")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), first)
	assert.Contains(t, rec.Body.String(), "200.00 - ")
}

func TestLegendMatchesMapWithoutCaching(t *testing.T) {
	h, _ := newStoreServer(t, 0)

	doc := fetchMap(t, h)
	rec := get(h, "/api/legend?snapshot="+doc.Snapshot)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, entry := range doc.Legend {
		assert.Contains(t, rec.Body.String(), entry.Label)
	}
}
