// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/pipeline"
	"github.com/woozymasta/quakemap/internal/render"
	"github.com/woozymasta/quakemap/internal/tiles"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const etagCap = 64

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	etag := fmt.Sprintf(`"%x"`, crc32.ChecksumIEEE(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleMap serves the map document of the current snapshot. The snapshot id
// doubles as the ETag.
func (s *ServerContext) HandleMap(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	etag := `"` + snap.ID + `"`
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Last-Modified", snap.GeneratedAt.UTC().Format(http.TimeFormat))
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(snap.Document)
}

// HandleLegend serves the legend HTML fragment.
func (s *ServerContext) HandleLegend(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := render.RenderLegendHTML(w, snap.Document.LegendTitle, snap.Document.Legend); err != nil {
		log.Error().Err(err).Msg("Failed to render legend")
	}
}

// HandleQuakes serves the styled seismic events as GeoJSON.
func (s *ServerContext) HandleQuakes(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "no-cache")
	_ = json.NewEncoder(w).Encode(render.MarkersGeoJSON(snap.Document.Markers))
}

// HandleTile serves a base tile from the cache, falling back to a
// transparent tile when the upstream has none.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	t, err := tileParams(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	path, err := s.Tiles.Get(r.Context(), layer, t)
	switch {
	case err == nil:
		if s.serveFile(w, r, path, "image/webp") {
			return
		}
	case errors.Is(err, tiles.ErrUnknownLayer), errors.Is(err, tiles.ErrInvalidTile):
		http.NotFound(w, r)
		return
	default:
		log.Debug().Err(err).Str("layer", layer).Msg("Serving transparent tile")
	}

	s.Tiles.ObserveFallback(layer)
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.Tiles.Transparent())
}

type healthResponse struct {
	Status      string     `json:"status"`
	Snapshot    string     `json:"snapshot,omitempty"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	Errors      int        `json:"errors"`
}

// HandleHealth reports liveness and the state of the cached snapshot without
// triggering a rebuild.
func (s *ServerContext) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if snap := s.Snapshots.Peek(); snap != nil {
		resp.Snapshot = snap.ID
		resp.GeneratedAt = &snap.GeneratedAt
		resp.Errors = len(snap.Document.Errors)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// snapshot resolves the snapshot a request reads. A snapshot query parameter
// pins the request to the document the page was drawn from.
func (s *ServerContext) snapshot(w http.ResponseWriter, r *http.Request) (*pipeline.Snapshot, bool) {
	if id := r.URL.Query().Get("snapshot"); id != "" {
		snap, ok := s.Snapshots.Lookup(id)
		if !ok {
			log.Debug().Str("snapshot", id).Msg("Requested snapshot expired")
			http.Error(w, "snapshot expired, reload the map", http.StatusGone)
			return nil, false
		}
		return snap, true
	}

	snap, err := s.Snapshots.Get(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("Snapshot unavailable")
		http.Error(w, "map data unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	return snap, true
}

func tileParams(r *http.Request) (geo.TileCoordinate, error) {
	var (
		t   geo.TileCoordinate
		err error
	)
	if t.Z, err = strconv.Atoi(chi.URLParam(r, "z")); err != nil {
		return t, err
	}
	if t.X, err = strconv.Atoi(chi.URLParam(r, "x")); err != nil {
		return t, err
	}
	if t.Y, err = strconv.Atoi(chi.URLParam(r, "y")); err != nil {
		return t, err
	}
	return t, nil
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}
