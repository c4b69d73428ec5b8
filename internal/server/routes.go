package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires every route of the map service.
func (s *ServerContext) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.HandleIndex)
	r.Get("/favicon.svg", s.HandleFavicon)
	r.Get("/healthz", s.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.Config.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "If-None-Match"},
			ExposedHeaders: []string{"ETag"},
			MaxAge:         300,
		}))
		r.Use(middleware.Compress(5))

		r.Get("/map", s.HandleMap)
		r.Get("/legend", s.HandleLegend)
		r.Get("/quakes.geojson", s.HandleQuakes)
	})

	if s.Tiles != nil {
		r.Get("/tiles/{layer}/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}.webp", s.HandleTile)
	}

	return r
}
