package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (h *handlers) router() http.Handler {
	allowCredentials := !(len(h.config.CORSOrigins) == 1 && h.config.CORSOrigins[0] == "*")

	r := chi.NewRouter()
	if h.config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition", "Link"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	}))
	r.Use(metricsMiddleware)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if h.config.APIPath == "" || h.config.APIPath == "/" {
		h.routes(r)
	} else {
		r.Route(h.config.APIPath, h.routes)
	}

	return r
}

func (h *handlers) routes(r chi.Router) {
	r.With(h.requireInvoicing).Post("/invoice", h.handleCreateInvoice)
	r.With(h.requireInvoicing).Get("/invoice", h.handleGetInvoice)
	r.Get("/node", h.handleGetNode)
	r.Handle("/protected/*", h.gate.Handler(h.content))
}
