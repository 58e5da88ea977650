// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api serves the small admin surface this processor exposes
// alongside its background jobs: a health probe, Prometheus scraping,
// and an on-demand rematch trigger (spec §4.L). There is no UI and no
// authenticated user-facing surface here, unlike the teacher's router -
// this binary has no human end users, only operators and monitoring.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magnets-moe/processor/internal/buildinfo"
	"github.com/magnets-moe/processor/internal/metrics"
)

// Dependencies holds everything the admin router needs to serve a
// request.
type Dependencies struct {
	Metrics *metrics.Manager
	Rematch *RematchHandler
}

// NewRouter builds the admin mux: RequestID/Recoverer/RealIP in the
// same order the teacher's router applies them, then the three routes
// this surface actually needs.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", healthzHandler)

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	if deps.Rematch != nil {
		r.Put("/rematch/{mode}", deps.Rematch.ServeHTTP)
	}

	return r
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body, err := buildinfo.JSON()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
