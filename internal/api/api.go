/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/logbuffer"
	"github.com/friendsincode/queueplanner/internal/schedule"
	"github.com/friendsincode/queueplanner/internal/storage"
)

type ctxKey int

const variantKey ctxKey = iota

// API exposes read-only HTTP handlers over the served plan.
type API struct {
	mu    sync.RWMutex
	plan  *schedule.Schedule
	name  string
	store storage.ObjectStore
	logs  *logbuffer.Buffer

	logger zerolog.Logger
}

// New creates the API router wrapper. store may be nil, in which case
// the stored plan listing is unavailable.
func New(store storage.ObjectStore, logger zerolog.Logger) *API {
	return &API{
		store:  store,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// SetPlan replaces the served plan.
func (a *API) SetPlan(name string, s *schedule.Schedule) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.name = name
	a.plan = s
}

// SetLogBuffer enables the recent log endpoint.
func (a *API) SetLogBuffer(buf *logbuffer.Buffer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = buf
}

// Plan returns the served plan and its document name.
func (a *API) Plan() (string, *schedule.Schedule) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name, a.plan
}

// Routes registers API routes on the router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/plans", a.handlePlansList)
		r.Get("/logs", a.handleLogs)

		r.Route("/plan", func(r chi.Router) {
			r.Use(a.requirePlan)
			r.Get("/", a.handlePlanSummary)
			r.Get("/blocks", a.handleBlocks)
			r.Get("/variants", a.handleVariantsList)
			r.Route("/variants/{variantID}", func(r chi.Router) {
				r.Use(a.variantCtx)
				r.Get("/", a.handleVariantGet)
				r.Get("/flags", a.handleVariantFlags)
				r.Get("/allocs", a.handleVariantAllocs)
				r.Get("/markers", a.handleVariantMarkers)
				r.Get("/export.ics", a.handleExportICal)
				r.Get("/export.html", a.handleExportHTML)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if _, plan := a.Plan(); plan != nil {
		status["plan"] = plan.Name()
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handlePlansList(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable")
		return
	}
	names, err := a.store.List(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("list plans failed")
		writeError(w, http.StatusInternalServerError, "storage_error")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": names})
}

func (a *API) requirePlan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, plan := a.Plan(); plan == nil {
			writeError(w, http.StatusNotFound, "no_plan_loaded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) variantCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, plan := a.Plan()
		v := plan.Variant(schedule.VariantID(chi.URLParam(r, "variantID")))
		if v == nil {
			writeError(w, http.StatusNotFound, "variant_not_found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), variantKey, v)))
	})
}

func variantFrom(r *http.Request) *schedule.Variant {
	v, _ := r.Context().Value(variantKey).(*schedule.Variant)
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
