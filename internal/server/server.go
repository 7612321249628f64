/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/api"
	"github.com/friendsincode/queueplanner/internal/config"
	"github.com/friendsincode/queueplanner/internal/db"
	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/logbuffer"
	"github.com/friendsincode/queueplanner/internal/planner"
	"github.com/friendsincode/queueplanner/internal/rules"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

const connectionMetricsInterval = 30 * time.Second

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	planner *planner.Planner
	api     *api.API
	logs    *logbuffer.Buffer

	mu          sync.Mutex
	checker     *rules.Checker
	watchCancel context.CancelFunc

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// Option customises a Server.
type Option func(*Server)

// WithLogBuffer serves recent logs from buf on /api/v1/logs.
func WithLogBuffer(buf *logbuffer.Buffer) Option {
	return func(s *Server) { s.logs = buf }
}

// New constructs the server and wires dependencies. When a plan name is
// configured the plan is loaded and served straight away.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware(telemetry.DefaultServiceName + "-api"))
	if cfg.MetricsEnabled {
		router.Use(telemetry.MetricsMiddleware)
	}
	router.Use(middleware.Timeout(60 * time.Second))

	p, err := planner.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open planner: %w", err)
	}

	srv := &Server{
		cfg:     cfg,
		logger:  logger,
		router:  router,
		planner: p,
		api:     api.New(p.Store(), logger),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.logs != nil {
		srv.api.SetLogBuffer(srv.logs)
	}

	if cfg.PlanName != "" {
		if err := srv.loadPlan(ctx, cfg.PlanName); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *Server) loadPlan(ctx context.Context, name string) error {
	model, err := s.planner.LoadModel(ctx)
	if err != nil {
		return err
	}
	plan, issues, err := s.planner.LoadPlan(ctx, name, model)
	if err != nil {
		return fmt.Errorf("load plan %s: %w", name, err)
	}
	for _, issue := range issues {
		s.logger.Warn().Str("plan", name).Msg(issue.String())
	}

	if start, err := plan.Start(); err == nil {
		if err := s.planner.LoadShutterNight(ctx, time.UnixMilli(start)); err != nil {
			s.logger.Warn().Err(err).Msg("laser clearance windows unavailable")
		}
	}

	checker := rules.NewChecker(plan, s.logger)
	checker.CheckAll()
	s.api.SetPlan(name, plan)
	s.watch(checker)
	s.logger.Info().Str("plan", name).Str("name", plan.Name()).Int("variants", len(plan.Variants())).Msg("serving plan")
	return nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background workers and releases the planner.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	return s.planner.Close()
}

func (s *Server) startBackgroundWorkers() {
	s.mu.Lock()
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	ctx := s.bgCtx
	checker := s.checker
	s.mu.Unlock()
	if checker != nil {
		s.watch(checker)
	}

	if s.cfg.PlanName != "" {
		stored := s.planner.Bus().Subscribe(events.EventPlanStored)
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			defer s.planner.Bus().Unsubscribe(events.EventPlanStored, stored)
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-stored:
					if doc, _ := ev["document"].(string); doc != s.cfg.PlanName {
						continue
					}
					origin, _ := ev[events.OriginKey].(string)
					s.logger.Info().Str("plan", s.cfg.PlanName).Str("origin_node", origin).Msg("stored plan changed, reloading")
					if err := s.loadPlan(ctx, s.cfg.PlanName); err != nil {
						s.logger.Error().Err(err).Str("plan", s.cfg.PlanName).Msg("plan reload failed, keeping current plan")
					}
				}
			}
		}()
	}

	if database := s.planner.DB(); database != nil && s.cfg.MetricsEnabled {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(connectionMetricsInterval)
			defer ticker.Stop()
			for {
				db.UpdateConnectionMetrics(database)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// watch makes checker the active limits checker. Before the background
// context exists it is only recorded.
func (s *Server) watch(checker *rules.Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	s.checker = checker
	if s.bgCtx == nil {
		return
	}
	ctx, cancel := context.WithCancel(s.bgCtx)
	s.watchCancel = cancel
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		checker.Watch(ctx, s.planner.Bus())
	}()
}

func (s *Server) stopBackgroundWorkers() {
	s.mu.Lock()
	cancel := s.bgCancel
	s.bgCancel = nil
	s.bgCtx = nil
	s.watchCancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.bgWG.Wait()
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusOK
		body := `{"status":"ok"}`
		if err := s.planner.Store().CheckAccess(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("storage health check failed")
			status = http.StatusServiceUnavailable
			body = `{"status":"degraded","storage":false}`
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})

	if s.cfg.MetricsEnabled {
		s.router.Handle("/metrics", telemetry.Handler())
	}

	s.api.Routes(s.router)
}
