/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/config"
	"github.com/friendsincode/queueplanner/internal/logbuffer"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/planner"
	"github.com/friendsincode/queueplanner/internal/schedule"
)

const modelYAML = `
site: GN
programs:
  - id: GN-2026A-Q-1
    semester: 2026A
    band: 2
    active: true
    science: true
    remaining_time: 3600000
    observations:
      - id: GN-2026A-Q-1-1
        priority: MEDIUM
        conditions: {sb: 100, cc: 100, iq: 100, wv: 100}
        ra: 150.0
        dec: 20.0
        steps:
          setup: 600000
          durations: [900000]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(modelPath, []byte(modelYAML), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	root := filepath.Join(dir, "plans")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		Environment:    "test",
		HTTPBind:       "127.0.0.1",
		HTTPPort:       0,
		DBBackend:      config.DatabaseSQLite,
		DBDSN:          filepath.Join(dir, "planner.db"),
		ModelPath:      modelPath,
		StorageBackend: config.StorageFS,
		StorageRoot:    root,
		MetricsEnabled: true,
	}
}

func seedPlan(t *testing.T, cfg *config.Config, name string) {
	t.Helper()
	ctx := context.Background()
	p, err := planner.Open(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("planner.Open: %v", err)
	}
	defer p.Close()
	model, err := p.LoadModel(ctx)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	night := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC).UnixMilli()
	s := schedule.New(model, p.Options(model.Site()))
	s.AddBlock(night, night+8*60*60*1000)
	if _, err := s.AddVariant("clear", models.AnyConds, nil, false); err != nil {
		t.Fatalf("AddVariant: %v", err)
	}
	if err := p.SavePlan(ctx, name, s); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
}

func TestServerServesConfiguredPlan(t *testing.T) {
	cfg := testConfig(t)
	seedPlan(t, cfg, "tonight")
	cfg.PlanName = "tonight"

	srv, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/healthz", http.StatusOK, `"status":"ok"`},
		{"/api/v1/health", http.StatusOK, `"plan"`},
		{"/api/v1/plan/", http.StatusOK, `"document":"tonight"`},
		{"/api/v1/plans", http.StatusOK, `"tonight"`},
		{"/metrics", http.StatusOK, "queueplanner_"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.code {
				t.Fatalf("status = %d, want %d", rr.Code, tt.code)
			}
			if !strings.Contains(rr.Body.String(), tt.body) {
				t.Fatalf("body missing %q: %s", tt.body, rr.Body.String())
			}
		})
	}
}

func TestServerFailsOnMissingPlan(t *testing.T) {
	cfg := testConfig(t)
	cfg.PlanName = "absent"
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing plan")
	}
}

func TestHealthzReportsStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageRoot = filepath.Join(t.TempDir(), "missing")

	srv, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestServerReloadsStoredPlan(t *testing.T) {
	cfg := testConfig(t)
	seedPlan(t, cfg, "tonight")
	cfg.PlanName = "tonight"

	buf := logbuffer.New(100)
	srv, err := New(context.Background(), cfg, zerolog.Nop(), WithLogBuffer(buf))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	ctx := context.Background()
	model, err := srv.planner.LoadModel(ctx)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	night := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC).UnixMilli()
	s := schedule.New(model, srv.planner.Options(model.Site()))
	s.AddBlock(night, night+8*60*60*1000)
	for _, name := range []string{"clear", "cloudy"} {
		if _, err := s.AddVariant(name, models.AnyConds, nil, false); err != nil {
			t.Fatalf("AddVariant: %v", err)
		}
	}
	if err := srv.planner.SavePlan(ctx, "tonight", s); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/plan/", nil))
		if strings.Contains(rr.Body.String(), `"variants":2`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("plan not reloaded: %s", rr.Body.String())
		}
		time.Sleep(20 * time.Millisecond)
	}

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("logs status = %d", rr.Code)
	}
}
