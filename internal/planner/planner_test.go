/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/config"
	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/storage"
)

const modelYAML = `
site: GS
programs:
  - id: GS-2026A-Q-1
    semester: 2026A
    band: 1
    active: true
    science: true
    remaining_time: 3600000
    observations:
      - id: GS-2026A-Q-1-1
        priority: HIGH
        conditions: {sb: 100, cc: 100, iq: 100, wv: 100}
        ra: 83.8
        dec: -5.4
        steps:
          setup: 900000
          durations: [600000, 600000]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(modelPath, []byte(modelYAML), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return &config.Config{
		Environment:    "test",
		DBBackend:      config.DatabaseSQLite,
		DBDSN:          filepath.Join(dir, "planner.db"),
		ModelPath:      modelPath,
		StorageBackend: config.StorageFS,
		StorageRoot:    filepath.Join(dir, "plans"),
	}
}

func TestSaveAndLoadPlan(t *testing.T) {
	cfg := testConfig(t)
	p, err := Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if p.Catalog() != nil {
		t.Fatal("no database should be opened for a file model with fs storage")
	}

	ctx := context.Background()
	model, err := p.LoadModel(ctx)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}

	night := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC).UnixMilli()
	s := newPlan(t, p, model, night)
	stored := p.Bus().Subscribe(events.EventPlanStored)
	if err := p.SavePlan(ctx, "tonight", s); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	select {
	case ev := <-stored:
		if ev["document"] != "tonight" {
			t.Fatalf("stored event = %v", ev)
		}
	default:
		t.Fatal("no plan.stored event")
	}
	if s.IsDirty() {
		t.Fatal("saved plan is still dirty")
	}

	names, err := p.Store().List(ctx)
	if err != nil || len(names) != 1 || names[0] != "tonight" {
		t.Fatalf("List = %v, %v", names, err)
	}

	loaded, issues, err := p.LoadPlan(ctx, "tonight", model)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("issues = %v", issues)
	}
	if len(loaded.Variants()) != 1 || len(loaded.Variants()[0].Allocs()) != 1 {
		t.Fatalf("variants = %v", loaded.Variants())
	}
	if loaded.Comment() != "planner test" {
		t.Fatalf("comment = %q", loaded.Comment())
	}
}

func TestLoadPlanMissing(t *testing.T) {
	p, err := Open(context.Background(), testConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	model, err := p.LoadModel(context.Background())
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if _, _, err := p.LoadPlan(context.Background(), "absent", model); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadModelSiteMismatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.Site = models.SiteNorth
	p, err := Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.LoadModel(context.Background()); err == nil {
		t.Fatal("expected site mismatch")
	}
}

func TestLoadModelFromCatalogue(t *testing.T) {
	cfg := testConfig(t)
	f, err := os.Open(cfg.ModelPath)
	if err != nil {
		t.Fatal(err)
	}
	fileModel, err := models.LoadModelYAML(f)
	f.Close()
	if err != nil {
		t.Fatalf("LoadModelYAML: %v", err)
	}

	cfg.ModelPath = ""
	p, err := Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if _, err := p.LoadModel(context.Background()); !errors.Is(err, ErrNoSite) {
		t.Fatalf("err = %v, want ErrNoSite", err)
	}

	cfg.Site = models.SiteSouth
	if err := p.Catalog().Save(context.Background(), fileModel); err != nil {
		t.Fatalf("catalogue save: %v", err)
	}
	m, err := p.LoadModel(context.Background())
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if m.Obs("GS-2026A-Q-1-1") == nil {
		t.Fatal("observation missing from catalogue model")
	}
}

func TestUnreachableRelayFallsBackToLocalEvents(t *testing.T) {
	cfg := testConfig(t)
	cfg.EventRelay = config.RelayRedis
	cfg.RedisAddr = "127.0.0.1:1"
	cfg.NodeID = "test"

	p, err := Open(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	sub := p.Bus().Subscribe(events.EventPlanStored)
	p.Bus().Publish(events.EventPlanStored, events.Payload{"document": "x"})
	if ev := <-sub; ev["document"] != "x" {
		t.Fatalf("event = %v", ev)
	}
}
