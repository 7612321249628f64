/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openCatalog(t *testing.T) *CatalogStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "catalog.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ProgramRecord{}, &ObservationRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewCatalogStore(db, zerolog.Nop())
}

func TestCatalogRoundTrip(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	m := NewMiniModel(SiteNorth)
	m.AddProgram(&Prog{ID: "GN-2026A-Q-7", Semester: "2026A", Band: 2, Active: true, Science: true, RemainingTime: 3600000})
	g := &Group{ID: "g1", Name: "pair", Type: GroupScheduling}
	for _, o := range []*Obs{
		{ID: "GN-2026A-Q-7-2", Priority: PriorityHigh, Conditions: AnyConds, Group: g,
			Steps: Steps{SetupTime: 600000, Durations: []int64{1200000, 1200000}, Executed: []bool{true, false}}},
		{ID: "GN-2026A-Q-7-1", Priority: PriorityLow, Conditions: NominalConds, Group: g, LGS: true,
			TimingWindows: []TimingWindow{{Start: 1000, Duration: -1}}},
	} {
		if err := m.AddObs("GN-2026A-Q-7", o); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Save(ctx, m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, SiteNorth)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	obs := got.Observations()
	if len(obs) != 2 || obs[0].ID != "GN-2026A-Q-7-2" {
		t.Fatalf("observations = %v", obs)
	}
	if obs[0].Prog == nil || obs[0].Prog.Band != 2 || !got.HasSemester("2026A") {
		t.Fatal("program not linked")
	}
	if obs[0].Priority != PriorityHigh || !obs[0].Steps.IsExecuted(0) || obs[0].FirstUnexecutedStep() != 1 {
		t.Fatalf("first observation = %+v", obs[0])
	}
	if !obs[1].LGS || len(obs[1].TimingWindows) != 1 || obs[1].TimingWindows[0].Duration != -1 {
		t.Fatalf("second observation = %+v", obs[1])
	}
	if obs[0].Group == nil || obs[0].Group != obs[1].Group || !obs[0].InSchedulingGroup() {
		t.Fatal("group not shared")
	}
}

func TestCatalogSaveReplacesSite(t *testing.T) {
	store := openCatalog(t)
	ctx := context.Background()

	first := NewMiniModel(SiteSouth)
	first.AddProgram(&Prog{ID: "old", Semester: "2025B"})
	if err := first.AddObs("old", &Obs{ID: "old-1", Conditions: AnyConds}); err != nil {
		t.Fatal(err)
	}
	north := NewMiniModel(SiteNorth)
	north.AddProgram(&Prog{ID: "north", Semester: "2026A"})
	for _, m := range []*MiniModel{first, north} {
		if err := store.Save(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	second := NewMiniModel(SiteSouth)
	second.AddProgram(&Prog{ID: "new", Semester: "2026A"})
	if err := store.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx, SiteSouth)
	if err != nil {
		t.Fatal(err)
	}
	if got.Program("old") != nil || got.Program("new") == nil || got.Obs("old-1") != nil {
		t.Fatalf("programs = %v", got.Programs())
	}
	if n, _ := store.Load(ctx, SiteNorth); n.Program("north") == nil {
		t.Fatal("other site was replaced")
	}
}
