/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"path/filepath"
	"testing"

	"github.com/friendsincode/queueplanner/internal/config"
	"github.com/friendsincode/queueplanner/internal/models"
)

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{
		Environment: "test",
		DBBackend:   config.DatabaseSQLite,
		DBDSN:       filepath.Join(t.TempDir(), "qplan.db"),
	}
	database, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer Close(database)

	if err := Migrate(database); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, table := range []string{"programs", "observations", "plan_documents"} {
		if !database.Migrator().HasTable(table) {
			t.Fatalf("table %s missing", table)
		}
	}

	database.Create(&models.ObservationRecord{ID: "empty", ProgramID: "p"})
	if err := Migrate(database); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var n int64
	database.Model(&models.ObservationRecord{}).Count(&n)
	if n != 0 {
		t.Fatalf("observations = %d, want bodiless rows dropped", n)
	}
	UpdateConnectionMetrics(database)
}

func TestConnectRejectsUnknownBackend(t *testing.T) {
	if _, err := Connect(&config.Config{DBBackend: "oracle"}); err == nil {
		t.Fatal("expected error")
	}
}
