/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"

	"github.com/friendsincode/queueplanner/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite || cfg.StorageBackend != StorageFS {
		t.Fatalf("unexpected backends: %s %s", cfg.DBBackend, cfg.StorageBackend)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.LTTSTimeout != 10*time.Second {
		t.Fatalf("ltts timeout = %s", cfg.LTTSTimeout)
	}
	if cfg.EventRelay != "" || cfg.NodeID == "" {
		t.Fatalf("relay %q node %q", cfg.EventRelay, cfg.NodeID)
	}
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("QPLAN_DB_BACKEND", "postgres")
	t.Setenv("QPLAN_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("QPLAN_SITE", "GS")
	t.Setenv("QPLAN_STORAGE_BACKEND", "s3")
	t.Setenv("QPLAN_S3_BUCKET", "plans")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("QPLAN_CACHE_ENABLED", "yes")
	t.Setenv("QPLAN_LTTS_TIMEOUT_SECONDS", "3")
	t.Setenv("QPLAN_EVENT_RELAY", "NATS")
	t.Setenv("QPLAN_NODE_ID", "planner-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Site != models.SiteSouth {
		t.Fatalf("site = %q", cfg.Site)
	}
	if cfg.S3Region != "eu-west-1" || cfg.S3Bucket != "plans" {
		t.Fatalf("s3 = %q %q", cfg.S3Region, cfg.S3Bucket)
	}
	if !cfg.CacheEnabled || cfg.LTTSTimeout != 3*time.Second {
		t.Fatalf("cache %v timeout %s", cfg.CacheEnabled, cfg.LTTSTimeout)
	}
	if cfg.EventRelay != RelayNATS || cfg.NodeID != "planner-2" {
		t.Fatalf("relay %q node %q", cfg.EventRelay, cfg.NodeID)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"database backend", map[string]string{"QPLAN_DB_BACKEND": "oracle"}},
		{"storage backend", map[string]string{"QPLAN_STORAGE_BACKEND": "ftp"}},
		{"s3 without bucket", map[string]string{"QPLAN_STORAGE_BACKEND": "s3"}},
		{"site", map[string]string{"QPLAN_SITE": "Mauna Kea"}},
		{"event relay", map[string]string{"QPLAN_EVENT_RELAY": "kafka"}},
		{"sample rate", map[string]string{"QPLAN_TRACING_SAMPLE_RATE": "2"}},
		{"relative root in production", map[string]string{"QPLAN_ENV": "production", "QPLAN_STORAGE_ROOT": "plans"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("LTTS_URL", "http://ltts.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}
