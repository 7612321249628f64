/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/queueplanner/internal/models"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// StorageBackend selects where plan documents are kept.
type StorageBackend string

const (
	StorageFS StorageBackend = "fs"
	StorageS3 StorageBackend = "s3"
	StorageDB StorageBackend = "db"
)

// Event relay transports.
const (
	RelayRedis = "redis"
	RelayNATS  = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string

	// Planning inputs
	Site      models.Site // empty means taken from the model
	ModelPath string      // mini-model YAML; empty means read from the database catalogue
	PlanName  string      // plan served by the HTTP API

	// Plan document storage
	StorageBackend StorageBackend
	StorageRoot    string

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3Prefix          string
	S3UsePathStyle    bool // Required for MinIO

	// Solver union cache
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cross-node plan event relay
	EventRelay string // "", redis or nats
	NATSURL    string
	NodeID     string

	// Laser target service
	LTTSURL     string
	LTTSTimeout time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
	MetricsEnabled    bool

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"QPLAN_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"QPLAN_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"QPLAN_HTTP_PORT"}, 8080),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"QPLAN_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:       getEnvAny([]string{"QPLAN_DB_DSN"}, "queueplanner.db"),

		ModelPath: getEnvAny([]string{"QPLAN_MODEL_PATH"}, ""),
		PlanName:  getEnvAny([]string{"QPLAN_PLAN"}, ""),

		StorageBackend: StorageBackend(getEnvAny([]string{"QPLAN_STORAGE_BACKEND"}, string(StorageFS))),
		StorageRoot:    getEnvAny([]string{"QPLAN_STORAGE_ROOT"}, "./plans"),

		// S3 Object Storage configuration
		S3AccessKeyID:     getEnvAny([]string{"QPLAN_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"QPLAN_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"QPLAN_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"QPLAN_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"QPLAN_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3Prefix:          getEnvAny([]string{"QPLAN_S3_PREFIX"}, "plans/"),
		S3UsePathStyle:    getEnvBoolAny([]string{"QPLAN_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		CacheEnabled:  getEnvBoolAny([]string{"QPLAN_CACHE_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"QPLAN_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"QPLAN_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"QPLAN_REDIS_DB"}, 0),

		EventRelay: strings.ToLower(getEnvAny([]string{"QPLAN_EVENT_RELAY"}, "")),
		NATSURL:    getEnvAny([]string{"QPLAN_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		NodeID:     getEnvAny([]string{"QPLAN_NODE_ID"}, defaultNodeID()),

		LTTSURL:     getEnvAny([]string{"QPLAN_LTTS_URL"}, ""),
		LTTSTimeout: time.Duration(getEnvIntAny([]string{"QPLAN_LTTS_TIMEOUT_SECONDS"}, 10)) * time.Second,

		// Tracing configuration
		TracingEnabled:    getEnvBoolAny([]string{"QPLAN_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"QPLAN_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"QPLAN_TRACING_SAMPLE_RATE"}, 1.0),
		MetricsEnabled:    getEnvBoolAny([]string{"QPLAN_METRICS_ENABLED"}, true),
	}

	if raw := getEnvAny([]string{"QPLAN_SITE"}, ""); raw != "" {
		site, err := models.ParseSite(raw)
		if err != nil {
			return nil, fmt.Errorf("QPLAN_SITE: %w", err)
		}
		cfg.Site = site
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("QPLAN_DB_DSN must be provided")
	}

	switch cfg.StorageBackend {
	case StorageFS:
		if cfg.StorageRoot == "" {
			return nil, fmt.Errorf("QPLAN_STORAGE_ROOT must be provided for fs storage")
		}
	case StorageS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("QPLAN_S3_BUCKET must be provided for s3 storage")
		}
	case StorageDB:
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}

	switch cfg.EventRelay {
	case "", RelayRedis, RelayNATS:
	default:
		return nil, fmt.Errorf("unsupported event relay %q", cfg.EventRelay)
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("QPLAN_TRACING_SAMPLE_RATE must be between 0 and 1, got %g", cfg.TracingSampleRate)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.StorageBackend == StorageFS && !filepath.IsAbs(cfg.StorageRoot) {
			return nil, fmt.Errorf("QPLAN_STORAGE_ROOT must be an absolute path in production")
		}
		if cfg.DBBackend == DatabaseSQLite && cfg.StorageBackend == StorageDB {
			return nil, fmt.Errorf("db storage requires postgres or mysql in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func defaultNodeID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "queueplanner"
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"QPT_SITE":      "use QPLAN_SITE",
		"QPT_MODEL":     "use QPLAN_MODEL_PATH",
		"LTTS_URL":      "use QPLAN_LTTS_URL",
		"REDIS_ADDR":    "use QPLAN_REDIS_ADDR",
		"OTLP_ENDPOINT": "use QPLAN_OTLP_ENDPOINT",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
