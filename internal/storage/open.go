/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/queueplanner/internal/config"
)

// Open returns the store selected by cfg. db is only used by the db
// backend and may be nil otherwise.
func Open(ctx context.Context, cfg *config.Config, db *gorm.DB, logger zerolog.Logger) (ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageFS:
		return NewFilesystemStore(cfg.StorageRoot, logger), nil
	case config.StorageS3:
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			logger.Warn().Msg("S3 credentials not configured, using the default credential chain")
		}
		return NewS3Store(ctx, S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
	case config.StorageDB:
		if db == nil {
			return nil, fmt.Errorf("db storage requires a database connection")
		}
		return NewDBStore(db, logger), nil
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
}
