/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

// DBStore keeps plan documents in the plan_documents table.
type DBStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewDBStore creates a database-backed store. The table must already
// exist; see db.Migrate.
func NewDBStore(db *gorm.DB, logger zerolog.Logger) *DBStore {
	return &DBStore{db: db, logger: logger.With().Str("component", "storage_db").Logger()}
}

// Put inserts or replaces a document.
func (s *DBStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	doc := models.PlanDocument{Name: name, Data: data, Size: len(data)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "size", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		telemetry.StorageOpsTotal.WithLabelValues(string(BackendDB), "put", "error").Inc()
		return fmt.Errorf("store plan %s: %w", name, err)
	}
	telemetry.StorageOpsTotal.WithLabelValues(string(BackendDB), "put", "ok").Inc()
	s.logger.Debug().Str("name", name).Int("bytes", len(data)).Msg("db storage: plan stored")
	return nil
}

// Get reads a document.
func (s *DBStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	var doc models.PlanDocument
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		telemetry.StorageOpsTotal.WithLabelValues(string(BackendDB), "get", "error").Inc()
		return nil, fmt.Errorf("load plan %s: %w", name, err)
	}
	telemetry.StorageOpsTotal.WithLabelValues(string(BackendDB), "get", "ok").Inc()
	return doc.Data, nil
}

// Delete removes a document.
func (s *DBStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.PlanDocument{}).Error; err != nil {
		return fmt.Errorf("delete plan %s: %w", name, err)
	}
	return nil
}

// List returns the stored document names in lexical order.
func (s *DBStore) List(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&models.PlanDocument{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return names, nil
}

// CheckAccess pings the database.
func (s *DBStore) CheckAccess(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
