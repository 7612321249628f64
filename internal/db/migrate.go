/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/queueplanner/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Observing catalogue
		&models.ProgramRecord{},
		&models.ObservationRecord{},

		// Plan document store
		&models.PlanDocument{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := dropEmptyObservationBodies(database); err != nil {
		return err
	}

	return nil
}

// dropEmptyObservationBodies removes catalogue rows written without a
// body; they cannot be decoded into an observation.
func dropEmptyObservationBodies(database *gorm.DB) error {
	if err := database.Where("body IS NULL OR body = ''").Delete(&models.ObservationRecord{}).Error; err != nil {
		return fmt.Errorf("drop empty observation bodies: %w", err)
	}
	return nil
}
