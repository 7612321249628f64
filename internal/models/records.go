/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ProgramRecord persists a program of the observing catalogue.
type ProgramRecord struct {
	ID            string `gorm:"type:varchar(64);primaryKey"`
	Site          string `gorm:"type:varchar(8);index"`
	Semester      string `gorm:"type:varchar(16);index"`
	Band          int
	Active        bool
	EngOrCal      bool
	Science       bool
	RemainingTime int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the default table name.
func (ProgramRecord) TableName() string { return "programs" }

// ObservationRecord persists one observation. The body (steps, options,
// timing windows, conditions) is stored as a YAML document.
type ObservationRecord struct {
	ID        string `gorm:"type:varchar(96);primaryKey"`
	ProgramID string `gorm:"type:varchar(64);index"`
	Position  int
	GroupID   string `gorm:"type:varchar(96)"`
	GroupName string
	GroupType string `gorm:"type:varchar(16)"`
	Body      string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name.
func (ObservationRecord) TableName() string { return "observations" }

// PlanDocument stores a serialized plan in the database object store.
type PlanDocument struct {
	Name      string `gorm:"type:varchar(255);primaryKey"`
	Data      []byte
	Size      int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name.
func (PlanDocument) TableName() string { return "plan_documents" }
