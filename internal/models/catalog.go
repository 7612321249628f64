/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// CatalogStore persists mini-models in the programs and observations
// tables, one site at a time.
type CatalogStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewCatalogStore creates a catalogue store. The tables must already exist.
func NewCatalogStore(db *gorm.DB, logger zerolog.Logger) *CatalogStore {
	return &CatalogStore{db: db, logger: logger.With().Str("component", "catalog").Logger()}
}

// Save replaces the stored catalogue of m's site with m.
func (c *CatalogStore) Save(ctx context.Context, m *MiniModel) error {
	site := string(m.Site())
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old []string
		if err := tx.Model(&ProgramRecord{}).Where("site = ?", site).Pluck("id", &old).Error; err != nil {
			return err
		}
		if len(old) > 0 {
			if err := tx.Where("program_id IN ?", old).Delete(&ObservationRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", old).Delete(&ProgramRecord{}).Error; err != nil {
				return err
			}
		}

		for _, p := range m.Programs() {
			rec := ProgramRecord{
				ID:            p.ID,
				Site:          site,
				Semester:      p.Semester,
				Band:          p.Band,
				Active:        p.Active,
				EngOrCal:      p.EngOrCal,
				Science:       p.Science,
				RemainingTime: p.RemainingTime,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("program %s: %w", p.ID, err)
			}
			for i, o := range p.Observations() {
				body, err := yaml.Marshal(o)
				if err != nil {
					return fmt.Errorf("observation %s: %w", o.ID, err)
				}
				orec := ObservationRecord{ID: o.ID, ProgramID: p.ID, Position: i, Body: string(body)}
				if o.Group != nil {
					orec.GroupID = o.Group.ID
					orec.GroupName = o.Group.Name
					orec.GroupType = string(o.Group.Type)
				}
				if err := tx.Create(&orec).Error; err != nil {
					return fmt.Errorf("observation %s: %w", o.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save catalogue for %s: %w", site, err)
	}
	c.logger.Info().Str("site", site).Int("programs", len(m.Programs())).Int("observations", len(m.Observations())).Msg("catalogue saved")
	return nil
}

// Load rebuilds the mini-model of site. Extra semesters are those given
// plus every program semester.
func (c *CatalogStore) Load(ctx context.Context, site Site, semesters ...string) (*MiniModel, error) {
	db := c.db.WithContext(ctx)
	var progs []ProgramRecord
	if err := db.Where("site = ?", string(site)).Order("id").Find(&progs).Error; err != nil {
		return nil, fmt.Errorf("load programs: %w", err)
	}

	m := NewMiniModel(site, semesters...)
	for _, pr := range progs {
		p := &Prog{
			ID:            pr.ID,
			Semester:      pr.Semester,
			Band:          pr.Band,
			Active:        pr.Active,
			EngOrCal:      pr.EngOrCal,
			Science:       pr.Science,
			RemainingTime: pr.RemainingTime,
		}
		m.AddProgram(p)

		var recs []ObservationRecord
		if err := db.Where("program_id = ?", pr.ID).Order("position").Find(&recs).Error; err != nil {
			return nil, fmt.Errorf("load observations of %s: %w", pr.ID, err)
		}
		groups := make(map[string]*Group)
		for _, rec := range recs {
			var o Obs
			if err := yaml.Unmarshal([]byte(rec.Body), &o); err != nil {
				return nil, fmt.Errorf("decode observation %s: %w", rec.ID, err)
			}
			if rec.GroupID != "" {
				g, ok := groups[rec.GroupID]
				if !ok {
					g = &Group{ID: rec.GroupID, Name: rec.GroupName, Type: GroupType(rec.GroupType)}
					groups[rec.GroupID] = g
				}
				o.Group = g
			}
			if err := m.AddObs(p.ID, &o); err != nil {
				return nil, err
			}
		}
	}
	c.logger.Debug().Str("site", string(site)).Int("programs", len(progs)).Msg("catalogue loaded")
	return m, nil
}
