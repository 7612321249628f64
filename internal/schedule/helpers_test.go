/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/solver"
)

const (
	minute = int64(60 * 1000)
	hour   = 60 * minute
)

const testProgram = "GS-2026A-Q-1"

var night0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// newObs returns an observation tolerating any conditions with the
// given setup time and step durations.
func newObs(id string, setup int64, steps ...int64) *models.Obs {
	return &models.Obs{
		ID:         id,
		Priority:   models.PriorityMedium,
		Conditions: models.AnyConds,
		Steps:      models.Steps{SetupTime: setup, Durations: steps},
	}
}

func testModel(t *testing.T, obs ...*models.Obs) *models.MiniModel {
	t.Helper()
	m := models.NewMiniModel(models.SiteSouth, "2025B")
	m.AddProgram(&models.Prog{
		ID: testProgram, Semester: "2026A", Band: 1,
		Active: true, Science: true, RemainingTime: 100 * hour,
	})
	for _, o := range obs {
		if err := m.AddObs(testProgram, o); err != nil {
			t.Fatalf("AddObs(%s): %v", o.ID, err)
		}
	}
	return m
}

// testSchedule builds a schedule with one ten hour block and one variant.
func testSchedule(t *testing.T, suite solver.Suite, obs ...*models.Obs) (*Schedule, *Variant) {
	t.Helper()
	s := New(testModel(t, obs...), Options{Suite: suite, Logger: zerolog.Nop()})
	s.AddBlock(night0, night0+10*hour)
	v, err := s.AddVariant("main", models.AnyConds, nil, true)
	if err != nil {
		t.Fatalf("AddVariant: %v", err)
	}
	return s, v
}

func mustAdd(t *testing.T, v *Variant, obs *models.Obs, start int64, first, last int, setup SetupType) *Alloc {
	t.Helper()
	a, err := v.AddAlloc(obs, start, first, last, setup, "")
	if err != nil {
		t.Fatalf("AddAlloc(%s %d-%d at %d): %v", obs.ID, first, last, start, err)
	}
	return a
}
