/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"testing"

	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/schedule"
)

func newPlan(t *testing.T, p *Planner, model *models.MiniModel, night int64) *schedule.Schedule {
	t.Helper()
	s := schedule.New(model, p.Options(model.Site()))
	s.AddBlock(night, night+8*60*60*1000)
	s.SetComment("planner test")
	v, err := s.AddVariant("clear", models.AnyConds, nil, false)
	if err != nil {
		t.Fatalf("AddVariant: %v", err)
	}
	if _, err := v.AddAlloc(model.Obs("GS-2026A-Q-1-1"), night+60*60*1000, 0, 1, schedule.SetupFull, ""); err != nil {
		t.Fatalf("AddAlloc: %v", err)
	}
	return s
}
