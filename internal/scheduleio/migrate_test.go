/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduleio

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/schedule"
)

func TestMigrationsAscend(t *testing.T) {
	for i := 1; i < len(Migrations); i++ {
		if Migrations[i].From <= Migrations[i-1].From {
			t.Fatalf("migration %q does not follow %q", Migrations[i].Name, Migrations[i-1].Name)
		}
	}
	if last := Migrations[len(Migrations)-1].From; last >= CurrentVersion {
		t.Fatalf("last migration starts at %d", last)
	}
}

func facilitySet(fs []models.Facility) models.FacilitySet {
	return models.NewFacilitySet(fs...)
}

func TestPre104AddsSiteFacilities(t *testing.T) {
	tests := []struct {
		site    string
		want    [][]models.Facility
		notWant [][]models.Facility
	}{
		{
			site:    "GS",
			want:    [][]models.Facility{models.GmosSouthFilters, models.GnirsSlitWidths, models.TrecsMasks, models.F2Filters, models.NiciChannel2Wheel},
			notWant: [][]models.Facility{models.GmosNorthFilters, models.NiriCameras},
		},
		{
			site:    "GN",
			want:    [][]models.Facility{models.GmosNorthFilters, models.NifsMasks, models.NiriCameras, models.PreImaging},
			notWant: [][]models.Facility{models.GmosSouthFilters, models.TrecsMasks},
		},
	}
	for _, tt := range tests {
		t.Run(tt.site, func(t *testing.T) {
			doc := "schedule:\n  site: " + tt.site + "\n  facilities: [Visitor]\n  blocks: []\n  variants: []\n"
			res, err := NewCodec(zerolog.Nop(), nil).Read(context.Background(), strings.NewReader(doc))
			if err != nil {
				t.Fatal(err)
			}
			if res.Migrations != len(Migrations) {
				t.Fatalf("migrations = %d", res.Migrations)
			}
			got := facilitySet(res.State.Facilities)
			if !got.Has("Visitor") {
				t.Fatal("existing facility dropped")
			}
			for _, g := range tt.want {
				for _, f := range g {
					if !got.Has(f) {
						t.Errorf("missing %s", f)
					}
				}
			}
			for _, g := range tt.notWant {
				for _, f := range g {
					if got.Has(f) {
						t.Errorf("unexpected %s", f)
					}
				}
			}
		})
	}
}

func TestLaterVersionsSkipEarlierSteps(t *testing.T) {
	doc := "version: 1030\nschedule:\n  site: GS\n  facilities: []\n  blocks: []\n  variants: []\n"
	res, err := NewCodec(zerolog.Nop(), nil).Read(context.Background(), strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if res.Migrations != 2 {
		t.Fatalf("migrations = %d", res.Migrations)
	}
	got := facilitySet(res.State.Facilities)
	if got.Has(models.TrecsMasks[0]) {
		t.Fatal("pre-104 facilities added to a 1030 document")
	}
	if !got.Has(models.F2Filters[0]) {
		t.Fatal("1031 facilities missing")
	}
}

const setupDoc = `version: 104
schedule:
  site: GS
  facilities: []
  blocks: []
  variants:
    - id: v1
      name: main
      conditions: {sb: 100, cc: 100, iq: 100, wv: 100}
      lgs: false
      allocs:
        - id: a1
          obs: P-1-1
          start: 1000
          end: 2000
          firstStep: 0
          lastStep: 0
          setupRequired: false
        - id: a2
          obs: P-1-1
          start: 3000
          end: 4000
          firstStep: 1
          lastStep: 1
          setupRequired: true
        - id: a3
          obs: P-1-2
          start: 5000
          end: 6000
          firstStep: 0
          lastStep: 0
`

func TestSetupRequiredBecomesSetupType(t *testing.T) {
	res, err := NewCodec(zerolog.Nop(), nil).Read(context.Background(), strings.NewReader(setupDoc))
	if err != nil {
		t.Fatal(err)
	}
	allocs := res.State.Variants[0].Allocs
	want := map[schedule.AllocID]schedule.SetupType{
		"a1": schedule.SetupNone,
		"a2": schedule.SetupFull,
		"a3": schedule.SetupFull,
	}
	if len(allocs) != len(want) {
		t.Fatalf("allocs = %+v", allocs)
	}
	for _, a := range allocs {
		if a.Setup != want[a.ID] {
			t.Errorf("%s setup = %s, want %s", a.ID, a.Setup, want[a.ID])
		}
	}
}

func TestMigrateSetupRequiredIsRecursive(t *testing.T) {
	payload := map[string]any{
		"nested": []any{
			map[string]any{"inner": map[string]any{"setupRequired": "false"}},
		},
	}
	if err := migrateSetupRequired(payload, models.SiteNorth, zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	inner := payload["nested"].([]any)[0].(map[string]any)["inner"].(map[string]any)
	if _, ok := inner["setupRequired"]; ok || inner["setupType"] != "NONE" {
		t.Fatalf("inner = %v", inner)
	}
}

func TestMigrateRejectsMalformedBlocks(t *testing.T) {
	payload := map[string]any{"blocks": []any{map[string]any{"start": "soon", "end": 5}}}
	if err := migrateNauticalBlocks(payload, models.SiteSouth, zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
}
