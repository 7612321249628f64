/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/schedule"
	"github.com/friendsincode/queueplanner/internal/storage"
)

const (
	minute = int64(60 * 1000)
	hour   = 60 * minute
)

var night0 = time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC).UnixMilli()

func testPlan(t *testing.T) (*schedule.Schedule, *schedule.Variant) {
	t.Helper()
	m := models.NewMiniModel(models.SiteSouth, "2026A")
	m.AddProgram(&models.Prog{ID: "P-1", Semester: "2026A", Band: 1, Active: true, Science: true, RemainingTime: 100 * hour})
	for _, id := range []string{"P-1-1", "P-1-2"} {
		obs := &models.Obs{
			ID:         id,
			Priority:   models.PriorityMedium,
			Conditions: models.AnyConds,
			Steps:      models.Steps{SetupTime: 10 * minute, Durations: []int64{20 * minute, 20 * minute}},
		}
		if err := m.AddObs("P-1", obs); err != nil {
			t.Fatalf("AddObs: %v", err)
		}
	}

	s := schedule.New(m, schedule.Options{Logger: zerolog.Nop()})
	s.AddBlock(night0, night0+8*hour)
	v, err := s.AddVariant("clear", models.AnyConds, nil, false)
	if err != nil {
		t.Fatalf("AddVariant: %v", err)
	}
	if _, err := v.AddAlloc(m.Obs("P-1-1"), night0+hour, 0, 1, schedule.SetupFull, "first"); err != nil {
		t.Fatalf("AddAlloc: %v", err)
	}
	return s, v
}

func newRouter(a *API) chi.Router {
	r := chi.NewRouter()
	a.Routes(r)
	return r
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestPlanRoutesRequireLoadedPlan(t *testing.T) {
	r := newRouter(New(nil, zerolog.Nop()))

	if rr := get(t, r, "/api/v1/health"); rr.Code != http.StatusOK {
		t.Fatalf("health = %d", rr.Code)
	}
	if rr := get(t, r, "/api/v1/plan/"); rr.Code != http.StatusNotFound {
		t.Fatalf("plan = %d, want 404", rr.Code)
	}
	if rr := get(t, r, "/api/v1/plans"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("plans = %d, want 503", rr.Code)
	}
}

func TestPlanSummary(t *testing.T) {
	s, v := testPlan(t)
	a := New(nil, zerolog.Nop())
	a.SetPlan("tonight", s)

	rr := get(t, newRouter(a), "/api/v1/plan/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var got planSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Document != "tonight" || got.Site != models.SiteSouth || got.Blocks != 1 || got.Variants != 1 {
		t.Fatalf("summary = %+v", got)
	}
	if got.Start == nil || *got.Start != night0 {
		t.Fatalf("start = %v", got.Start)
	}
	if got.CurrentVariant != v.ID() {
		t.Fatalf("current = %q, want %q", got.CurrentVariant, v.ID())
	}
}

func TestVariantRoutes(t *testing.T) {
	s, v := testPlan(t)
	a := New(nil, zerolog.Nop())
	a.SetPlan("tonight", s)
	r := newRouter(a)
	base := "/api/v1/plan/variants/" + string(v.ID())

	t.Run("list", func(t *testing.T) {
		rr := get(t, r, "/api/v1/plan/variants")
		var got []variantResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 1 || got[0].Name != "clear" || got[0].Allocs != 1 {
			t.Fatalf("variants = %+v", got)
		}
	})

	t.Run("unknown variant", func(t *testing.T) {
		if rr := get(t, r, "/api/v1/plan/variants/nope/flags"); rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("flags", func(t *testing.T) {
		rr := get(t, r, base+"/flags")
		var got []flagsResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("flags = %+v", got)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Score > got[i-1].Score {
				t.Fatalf("not sorted by score: %+v", got)
			}
		}
		var scheduled bool
		for _, f := range got {
			if f.Obs == "P-1-1" {
				for _, name := range f.Flags {
					scheduled = scheduled || name == schedule.FlagScheduled.String()
				}
			}
		}
		if !scheduled {
			t.Fatalf("P-1-1 not flagged scheduled: %+v", got)
		}
	})

	t.Run("allocs", func(t *testing.T) {
		rr := get(t, r, base+"/allocs")
		var got []allocResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 1 || got[0].Obs != "P-1-1" || got[0].Start != night0+hour || got[0].Comment != "first" {
			t.Fatalf("allocs = %+v", got)
		}
		if got[0].SetupType != schedule.SetupFull.String() {
			t.Fatalf("setup = %q", got[0].SetupType)
		}
	})

	t.Run("ical export", func(t *testing.T) {
		rr := get(t, r, base+"/export.ics")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/calendar") {
			t.Fatalf("content type = %q", rr.Header().Get("Content-Type"))
		}
		if !strings.Contains(rr.Body.String(), "BEGIN:VEVENT") {
			t.Fatalf("body = %s", rr.Body.String())
		}
	})
}

func TestPlansListing(t *testing.T) {
	store := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	if err := store.Put(context.Background(), "tonight", []byte("version: 1032\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rr := get(t, newRouter(New(store, zerolog.Nop())), "/api/v1/plans")
	var got map[string][]string
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got["plans"]) != 1 || got["plans"][0] != "tonight" {
		t.Fatalf("plans = %v", got)
	}
}
