/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"errors"
	"math"
	"testing"

	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/solver"
)

func TestSpanSkipsExecutedSteps(t *testing.T) {
	obs := newObs("o", 10*minute, 20*minute, 30*minute, 40*minute)
	obs.Steps.ReacquisitionTime = 5 * minute
	obs.Steps.Executed = []bool{true}

	tests := []struct {
		name  string
		setup SetupType
		want  int64
	}{
		{"none", SetupNone, 70 * minute},
		{"full", SetupFull, 80 * minute},
		{"reacquisition", SetupReacquisition, 75 * minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Span(obs, 0, 2, tt.setup); got != tt.want {
				t.Fatalf("Span = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewAllocRejectsBadStepRange(t *testing.T) {
	obs := newObs("o", 0, minute, minute)
	for _, r := range [][2]int{{-1, 0}, {1, 0}, {0, 2}} {
		if _, err := newAlloc("v", obs, 0, r[0], r[1], SetupNone, solver.Suite{}.Complete()); !errors.Is(err, ErrStepRange) {
			t.Fatalf("steps %v: err = %v", r, err)
		}
	}
}

type fixedShutter int64

func (f fixedShutter) Overlap(*models.Obs, interval.Interval) int64 { return int64(f) }

func TestNewAllocAddsShutterTime(t *testing.T) {
	obs := newObs("o", 0, 30*minute)
	a, err := newAlloc("v", obs, 0, 0, 0, SetupNone, solver.Suite{Shutter: fixedShutter(7 * minute)}.Complete())
	if err != nil {
		t.Fatal(err)
	}
	if a.Length() != 37*minute || a.ShutterTime() != 7*minute {
		t.Fatalf("length %d shutter %d", a.Length(), a.ShutterTime())
	}
}

func TestForDragging(t *testing.T) {
	obs := newObs("o", 10*minute, 20*minute, 20*minute, 20*minute)
	obs.Steps.Executed = []bool{true}

	a, err := ForDragging(obs, 55*minute)
	if err != nil {
		t.Fatal(err)
	}
	if a.FirstStep() != 1 || a.LastStep() != 2 || a.SetupType() != SetupFull {
		t.Fatalf("got %s setup %s", a, a.SetupType())
	}

	// A single step is always included.
	a, err = ForDragging(obs, minute)
	if err != nil {
		t.Fatal(err)
	}
	if a.FirstStep() != 1 || a.LastStep() != 1 {
		t.Fatalf("got %s", a)
	}

	obs.Steps.Executed = []bool{true, true, true}
	if _, err := ForDragging(obs, hour); !errors.Is(err, ErrStepRange) {
		t.Fatalf("err = %v", err)
	}
}

func TestAllocString(t *testing.T) {
	obs := newObs("GS-1", 0, minute, minute, minute)
	a, _ := newAlloc("v", obs, 0, 0, 2, SetupNone, solver.Suite{}.Complete())
	if a.String() != "GS-1 S1-3" {
		t.Fatalf("String = %q", a.String())
	}
	b, _ := newAlloc("v", obs, 0, 1, 1, SetupNone, solver.Suite{}.Complete())
	if b.String() != "GS-1 S2" {
		t.Fatalf("String = %q", b.String())
	}
}

func TestGroupingString(t *testing.T) {
	tests := []struct {
		g    Grouping
		want string
	}{
		{GroupingNone, "NONE"},
		{GroupingMiddle, "MIDDLE"},
		{GroupingSolo, "SOLO"},
		{Grouping(9), "Grouping(9)"},
		{Grouping(-1), "Grouping(-1)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.g.String(); got != tt.want {
				t.Fatalf("String = %q", got)
			}
		})
	}
}

func TestContinuousParallacticAngle(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"wrap upward", []float64{179, -179, -178}, []float64{179, 181, 182}},
		{"wrap downward", []float64{-179, 179, 178}, []float64{-179, -181, -182}},
		{"no wrap", []float64{10, 20, 30}, []float64{10, 20, 30}},
		{"small jump kept", []float64{100, -100}, []float64{100, -100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContinuousParallacticAngle(tt.in)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestContinuousParallacticAngleKeepsMissing(t *testing.T) {
	got := ContinuousParallacticAngle([]float64{179, math.NaN(), -179})
	if got[0] != 179 || !math.IsNaN(got[1]) || got[2] != -179 {
		t.Fatalf("got %v", got)
	}
}

// rampSky reports the sample time in minutes as every circumstance.
type rampSky struct{ start int64 }

func (r rampSky) Sample(_ *models.Obs, t int64) solver.Sample {
	s := solver.EmptySample()
	for _, c := range solver.Circumstances() {
		s[c] = float64(t-r.start) / float64(minute)
	}
	return s
}

func TestAllocCircumstancesExcludeSetup(t *testing.T) {
	obs := newObs("o", 2*minute, 3*minute)
	suite := solver.Suite{Sky: rampSky{start: night0}}.Complete()
	a, err := newAlloc("v", obs, night0, 0, 0, SetupFull, suite)
	if err != nil {
		t.Fatal(err)
	}
	if a.Size() != 10 {
		t.Fatalf("Size = %d", a.Size())
	}
	if got, ok := a.Min(solver.Airmass, true); !ok || got != 0 {
		t.Fatalf("min with setup = %v %v", got, ok)
	}
	if got, ok := a.Min(solver.Airmass, false); !ok || got != 2 {
		t.Fatalf("min without setup = %v %v", got, ok)
	}
	if got, ok := a.Max(solver.Airmass, false); !ok || got != 4.5 {
		t.Fatalf("max = %v %v", got, ok)
	}
}

func TestAllocCircumstancesMissing(t *testing.T) {
	a, _ := newAlloc("v", newObs("o", 0, minute), 0, 0, 0, SetupNone, solver.Suite{}.Complete())
	if _, ok := a.Mean(solver.Elevation, true); ok {
		t.Fatal("expected no elevation samples")
	}
}
