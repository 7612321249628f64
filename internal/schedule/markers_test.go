/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import "testing"

func TestMarkerManager(t *testing.T) {
	mm := NewMarkerManager()
	v := VariantTarget("v1")
	a := Target{Variant: "v1", Alloc: "a1"}
	mm.Add(Marker{Severity: SeverityWarning, Source: "limits", Text: "low", Target: a})
	mm.Add(Marker{Severity: SeverityError, Source: "limits", Text: "below horizon", Target: a, QCOnly: true})
	mm.Add(Marker{Severity: SeverityInfo, Source: "notes", Text: "fine", Target: v})

	if got := mm.Markers(v, false); len(got) != 1 {
		t.Fatalf("direct markers = %v", got)
	}
	got := mm.Markers(v, true)
	if len(got) != 3 || got[0].Severity != SeverityError {
		t.Fatalf("transitive markers = %v", got)
	}

	if sev, ok := mm.WorstSeverity(v, true, false); !ok || sev != SeverityWarning {
		t.Fatalf("worst without QC = %s %v", sev, ok)
	}
	if sev, ok := mm.WorstSeverity(v, true, true); !ok || sev != SeverityError {
		t.Fatalf("worst with QC = %s %v", sev, ok)
	}

	mm.Clear("limits", v)
	if got := mm.Markers(v, true); len(got) != 1 || got[0].Source != "notes" {
		t.Fatalf("after clear = %v", got)
	}
	mm.Forget(v)
	if _, ok := mm.WorstSeverity(v, true, true); ok {
		t.Fatal("markers left after Forget")
	}
}

func TestFlagSet(t *testing.T) {
	s := Flags(FlagBlocked, FlagInactive)
	if !s.Has(FlagBlocked) || s.Has(FlagScheduled) || s.Len() != 2 {
		t.Fatalf("set = %s", s)
	}
	if s.String() != "[INACTIVE BLOCKED]" {
		t.Fatalf("String = %q", s.String())
	}
	if !s.Any(AutomaticZero.With(FlagBlocked)) || s.Any(AutomaticZero) {
		t.Fatal("Any mismatch")
	}
	for _, f := range s.Flags() {
		got, err := ParseFlag(f.String())
		if err != nil || got != f {
			t.Fatalf("ParseFlag(%q) = %v, %v", f.String(), got, err)
		}
	}
}

func TestBlockLabel(t *testing.T) {
	b := NewBlock(night0+90*minute, night0+10*hour)
	if b.Label() != "Sun 2026-03-01 01:30 UTC" {
		t.Fatalf("Label = %q", b.Label())
	}
}
