/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"sort"
	"sync"
)

// Severity ranks markers. Lower values are worse.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNotice
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNotice:
		return "notice"
	default:
		return "info"
	}
}

// Worse reports whether s outranks o.
func (s Severity) Worse(o Severity) bool { return s < o }

// Target names the plan object a marker is attached to.
type Target struct {
	Variant VariantID
	Alloc   AllocID
}

// VariantTarget addresses a variant.
func VariantTarget(id VariantID) Target { return Target{Variant: id} }

// AllocTarget addresses an alloc of a variant.
func AllocTarget(a *Alloc) Target { return Target{Variant: a.variant, Alloc: a.id} }

// Marker is a diagnostic produced by a rule.
type Marker struct {
	Severity Severity `json:"severity"`
	Source   string   `json:"source"`
	Text     string   `json:"text"`
	QCOnly   bool     `json:"qc_only,omitempty"`
	Target   Target   `json:"-"`
}

// MarkerManager stores markers by target. Rules clear and re-add their
// own markers whenever they run.
type MarkerManager struct {
	mu      sync.RWMutex
	markers map[Target][]Marker
}

// NewMarkerManager creates an empty manager.
func NewMarkerManager() *MarkerManager {
	return &MarkerManager{markers: make(map[Target][]Marker)}
}

// Add records m.
func (mm *MarkerManager) Add(m Marker) {
	mm.mu.Lock()
	mm.markers[m.Target] = append(mm.markers[m.Target], m)
	mm.mu.Unlock()
}

// Markers returns the markers of target, worst first. With transitive
// set, a variant target also collects the markers of its allocs.
func (mm *MarkerManager) Markers(target Target, transitive bool) []Marker {
	mm.mu.RLock()
	var out []Marker
	for t, ms := range mm.markers {
		if t == target || (transitive && target.Alloc == "" && t.Variant == target.Variant) {
			out = append(out, ms...)
		}
	}
	mm.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity < out[j].Severity
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// WorstSeverity returns the worst severity among the target's markers.
// With qcOnly unset, QC-only markers are ignored.
func (mm *MarkerManager) WorstSeverity(target Target, transitive, qcOnly bool) (Severity, bool) {
	worst, found := SeverityInfo, false
	for _, m := range mm.Markers(target, transitive) {
		if m.QCOnly && !qcOnly {
			continue
		}
		if !found || m.Severity.Worse(worst) {
			worst, found = m.Severity, true
		}
		if worst == SeverityError {
			break
		}
	}
	return worst, found
}

// Clear removes the markers that source attached to target, or to any of
// its allocs when target is a variant.
func (mm *MarkerManager) Clear(source string, target Target) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for t, ms := range mm.markers {
		if t != target && !(target.Alloc == "" && t.Variant == target.Variant) {
			continue
		}
		kept := ms[:0]
		for _, m := range ms {
			if m.Source != source {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			delete(mm.markers, t)
		} else {
			mm.markers[t] = kept
		}
	}
}

// Forget drops every marker of target, and of its allocs when target is
// a variant, whatever their source.
func (mm *MarkerManager) Forget(target Target) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for t := range mm.markers {
		if t == target || (target.Alloc == "" && t.Variant == target.Variant) {
			delete(mm.markers, t)
		}
	}
}

// ClearAll drops every marker.
func (mm *MarkerManager) ClearAll() {
	mm.mu.Lock()
	mm.markers = make(map[Target][]Marker)
	mm.mu.Unlock()
}
