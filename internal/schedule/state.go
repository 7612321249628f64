/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"
	"sort"

	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
)

// State is the persistable form of a schedule. It carries references to
// observations by ID only; Restore resolves them against a model.
type State struct {
	Site           models.Site
	Comment        string
	Blocks         []interval.Interval
	Facilities     []models.Facility
	ExtraSemesters []string
	ICTD           *models.ICTDSummary
	Variants       []VariantState
}

// VariantState is the persistable form of a variant.
type VariantState struct {
	ID      VariantID
	Name    string
	Comment string
	Conds   models.Conds
	Wind    *models.ApproximateAngle
	LGS     bool
	Allocs  []AllocState
}

// AllocState is the persistable form of an alloc.
type AllocState struct {
	ID      AllocID
	Obs     string
	Start   int64
	End     int64
	First   int
	Last    int
	Setup   SetupType
	Comment string
}

// State captures the schedule in a form that Restore accepts. Variants
// and allocs appear in schedule order.
func (s *Schedule) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Site:       s.model.Site(),
		Comment:    s.comment,
		Blocks:     s.blocks.Intervals(),
		Facilities: s.facilities.Sorted(),
		ICTD:       s.ictd,
	}
	for sem := range s.extraSemesters {
		st.ExtraSemesters = append(st.ExtraSemesters, sem)
	}
	sort.Strings(st.ExtraSemesters)
	for _, v := range s.variants {
		vs := VariantState{
			ID:      v.id,
			Name:    v.name,
			Comment: v.comment,
			Conds:   v.conds,
			LGS:     v.lgs,
		}
		if v.wind != nil {
			w := *v.wind
			vs.Wind = &w
		}
		for _, a := range v.allocs.All() {
			vs.Allocs = append(vs.Allocs, AllocState{
				ID:      a.id,
				Obs:     a.obs.ID,
				Start:   a.Start(),
				End:     a.End(),
				First:   a.first,
				Last:    a.last,
				Setup:   a.setup,
				Comment: v.comments[a.id],
			})
		}
		st.Variants = append(st.Variants, vs)
	}
	return st
}

// RestoreIssue describes an alloc Restore could not bring back.
type RestoreIssue struct {
	Variant string
	Alloc   AllocID
	Obs     string
	Err     error
}

func (i RestoreIssue) String() string {
	return fmt.Sprintf("variant %q: alloc %s (%s): %v", i.Variant, i.Alloc, i.Obs, i.Err)
}

// Restore rebuilds a schedule from st against model. Allocs whose
// observation is missing from the model, or whose steps no longer fit,
// are skipped and reported. Surviving allocs are repaired against the
// model's current execution state. The first variant becomes current and
// the result is clean. A snapshot in opts.ICTD takes precedence over the
// one stored in st.
func Restore(model *models.MiniModel, st State, opts Options) (*Schedule, []RestoreIssue, error) {
	if st.Site != model.Site() {
		return nil, nil, fmt.Errorf("%w: document is %s, model is %s", ErrSiteMismatch, st.Site, model.Site())
	}
	if opts.ICTD == nil {
		opts.ICTD = st.ICTD
	}
	s := newSchedule(model, opts)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.comment = st.Comment
	s.blocks.AddAll(st.Blocks)
	s.facilities.Add(st.Facilities...)
	s.facilities.Add(models.HiddenFacilities()...)
	for _, sem := range st.ExtraSemesters {
		s.extraSemesters[sem] = struct{}{}
	}

	var issues []RestoreIssue
	for _, vs := range st.Variants {
		if err := vs.Conds.Validate(); err != nil {
			return nil, nil, fmt.Errorf("variant %q: %w", vs.Name, err)
		}
		v := newVariant(s, vs.ID, vs.Name, vs.Conds, vs.Wind, vs.LGS)
		v.comment = vs.Comment
		v.flagUpdatesOff = true
		for _, as := range vs.Allocs {
			obs := model.Obs(as.Obs)
			if obs == nil {
				issues = append(issues, RestoreIssue{Variant: vs.Name, Alloc: as.ID, Obs: as.Obs, Err: ErrUnknownObservation})
				continue
			}
			a, err := rehydrateAlloc(as.ID, v.id, obs, interval.New(as.Start, as.End), as.First, as.Last, as.Setup, s.suite.Sky)
			if err != nil {
				issues = append(issues, RestoreIssue{Variant: vs.Name, Alloc: as.ID, Obs: as.Obs, Err: err})
				continue
			}
			v.allocs.Add(a)
			v.setComment(a.id, as.Comment)
		}
		v.repairAllocs(model, true)
		s.variants = append(s.variants, v)
	}
	if len(s.variants) > 0 {
		s.current = s.variants[0]
	}
	for _, v := range s.variants {
		v.flagUpdatesOff = false
		v.refreshFlags()
	}
	s.dirty = false
	for _, is := range issues {
		s.logger.Warn().Str("variant", is.Variant).Str("obs", is.Obs).Err(is.Err).Msg("alloc not restored")
	}
	return s, issues, nil
}
