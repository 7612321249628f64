/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"strings"
	"time"

	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

// SetsEarlyWindow is how soon after the schedule start a target's last
// visible window must close for it to count as setting early.
const SetsEarlyWindow int64 = 3 * 60 * 60 * 1000

// Flags returns the flags computed for an observation in this variant.
func (v *Variant) Flags(obsID string) FlagSet {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.flags[obsID]
}

// AllFlags returns a copy of every observation's flags.
func (v *Variant) AllFlags() map[string]FlagSet {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	out := make(map[string]FlagSet, len(v.flags))
	for k, f := range v.flags {
		out[k] = f
	}
	return out
}

// refreshFlags recomputes every observation's flags from the cached
// layers. The caller holds the schedule lock.
func (v *Variant) refreshFlags() {
	if v.flagUpdatesOff {
		return
	}
	s := v.owner
	if s.isEmpty() {
		return
	}

	began := time.Now()
	defer func() {
		telemetry.FlagRefreshDuration.Observe(time.Since(began).Seconds())
	}()

	v.indexGroups()

	flags := make(map[string]FlagSet)
	v.flags = flags
	allocIntervals := v.allocs.Intervals()
	for _, a := range v.allocs.All() {
		flags[a.obs.ID] = flags[a.obs.ID].With(FlagScheduled)
	}

	start, end := s.span()
	for _, obs := range s.model.Observations() {
		f := flags[obs.ID]
		f = f.Union(s.intrinsicFlags(obs))
		f = f.Union(s.facilityFlagsFor(obs))
		f = f.Union(v.conditionFlags(obs))

		schedulable := !f.Has(FlagScheduled)

		dark := s.cachedUnion(s.dark, obs, start, end, s.suite.Background)
		if dark.IsEmpty() {
			f = f.With(FlagBackgroundConstrained)
			schedulable = false
		}

		visible := s.cachedUnion(s.visible, obs, start, end, s.suite.Elevation)
		if visible.IsEmpty() {
			f = f.With(FlagElevationConstrained)
			schedulable = false
		} else if last, _ := visible.Last(); last.End()-start < SetsEarlyWindow {
			f = f.With(FlagSetsEarly)
		}

		timing := s.cachedUnion(s.timing, obs, start, end, s.suite.Timing)
		if timing.IsEmpty() {
			f = f.With(FlagTimingConstrained)
			schedulable = false
		}

		if schedulable {
			blocked, err := v.blockingFlags(obs, visible, dark, timing, allocIntervals)
			if err != nil {
				flags[obs.ID] = f
				telemetry.FlagRefreshAbortsTotal.Inc()
				s.logger.Error().Err(err).Str("variant", v.name).Str("obs", obs.ID).Msg("flag refresh aborted")
				return
			}
			f = f.Union(blocked)
		}
		flags[obs.ID] = f
	}

	s.bus.Publish(events.EventFlagsRefreshed, events.Payload{
		"variant_id":   string(v.id),
		"observations": len(flags),
	})
	s.logger.Debug().Str("variant", v.name).Int("observations", len(flags)).Dur("took", time.Since(began)).Msg("flags refreshed")
}

// indexGroups numbers the scheduling groups that appear more than once
// among the allocs.
func (v *Variant) indexGroups() {
	seen := make(map[string]int)
	var order []string
	for _, a := range v.allocs.All() {
		g := a.obs.Group
		if g == nil || g.Type != models.GroupScheduling {
			continue
		}
		if seen[g.ID] == 0 {
			order = append(order, g.ID)
		}
		seen[g.ID]++
	}
	clear(v.groups)
	for _, id := range order {
		if seen[id] > 1 {
			v.groups[id] = len(v.groups)
		}
	}
}

// blockingFlags finds room for the observation among the variant's
// allocs once every hard constraint has been applied.
func (v *Variant) blockingFlags(obs *models.Obs, visible, dark, timing *interval.Union, allocs []interval.Interval) (FlagSet, error) {
	s := v.owner
	steps := obs.Steps
	firstUnex := obs.FirstUnexecutedStep()
	if firstUnex < 0 || firstUnex >= steps.Len() {
		return 0, &models.StepIndexError{Obs: obs.ID, Index: firstUnex, Len: steps.Len()}
	}
	step := steps.StepTime(firstUnex)
	setup := steps.SetupTime
	stepPlusSetup := step + setup

	base, ok := s.constrained.Get(obs.ID)
	if !ok {
		base = s.blocks.Clone()
		base.Intersect(visible)
		base.Intersect(dark)
		base.Intersect(timing)
		s.constrained.Put(obs.ID, base.Clone())
	}

	// Setup is unconstrained, so each window may begin early by the
	// setup time.
	constrained := base.Clone()
	for _, iv := range base.Intervals() {
		constrained.Add(interval.New(iv.Start()-setup, iv.Start()))
	}

	if constrained.IsEmpty() || constrained.Longest() < stepPlusSetup {
		return Flags(FlagMultiConstrained), nil
	}

	withoutSetup := constrained.Clone()
	free := constrained
	free.RemoveAll(allocs)

	maxFree := int64(-1)
	if !free.IsEmpty() {
		maxFree = free.Longest()
	}

	switch {
	case maxFree < step:
		return Flags(FlagBlocked), nil
	case maxFree < stepPlusSetup:
		for _, iv := range withoutSetup.Intervals() {
			withoutSetup.Remove(interval.New(iv.Start(), iv.Start()+setup))
		}
		withoutSetup.RemoveAll(allocs)
		if !withoutSetup.IsEmpty() && withoutSetup.Longest() >= step {
			return Flags(FlagSetupBlocked), nil
		}
		return Flags(FlagBlocked), nil
	case steps.Total() > maxFree:
		return Flags(FlagPartiallyBlocked), nil
	}
	return 0, nil
}

// intrinsicFlags depend only on the program and observation.
func (s *Schedule) intrinsicFlags(obs *models.Obs) FlagSet {
	if f, ok := s.intrinsic.Get(obs.ID); ok {
		return f
	}
	var f FlagSet
	prog := obs.Prog
	if prog != nil && !prog.Active {
		f = f.With(FlagInactive)
	}
	if obs.InProgress {
		f = f.With(FlagInProgress)
	}
	if prog != nil && !prog.EngOrCal && prog.RemainingTime <= 0 {
		f = f.With(FlagOverAllocated)
	}
	if obs.InSchedulingGroup() {
		f = f.With(FlagSchedGroup)
	}
	if obs.IsTOO() || len(obs.TimingWindows) > 0 {
		f = f.With(FlagTimeConstrained)
	}
	s.intrinsic.Put(obs.ID, f)
	return f
}

// facilityFlagsFor depends on the facility set and the ICTD summary.
func (s *Schedule) facilityFlagsFor(obs *models.Obs) FlagSet {
	if f, ok := s.facilityFlags.Get(obs.ID); ok {
		return f
	}
	var f FlagSet
	for _, inst := range obs.Instruments {
		if !s.facilities.Has(inst) {
			f = f.With(FlagInstrumentUnavailable)
			break
		}
	}
	for _, opt := range obs.Options {
		if !s.facilities.Has(opt) {
			f = f.With(FlagConfigUnavailable)
			break
		}
	}
	if s.shouldCheckMask(obs) && obs.Prog != nil && obs.Prog.Science {
		switch s.maskAvailability(models.MaskKey{Program: obs.Prog.ID, Name: obs.CustomMask}) {
		case models.Installed:
		case models.SummitCabinet:
			f = f.With(FlagMaskInCabinet)
		default:
			f = f.With(FlagMaskUnavailable)
		}
	}
	s.facilityFlags.Put(obs.ID, f)
	return f
}

// shouldCheckMask reports whether obs names a custom mask and one of its
// options is a custom-mask facility offered by the schedule.
func (s *Schedule) shouldCheckMask(obs *models.Obs) bool {
	if strings.TrimSpace(obs.CustomMask) == "" {
		return false
	}
	for _, opt := range obs.Options {
		if models.IsCustomMask(opt) && s.facilities.Has(opt) {
			return true
		}
	}
	return false
}

// conditionFlags depend on this variant's conditions and LGS setting.
func (v *Variant) conditionFlags(obs *models.Obs) FlagSet {
	if f, ok := v.condsFlags.Get(obs.ID); ok {
		return f
	}
	var f FlagSet
	req := obs.Conditions
	if !req.MeetsCC(v.conds) {
		f = f.With(FlagCCUnderQualified)
	}
	if !req.MeetsWV(v.conds) {
		f = f.With(FlagWVUnderQualified)
	}
	if !req.MeetsIQ(v.conds) {
		f = f.With(FlagIQUnderQualified)
	}
	if req.MeetsEasily(v.conds) {
		f = f.With(FlagOverQualified)
	}
	if !v.lgs && obs.LGS {
		f = f.With(FlagLGSUnavailable)
	}
	v.condsFlags.Put(obs.ID, f)
	return f
}
