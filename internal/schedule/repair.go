/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"github.com/friendsincode/queueplanner/internal/models"
)

// repairAllocs re-derives every alloc against model after the observing
// data changed underneath the variant. Allocs whose observation vanished
// or whose steps have all executed are dropped. Allocs whose first
// unexecuted step moved are shifted by the old durations of the steps in
// between. With keepUnchanged set, an alloc whose step range survives
// untouched keeps its stored interval.
func (v *Variant) repairAllocs(model *models.MiniModel, keepUnchanged bool) {
	s := v.owner
	next := NewAllocSet()
	for _, a := range v.allocs.All() {
		log := s.logger.With().Str("variant", v.name).Str("alloc", a.String()).Logger()

		obs := model.Obs(a.obs.ID)
		if obs == nil {
			log.Info().Msg("dropping alloc: observation no longer in model")
			delete(v.comments, a.id)
			continue
		}

		firstUnex := obs.FirstUnexecutedStep()
		if firstUnex > a.last {
			log.Info().Msg("dropping alloc: all steps executed")
			delete(v.comments, a.id)
			continue
		}

		// Keep an alloc that began at the first unexecuted step there,
		// even if earlier steps became unexecuted.
		first := a.first
		if first < firstUnex || first == a.obs.FirstUnexecutedStep() {
			first = firstUnex
		}
		last := min(a.last, obs.Steps.Len()-1)
		if last < first {
			log.Info().Msg("dropping alloc: steps deleted")
			delete(v.comments, a.id)
			continue
		}

		start := a.Start()
		switch {
		case first > a.first:
			start += stepTimes(a.obs, a.first, first)
		case first < a.first:
			start -= stepTimes(a.obs, first, a.first)
		}

		if keepUnchanged && first == a.first && last == a.last && start == a.Start() {
			kept := *a
			kept.obs = obs
			kept.circ = newCircumstances(s.suite.Sky)
			next.Add(&kept)
			continue
		}

		fresh, err := newAlloc(v.id, obs, start, first, last, a.setup, s.suite)
		if err != nil {
			log.Warn().Err(err).Msg("dropping alloc: cannot rebuild")
			delete(v.comments, a.id)
			continue
		}
		fresh.id = a.id
		if first != a.first || last != a.last {
			log.Info().Int("first", first).Int("last", last).Msg("alloc repaired")
		}
		next.Add(fresh)
	}
	v.allocs = next
}

// stepTimes sums the durations of steps [from, to) of obs. Steps beyond
// the sequence count as zero.
func stepTimes(obs *models.Obs, from, to int) int64 {
	var sum int64
	for i := from; i < to; i++ {
		if i >= 0 && i < obs.Steps.Len() {
			sum += obs.Steps.StepTime(i)
		}
	}
	return sum
}
