/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import "github.com/friendsincode/queueplanner/internal/models"

// tooTierFactor scales target-of-opportunity scores by effective priority.
var tooTierFactor = map[models.Priority]float64{
	models.PriorityHigh:   0.5,
	models.PriorityMedium: 0.4,
	models.PriorityLow:    0.3,
}

// Score ranks obs as a candidate for placement in this variant. Any
// automatic-zero flag scores 0.
func (v *Variant) Score(obs *models.Obs) float64 {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.score(obs)
}

func (v *Variant) score(obs *models.Obs) float64 {
	flags := v.flags[obs.ID]
	if flags.Any(AutomaticZero) {
		return 0
	}

	band := float64(obs.Band())
	score := 1 / (band * band)
	if len(obs.TimingWindows) == 0 {
		score *= 0.75
	}
	if !flags.Has(FlagSetsEarly) {
		score *= 0.75
	}
	if flags.Has(FlagOverQualified) {
		score *= 0.8
	}
	if !flags.Has(FlagInProgress) {
		score *= 0.5
	}
	if flags.Has(FlagPartiallyBlocked) {
		score *= 0.75
	}
	// Dark-time observations rank above those that accept any sky.
	score *= 1 - float64(obs.Conditions.SB)/200

	if obs.IsTOO() {
		if f, ok := tooTierFactor[v.effectivePriority(obs)]; ok {
			score *= f
		}
	}
	return score
}

// effectivePriority raises obs one level for every non-ToO priority above
// its own that no other viable observation of the program occupies. The
// program is scanned on every call.
func (v *Variant) effectivePriority(obs *models.Obs) models.Priority {
	base := obs.Priority
	if obs.Prog == nil {
		return base
	}
	var found [models.PriorityCount]bool
	for _, o := range obs.Prog.Observations() {
		if o == obs || v.flags[o.ID].Any(AutomaticZero) {
			continue
		}
		if o.Priority >= 0 && int(o.Priority) < len(found) {
			found[o.Priority] = true
		}
	}
	eff := base
	for p := base + 1; int(p) < len(found)-1; p++ {
		if !found[p] {
			eff++
		}
	}
	return eff
}
