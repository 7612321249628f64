/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/friendsincode/queueplanner/internal/cache"
	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

// VariantID identifies a variant within a schedule.
type VariantID string

// Variant is one candidate plan: a set of allocs plus the site
// conditions it assumes. Every method takes the owning schedule's lock.
type Variant struct {
	id      VariantID
	owner   *Schedule
	name    string
	comment string
	conds   models.Conds
	wind    *models.ApproximateAngle
	lgs     bool

	allocs   *AllocSet
	comments map[AllocID]string

	flags          map[string]FlagSet
	groups         map[string]int
	flagUpdatesOff bool

	caches     *cache.Registry
	condsFlags *cache.Table[FlagSet]
}

func newVariant(owner *Schedule, id VariantID, name string, conds models.Conds, wind *models.ApproximateAngle, lgs bool) *Variant {
	if id == "" {
		id = VariantID(uuid.NewString())
	}
	v := &Variant{
		id:         id,
		owner:      owner,
		name:       name,
		conds:      conds,
		wind:       wind,
		lgs:        lgs,
		allocs:     NewAllocSet(),
		comments:   make(map[AllocID]string),
		flags:      make(map[string]FlagSet),
		groups:     make(map[string]int),
		caches:     cache.NewRegistry("variant", owner.logger),
		condsFlags: cache.NewTable[FlagSet]("condsFlagCache"),
	}
	v.caches.Register(v.condsFlags, cache.TriggerConditions, cache.TriggerLGS, cache.TriggerMiniModel)
	return v
}

// ID returns the variant's stable identifier.
func (v *Variant) ID() VariantID { return v.id }

// Schedule returns the owning schedule.
func (v *Variant) Schedule() *Schedule { return v.owner }

func (v *Variant) String() string { return v.Name() }

// Name returns the display name.
func (v *Variant) Name() string {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.name
}

// SetName renames the variant.
func (v *Variant) SetName(name string) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	v.name = name
	v.changed("name")
}

// Comment returns the planner's comment.
func (v *Variant) Comment() string {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.comment
}

// SetComment replaces the planner's comment.
func (v *Variant) SetComment(c string) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	v.comment = c
	v.owner.dirty = true
}

// Conditions returns the site conditions the variant assumes.
func (v *Variant) Conditions() models.Conds {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.conds
}

// SetConditions changes the assumed conditions and refreshes flags.
func (v *Variant) SetConditions(c models.Conds) error {
	if err := c.Validate(); err != nil {
		return err
	}
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	v.conds = c
	v.caches.Invalidate(cache.TriggerConditions)
	v.refreshFlags()
	v.changed("conditions")
	return nil
}

// Wind returns the wind constraint, or nil.
func (v *Variant) Wind() *models.ApproximateAngle {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	if v.wind == nil {
		return nil
	}
	w := *v.wind
	return &w
}

// SetWind changes the wind constraint.
func (v *Variant) SetWind(w *models.ApproximateAngle) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	if w != nil {
		c := *w
		w = &c
	}
	v.wind = w
	v.refreshFlags()
	v.changed("wind")
}

// LGS reports whether the laser guide star is available.
func (v *Variant) LGS() bool {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.lgs
}

// SetLGS changes laser availability. Every private cache is dropped.
func (v *Variant) SetLGS(b bool) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	v.lgs = b
	v.caches.InvalidateAll()
	v.refreshFlags()
	v.changed("lgs")
}

// IsEmpty reports whether the variant has no allocs.
func (v *Variant) IsEmpty() bool {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.allocs.IsEmpty()
}

// Start returns the start of the earliest alloc.
func (v *Variant) Start() (int64, error) {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	first, ok := v.allocs.First()
	if !ok {
		return 0, fmt.Errorf("variant %s: %w", v.name, ErrEmptySchedule)
	}
	return first.Start(), nil
}

// End returns the end of the latest alloc.
func (v *Variant) End() (int64, error) {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	end, ok := v.end()
	if !ok {
		return 0, fmt.Errorf("variant %s: %w", v.name, ErrEmptySchedule)
	}
	return end, nil
}

// end is the latest alloc end. The set is ordered by start, so the last
// member does not necessarily end last.
func (v *Variant) end() (int64, bool) {
	all := v.allocs.All()
	if len(all) == 0 {
		return 0, false
	}
	end := all[0].End()
	for _, a := range all[1:] {
		end = max(end, a.End())
	}
	return end, true
}

// Allocs returns a snapshot of the allocs in order.
func (v *Variant) Allocs() []*Alloc {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.allocs.All()
}

// AllocsFor returns the allocs of one observation in order.
func (v *Variant) AllocsFor(obsID string) []*Alloc {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.allocs.ForObs(obsID)
}

// AllocsIn returns the allocs overlapping a block in the given mode.
// AllocsIn(b, interval.OverlapTotal) lists the allocs lying inside b.
func (v *Variant) AllocsIn(b Block, mode interval.Overlap) []*Alloc {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	var out []*Alloc
	for _, a := range v.allocs.All() {
		if a.iv.Overlaps(b.Interval, mode) {
			out = append(out, a)
		}
	}
	return out
}

// Alloc looks up an alloc by ID.
func (v *Variant) Alloc(id AllocID) *Alloc {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.allocs.Find(id)
}

// AllocComment returns the comment attached to an alloc.
func (v *Variant) AllocComment(a *Alloc) string {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.comments[a.id]
}

// SetAllocComment attaches a comment to an alloc.
func (v *Variant) SetAllocComment(a *Alloc, c string) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	v.setComment(a.id, c)
	v.owner.dirty = true
}

func (v *Variant) setComment(id AllocID, c string) {
	if c == "" {
		delete(v.comments, id)
		return
	}
	v.comments[id] = c
}

// AddAlloc places steps [first, last] of obs at start. A rejected edit
// returns an EditError and leaves the variant unchanged.
func (v *Variant) AddAlloc(obs *models.Obs, start int64, first, last int, setup SetupType, comment string) (*Alloc, error) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	return v.addAlloc(obs, start, first, last, setup, comment)
}

func (v *Variant) addAlloc(obs *models.Obs, start int64, first, last int, setup SetupType, comment string) (*Alloc, error) {
	a, err := newAlloc(v.id, obs, start, first, last, setup, v.owner.suite)
	if err != nil {
		return nil, err
	}
	if err := checkAdd(v.allocs, a); err != nil {
		return nil, v.rejected(err)
	}
	v.allocs.Add(a)
	v.setComment(a.id, comment)
	v.allocsChanged(events.EventAllocAdded, a)
	return a, nil
}

// RemoveAlloc deletes a. Unless force is set, removing an alloc whose
// successor is still placed is rejected.
func (v *Variant) RemoveAlloc(a *Alloc, force bool) error {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	if !v.allocs.Has(a) {
		return fmt.Errorf("%s: %w", a, ErrUnknownAlloc)
	}
	if !force {
		if err := checkRemove(v.allocs, a); err != nil {
			return v.rejected(err)
		}
	}
	v.allocs.Remove(a)
	delete(v.comments, a.id)
	v.owner.markers.Forget(AllocTarget(a))
	v.allocsChanged(events.EventAllocRemoved, a)
	return nil
}

// MoveAlloc replaces a with a copy starting at start. The alloc keeps its
// ID and comment; its span is recomputed.
func (v *Variant) MoveAlloc(a *Alloc, start int64) (*Alloc, error) {
	return v.MoveAllocSetup(a, start, a.setup)
}

// MoveAllocSetup moves a and changes its setup type.
func (v *Variant) MoveAllocSetup(a *Alloc, start int64, setup SetupType) (*Alloc, error) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	return v.moveAlloc(a, start, setup, true)
}

func (v *Variant) moveAlloc(a *Alloc, start int64, setup SetupType, validate bool) (*Alloc, error) {
	if !v.allocs.Has(a) {
		return nil, fmt.Errorf("%s: %w", a, ErrUnknownAlloc)
	}
	moved, err := newAlloc(v.id, a.obs, start, a.first, a.last, setup, v.owner.suite)
	if err != nil {
		return nil, err
	}
	moved.id = a.id

	if validate {
		rest := v.allocs.Clone()
		rest.Remove(a)
		if err := checkAdd(rest, moved); err != nil {
			return nil, v.rejected(err)
		}
	}
	v.allocs.Remove(a)
	v.allocs.Add(moved)
	v.allocsChanged(events.EventAllocMoved, moved)
	return moved, nil
}

// ToggleSetup cycles the setup type None → Full → Reacquisition → None,
// skipping Reacquisition when the observation has none. The start shifts
// so the science steps stay put, clamped against the alloc's step
// neighbours.
func (v *Variant) ToggleSetup(a *Alloc) (*Alloc, error) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()

	full := a.obs.Steps.SetupTime
	racq := a.obs.Steps.ReacquisitionTime
	switch a.setup {
	case SetupNone:
		start := v.constrainStart(a, a.Start()-full, a.Length()+full)
		return v.moveAlloc(a, start, SetupFull, true)
	case SetupFull:
		if racq > 0 {
			start := v.constrainStart(a, a.Start()+full-racq, a.Length()-full+racq)
			return v.moveAlloc(a, start, SetupReacquisition, true)
		}
		start := v.constrainStart(a, a.Start()+full, a.Length()-full)
		return v.moveAlloc(a, start, SetupNone, true)
	case SetupReacquisition:
		return v.moveAlloc(a, a.Start()+racq, SetupNone, true)
	}
	return nil, fmt.Errorf("unknown setup type %d", int(a.setup))
}

// ConstrainStart clamps a proposed start so an alloc of the given length
// stays after its predecessor and before its successor.
func (v *Variant) ConstrainStart(a *Alloc, proposed, length int64) int64 {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.constrainStart(a, proposed, length)
}

func (v *Variant) constrainStart(a *Alloc, proposed, length int64) int64 {
	if pred := v.allocs.Predecessor(a); pred != nil {
		proposed = max(pred.End(), proposed)
	}
	if succ := v.allocs.Successor(a); succ != nil {
		proposed = min(proposed, succ.Start()-length)
	}
	return proposed
}

// Predecessor returns the alloc whose steps immediately precede a's.
func (v *Variant) Predecessor(a *Alloc) *Alloc {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.allocs.Predecessor(a)
}

// Successor returns the alloc continuing a's steps.
func (v *Variant) Successor(a *Alloc) *Alloc {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.allocs.Successor(a)
}

// Previous returns the alloc ordered just before a.
func (v *Variant) Previous(a *Alloc) *Alloc {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.allocs.Previous(a)
}

// Next returns the alloc ordered just after a.
func (v *Variant) Next(a *Alloc) *Alloc {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.allocs.Next(a)
}

// GroupIndex returns a per-variant index for a's scheduling group, or -1
// when the alloc is ungrouped or the only member of its group in the plan.
func (v *Variant) GroupIndex(a *Alloc) int {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	return v.groupIndex(a)
}

func (v *Variant) groupIndex(a *Alloc) int {
	if a == nil || a.obs.Group == nil {
		return -1
	}
	if i, ok := v.groups[a.obs.Group.ID]; ok {
		return i
	}
	return -1
}

// Grouping places a within its run of same-group neighbours.
func (v *Variant) Grouping(a *Alloc) Grouping {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()

	g := v.groupIndex(a)
	if g == -1 {
		return GroupingNone
	}
	prev := v.allocs.Previous(a)
	next := v.allocs.Next(a)
	up := prev != nil && v.groupIndex(prev) == g
	down := next != nil && v.groupIndex(next) == g
	switch {
	case up && down:
		return GroupingMiddle
	case up:
		return GroupingLast
	case down:
		return GroupingFirst
	default:
		return GroupingSolo
	}
}

// SetFlagUpdatesEnabled suspends or resumes flag computation. Resuming
// recomputes every flag.
func (v *Variant) SetFlagUpdatesEnabled(enabled bool) {
	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	v.setFlagUpdates(enabled)
}

func (v *Variant) setFlagUpdates(enabled bool) {
	v.flagUpdatesOff = !enabled
	if enabled {
		v.refreshFlags()
	}
}

// Markers returns the markers attached to the variant, and with
// transitive set, to its allocs.
func (v *Variant) Markers(transitive bool) []Marker {
	return v.owner.markers.Markers(VariantTarget(v.id), transitive)
}

// Severity returns the worst marker severity of the variant and its allocs.
func (v *Variant) Severity() (Severity, bool) {
	return v.owner.markers.WorstSeverity(VariantTarget(v.id), true, true)
}

func (v *Variant) rejected(err error) error {
	if ee, ok := IsEditError(err); ok {
		telemetry.EditRejectionsTotal.WithLabelValues(string(ee.Kind())).Inc()
		v.owner.logger.Debug().Str("variant", v.name).Str("kind", string(ee.Kind())).Err(err).Msg("edit rejected")
	}
	return err
}

func (v *Variant) allocsChanged(ev events.EventType, a *Alloc) {
	v.owner.dirty = true
	v.refreshFlags()
	v.owner.bus.Publish(ev, events.Payload{
		"variant_id": string(v.id),
		"alloc_id":   string(a.id),
		"obs_id":     a.obs.ID,
		"start":      a.Start(),
		"end":        a.End(),
	})
}

func (v *Variant) changed(property string) {
	v.owner.dirty = true
	v.owner.bus.Publish(events.EventVariantChanged, events.Payload{
		"variant_id": string(v.id),
		"property":   property,
	})
}
