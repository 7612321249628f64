/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule is the queue planning core: a schedule of night
// blocks, the candidate variants planned against them, and the per
// observation flags and scores that guide placement.
package schedule

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/astro"
	"github.com/friendsincode/queueplanner/internal/cache"
	"github.com/friendsincode/queueplanner/internal/events"
	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/solver"
)

const msPerDay int64 = 24 * 60 * 60 * 1000

// Options configures a schedule's collaborators.
type Options struct {
	Suite  solver.Suite
	Bus    *events.Bus
	Logger zerolog.Logger
	ICTD   *models.ICTDSummary
}

// Schedule is a queue plan: night blocks, an ordered list of variants and
// the facilities available to them. It is safe for concurrent readers
// but is designed for a single writer.
type Schedule struct {
	mu     sync.RWMutex
	logger zerolog.Logger
	bus    *events.Bus
	suite  solver.Suite

	model          *models.MiniModel
	ictd           *models.ICTDSummary
	blocks         *interval.Union
	variants       []*Variant
	current        *Variant
	facilities     models.FacilitySet
	extraSemesters map[string]struct{}
	comment        string
	dirty          bool

	markers *MarkerManager

	caches        *cache.Registry
	intrinsic     *cache.Table[FlagSet]
	facilityFlags *cache.Table[FlagSet]
	visible       *cache.Table[*interval.Union]
	dark          *cache.Table[*interval.Union]
	timing        *cache.Table[*interval.Union]
	constrained   *cache.Table[*interval.Union]
}

// New creates an empty schedule for the model's site with the site's
// default facilities.
func New(model *models.MiniModel, opts Options) *Schedule {
	s := newSchedule(model, opts)
	s.facilities = models.DefaultFacilities(model.Site())
	s.facilities.Add(models.HiddenFacilities()...)
	if s.ictd != nil {
		s.matchFacilitiesToICTD()
	}
	return s
}

func newSchedule(model *models.MiniModel, opts Options) *Schedule {
	logger := opts.Logger.With().Str("component", "schedule").Str("site", string(model.Site())).Logger()
	s := &Schedule{
		logger:         logger,
		bus:            opts.Bus,
		suite:          opts.Suite.Complete(),
		model:          model,
		ictd:           opts.ICTD,
		blocks:         &interval.Union{},
		facilities:     models.NewFacilitySet(),
		extraSemesters: make(map[string]struct{}),
		markers:        NewMarkerManager(),
		caches:         cache.NewRegistry("schedule", logger),
		intrinsic:      cache.NewTable[FlagSet]("intrinsicFlagCache"),
		facilityFlags:  cache.NewTable[FlagSet]("facilitiesFlagCache"),
		visible:        cache.NewTable[*interval.Union]("visibleUnionCache"),
		dark:           cache.NewTable[*interval.Union]("darkUnionCache"),
		timing:         cache.NewTable[*interval.Union]("timingUnionCache"),
		constrained:    cache.NewTable[*interval.Union]("constrainedUnionCache"),
	}
	s.caches.Register(s.intrinsic, cache.TriggerMiniModel)
	s.caches.Register(s.facilityFlags, cache.TriggerFacilities, cache.TriggerICTD, cache.TriggerMiniModel)
	s.caches.Register(s.visible, cache.TriggerBlocks, cache.TriggerMiniModel)
	s.caches.Register(s.dark, cache.TriggerBlocks, cache.TriggerMiniModel)
	s.caches.Register(s.constrained, cache.TriggerBlocks, cache.TriggerMiniModel)
	s.caches.Register(s.timing, cache.TriggerBlocks, cache.TriggerMiniModel)
	return s
}

// Site returns the site being planned.
func (s *Schedule) Site() models.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model.Site()
}

// Model returns the observing data the plan is built against.
func (s *Schedule) Model() *models.MiniModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetMiniModel swaps in fresh observing data. Every cache is dropped and
// every variant's allocs are repaired against the new data.
func (s *Schedule) SetMiniModel(m *models.MiniModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Site() != s.model.Site() {
		return fmt.Errorf("%w: plan is %s, model is %s", ErrSiteMismatch, s.model.Site(), m.Site())
	}
	s.caches.InvalidateAll()
	s.model = m
	for _, v := range s.variants {
		v.caches.InvalidateAll()
		v.repairAllocs(m, false)
		v.refreshFlags()
	}
	s.dirty = true
	s.bus.Publish(events.EventModelChanged, events.Payload{
		"site":         string(m.Site()),
		"observations": len(m.Observations()),
	})
	return nil
}

// ICTD returns the equipment availability summary, or nil.
func (s *Schedule) ICTD() *models.ICTDSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ictd
}

// SetICTD replaces the availability summary and brings the facility set
// into line with it.
func (s *Schedule) SetICTD(ictd *models.ICTDSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ictd = ictd
	if ictd != nil {
		s.matchFacilitiesToICTD()
	}
	s.facilitiesChanged()
}

// MatchFacilitiesToICTD adds installed facilities and removes the rest
// according to the current summary.
func (s *Schedule) MatchFacilitiesToICTD() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ictd == nil {
		return
	}
	s.matchFacilitiesToICTD()
	s.facilitiesChanged()
}

func (s *Schedule) matchFacilitiesToICTD() {
	for f, a := range s.ictd.Features {
		if a == models.Installed {
			s.facilities.Add(f)
		} else {
			s.facilities.Remove(f)
		}
	}
}

// MaskAvailability reports where a custom mask is. Without a summary
// every mask is assumed installed; a mask the summary does not list is
// missing.
func (s *Schedule) MaskAvailability(key models.MaskKey) models.Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maskAvailability(key)
}

func (s *Schedule) maskAvailability(key models.MaskKey) models.Availability {
	if s.ictd == nil {
		return models.Installed
	}
	if a, ok := s.ictd.Masks[key]; ok {
		return a
	}
	return models.Missing
}

// Facilities returns the available facilities, sorted.
func (s *Schedule) Facilities() []models.Facility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facilities.Sorted()
}

// HasFacility reports whether f is available.
func (s *Schedule) HasFacility(f models.Facility) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facilities.Has(f)
}

// AddFacility makes f available.
func (s *Schedule) AddFacility(f models.Facility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facilities.Add(f)
	s.facilitiesChanged()
}

// RemoveFacility makes f unavailable.
func (s *Schedule) RemoveFacility(f models.Facility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facilities.Remove(f)
	s.facilitiesChanged()
}

// SetFacilities replaces the facility set. Hidden facilities are always kept.
func (s *Schedule) SetFacilities(fs []models.Facility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facilities = models.NewFacilitySet(fs...)
	s.facilities.Add(models.HiddenFacilities()...)
	s.facilitiesChanged()
}

func (s *Schedule) facilitiesChanged() {
	s.caches.Invalidate(cache.TriggerFacilities)
	s.caches.Invalidate(cache.TriggerICTD)
	s.dirty = true
	s.refreshAll()
	s.bus.Publish(events.EventFacilitiesChanged, events.Payload{"count": len(s.facilities)})
}

// Comment returns the planner's comment.
func (s *Schedule) Comment() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.comment
}

// SetComment replaces the planner's comment.
func (s *Schedule) SetComment(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comment = c
	s.dirty = true
}

// IsDirty reports unsaved changes.
func (s *Schedule) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkClean records that the schedule has been saved.
func (s *Schedule) MarkClean() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}

// Markers returns the schedule's marker manager.
func (s *Schedule) Markers() *MarkerManager { return s.markers }

// CacheDependents lists the shared caches cleared by t.
func (s *Schedule) CacheDependents(t cache.Trigger) []string {
	return s.caches.Dependents(t)
}

// Variants returns the variants in order.
func (s *Schedule) Variants() []*Variant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Variant(nil), s.variants...)
}

// Variant looks up a variant by ID.
func (s *Schedule) Variant(id VariantID) *Variant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.variant(id)
}

func (s *Schedule) variant(id VariantID) *Variant {
	for _, v := range s.variants {
		if v.id == id {
			return v
		}
	}
	return nil
}

func (s *Schedule) indexOf(v *Variant) int {
	for i, c := range s.variants {
		if c == v {
			return i
		}
	}
	return -1
}

// CurrentVariant returns the variant being edited, or nil.
func (s *Schedule) CurrentVariant() *Variant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCurrentVariant selects a variant of this schedule, or nil.
func (s *Schedule) SetCurrentVariant(v *Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v != nil && s.indexOf(v) < 0 {
		return ErrUnknownVariant
	}
	s.current = v
	return nil
}

// AddVariant appends an empty variant. It becomes current if none is.
func (s *Schedule) AddVariant(name string, conds models.Conds, wind *models.ApproximateAngle, lgs bool) (*Variant, error) {
	if err := conds.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := newVariant(s, "", name, conds, wind, lgs)
	s.variants = append(s.variants, v)
	if s.current == nil {
		s.current = v
	}
	v.refreshFlags()
	s.variantsChanged(v, "added")
	return v, nil
}

// RemoveVariant deletes v.
func (s *Schedule) RemoveVariant(v *Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(v)
	if i < 0 {
		return ErrUnknownVariant
	}
	if s.current == v {
		s.current = nil
	}
	s.variants = append(s.variants[:i], s.variants[i+1:]...)
	s.markers.Forget(VariantTarget(v.id))
	s.variantsChanged(v, "removed")
	return nil
}

// MoveVariant shifts v delta places in the list.
func (s *Schedule) MoveVariant(v *Variant, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(v)
	if i < 0 {
		return ErrUnknownVariant
	}
	j := i + delta
	if j < 0 || j >= len(s.variants) {
		return fmt.Errorf("%w: %d", ErrVariantPosition, j)
	}
	s.variants = append(s.variants[:i], s.variants[i+1:]...)
	s.variants = append(s.variants[:j], append([]*Variant{v}, s.variants[j:]...)...)
	s.variantsChanged(v, "moved")
	return nil
}

// DuplicateVariant copies v, inserts the copy after it and makes the
// copy current.
func (s *Schedule) DuplicateVariant(v *Variant) (*Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(v)
	if i < 0 {
		return nil, ErrUnknownVariant
	}
	dup := newVariant(s, "", v.name, v.conds, v.wind, v.lgs)
	dup.comment = v.comment
	dup.flagUpdatesOff = true
	for _, a := range v.allocs.All() {
		if _, err := dup.addAlloc(a.obs, a.Start(), a.first, a.last, a.setup, v.comments[a.id]); err != nil {
			return nil, fmt.Errorf("duplicate variant %s: %w", v.name, err)
		}
	}
	s.variants = append(s.variants[:i+1], append([]*Variant{dup}, s.variants[i+1:]...)...)
	s.current = dup
	dup.setFlagUpdates(true)
	s.variantsChanged(dup, "duplicated")
	return dup, nil
}

func (s *Schedule) variantsChanged(v *Variant, action string) {
	s.dirty = true
	s.bus.Publish(events.EventVariantChanged, events.Payload{
		"variant_id": string(v.id),
		"action":     action,
	})
}

// Blocks returns the night blocks in order.
func (s *Schedule) Blocks() []Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return blocksOf(s.blocks)
}

// BlockUnion returns a copy of the blocks as a union.
func (s *Schedule) BlockUnion() *interval.Union {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks.Clone()
}

// AddBlock adds [start, end) to the schedulable time. Touching or
// overlapping blocks merge.
func (s *Schedule) AddBlock(start, end int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks.Add(interval.New(start, end))
	s.blocksChanged()
}

// RemoveBlock removes [start, end) from the schedulable time.
func (s *Schedule) RemoveBlock(start, end int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks.Remove(interval.New(start, end))
	s.blocksChanged()
}

// AddObservingNights adds the civil-twilight night starting on each of
// the given number of days from start.
func (s *Schedule) AddObservingNights(start time.Time, nights int) error {
	if nights < 1 {
		return ErrNoNights
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tw := astro.NewTwilight(s.model.Site())
	for i := 0; i < nights; i++ {
		n := tw.NightFor(astro.Civil, start.UnixMilli()+int64(i)*msPerDay)
		s.blocks.Add(n.Interval())
	}
	s.blocksChanged()
	return nil
}

func (s *Schedule) blocksChanged() {
	s.caches.Invalidate(cache.TriggerBlocks)
	s.dirty = true
	s.refreshAll()
	s.bus.Publish(events.EventBlocksChanged, events.Payload{"blocks": s.blocks.Len()})
}

// ExtraSemesters returns the semesters added beyond the current one, sorted.
func (s *Schedule) ExtraSemesters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.extraSemesters))
	for sem := range s.extraSemesters {
		out = append(out, sem)
	}
	sort.Strings(out)
	return out
}

// AddExtraSemester includes a semester known to the model.
func (s *Schedule) AddExtraSemester(semester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.model.HasSemester(semester) {
		return fmt.Errorf("%w: %s", ErrUnknownSemester, semester)
	}
	if _, ok := s.extraSemesters[semester]; !ok {
		s.extraSemesters[semester] = struct{}{}
		s.dirty = true
	}
	return nil
}

// RemoveExtraSemester drops a semester no alloc refers to.
func (s *Schedule) RemoveExtraSemester(semester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.extraSemesters[semester]; !ok {
		return fmt.Errorf("%w: %s", ErrSemesterNotAdded, semester)
	}
	for _, v := range s.variants {
		for _, a := range v.allocs.All() {
			if a.obs.Prog != nil && a.obs.Prog.Semester == semester {
				return fmt.Errorf("%w %s", ErrSemesterInUse, semester)
			}
		}
	}
	delete(s.extraSemesters, semester)
	s.dirty = true
	return nil
}

// IsEmpty reports whether there are no blocks and every variant is empty.
func (s *Schedule) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isEmpty()
}

func (s *Schedule) isEmpty() bool {
	if !s.blocks.IsEmpty() {
		return false
	}
	for _, v := range s.variants {
		if !v.allocs.IsEmpty() {
			return false
		}
	}
	return true
}

// Start returns the earliest block or alloc start.
func (s *Schedule) Start() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isEmpty() {
		return 0, ErrEmptySchedule
	}
	start, _ := s.span()
	return start, nil
}

// End returns the latest block or alloc end.
func (s *Schedule) End() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isEmpty() {
		return 0, ErrEmptySchedule
	}
	_, end := s.span()
	return end, nil
}

// span covers every block and alloc. The schedule must not be empty.
func (s *Schedule) span() (start, end int64) {
	first := true
	take := func(a, b int64) {
		if first {
			start, end, first = a, b, false
			return
		}
		start, end = min(start, a), max(end, b)
	}
	if f, ok := s.blocks.First(); ok {
		l, _ := s.blocks.Last()
		take(f.Start(), l.End())
	}
	for _, v := range s.variants {
		if a, ok := v.allocs.First(); ok {
			e, _ := v.end()
			take(a.Start(), e)
		}
	}
	return start, end
}

// Name describes the schedule by site and final night.
func (s *Schedule) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name := s.model.Site().DisplayName()
	if !s.isEmpty() {
		_, end := s.span()
		name += " - " + time.UnixMilli(end).UTC().Format("20060102")
	}
	return name
}

// MoveAllocs shifts every alloc of every variant by offset. Flags are
// recomputed once at the end.
func (s *Schedule) MoveAllocs(offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.variants {
		v.flagUpdatesOff = true
		for _, a := range v.allocs.All() {
			if _, err := v.moveAlloc(a, a.Start()+offset, a.setup, false); err != nil {
				s.logger.Error().Err(err).Str("alloc", a.String()).Msg("cannot shift alloc")
			}
		}
	}
	s.caches.InvalidateAll()
	for _, v := range s.variants {
		v.caches.InvalidateAll()
		v.setFlagUpdates(true)
	}
}

func (s *Schedule) refreshAll() {
	for _, v := range s.variants {
		v.refreshFlags()
	}
}

// cachedUnion returns the solver's union for obs over [start, end],
// computing and storing it on a miss.
func (s *Schedule) cachedUnion(t *cache.Table[*interval.Union], obs *models.Obs, start, end int64, sv solver.Solver) *interval.Union {
	if u, ok := t.Get(obs.ID); ok {
		return u
	}
	u := sv.Solve(obs, start, end)
	if u == nil {
		u = &interval.Union{}
	}
	t.Put(obs.ID, u)
	return u
}
