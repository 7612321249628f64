/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"cmp"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/solver"
)

// Quantum is the sampling resolution of alloc circumstances.
const Quantum int64 = 30 * 1000

// parallacticWrap is the sample-to-sample jump, in degrees, treated as a
// wrap of the parallactic angle rather than real motion.
const parallacticWrap = 357.0

// SetupType is the fixed overhead preceding an alloc's science steps.
type SetupType int

const (
	SetupNone SetupType = iota
	SetupReacquisition
	SetupFull
)

func (t SetupType) String() string {
	switch t {
	case SetupNone:
		return "NONE"
	case SetupReacquisition:
		return "REACQUISITION"
	case SetupFull:
		return "FULL"
	default:
		return fmt.Sprintf("SetupType(%d)", int(t))
	}
}

// ParseSetupType converts a stored name.
func ParseSetupType(s string) (SetupType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE":
		return SetupNone, nil
	case "REACQUISITION":
		return SetupReacquisition, nil
	case "FULL":
		return SetupFull, nil
	}
	return 0, fmt.Errorf("unknown setup type %q", s)
}

// Duration returns the overhead of t for obs.
func (t SetupType) Duration(obs *models.Obs) int64 {
	switch t {
	case SetupNone:
		return 0
	case SetupFull:
		return obs.Steps.SetupTime
	case SetupReacquisition:
		return obs.Steps.ReacquisitionTime
	}
	panic(fmt.Sprintf("schedule: unknown setup type %d", int(t)))
}

// Grouping places an alloc within a run of allocs from the same
// scheduling group.
type Grouping int

const (
	GroupingNone Grouping = iota
	GroupingFirst
	GroupingMiddle
	GroupingLast
	GroupingSolo
)

func (g Grouping) String() string {
	switch g {
	case GroupingNone:
		return "NONE"
	case GroupingFirst:
		return "FIRST"
	case GroupingMiddle:
		return "MIDDLE"
	case GroupingLast:
		return "LAST"
	case GroupingSolo:
		return "SOLO"
	default:
		return fmt.Sprintf("Grouping(%d)", int(g))
	}
}

// AllocID identifies an alloc within a schedule.
type AllocID string

// Alloc is one scheduled visit: a contiguous step range of an observation
// placed at a start time. Allocs are immutable; edits replace them.
type Alloc struct {
	id      AllocID
	obs     *models.Obs
	variant VariantID
	first   int
	last    int
	setup   SetupType
	iv      interval.Interval
	shutter int64

	circ *circumstances
}

// Span returns the setup overhead plus the durations of the unexecuted
// steps in [first, last].
func Span(obs *models.Obs, first, last int, setup SetupType) int64 {
	sum := setup.Duration(obs)
	for i := first; i <= last; i++ {
		if !obs.Steps.IsExecuted(i) {
			sum += obs.Steps.StepTime(i)
		}
	}
	return sum
}

// newAlloc places a fresh alloc, asking the shutter collaborator how far
// laser closures extend it.
func newAlloc(variant VariantID, obs *models.Obs, start int64, first, last int, setup SetupType, suite solver.Suite) (*Alloc, error) {
	if err := checkSteps(obs, first, last); err != nil {
		return nil, err
	}
	span := Span(obs, first, last, setup)
	base := interval.New(start, start+span)
	shutter := suite.Shutter.Overlap(obs, base)
	return &Alloc{
		id:      AllocID(uuid.NewString()),
		obs:     obs,
		variant: variant,
		first:   first,
		last:    last,
		setup:   setup,
		iv:      base.Plus(shutter),
		shutter: shutter,
		circ:    newCircumstances(suite.Sky),
	}, nil
}

// rehydrateAlloc rebuilds a stored alloc without recomputing its span.
func rehydrateAlloc(id AllocID, variant VariantID, obs *models.Obs, iv interval.Interval, first, last int, setup SetupType, sky solver.Sky) (*Alloc, error) {
	if err := checkSteps(obs, first, last); err != nil {
		return nil, err
	}
	if id == "" {
		id = AllocID(uuid.NewString())
	}
	return &Alloc{
		id:      id,
		obs:     obs,
		variant: variant,
		first:   first,
		last:    last,
		setup:   setup,
		iv:      iv,
		circ:    newCircumstances(sky),
	}, nil
}

func checkSteps(obs *models.Obs, first, last int) error {
	if first < 0 || last < first || last >= obs.Steps.Len() {
		return fmt.Errorf("%w: %s steps %d-%d of %d", ErrStepRange, obs.ID, first, last, obs.Steps.Len())
	}
	return nil
}

// ForDragging returns a detached alloc covering the first unexecuted
// step of obs plus as many following steps as fit within maxLength
// including full setup. At least one step is always included.
func ForDragging(obs *models.Obs, maxLength int64) (*Alloc, error) {
	first := obs.FirstUnexecutedStep()
	if first >= obs.Steps.Len() {
		return nil, fmt.Errorf("%w: %s has no unexecuted steps", ErrStepRange, obs.ID)
	}
	last := first
	dur := obs.Steps.SetupTime + obs.Steps.StepTime(first)
	for last < obs.Steps.Len()-1 {
		next := obs.Steps.StepTime(last + 1)
		if dur+next > maxLength {
			break
		}
		dur += next
		last++
	}
	return newAlloc("", obs, 0, first, last, SetupFull, solver.Suite{}.Complete())
}

func (a *Alloc) ID() AllocID { return a.id }
func (a *Alloc) Obs() *models.Obs { return a.obs }
func (a *Alloc) Variant() VariantID { return a.variant }
func (a *Alloc) FirstStep() int { return a.first }
func (a *Alloc) LastStep() int { return a.last }
func (a *Alloc) SetupType() SetupType { return a.setup }
func (a *Alloc) Interval() interval.Interval { return a.iv }
func (a *Alloc) Start() int64 { return a.iv.Start() }
func (a *Alloc) End() int64 { return a.iv.End() }
func (a *Alloc) Length() int64 { return a.iv.Length() }
func (a *Alloc) Middle() int64 { return a.iv.Middle() }

// ShutterTime returns the extension added for laser shutter closures.
func (a *Alloc) ShutterTime() int64 { return a.shutter }

// SetupTime returns the overhead of the alloc's setup type.
func (a *Alloc) SetupTime() int64 { return a.setup.Duration(a.obs) }

// Size returns the number of circumstance samples, at least one.
func (a *Alloc) Size() int {
	return int(max(1, a.iv.Length()/Quantum))
}

// Contains reports whether t falls inside the alloc.
func (a *Alloc) Contains(t int64) bool { return a.iv.Contains(t) }

// Abuts reports whether the two allocs touch end to start.
func (a *Alloc) Abuts(b *Alloc) bool { return b != nil && a.iv.Abuts(b.iv) }

// Overlaps classifies the alloc against iv.
func (a *Alloc) Overlaps(iv interval.Interval, mode interval.Overlap) bool {
	return a.iv.Overlaps(iv, mode)
}

// IsSuccessor reports whether b continues a's step range.
func (a *Alloc) IsSuccessor(b *Alloc) bool {
	return a.obs.ID == b.obs.ID && a.last+1 == b.first
}

// Compare orders allocs by interval, observation, owning variant, step
// range, setup type and shutter extension. The ID breaks remaining ties.
func (a *Alloc) Compare(b *Alloc) int {
	if c := a.iv.Compare(b.iv); c != 0 {
		return c
	}
	if c := strings.Compare(a.obs.ID, b.obs.ID); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.variant), string(b.variant)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.first, b.first); c != 0 {
		return c
	}
	if c := cmp.Compare(a.last, b.last); c != 0 {
		return c
	}
	if c := cmp.Compare(int(a.setup), int(b.setup)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.shutter, b.shutter); c != 0 {
		return c
	}
	return strings.Compare(string(a.id), string(b.id))
}

func (a *Alloc) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s S%d", a.obs.ID, a.first+1)
	if a.last > a.first {
		fmt.Fprintf(&b, "-%d", a.last+1)
	}
	return b.String()
}

// Min returns the smallest sampled value of c, ignoring missing samples.
// ok is false when no sample is available.
func (a *Alloc) Min(c solver.Circumstance, includeSetup bool) (float64, bool) {
	return minOf(a.samples(c, includeSetup))
}

// Max returns the largest sampled value of c.
func (a *Alloc) Max(c solver.Circumstance, includeSetup bool) (float64, bool) {
	return maxOf(a.samples(c, includeSetup))
}

// Mean returns the average sampled value of c.
func (a *Alloc) Mean(c solver.Circumstance, includeSetup bool) (float64, bool) {
	return meanOf(a.samples(c, includeSetup))
}

// samples returns the series for c. Parallactic angle is made continuous
// before use.
func (a *Alloc) samples(c solver.Circumstance, includeSetup bool) []float64 {
	visit, science := a.circ.get(a)
	series := science
	if includeSetup {
		series = visit
	}
	vals := series[c]
	if c == solver.ParallacticAngle {
		return ContinuousParallacticAngle(vals)
	}
	return vals
}

// circumstances lazily samples the sky across an alloc. It is shared by
// pointer so copies of an alloc compute it once.
type circumstances struct {
	sky     solver.Sky
	once    sync.Once
	visit   map[solver.Circumstance][]float64
	science map[solver.Circumstance][]float64
}

func newCircumstances(sky solver.Sky) *circumstances {
	if sky == nil {
		sky = solver.NoSky{}
	}
	return &circumstances{sky: sky}
}

func (c *circumstances) get(a *Alloc) (visit, science map[solver.Circumstance][]float64) {
	c.once.Do(func() { c.compute(a) })
	return c.visit, c.science
}

func (c *circumstances) compute(a *Alloc) {
	size := a.Size()
	all := solver.Circumstances()

	c.visit = make(map[solver.Circumstance][]float64, len(all))
	for _, circ := range all {
		c.visit[circ] = make([]float64, size)
	}
	for i := 0; i < size; i++ {
		s := c.sky.Sample(a.obs, a.Start()+Quantum*int64(i))
		for _, circ := range all {
			c.visit[circ][i] = s.Value(circ)
		}
	}

	if a.setup == SetupNone {
		c.science = c.visit
		return
	}

	// Science samples start at the first quantum past setup, or the last
	// sample so there is always one.
	n := min(int(a.SetupTime()/Quantum), size-1)
	c.science = make(map[solver.Circumstance][]float64, len(all))
	for _, circ := range all {
		vals := make([]float64, size)
		for i := range vals[:n] {
			vals[i] = math.NaN()
		}
		copy(vals[n:], c.visit[circ][n:])
		c.science[circ] = vals
	}
}

// ContinuousParallacticAngle removes the ±180° wrap from a series of
// parallactic angles. A jump of more than 357° between two raw samples
// sets a correction of +360 (if the earlier sample was positive) or -360
// that applies to every following sample. NaN marks a missing sample.
func ContinuousParallacticAngle(vals []float64) []float64 {
	out := make([]float64, len(vals))
	correction := 0.0
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		if i > 0 && !math.IsNaN(vals[i-1]) {
			last := vals[i-1]
			if math.Abs(last-v) > parallacticWrap {
				if last > 0 {
					correction = 360
				} else {
					correction = -360
				}
			}
		}
		out[i] = v + correction
	}
	return out
}

func minOf(vals []float64) (float64, bool) {
	out, ok := 0.0, false
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if !ok || v < out {
			out, ok = v, true
		}
	}
	return out, ok
}

func maxOf(vals []float64) (float64, bool) {
	out, ok := 0.0, false
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if !ok || v > out {
			out, ok = v, true
		}
	}
	return out, ok
}

func meanOf(vals []float64) (float64, bool) {
	sum, n := 0.0, 0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
