/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduleio

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/queueplanner/internal/interval"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/schedule"
)

// Document schema versions. A document without a version field predates
// versioning and is read as VersionPre104.
const (
	VersionPre104  = 0
	Version104     = 104
	Version1030    = 1030
	Version1031    = 1031
	Version1032    = 1032
	CurrentVersion = Version1032
)

var knownVersions = map[int]bool{
	VersionPre104: true,
	Version104:    true,
	Version1030:   true,
	Version1031:   true,
	Version1032:   true,
}

var (
	ErrNewerVersion   = errors.New("document was written by a newer version")
	ErrUnknownVersion = errors.New("unknown document version")
	ErrMalformed      = errors.New("malformed plan document")
	ErrUnknownSite    = errors.New("document site cannot be resolved")
)

// Document is a plan document as read from storage. Schedule holds the
// untyped payload so migrations can rewrite it before it is decoded.
type Document struct {
	Version  int
	Digest   string
	Schedule map[string]any
}

// Site resolves the document's site.
func (d *Document) Site() (models.Site, error) {
	raw, _ := d.Schedule["site"].(string)
	site, err := models.ParseSite(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownSite, raw)
	}
	return site, nil
}

// envelope is the on-disk layout of a document being written.
type envelope struct {
	Version  int         `yaml:"version"`
	Digest   string      `yaml:"digest"`
	Schedule scheduleDoc `yaml:"schedule"`
}

type scheduleDoc struct {
	Site           string       `yaml:"site"`
	Comment        string       `yaml:"comment,omitempty"`
	Facilities     []string     `yaml:"facilities"`
	ExtraSemesters []string     `yaml:"extraSemesters,omitempty"`
	ICTD           *ictdDoc     `yaml:"ictd,omitempty"`
	Blocks         []blockDoc   `yaml:"blocks"`
	Variants       []variantDoc `yaml:"variants"`
}

type ictdDoc struct {
	Features map[string]string `yaml:"features,omitempty"`
	Masks    []maskDoc         `yaml:"masks,omitempty"`
}

type maskDoc struct {
	Program      string `yaml:"program"`
	Name         string `yaml:"name"`
	Availability string `yaml:"availability"`
}

type blockDoc struct {
	Start int64 `yaml:"start"`
	End   int64 `yaml:"end"`
}

type variantDoc struct {
	ID         string                   `yaml:"id"`
	Name       string                   `yaml:"name"`
	Comment    string                   `yaml:"comment,omitempty"`
	Conditions models.Conds             `yaml:"conditions"`
	Wind       *models.ApproximateAngle `yaml:"wind,omitempty"`
	LGS        bool                     `yaml:"lgs"`
	Allocs     []allocDoc               `yaml:"allocs,omitempty"`
}

type allocDoc struct {
	ID        string `yaml:"id"`
	Obs       string `yaml:"obs"`
	Start     int64  `yaml:"start"`
	End       int64  `yaml:"end"`
	FirstStep int    `yaml:"firstStep"`
	LastStep  int    `yaml:"lastStep"`
	SetupType string `yaml:"setupType"`
	Comment   string `yaml:"comment,omitempty"`
}

// Decode reads a document without migrating or verifying it.
func Decode(r io.Reader) (*Document, error) {
	var raw struct {
		Version  *int           `yaml:"version"`
		Digest   string         `yaml:"digest"`
		Schedule map[string]any `yaml:"schedule"`
	}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Schedule == nil {
		return nil, fmt.Errorf("%w: missing schedule section", ErrMalformed)
	}
	doc := &Document{Version: VersionPre104, Digest: raw.Digest, Schedule: raw.Schedule}
	if raw.Version != nil {
		doc.Version = *raw.Version
	}
	if doc.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: %d > %d", ErrNewerVersion, doc.Version, CurrentVersion)
	}
	if !knownVersions[doc.Version] {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, doc.Version)
	}
	return doc, nil
}

// Digest hashes a schedule payload. Map keys are ordered, so two payloads
// with the same content hash identically however they were written.
func Digest(payload map[string]any) (string, error) {
	data, err := json.Marshal(canonical(payload))
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// canonical converts YAML maps with non-string keys so the tree can be
// marshalled as JSON.
func canonical(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = canonical(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = canonical(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonical(e)
		}
		return out
	default:
		return v
	}
}

// encodeState converts a schedule state into its document layout.
func encodeState(st schedule.State) scheduleDoc {
	doc := scheduleDoc{
		Site:           string(st.Site),
		Comment:        st.Comment,
		Facilities:     make([]string, 0, len(st.Facilities)),
		ExtraSemesters: st.ExtraSemesters,
		Blocks:         make([]blockDoc, 0, len(st.Blocks)),
		Variants:       make([]variantDoc, 0, len(st.Variants)),
	}
	for _, f := range st.Facilities {
		doc.Facilities = append(doc.Facilities, string(f))
	}
	if st.ICTD != nil {
		doc.ICTD = &ictdDoc{Features: make(map[string]string, len(st.ICTD.Features))}
		for f, a := range st.ICTD.Features {
			doc.ICTD.Features[string(f)] = string(a)
		}
		for k, a := range st.ICTD.Masks {
			doc.ICTD.Masks = append(doc.ICTD.Masks, maskDoc{Program: k.Program, Name: k.Name, Availability: string(a)})
		}
	}
	for _, b := range st.Blocks {
		doc.Blocks = append(doc.Blocks, blockDoc{Start: b.Start(), End: b.End()})
	}
	for _, vs := range st.Variants {
		vd := variantDoc{
			ID:         string(vs.ID),
			Name:       vs.Name,
			Comment:    vs.Comment,
			Conditions: vs.Conds,
			Wind:       vs.Wind,
			LGS:        vs.LGS,
		}
		for _, as := range vs.Allocs {
			vd.Allocs = append(vd.Allocs, allocDoc{
				ID:        string(as.ID),
				Obs:       as.Obs,
				Start:     as.Start,
				End:       as.End,
				FirstStep: as.First,
				LastStep:  as.Last,
				SetupType: as.Setup.String(),
				Comment:   as.Comment,
			})
		}
		doc.Variants = append(doc.Variants, vd)
	}
	doc.normalize()
	return doc
}

// normalize puts every unordered collection in a fixed order.
func (d *scheduleDoc) normalize() {
	sort.Strings(d.Facilities)
	sort.Strings(d.ExtraSemesters)
	if d.ICTD != nil {
		sort.Slice(d.ICTD.Masks, func(i, j int) bool {
			a, b := d.ICTD.Masks[i], d.ICTD.Masks[j]
			if a.Program != b.Program {
				return a.Program < b.Program
			}
			return a.Name < b.Name
		})
	}
}

// decodeState converts the document layout into a schedule state.
func (d scheduleDoc) decodeState() (schedule.State, error) {
	site, err := models.ParseSite(d.Site)
	if err != nil {
		return schedule.State{}, fmt.Errorf("%w: %q", ErrUnknownSite, d.Site)
	}
	st := schedule.State{
		Site:           site,
		Comment:        d.Comment,
		ExtraSemesters: d.ExtraSemesters,
	}
	for _, f := range d.Facilities {
		st.Facilities = append(st.Facilities, models.Facility(f))
	}
	if d.ICTD != nil {
		ictd := &models.ICTDSummary{
			Features: make(map[models.Facility]models.Availability, len(d.ICTD.Features)),
			Masks:    make(map[models.MaskKey]models.Availability, len(d.ICTD.Masks)),
		}
		for f, raw := range d.ICTD.Features {
			a, err := models.ParseAvailability(raw)
			if err != nil {
				return schedule.State{}, fmt.Errorf("%w: ictd %s: %v", ErrMalformed, f, err)
			}
			ictd.Features[models.Facility(f)] = a
		}
		for _, m := range d.ICTD.Masks {
			a, err := models.ParseAvailability(m.Availability)
			if err != nil {
				return schedule.State{}, fmt.Errorf("%w: ictd mask %s: %v", ErrMalformed, m.Name, err)
			}
			ictd.Masks[models.MaskKey{Program: m.Program, Name: m.Name}] = a
		}
		st.ICTD = ictd
	}
	for _, b := range d.Blocks {
		if b.End < b.Start {
			return schedule.State{}, fmt.Errorf("%w: block ends before it starts", ErrMalformed)
		}
		st.Blocks = append(st.Blocks, interval.New(b.Start, b.End))
	}
	for _, vd := range d.Variants {
		vs := schedule.VariantState{
			ID:      schedule.VariantID(vd.ID),
			Name:    vd.Name,
			Comment: vd.Comment,
			Conds:   vd.Conditions,
			Wind:    vd.Wind,
			LGS:     vd.LGS,
		}
		for _, ad := range vd.Allocs {
			if ad.End < ad.Start {
				return schedule.State{}, fmt.Errorf("%w: alloc %s ends before it starts", ErrMalformed, ad.ID)
			}
			setup, err := schedule.ParseSetupType(ad.SetupType)
			if err != nil {
				return schedule.State{}, fmt.Errorf("%w: alloc %s: %v", ErrMalformed, ad.ID, err)
			}
			vs.Allocs = append(vs.Allocs, schedule.AllocState{
				ID:      schedule.AllocID(ad.ID),
				Obs:     ad.Obs,
				Start:   ad.Start,
				End:     ad.End,
				First:   ad.FirstStep,
				Last:    ad.LastStep,
				Setup:   setup,
				Comment: ad.Comment,
			})
		}
		st.Variants = append(st.Variants, vs)
	}
	return st, nil
}

// typed decodes a migrated payload into the current layout.
func typed(payload map[string]any) (scheduleDoc, error) {
	var d scheduleDoc
	data, err := yaml.Marshal(payload)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	d.normalize()
	return d, nil
}

// untyped returns the generic tree of d, the form the digest covers.
func untyped(d scheduleDoc) (map[string]any, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	var payload map[string]any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	return payload, nil
}
