/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownSite          = errors.New("unknown site")
	ErrInvalidConditions    = errors.New("invalid conditions")
	ErrUnknownProgram       = errors.New("unknown program")
	ErrDuplicateObservation = errors.New("duplicate observation")
	ErrUnknownGroup         = errors.New("unknown group")
)

// MiniModel is the slice of the observing database a plan is built
// against: the programs and observations schedulable at one site.
type MiniModel struct {
	site      Site
	programs  []*Prog
	progByID  map[string]*Prog
	obs       []*Obs
	obsByID   map[string]*Obs
	semesters map[string]struct{}
}

// NewMiniModel creates an empty model for site. Extra semesters are
// recorded even when no program belongs to them.
func NewMiniModel(site Site, semesters ...string) *MiniModel {
	m := &MiniModel{
		site:      site,
		progByID:  make(map[string]*Prog),
		obsByID:   make(map[string]*Obs),
		semesters: make(map[string]struct{}),
	}
	for _, s := range semesters {
		m.semesters[s] = struct{}{}
	}
	return m
}

// AddProgram registers a program.
func (m *MiniModel) AddProgram(p *Prog) {
	if _, ok := m.progByID[p.ID]; ok {
		return
	}
	m.programs = append(m.programs, p)
	m.progByID[p.ID] = p
	if p.Semester != "" {
		m.semesters[p.Semester] = struct{}{}
	}
}

// AddObs attaches an observation to a registered program.
func (m *MiniModel) AddObs(progID string, o *Obs) error {
	p, ok := m.progByID[progID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, progID)
	}
	if _, dup := m.obsByID[o.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateObservation, o.ID)
	}
	o.Prog = p
	p.obs = append(p.obs, o)
	m.obs = append(m.obs, o)
	m.obsByID[o.ID] = o
	return nil
}

// Site returns the model's site.
func (m *MiniModel) Site() Site { return m.site }

// Obs looks up an observation by ID; nil if absent.
func (m *MiniModel) Obs(id string) *Obs { return m.obsByID[id] }

// Observations returns every observation in model order.
func (m *MiniModel) Observations() []*Obs { return append([]*Obs(nil), m.obs...) }

// Programs returns every program in model order.
func (m *MiniModel) Programs() []*Prog { return append([]*Prog(nil), m.programs...) }

// Program looks up a program by ID; nil if absent.
func (m *MiniModel) Program(id string) *Prog { return m.progByID[id] }

// AllSemesters returns every semester known to the model, sorted.
func (m *MiniModel) AllSemesters() []string {
	out := make([]string, 0, len(m.semesters))
	for s := range m.semesters {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// HasSemester reports whether semester is known to the model.
func (m *MiniModel) HasSemester(semester string) bool {
	_, ok := m.semesters[semester]
	return ok
}

// ModelFile is the YAML layout of a mini-model.
type ModelFile struct {
	Site      string        `yaml:"site"`
	Semesters []string      `yaml:"semesters,omitempty"`
	Programs  []ProgramFile `yaml:"programs"`
}

// ProgramFile is one program in a ModelFile.
type ProgramFile struct {
	Prog         `yaml:",inline"`
	Groups       []Group   `yaml:"groups,omitempty"`
	Observations []ObsFile `yaml:"observations"`
}

// ObsFile is one observation in a ProgramFile.
type ObsFile struct {
	Obs   `yaml:",inline"`
	Group string `yaml:"group,omitempty"`
}

// LoadModelYAML decodes a mini-model from YAML.
func LoadModelYAML(r io.Reader) (*MiniModel, error) {
	var f ModelFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return f.Build()
}

// Build converts the file layout into a linked MiniModel.
func (f ModelFile) Build() (*MiniModel, error) {
	site, err := ParseSite(f.Site)
	if err != nil {
		return nil, err
	}
	m := NewMiniModel(site, f.Semesters...)
	for i := range f.Programs {
		pf := &f.Programs[i]
		prog := pf.Prog
		p := &prog
		m.AddProgram(p)

		groups := make(map[string]*Group, len(pf.Groups))
		for j := range pf.Groups {
			g := pf.Groups[j]
			groups[g.ID] = &g
		}
		for j := range pf.Observations {
			of := pf.Observations[j]
			o := of.Obs
			if o.TooType == "" {
				o.TooType = TooNone
			}
			if err := o.Conditions.Validate(); err != nil {
				return nil, fmt.Errorf("observation %s: %w", o.ID, err)
			}
			if of.Group != "" {
				g, ok := groups[of.Group]
				if !ok {
					return nil, fmt.Errorf("%w: %s in %s", ErrUnknownGroup, of.Group, p.ID)
				}
				o.Group = g
			}
			obs := o
			if err := m.AddObs(p.ID, &obs); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
