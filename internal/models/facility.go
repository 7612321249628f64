/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"sort"
	"strings"
)

// Facility names an instrument or one configuration option of an
// instrument. Instruments are written "GMOS-N"; options are written
// "<group>/<value>", for example "GMOS-N.filter/g_G0301".
type Facility string

// Option builds the facility name of an instrument option.
func Option(group, value string) Facility {
	return Facility(group + "/" + value)
}

// Group returns the option group, or "" for an instrument.
func (f Facility) Group() string {
	if i := strings.LastIndex(string(f), "/"); i >= 0 {
		return string(f)[:i]
	}
	return ""
}

// IsInstrument reports whether f names an instrument rather than an option.
func (f Facility) IsInstrument() bool { return f.Group() == "" }

// Availability is the ICTD state of a facility or custom mask.
type Availability string

const (
	Installed     Availability = "Installed"
	SummitCabinet Availability = "SummitCabinet"
	Missing       Availability = "Missing"
)

// ParseAvailability converts a stored name.
func ParseAvailability(s string) (Availability, error) {
	switch Availability(s) {
	case Installed, SummitCabinet, Missing:
		return Availability(s), nil
	}
	return "", fmt.Errorf("unknown availability %q", s)
}

// MaskKey identifies a custom mask by owning program and mask name.
type MaskKey struct {
	Program string
	Name    string
}

// ICTDSummary is the instrument configuration tracking snapshot: which
// facilities and custom masks are physically available.
type ICTDSummary struct {
	Features map[Facility]Availability
	Masks    map[MaskKey]Availability
}

// FacilitySet is an unordered set of facilities.
type FacilitySet map[Facility]struct{}

// NewFacilitySet builds a set from the given facilities.
func NewFacilitySet(fs ...Facility) FacilitySet {
	s := make(FacilitySet, len(fs))
	for _, f := range fs {
		s[f] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s FacilitySet) Has(f Facility) bool {
	_, ok := s[f]
	return ok
}

// Add inserts every facility.
func (s FacilitySet) Add(fs ...Facility) {
	for _, f := range fs {
		s[f] = struct{}{}
	}
}

// Remove deletes every facility.
func (s FacilitySet) Remove(fs ...Facility) {
	for _, f := range fs {
		delete(s, f)
	}
}

// Sorted returns the members in lexical order.
func (s FacilitySet) Sorted() []Facility {
	out := make([]Facility, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy.
func (s FacilitySet) Clone() FacilitySet {
	c := make(FacilitySet, len(s))
	for f := range s {
		c[f] = struct{}{}
	}
	return c
}

// Instrument describes one instrument's configurable options per site.
type Instrument struct {
	Name              Facility
	Sites             []Site
	NormallyAvailable bool
	// Options lists every configurable option; Unavailable marks those
	// not offered by default.
	Options     []Facility
	Unavailable []Facility
	// Hidden options are always present in a schedule's facility set.
	Hidden []Facility
	// CustomMasks are the options meaning "use a custom mask".
	CustomMasks []Facility
}

// ExistsAt reports whether the instrument is installed at site.
func (in Instrument) ExistsAt(site Site) bool {
	for _, s := range in.Sites {
		if s == site {
			return true
		}
	}
	return false
}

// IsNormallyAvailable reports whether option is offered by default.
func (in Instrument) IsNormallyAvailable(option Facility) bool {
	for _, u := range in.Unavailable {
		if u == option {
			return false
		}
	}
	return true
}

func options(group string, values ...string) []Facility {
	out := make([]Facility, len(values))
	for i, v := range values {
		out[i] = Option(group, v)
	}
	return out
}

func concat(groups ...[]Facility) []Facility {
	var out []Facility
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Option groups referenced by schedule document migrations.
var (
	GmosNorthFilters = options("GMOS-N.filter", "g_G0301", "r_G0303", "i_G0302", "z_G0304", "Ha_G0310", "OIII_G0318")
	GmosSouthFilters = options("GMOS-S.filter", "g_G0325", "r_G0326", "i_G0327", "z_G0328", "Ha_G0336", "OIII_G0338")
	GmosNorthFPU     = options("GMOS-N.fpu", "longslit_1", "longslit_2", "ifu_1", "custom_mask")
	GmosSouthFPU     = options("GMOS-S.fpu", "longslit_1", "longslit_2", "ifu_1", "custom_mask")
	GmosUseNS        = options("GMOS.useNS", "true", "false")
	PreImaging       = options("preimaging", "true", "false")

	GnirsDispersers     = options("GNIRS.disperser", "D_10", "D_32", "D_111")
	GnirsSlitWidths     = options("GNIRS.slitWidth", "0.10", "0.15", "0.30", "0.45", "1.00")
	GnirsCrossDispersed = options("GNIRS.crossDispersed", "NO", "SXD", "LXD")
	GnirsFilters        = options("GNIRS.filter", "X", "J", "H", "K", "L", "M")
	GnirsCameras        = options("GNIRS.camera", "short_red", "long_red", "short_blue", "long_blue")

	TrecsDispersers = options("TReCS.disperser", "mirror", "lowres10", "lowres20", "hires10")
	TrecsMasks      = options("TReCS.mask", "0.21", "0.26", "0.31", "0.35", "0.65", "1.30")

	F2Dispersers = options("F2.disperser", "none", "R1200JH", "R1200HK", "R3000")
	F2Filters    = options("F2.filter", "Y", "J", "H", "Ks", "JH", "HK")

	GpiDispersers = options("GPI.disperser", "prism", "wollaston")
	GpiFilters    = options("GPI.filter", "Y", "J", "H", "K1", "K2")
	GsaoiFilters  = options("GSAOI.filter", "Z", "J", "H", "Kshort", "K", "BrGamma")

	NiciFocalPlaneMasks = options("NICI.fpm", "0.90", "0.65", "0.46", "0.32", "0.22", "open")
	NiciDichroicWheel   = options("NICI.dichroic", "H_50_50", "Mirror", "Open")
	NiciChannel1Wheel   = options("NICI.ch1", "CH4_H4S", "Ks", "Br_gamma", "Kcont")
	NiciChannel2Wheel   = options("NICI.ch2", "CH4_H4L", "J", "H", "Kprime")

	TexesDispersers = options("TEXES.disperser", "D_32_LMM", "D_75_LMM", "E_D_32_LMM", "E_D_75_LMM")

	NifsDispersers = options("NIFS.disperser", "Z", "J", "H", "K", "K_SHORT", "K_LONG")
	NifsFilters    = options("NIFS.filter", "ZJ", "JH", "HK")
	NifsMasks      = options("NIFS.mask", "CLEAR", "OD_1", "OD_2", "KG3_ND")

	NiriMasks      = options("NIRI.mask", "f6_2pix", "f6_4pix", "f6_6pix", "f32_4pix")
	NiriDispersers = options("NIRI.disperser", "none", "J", "H", "L", "M")
	NiriCameras    = options("NIRI.camera", "f6", "f14", "f32")
)

// Instruments is the facility catalogue.
var Instruments = []Instrument{
	{
		Name: "GMOS-N", Sites: []Site{SiteNorth}, NormallyAvailable: true,
		Options:     concat(GmosNorthFilters, GmosNorthFPU, GmosUseNS, PreImaging),
		CustomMasks: []Facility{Option("GMOS-N.fpu", "custom_mask")},
	},
	{
		Name: "GMOS-S", Sites: []Site{SiteSouth}, NormallyAvailable: true,
		Options:     concat(GmosSouthFilters, GmosSouthFPU, GmosUseNS, PreImaging),
		CustomMasks: []Facility{Option("GMOS-S.fpu", "custom_mask")},
	},
	{
		Name: "GNIRS", Sites: []Site{SiteNorth, SiteSouth}, NormallyAvailable: true,
		Options:     concat(GnirsDispersers, GnirsSlitWidths, GnirsCrossDispersed, GnirsFilters, GnirsCameras),
		Unavailable: []Facility{Option("GNIRS.crossDispersed", "LXD")},
	},
	{
		Name: "NIRI", Sites: []Site{SiteNorth}, NormallyAvailable: true,
		Options: concat(NiriMasks, NiriDispersers, NiriCameras),
	},
	{
		Name: "NIFS", Sites: []Site{SiteNorth}, NormallyAvailable: true,
		Options: concat(NifsDispersers, NifsFilters, NifsMasks),
	},
	{
		Name: "F2", Sites: []Site{SiteSouth}, NormallyAvailable: true,
		Options: concat(F2Dispersers, F2Filters, PreImaging),
	},
	{
		Name: "GPI", Sites: []Site{SiteSouth}, NormallyAvailable: false,
		Options: concat(GpiDispersers, GpiFilters),
	},
	{
		Name: "GSAOI", Sites: []Site{SiteSouth}, NormallyAvailable: true,
		Options: GsaoiFilters,
	},
	{
		Name: "TReCS", Sites: []Site{SiteSouth}, NormallyAvailable: false,
		Options: concat(TrecsDispersers, TrecsMasks),
	},
	{
		Name: "NICI", Sites: []Site{SiteSouth}, NormallyAvailable: false,
		Options: concat(NiciFocalPlaneMasks, NiciDichroicWheel, NiciChannel1Wheel, NiciChannel2Wheel),
	},
	{
		Name: "TEXES", Sites: []Site{SiteNorth, SiteSouth}, NormallyAvailable: false,
		Options: TexesDispersers,
	},
	{
		Name: "Visitor", Sites: []Site{SiteNorth, SiteSouth}, NormallyAvailable: true,
		Hidden: []Facility{Option("Visitor.config", "any")},
	},
}

// DefaultFacilities returns the instruments and options normally offered at site.
func DefaultFacilities(site Site) FacilitySet {
	s := NewFacilitySet()
	for _, in := range Instruments {
		if !in.ExistsAt(site) {
			continue
		}
		if in.NormallyAvailable {
			s.Add(in.Name)
		}
		for _, o := range in.Options {
			if in.IsNormallyAvailable(o) {
				s.Add(o)
			}
		}
	}
	return s
}

// HiddenFacilities returns the options every schedule carries regardless of site.
func HiddenFacilities() []Facility {
	var out []Facility
	for _, in := range Instruments {
		out = append(out, in.Hidden...)
	}
	return out
}

// IsCustomMask reports whether f is a "custom mask" option.
func IsCustomMask(f Facility) bool {
	for _, in := range Instruments {
		for _, m := range in.CustomMasks {
			if m == f {
				return true
			}
		}
	}
	return false
}
