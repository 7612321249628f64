/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduleio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/astro"
	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/telemetry"
)

// Migration upgrades a document payload written at version From to the
// next schema version.
type Migration struct {
	From  int
	Name  string
	Apply func(payload map[string]any, site models.Site, logger zerolog.Logger) error
}

// Migrations lists every schema step in ascending order. A document at
// version v passes through every step whose From is at least v.
var Migrations = []Migration{
	{From: VersionPre104, Name: "site option facilities", Apply: addFacilities(pre104Facilities)},
	{From: Version104, Name: "setup type", Apply: migrateSetupRequired},
	{From: Version1030, Name: "instrument option facilities", Apply: addFacilities(v1031Facilities)},
	{From: Version1031, Name: "civil twilight blocks", Apply: migrateNauticalBlocks},
}

// Migrate brings doc up to CurrentVersion in place and returns the number
// of steps applied.
func Migrate(doc *Document, logger zerolog.Logger) (int, error) {
	if doc.Version == CurrentVersion {
		return 0, nil
	}
	site, err := doc.Site()
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, m := range Migrations {
		if m.From < doc.Version {
			continue
		}
		logger.Debug().Int("from", m.From).Str("migration", m.Name).Msg("migrating plan document")
		if err := m.Apply(doc.Schedule, site, logger); err != nil {
			return applied, fmt.Errorf("migrate from %d (%s): %w", m.From, m.Name, err)
		}
		telemetry.DocumentMigrationsTotal.WithLabelValues(strconv.Itoa(m.From)).Inc()
		applied++
	}
	doc.Version = CurrentVersion
	return applied, nil
}

func pre104Facilities(site models.Site) [][]models.Facility {
	switch site {
	case models.SiteSouth:
		return [][]models.Facility{
			models.GmosSouthFilters,
			models.GnirsDispersers,
			models.GnirsSlitWidths,
			models.TrecsDispersers,
			models.TrecsMasks,
		}
	case models.SiteNorth:
		return [][]models.Facility{models.GmosNorthFilters}
	}
	return nil
}

func v1031Facilities(site models.Site) [][]models.Facility {
	switch site {
	case models.SiteSouth:
		return [][]models.Facility{
			models.F2Dispersers,
			models.F2Filters,
			models.GmosUseNS,
			models.PreImaging,
			models.GnirsCrossDispersed,
			models.GnirsFilters,
			models.GnirsCameras,
			models.GpiDispersers,
			models.GpiFilters,
			models.GsaoiFilters,
			models.NiciFocalPlaneMasks,
			models.NiciDichroicWheel,
			models.NiciChannel1Wheel,
			models.NiciChannel2Wheel,
			models.TexesDispersers,
		}
	case models.SiteNorth:
		return [][]models.Facility{
			models.GmosUseNS,
			models.PreImaging,
			models.NifsDispersers,
			models.NifsFilters,
			models.NifsMasks,
			models.NiriMasks,
			models.NiriDispersers,
			models.NiriCameras,
		}
	}
	return nil
}

// addFacilities returns a step that adds the site's option groups to the
// facility list, keeping entries already present.
func addFacilities(groups func(models.Site) [][]models.Facility) func(map[string]any, models.Site, zerolog.Logger) error {
	return func(payload map[string]any, site models.Site, logger zerolog.Logger) error {
		var list []any
		switch raw := payload["facilities"].(type) {
		case nil:
		case []any:
			list = raw
		default:
			return fmt.Errorf("%w: facilities is %T", ErrMalformed, raw)
		}
		have := make(map[string]bool, len(list))
		for _, f := range list {
			have[fmt.Sprint(f)] = true
		}
		added := 0
		for _, g := range groups(site) {
			for _, f := range g {
				if !have[string(f)] {
					have[string(f)] = true
					list = append(list, string(f))
					added++
				}
			}
		}
		payload["facilities"] = list
		logger.Debug().Int("added", added).Msg("added site facilities")
		return nil
	}
}

// migrateSetupRequired rewrites every "setupRequired" flag in the payload
// as a "setupType" of FULL or NONE. A missing or unreadable flag meant
// setup was required.
func migrateSetupRequired(payload map[string]any, _ models.Site, logger zerolog.Logger) error {
	walkMaps(payload, func(m map[string]any) {
		raw, ok := m["setupRequired"]
		if !ok {
			return
		}
		required := true
		switch v := raw.(type) {
		case bool:
			required = v
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				required = b
			}
		}
		delete(m, "setupRequired")
		if required {
			m["setupType"] = "FULL"
		} else {
			m["setupType"] = "NONE"
		}
		logger.Info().Bool("setup_required", required).Interface("setup_type", m["setupType"]).Msg("migrated setupRequired to setupType")
	})
	for _, a := range allocMaps(payload) {
		if _, ok := a["setupType"]; !ok {
			a["setupType"] = "FULL"
		}
	}
	return nil
}

// migrateNauticalBlocks replaces blocks that span exactly a nautical
// night with the civil night of the same date.
func migrateNauticalBlocks(payload map[string]any, site models.Site, logger zerolog.Logger) error {
	blocks, _ := payload["blocks"].([]any)
	tw := astro.NewTwilight(site)
	for _, raw := range blocks {
		b, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: block is %T", ErrMalformed, raw)
		}
		start, ok1 := asInt64(b["start"])
		end, ok2 := asInt64(b["end"])
		if !ok1 || !ok2 {
			return fmt.Errorf("%w: block bounds are not integers", ErrMalformed)
		}
		n := tw.NightFor(astro.Nautical, start)
		if n.Start != start || n.End != end {
			continue
		}
		c := tw.NightFor(astro.Civil, start)
		b["start"], b["end"] = c.Start, c.End
		logger.Info().Int64("start", start).Int64("civil_start", c.Start).Msg("moved nautical night block to civil twilight")
	}
	return nil
}

// walkMaps calls fn on every mapping in the tree, depth first.
func walkMaps(v any, fn func(map[string]any)) {
	switch t := v.(type) {
	case map[string]any:
		fn(t)
		for _, e := range t {
			walkMaps(e, fn)
		}
	case []any:
		for _, e := range t {
			walkMaps(e, fn)
		}
	}
}

func allocMaps(payload map[string]any) []map[string]any {
	var out []map[string]any
	variants, _ := payload["variants"].([]any)
	for _, rv := range variants {
		v, ok := rv.(map[string]any)
		if !ok {
			continue
		}
		allocs, _ := v["allocs"].([]any)
		for _, ra := range allocs {
			if a, ok := ra.(map[string]any); ok {
				out = append(out, a)
			}
		}
	}
	return out
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	}
	return 0, false
}
