/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/schedule"
	"github.com/friendsincode/queueplanner/internal/solver"
)

type planSummary struct {
	Document       string             `json:"document"`
	Name           string             `json:"name"`
	Site           models.Site        `json:"site"`
	Comment        string             `json:"comment,omitempty"`
	Dirty          bool               `json:"dirty"`
	Start          *int64             `json:"start,omitempty"`
	End            *int64             `json:"end,omitempty"`
	Blocks         int                `json:"blocks"`
	Variants       int                `json:"variants"`
	CurrentVariant schedule.VariantID `json:"current_variant,omitempty"`
	Facilities     []models.Facility  `json:"facilities"`
	ExtraSemesters []string           `json:"extra_semesters"`
}

type blockResponse struct {
	Label string `json:"label"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

type variantResponse struct {
	ID         schedule.VariantID       `json:"id"`
	Name       string                   `json:"name"`
	Comment    string                   `json:"comment,omitempty"`
	Conditions models.Conds             `json:"conditions"`
	Wind       *models.ApproximateAngle `json:"wind,omitempty"`
	LGS        bool                     `json:"lgs"`
	Allocs     int                      `json:"allocs"`
	Severity   string                   `json:"severity,omitempty"`
}

type flagsResponse struct {
	Obs   string   `json:"obs"`
	Flags []string `json:"flags"`
	Score float64  `json:"score"`
}

type rangeStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

type allocResponse struct {
	ID            schedule.AllocID      `json:"id"`
	Obs           string                `json:"obs"`
	Start         int64                 `json:"start"`
	End           int64                 `json:"end"`
	FirstStep     int                   `json:"first_step"`
	LastStep      int                   `json:"last_step"`
	SetupType     string                `json:"setup_type"`
	Grouping      string                `json:"grouping"`
	Comment       string                `json:"comment,omitempty"`
	Circumstances map[string]rangeStats `json:"circumstances"`
	Markers       []schedule.Marker     `json:"markers,omitempty"`
}

func (a *API) handlePlanSummary(w http.ResponseWriter, r *http.Request) {
	doc, plan := a.Plan()
	out := planSummary{
		Document:       doc,
		Name:           plan.Name(),
		Site:           plan.Site(),
		Comment:        plan.Comment(),
		Dirty:          plan.IsDirty(),
		Blocks:         len(plan.Blocks()),
		Variants:       len(plan.Variants()),
		Facilities:     plan.Facilities(),
		ExtraSemesters: plan.ExtraSemesters(),
	}
	if start, err := plan.Start(); err == nil {
		out.Start = &start
	}
	if end, err := plan.End(); err == nil {
		out.End = &end
	}
	if cur := plan.CurrentVariant(); cur != nil {
		out.CurrentVariant = cur.ID()
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleBlocks(w http.ResponseWriter, r *http.Request) {
	_, plan := a.Plan()
	blocks := plan.Blocks()
	out := make([]blockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockResponse{Label: b.Label(), Start: b.Start(), End: b.End()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleVariantsList(w http.ResponseWriter, r *http.Request) {
	_, plan := a.Plan()
	variants := plan.Variants()
	out := make([]variantResponse, 0, len(variants))
	for _, v := range variants {
		out = append(out, toVariantResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleVariantGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toVariantResponse(variantFrom(r)))
}

func toVariantResponse(v *schedule.Variant) variantResponse {
	out := variantResponse{
		ID:         v.ID(),
		Name:       v.Name(),
		Comment:    v.Comment(),
		Conditions: v.Conditions(),
		Wind:       v.Wind(),
		LGS:        v.LGS(),
		Allocs:     len(v.Allocs()),
	}
	if sev, ok := v.Severity(); ok {
		out.Severity = sev.String()
	}
	return out
}

// handleVariantFlags lists every observation's flags and score, best
// score first.
func (a *API) handleVariantFlags(w http.ResponseWriter, r *http.Request) {
	_, plan := a.Plan()
	v := variantFrom(r)
	all := v.AllFlags()
	model := plan.Model()

	out := make([]flagsResponse, 0, len(all))
	for obsID, fs := range all {
		obs := model.Obs(obsID)
		if obs == nil {
			continue
		}
		names := make([]string, 0, fs.Len())
		for _, f := range fs.Flags() {
			names = append(names, f.String())
		}
		out = append(out, flagsResponse{Obs: obsID, Flags: names, Score: v.Score(obs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Obs < out[j].Obs
	})
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleVariantAllocs(w http.ResponseWriter, r *http.Request) {
	v := variantFrom(r)
	allocs := v.Allocs()
	out := make([]allocResponse, 0, len(allocs))
	for _, al := range allocs {
		resp := allocResponse{
			ID:            al.ID(),
			Obs:           al.Obs().ID,
			Start:         al.Start(),
			End:           al.End(),
			FirstStep:     al.FirstStep(),
			LastStep:      al.LastStep(),
			SetupType:     al.SetupType().String(),
			Grouping:      v.Grouping(al).String(),
			Comment:       v.AllocComment(al),
			Circumstances: make(map[string]rangeStats),
			Markers:       v.Schedule().Markers().Markers(schedule.AllocTarget(al), false),
		}
		for _, c := range solver.Circumstances() {
			lo, ok := al.Min(c, false)
			if !ok {
				continue
			}
			hi, _ := al.Max(c, false)
			mean, _ := al.Mean(c, false)
			resp.Circumstances[c.String()] = rangeStats{Min: lo, Max: hi, Mean: mean}
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleVariantMarkers(w http.ResponseWriter, r *http.Request) {
	markers := variantFrom(r).Markers(r.URL.Query().Get("transitive") != "false")
	if markers == nil {
		markers = []schedule.Marker{}
	}
	writeJSON(w, http.StatusOK, markers)
}

func (a *API) handleExportICal(w http.ResponseWriter, r *http.Request) {
	a.writeExport(w, variantFrom(r).ExportICal)
}

func (a *API) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	a.writeExport(w, variantFrom(r).ExportHTML)
}

func (a *API) writeExport(w http.ResponseWriter, render func(time.Time) (*schedule.ExportResult, error)) {
	res, err := render(time.Now())
	if err != nil {
		a.logger.Debug().Err(err).Msg("export failed")
		writeError(w, http.StatusUnprocessableEntity, "export_failed")
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
