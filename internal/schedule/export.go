/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bufio"
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/queueplanner/internal/interval"
)

// ExportResult is a rendered variant ready to hand to a client.
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportICal renders the variant's allocs as iCalendar events. Each event
// carries the observation and step range so ImportICal can rebuild it.
func (v *Variant) ExportICal(now time.Time) (*ExportResult, error) {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()
	if v.allocs.IsEmpty() {
		return nil, fmt.Errorf("export variant %q: %w", v.name, ErrEmptySchedule)
	}

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Friends Incode//Queue Planner//EN\r\n")
	fmt.Fprintf(&buf, "X-WR-CALNAME:%s\r\n", escapeICalText(v.owner.model.Site().DisplayName()+" "+v.name))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for _, a := range v.allocs.All() {
		buf.WriteString("BEGIN:VEVENT\r\n")
		fmt.Fprintf(&buf, "UID:%s@queueplanner\r\n", a.id)
		fmt.Fprintf(&buf, "DTSTAMP:%s\r\n", formatICalTime(now))
		fmt.Fprintf(&buf, "DTSTART:%s\r\n", formatICalTime(time.UnixMilli(a.Start())))
		fmt.Fprintf(&buf, "DTEND:%s\r\n", formatICalTime(time.UnixMilli(a.End())))
		fmt.Fprintf(&buf, "SUMMARY:%s\r\n", escapeICalText(a.String()))
		if c := v.comments[a.id]; c != "" {
			fmt.Fprintf(&buf, "DESCRIPTION:%s\r\n", escapeICalText(c))
		}
		fmt.Fprintf(&buf, "X-QPLAN-OBS:%s\r\n", escapeICalText(a.obs.ID))
		fmt.Fprintf(&buf, "X-QPLAN-STEPS:%d-%d\r\n", a.first, a.last)
		fmt.Fprintf(&buf, "X-QPLAN-SETUP:%s\r\n", a.setup)
		buf.WriteString("END:VEVENT\r\n")
	}
	buf.WriteString("END:VCALENDAR\r\n")

	start, _ := v.allocs.First()
	return &ExportResult{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("%s-%s.ics", slugify(v.name), time.UnixMilli(start.Start()).UTC().Format("2006-01-02")),
		ContentType: "text/calendar; charset=utf-8",
	}, nil
}

// ImportResult counts the outcome of an iCalendar import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

// ImportICal places the allocs described by events exported with
// ExportICal. Events for unknown observations, or that the edit rules
// reject, are skipped and reported.
func (v *Variant) ImportICal(r io.Reader) (*ImportResult, error) {
	events, err := parseICalEvents(r)
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}

	v.owner.mu.Lock()
	defer v.owner.mu.Unlock()
	res := &ImportResult{}
	for _, ev := range events {
		if ev.Obs == "" || ev.Start.IsZero() {
			res.Skipped++
			continue
		}
		obs := v.owner.model.Obs(ev.Obs)
		if obs == nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", ev.Obs, ErrUnknownObservation))
			continue
		}
		if _, err := v.addAlloc(obs, ev.Start.UnixMilli(), ev.First, ev.Last, ev.Setup, ev.Description); err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Sprintf("%s at %s: %v", ev.Obs, ev.Start.Format(time.RFC3339), err))
			continue
		}
		res.Imported++
	}
	v.owner.logger.Info().
		Str("variant", v.name).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Msg("iCal import completed")
	return res, nil
}

// icalEvent is a parsed VEVENT.
type icalEvent struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Obs         string
	First       int
	Last        int
	Setup       SetupType
}

func parseICalEvents(r io.Reader) ([]icalEvent, error) {
	var out []icalEvent
	var cur *icalEvent

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(sc.Text(), "\r"))
		switch {
		case line == "BEGIN:VEVENT":
			cur = &icalEvent{}
		case line == "END:VEVENT" && cur != nil:
			out = append(out, *cur)
			cur = nil
		case cur == nil:
		case strings.HasPrefix(line, "UID:"):
			cur.UID = strings.TrimPrefix(line, "UID:")
		case strings.HasPrefix(line, "SUMMARY:"):
			cur.Summary = unescapeICalText(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "DESCRIPTION:"):
			cur.Description = unescapeICalText(strings.TrimPrefix(line, "DESCRIPTION:"))
		case strings.HasPrefix(line, "DTSTART"):
			cur.Start = parseICalTime(line)
		case strings.HasPrefix(line, "DTEND"):
			cur.End = parseICalTime(line)
		case strings.HasPrefix(line, "X-QPLAN-OBS:"):
			cur.Obs = unescapeICalText(strings.TrimPrefix(line, "X-QPLAN-OBS:"))
		case strings.HasPrefix(line, "X-QPLAN-STEPS:"):
			cur.First, cur.Last = parseStepRange(strings.TrimPrefix(line, "X-QPLAN-STEPS:"))
		case strings.HasPrefix(line, "X-QPLAN-SETUP:"):
			if st, err := ParseSetupType(strings.TrimPrefix(line, "X-QPLAN-SETUP:")); err == nil {
				cur.Setup = st
			}
		}
	}
	return out, sc.Err()
}

func parseStepRange(s string) (first, last int) {
	a, b, _ := strings.Cut(s, "-")
	first, _ = strconv.Atoi(a)
	last, err := strconv.Atoi(b)
	if err != nil {
		last = first
	}
	return first, last
}

// parseICalTime accepts "DTSTART:...", "DTSTART;TZID=...:..." or a bare value.
func parseICalTime(s string) time.Time {
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		s = s[idx+1:]
	}
	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var nightSheet = template.Must(template.New("night").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        @page { margin: 1cm; }
        body { font-family: Arial, sans-serif; font-size: 11pt; line-height: 1.4; }
        h1 { font-size: 18pt; border-bottom: 2px solid #333; padding-bottom: 3mm; }
        h2 { font-size: 14pt; margin-top: 5mm; color: #444; }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 2mm 3mm; text-align: left; border-bottom: 1px solid #ddd; }
        th { background: #f5f5f5; }
        .footer { margin-top: 10mm; font-size: 9pt; color: #666; text-align: center; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <p>Conditions {{.Conds}}{{if .LGS}}, LGS{{end}}</p>
{{range .Nights}}    <h2>{{.Label}}</h2>
    <table>
        <tr><th>UT</th><th>Observation</th><th>Steps</th><th>Setup</th><th>Comment</th></tr>
{{range .Rows}}        <tr><td>{{.Start}} - {{.End}}</td><td>{{.Obs}}</td><td>{{.Steps}}</td><td>{{.Setup}}</td><td>{{.Comment}}</td></tr>
{{end}}    </table>
{{end}}    <div class="footer">Generated {{.Generated}}</div>
</body>
</html>
`))

type sheetRow struct {
	Start, End, Obs, Steps, Setup, Comment string
}

type sheetNight struct {
	Label string
	Rows  []sheetRow
}

// ExportHTML renders a printable night sheet of the variant, one table
// per block.
func (v *Variant) ExportHTML(now time.Time) (*ExportResult, error) {
	v.owner.mu.RLock()
	defer v.owner.mu.RUnlock()

	data := struct {
		Title     string
		Conds     string
		LGS       bool
		Nights    []sheetNight
		Generated string
	}{
		Title:     v.owner.model.Site().DisplayName() + " - " + v.name,
		Conds:     v.conds.String(),
		LGS:       v.lgs,
		Generated: now.UTC().Format("January 2, 2006 at 15:04 MST"),
	}
	for _, b := range blocksOf(v.owner.blocks) {
		night := sheetNight{Label: b.Label()}
		for _, a := range v.allocs.Overlapping(b.Interval, interval.OverlapEither) {
			night.Rows = append(night.Rows, sheetRow{
				Start:   time.UnixMilli(a.Start()).UTC().Format("15:04"),
				End:     time.UnixMilli(a.End()).UTC().Format("15:04"),
				Obs:     a.obs.ID,
				Steps:   fmt.Sprintf("%d-%d", a.first+1, a.last+1),
				Setup:   a.setup.String(),
				Comment: v.comments[a.id],
			})
		}
		data.Nights = append(data.Nights, night)
	}

	var buf bytes.Buffer
	if err := nightSheet.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render night sheet: %w", err)
	}
	return &ExportResult{
		Data:        buf.Bytes(),
		Filename:    slugify(v.name) + ".html",
		ContentType: "text/html; charset=utf-8",
	}, nil
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func unescapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\,", ",")
	s = strings.ReplaceAll(s, "\\;", ";")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}

func slugify(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, " ", "-"))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
