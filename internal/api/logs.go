/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/queueplanner/internal/logbuffer"
)

const defaultLogLimit = 200

type logsResponse struct {
	Entries    []logbuffer.LogEntry `json:"entries"`
	Components []string             `json:"components"`
	Stats      logbuffer.Stats      `json:"stats"`
}

// handleLogs serves recent process logs. Query parameters: level,
// component, plan, search, since (RFC 3339), limit and order=asc.
func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	buf := a.logs
	a.mu.RUnlock()
	if buf == nil {
		writeError(w, http.StatusServiceUnavailable, "logs_unavailable")
		return
	}

	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		Plan:       q.Get("plan"),
		Search:     q.Get("search"),
		Limit:      defaultLogLimit,
		Descending: q.Get("order") != "asc",
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = n
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = since
	}

	entries := buf.Query(params)
	if entries == nil {
		entries = []logbuffer.LogEntry{}
	}
	components := buf.Components()
	if components == nil {
		components = []string{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Entries: entries, Components: components, Stats: buf.Stats()})
}
