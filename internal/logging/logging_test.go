/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestProductionLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", &buf)
	logger.Info().Str("plan", "GS").Msg("plan loaded")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("not JSON: %q", buf.String())
	}
	if entry["service"] != "queueplanner" || entry["message"] != "plan loaded" {
		t.Fatalf("entry = %v", entry)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %s", logger.GetLevel())
	}
}

func TestDevelopmentLogsDebugToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("development", &buf)
	logger.Debug().Msg("refreshing flags")
	if !strings.Contains(buf.String(), "refreshing flags") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestLevelOverride(t *testing.T) {
	t.Setenv("QPLAN_LOG_LEVEL", "warn")
	if l := SetupWithWriter("development", &bytes.Buffer{}); l.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %s", l.GetLevel())
	}
}

func TestCaptureReceivesJSON(t *testing.T) {
	var console, capture bytes.Buffer
	logger := setup("development", &console, &capture)
	logger.Info().Str("component", "schedule").Msg("flags refreshed")

	var entry map[string]any
	if err := json.Unmarshal(capture.Bytes(), &entry); err != nil {
		t.Fatalf("capture not JSON: %q", capture.String())
	}
	if entry["component"] != "schedule" {
		t.Fatalf("entry = %v", entry)
	}
	if !strings.Contains(console.String(), "flags refreshed") {
		t.Fatalf("console = %q", console.String())
	}
}
