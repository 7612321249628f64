/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/schedule"
)

const modelYAML = `
site: GS
programs:
  - id: GS-2026A-Q-1
    semester: 2026A
    band: 1
    active: true
    science: true
    remaining_time: 3600000
    observations:
      - id: GS-2026A-Q-1-1
        priority: HIGH
        conditions: {sb: 100, cc: 100, iq: 100, wv: 100}
        ra: 83.8
        dec: -5.4
        steps:
          durations: [600000]
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlanCommands(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(modelPath, []byte(modelYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QPLAN_ENV", "test")
	t.Setenv("QPLAN_MODEL_PATH", modelPath)
	t.Setenv("QPLAN_STORAGE_ROOT", filepath.Join(dir, "plans"))
	t.Setenv("QPLAN_DB_DSN", filepath.Join(dir, "planner.db"))

	steps := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{[]string{"version"}, "plan document version 1032", false},
		{[]string{"plan", "new", "tonight", "--start", "2026-03-01", "--nights", "2"}, "created tonight", false},
		{[]string{"plan", "new", "tonight", "--start", "2026-03-01"}, "", true},
		{[]string{"plan", "list"}, "tonight", false},
		{[]string{"plan", "inspect", "tonight"}, "Nominal", false},
		{[]string{"plan", "migrate", "tonight"}, "already at version 1032", false},
		{[]string{"plan", "validate", "tonight"}, "ok", false},
		{[]string{"plan", "inspect", "absent"}, "", true},
	}
	for _, st := range steps {
		out, err := execute(t, st.args...)
		if st.wantErr {
			if err == nil {
				t.Fatalf("%v: expected error", st.args)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%v: %v", st.args, err)
		}
		if !strings.Contains(out, st.want) {
			t.Fatalf("%v: output %q missing %q", st.args, out, st.want)
		}
	}
}

func TestPickVariant(t *testing.T) {
	m := models.NewMiniModel(models.SiteSouth)
	s := schedule.New(m, schedule.Options{Logger: zerolog.Nop()})
	if _, err := pickVariant(s, ""); err == nil {
		t.Fatal("expected error for a plan without variants")
	}

	first, err := s.AddVariant("first", models.AnyConds, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.AddVariant("second", models.AnyConds, nil, false)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ref  string
		want *schedule.Variant
	}{
		{"", first},
		{"second", second},
		{string(second.ID()), second},
	}
	for _, tt := range tests {
		got, err := pickVariant(s, tt.ref)
		if err != nil || got != tt.want {
			t.Fatalf("pickVariant(%q) = %v, %v", tt.ref, got, err)
		}
	}
	if _, err := pickVariant(s, "third"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}
