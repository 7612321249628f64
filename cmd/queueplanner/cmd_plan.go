/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/queueplanner/internal/models"
	"github.com/friendsincode/queueplanner/internal/planner"
	"github.com/friendsincode/queueplanner/internal/rules"
	"github.com/friendsincode/queueplanner/internal/schedule"
	"github.com/friendsincode/queueplanner/internal/scheduleio"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Create, check and convert stored plans",
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored plans",
	Args:  cobra.NoArgs,
	RunE:  runPlanList,
}

var planNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a plan covering a run of observing nights",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanNew,
}

var planInspectCmd = &cobra.Command{
	Use:   "inspect <name>",
	Short: "Summarise a stored plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanInspect,
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <name>",
	Short: "Load a plan and report restore issues and limit markers",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanValidate,
}

var planMigrateCmd = &cobra.Command{
	Use:   "migrate <name>",
	Short: "Rewrite a stored plan at the current document version",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanMigrate,
}

var planExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Export a plan variant as iCalendar or HTML",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanExport,
}

var planImportCmd = &cobra.Command{
	Use:   "import-ics <name> <file.ics>",
	Short: "Add the allocs of an iCalendar export to a plan variant",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlanImport,
}

var (
	planStart     string
	planNights    int
	newVariant    string
	exportVariant string
	importVariant string
	planFormat    string
	planOut       string
	planStrict    bool
	planDryRun    bool
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planListCmd, planNewCmd, planInspectCmd, planValidateCmd, planMigrateCmd, planExportCmd, planImportCmd)

	planNewCmd.Flags().StringVar(&planStart, "start", "", "First night, YYYY-MM-DD (required)")
	planNewCmd.Flags().IntVar(&planNights, "nights", 1, "Number of observing nights")
	planNewCmd.Flags().StringVar(&newVariant, "variant", "Nominal", "Name of the initial variant")
	planNewCmd.MarkFlagRequired("start")

	planValidateCmd.Flags().BoolVar(&planStrict, "strict", false, "Fail on restore issues or error markers")

	planMigrateCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "Report the stored version without rewriting")

	planExportCmd.Flags().StringVar(&exportVariant, "variant", "", "Variant name or ID (default: current variant)")
	planExportCmd.Flags().StringVar(&planFormat, "format", "ics", "Export format: ics or html")
	planExportCmd.Flags().StringVarP(&planOut, "out", "o", "", "Output file (default: the export's file name)")

	planImportCmd.Flags().StringVar(&importVariant, "variant", "", "Variant name or ID (default: current variant)")
}

func runPlanList(cmd *cobra.Command, args []string) error {
	p, err := openPlanner(cmd.Context())
	if err != nil {
		return err
	}
	defer p.Close()

	names, err := p.Store().List(cmd.Context())
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}

func runPlanNew(cmd *cobra.Command, args []string) error {
	start, err := time.Parse("2006-01-02", planStart)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	ctx := cmd.Context()
	p, err := openPlanner(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if _, err := p.Store().Get(ctx, args[0]); err == nil {
		return fmt.Errorf("plan %s already exists", args[0])
	}

	model, err := p.LoadModel(ctx)
	if err != nil {
		return err
	}
	s := schedule.New(model, p.Options(model.Site()))
	// Local 13:00 on the start date selects that evening's night.
	lon := model.Site().Location().Longitude
	afternoon := start.Add(13*time.Hour - time.Duration(lon/15*float64(time.Hour)))
	if err := s.AddObservingNights(afternoon, planNights); err != nil {
		return err
	}
	if _, err := s.AddVariant(newVariant, models.NominalConds, nil, false); err != nil {
		return err
	}
	if err := p.SavePlan(ctx, args[0], s); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s: %s\n", args[0], s.Name())
	return nil
}

// loadStored opens the planner and restores the named plan.
func loadStored(ctx context.Context, name string) (*planner.Planner, *schedule.Schedule, []schedule.RestoreIssue, error) {
	p, err := openPlanner(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	model, err := p.LoadModel(ctx)
	if err != nil {
		p.Close()
		return nil, nil, nil, err
	}
	s, issues, err := p.LoadPlan(ctx, name, model)
	if err != nil {
		p.Close()
		return nil, nil, nil, err
	}
	if start, err := s.Start(); err == nil {
		if err := p.LoadShutterNight(ctx, time.UnixMilli(start)); err != nil {
			logger.Warn().Err(err).Msg("laser clearance windows unavailable")
		}
	}
	return p, s, issues, nil
}

func runPlanInspect(cmd *cobra.Command, args []string) error {
	p, s, issues, err := loadStored(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer p.Close()

	rules.NewChecker(s, logger).CheckAll()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", s.Name(), args[0])
	if c := s.Comment(); c != "" {
		fmt.Fprintf(out, "  %s\n", c)
	}
	fmt.Fprintf(out, "blocks:\n")
	for _, b := range s.Blocks() {
		fmt.Fprintf(out, "  %s  %s\n", b.Label(), time.Duration(b.Length())*time.Millisecond)
	}
	fmt.Fprintf(out, "variants:\n")
	for _, v := range s.Variants() {
		sev := "ok"
		if worst, ok := v.Severity(); ok {
			sev = worst.String()
		}
		fmt.Fprintf(out, "  %-20s %3d allocs  %s\n", v.Name(), len(v.Allocs()), sev)
	}
	if len(issues) > 0 {
		fmt.Fprintf(out, "restore issues: %d\n", len(issues))
	}
	return nil
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	p, s, issues, err := loadStored(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer p.Close()

	out := cmd.OutOrStdout()
	for _, issue := range issues {
		fmt.Fprintf(out, "restore: %s\n", issue)
	}
	rules.NewChecker(s, logger).CheckAll()
	failed := len(issues) > 0
	for _, v := range s.Variants() {
		for _, m := range v.Markers(true) {
			fmt.Fprintf(out, "%s: %s: %s\n", v.Name(), m.Severity, m.Text)
			if m.Severity == schedule.SeverityError {
				failed = true
			}
		}
	}
	if failed && planStrict {
		return errors.New("plan has problems")
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func runPlanMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := openPlanner(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	data, err := p.Store().Get(ctx, args[0])
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	from, err := p.Codec().Upgrade(ctx, bytes.NewReader(data), &buf)
	if err != nil {
		return err
	}
	if from == scheduleio.CurrentVersion {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already at version %d\n", args[0], from)
		return nil
	}
	if planDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%s would be migrated from version %d to %d\n", args[0], from, scheduleio.CurrentVersion)
		return nil
	}
	if err := p.Store().Put(ctx, args[0], buf.Bytes()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "migrated %s from version %d to %d\n", args[0], from, scheduleio.CurrentVersion)
	return nil
}

// pickVariant finds a variant by ID or name, defaulting to the current one.
func pickVariant(s *schedule.Schedule, ref string) (*schedule.Variant, error) {
	if ref == "" {
		if v := s.CurrentVariant(); v != nil {
			return v, nil
		}
		return nil, errors.New("plan has no variants")
	}
	if v := s.Variant(schedule.VariantID(ref)); v != nil {
		return v, nil
	}
	for _, v := range s.Variants() {
		if v.Name() == ref {
			return v, nil
		}
	}
	return nil, fmt.Errorf("no variant %q", ref)
}

func runPlanExport(cmd *cobra.Command, args []string) error {
	p, s, _, err := loadStored(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer p.Close()

	v, err := pickVariant(s, exportVariant)
	if err != nil {
		return err
	}
	var res *schedule.ExportResult
	switch planFormat {
	case "ics":
		res, err = v.ExportICal(time.Now())
	case "html":
		res, err = v.ExportHTML(time.Now())
	default:
		return fmt.Errorf("unknown format %q", planFormat)
	}
	if err != nil {
		return err
	}

	path := planOut
	if path == "" {
		path = res.Filename
	}
	if path == "-" {
		_, err = cmd.OutOrStdout().Write(res.Data)
		return err
	}
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func runPlanImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, s, _, err := loadStored(ctx, args[0])
	if err != nil {
		return err
	}
	defer p.Close()

	v, err := pickVariant(s, importVariant)
	if err != nil {
		return err
	}
	f, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("open calendar: %w", err)
	}
	defer f.Close()

	res, err := v.ImportICal(f)
	if err != nil {
		return err
	}
	for _, msg := range res.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "skipped: %s\n", msg)
	}
	if res.Imported > 0 {
		if err := p.SavePlan(ctx, args[0], s); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d allocs, skipped %d\n", res.Imported, res.Skipped)
	return nil
}
