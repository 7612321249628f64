/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/queueplanner/internal/scheduleio"
	"github.com/friendsincode/queueplanner/internal/version"
)

var versionCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the planner and plan document versions",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "Check GitHub for a newer release")
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "queueplanner %s (plan document version %d)\n", version.Version, scheduleio.CurrentVersion)
	if !versionCheck {
		return nil
	}

	info, err := version.NewChecker(zerolog.Nop()).Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("check for updates: %w", err)
	}
	if info.UpdateAvailable {
		fmt.Fprintf(out, "update available: %s (%s)\n", info.LatestVersion, info.ReleaseURL)
		if info.ReleaseNotes != "" {
			fmt.Fprintf(out, "  %s\n", info.ReleaseNotes)
		}
	} else {
		fmt.Fprintln(out, "up to date")
	}
	return nil
}
