/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/queueplanner/internal/db"
	"github.com/friendsincode/queueplanner/internal/models"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the catalogue and plan document tables",
	RunE:  runDBMigrate,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the observation catalogue",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <model.yaml>",
	Short: "Replace a site's catalogue with a mini-model file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogImport,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogImportCmd)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return err
	}
	logger.Info().Str("backend", string(cfg.DBBackend)).Msg("database migrated")
	return nil
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	model, err := models.LoadModelYAML(f)
	if err != nil {
		return fmt.Errorf("load model %s: %w", args[0], err)
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(database)
	if err := db.Migrate(database); err != nil {
		return err
	}

	if err := models.NewCatalogStore(database, logger).Save(cmd.Context(), model); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d programs, %d observations for %s\n",
		len(model.Programs()), len(model.Observations()), model.Site())
	return nil
}
