package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zyrolabs/zyro/internal/backup"
	"github.com/zyrolabs/zyro/internal/config"
	"github.com/zyrolabs/zyro/internal/store/postgres"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSONL snapshot of all projects and issues to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		return backup.ExportJSONL(cmd.Context(), store, os.Stdout)
	},
}
