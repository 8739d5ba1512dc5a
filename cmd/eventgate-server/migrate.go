package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/eventgate/server/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending ledger migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
				return fmt.Errorf("mkdir db dir: %w", err)
			}
			conn, err := sql.Open("sqlite", db.DSN(a.cfg.DBPath))
			if err != nil {
				return fmt.Errorf("sql.Open: %w", err)
			}
			defer conn.Close()
			conn.SetMaxOpenConns(1)

			applied, err := db.Migrate(ctx, conn)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			return nil
		},
	}
}

func newSeedDevCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-dev",
		Short: "Insert the development participant roster (dev env only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Env != "dev" {
				return fmt.Errorf("seed-dev refused: env is %q", a.cfg.Env)
			}

			conn, err := db.Open(cmd.Context(), db.Config{Path: a.cfg.DBPath, Env: a.cfg.Env})
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := db.SeedDev(cmd.Context(), conn, db.DevParticipants)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d participants\n", n)
			return nil
		},
	}
}
