package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BrandonDHaskell/eventgate/server/internal/config"
)

type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "eventgate-server",
		Short:         "Event presence tracker: gate validation, live roster, session ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ReadFile(a.v, a.cfgFile); err != nil {
				return err
			}
			a.cfg = config.FromViper(a.v)
			a.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: a.cfg.LogLevel,
			})).With("service", "eventgate-server")
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", os.Getenv(config.EnvPrefix+"_CONFIG"), "config file (yaml, toml or json)")
	flags.String("db-path", "", "SQLite ledger path")
	_ = a.v.BindPFlag("db_path", flags.Lookup("db-path"))

	rootCmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedDevCmd(a),
	)

	return rootCmd
}
