package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartattendance/internal/config"
	"smartattendance/internal/logger"
	"smartattendance/internal/store"
)

// RootOptions holds state shared by all commands.
type RootOptions struct {
	Verbose bool

	cfg config.App
	log *zap.Logger
}

// NewRootCommand creates the root command for attendancectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "attendancectl",
		Short: "Operator tooling for the attendance service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			log, err := logger.New(level, "console")
			if err != nil {
				return err
			}
			opts.cfg, opts.log = cfg, log
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// openMigrated opens the configured database and brings its schema up to date.
func openMigrated(ctx context.Context, opts *RootOptions) (*store.DB, error) {
	db, err := store.Open(opts.cfg.DBDriver, opts.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(ctx, db, opts.log); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
