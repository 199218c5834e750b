package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smartattendance/internal/schedule"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load classes and weekly schedules from a YAML file",
		Long: `Upserts the classes and schedules listed in the file. Existing rows with
the same ids are overwritten; rows not in the file are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			seed, err := schedule.LoadSeed(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			db, err := openMigrated(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := schedule.NewRepository(db.Client).Seed(cmd.Context(), seed.Classes, seed.Schedules); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d classes, %d schedules\n", len(seed.Classes), len(seed.Schedules))
			return nil
		},
	}
}
