package main

import (
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial users and sample tasks in an empty database",
		Long: `Seed an empty database.

Examples:
  taskboard seed
  taskboard seed --file users.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString("file")
			if err != nil {
				return err
			}

			cfg, logger, err := bootstrap(cmd)
			if err != nil {
				return err
			}

			if file == "" {
				file = cfg.SeedFile
			}

			return seedDatabase(cmd, file, logger)
		},
	}

	cmd.Flags().StringP("file", "f", "", "YAML seed file (defaults to SEED_FILE or the built-in sample data)")

	return cmd
}
