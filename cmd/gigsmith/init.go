package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cgast/gigsmith/internal/config"
)

func initCmd() *cobra.Command {
	var (
		dir   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.Path(dir)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("file %q already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultConfig()
			cfg.History.Path = filepath.Join(dir, config.Dir, "history.db")
			if err := config.Write(path, cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", path)
			fmt.Fprintln(out, "Set generator.backend to llm or http to use a model, then run:")
			fmt.Fprintln(out, "  gigsmith generate \"logo design\"")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "project directory")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
