package main

import (
	"github.com/spf13/cobra"

	"github.com/cgast/gigsmith/internal/config"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:          "gigsmith",
		Short:        "Generate complete gig listings from a keyword",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.Path("."), "path to the config file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	pf.BoolVar(&flags.logJSON, "log-json", false, "log as JSON")

	root.AddCommand(
		generateCmd(flags),
		serveCmd(flags),
		agentCmd(flags),
		planCmd(flags),
		validateCmd(),
		initCmd(),
	)
	return root
}
