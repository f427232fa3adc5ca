package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cgast/gigsmith/pkg/gig"
	"github.com/cgast/gigsmith/pkg/orchestrator"
	"github.com/cgast/gigsmith/pkg/spec"
)

func validateCmd() *cobra.Command {
	var params map[string]string
	cmd := &cobra.Command{
		Use:   "validate <graph.yaml>",
		Short: "Check a task graph file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			out := cmd.OutOrStdout()

			g, err := spec.LoadGraph(path, params)
			if err != nil {
				return fmt.Errorf("load graph: %w", err)
			}

			vr := spec.ValidateGraph(g)
			if !vr.Valid() {
				fmt.Fprintf(out, "Graph %q has %d error(s):\n", filepath.Base(path), len(vr.Errors))
				for _, e := range vr.Errors {
					fmt.Fprintf(out, "  - %s: %s\n", e.Field, e.Message)
				}
				return errors.New("validation failed")
			}

			// Structure problems only show once the graph is resolved and built.
			specs, err := spec.Resolve(g, gig.Catalogue())
			if err != nil {
				return err
			}
			if _, err := orchestrator.BuildGraph(specs); err != nil {
				return fmt.Errorf("graph %q: %w", g.Meta.Name, err)
			}

			fmt.Fprintf(out, "Graph %q is valid (%s, %d tasks).\n", g.Meta.Name, g.Kind, len(g.Tasks))
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&params, "param", nil, "graph parameter as key=value")
	return cmd
}
