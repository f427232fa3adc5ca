package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cgast/gigsmith/pkg/gig"
	"github.com/cgast/gigsmith/pkg/spec"
	"github.com/cgast/gigsmith/pkg/task"
)

func planCmd(flags *globalFlags) *cobra.Command {
	var (
		graphFile string
		params    map[string]string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the stages the task graph runs in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if graphFile == "" {
				cfg, _, err := loadConfig(flags)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				graphFile = cfg.GraphFile
			}

			name := "gig"
			specs := gig.Catalogue()
			if graphFile != "" {
				g, err := spec.LoadGraph(graphFile, params)
				if err != nil {
					return err
				}
				if specs, err = spec.Resolve(g, specs); err != nil {
					return err
				}
				name = g.Meta.Name
			}

			plan, err := spec.GeneratePlan(name, specs)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			return writePlan(cmd.OutOrStdout(), plan, specs)
		},
	}
	cmd.Flags().StringVar(&graphFile, "graph", "", "task graph file (overlay or full graph)")
	cmd.Flags().StringToStringVar(&params, "param", nil, "graph parameter as key=value")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return cmd
}

func writePlan(w io.Writer, plan spec.ExecutionPlan, specs []task.Spec) error {
	desc := make(map[string]string, len(specs))
	for _, s := range specs {
		desc[s.ID] = s.Description
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Graph %q: %d tasks in %d stages, up to %d at once\n",
		plan.Graph, plan.Tasks, len(plan.Stages), plan.Width)
	if len(plan.Inputs) > 0 {
		fmt.Fprintf(&b, "Inputs: %s\n", strings.Join(plan.Inputs, ", "))
	}
	for _, stage := range plan.Stages {
		fmt.Fprintf(&b, "\nStage %d\n", stage.Index+1)
		for _, t := range stage.Tasks {
			fmt.Fprintf(&b, "  %-14s %s\n", t.ID, desc[t.ID])
			if len(t.DependsOn) > 0 {
				fmt.Fprintf(&b, "  %-14s after %s\n", "", strings.Join(t.DependsOn, ", "))
			}
			if t.Timeout != "" {
				fmt.Fprintf(&b, "  %-14s timeout %s\n", "", t.Timeout)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
