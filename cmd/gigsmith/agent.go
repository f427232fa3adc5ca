package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/cgast/gigsmith/pkg/events"
	"github.com/cgast/gigsmith/pkg/protocol"
)

func agentCmd(flags *globalFlags) *cobra.Command {
	var graphFile string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Serve JSON-RPC 2.0 on stdin and stdout, one message per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, appOptions{graphFile: graphFile})
			if err != nil {
				return err
			}
			defer a.close()

			h := protocol.NewHandler()
			protocol.RegisterGigMethods(h, protocol.Backend{
				Service: a.svc,
				Runs:    a.runs(),
				Events:  a.bus,
			})
			a.bus.Publish(events.NewEvent(events.EventAgentMessage, map[string]any{
				"message": "agent mode started",
				"methods": h.Methods(),
			}))
			a.log.Debug("agent mode started", "methods", h.Methods())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return h.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&graphFile, "graph", "", "task graph overlay file")
	return cmd
}
