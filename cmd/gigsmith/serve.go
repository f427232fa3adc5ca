package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/cgast/gigsmith/internal/server"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		addr      string
		graphFile string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, appOptions{graphFile: graphFile})
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			gin.SetMode(gin.ReleaseMode)
			srv := server.New(a.svc,
				server.WithRuns(a.runs()),
				server.WithEvents(a.bus),
				server.WithMetrics(a.metrics),
				server.WithLogger(a.log),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&graphFile, "graph", "", "task graph overlay file")
	return cmd
}
