package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cgast/gigsmith/pkg/gig"
)

func generateCmd(flags *globalFlags) *cobra.Command {
	var (
		seed      uint64
		format    string
		graphFile string
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "generate <keyword>",
		Short: "Generate one listing and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "json", "yaml", "text":
			default:
				return fmt.Errorf("unknown format %q (want json, yaml or text)", format)
			}
			opts := appOptions{graphFile: graphFile, noHistory: noHistory}
			if cmd.Flags().Changed("seed") {
				opts.seed = &seed
			}
			a, err := newApp(flags, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runGenerate(ctx, a, strings.Join(args, " "), format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for fallback content")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, yaml or text")
	cmd.Flags().StringVar(&graphFile, "graph", "", "task graph overlay file")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run")
	return cmd
}

func runGenerate(ctx context.Context, a *app, keyword, format string, w io.Writer) error {
	start := time.Now()
	resp := a.svc.Generate(ctx, gig.Request{Keyword: keyword})
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	a.log.Info("listing generated", "run", resp.RunID, "repaired", resp.Repaired, "took", since(start))

	switch format {
	case "yaml":
		return writeYAML(w, resp)
	case "text":
		return writeText(w, resp.Listing)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
}

// writeYAML goes through JSON so the output keys match the JSON field names.
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func writeText(w io.Writer, l *gig.Listing) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", l.Title)
	fmt.Fprintf(&b, "%s > %s\n", l.Category, l.Subcategory)
	fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(l.Tags, ", "))

	for _, p := range []struct {
		tier string
		pkg  gig.Package
	}{
		{"Basic", l.Packages.Basic},
		{"Standard", l.Packages.Standard},
		{"Premium", l.Packages.Premium},
	} {
		fmt.Fprintf(&b, "%-8s  $%-7.2f %2d days  %2d revisions  %s\n",
			p.tier, p.pkg.Price, p.pkg.DeliveryDays, p.pkg.Revisions, p.pkg.Name)
	}

	fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(l.Description))

	if len(l.FAQs) > 0 {
		b.WriteString("\nFAQ\n")
		for _, f := range l.FAQs {
			fmt.Fprintf(&b, "  Q: %s\n  A: %s\n", f.Question, f.Answer)
		}
	}
	if len(l.Requirements) > 0 {
		b.WriteString("\nRequirements\n")
		for _, r := range l.Requirements {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	if len(l.Images) > 0 {
		fmt.Fprintf(&b, "\nImages: %s\n", strings.Join(l.Images, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
