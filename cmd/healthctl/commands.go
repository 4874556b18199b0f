package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/mirador-servicehealth/internal/bootstrap"
	"github.com/platformbuilds/mirador-servicehealth/internal/config"
	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/services"
	"github.com/platformbuilds/mirador-servicehealth/internal/timerange"
	"github.com/platformbuilds/mirador-servicehealth/pkg/logger"
)

// opener builds the health source for one command run.
type opener func(ctx context.Context, cfg *config.Config) (services.HealthSource, error)

func defaultOpener(ctx context.Context, cfg *config.Config) (services.HealthSource, error) {
	c, err := bootstrap.Build(ctx, cfg, logger.New(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	return c.Health, nil
}

type globalFlags struct {
	configPath string
	from       string
	to         string
	env        string
	output     string
}

func newRootCmd(open opener) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "healthctl",
		Short:         "Query service health widgets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to config.yaml (defaults to CONFIG_PATH or the usual search paths)")
	pf.StringVar(&g.from, "from", "now-1h", "window start (absolute or date math)")
	pf.StringVar(&g.to, "to", "now", "window end (absolute or date math)")
	pf.StringVarP(&g.env, "environment", "e", "", "deployment environment to match")
	pf.StringVarP(&g.output, "output", "o", "table", "output format: table or json")

	root.AddCommand(
		newWindowCmd(g),
		newTopServicesCmd(g, open),
		newTopDependenciesCmd(g, open),
		newServicesCmd(g, open),
	)
	return root
}

func (g *globalFlags) window() (models.TimeWindow, error) {
	return timerange.NewResolver().Resolve(g.from, g.to)
}

func (g *globalFlags) source(ctx context.Context, open opener) (services.HealthSource, error) {
	if g.configPath != "" {
		if err := os.Setenv("CONFIG_PATH", g.configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return open(ctx, cfg)
}

func newWindowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "window",
		Short: "Resolve --from/--to and print the window, tick interval and bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := g.window()
			if err != nil {
				return err
			}
			d := timerange.Describe(w)
			if g.output == "json" {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "START\t%s\n", d.Window.Start.Format(timeLayout))
			fmt.Fprintf(tw, "END\t%s\n", d.Window.End.Format(timeLayout))
			fmt.Fprintf(tw, "BUCKET\t%s\n", d.Bucket)
			fmt.Fprintf(tw, "TICK\t%dms\n", d.Tick.MinIntervalMs)
			return tw.Flush()
		},
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func newTopServicesCmd(g *globalFlags, open opener) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "top-services",
		Short: "Rank services by failed requests in the window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := g.window()
			if err != nil {
				return err
			}
			src, err := g.source(cmd.Context(), open)
			if err != nil {
				return err
			}
			widget, err := src.TopServiceFaults(cmd.Context(), w, g.env, k)
			if err != nil {
				return err
			}
			return g.writeRanked(cmd.OutOrStdout(), widget)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of entries (0 uses the configured default)")
	return cmd
}

func newTopDependenciesCmd(g *globalFlags, open opener) *cobra.Command {
	var (
		k       int
		service string
	)
	cmd := &cobra.Command{
		Use:   "top-dependencies",
		Short: "Rank the failing dependencies called by a service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := g.window()
			if err != nil {
				return err
			}
			src, err := g.source(cmd.Context(), open)
			if err != nil {
				return err
			}
			widget, err := src.TopDependencyFaults(cmd.Context(), w, g.env, service, k)
			if err != nil {
				return err
			}
			return g.writeRanked(cmd.OutOrStdout(), widget)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of entries (0 uses the configured default)")
	cmd.Flags().StringVarP(&service, "service", "s", "", "calling service")
	return cmd
}

func newServicesCmd(g *globalFlags, open opener) *cobra.Command {
	var (
		search     string
		attrs      []string
		thresholds []string
	)
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List catalog services with their latest RED values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := g.window()
			if err != nil {
				return err
			}
			filter, err := buildFilter(search, attrs, thresholds)
			if err != nil {
				return err
			}
			src, err := g.source(cmd.Context(), open)
			if err != nil {
				return err
			}
			table, err := src.ServiceTable(cmd.Context(), w, g.env, filter)
			if err != nil {
				return err
			}
			if g.output == "json" {
				return writeJSON(cmd.OutOrStdout(), table)
			}
			return writeServiceTable(cmd.OutOrStdout(), table)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "substring match on service name")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "attribute filter path=value (repeatable)")
	cmd.Flags().StringSliceVar(&thresholds, "failure", nil, "failure thresholds, e.g. gt1,gt5")
	return cmd
}

func buildFilter(search string, attrs, thresholds []string) (models.FilterState, error) {
	f := models.FilterState{SearchQuery: search, SelectedFailureThresholds: thresholds}
	for _, a := range attrs {
		path, value, ok := strings.Cut(a, "=")
		if !ok || path == "" {
			return f, fmt.Errorf("invalid --attr %q, want path=value", a)
		}
		if f.SelectedAttributeValues == nil {
			f.SelectedAttributeValues = make(map[string][]string)
		}
		f.SelectedAttributeValues[path] = append(f.SelectedAttributeValues[path], value)
	}
	return f, nil
}

func (g *globalFlags) writeRanked(out io.Writer, widget *models.RankedWidget) error {
	if g.output == "json" {
		return writeJSON(out, widget)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tVALUE\tPERCENT\n", strings.ToUpper(strings.Join(widget.Labels, "\t")))
	for _, e := range widget.Entries {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f%%\n", strings.Join(e.Key, "\t"), e.RawValue, e.RelativePercentage)
	}
	return tw.Flush()
}

func writeServiceTable(out io.Writer, table *models.ServiceTable) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tENVIRONMENT\tLATENCY_MS\tTHROUGHPUT\tFAILURE_%")
	for _, r := range table.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ServiceName, r.Environment, num(r.LatencyMs), num(r.Throughput), num(r.FailurePercent))
	}
	fmt.Fprintf(tw, "\n%d of %d services\n", table.Filtered, table.Total)
	return tw.Flush()
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
