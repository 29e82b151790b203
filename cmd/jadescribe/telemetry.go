package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesdeveloperchung-pixel/JadeScribe"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/telemetry"
)

func newTelemetryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Inspect recorded pipeline events",
	}

	var f telemetry.Filter
	var since time.Duration
	addFilterFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&f.Module, "module", "", "only events from this module (analyzer, describe)")
		c.Flags().StringVar(&f.Action, "action", "", "only events with this action")
		c.Flags().DurationVar(&since, "since", 0, "only events newer than this, e.g. 24h")
	}
	filter := func() telemetry.Filter {
		out := f
		if since > 0 {
			out.Since = time.Now().Add(-since)
		}
		return out
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize call counts, failure rates and latencies per action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := a.openTelemetry()
			if err != nil {
				return err
			}
			defer closeDB()

			s, err := store.Stats(cmd.Context(), filter())
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), s)
		},
	}
	addFilterFlags(stats)

	var out string
	export := &cobra.Command{
		Use:     "export",
		Short:   "Export events to a Parquet file",
		Example: `  jadescribe telemetry export --out events.parquet --since 168h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := a.openTelemetry()
			if err != nil {
				return err
			}
			defer closeDB()

			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			n, err := store.ExportParquet(cmd.Context(), file, filter())
			if cerr := file.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			slog.Info("Telemetry exported", "path", out, "rows", n)
			return nil
		},
	}
	addFilterFlags(export)
	export.Flags().StringVarP(&out, "out", "o", "telemetry.parquet", "output Parquet file")

	cmd.AddCommand(stats, export)
	return cmd
}

// openTelemetry connects to the event database without assembling the pipeline
func (a *app) openTelemetry() (*telemetry.Store, func(), error) {
	db, err := telemetry.Open(a.cfg.Telemetry.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	store, err := telemetry.NewStore(db, jadescribe.Version, slog.Default())
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return store, closeDB, nil
}

func printStats(w io.Writer, stats []telemetry.ActionStats) error {
	if len(stats) == 0 {
		_, err := fmt.Fprintln(w, "no telemetry recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tACTION\tCOUNT\tFAIL%\tMEAN ms\tSTDDEV ms\tP50 ms\tP95 ms\tMAX ms")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\n",
			s.Module, s.Action, s.Count, 100*s.FailureRate(),
			s.MeanMs, s.StdDevMs, s.P50Ms, s.P95Ms, s.MaxMs)
	}
	return tw.Flush()
}
