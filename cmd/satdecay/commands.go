package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/satdecay/core"
	"github.com/signalsfoundry/satdecay/internal/export"
	"github.com/signalsfoundry/satdecay/internal/logging"
	"github.com/signalsfoundry/satdecay/model"
)

// selectionFlags are shared by run and resolve.
var selectionFlags = map[string]string{
	"designators":             "designators",
	"exclude":                 "exclude",
	"exclude-catalog-numbers": "exclude_catalog_numbers",
	"spacetrack-login":        "spacetrack.login",
	"spacetrack-password":     "spacetrack.password",
	"spacetrack-url":          "spacetrack.base_url",
	"throttle-delay":          "spacetrack.throttle_delay",
	"metrics-addr":            "metrics_addr",
}

func addSelectionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("designators", nil, "international designators, exact (1998-067A) or wildcard (1998-067*)")
	f.StringSlice("exclude", nil, "designators removed from wildcard matches")
	f.IntSlice("exclude-catalog-numbers", nil, "catalog numbers removed from wildcard matches")
	f.String("spacetrack-login", "", "Space-Track identity")
	f.String("spacetrack-password", "", "Space-Track password")
	f.String("spacetrack-url", "", "Space-Track base URL")
	f.Duration("throttle-delay", core.DefaultThrottleDelay, "minimum delay between Space-Track requests")
	f.String("metrics-addr", "", "serve Prometheus /metrics on this address while running")
}

func (a *app) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [designator...]",
		Short: "Resolve designators, fetch their history and write chart datasets",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			a.bindAll(cmd, selectionFlags)
			a.bindAll(cmd, map[string]string{
				"catalog-numbers":    "catalog_numbers",
				"start":              "start_date",
				"end":                "end_date",
				"min-altitude":       "min_altitude",
				"plot-mode":          "plot.mode",
				"combined-name":      "plot.combined_file_name",
				"show-apoapsis":      "plot.show_apoapsis",
				"show-periapsis":     "plot.show_periapsis",
				"use-name-in-legend": "plot.use_name_in_legend",
				"output-dir":         "output.dir",
				"output-format":      "output.format",
			})
			if len(args) > 0 {
				a.v.Set("designators", args)
			}
			return nil
		},
		RunE: a.run,
	}
	addSelectionFlags(cmd)
	f := cmd.Flags()
	f.IntSlice("catalog-numbers", nil, "catalog numbers fetched in addition to resolved designators")
	f.String("start", "", "lower epoch bound (YYYY-MM-DD or RFC 3339)")
	f.String("end", "", "upper epoch bound (YYYY-MM-DD or RFC 3339)")
	f.Float64("min-altitude", 0, "only keep element sets whose periapsis is above this altitude in km; 0 disables")
	f.String("plot-mode", string(core.PlotDistinct), "distinct (one chart per object) or combined")
	f.String("combined-name", core.DefaultCombinedName, "file name of the combined chart")
	f.Bool("show-apoapsis", true, "draw apoapsis series")
	f.Bool("show-periapsis", true, "draw periapsis series")
	f.Bool("use-name-in-legend", true, "name series after the object instead of its catalog number")
	f.String("output-dir", ".", "directory charts are written to")
	f.String("output-format", string(export.FormatJSON), "chart document format: json or yaml")
	return cmd
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	e, err := a.setup(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.close()

	opts, err := e.cfg.PipelineOptions()
	if err != nil {
		return err
	}
	if len(opts.Tokens) == 0 && len(opts.CatalogNumbers) == 0 {
		return fmt.Errorf("no designators or catalog numbers given")
	}
	format, err := export.ParseFormat(e.cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := e.cfg.Credentials().Validate(); err != nil {
		return err
	}

	res, err := e.pipeline().Run(ctx, opts)
	if err != nil {
		return err
	}

	ctx = logging.ContextWithRunID(ctx, res.RunID)
	paths, err := export.NewWriter(e.cfg.Output.Dir, format, e.log).WriteCharts(ctx, res.Charts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	s := res.Summary
	e.log.Info(ctx, "run summary",
		logging.Int("resolved", s.Resolved),
		logging.Int("fetched", s.Fetched),
		logging.Int("empty", s.Empty),
		logging.Int("failed", s.Failed),
		logging.Int("records", s.Records),
		logging.Int("charts", len(paths)),
	)
	return nil
}

func (a *app) newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [designator...]",
		Short: "Print the catalog numbers designators resolve to",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			a.bindAll(cmd, selectionFlags)
			if len(args) > 0 {
				a.v.Set("designators", args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			e, err := a.setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.cfg.Credentials().Validate(); err != nil {
				return err
			}
			opts, err := e.cfg.PipelineOptions()
			if err != nil {
				return err
			}
			ids, err := e.pipeline().Resolve(ctx, opts)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	addSelectionFlags(cmd)
	return cmd
}

func (a *app) newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog designator...",
		Short: "Look designators up in the CelesTrak catalog, without Space-Track",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			catalog, err := e.catalogs.Load(cmd.Context())
			if err != nil {
				return err
			}
			var rows []model.CatalogRow
			for _, raw := range args {
				tok := core.ParseToken(raw)
				if tok.Pattern {
					rows = append(rows, catalog.WithPrefix(tok.Value)...)
					continue
				}
				if row, ok := catalog.Lookup(tok.Value); ok {
					rows = append(rows, row)
					continue
				}
				e.log.Warn(cmd.Context(), "designator not in catalog", logging.String("token", raw))
			}
			sort.SliceStable(rows, func(i, j int) bool { return rows[i].Designator < rows[j].Designator })

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DESIGNATOR\tCATALOG\tTYPE\tNAME")
			for _, r := range rows {
				number := "-"
				if r.HasCatalogNumber() {
					number = r.CatalogNumber.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Designator, number, r.ObjectType, r.DisplayName)
			}
			return tw.Flush()
		},
	}
}
