package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/satdecay/internal/logging"
	"github.com/signalsfoundry/satdecay/internal/observability"
	"github.com/signalsfoundry/satdecay/kb"
	"github.com/signalsfoundry/satdecay/model"
)

// RemoteService is the authenticated catalog and history service.
// *spacetrack.Client satisfies it.
type RemoteService interface {
	Login(ctx context.Context) error
	CatalogQuerier
	HistoryQuerier
}

// CatalogLoader yields the local catalog mapping. *kb.Loader satisfies it.
type CatalogLoader interface {
	Load(ctx context.Context) (*kb.Catalog, error)
}

// PlotMode selects one chart per entity or a single combined chart.
type PlotMode string

const (
	PlotDistinct PlotMode = "distinct"
	PlotCombined PlotMode = "combined"
)

// ParsePlotMode accepts "distinct" or "combined", case-insensitively.
func ParsePlotMode(s string) (PlotMode, error) {
	switch m := PlotMode(strings.ToLower(strings.TrimSpace(s))); m {
	case PlotDistinct, PlotCombined:
		return m, nil
	case "":
		return PlotDistinct, nil
	default:
		return "", fmt.Errorf("unknown plot mode %q", s)
	}
}

// DefaultCombinedName is the file stem of the combined chart.
const DefaultCombinedName = "output"

// Options is the per-run input of the pipeline.
type Options struct {
	Tokens         []string
	CatalogNumbers []model.CatalogNumber // fetched as given, after resolved tokens
	Exclusions     model.Exclusions
	Overrides      model.Overrides

	Start         time.Time
	End           time.Time
	MinAltitudeKm float64

	Mode         PlotMode
	CombinedName string
	Build        BuildOptions
}

// Chart is one renderer hand-off: a title, a file stem and its datasets.
type Chart struct {
	Title    string                `json:"title" yaml:"title"`
	FileStem string                `json:"file" yaml:"file"`
	Entities []model.CatalogNumber `json:"entities" yaml:"entities"`
	Datasets []model.Dataset       `json:"datasets" yaml:"datasets"`
}

// Summary counts what happened during a run.
type Summary struct {
	Tokens      int `json:"tokens" yaml:"tokens"`
	Resolved    int `json:"resolved" yaml:"resolved"`
	Fetched     int `json:"fetched" yaml:"fetched"`
	Empty       int `json:"empty" yaml:"empty"`
	Failed      int `json:"failed" yaml:"failed"`
	Records     int `json:"records" yaml:"records"`
	Reassigned  int `json:"reassigned" yaml:"reassigned"`
	RemoteCalls int `json:"remote_calls" yaml:"remote_calls"`
}

// Result is the output of one pipeline run.
type Result struct {
	RunID    string
	Resolved []model.CatalogNumber
	Entities []model.EntitySeries
	Charts   []Chart
	Summary  Summary
}

// Pipeline wires resolution, history retrieval, overrides and dataset
// assembly. All remote calls go through one Throttle, one at a time.
type Pipeline struct {
	remote   RemoteService
	catalogs CatalogLoader
	throttle *Throttle
	log      logging.Logger
	metrics  Metrics
}

func NewPipeline(remote RemoteService, catalogs CatalogLoader, throttle *Throttle) *Pipeline {
	if throttle == nil {
		throttle = NewThrottle(DefaultThrottleDelay, nil)
	}
	return &Pipeline{
		remote:   remote,
		catalogs: catalogs,
		throttle: throttle,
		log:      logging.Noop(),
		metrics:  noopMetrics{},
	}
}

// WithLogger sets the base logger and returns p.
func (p *Pipeline) WithLogger(l logging.Logger) *Pipeline {
	if l != nil {
		p.log = l
	}
	return p
}

// WithMetrics sets the metrics recorder and returns p.
func (p *Pipeline) WithMetrics(m Metrics) *Pipeline {
	if m != nil {
		p.metrics = m
		p.throttle.WithMetrics(m)
	}
	return p
}

// Prepare authenticates and loads the catalog mapping. Either failure is
// fatal to a run.
func (p *Pipeline) Prepare(ctx context.Context) (*kb.Catalog, error) {
	if p.remote == nil {
		return nil, fmt.Errorf("no remote service configured: %w", model.ErrCredentialFailure)
	}
	if _, err := Guard(ctx, p.throttle, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.remote.Login(ctx)
	}); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	catalog, err := p.catalogs.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog mapping: %w", err)
	}
	return catalog, nil
}

// Resolve authenticates, loads the catalog and resolves opts.Tokens.
func (p *Pipeline) Resolve(ctx context.Context, opts Options) ([]model.CatalogNumber, error) {
	ctx, log := logging.WithRunLogger(ctx, p.log)
	catalog, err := p.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return p.resolver(catalog, log).Resolve(ctx, opts.Tokens, opts.Exclusions), nil
}

func (p *Pipeline) resolver(catalog *kb.Catalog, log logging.Logger) *Resolver {
	return NewResolver(catalog, p.remote, p.throttle).WithLogger(log).WithMetrics(p.metrics)
}

// Run executes the whole pipeline. Only authentication and catalog loading
// errors, or cancellation of ctx, are returned; per-token and per-object
// failures are logged and counted in the summary.
func (p *Pipeline) Run(ctx context.Context, opts Options) (res *Result, err error) {
	ctx, log := logging.WithRunLogger(ctx, p.log)
	ctx, span := observability.StartSpan(ctx, "pipeline.run",
		attribute.Int("tokens", len(opts.Tokens)),
		attribute.String("mode", string(opts.Mode)),
	)
	defer func() { observability.EndSpan(span, err) }()

	callsBefore := p.throttle.Calls()
	res = &Result{RunID: logging.RunIDFromContext(ctx)}
	res.Summary.Tokens = len(opts.Tokens)

	catalog, err := p.Prepare(ctx)
	if err != nil {
		log.Error(ctx, "pipeline setup failed", logging.Err(err))
		return nil, err
	}
	log.Info(ctx, "catalog mapping loaded", logging.Int("rows", catalog.Len()))

	ids := p.resolver(catalog, log).Resolve(ctx, opts.Tokens, opts.Exclusions)
	ids = appendUnique(ids, opts.CatalogNumbers)
	res.Resolved = ids
	res.Summary.Resolved = len(ids)
	log.Info(ctx, "designators resolved", logging.Strings("catalog_numbers", numberStrings(ids)))

	fetcher := NewHistoryFetcher(p.remote, p.throttle).WithLogger(log).WithMetrics(p.metrics)
	histories := make(map[model.CatalogNumber][]model.OrbitalRecord, len(ids))
	names := make(map[model.CatalogNumber]string, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idField := logging.String("catalog_number", id.String())
		records, err := fetcher.Fetch(ctx, model.HistoryQuery{
			CatalogNumber: id,
			Start:         opts.Start,
			End:           opts.End,
			MinAltitudeKm: opts.MinAltitudeKm,
		})
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			res.Summary.Failed++
			log.Error(ctx, "history fetch failed", idField, logging.Err(err))
			continue
		case len(records) == 0:
			res.Summary.Empty++
			log.Warn(ctx, "skipping object", idField,
				logging.Err(fmt.Errorf("catalog number %s: %w", id, model.ErrEmptyHistory)))
			continue
		}
		histories[id] = records
		names[id] = displayName(catalog, id, records)
		res.Summary.Fetched++
		res.Summary.Records += len(records)
		log.Info(ctx, "history fetched", idField,
			logging.String("name", names[id]), logging.Int("records", len(records)))
	}

	primary, moved := ApplyOverrides(histories, opts.Overrides)
	res.Summary.Reassigned = len(moved)
	for _, m := range moved {
		if _, ok := names[m.Target]; !ok {
			names[m.Target] = displayName(catalog, m.Target, nil)
		}
		log.Debug(ctx, "record reassigned",
			logging.Int64("record_id", int64(m.Record.RecordID)),
			logging.String("from", m.Record.CatalogNumber.String()),
			logging.String("to", m.Target.String()))
	}

	builder := NewDatasetBuilder(opts.Build)
	res.Entities = builder.Entities(primary, moved, names)
	res.Charts = p.charts(builder, res.Entities, names, opts)
	p.metrics.SetEntities(len(res.Entities))
	res.Summary.RemoteCalls = p.throttle.Calls() - callsBefore

	log.Info(ctx, "pipeline finished",
		logging.Int("entities", len(res.Entities)),
		logging.Int("charts", len(res.Charts)),
		logging.Int("remote_calls", res.Summary.RemoteCalls),
		logging.Int("reassigned", res.Summary.Reassigned),
	)
	return res, nil
}

func (p *Pipeline) charts(b *DatasetBuilder, entities []model.EntitySeries, names map[model.CatalogNumber]string, opts Options) []Chart {
	if len(entities) == 0 {
		return nil
	}
	if opts.Mode == PlotCombined {
		unique := make(map[string]struct{}, len(entities))
		var titleNames []string
		numbers := make([]model.CatalogNumber, 0, len(entities))
		for _, e := range entities {
			numbers = append(numbers, e.Entity)
			name := nameOf(e.Entity, names)
			if _, dup := unique[name]; !dup {
				unique[name] = struct{}{}
				titleNames = append(titleNames, name)
			}
		}
		sort.Strings(titleNames)
		stem := opts.CombinedName
		if stem == "" {
			stem = DefaultCombinedName
		}
		return []Chart{{
			Title:    combinedTitle(opts.Build) + strings.Join(titleNames, ", "),
			FileStem: strings.TrimSuffix(stem, filepath.Ext(stem)),
			Entities: numbers,
			Datasets: b.Group(entities, false),
		}}
	}

	charts := make([]Chart, 0, len(entities))
	for _, e := range entities {
		name := nameOf(e.Entity, names)
		charts = append(charts, Chart{
			Title:    name + " altitude",
			FileStem: SanitizeFileName(name) + " altitude",
			Entities: []model.CatalogNumber{e.Entity},
			Datasets: b.Group([]model.EntitySeries{e}, true),
		})
	}
	return charts
}

func combinedTitle(opts BuildOptions) string {
	switch {
	case opts.ShowApoapsis && opts.ShowPeriapsis:
		return "Altitude of "
	case opts.ShowApoapsis:
		return "Apoapsis of "
	default:
		return "Periapsis of "
	}
}

// SanitizeFileName replaces path separators in an object name.
func SanitizeFileName(name string) string {
	return strings.NewReplacer("/", "-", `\`, "-").Replace(name)
}

// displayName prefers the catalog's name over the one reported with the
// history.
func displayName(catalog *kb.Catalog, n model.CatalogNumber, records []model.OrbitalRecord) string {
	if row, ok := catalog.ByCatalogNumber(n); ok && strings.TrimSpace(row.DisplayName) != "" {
		return strings.TrimSpace(row.DisplayName)
	}
	for _, rec := range records {
		if rec.ObjectName != "" {
			return rec.ObjectName
		}
	}
	return n.String()
}

func nameOf(n model.CatalogNumber, names map[model.CatalogNumber]string) string {
	if name := names[n]; name != "" {
		return name
	}
	return n.String()
}

func appendUnique(ids, extra []model.CatalogNumber) []model.CatalogNumber {
	if len(extra) == 0 {
		return ids
	}
	seen := make(map[model.CatalogNumber]struct{}, len(ids)+len(extra))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	for _, id := range extra {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func numberStrings(ids []model.CatalogNumber) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
