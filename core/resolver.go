package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/satdecay/internal/logging"
	"github.com/signalsfoundry/satdecay/internal/spacetrack"
	"github.com/signalsfoundry/satdecay/kb"
	"github.com/signalsfoundry/satdecay/model"
)

// CatalogQuerier looks catalog rows up remotely. *spacetrack.Client
// satisfies it.
type CatalogQuerier interface {
	SatCat(ctx context.Context, q spacetrack.Query) ([]spacetrack.SatCat, error)
}

// Resolution kinds and sources reported to Metrics.
const (
	ResolveExact   = "exact"
	ResolvePattern = "pattern"

	SourceCatalog = "catalog"
	SourceRemote  = "remote"
	SourceMiss    = "miss"
	SourceFailed  = "failed"
)

// Token is a parsed designator token.
type Token struct {
	Raw     string
	Value   string // designator, or prefix for patterns
	Pattern bool
}

// ParseToken trims raw and splits off a trailing wildcard. The prefix of a
// pattern is the text before the last '*'.
func ParseToken(raw string) Token {
	t := strings.TrimSpace(raw)
	if strings.HasSuffix(t, "*") {
		return Token{Raw: raw, Value: strings.TrimSpace(t[:strings.LastIndex(t, "*")]), Pattern: true}
	}
	return Token{Raw: raw, Value: t}
}

func (t Token) kind() string {
	if t.Pattern {
		return ResolvePattern
	}
	return ResolveExact
}

// Resolver turns designator tokens into catalog numbers, using the local
// catalog first and a throttled remote lookup for gaps.
type Resolver struct {
	catalog  *kb.Catalog
	remote   CatalogQuerier
	throttle *Throttle
	log      logging.Logger
	metrics  Metrics
	lookups  *Memo[string, []model.CatalogRow]
}

// NewResolver builds a Resolver. remote may be nil, in which case only the
// local catalog is consulted.
func NewResolver(catalog *kb.Catalog, remote CatalogQuerier, throttle *Throttle) *Resolver {
	return &Resolver{
		catalog:  catalog,
		remote:   remote,
		throttle: throttle,
		log:      logging.Noop(),
		metrics:  noopMetrics{},
		lookups:  NewMemo[string, []model.CatalogRow](),
	}
}

// WithLogger sets the logger and returns r.
func (r *Resolver) WithLogger(l logging.Logger) *Resolver {
	if l != nil {
		r.log = l
	}
	return r
}

// WithMetrics sets the metrics recorder and returns r.
func (r *Resolver) WithMetrics(m Metrics) *Resolver {
	if m != nil {
		r.metrics = m
	}
	return r
}

// Resolve maps tokens to catalog numbers, deduplicated in order of first
// appearance. Tokens that match nothing or whose lookup fails are logged
// and skipped.
func (r *Resolver) Resolve(ctx context.Context, tokens []string, ex model.Exclusions) []model.CatalogNumber {
	seen := make(map[model.CatalogNumber]struct{})
	var out []model.CatalogNumber
	for _, raw := range tokens {
		tok := ParseToken(raw)
		if tok.Value == "" && !tok.Pattern {
			continue
		}
		numbers, err := r.ResolveToken(ctx, tok, ex)
		if err != nil {
			level := r.log.Error
			if errors.Is(err, model.ErrResolutionMiss) {
				level = r.log.Warn
			}
			level(ctx, "designator not resolved",
				logging.String("token", tok.Raw),
				logging.String("kind", tok.kind()),
				logging.Err(err),
			)
			continue
		}
		for _, n := range numbers {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	r.metrics.SetMemoHitRatio("satcat", r.lookups.HitRatio())
	return out
}

// ResolveToken resolves a single token. It returns model.ErrResolutionMiss
// when nothing matched, or a wrapped model.ErrSourceUnavailable when the
// remote lookup failed.
func (r *Resolver) ResolveToken(ctx context.Context, tok Token, ex model.Exclusions) ([]model.CatalogNumber, error) {
	if tok.Pattern {
		return r.resolvePattern(ctx, tok, ex)
	}
	return r.resolveExact(ctx, tok)
}

func (r *Resolver) resolveExact(ctx context.Context, tok Token) ([]model.CatalogNumber, error) {
	if row, ok := r.catalog.Lookup(tok.Value); ok && row.HasCatalogNumber() {
		r.metrics.IncResolution(ResolveExact, SourceCatalog)
		return []model.CatalogNumber{row.CatalogNumber}, nil
	}

	q := spacetrack.NewQuery(spacetrack.ClassSatCat).
		Where(spacetrack.Equal(spacetrack.FieldIntlDesignator, tok.Value)).
		Ordered("NORAD_CAT_ID asc")
	rows, err := r.lookup(ctx, q)
	if err != nil {
		r.metrics.IncResolution(ResolveExact, SourceFailed)
		return nil, err
	}
	for _, row := range rows {
		if row.HasCatalogNumber() {
			r.metrics.IncResolution(ResolveExact, SourceRemote)
			return []model.CatalogNumber{row.CatalogNumber}, nil
		}
	}
	r.metrics.IncResolution(ResolveExact, SourceMiss)
	return nil, fmt.Errorf("designator %q: %w", tok.Value, model.ErrResolutionMiss)
}

func (r *Resolver) resolvePattern(ctx context.Context, tok Token, ex model.Exclusions) ([]model.CatalogNumber, error) {
	if numbers := matching(r.catalog.WithPrefix(tok.Value), ex); len(numbers) > 0 {
		r.metrics.IncResolution(ResolvePattern, SourceCatalog)
		return numbers, nil
	}

	q := spacetrack.NewQuery(spacetrack.ClassSatCat).
		Where(spacetrack.StartsWith(spacetrack.FieldIntlDesignator, tok.Value)).
		Ordered("NORAD_CAT_ID asc")
	rows, err := r.lookup(ctx, q)
	if err != nil {
		r.metrics.IncResolution(ResolvePattern, SourceFailed)
		return nil, err
	}
	if numbers := matching(rows, ex); len(numbers) > 0 {
		r.metrics.IncResolution(ResolvePattern, SourceRemote)
		return numbers, nil
	}
	r.metrics.IncResolution(ResolvePattern, SourceMiss)
	return nil, fmt.Errorf("pattern %q: %w", tok.Value+"*", model.ErrResolutionMiss)
}

// lookup runs one throttled satcat query, memoised by path for this run.
func (r *Resolver) lookup(ctx context.Context, q spacetrack.Query) ([]model.CatalogRow, error) {
	if r.remote == nil {
		return nil, nil
	}
	return r.lookups.Do(q.Path(), func() ([]model.CatalogRow, error) {
		entries, err := Guard(ctx, r.throttle, func(ctx context.Context) ([]spacetrack.SatCat, error) {
			return r.remote.SatCat(ctx, q)
		})
		if err != nil {
			return nil, fmt.Errorf("satcat lookup %s: %w", q.Path(), err)
		}
		rows := make([]model.CatalogRow, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, e.Row())
		}
		return rows, nil
	})
}

// matching returns the distinct catalog numbers of rows that carry one and
// are not excluded, ascending.
func matching(rows []model.CatalogRow, ex model.Exclusions) []model.CatalogNumber {
	seen := make(map[model.CatalogNumber]struct{}, len(rows))
	var out []model.CatalogNumber
	for _, row := range rows {
		if !row.HasCatalogNumber() || ex.Excludes(row) {
			continue
		}
		if _, dup := seen[row.CatalogNumber]; dup {
			continue
		}
		seen[row.CatalogNumber] = struct{}{}
		out = append(out, row.CatalogNumber)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
