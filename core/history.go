package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/signalsfoundry/satdecay/internal/logging"
	"github.com/signalsfoundry/satdecay/internal/spacetrack"
	"github.com/signalsfoundry/satdecay/model"
)

// HistoryQuerier runs gp_history queries. *spacetrack.Client satisfies it.
type HistoryQuerier interface {
	GPHistory(ctx context.Context, q spacetrack.Query) ([]spacetrack.GPHistory, error)
}

// HistoryFetcher retrieves the element-set history of one catalog number.
type HistoryFetcher struct {
	remote   HistoryQuerier
	throttle *Throttle
	log      logging.Logger
	metrics  Metrics
	results  *Memo[string, []model.OrbitalRecord]
}

// NewHistoryFetcher builds a fetcher issuing every query through throttle.
func NewHistoryFetcher(remote HistoryQuerier, throttle *Throttle) *HistoryFetcher {
	return &HistoryFetcher{
		remote:   remote,
		throttle: throttle,
		log:      logging.Noop(),
		metrics:  noopMetrics{},
		results:  NewMemo[string, []model.OrbitalRecord](),
	}
}

// WithLogger sets the logger and returns f.
func (f *HistoryFetcher) WithLogger(l logging.Logger) *HistoryFetcher {
	if l != nil {
		f.log = l
	}
	return f
}

// WithMetrics sets the metrics recorder and returns f.
func (f *HistoryFetcher) WithMetrics(m Metrics) *HistoryFetcher {
	if m != nil {
		f.metrics = m
	}
	return f
}

// HistoryRequest renders q as a gp_history query. The periapsis bound is
// only added when MinAltitudeKm is non-zero.
func HistoryRequest(q model.HistoryQuery) spacetrack.Query {
	req := spacetrack.NewQuery(spacetrack.ClassGPHistory).
		Where(spacetrack.Equal(spacetrack.FieldCatalogNumber, int(q.CatalogNumber)))
	if !q.Start.IsZero() {
		req = req.Where(spacetrack.GreaterThan(spacetrack.FieldEpoch, q.Start))
	}
	if !q.End.IsZero() {
		req = req.Where(spacetrack.LessThan(spacetrack.FieldEpoch, q.End))
	}
	if q.MinAltitudeKm != 0 {
		req = req.Where(spacetrack.GreaterThan(spacetrack.FieldPeriapsis, q.MinAltitudeKm))
	}
	return req
}

// Fetch returns the records matching q in ascending epoch order, ties
// broken by record id. No history in range yields an empty slice and a nil
// error. Identical queries within a run are answered from memory.
func (f *HistoryFetcher) Fetch(ctx context.Context, q model.HistoryQuery) ([]model.OrbitalRecord, error) {
	req := HistoryRequest(q)
	records, err := f.results.Do(req.Path(), func() ([]model.OrbitalRecord, error) {
		rows, err := Guard(ctx, f.throttle, func(ctx context.Context) ([]spacetrack.GPHistory, error) {
			return f.remote.GPHistory(ctx, req)
		})
		if err != nil {
			return nil, fmt.Errorf("history of %s: %w", q.CatalogNumber, err)
		}
		records := f.convert(ctx, q.CatalogNumber, rows)
		f.metrics.AddRecordsFetched(len(records))
		return records, nil
	})
	f.metrics.SetMemoHitRatio("gp_history", f.results.HitRatio())
	if err != nil {
		return nil, err
	}
	out := make([]model.OrbitalRecord, len(records))
	copy(out, records)
	return out, nil
}

func (f *HistoryFetcher) convert(ctx context.Context, n model.CatalogNumber, rows []spacetrack.GPHistory) []model.OrbitalRecord {
	records := make([]model.OrbitalRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			f.log.Debug(ctx, "skipping malformed history row",
				logging.String("catalog_number", n.String()), logging.Err(err))
			continue
		}
		if !row.HasAltitudes() {
			if rec.TLELine1 == "" || rec.TLELine2 == "" {
				f.log.Debug(ctx, "skipping history row without altitudes",
					logging.String("catalog_number", n.String()),
					logging.Int64("record_id", int64(rec.RecordID)))
				continue
			}
			apo, peri, err := AltitudesFromTLE(rec.TLELine1, rec.TLELine2, rec.Epoch)
			if err != nil {
				f.log.Debug(ctx, "skipping history row with unusable element set",
					logging.String("catalog_number", n.String()),
					logging.Int64("record_id", int64(rec.RecordID)),
					logging.Err(err))
				continue
			}
			rec.ApoapsisKm, rec.PeriapsisKm = apo, peri
		}
		records = append(records, rec)
	}
	SortRecords(records)
	return records
}

// SortRecords orders records by epoch, then record id.
func SortRecords(records []model.OrbitalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Epoch.Equal(records[j].Epoch) {
			return records[i].Epoch.Before(records[j].Epoch)
		}
		return records[i].RecordID < records[j].RecordID
	})
}
