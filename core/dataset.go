package core

import (
	"sort"
	"strings"
	"time"

	"github.com/signalsfoundry/satdecay/model"
)

// BuildOptions controls which traces are drawn and how they are named.
type BuildOptions struct {
	ShowApoapsis    bool
	ShowPeriapsis   bool
	UseNameInLegend bool
}

// DefaultBuildOptions draws both traces, named after the object.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{ShowApoapsis: true, ShowPeriapsis: true, UseNameInLegend: true}
}

// DatasetBuilder turns record histories into plottable series.
type DatasetBuilder struct {
	opts BuildOptions
}

func NewDatasetBuilder(opts BuildOptions) *DatasetBuilder {
	return &DatasetBuilder{opts: opts}
}

// Entities returns one EntitySeries per entity in ascending catalog number
// order. Entities come from primary and from the targets of moved, so a
// reassignment target gets a series even if it was never fetched. Points
// sharing an epoch collapse to the one added last; moved records are added
// after the primary ones.
func (b *DatasetBuilder) Entities(primary map[model.CatalogNumber][]model.OrbitalRecord, moved []Reassignment, names map[model.CatalogNumber]string) []model.EntitySeries {
	acc := make(map[model.CatalogNumber]*entityPoints)
	get := func(n model.CatalogNumber) *entityPoints {
		e, ok := acc[n]
		if !ok {
			e = newEntityPoints()
			acc[n] = e
		}
		return e
	}
	for n, records := range primary {
		e := get(n)
		for _, rec := range records {
			e.add(rec, b.opts)
		}
	}
	for _, m := range moved {
		get(m.Target).add(m.Record, b.opts)
	}

	out := make([]model.EntitySeries, 0, len(acc))
	for _, n := range sortedNumbers(acc) {
		e := acc[n]
		out = append(out, model.EntitySeries{
			Entity:    n,
			Name:      b.legendName(n, names),
			Apoapsis:  e.apo.sorted(),
			Periapsis: e.peri.sorted(),
		})
	}
	return out
}

// Build groups the histories into datasets. With distinguish set, a single
// dataset holds "<name> Apoapsis" and "<name> Periapsis" for every entity.
// Otherwise two datasets are returned, apoapsis then periapsis, each with
// one series per entity named after it, in the same entity order.
// A kind whose show flag is off contributes no series. With both off, each
// entity is still declared as one series with no points.
func (b *DatasetBuilder) Build(primary map[model.CatalogNumber][]model.OrbitalRecord, moved []Reassignment, names map[model.CatalogNumber]string, distinguish bool) []model.Dataset {
	return b.Group(b.Entities(primary, moved, names), distinguish)
}

// Group arranges already built entity series into datasets; see Build.
func (b *DatasetBuilder) Group(entities []model.EntitySeries, distinguish bool) []model.Dataset {
	hidden := !b.opts.ShowApoapsis && !b.opts.ShowPeriapsis
	if distinguish {
		var ds model.Dataset
		for _, e := range entities {
			if hidden {
				ds.Series = append(ds.Series, declared(e))
			}
			if b.opts.ShowApoapsis {
				ds.Series = append(ds.Series, series(e, model.KindApoapsis, joinName(e.Name, "Apoapsis"), e.Apoapsis))
			}
			if b.opts.ShowPeriapsis {
				ds.Series = append(ds.Series, series(e, model.KindPeriapsis, joinName(e.Name, "Periapsis"), e.Periapsis))
			}
		}
		return []model.Dataset{ds}
	}

	var apo, peri model.Dataset
	for _, e := range entities {
		if hidden {
			apo.Series = append(apo.Series, declared(e))
			peri.Series = append(peri.Series, declared(e))
		}
		if b.opts.ShowApoapsis {
			apo.Series = append(apo.Series, series(e, model.KindApoapsis, e.Name, e.Apoapsis))
		}
		if b.opts.ShowPeriapsis {
			peri.Series = append(peri.Series, series(e, model.KindPeriapsis, e.Name, e.Periapsis))
		}
	}
	return []model.Dataset{apo, peri}
}

func (b *DatasetBuilder) legendName(n model.CatalogNumber, names map[model.CatalogNumber]string) string {
	if !b.opts.UseNameInLegend {
		return n.String()
	}
	if name := strings.TrimSpace(names[n]); name != "" {
		return name
	}
	return n.String()
}

func series(e model.EntitySeries, kind model.SeriesKind, name string, points []model.Point) model.Series {
	return model.Series{Entity: e.Entity, Name: name, Kind: kind, Points: points}
}

// declared is the placeholder series of an entity whose traces are all hidden.
func declared(e model.EntitySeries) model.Series {
	return model.Series{Entity: e.Entity, Name: e.Name, Points: []model.Point{}}
}

func joinName(name, suffix string) string {
	if name == "" {
		return suffix
	}
	return name + " " + suffix
}

type entityPoints struct {
	apo, peri pointSet
}

func newEntityPoints() *entityPoints {
	return &entityPoints{
		apo:  pointSet{index: make(map[int64]int)},
		peri: pointSet{index: make(map[int64]int)},
	}
}

func (e *entityPoints) add(rec model.OrbitalRecord, opts BuildOptions) {
	label := model.RecordLabel(rec.RecordID)
	if opts.ShowApoapsis {
		e.apo.put(rec.Epoch, rec.ApoapsisKm, label)
	}
	if opts.ShowPeriapsis {
		e.peri.put(rec.Epoch, rec.PeriapsisKm, label)
	}
}

// pointSet keeps at most one point per epoch, at millisecond resolution.
type pointSet struct {
	points []model.Point
	index  map[int64]int
}

func (s *pointSet) put(epoch time.Time, value float64, label string) {
	epoch = epoch.UTC().Truncate(time.Millisecond)
	key := epoch.UnixMilli()
	p := model.Point{Epoch: epoch, Value: value, Label: label}
	if i, ok := s.index[key]; ok {
		s.points[i] = p
		return
	}
	s.index[key] = len(s.points)
	s.points = append(s.points, p)
}

func (s *pointSet) sorted() []model.Point {
	out := make([]model.Point, len(s.points))
	copy(out, s.points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Epoch.Before(out[j].Epoch) })
	return out
}

func sortedNumbers[V any](m map[model.CatalogNumber]V) []model.CatalogNumber {
	out := make([]model.CatalogNumber, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
