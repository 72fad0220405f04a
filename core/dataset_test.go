package core

import (
	"reflect"
	"testing"

	"github.com/signalsfoundry/satdecay/model"
)

func seriesNames(ds model.Dataset) []string {
	var out []string
	for _, s := range ds.Series {
		out = append(out, s.Name)
	}
	return out
}

func TestBuildDistinguished(t *testing.T) {
	histories := map[model.CatalogNumber][]model.OrbitalRecord{
		25544: {rec(1, 25544, 0, 421, 416), rec(2, 25544, 1, 420, 415)},
	}
	names := map[model.CatalogNumber]string{25544: "ISS (ZARYA)"}
	datasets := NewDatasetBuilder(DefaultBuildOptions()).Build(histories, nil, names, true)

	if len(datasets) != 1 {
		t.Fatalf("datasets = %d, want 1", len(datasets))
	}
	if got, want := seriesNames(datasets[0]), []string{"ISS (ZARYA) Apoapsis", "ISS (ZARYA) Periapsis"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("series = %v, want %v", got, want)
	}
	apo := datasets[0].Series[0]
	if apo.Kind != model.KindApoapsis || len(apo.Points) != 2 || apo.Points[0].Value != 421 || apo.Points[0].Label != "1" {
		t.Fatalf("apoapsis series = %+v", apo)
	}
	if peri := datasets[0].Series[1]; peri.Points[1].Value != 415 || peri.Points[1].Label != "2" {
		t.Fatalf("periapsis series = %+v", peri)
	}
}

func TestBuildCombinedPairsEntities(t *testing.T) {
	histories := map[model.CatalogNumber][]model.OrbitalRecord{
		48274: {rec(5, 48274, 0, 390, 380)},
		25544: {rec(1, 25544, 0, 421, 416)},
	}
	names := map[model.CatalogNumber]string{25544: "ISS (ZARYA)", 48274: "CSS (TIANHE)"}
	datasets := NewDatasetBuilder(DefaultBuildOptions()).Build(histories, nil, names, false)

	if len(datasets) != 2 {
		t.Fatalf("datasets = %d, want 2", len(datasets))
	}
	want := []string{"ISS (ZARYA)", "CSS (TIANHE)"}
	for i, kind := range []model.SeriesKind{model.KindApoapsis, model.KindPeriapsis} {
		if got := seriesNames(datasets[i]); !reflect.DeepEqual(got, want) {
			t.Fatalf("dataset %d series = %v, want %v", i, got, want)
		}
		for _, s := range datasets[i].Series {
			if s.Kind != kind {
				t.Fatalf("dataset %d holds %s series", i, s.Kind)
			}
		}
	}
}

func TestBuildNamingFallbacks(t *testing.T) {
	histories := map[model.CatalogNumber][]model.OrbitalRecord{
		25544: {rec(1, 25544, 0, 421, 416)},
		99:    {rec(2, 99, 0, 300, 200)},
	}
	names := map[model.CatalogNumber]string{25544: "ISS (ZARYA)"}

	opts := DefaultBuildOptions()
	got := seriesNames(NewDatasetBuilder(opts).Build(histories, nil, names, false)[0])
	if want := []string{"99", "ISS (ZARYA)"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("with names: %v, want %v", got, want)
	}

	opts.UseNameInLegend = false
	got = seriesNames(NewDatasetBuilder(opts).Build(histories, nil, names, true)[0])
	if want := []string{"99 Apoapsis", "99 Periapsis", "25544 Apoapsis", "25544 Periapsis"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers in legend: %v, want %v", got, want)
	}
}

func TestBuildShowFlags(t *testing.T) {
	histories := map[model.CatalogNumber][]model.OrbitalRecord{
		1: {rec(1, 1, 0, 500, 400)},
	}
	tests := []struct {
		name       string
		apo, peri  bool
		wantSeries []string
	}{
		{"both", true, true, []string{"SAT Apoapsis", "SAT Periapsis"}},
		{"apoapsis only", true, false, []string{"SAT Apoapsis"}},
		{"periapsis only", false, true, []string{"SAT Periapsis"}},
		{"neither", false, false, []string{"SAT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewDatasetBuilder(BuildOptions{ShowApoapsis: tt.apo, ShowPeriapsis: tt.peri, UseNameInLegend: true})
			names := map[model.CatalogNumber]string{1: "SAT"}
			ds := b.Build(histories, nil, names, true)
			if got := seriesNames(ds[0]); !reflect.DeepEqual(got, tt.wantSeries) {
				t.Fatalf("series = %v, want %v", got, tt.wantSeries)
			}
			entities := b.Entities(histories, nil, names)
			if len(entities) != 1 || entities[0].Entity != 1 {
				t.Fatalf("entity not declared: %+v", entities)
			}
			if (len(entities[0].Apoapsis) > 0) != tt.apo || (len(entities[0].Periapsis) > 0) != tt.peri {
				t.Fatalf("entity points = %+v", entities[0])
			}
		})
	}
}

func TestBuildHiddenKindsStillDeclareEntities(t *testing.T) {
	histories := map[model.CatalogNumber][]model.OrbitalRecord{
		25544: {rec(1, 25544, 0, 421, 416)},
		7:     {rec(2, 7, 0, 900, 890)},
	}
	names := map[model.CatalogNumber]string{25544: "ISS (ZARYA)", 7: "OLD"}
	b := NewDatasetBuilder(BuildOptions{UseNameInLegend: true})

	ds := b.Build(histories, nil, names, false)
	if len(ds) != 2 {
		t.Fatalf("datasets = %d, want 2", len(ds))
	}
	want := []string{"OLD", "ISS (ZARYA)"}
	for i, d := range ds {
		if got := seriesNames(d); !reflect.DeepEqual(got, want) {
			t.Fatalf("dataset %d series = %v, want %v", i, got, want)
		}
		for _, s := range d.Series {
			if s.Points == nil || len(s.Points) != 0 || s.Kind != "" {
				t.Fatalf("hidden series = %+v, want declared with no points", s)
			}
		}
	}
}

func TestBuildReassignedTargetCreatedOnDemand(t *testing.T) {
	histories := map[model.CatalogNumber][]model.OrbitalRecord{
		25544: {rec(6, 25544, 0, 420, 410), rec(7, 25544, 1, 900, 890)},
	}
	primary, moved := ApplyOverrides(histories, model.Overrides{7: 99})
	entities := NewDatasetBuilder(DefaultBuildOptions()).Entities(primary, moved, nil)

	if len(entities) != 2 || entities[0].Entity != 99 || entities[1].Entity != 25544 {
		t.Fatalf("entities = %+v", entities)
	}
	target := entities[0]
	if len(target.Apoapsis) != 1 || target.Apoapsis[0].Label != "7" || target.Apoapsis[0].Value != 900 {
		t.Fatalf("target series = %+v", target)
	}
	for _, p := range entities[1].Apoapsis {
		if p.Label == "7" {
			t.Fatalf("record 7 still drawn under 25544")
		}
	}
}

func TestBuildSameEpochKeepsLastValue(t *testing.T) {
	histories := map[model.CatalogNumber][]model.OrbitalRecord{
		1: {rec(1, 1, 0, 500, 400), rec(2, 1, 0, 510, 410), rec(3, 1, 1, 505, 405)},
	}
	e := NewDatasetBuilder(DefaultBuildOptions()).Entities(histories, nil, nil)[0]
	if len(e.Apoapsis) != 2 {
		t.Fatalf("points = %d, want 2", len(e.Apoapsis))
	}
	if e.Apoapsis[0].Value != 510 || e.Apoapsis[0].Label != "2" {
		t.Fatalf("first point = %+v, want record 2", e.Apoapsis[0])
	}
}
