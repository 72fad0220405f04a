package model

import "time"

// SeriesKind distinguishes the two altitude traces drawn per object.
type SeriesKind string

const (
	KindApoapsis  SeriesKind = "apoapsis"
	KindPeriapsis SeriesKind = "periapsis"
)

// Point is one plotted sample. Label carries the source record id.
type Point struct {
	Epoch time.Time `json:"epoch" yaml:"epoch"`
	Value float64   `json:"value" yaml:"value"`
	Label string    `json:"label" yaml:"label"`
}

// EntitySeries holds the apoapsis and periapsis points drawn for one entity.
type EntitySeries struct {
	Entity    CatalogNumber
	Name      string
	Apoapsis  []Point
	Periapsis []Point
}

// Series is a named trace inside a Dataset.
type Series struct {
	Entity CatalogNumber `json:"entity" yaml:"entity"`
	Name   string        `json:"name" yaml:"name"`
	Kind   SeriesKind    `json:"kind,omitempty" yaml:"kind,omitempty"`
	Points []Point       `json:"points" yaml:"points"`
}

// Dataset is a group of series rendered in one pass; series at the same
// index across datasets share a colour.
type Dataset struct {
	Series []Series `json:"series" yaml:"series"`
}
