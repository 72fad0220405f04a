package model

import (
	"strconv"
	"time"
)

// RecordID is the stable identifier of one historical element set
// (Space-Track GP_ID). It is treated as an opaque key.
type RecordID int64

// OrbitalRecord is one historical element set for a catalog number.
// Altitudes are in kilometres above the reference ellipsoid.
type OrbitalRecord struct {
	RecordID      RecordID
	CatalogNumber CatalogNumber
	Epoch         time.Time
	ApoapsisKm    float64
	PeriapsisKm   float64
	ObjectName    string

	// Optional two-line element set the record was published with.
	TLELine1 string
	TLELine2 string
}

// Overrides reassigns individual records to a different entity's series.
type Overrides map[RecordID]CatalogNumber

// HistoryQuery bounds one history fetch. Zero times mean unbounded and a
// zero MinAltitudeKm disables the periapsis predicate.
type HistoryQuery struct {
	CatalogNumber CatalogNumber
	Start         time.Time
	End           time.Time
	MinAltitudeKm float64
}

// RecordLabel formats a record id as a point label.
func RecordLabel(id RecordID) string { return strconv.FormatInt(int64(id), 10) }
