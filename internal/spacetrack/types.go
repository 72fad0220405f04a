package spacetrack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/satdecay/model"
)

// Decimal decodes Space-Track numeric columns, which arrive as JSON
// strings, bare numbers or null.
type Decimal struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = Decimal{}
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*d = Decimal{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("decode decimal %q: %w", s, err)
	}
	*d = Decimal{Value: v, Valid: true}
	return nil
}

// Int returns the value truncated to an int64.
func (d Decimal) Int() int64 { return int64(d.Value) }

// GPHistory is one row of the gp_history class. Only the columns the
// pipeline consumes are decoded.
type GPHistory struct {
	GPID          Decimal `json:"GP_ID"`
	CatalogNumber Decimal `json:"NORAD_CAT_ID"`
	ObjectName    string  `json:"OBJECT_NAME"`
	ObjectID      string  `json:"OBJECT_ID"`
	ObjectType    string  `json:"OBJECT_TYPE"`
	Epoch         string  `json:"EPOCH"`
	MeanMotion    Decimal `json:"MEAN_MOTION"`
	Eccentricity  Decimal `json:"ECCENTRICITY"`
	SemimajorAxis Decimal `json:"SEMIMAJOR_AXIS"`
	Period        Decimal `json:"PERIOD"`
	Apoapsis      Decimal `json:"APOAPSIS"`
	Periapsis     Decimal `json:"PERIAPSIS"`
	DecayDate     string  `json:"DECAY_DATE"`
	TLELine1      string  `json:"TLE_LINE1"`
	TLELine2      string  `json:"TLE_LINE2"`
}

// HasAltitudes reports whether both apoapsis and periapsis were published.
func (g GPHistory) HasAltitudes() bool { return g.Apoapsis.Valid && g.Periapsis.Valid }

// Record converts the row into an OrbitalRecord. Missing altitudes are left
// at zero; callers check HasAltitudes first.
func (g GPHistory) Record() (model.OrbitalRecord, error) {
	if !g.GPID.Valid {
		return model.OrbitalRecord{}, fmt.Errorf("gp_history row without GP_ID")
	}
	if !g.CatalogNumber.Valid {
		return model.OrbitalRecord{}, fmt.Errorf("gp_history row %d without NORAD_CAT_ID", g.GPID.Int())
	}
	epoch, err := ParseEpoch(g.Epoch)
	if err != nil {
		return model.OrbitalRecord{}, fmt.Errorf("gp_history row %d: %w", g.GPID.Int(), err)
	}
	return model.OrbitalRecord{
		RecordID:      model.RecordID(g.GPID.Int()),
		CatalogNumber: model.CatalogNumber(g.CatalogNumber.Int()),
		Epoch:         epoch,
		ApoapsisKm:    g.Apoapsis.Value,
		PeriapsisKm:   g.Periapsis.Value,
		ObjectName:    strings.TrimSpace(g.ObjectName),
		TLELine1:      g.TLELine1,
		TLELine2:      g.TLELine2,
	}, nil
}

// SatCat is one row of the satcat class.
type SatCat struct {
	IntlDesignator string  `json:"INTLDES"`
	CatalogNumber  Decimal `json:"NORAD_CAT_ID"`
	ObjectType     string  `json:"OBJECT_TYPE"`
	SatName        string  `json:"SATNAME"`
	Country        string  `json:"COUNTRY"`
	Launch         string  `json:"LAUNCH"`
	Decay          string  `json:"DECAY"`
}

// Row converts the entry into a CatalogRow.
func (s SatCat) Row() model.CatalogRow {
	row := model.CatalogRow{
		DisplayName: strings.TrimSpace(s.SatName),
		Designator:  strings.TrimSpace(s.IntlDesignator),
		ObjectType:  strings.TrimSpace(s.ObjectType),
	}
	if s.CatalogNumber.Valid {
		row.CatalogNumber = model.CatalogNumber(s.CatalogNumber.Int())
	}
	return row
}

var epochLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseEpoch parses a Space-Track epoch. Timestamps without a zone are UTC.
func ParseEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range epochLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised epoch %q", s)
}
