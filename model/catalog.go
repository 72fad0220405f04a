package model

import (
	"strconv"
	"strings"
)

// CatalogNumber identifies one tracked orbiting object (NORAD catalog id).
type CatalogNumber int

func (n CatalogNumber) String() string { return strconv.Itoa(int(n)) }

// ParseCatalogNumber parses a catalog number column. Blank input yields
// (0, false, nil).
func ParseCatalogNumber(s string) (CatalogNumber, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, err
	}
	return CatalogNumber(v), true, nil
}

// CatalogRow is one entry of the external satellite catalog mapping.
type CatalogRow struct {
	DisplayName   string
	Designator    string // international designator, e.g. "1998-067A"
	CatalogNumber CatalogNumber
	ObjectType    string
}

// HasCatalogNumber reports whether the source carried a catalog number for
// this row.
func (r CatalogRow) HasCatalogNumber() bool { return r.CatalogNumber > 0 }

// Exclusions removes objects from wildcard resolution, either by designator
// or by catalog number.
type Exclusions struct {
	Designators    map[string]struct{}
	CatalogNumbers map[CatalogNumber]struct{}
}

// NewExclusions builds an Exclusions set; designators are trimmed and blank
// entries ignored.
func NewExclusions(designators []string, numbers []CatalogNumber) Exclusions {
	ex := Exclusions{
		Designators:    make(map[string]struct{}, len(designators)),
		CatalogNumbers: make(map[CatalogNumber]struct{}, len(numbers)),
	}
	for _, d := range designators {
		if d = strings.TrimSpace(d); d != "" {
			ex.Designators[d] = struct{}{}
		}
	}
	for _, n := range numbers {
		ex.CatalogNumbers[n] = struct{}{}
	}
	return ex
}

// Excludes reports whether a row is excluded by designator or number.
func (e Exclusions) Excludes(row CatalogRow) bool {
	if _, ok := e.Designators[row.Designator]; ok {
		return true
	}
	if row.HasCatalogNumber() {
		if _, ok := e.CatalogNumbers[row.CatalogNumber]; ok {
			return true
		}
	}
	return false
}
