package core

import "github.com/signalsfoundry/satdecay/model"

// Reassignment is a record drawn under another entity than its own.
type Reassignment struct {
	Record model.OrbitalRecord
	Target model.CatalogNumber
}

// ApplyOverrides splits histories into the records that stay with their
// nominal entity and those an override moves elsewhere. An override equal
// to the record's own catalog number is a no-op. Targets need not appear
// in histories. The input is not modified.
func ApplyOverrides(histories map[model.CatalogNumber][]model.OrbitalRecord, overrides model.Overrides) (map[model.CatalogNumber][]model.OrbitalRecord, []Reassignment) {
	primary := make(map[model.CatalogNumber][]model.OrbitalRecord, len(histories))
	var moved []Reassignment
	for _, n := range sortedNumbers(histories) {
		kept := make([]model.OrbitalRecord, 0, len(histories[n]))
		for _, rec := range histories[n] {
			target, ok := overrides[rec.RecordID]
			if !ok || target == rec.CatalogNumber {
				kept = append(kept, rec)
				continue
			}
			moved = append(moved, Reassignment{Record: rec, Target: target})
		}
		primary[n] = kept
	}
	return primary, moved
}
