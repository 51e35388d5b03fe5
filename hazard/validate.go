package hazard

import (
	"fmt"
	"math"
)

// Validate checks the whole-set invariants once, before any cell is
// processed: the set is non-empty, event IDs are unique, every frequency
// is a positive finite real with a finite total, every water level is
// finite and every event covers exactly the cells of the first event.
func (s EventSet) Validate() error {
	if len(s.Events) == 0 {
		return &InputError{Field: "events", Reason: "event set is empty"}
	}

	first := s.Events[0]
	if len(first.WaterLevels) == 0 {
		return &InputError{Field: "water_levels", EventID: first.ID, Reason: "event covers no grid cells"}
	}

	seen := make(map[EventID]bool, len(s.Events))
	total := 0.0
	for i, ev := range s.Events {
		if ev.ID == "" {
			return &InputError{Field: "events", Reason: fmt.Sprintf("event at index %d has no identifier", i)}
		}
		if seen[ev.ID] {
			return &InputError{Field: "events", EventID: ev.ID, Reason: "duplicate event identifier"}
		}
		seen[ev.ID] = true

		if !isPositiveFinite(ev.Frequency) {
			return &InputError{
				Field:   "frequency",
				EventID: ev.ID,
				Reason:  fmt.Sprintf("frequency must be a positive finite number, got %v", ev.Frequency),
			}
		}
		// an infinite exceedance would give return period 0
		if total += ev.Frequency; math.IsInf(total, 0) {
			return &InputError{Field: "frequency", EventID: ev.ID, Reason: "total frequency of the event set overflows"}
		}

		for cell, wl := range ev.WaterLevels {
			if math.IsNaN(wl) || math.IsInf(wl, 0) {
				return &InputError{Field: "water_levels", EventID: ev.ID, Cell: cell, Reason: "water level is not finite"}
			}
			if i > 0 {
				if _, ok := first.WaterLevels[cell]; !ok {
					return &InputError{
						Field:   "water_levels",
						EventID: first.ID,
						Cell:    cell,
						Reason:  fmt.Sprintf("cell present in event %s is missing", ev.ID),
					}
				}
			}
		}

		if i > 0 && len(ev.WaterLevels) != len(first.WaterLevels) {
			for cell := range first.WaterLevels {
				if _, ok := ev.WaterLevels[cell]; !ok {
					return &InputError{
						Field:   "water_levels",
						EventID: ev.ID,
						Cell:    cell,
						Reason:  fmt.Sprintf("cell present in event %s is missing", first.ID),
					}
				}
			}
		}
	}
	return nil
}

// ValidateReturnPeriods checks a requested return-period list: non-empty,
// every value a positive finite real. Duplicates are allowed.
func ValidateReturnPeriods(rps []float64) error {
	if len(rps) == 0 {
		return &InputError{Field: "return_periods", Reason: "at least one return period is required"}
	}
	for i, t := range rps {
		if !isPositiveFinite(t) {
			return &InputError{
				Field:  "return_periods",
				Reason: fmt.Sprintf("return period at index %d must be a positive finite number, got %v", i, t),
			}
		}
	}
	return nil
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
