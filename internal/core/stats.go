package core

import "sort"

// SortChronological orders records by (Date, CreatedAt). The sort is stable,
// so exact ties keep their insertion order and repeated recomputes never
// oscillate.
func SortChronological(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Before(records[j])
	})
}

// Recompute refreshes the derived fields of every record. records must
// already be in chronological order.
func Recompute(records []Record) {
	RecomputeFrom(records, 0)
}

// RecomputeFrom refreshes the derived fields of records[from:], seeding the
// running odometer from records[from-1]. Records before from are untouched.
func RecomputeFrom(records []Record, from int) {
	if from < 0 {
		from = 0
	}
	if from >= len(records) {
		return
	}

	var last float64
	hasLast := from > 0
	if hasLast {
		last = records[from-1].Odometer
	}

	for i := from; i < len(records); i++ {
		r := &records[i]
		d := Derived{}

		if hasLast && r.FillType != Missed {
			d.PreviousOdometer = last
			d.HasBaseline = true
			if r.Odometer > last {
				d.Distance = r.Odometer - last
			}
		}
		if d.Distance > 0 {
			if r.FillType == Full && r.Quantity > 0 {
				d.Efficiency = d.Distance / r.Quantity
			}
			d.CostPerDistance = r.TotalCost / d.Distance
		}
		r.Derived = d

		// Every classification advances the baseline for the successor.
		last = r.Odometer
		hasLast = true
	}
}

// IndexOf returns the position of the record with the given id, or -1.
func IndexOf(records []Record, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// InsertionIndex returns the position r would take in the chronologically
// ordered records. Ties go after existing records with the same key.
func InsertionIndex(records []Record, r Record) int {
	return sort.Search(len(records), func(i int) bool {
		return r.Before(records[i])
	})
}
