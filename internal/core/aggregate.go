package core

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrUndefinedStatistic = errors.New("undefined statistic")

// Maybe is a statistic that may have no qualifying samples. An absent value
// is distinct from a numeric zero.
type Maybe[T any] struct {
	value T
	ok    bool
}

func Defined[T any](v T) Maybe[T] {
	return Maybe[T]{value: v, ok: true}
}

// Get returns the value or ErrUndefinedStatistic.
func (m Maybe[T]) Get() (T, error) {
	if !m.ok {
		var zero T
		return zero, ErrUndefinedStatistic
	}
	return m.value, nil
}

func (m Maybe[T]) IsDefined() bool {
	return m.ok
}

// MarshalJSON encodes an undefined statistic as null.
func (m Maybe[T]) MarshalJSON() ([]byte, error) {
	if !m.ok {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// Summary holds the vehicle-level statistics over a record sequence.
type Summary struct {
	Count                  int
	TotalCost              float64
	TotalDistance          float64
	TotalQuantity          float64
	AverageEfficiency      float64
	AverageCostPerDistance float64
	AverageUnitPrice       float64
	BestEfficiency         Maybe[float64]
	WorstEfficiency        Maybe[float64]
	HighestUnitPrice       Maybe[float64]
	LowestUnitPrice        Maybe[float64]
	MostRecent             Maybe[Record]
}

// DateRange is inclusive on both ends. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// MonthRange spans the first instant of the month through the instant
// immediately preceding the next month's first instant.
func MonthRange(year int, month time.Month, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return DateRange{
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
	}
}

// FilterRange returns the records whose Date falls in rng, preserving order.
func FilterRange(records []Record, rng DateRange) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if rng.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// Aggregate folds records into a Summary. Derived fields must be current;
// an empty sequence yields zero totals and undefined extrema.
func Aggregate(records []Record) Summary {
	s := Summary{Count: len(records)}

	var (
		effSum, priceSum    float64
		effCount, fullCount int
		priceCount          int
		best, worst         float64
		high, low           float64
		latest              Record
	)

	for i, r := range records {
		s.TotalCost += r.TotalCost
		s.TotalDistance += r.Distance
		s.TotalQuantity += r.Quantity

		if r.Efficiency > 0 {
			if effCount == 0 || r.Efficiency > best {
				best = r.Efficiency
			}
			if effCount == 0 || r.Efficiency < worst {
				worst = r.Efficiency
			}
			if r.FillType == Full {
				effSum += r.Efficiency
				fullCount++
			}
			effCount++
		}

		if r.UnitPrice > 0 {
			if priceCount == 0 || r.UnitPrice > high {
				high = r.UnitPrice
			}
			if priceCount == 0 || r.UnitPrice < low {
				low = r.UnitPrice
			}
			priceSum += r.UnitPrice
			priceCount++
		}

		if i == 0 || latest.Before(r) {
			latest = r
		}
	}

	if fullCount > 0 {
		s.AverageEfficiency = effSum / float64(fullCount)
	}
	if s.TotalDistance > 0 {
		s.AverageCostPerDistance = s.TotalCost / s.TotalDistance
	}
	if priceCount > 0 {
		s.AverageUnitPrice = priceSum / float64(priceCount)
		s.HighestUnitPrice = Defined(high)
		s.LowestUnitPrice = Defined(low)
	}
	if effCount > 0 {
		s.BestEfficiency = Defined(best)
		s.WorstEfficiency = Defined(worst)
	}
	if len(records) > 0 {
		s.MostRecent = Defined(latest)
	}
	return s
}
