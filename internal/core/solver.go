package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	FieldUnitPrice Field = iota + 1
	FieldQuantity
	FieldTotalCost
)

// Decimal places of each solved field.
const (
	unitPricePlaces = 3
	quantityPlaces  = 2
	totalCostPlaces = 2
)

var ErrDivisionByZero = errors.New("division by zero")

type (
	// Field names one of the three interdependent monetary inputs.
	Field int

	// Amount is an optional numeric input.
	Amount struct {
		Value float64
		Set   bool
	}

	// EditHistory is a bounded queue (capacity 2) of the most recently
	// edited distinct fields, most recent first.
	EditHistory struct {
		fields [2]Field
		n      int
	}

	SolveInput struct {
		UnitPrice Amount
		Quantity  Amount
		TotalCost Amount
		Edited    EditHistory
	}

	Outcome int

	// Solution is the single atomic result of a solve. Callers apply Field
	// and Value once; nothing else is written.
	Solution struct {
		Outcome   Outcome
		Field     Field
		Value     float64
		Ambiguous bool
	}
)

const (
	NoOp Outcome = iota
	Solved
)

// solvePriority orders candidate targets when a single edited field leaves
// more than one solvable field.
var solvePriority = []Field{FieldTotalCost, FieldQuantity, FieldUnitPrice}

func Some(v float64) Amount {
	return Amount{Value: v, Set: true}
}

// positive reports whether the amount was supplied with a value above zero.
func (a Amount) positive() bool {
	return a.Set && a.Value > 0
}

func (f Field) String() string {
	switch f {
	case FieldUnitPrice:
		return "unitPrice"
	case FieldQuantity:
		return "quantity"
	case FieldTotalCost:
		return "totalCost"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// ParseField maps a field name to its Field.
func ParseField(s string) (Field, error) {
	for _, f := range []Field{FieldUnitPrice, FieldQuantity, FieldTotalCost} {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", s)
}

// NewEditHistory builds a history by touching fields in order.
func NewEditHistory(fields ...Field) EditHistory {
	var h EditHistory
	for _, f := range fields {
		h = h.Touch(f)
	}
	return h
}

// Touch records f as the most recent edit. Touching the current head is a
// no-op; touching the older entry moves it to the front.
func (h EditHistory) Touch(f Field) EditHistory {
	if h.n > 0 && h.fields[0] == f {
		return h
	}
	h.fields[1] = h.fields[0]
	h.fields[0] = f
	if h.n < 2 {
		h.n++
	}
	return h
}

func (h EditHistory) Len() int {
	return h.n
}

// Fields returns the edited fields, most recent first.
func (h EditHistory) Fields() []Field {
	return append([]Field(nil), h.fields[:h.n]...)
}

func (h EditHistory) contains(f Field) bool {
	for i := 0; i < h.n; i++ {
		if h.fields[i] == f {
			return true
		}
	}
	return false
}

func (in SolveInput) get(f Field) Amount {
	switch f {
	case FieldUnitPrice:
		return in.UnitPrice
	case FieldQuantity:
		return in.Quantity
	default:
		return in.TotalCost
	}
}

// sources returns the two fields target is computed from.
func sources(target Field) (Field, Field) {
	switch target {
	case FieldUnitPrice:
		return FieldTotalCost, FieldQuantity
	case FieldQuantity:
		return FieldTotalCost, FieldUnitPrice
	default:
		return FieldUnitPrice, FieldQuantity
	}
}

// Solve resolves the third of {unit price, quantity, total cost} from the
// other two.
//
// Once two distinct fields have been edited the untouched field is always
// the target. With a single edit the target is the un-edited field whose
// sources are both positive, preferring a missing target and falling back to
// the priority totalCost > quantity > unitPrice.
//
// When all three fields already hold values and only one was edited, the
// chosen field is overwritten even though the user supplied it, and the
// Solution is flagged Ambiguous so the caller can ask which value to keep.
func Solve(in SolveInput) (Solution, error) {
	switch in.Edited.Len() {
	case 0:
		return Solution{}, nil
	case 2:
		for _, f := range solvePriority {
			if !in.Edited.contains(f) {
				return compute(in, f)
			}
		}
		return Solution{}, nil
	}

	var candidates, missing []Field
	for _, f := range solvePriority {
		if in.Edited.contains(f) {
			continue
		}
		a, b := sources(f)
		if !in.get(a).positive() || !in.get(b).positive() {
			continue
		}
		candidates = append(candidates, f)
		if !in.get(f).positive() {
			missing = append(missing, f)
		}
	}
	pool := candidates
	if len(missing) > 0 {
		pool = missing
	}
	if len(pool) == 0 {
		return Solution{}, nil
	}
	sol, err := compute(in, pool[0])
	if err != nil {
		return Solution{}, err
	}
	sol.Ambiguous = len(pool) > 1
	return sol, nil
}

func compute(in SolveInput, target Field) (Solution, error) {
	switch target {
	case FieldTotalCost:
		if !in.UnitPrice.positive() || !in.Quantity.positive() {
			return Solution{}, nil
		}
		v := decimal.NewFromFloat(in.UnitPrice.Value).
			Mul(decimal.NewFromFloat(in.Quantity.Value)).
			Round(totalCostPlaces)
		return Solution{Outcome: Solved, Field: target, Value: v.InexactFloat64()}, nil
	case FieldQuantity:
		return divide(in.TotalCost, in.UnitPrice, target, quantityPlaces)
	case FieldUnitPrice:
		return divide(in.TotalCost, in.Quantity, target, unitPricePlaces)
	}
	return Solution{}, nil
}

func divide(num, den Amount, target Field, places int32) (Solution, error) {
	if !num.positive() {
		return Solution{}, nil
	}
	if !den.Set || den.Value <= 0 {
		return Solution{}, fmt.Errorf("solve %s: %w", target, ErrDivisionByZero)
	}
	v := decimal.NewFromFloat(num.Value).
		Div(decimal.NewFromFloat(den.Value)).
		Round(places)
	return Solution{Outcome: Solved, Field: target, Value: v.InexactFloat64()}, nil
}
