package core

import "fmt"

// Entry is the caller-side state of a record being typed in: the three
// monetary inputs plus their edit history. Set applies a user edit, runs
// Solve and writes the solution back exactly once.
//
// OnChange, when set, is told about every field value change, the solved
// write-back included. A bound form typically echoes that change into Set;
// while the write-back is in flight such a call only stores the value, so it
// neither counts as an edit nor triggers another solve.
type Entry struct {
	UnitPrice Amount
	Quantity  Amount
	TotalCost Amount

	OnChange func(f Field, v Amount)

	history EditHistory
	solving bool
}

// Set records a user edit of f and returns the solution that was applied.
// On ErrDivisionByZero the edit is kept and nothing else is written.
func (e *Entry) Set(f Field, v float64) (Solution, error) {
	e.assign(f, Some(v))
	if e.solving {
		return Solution{}, nil
	}
	e.history = e.history.Touch(f)

	sol, err := Solve(SolveInput{
		UnitPrice: e.UnitPrice,
		Quantity:  e.Quantity,
		TotalCost: e.TotalCost,
		Edited:    e.history,
	})
	if err != nil || sol.Outcome != Solved {
		return sol, err
	}

	e.solving = true
	defer func() { e.solving = false }()
	e.assign(sol.Field, Some(sol.Value))
	return sol, nil
}

// Clear marks f as absent without counting it as an edit.
func (e *Entry) Clear(f Field) {
	e.assign(f, Amount{})
}

// History returns the edit history driving the solver.
func (e *Entry) History() EditHistory {
	return e.history
}

// Apply copies the resolved amounts into r.
func (e *Entry) Apply(r *Record) {
	r.UnitPrice = e.UnitPrice.Value
	r.Quantity = e.Quantity.Value
	r.TotalCost = e.TotalCost.Value
}

// assign stores a and notifies OnChange when the value actually changed.
func (e *Entry) assign(f Field, a Amount) {
	var dst *Amount
	switch f {
	case FieldUnitPrice:
		dst = &e.UnitPrice
	case FieldQuantity:
		dst = &e.Quantity
	case FieldTotalCost:
		dst = &e.TotalCost
	default:
		return
	}
	if *dst == a {
		return
	}
	*dst = a
	if e.OnChange != nil {
		e.OnChange(f, a)
	}
}

// ResolveAmounts completes a monetary triple with at most one field absent,
// as when a record arrives whole rather than through keystrokes. The two
// present fields count as the edit history. Fewer than two present fields is
// ErrInvalidAmount.
func ResolveAmounts(price, qty, cost Amount) (Amount, Amount, Amount, error) {
	in := SolveInput{UnitPrice: price, Quantity: qty, TotalCost: cost}
	var present []Field
	for _, f := range solvePriority {
		if in.get(f).Set {
			present = append(present, f)
		}
	}
	if len(present) < 2 {
		return price, qty, cost, fmt.Errorf("need at least two of unit price, quantity and total cost: %w", ErrInvalidAmount)
	}
	if len(present) == 3 {
		return price, qty, cost, nil
	}

	in.Edited = NewEditHistory(present...)
	sol, err := Solve(in)
	if err != nil {
		return price, qty, cost, err
	}
	e := Entry{UnitPrice: price, Quantity: qty, TotalCost: cost}
	if sol.Outcome == Solved {
		e.assign(sol.Field, Some(sol.Value))
	}
	return e.UnitPrice, e.Quantity, e.TotalCost, nil
}
