package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fuellog/internal/core"
)

func newSolveCommand(opts *RootOptions) *cobra.Command {
	var (
		unitPrice, quantity, totalCost float64
		edited                         []string
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Compute the third of price, quantity and cost from the other two",
		Long: `Compute the third of price, quantity and cost from the other two.

--edited lists the fields in the order they were changed (unitPrice,
quantity, totalCost). It defaults to the fields given on the command line.`,
		Example: `  fuelctl solve --price 3.459 --quantity 10.5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := core.SolveInput{}
			var fields []core.Field
			for _, fl := range []struct {
				flag  string
				field core.Field
				value float64
				dst   *core.Amount
			}{
				{"price", core.FieldUnitPrice, unitPrice, &in.UnitPrice},
				{"quantity", core.FieldQuantity, quantity, &in.Quantity},
				{"cost", core.FieldTotalCost, totalCost, &in.TotalCost},
			} {
				if cmd.Flags().Changed(fl.flag) {
					*fl.dst = core.Some(fl.value)
					fields = append(fields, fl.field)
				}
			}
			if len(edited) > 0 {
				fields = fields[:0]
				for _, name := range edited {
					f, err := core.ParseField(name)
					if err != nil {
						return usageError("%v", err)
					}
					fields = append(fields, f)
				}
			}
			in.Edited = core.NewEditHistory(fields...)

			sol, err := core.Solve(in)
			if err != nil {
				return err
			}
			data := map[string]any{"outcome": "noop"}
			if sol.Outcome == core.Solved {
				data = map[string]any{
					"outcome":   "solved",
					"field":     sol.Field.String(),
					"value":     sol.Value,
					"ambiguous": sol.Ambiguous,
				}
			}
			return opts.output(cmd).Print(data, func(w io.Writer) {
				if sol.Outcome != core.Solved {
					fmt.Fprintln(w, "nothing to solve")
					return
				}
				fmt.Fprintf(w, "%s = %s\n", sol.Field, core.FormatAmount(sol.Value))
				if sol.Ambiguous {
					fmt.Fprintln(w, "(more than one field could be solved; set --edited to choose)")
				}
			})
		},
	}

	cmd.Flags().Float64Var(&unitPrice, "price", 0, "price per unit of fuel")
	cmd.Flags().Float64Var(&quantity, "quantity", 0, "quantity of fuel")
	cmd.Flags().Float64Var(&totalCost, "cost", 0, "total cost")
	cmd.Flags().StringSliceVar(&edited, "edited", nil, "edited fields, oldest first")
	return cmd
}
