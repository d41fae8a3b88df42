package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"fuellog/internal/core"
	"fuellog/internal/services"
)

type recordFlags struct {
	date      string
	odometer  float64
	unitPrice float64
	quantity  float64
	totalCost float64
	fillType  string
	note      string
}

func newRecordCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Manage fueling records",
	}
	cmd.AddCommand(newRecordAddCommand(opts))
	cmd.AddCommand(newRecordListCommand(opts))
	cmd.AddCommand(newRecordRemoveCommand(opts))
	return cmd
}

func newRecordAddCommand(opts *RootOptions) *cobra.Command {
	var f recordFlags

	cmd := &cobra.Command{
		Use:   "add <vehicle-id>",
		Short: "Log a fueling",
		Long: `Log a fueling. Give any two of --price, --quantity and --cost;
the third is computed.`,
		Example: `  fuelctl record add 3f2c... --date 2024-01-05 --odometer 12200 --price 3.459 --quantity 10.5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.toInput(cmd, time.Now())
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				if _, err := svc.GetVehicle(ctx, args[0]); err != nil {
					return err
				}
				rec, err := svc.AddRecord(ctx, args[0], in)
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(rec, func(w io.Writer) {
					fmt.Fprintln(w, rec.ID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&f.date, "date", "", "date of the fueling, YYYY-MM-DD or RFC 3339 (default now)")
	cmd.Flags().Float64Var(&f.odometer, "odometer", 0, "odometer reading (required)")
	cmd.Flags().Float64Var(&f.unitPrice, "price", 0, "price per unit of fuel")
	cmd.Flags().Float64Var(&f.quantity, "quantity", 0, "quantity of fuel")
	cmd.Flags().Float64Var(&f.totalCost, "cost", 0, "total cost")
	cmd.Flags().StringVar(&f.fillType, "fill", string(core.Full), "fill type (full|partial|missed)")
	cmd.Flags().StringVar(&f.note, "note", "", "free-form note")
	_ = cmd.MarkFlagRequired("odometer")
	return cmd
}

func (f recordFlags) toInput(cmd *cobra.Command, now time.Time) (services.RecordInput, error) {
	date, err := parseDateFlag(f.date, now)
	if err != nil {
		return services.RecordInput{}, err
	}
	ft, err := core.ParseFillType(f.fillType)
	if err != nil {
		return services.RecordInput{}, usageError("%v", err)
	}
	amount := func(name string, v float64) core.Amount {
		if !cmd.Flags().Changed(name) {
			return core.Amount{}
		}
		return core.Some(v)
	}
	return services.RecordInput{
		Date:      date,
		Odometer:  f.odometer,
		UnitPrice: amount("price", f.unitPrice),
		Quantity:  amount("quantity", f.quantity),
		TotalCost: amount("cost", f.totalCost),
		FillType:  ft,
		Note:      f.note,
	}, nil
}

func newRecordListCommand(opts *RootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:     "list <vehicle-id>",
		Aliases: []string{"ls"},
		Short:   "List the records of a vehicle in chronological order",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := parseRangeFlags(from, to)
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				if _, err := svc.GetVehicle(ctx, args[0]); err != nil {
					return err
				}
				records, err := svc.ListRecords(ctx, args[0], rng)
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(records, func(w io.Writer) {
					fmt.Fprintln(w, "ID\tDATE\tODOMETER\tPRICE\tQUANTITY\tCOST\tFILL\tDISTANCE\tEFFICIENCY")
					for _, r := range records {
						eff := "-"
						if r.Efficiency > 0 {
							eff = core.FormatAmount(core.Round(r.Efficiency, 2))
						}
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
							r.ID,
							r.Date.UTC().Format("2006-01-02 15:04"),
							core.FormatAmount(r.Odometer),
							core.FormatAmount(r.UnitPrice),
							core.FormatAmount(r.Quantity),
							core.FormatAmount(r.TotalCost),
							r.FillType,
							core.FormatAmount(r.Distance),
							eff)
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to include (YYYY-MM-DD)")
	return cmd
}

func newRecordRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <record-id>",
		Aliases: []string{"remove"},
		Short:   "Delete a record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				return svc.DeleteRecord(ctx, args[0])
			})
		},
	}
}

// parseRangeFlags builds an inclusive range from optional day bounds.
func parseRangeFlags(from, to string) (core.DateRange, error) {
	var rng core.DateRange
	if from != "" {
		t, err := parseDateFlag(from, time.Time{})
		if err != nil {
			return core.DateRange{}, err
		}
		rng.Start = t
	}
	if to != "" {
		t, err := parseDateFlag(to, time.Time{})
		if err != nil {
			return core.DateRange{}, err
		}
		if len(to) == len("2006-01-02") {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		rng.End = t
	}
	return rng, nil
}
