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

func newStatsCommand(opts *RootOptions) *cobra.Command {
	var (
		from, to    string
		year, month int
	)

	cmd := &cobra.Command{
		Use:   "stats <vehicle-id>",
		Short: "Show aggregate statistics of a vehicle",
		Long: `Show aggregate statistics of a vehicle over all records, a calendar
month (--month, optionally --year) or a day range (--from, --to).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			monthly := cmd.Flags().Changed("month") || cmd.Flags().Changed("year")
			if monthly && (from != "" || to != "") {
				return usageError("--month/--year cannot be combined with --from/--to")
			}
			if monthly && (month < 1 || month > 12) {
				return usageError("invalid month %d", month)
			}
			rng, err := parseRangeFlags(from, to)
			if err != nil {
				return err
			}

			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				if _, err := svc.GetVehicle(ctx, args[0]); err != nil {
					return err
				}
				var sum core.Summary
				if monthly {
					sum, err = svc.MonthlySummary(ctx, args[0], year, time.Month(month))
				} else {
					sum, err = svc.Summary(ctx, args[0], rng)
				}
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(sum, func(w io.Writer) {
					printSummary(w, sum)
				})
			})
		},
	}

	now := time.Now()
	cmd.Flags().StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day to include (YYYY-MM-DD)")
	cmd.Flags().IntVar(&year, "year", now.Year(), "calendar year of --month")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "calendar month (1-12)")
	return cmd
}

func printSummary(w io.Writer, s core.Summary) {
	fmt.Fprintf(w, "records\t%d\n", s.Count)
	fmt.Fprintf(w, "total cost\t%s\n", core.FormatAmount(core.Round(s.TotalCost, 2)))
	fmt.Fprintf(w, "total distance\t%s\n", core.FormatAmount(core.Round(s.TotalDistance, 1)))
	fmt.Fprintf(w, "total quantity\t%s\n", core.FormatAmount(core.Round(s.TotalQuantity, 2)))
	fmt.Fprintf(w, "average efficiency\t%s\n", core.FormatAmount(core.Round(s.AverageEfficiency, 2)))
	fmt.Fprintf(w, "average cost per distance\t%s\n", core.FormatAmount(core.Round(s.AverageCostPerDistance, 3)))
	fmt.Fprintf(w, "average unit price\t%s\n", core.FormatAmount(core.Round(s.AverageUnitPrice, 3)))
	fmt.Fprintf(w, "best efficiency\t%s\n", formatMaybe(s.BestEfficiency))
	fmt.Fprintf(w, "worst efficiency\t%s\n", formatMaybe(s.WorstEfficiency))
	fmt.Fprintf(w, "highest unit price\t%s\n", formatMaybe(s.HighestUnitPrice))
	fmt.Fprintf(w, "lowest unit price\t%s\n", formatMaybe(s.LowestUnitPrice))
	if r, err := s.MostRecent.Get(); err == nil {
		fmt.Fprintf(w, "most recent\t%s at %s\n", r.Date.UTC().Format("2006-01-02"), core.FormatAmount(r.Odometer))
	} else {
		fmt.Fprintf(w, "most recent\t-\n")
	}
}
