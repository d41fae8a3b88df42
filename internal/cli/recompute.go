package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fuellog/internal/services"
)

func newRecomputeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [vehicle-id]",
		Short: "Rebuild the derived statistics of one or every vehicle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				var (
					n   int
					err error
				)
				if len(args) == 1 {
					n, err = svc.RecomputeVehicle(ctx, args[0])
				} else {
					n, err = svc.RecomputeAll(ctx)
				}
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(map[string]int{"corrected": n}, func(w io.Writer) {
					fmt.Fprintf(w, "corrected %d records\n", n)
				})
			})
		},
	}
}
