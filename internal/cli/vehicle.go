package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fuellog/internal/services"
)

func newVehicleCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Manage vehicles",
	}
	cmd.AddCommand(newVehicleAddCommand(opts))
	cmd.AddCommand(newVehicleListCommand(opts))
	cmd.AddCommand(newVehicleRemoveCommand(opts))
	return cmd
}

func newVehicleAddCommand(opts *RootOptions) *cobra.Command {
	var in services.VehicleInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a vehicle",
		Example: `  fuelctl vehicle add --label "Panda" --make Fiat --model Panda --year 2019`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				v, err := svc.CreateVehicle(ctx, in)
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(v, func(w io.Writer) {
					fmt.Fprintln(w, v.ID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&in.Label, "label", "", "display name (required)")
	cmd.Flags().StringVar(&in.Make, "make", "", "manufacturer")
	cmd.Flags().StringVar(&in.Model, "model", "", "model name")
	cmd.Flags().IntVar(&in.Year, "year", 0, "model year")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

func newVehicleListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List vehicles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				vehicles, err := svc.ListVehicles(ctx)
				if err != nil {
					return err
				}
				return opts.output(cmd).Print(vehicles, func(w io.Writer) {
					fmt.Fprintln(w, "ID\tLABEL\tMAKE\tMODEL\tYEAR")
					for _, v := range vehicles {
						year := "-"
						if v.Year > 0 {
							year = fmt.Sprint(v.Year)
						}
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.Label, v.Make, v.Model, year)
					}
				})
			})
		},
	}
}

func newVehicleRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <vehicle-id>",
		Aliases: []string{"remove"},
		Short:   "Delete a vehicle and all of its records",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				return svc.DeleteVehicle(ctx, args[0])
			})
		},
	}
}
