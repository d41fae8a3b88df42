package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fuellog/internal/interchange"
	"fuellog/internal/services"
)

func newImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <vehicle-id> <file|->",
		Short: "Import records from a CSV log",
		Long: `Import records from a CSV log in any of the legacy, classified or
extended layouts. Rows that cannot be parsed are reported and skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				res, err := svc.Import(ctx, args[0], text)
				if err != nil {
					return err
				}
				schemas := make(map[string]int, len(res.Schemas))
				for s, n := range res.Schemas {
					schemas[s.String()] = n
				}
				skipped := make([]string, 0, len(res.Skipped))
				for _, s := range res.Skipped {
					skipped = append(skipped, s.Error())
				}
				data := map[string]any{
					"imported": res.Imported,
					"skipped":  skipped,
					"schemas":  schemas,
				}
				return opts.output(cmd).Print(data, func(w io.Writer) {
					fmt.Fprintf(w, "imported %d, skipped %d\n", res.Imported, len(res.Skipped))
					for _, s := range skipped {
						fmt.Fprintf(w, "  %s\n", s)
					}
				})
			})
		},
	}
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var schemaName, outPath string

	cmd := &cobra.Command{
		Use:   "export <vehicle-id>",
		Short: "Export the records of a vehicle as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := interchange.ParseSchema(schemaName)
			if err != nil {
				return usageError("%v", err)
			}
			return opts.withService(cmd, func(ctx context.Context, svc *services.FuelService) error {
				if _, err := svc.GetVehicle(ctx, args[0]); err != nil {
					return err
				}
				data, err := svc.Export(ctx, args[0], interchange.WithSchema(schema))
				if err != nil {
					return err
				}
				if outPath == "" || outPath == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(outPath, data, 0o644)
			})
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", interchange.SchemaLegacy.String(), "layout to write (legacy|classified|extended)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default stdout)")
	return cmd
}
