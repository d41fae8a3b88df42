package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fuellog/internal/backend"
	"fuellog/internal/config"
	"fuellog/internal/core"
	"fuellog/internal/services"
)

// OpenFunc returns the service a command runs against and the function that
// releases it.
type OpenFunc func(ctx context.Context, opts *RootOptions) (*services.FuelService, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format   string
	Backend  string
	DBPath   string
	LogLevel string

	open OpenFunc
}

// NewRootCommand creates the fuelctl command tree backed by the configured
// store.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(OpenBackend)
}

// NewRootCommandWith creates the command tree with a custom service opener.
func NewRootCommandWith(open OpenFunc) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "fuelctl",
		Short:         "Manage the fueling log of your vehicles",
		Long:          "fuelctl records fuelings, keeps per-record statistics current and moves logs in and out as CSV.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return usageError("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			SetupLoggerTo(cmd.ErrOrStderr(), opts.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "data backend (memory|sqlite), overrides DATA_BACKEND")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite database path, overrides SQLITE_DB_PATH")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	cmd.AddCommand(newVehicleCommand(opts))
	cmd.AddCommand(newRecordCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newSolveCommand(opts))
	cmd.AddCommand(newRecomputeCommand(opts))

	return cmd
}

// OpenBackend builds the service from the environment configuration with
// the command line overrides applied. The summary cache is disabled since
// every invocation is short-lived.
func OpenBackend(ctx context.Context, opts *RootOptions) (*services.FuelService, func() error, error) {
	cfg := config.Load()
	if opts.Backend != "" {
		cfg.DataBackend = opts.Backend
	}
	if opts.DBPath != "" {
		cfg.SQLiteDBPath = opts.DBPath
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, usageError("%v", err)
	}
	backendCfg.SummaryCacheSize = 0

	res, err := backend.NewFactory(slog.Default()).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Service, res.Cleanup, nil
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// withService opens the service, runs fn and releases the service.
func (o *RootOptions) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *services.FuelService) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := o.open(ctx, o)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil {
			slog.WarnContext(ctx, "Failed to close backend", "error", cerr)
		}
	}()
	return fn(ctx, svc)
}

// parseDateFlag accepts YYYY-MM-DD or RFC 3339. An empty value is now.
func parseDateFlag(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, usageError("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

func formatMaybe(m core.Maybe[float64]) string {
	v, err := m.Get()
	if err != nil {
		return "-"
	}
	return core.FormatAmount(core.Round(v, 3))
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ExitError{Code: ExitCommandError, Message: "cannot read input", Err: err}
	}
	return string(data), nil
}
