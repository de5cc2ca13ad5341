package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/JonMunkholm/dataporter/internal/app"
	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/JonMunkholm/dataporter/internal/schema"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const defaultCatalogPath = "./catalog.yaml"

// Run executes a procedure for a period and exports the tables it populates.
func Run() *cobra.Command {
	var (
		flags       exportFlags
		tables      []string
		executeOnly bool
	)
	cmd := &cobra.Command{
		Use:   "run [flags] <procedure>",
		Short: "Execute a procedure, then export its output tables",
		Long: `porter run --start=20250101 --end=20250131 --format=csv <procedure>

Runs the procedure with the two period values bound to its first two
parameters. If it succeeds, each output table is exported in order.
Use --tables to export a subset, or --no-export to skip exporting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				spec, ok := a.Catalog.Procedure(args[0])
				if !ok {
					return userError(&core.ExecutionError{Procedure: args[0], Message: "unknown procedure"})
				}

				selected := spec.OutputTables
				if cmd.Flags().Changed("tables") {
					selected = tables
				}
				if executeOnly {
					selected = nil
				}
				selected, err := a.Catalog.ResolveTables(selected)
				if err != nil {
					return userError(err)
				}

				r, err := flags.resolve(a.Config, cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return userError(err)
				}

				outcome, err := a.Orchestrator.RunWorkflow(ctx, core.WorkflowRequest{
					Procedure:     spec.Name,
					PeriodStart:   flags.start,
					PeriodEnd:     flags.end,
					Tables:        selected,
					Format:        r.format,
					Dir:           r.dir,
					Mode:          r.mode,
					OnZeroRecords: r.onEmpty,
				})

				out := cmd.OutOrStdout()
				if outcome.Execution != nil {
					fmt.Fprintln(out, outcome.Execution.Message)
				}
				if len(outcome.Exports) > 0 {
					printExports(out, outcome.Exports)
				}
				if outcome.Summary != "" {
					fmt.Fprintln(out, outcome.Summary)
				}
				if err != nil {
					return userError(err)
				}
				if !outcome.Success {
					return errors.New(outcome.ErrorMessage)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&tables, "tables", "t", nil, "tables to export (default: the procedure's output tables)")
	cmd.Flags().BoolVar(&executeOnly, "no-export", false, "execute the procedure only")
	return cmd
}

// Export exports tables without executing a procedure first.
func Export() *cobra.Command {
	var flags exportFlags
	cmd := &cobra.Command{
		Use:   "export [flags] <table>...",
		Short: "Export one or more tables",
		Long:  `porter export --start=20250101 --end=20250131 --format=txt <table> [<table>...]`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tables, err := a.Catalog.ResolveTables(args)
				if err != nil {
					return userError(err)
				}
				r, err := flags.resolve(a.Config, cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return userError(err)
				}

				outcomes, err := a.Coordinator.ExportAll(ctx, core.BatchRequest{
					Tables:        tables,
					Format:        r.format,
					Dir:           r.dir,
					PeriodStart:   flags.start,
					PeriodEnd:     flags.end,
					Mode:          r.mode,
					OnZeroRecords: r.onEmpty,
				})

				out := cmd.OutOrStdout()
				if len(outcomes) > 0 {
					printExports(out, outcomes)
					printBatchSummary(out, outcomes)
				}
				if err != nil {
					return userError(err)
				}
				for _, o := range outcomes {
					if !o.Success {
						return fmt.Errorf("%d of %d tables failed", len(outcomes)-countSucceeded(outcomes), len(outcomes))
					}
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// Download writes one table to a timestamped ad-hoc file.
func Download() *cobra.Command {
	var format, dir string
	cmd := &cobra.Command{
		Use:   "download [flags] <table>",
		Short: "Export a single table to a timestamped file",
		Long:  `porter download --format=xlsx <table>`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, ok := a.Catalog.Table(args[0]); !ok {
					return userError(fmt.Errorf("unknown table: %s", args[0]))
				}
				f, err := resolveFormat(format, a.Config.Export.DefaultFormat)
				if err != nil {
					return userError(err)
				}
				if dir == "" {
					dir = a.Config.Export.OutputDir
				}

				outcome, err := a.Coordinator.ExportTable(ctx, args[0], f, dir)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), outcome.FilePath)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: xlsx, csv, or txt")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (default from EXPORT_OUTPUT_DIR)")
	return cmd
}

// Validate checks row counts against the chosen format's ceiling.
func Validate() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "validate [flags] <table>...",
		Short: "Check whether tables fit the chosen format",
		Long:  `porter validate --format=xlsx <table> [<table>...]`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tables, err := a.Catalog.ResolveTables(args)
				if err != nil {
					return userError(err)
				}
				f, err := resolveFormat(format, a.Config.Export.DefaultFormat)
				if err != nil {
					return userError(err)
				}

				v := a.Coordinator.Validator().ValidateForFormat(ctx, tables, f)
				printValidation(cmd.OutOrStdout(), v)
				return userError(v.Err())
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: xlsx, csv, or txt")
	return cmd
}

// Tables lists the catalog's tables. It does not connect to the database.
func Tables() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List exportable tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			printTables(cmd.OutOrStdout(), catalog.Tables())
			return nil
		},
	}
}

// Procedures lists the catalog's procedures. It does not connect to the database.
func Procedures() *cobra.Command {
	return &cobra.Command{
		Use:   "procedures",
		Short: "List executable procedures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := loadCatalog()
			if err != nil {
				return err
			}
			printProcedures(cmd.OutOrStdout(), catalog.Procedures())
			return nil
		},
	}
}

// loadCatalog reads only CATALOG_PATH, so listing works without a
// database URL.
func loadCatalog() (*core.Catalog, error) {
	_ = godotenv.Load()
	path := os.Getenv("CATALOG_PATH")
	if path == "" {
		path = defaultCatalogPath
	}
	return schema.LoadFile(path)
}

func countSucceeded(outcomes []core.ExportOutcome) int {
	return lo.CountBy(outcomes, func(o core.ExportOutcome) bool { return o.Success })
}
