package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/samber/lo"
)

// printExports writes one line per table outcome.
func printExports(w io.Writer, outcomes []core.ExportOutcome) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tSTATUS\tRECORDS\tFILE\tMESSAGE")
	for _, o := range outcomes {
		file := o.FilePath
		if file == "" {
			file = o.FileName
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", o.TableName, o.Status, o.RecordsExported, file, o.Message)
	}
	tw.Flush()
}

// printBatchSummary writes the batch totals line.
func printBatchSummary(w io.Writer, outcomes []core.ExportOutcome) {
	succeeded := lo.CountBy(outcomes, func(o core.ExportOutcome) bool { return o.Success })
	records := lo.SumBy(outcomes, func(o core.ExportOutcome) int64 { return o.RecordsExported })
	fmt.Fprintf(w, "Exported %d/%d tables, %d records\n", succeeded, len(outcomes), records)
}

// printValidation writes a validation outcome.
func printValidation(w io.Writer, v core.ValidationOutcome) {
	if v.Valid {
		fmt.Fprintln(w, "OK: all tables fit the selected format")
		return
	}
	fmt.Fprintln(w, v.ErrorMessage)
	for _, s := range v.Suggestions {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

func printTables(w io.Writer, tables []core.TableSpec) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDISPLAY NAME\tDESCRIPTION")
	for _, t := range tables {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.DisplayName, t.Description)
	}
	tw.Flush()
}

func printProcedures(w io.Writer, procs []core.ProcedureSpec) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPARAMETERS\tOUTPUT TABLES")
	for _, p := range procs {
		params := lo.Map(p.Parameters, func(ps core.ParamSpec, _ int) string {
			return ps.Name + " " + ps.Type.String()
		})
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.DisplayLabel(), joinOrDash(params), joinOrDash(p.OutputTables))
	}
	tw.Flush()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
