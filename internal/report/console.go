package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"sqldigest/internal/llm"
	"sqldigest/internal/pipeline"
	"sqldigest/internal/schema"
)

// PrintRunSummary renders the run outcome as a console table, with model
// latency figures when any calls were made.
func PrintRunSummary(w io.Writer, sum pipeline.Summary, stats llm.Snapshot) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Run " + sum.RunID)
	tbl.AppendRows([]table.Row{
		{"Chunks total", sum.Total},
		{"Analyzed", sum.Done},
		{"Skipped (already done)", sum.Skipped},
		{"Failed", sum.Failed},
	})
	if stats.Count > 0 {
		tbl.AppendSeparator()
		tbl.AppendRows([]table.Row{
			{"Model calls", stats.Count},
			{"Latency avg", fmt.Sprintf("%.0f ms", stats.AvgMs)},
			{"Latency p95", fmt.Sprintf("%.0f ms", stats.P95Ms)},
		})
	}
	tbl.Render()

	for _, f := range sum.Failures {
		fmt.Fprintf(w, "chunk %04d failed: %s\n", f.Index, f.Err)
	}
}

// PrintSchema renders the extracted tables as a console table.
func PrintSchema(w io.Writer, s *schema.Schema) {
	if s == nil || len(s.Tables) == 0 {
		fmt.Fprintln(w, "No tables detected.")
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Table", "Columns", "Primary Key", "Foreign Keys"})
	for _, t := range s.Tables {
		fks := make([]string, 0, len(t.ForeignKeys))
		for _, fk := range t.ForeignKeys {
			fks = append(fks, fmt.Sprintf("%s -> %s", strings.Join(fk.Columns, ","), fk.RefTable))
		}
		tbl.AppendRow(table.Row{
			t.Name,
			len(t.Columns),
			strings.Join(t.PrimaryKey, ", "),
			strings.Join(fks, "; "),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("%d tables", len(s.Tables)), "", "", ""})
	tbl.Render()
}
