// Package report renders the analysis outputs: a schema reference in
// Markdown, a combined document stitched from the per-chunk artifacts, and a
// console summary.
package report

import (
	"fmt"
	"io"
	"strings"

	"sqldigest/internal/pipeline"
	"sqldigest/internal/schema"
)

// WriteSchemaMarkdown renders the extracted schema as Markdown. Output is a
// pure function of the schema: tables appear in dump order, columns in
// declaration order, so the same dump always produces the same bytes.
func WriteSchemaMarkdown(w io.Writer, s *schema.Schema) error {
	var b strings.Builder
	b.WriteString("# Database Schema\n\n")

	if s == nil || len(s.Tables) == 0 {
		b.WriteString("No tables detected.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%d tables detected.\n\n", len(s.Tables))

	for _, t := range s.Tables {
		fmt.Fprintf(&b, "## %s\n\n", t.Name)

		if len(t.PrimaryKey) > 0 {
			fmt.Fprintf(&b, "**Primary key:** %s\n\n", strings.Join(t.PrimaryKey, ", "))
		}

		if len(t.Columns) > 0 {
			b.WriteString("| Column | Type |\n")
			b.WriteString("|--------|------|\n")
			for _, c := range t.Columns {
				fmt.Fprintf(&b, "| %s | %s |\n", c.Name, c.Type)
			}
			b.WriteString("\n")
		}

		if len(t.ForeignKeys) > 0 {
			b.WriteString("**Foreign keys:**\n\n")
			for _, fk := range t.ForeignKeys {
				fmt.Fprintf(&b, "- %s → %s(%s)\n",
					strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "))
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, strings.TrimRight(b.String(), "\n")+"\n")
	return err
}

// WriteCombined stitches the per-chunk artifacts into one document, in index
// order. total is the chunk count of the source document; indices in
// [0,total) with no artifact get an explicit gap marker so a partially
// failed run is visible rather than silently shortened.
//
// With total <= 0 the done set alone defines the range, and gaps are only
// marked between the lowest and highest done index.
func WriteCombined(w io.Writer, store pipeline.Store, total int) error {
	done := store.Indices()

	last := total - 1
	if total <= 0 {
		if len(done) == 0 {
			_, err := io.WriteString(w, "# Combined Analysis\n\nNo chunks analyzed yet.\n")
			return err
		}
		last = done[len(done)-1]
	}

	var b strings.Builder
	b.WriteString("# Combined Analysis\n")

	for i := 0; i <= last; i++ {
		fmt.Fprintf(&b, "\n===== chunk %04d =====\n\n", i)
		if !store.Done(i) {
			b.WriteString("[missing: chunk not analyzed]\n")
			continue
		}
		text, err := store.Load(i)
		if err != nil {
			return fmt.Errorf("load chunk %d: %w", i, err)
		}
		b.WriteString(strings.TrimRight(text, "\n"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
