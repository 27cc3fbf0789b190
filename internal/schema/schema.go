// Package schema extracts table structure from raw SQL text with regular
// expressions. It is deliberately approximate: good enough to summarize a
// dump and to give the model a map of the database, not a SQL parser.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Column is a single column definition.
type Column struct {
	Name string
	Type string
}

// ForeignKey is a FOREIGN KEY ... REFERENCES constraint.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

// Table is the extracted structure of one CREATE TABLE statement.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Schema holds tables in the order they appear in the dump, which keeps the
// report deterministic.
type Schema struct {
	Tables []Table
}

var (
	createRe   = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?[` + "`" + `"]?(\w+)[` + "`" + `"]?\s*\((.*?)\);`)
	columnRe   = regexp.MustCompile(`(?i)^\s*[` + "`" + `"]?(\w+)[` + "`" + `"]?\s+([^\s,]+)`)
	pkTableRe  = regexp.MustCompile(`(?i)PRIMARY\s+KEY\s*\(([^)]+)\)`)
	pkInlineRe = regexp.MustCompile(`(?i)PRIMARY\s+KEY`)
	fkRe       = regexp.MustCompile(`(?i)FOREIGN\s+KEY\s*\(([^)]+)\)\s*REFERENCES\s+[` + "`" + `"]?(\w+)[` + "`" + `"]?\s*\(([^)]+)\)`)
	lineSplit  = regexp.MustCompile(`,\s*\n|,\s*$`)
)

// Extract parses all CREATE TABLE statements in sqlText.
func Extract(sqlText string) *Schema {
	s := &Schema{}
	for _, m := range createRe.FindAllStringSubmatch(sqlText, -1) {
		table := Table{Name: m[1]}
		body := m[2]

		for _, line := range lineSplit.Split(body, -1) {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			// Table-level PRIMARY KEY (col, ...).
			if pk := pkTableRe.FindStringSubmatch(line); pk != nil {
				table.PrimaryKey = append(table.PrimaryKey, splitIdents(pk[1])...)
				continue
			}

			// FOREIGN KEY (cols) REFERENCES other (cols).
			if fk := fkRe.FindStringSubmatch(line); fk != nil {
				table.ForeignKeys = append(table.ForeignKeys, ForeignKey{
					Columns:    splitIdents(fk[1]),
					RefTable:   fk[2],
					RefColumns: splitIdents(fk[3]),
				})
				continue
			}

			// Column definition, possibly with an inline PRIMARY KEY.
			if col := columnRe.FindStringSubmatch(line); col != nil {
				if isConstraintKeyword(col[1]) {
					continue
				}
				table.Columns = append(table.Columns, Column{Name: col[1], Type: col[2]})
				if pkInlineRe.MatchString(line) {
					table.PrimaryKey = append(table.PrimaryKey, col[1])
				}
			}
		}

		s.Tables = append(s.Tables, table)
	}
	return s
}

// splitIdents splits a comma-separated identifier list and strips quoting.
func splitIdents(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "`\"")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// isConstraintKeyword filters body lines that start with a constraint rather
// than a column name.
func isConstraintKeyword(word string) bool {
	switch strings.ToUpper(word) {
	case "PRIMARY", "FOREIGN", "UNIQUE", "CONSTRAINT", "KEY", "INDEX", "CHECK":
		return true
	}
	return false
}

// Context renders a compact one-line-per-table digest that is sent to the
// model alongside every chunk, so each fragment is analyzed with a map of the
// whole database in hand.
func (s *Schema) Context() string {
	if len(s.Tables) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, t := range s.Tables {
		sb.WriteString(t.Name)
		sb.WriteString("(")
		for i, c := range t.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.Name)
		}
		sb.WriteString(")")
		if len(t.PrimaryKey) > 0 {
			fmt.Fprintf(&sb, " pk=%s", strings.Join(t.PrimaryKey, ","))
		}
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(&sb, " fk=%s->%s(%s)", strings.Join(fk.Columns, ","), fk.RefTable, strings.Join(fk.RefColumns, ","))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
