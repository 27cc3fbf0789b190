package llm

import (
	"fmt"
	"strings"
)

const analysisPrompt = `Analyze ONLY the SQL fragment enclosed in the sql code fence below.
Explain what it contains and, where possible, list:
- Tables and what they appear to be for
- Key columns (name and type)
- Primary and foreign keys
- Relationships between tables
If the fragment is incomplete, state its limitations and any cross-references
that depend on other fragments.`

// BuildPrompt assembles the per-chunk prompt. The schema digest, when
// present, gives the model a map of the whole database so a fragment can be
// placed in context.
func BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString(analysisPrompt)
	if req.SchemaContext != "" {
		sb.WriteString("\n\nTables detected across the whole dump:\n")
		sb.WriteString(req.SchemaContext)
	}
	fmt.Fprintf(&sb, "\n--- FRAGMENT #%d ---\n```sql\n%s\n```", req.Index, req.ChunkText)
	return sb.String()
}
