package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 60em; margin: 2em auto; padding: 0 1em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.8em; text-align: left; }
pre { background: #f5f5f5; padding: 1em; overflow-x: auto; }
</style>
</head>
<body>
%s</body>
</html>
`

// RenderHTML converts report Markdown into a standalone HTML page. The GFM
// extension is needed for the column tables.
func RenderHTML(w io.Writer, title string, markdown []byte) error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert(markdown, &body); err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	_, err := fmt.Fprintf(w, htmlShell, title, body.String())
	return err
}
