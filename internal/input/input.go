// Package input opens dump files for analysis. SQL and plain text stream
// straight from disk; PDF, DOCX and HTML are reduced to their text content
// first. A small sniffer classifies files that arrive without an extension.
package input

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Kind is the sniffed content type of a file.
type Kind string

const (
	KindSQL    Kind = "sql"
	KindZIP    Kind = "zip"
	KindPDF    Kind = "pdf"
	KindJSON   Kind = "json"
	KindText   Kind = "text"
	KindBinary Kind = "binary"
)

const sniffBytes = 2048

// Sniff classifies content from its leading bytes. SQL keywords win over
// everything else: dumps often start with comment banners, so the check
// searches the whole head rather than just the prefix.
func Sniff(head []byte) Kind {
	if len(head) == 0 {
		return KindText
	}

	printable := 0
	for _, b := range head {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7f) || b >= 0x80 {
			printable++
		}
	}

	lowered := strings.ToLower(string(head))
	if strings.Contains(lowered, "create table") ||
		strings.Contains(lowered, "insert into") ||
		strings.Contains(lowered, "alter table") {
		return KindSQL
	}
	if strings.HasPrefix(string(head), "PK\x03\x04") {
		return KindZIP
	}
	if strings.HasPrefix(lowered, "%pdf") {
		return KindPDF
	}
	if strings.HasPrefix(lowered, "{") || strings.HasPrefix(lowered, "[") {
		return KindJSON
	}
	if printable*10 < len(head)*9 {
		return KindBinary
	}
	return KindText
}

// SniffFile reads the first 2 KB of path and classifies it.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", err
	}
	return Sniff(head[:n]), nil
}

// Options controls how non-SQL containers are handled.
type Options struct {
	// PDFFallback shells out to pdftotext when the native extractor fails.
	PDFFallback bool
}

// Open returns a reader over the file's SQL/text content. SQL and text
// files stream from disk; PDF, DOCX and HTML are converted to plain text in
// memory. Extension decides the route; files without one are sniffed.
func Open(path string, opts Options) (io.ReadCloser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".sql", ".txt", ".dump":
		return os.Open(path)
	case ".pdf":
		return openPDF(path, opts.PDFFallback)
	case ".docx":
		return openDOCX(path)
	case ".html", ".htm":
		return openHTML(path)
	case "":
		kind, err := SniffFile(path)
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindPDF:
			return openPDF(path, opts.PDFFallback)
		case KindZIP:
			// A bare ZIP signature with no extension is most likely a DOCX.
			return openDOCX(path)
		case KindBinary:
			return nil, fmt.Errorf("%s: binary content, cannot analyze", path)
		default:
			return os.Open(path)
		}
	default:
		// Unknown extensions are treated as text; the chunker will reject
		// anything structurally broken.
		return os.Open(path)
	}
}

func textReader(text string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(text))
}
