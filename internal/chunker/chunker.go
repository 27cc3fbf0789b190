// Package chunker splits a SQL dump into bounded, statement-aligned chunks.
//
// Chunks are produced in document order and concatenate back to the exact
// input. A chunk ends just after the last statement terminator that fits the
// size budget; a single statement larger than the budget becomes one
// oversized chunk rather than being split mid-statement. Terminators inside
// string literals and comments are never used as boundaries.
package chunker

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultChunkBytes is the default size budget per chunk.
const DefaultChunkBytes = 200_000

// readBlock is the unit the scanner pulls from the underlying reader.
const readBlock = 32 * 1024

// Chunk is a contiguous slice of the source document. Start/End are byte
// offsets into the document; Index order equals document order.
type Chunk struct {
	Index int
	Text  string
	Start int64
	End   int64
}

// SyntaxError reports a structurally invalid document: a string literal or
// block comment opened at Offset and never closed. No chunk boundary can be
// trusted past that point, so the whole run must abort.
type SyntaxError struct {
	Offset    int64
	Construct string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("unterminated %s starting at byte %d", e.Construct, e.Offset)
}

type lexState int

const (
	stNone lexState = iota
	stLineComment
	stBlockComment
	stSingle
	stDouble
	stBacktick
)

// Scanner streams chunks from r without holding more than the current chunk
// (plus one read block) in memory. Boundaries are a pure function of the
// input bytes and the size budget, which is what makes chunk indices a safe
// resumption key across runs.
type Scanner struct {
	r   *bufio.Reader
	max int

	buf  []byte
	base int64 // document offset of buf[0]
	eof  bool

	scanned   int // bytes of buf already lexed
	lastSafe  int // cut just past the last safe ';' within the budget, -1 if none
	firstOver int // cut just past the first safe ';' beyond the budget, -1 if none

	state      lexState
	openOffset int64 // where the current string/comment opened

	index int
	err   error
}

// NewScanner returns a Scanner over r with the given per-chunk byte budget.
// A non-positive budget falls back to DefaultChunkBytes.
func NewScanner(r io.Reader, maxBytes int) *Scanner {
	if maxBytes <= 0 {
		maxBytes = DefaultChunkBytes
	}
	return &Scanner{
		r:         bufio.NewReaderSize(r, readBlock),
		max:       maxBytes,
		lastSafe:  -1,
		firstOver: -1,
	}
}

// Next returns the next chunk, or io.EOF when the document is exhausted.
// Any other error is terminal for the scanner.
func (s *Scanner) Next() (Chunk, error) {
	if s.err != nil {
		return Chunk{}, s.err
	}

	target := s.max
	for {
		if err := s.fill(target); err != nil {
			s.err = err
			return Chunk{}, err
		}
		s.advance()
		lexedAll := s.scanned >= len(s.buf)

		switch {
		case s.eof && lexedAll && len(s.buf) == 0:
			s.err = io.EOF
			return Chunk{}, io.EOF

		case s.eof && lexedAll && len(s.buf) <= s.max:
			// Whole remainder fits the budget: one final chunk.
			if err := s.structuralErr(); err != nil {
				s.err = err
				return Chunk{}, err
			}
			return s.emit(len(s.buf)), nil

		case s.lastSafe > 0 && (s.scanned >= s.max || (s.eof && lexedAll)):
			// Budget window fully lexed; cut at the last safe terminator.
			return s.emit(s.lastSafe), nil

		case s.firstOver > 0:
			// Single statement larger than the budget: emit it whole.
			return s.emit(s.firstOver), nil

		case s.eof && lexedAll:
			// Oversized tail with no terminator at all.
			if err := s.structuralErr(); err != nil {
				s.err = err
				return Chunk{}, err
			}
			return s.emit(len(s.buf)), nil
		}

		target = len(s.buf) + readBlock
	}
}

// fill reads until the pending buffer holds at least target bytes or the
// input ends.
func (s *Scanner) fill(target int) error {
	var block [readBlock]byte
	for !s.eof && len(s.buf) < target {
		n, err := s.r.Read(block[:])
		if n > 0 {
			s.buf = append(s.buf, block[:n]...)
		}
		if err == io.EOF {
			s.eof = true
		} else if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
	return nil
}

// advance lexes pending bytes, recording safe terminator positions. It may
// stop one byte short of the buffer end when a two-byte token ("--", "/*",
// "*/", or a backslash escape) needs lookahead that has not been read yet.
func (s *Scanner) advance() {
	for s.scanned < len(s.buf) {
		i := s.scanned
		c := s.buf[i]
		haveNext := i+1 < len(s.buf)
		var next byte
		if haveNext {
			next = s.buf[i+1]
		}

		switch s.state {
		case stNone:
			switch {
			case c == ';':
				cut := i + 1
				if cut <= s.max {
					s.lastSafe = cut
				} else if s.firstOver < 0 {
					s.firstOver = cut
				}
			case c == '\'':
				s.state = stSingle
				s.openOffset = s.base + int64(i)
			case c == '"':
				s.state = stDouble
				s.openOffset = s.base + int64(i)
			case c == '`':
				s.state = stBacktick
				s.openOffset = s.base + int64(i)
			case c == '#':
				s.state = stLineComment
			case c == '-':
				if !haveNext && !s.eof {
					return
				}
				if next == '-' {
					s.state = stLineComment
					s.scanned += 2
					continue
				}
			case c == '/':
				if !haveNext && !s.eof {
					return
				}
				if next == '*' {
					s.state = stBlockComment
					s.openOffset = s.base + int64(i)
					s.scanned += 2
					continue
				}
			}
		case stLineComment:
			if c == '\n' {
				s.state = stNone
			}
		case stBlockComment:
			if c == '*' {
				if !haveNext && !s.eof {
					return
				}
				if next == '/' {
					s.state = stNone
					s.scanned += 2
					continue
				}
			}
		case stSingle, stDouble:
			if c == '\\' {
				if !haveNext && !s.eof {
					return
				}
				s.scanned += 2
				continue
			}
			if (s.state == stSingle && c == '\'') || (s.state == stDouble && c == '"') {
				s.state = stNone
			}
		case stBacktick:
			if c == '`' {
				s.state = stNone
			}
		}
		s.scanned++
	}
}

func (s *Scanner) structuralErr() error {
	switch s.state {
	case stSingle, stDouble, stBacktick:
		return &SyntaxError{Offset: s.openOffset, Construct: "string literal"}
	case stBlockComment:
		return &SyntaxError{Offset: s.openOffset, Construct: "block comment"}
	}
	return nil
}

// emit cuts the first cut bytes off the pending buffer as a chunk. The lexer
// is always at top level at a cut point, so leftover bytes are re-lexed from
// a clean state on the next call.
func (s *Scanner) emit(cut int) Chunk {
	ch := Chunk{
		Index: s.index,
		Text:  string(s.buf[:cut]),
		Start: s.base,
		End:   s.base + int64(cut),
	}
	s.index++

	rest := copy(s.buf, s.buf[cut:])
	s.buf = s.buf[:rest]
	s.base += int64(cut)
	s.scanned = 0
	s.state = stNone
	s.lastSafe = -1
	s.firstOver = -1
	return ch
}

// Split chunks an in-memory document. Convenience for callers and tests that
// do not need the streaming path.
func Split(text string, maxBytes int) ([]Chunk, error) {
	sc := NewScanner(strings.NewReader(text), maxBytes)
	var chunks []Chunk
	for {
		ch, err := sc.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
}
