package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Store is the durable record of which chunks are done. The orchestrator
// consults it before every dispatch, which is what makes reruns idempotent.
type Store interface {
	// Done reports whether a well-formed artifact exists for the chunk.
	Done(index int) bool
	// Load returns the persisted artifact text for a done chunk.
	Load(index int) (string, error)
	// Commit durably persists the artifact, atomically.
	Commit(index int, text string) error
	// Indices returns the done chunk indices in ascending order.
	Indices() []int
}

var artifactRe = regexp.MustCompile(`^chunk_(\d{4,})\.txt$`)

// ArtifactName maps a chunk index to its artifact file name. Zero padding
// keeps lexical order equal to index order in directory listings; past index
// 9999 the name simply grows a digit, and the scan accepts both widths.
func ArtifactName(index int) string {
	return fmt.Sprintf("chunk_%04d.txt", index)
}

// FSStore keeps one artifact file per chunk in a directory. The directory
// itself is the durable run state: a well-formed artifact for chunk N is
// necessary and sufficient evidence that chunk N is done. The directory is
// scanned once at open; afterwards the done-set is maintained in memory.
//
// Not safe for concurrent writer processes sharing one directory.
type FSStore struct {
	dir  string
	done map[int]struct{}
}

// OpenFSStore creates the directory if needed and scans it for existing
// artifacts. Empty files (a writer died before the atomic rename, or an
// older tool left junk) are ignored and will be reprocessed.
func OpenFSStore(dir string, log *slog.Logger) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	s := &FSStore{dir: dir, done: make(map[int]struct{})}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan output dir: %w", err)
	}
	for _, e := range entries {
		m := artifactRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		if info.Size() == 0 {
			if log != nil {
				log.Warn("ignoring corrupt artifact", "file", e.Name())
			}
			continue
		}
		s.done[idx] = struct{}{}
	}
	return s, nil
}

func (s *FSStore) Done(index int) bool {
	_, ok := s.done[index]
	return ok
}

func (s *FSStore) Load(index int) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ArtifactName(index)))
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("artifact for chunk %d is empty", index)
	}
	return string(data), nil
}

// Commit writes the artifact atomically: temp file in the same directory,
// write, fsync, rename. A crash at any point leaves either no artifact or a
// complete one, never a truncated file under the final name.
func (s *FSStore) Commit(index int, text string) error {
	dest := filepath.Join(s.dir, ArtifactName(index))

	tmp, err := os.CreateTemp(s.dir, ".chunk-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("commit artifact: %w", err)
	}
	syncDir(s.dir)

	s.done[index] = struct{}{}
	return nil
}

func (s *FSStore) Indices() []int {
	out := make([]int, 0, len(s.done))
	for i := range s.done {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Dir returns the store's directory.
func (s *FSStore) Dir() string {
	return s.dir
}

// syncDir best-effort fsyncs the directory so the rename itself is durable.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()
	f.Sync()
}
