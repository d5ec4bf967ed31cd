// Package dataset reads batch input documents from a directory and writes the embedded results.
package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/docvec/internal/domain"
)

// DefaultPattern selects the files a DirSource enumerates.
const DefaultPattern = "*.json"

// DirSource enumerates files directly inside one directory. Subdirectories are not descended.
type DirSource struct {
	dir     string
	pattern string
}

// NewDirSource creates a source over dir. An empty pattern means DefaultPattern.
func NewDirSource(dir, pattern string) (*DirSource, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return &DirSource{dir: dir, pattern: pattern}, nil
}

// List returns matching file names sorted by name.
func (s *DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir) // sorted by filename
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w: %w", s.dir, domain.ErrIO, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(s.pattern, e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Read returns the raw bytes of one listed file.
func (s *DirSource) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", name, domain.ErrIO, err)
	}
	return data, nil
}
