package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// catalogFile is the top-level structure of an offline catalog file.
type catalogFile struct {
	Entries []Entry `yaml:"entries"`
}

// Parse decodes an offline catalog document. Both a top-level list and an
// object with an "entries" key are accepted. JSON parses as YAML.
func Parse(data []byte) ([]Entry, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return []Entry{}, nil
	}

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "-") {
		var entries []Entry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("catalog: parse list: %w", err)
		}
		return entries, nil
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	if f.Entries == nil {
		return []Entry{}, nil
	}
	return f.Entries, nil
}

// FileSource serves a catalog from a local YAML or JSON file. The file is
// read lazily on first access and never reread.
type FileSource struct {
	path string

	once    sync.Once
	entries []Entry
	err     error
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: filepath.Clean(path)}
}

// FetchCatalog returns a copy of the file's entries.
func (f *FileSource) FetchCatalog(_ context.Context) ([]Entry, error) {
	f.once.Do(f.load)
	if f.err != nil {
		return nil, f.err
	}
	cp := make([]Entry, len(f.entries))
	copy(cp, f.entries)
	return cp, nil
}

func (f *FileSource) load() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.err = fmt.Errorf("catalog: read %q: %w", f.path, err)
		return
	}
	f.entries, f.err = Parse(data)
}
