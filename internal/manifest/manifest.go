// Package manifest reads .lnx link manifests: CSV rows whose first column
// names an HTML document to harvest links from.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Extension is the required suffix of a manifest file name.
const Extension = ".lnx"

// ErrNotManifest reports a path without the manifest extension.
var ErrNotManifest = errors.New("not a .lnx manifest")

// Entry is one manifest row.
type Entry struct {
	// Line is the 1-based record number in the manifest.
	Line int
	Path string
	// Known is false for rows that do not name an .htm/.html document.
	Known bool
}

// IsManifest reports whether path carries the manifest extension.
func IsManifest(path string) bool {
	return strings.HasSuffix(path, Extension)
}

// IsHTMLPath reports whether path names an .htm or .html document.
func IsHTMLPath(path string) bool {
	return strings.HasSuffix(path, ".htm") || strings.HasSuffix(path, ".html")
}

// SidePath places name in the directory that holds the manifest.
func SidePath(manifestPath, name string) (string, error) {
	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return "", fmt.Errorf("resolve manifest path: %w", err)
	}
	return filepath.Join(filepath.Dir(abs), name), nil
}

// Read parses the manifest at path. Rows may carry one or two columns; only
// the first is used. Stray quotes are accepted as part of the path.
func Read(fs afero.Fs, path string) ([]Entry, error) {
	if !IsManifest(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotManifest, path)
	}
	fh, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer fh.Close()
	return parse(fh)
}

func parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	return readEntries(reader)
}

// readEntries collects one Entry per record. A record the reader cannot
// parse becomes an unknown entry so the rows around it are still processed;
// only read failures abort.
func readEntries(reader *csv.Reader) ([]Entry, error) {
	var entries []Entry
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			entries = append(entries, Entry{Line: line})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parse manifest: %w", err)
		}
		path := ""
		if len(record) > 0 {
			path = strings.TrimSpace(record[0])
		}
		entries = append(entries, Entry{
			Line:  line,
			Path:  path,
			Known: IsHTMLPath(path),
		})
	}
}
