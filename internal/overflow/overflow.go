// Package overflow appends links that did not resolve to a retry list.
package overflow

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// File appends `<link> <statusCode>` lines, opening and closing the file on
// every call so each line is durable as soon as Record returns.
type File struct {
	fs   afero.Fs
	path string
}

// New returns an overflow sink appending to path on fs.
func New(fs afero.Fs, path string) *File {
	return &File{fs: fs, path: path}
}

// Path returns the retry list location.
func (f *File) Path() string {
	return f.path
}

// Record appends one line for link. Duplicates are kept.
func (f *File) Record(link string, statusCode int) (err error) {
	fh, err := f.fs.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open overflow %s: %w", f.path, err)
	}
	defer func() {
		if cerr := fh.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close overflow %s: %w", f.path, cerr)
		}
	}()
	if _, err := fmt.Fprintf(fh, "%s %d\n", link, statusCode); err != nil {
		return fmt.Errorf("append overflow %s: %w", f.path, err)
	}
	return nil
}
