// Package checkpoint maintains the single-line stamp file that records how
// far a run got. The file is advisory: nothing reads it back to resume.
package checkpoint

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/JakeFAU/xllinks/internal/clock/system"
	"github.com/JakeFAU/xllinks/internal/linkcheck"
)

// DoneMessage is the terminal stamp written when a run ends.
const DoneMessage = "DONE"

// File overwrites a stamp file with `<timestamp> <message>` on every write.
type File struct {
	fs    afero.Fs
	path  string
	clock linkcheck.Clock
}

// New returns a checkpoint writing to path on fs.
func New(fs afero.Fs, path string, clock linkcheck.Clock) *File {
	if clock == nil {
		clock = system.New()
	}
	return &File{fs: fs, path: path, clock: clock}
}

// Path returns the stamp file location.
func (f *File) Path() string {
	return f.path
}

// Write replaces the file contents with a single stamped line.
func (f *File) Write(message string) error {
	message = strings.ReplaceAll(message, "\n", " ")
	line := linkcheck.FormatTimestamp(f.clock.Now()) + " " + message + "\n"
	if err := afero.WriteFile(f.fs, f.path, []byte(line), 0o644); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", f.path, err)
	}
	return nil
}

// Stamp records the number of links processed so far.
func (f *File) Stamp(count int) error {
	return f.Write(fmt.Sprintf("%4d", count))
}

// Done writes the terminal stamp.
func (f *File) Done() error {
	return f.Write(DoneMessage)
}
