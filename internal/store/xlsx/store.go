// Package xlsx implements the workbook-backed result store. Each run owns one
// sheet; the sheet is created with a tagged header row when missing and is
// refused when its first cell does not carry the schema tag.
package xlsx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/xllinks/internal/clock/system"
	"github.com/JakeFAU/xllinks/internal/linkcheck"
)

var (
	// ErrSchemaMismatch reports a sheet that was not created by this tool.
	ErrSchemaMismatch = errors.New("sheet schema mismatch")
	// ErrNotWritable reports a workbook that cannot be read or overwritten.
	ErrNotWritable = errors.New("workbook not writable")
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("result store closed")
)

// Options carries the optional collaborators of a Store.
type Options struct {
	Clock  linkcheck.Clock
	Logger *zap.Logger
}

// Store appends records to one sheet of an xlsx workbook.
type Store struct {
	path    string
	sheet   string
	file    *excelize.File
	styles  styleIDs
	nextRow int
	clock   linkcheck.Clock
	logger  *zap.Logger
}

// Open resolves the workbook at path and the named sheet, creating either
// when missing, and validates the sheet's schema tag. A workbook that exists
// but cannot be parsed is replaced by a fresh one.
func Open(path, sheet string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("workbook path is required")
	}
	if strings.TrimSpace(sheet) == "" {
		return nil, fmt.Errorf("sheet name is required")
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.With(zap.String("workbook", path), zap.String("sheet", sheet))

	f, err := openExisting(path, logger)
	if err != nil {
		return nil, err
	}
	if f == nil {
		if f, err = create(path, sheet); err != nil {
			return nil, err
		}
		logger.Info("created workbook")
	}

	s, err := attach(f, path, sheet, logger)
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("close workbook after failed open", zap.Error(cerr))
		}
		return nil, err
	}
	s.clock = opts.Clock
	return s, nil
}

// openExisting returns nil without error when the workbook must be created.
func openExisting(path string, logger *zap.Logger) (*excelize.File, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat workbook: %w", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %w", ErrNotWritable, err)
		}
		logger.Warn("workbook unreadable, replacing it", zap.Error(err))
		return nil, nil
	}
	if err := checkWritable(path); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// checkWritable opens the file for writing without truncating or writing it.
func checkWritable(path string) error {
	fh, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotWritable, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close writability probe: %w", err)
	}
	return nil
}

func create(path, sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if def := f.GetSheetName(0); def != sheet {
		if err := f.SetSheetName(def, sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("name sheet %q: %w", sheet, err)
		}
	}
	if err := writeHeader(f, sheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SaveAs(path); err != nil {
		_ = f.Close()
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %w", ErrNotWritable, err)
		}
		return nil, fmt.Errorf("save new workbook: %w", err)
	}
	return f, nil
}

func attach(f *excelize.File, path, sheet string, logger *zap.Logger) (*Store, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("look up sheet %q: %w", sheet, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", sheet, err)
		}
		if err := writeHeader(f, sheet); err != nil {
			return nil, err
		}
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("save new sheet: %w", err)
		}
		logger.Info("added sheet")
	}

	if err := validateSchema(f, sheet); err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	styles, err := registerStyles(f)
	if err != nil {
		return nil, fmt.Errorf("register styles: %w", err)
	}
	logger.Info("result store open", zap.Int("existing_rows", len(rows)))
	return &Store{
		path:    path,
		sheet:   sheet,
		file:    f,
		styles:  styles,
		nextRow: len(rows) + 1,
		logger:  logger,
	}, nil
}

// Append writes rec to the first unused row. Existing rows are never touched.
func (s *Store) Append(rec linkcheck.Record) error {
	if s.file == nil {
		return ErrClosed
	}
	if rec.EnteredAt.IsZero() {
		rec.EnteredAt = s.clock.Now()
	}
	cell, err := excelize.CoordinatesToCellName(1, s.nextRow)
	if err != nil {
		return fmt.Errorf("address row %d: %w", s.nextRow, err)
	}
	row := rec.Row()
	if err := s.file.SetSheetRow(s.sheet, cell, &row); err != nil {
		return fmt.Errorf("append row %d: %w", s.nextRow, err)
	}
	s.nextRow++
	return nil
}

// Rows returns the number of rows in the sheet, header included.
func (s *Store) Rows() int {
	return s.nextRow - 1
}

// Flush recomputes presentation from the current rows and saves the workbook.
func (s *Store) Flush() error {
	if s.file == nil {
		return ErrClosed
	}
	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	if err := layout(rows).apply(s.file, s.sheet, s.styles); err != nil {
		return fmt.Errorf("apply presentation: %w", err)
	}
	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	s.logger.Debug("workbook saved", zap.Int("rows", len(rows)))
	return nil
}

// Close flushes once more and releases the workbook. Calling Close again is
// a no-op.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.Flush()
	closeErr := s.file.Close()
	s.file = nil
	if closeErr != nil {
		closeErr = fmt.Errorf("close workbook: %w", closeErr)
	}
	return errors.Join(flushErr, closeErr)
}
