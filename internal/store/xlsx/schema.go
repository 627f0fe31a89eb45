package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/xllinks/internal/linkcheck"
)

// headerRow is the canonical first row of every sheet this store owns.
func headerRow() []any {
	row := make([]any, 0, len(linkcheck.Header)+1)
	row = append(row, linkcheck.SchemaTag)
	for _, title := range linkcheck.Header {
		row = append(row, title)
	}
	return row
}

func writeHeader(f *excelize.File, sheet string) error {
	row := headerRow()
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	return nil
}

// validateSchema fails closed: a sheet whose A1 is not the schema tag was
// not created by this tool, or by an incompatible layout version.
func validateSchema(f *excelize.File, sheet string) error {
	tag, err := f.GetCellValue(sheet, "A1")
	if err != nil {
		return fmt.Errorf("read schema tag: %w", err)
	}
	if tag != linkcheck.SchemaTag {
		return fmt.Errorf("%w: sheet %q has %q in A1, want %q (schema v%d)",
			ErrSchemaMismatch, sheet, tag, linkcheck.SchemaTag, linkcheck.SchemaVersion)
	}
	return nil
}
