package xlsx

import (
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	// widthFactor pads the longest cell so text is not clipped.
	widthFactor    = 1.5
	maxColumnWidth = 255
	fontFamily     = "Times New Roman"
	fontSize       = 12
	headerFill     = "C4D79B"
	bandFill       = "E9E17F"
)

// rowStyle is the presentation class of one sheet row.
type rowStyle int

const (
	stylePlain rowStyle = iota
	styleHeader
	styleBand
)

// presentation is the cosmetic layout of a sheet, computed from its data.
type presentation struct {
	widths []float64
	rows   []rowStyle
}

// layout derives column widths and row styles from the row set alone.
// It has no access to the workbook, so it cannot alter data.
func layout(rows [][]string) presentation {
	var p presentation
	for _, row := range rows {
		for col, cell := range row {
			for len(p.widths) <= col {
				p.widths = append(p.widths, 0)
			}
			w := float64(utf8.RuneCountInString(cell)) * widthFactor
			if w > maxColumnWidth {
				w = maxColumnWidth
			}
			if w > p.widths[col] {
				p.widths[col] = w
			}
		}
	}
	p.rows = make([]rowStyle, len(rows))
	for i := range rows {
		switch n := i + 1; {
		case n == 1:
			p.rows[i] = styleHeader
		case n%2 == 1:
			p.rows[i] = styleBand
		default:
			p.rows[i] = stylePlain
		}
	}
	return p
}

// styleIDs holds the workbook style handles for each rowStyle.
type styleIDs map[rowStyle]int

func registerStyles(f *excelize.File) (styleIDs, error) {
	font := &excelize.Font{Family: fontFamily, Size: fontSize}
	defs := map[rowStyle]*excelize.Style{
		stylePlain: {Font: font},
		styleHeader: {
			Font: &excelize.Font{Family: fontFamily, Size: fontSize, Bold: true},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		},
		styleBand: {
			Font: font,
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{bandFill}},
		},
	}
	ids := make(styleIDs, len(defs))
	for kind, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return nil, err
		}
		ids[kind] = id
	}
	return ids, nil
}

func (p presentation) apply(f *excelize.File, sheet string, ids styleIDs) error {
	if len(p.widths) == 0 {
		return nil
	}
	for i, w := range p.widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, w); err != nil {
			return err
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(p.widths))
	if err != nil {
		return err
	}
	for i, style := range p.rows {
		n := i + 1
		first, _ := excelize.CoordinatesToCellName(1, n)
		last, _ := excelize.JoinCellName(lastCol, n)
		if err := f.SetCellStyle(sheet, first, last, ids[style]); err != nil {
			return err
		}
	}
	return nil
}
