package tabular

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/types"
)

// XLSXWriter writes a single-sheet workbook with excelize's stream writer.
type XLSXWriter struct {
	SheetName string
}

func (x *XLSXWriter) Format() string { return FormatXLSX }

func (x *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (x *XLSXWriter) Extension() string { return ".xlsx" }

// Write builds the workbook in memory and writes it to w.
//
// RETURNS:
//   - A *WriteError if the workbook cannot be built or w fails.
func (x *XLSXWriter) Write(w io.Writer, rows []types.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := x.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}

	// A new workbook starts with "Sheet1".
	if sheet != DefaultSheetName {
		if err := f.SetSheetName(DefaultSheetName, sheet); err != nil {
			return x.fail(err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return x.fail(err)
	}

	header := make([]interface{}, len(types.Columns))
	for i, name := range types.Columns {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return x.fail(err)
	}

	// Data starts on row 2. Nil values (absent fields) leave the cell empty.
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return x.fail(err)
		}
		if err := sw.SetRow(cell, row.Values()); err != nil {
			return x.fail(err)
		}
	}

	if err := sw.Flush(); err != nil {
		return x.fail(err)
	}

	if err := f.Write(w); err != nil {
		return x.fail(err)
	}

	return nil
}

func (x *XLSXWriter) fail(err error) error {
	return &WriteError{Format: FormatXLSX, Err: err}
}
