package tabular

import (
	"encoding/csv"
	"io"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/types"
)

// CSVWriter writes comma separated text.
type CSVWriter struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

func (c *CSVWriter) Format() string { return FormatCSV }

func (c *CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }

func (c *CSVWriter) Extension() string { return ".csv" }

// Write emits the header and rows. Absent fields become empty strings.
func (c *CSVWriter) Write(w io.Writer, rows []types.Row) error {
	cw := csv.NewWriter(w)
	if c.Comma != 0 {
		cw.Comma = c.Comma
	}

	if err := cw.Write(types.Columns); err != nil {
		return &WriteError{Format: FormatCSV, Err: err}
	}

	for _, row := range rows {
		if err := cw.Write(row.Strings()); err != nil {
			return &WriteError{Format: FormatCSV, Err: err}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return &WriteError{Format: FormatCSV, Err: err}
	}

	return nil
}
