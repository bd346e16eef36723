// =============================================================================
// Voucher XML Converter - Tabular Writers
// =============================================================================
//
// This package serializes extracted rows into a tabular file. Every writer
// emits the same header row (types.Columns) followed by one line per row, in
// the order the rows were given.
//
// SUPPORTED FORMATS:
//   - xlsx (default): a single-sheet workbook
//   - csv:            comma separated text, delimiter configurable
//
// Absent fields are written as empty cells. All values are written as text.
//
// =============================================================================

package tabular

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/types"
)

// Format names accepted by New.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// DefaultSheetName is the sheet written by the xlsx writer when none is set.
const DefaultSheetName = "Sheet1"

// =============================================================================
// ERRORS
// =============================================================================

// ErrUnsupportedFormat is returned by New for an unknown format name.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ErrInvalidDelimiter is returned for a csv delimiter that is neither a
// known name nor a single usable character.
var ErrInvalidDelimiter = errors.New("invalid csv delimiter")

// WriteError reports a failure to produce or emit the tabular output.
type WriteError struct {
	Format string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s output: %v", e.Format, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// =============================================================================
// WRITER INTERFACE
// =============================================================================

// Writer serializes rows into one output format.
type Writer interface {
	// Format returns the format name, e.g. "xlsx".
	Format() string

	// ContentType returns the MIME type of the produced bytes.
	ContentType() string

	// Extension returns the file extension including the dot.
	Extension() string

	// Write emits the header and all rows to w. Failures are *WriteError.
	Write(w io.Writer, rows []types.Row) error
}

// Options configures the writers. Zero values select the defaults.
type Options struct {
	// SheetName is the xlsx sheet title. Default: "Sheet1".
	SheetName string

	// Delimiter is the csv field separator. Accepts a single character or
	// one of "tab", "pipe", "semicolon". Default: ",".
	Delimiter string
}

// New returns the writer for format. An empty format selects xlsx.
//
// PARAMETERS:
//   - format: "xlsx" or "csv", case-insensitive.
//   - opts: writer options.
//
// RETURNS:
//   - The writer.
//   - An error wrapping ErrUnsupportedFormat for anything else.
func New(format string, opts Options) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatXLSX:
		sheet := opts.SheetName
		if sheet == "" {
			sheet = DefaultSheetName
		}
		return &XLSXWriter{SheetName: sheet}, nil

	case FormatCSV:
		comma, err := ParseDelimiter(opts.Delimiter)
		if err != nil {
			return nil, err
		}
		return &CSVWriter{Comma: comma}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// IsSupported reports whether New accepts format.
func IsSupported(format string) bool {
	_, err := New(format, Options{})
	return err == nil
}

// ParseDelimiter maps a configured delimiter to its rune. value is a single
// character or one of "tab", "pipe", "semicolon"; empty means ','. Characters
// that encoding/csv cannot use as a separator are rejected.
func ParseDelimiter(value string) (rune, error) {
	switch value {
	case "\\t", "tab", "TAB":
		return '\t', nil
	case "pipe", "PIPE":
		return '|', nil
	case "semicolon", "SEMICOLON":
		return ';', nil
	case "":
		return ',', nil
	}

	if utf8.RuneCountInString(value) != 1 {
		return 0, fmt.Errorf("%w: %q is not a single character", ErrInvalidDelimiter, value)
	}

	r, _ := utf8.DecodeRuneInString(value)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("%w: %q cannot separate fields", ErrInvalidDelimiter, value)
	}

	return r, nil
}
