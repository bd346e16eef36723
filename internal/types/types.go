// =============================================================================
// Voucher XML Converter - Shared Types
// =============================================================================
//
// This package contains the output row model shared by the extractor, the
// tabular writers and the converter pipeline. Keeping it here avoids import
// cycles between those packages.
//
// OUTPUT SCHEMA (fixed column order):
//   Date | Transaction Type | Vch No. | Ref No | Ref Type | Ref Date |
//   Debtor | Ref Amount | Amount | Particulars
//
// =============================================================================

package types

// NA is the placeholder written into fields that do not apply to a row's
// transaction type.
const NA = "NA"

// Columns holds the header names in output order.
var Columns = []string{
	"Date",
	"Transaction Type",
	"Vch No.",
	"Ref No",
	"Ref Type",
	"Ref Date",
	"Debtor",
	"Ref Amount",
	"Amount",
	"Particulars",
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// TransactionType tags the category of an output row.
type TransactionType string

const (
	// Parent rows carry the voucher header.
	Parent TransactionType = "Parent"

	// Child rows carry the bill allocation reference of a ledger entry.
	Child TransactionType = "Child"

	// Other rows carry the amount of a ledger entry.
	Other TransactionType = "Other"
)

// =============================================================================
// FIELD
// =============================================================================

// Field is a single text value of an output row.
//
// Present is false when the source node did not exist at all. Writers render
// such fields as empty cells, which is different from both "" (a node with no
// text) and NA (a field that does not apply).
type Field struct {
	Value   string
	Present bool
}

// Text returns a present field holding s.
func Text(s string) Field {
	return Field{Value: s, Present: true}
}

// NotApplicable returns a present field holding the NA sentinel.
func NotApplicable() Field {
	return Text(NA)
}

// Lookup builds a field from a (value, found) pair as returned by node lookups.
func Lookup(value string, found bool) Field {
	if !found {
		return Field{}
	}
	return Text(value)
}

// OrNA returns the field itself when present and NA otherwise.
func (f Field) OrNA() Field {
	if !f.Present {
		return NotApplicable()
	}
	return f
}

// String returns the value, or "" for an absent field.
func (f Field) String() string {
	return f.Value
}

// =============================================================================
// ROW
// =============================================================================

// Row is one flattened output line. Field order matches Columns.
type Row struct {
	Date            Field
	TransactionType TransactionType
	VchNo           Field
	RefNo           Field
	RefType         Field
	RefDate         Field
	Debtor          Field
	RefAmount       Field
	Amount          Field
	Particulars     Field
}

// fields returns the row's fields in column order.
func (r Row) fields() []Field {
	return []Field{
		r.Date,
		Text(string(r.TransactionType)),
		r.VchNo,
		r.RefNo,
		r.RefType,
		r.RefDate,
		r.Debtor,
		r.RefAmount,
		r.Amount,
		r.Particulars,
	}
}

// Values returns the row as cell values for spreadsheet writers. Absent
// fields are nil so that no cell is written for them.
func (r Row) Values() []interface{} {
	fields := r.fields()
	values := make([]interface{}, len(fields))
	for i, f := range fields {
		if f.Present {
			values[i] = f.Value
		}
	}
	return values
}

// Strings returns the row as plain strings. Absent fields become "".
func (r Row) Strings() []string {
	fields := r.fields()
	values := make([]string, len(fields))
	for i, f := range fields {
		values[i] = f.Value
	}
	return values
}
