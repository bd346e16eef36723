package extractor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tallyxml"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/types"
)

func parse(t *testing.T, doc string) *tallyxml.Tree {
	t.Helper()
	tree, err := tallyxml.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	return tree
}

func envelope(vouchers ...string) string {
	return "<ENVELOPE><BODY><IMPORTDATA><REQUESTDATA><TALLYMESSAGE>" +
		strings.Join(vouchers, "") +
		"</TALLYMESSAGE></REQUESTDATA></IMPORTDATA></BODY></ENVELOPE>"
}

func ledgerEntry(name, amount string, allocations ...string) string {
	return "<ALLLEDGERENTRIES.LIST><LEDGERNAME>" + name + "</LEDGERNAME><AMOUNT>" + amount + "</AMOUNT>" +
		strings.Join(allocations, "") + "</ALLLEDGERENTRIES.LIST>"
}

func voucher(number string, entries ...string) string {
	return "<VOUCHER><VOUCHERNUMBER>" + number + "</VOUCHERNUMBER><DATE>1-Apr-23</DATE>" +
		"<PARTYLEDGERNAME>Acme</PARTYLEDGERNAME><AMOUNT>1000</AMOUNT>" +
		strings.Join(entries, "") + "</VOUCHER>"
}

func TestExtract_SingleVoucherScenario(t *testing.T) {
	doc := envelope(voucher("V1",
		ledgerEntry("Sales", "1000",
			"<BILLALLOCATIONS.LIST><NAME>Inv001</NAME><BILLTYPE>New Ref</BILLTYPE>"+
				"<AMOUNT>1000</AMOUNT><DUEDATEOFPYMT>30-Apr-23</DUEDATEOFPYMT></BILLALLOCATIONS.LIST>"),
	))

	rows := Extract(parse(t, doc))
	require.Len(t, rows, 3)

	assert.Equal(t,
		[]string{"1-Apr-23", "Parent", "V1", "NA", "NA", "NA", "Acme", "NA", "1000", "Acme"},
		rows[0].Strings())
	assert.Equal(t,
		[]string{"1-Apr-23", "Child", "V1", "Inv001", "New Ref", "30-Apr-23", "Sales", "1000", "NA", "Sales"},
		rows[1].Strings())
	assert.Equal(t,
		[]string{"1-Apr-23", "Other", "V1", "NA", "NA", "NA", "Sales", "NA", "1000", "Sales"},
		rows[2].Strings())
}

func TestExtract_RowCountAndGrouping(t *testing.T) {
	tests := []struct {
		name    string
		entries int
	}{
		{name: "no ledger entries", entries: 0},
		{name: "one ledger entry", entries: 1},
		{name: "three ledger entries", entries: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []string
			for i := 0; i < tt.entries; i++ {
				entries = append(entries, ledgerEntry(fmt.Sprintf("Ledger%d", i), fmt.Sprintf("%d", i)))
			}

			rows := Extract(parse(t, envelope(voucher("V1", entries...))))
			require.Len(t, rows, 1+2*tt.entries)

			assert.Equal(t, types.Parent, rows[0].TransactionType)
			for i := 0; i < tt.entries; i++ {
				child := rows[1+i]
				other := rows[1+tt.entries+i]

				assert.Equal(t, types.Child, child.TransactionType)
				assert.Equal(t, types.Other, other.TransactionType)

				want := fmt.Sprintf("Ledger%d", i)
				assert.Equal(t, want, child.Particulars.Value)
				assert.Equal(t, want, other.Particulars.Value)
				assert.Equal(t, fmt.Sprintf("%d", i), other.Amount.Value)
			}
		})
	}
}

func TestExtract_RowTypeInvariants(t *testing.T) {
	doc := envelope(
		voucher("V1", ledgerEntry("Sales", "-500"), ledgerEntry("Tax", "-90")),
		voucher("V2", ledgerEntry("Cash", "590")),
	)

	for _, row := range Extract(parse(t, doc)) {
		switch row.TransactionType {
		case types.Parent:
			assert.Equal(t, row.Debtor, row.Particulars)
			assert.Equal(t, types.NotApplicable(), row.RefNo)
			assert.Equal(t, types.NotApplicable(), row.RefAmount)
		case types.Child:
			assert.Equal(t, types.NotApplicable(), row.Amount)
			assert.Equal(t, row.Debtor, row.Particulars)
		case types.Other:
			for _, f := range []types.Field{row.RefNo, row.RefType, row.RefDate, row.RefAmount} {
				assert.Equal(t, types.NotApplicable(), f)
			}
		default:
			t.Fatalf("unexpected transaction type %q", row.TransactionType)
		}
	}
}

func TestExtract_EntryWithoutAllocations(t *testing.T) {
	rows := Extract(parse(t, envelope(voucher("V1", ledgerEntry("Sales", "1000")))))
	require.Len(t, rows, 3)

	child := rows[1]
	assert.Equal(t, types.NotApplicable(), child.RefNo)
	assert.Equal(t, types.NotApplicable(), child.RefType)
	assert.Equal(t, types.NotApplicable(), child.RefDate)
	assert.Equal(t, types.NotApplicable(), child.RefAmount)
}

func TestExtract_PartialAllocationFieldsDefaultIndependently(t *testing.T) {
	doc := envelope(voucher("V1",
		ledgerEntry("Sales", "1000", "<BILLALLOCATIONS.LIST><NAME>Inv009</NAME></BILLALLOCATIONS.LIST>"),
	))

	child := Extract(parse(t, doc))[1]
	assert.Equal(t, types.Text("Inv009"), child.RefNo)
	assert.Equal(t, types.NotApplicable(), child.RefType)
	assert.Equal(t, types.NotApplicable(), child.RefDate)
	assert.Equal(t, types.NotApplicable(), child.RefAmount)
}

func TestExtract_FirstAllocationWins(t *testing.T) {
	doc := envelope(voucher("V1",
		ledgerEntry("Sales", "1000",
			"<BILLALLOCATIONS.LIST><NAME>Inv001</NAME><AMOUNT>600</AMOUNT></BILLALLOCATIONS.LIST>",
			"<BILLALLOCATIONS.LIST><NAME>Inv002</NAME><AMOUNT>400</AMOUNT></BILLALLOCATIONS.LIST>"),
	))

	child := Extract(parse(t, doc))[1]
	assert.Equal(t, "Inv001", child.RefNo.Value)
	assert.Equal(t, "600", child.RefAmount.Value)
}

func TestExtract_MissingVoucherFieldsAreAbsent(t *testing.T) {
	doc := envelope("<VOUCHER><ALLLEDGERENTRIES.LIST><AMOUNT>5</AMOUNT></ALLLEDGERENTRIES.LIST></VOUCHER>")

	rows := Extract(parse(t, doc))
	require.Len(t, rows, 3)

	parent := rows[0]
	assert.False(t, parent.Date.Present)
	assert.False(t, parent.VchNo.Present)
	assert.False(t, parent.Debtor.Present)
	assert.False(t, parent.Amount.Present)
	assert.False(t, parent.Particulars.Present)
	assert.Nil(t, parent.Values()[0], "absent date must render as an empty cell")

	other := rows[2]
	assert.False(t, other.Debtor.Present, "missing LEDGERNAME stays absent")
	assert.Equal(t, types.Text("5"), other.Amount)
}

func TestExtract_PresentEmptyTextIsKept(t *testing.T) {
	doc := envelope("<VOUCHER><VOUCHERNUMBER></VOUCHERNUMBER></VOUCHER>")

	rows := Extract(parse(t, doc))
	require.Len(t, rows, 1)
	assert.Equal(t, types.Text(""), rows[0].VchNo)
}

func TestExtract_VouchersInDocumentOrder(t *testing.T) {
	doc := `<ENVELOPE>
  <A><VOUCHER><VOUCHERNUMBER>V1</VOUCHERNUMBER></VOUCHER></A>
  <VOUCHER><VOUCHERNUMBER>V2</VOUCHERNUMBER></VOUCHER>
  <B><C><D><VOUCHER><VOUCHERNUMBER>V3</VOUCHERNUMBER></VOUCHER></D></C></B>
  <VOUCHER><VOUCHERNUMBER>V4</VOUCHERNUMBER></VOUCHER>
</ENVELOPE>`

	var numbers []string
	for _, row := range Extract(parse(t, doc)) {
		numbers = append(numbers, row.VchNo.Value)
	}
	assert.Equal(t, []string{"V1", "V2", "V3", "V4"}, numbers)
}

func TestExtract_NestedLedgerEntries(t *testing.T) {
	doc := envelope(`<VOUCHER><VOUCHERNUMBER>V1</VOUCHERNUMBER>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Outer</LEDGERNAME></ALLLEDGERENTRIES.LIST>
<WRAPPER><ALLLEDGERENTRIES.LIST><LEDGERNAME>Inner</LEDGERNAME></ALLLEDGERENTRIES.LIST></WRAPPER>
</VOUCHER>`)

	rows := Extract(parse(t, doc))
	require.Len(t, rows, 5)
	assert.Equal(t, "Outer", rows[1].Debtor.Value)
	assert.Equal(t, "Inner", rows[2].Debtor.Value)
	assert.Equal(t, "Outer", rows[3].Debtor.Value)
	assert.Equal(t, "Inner", rows[4].Debtor.Value)
}

func TestExtract_NoVouchers(t *testing.T) {
	assert.Empty(t, Extract(parse(t, "<ENVELOPE><BODY/></ENVELOPE>")))
}

func TestExtract_Deterministic(t *testing.T) {
	doc := envelope(
		voucher("V1", ledgerEntry("Sales", "1"), ledgerEntry("Tax", "2")),
		voucher("V2", ledgerEntry("Cash", "3")),
	)
	tree := parse(t, doc)

	assert.Equal(t, Extract(tree), Extract(tree))
	assert.Equal(t, Extract(tree), Extract(parse(t, doc)))
}

func TestSummarize(t *testing.T) {
	doc := envelope(
		voucher("V1", ledgerEntry("Sales", "1"), ledgerEntry("Tax", "2")),
		voucher("V2", ledgerEntry("Cash", "3")),
		voucher("V3"),
	)

	summary := Summarize(Extract(parse(t, doc)))
	assert.Equal(t, 3, summary.Vouchers)
	assert.Equal(t, 3, summary.LedgerEntries)
	assert.Equal(t, 9, summary.Rows)
	assert.Equal(t, 3, summary.ByType[types.Parent])
	assert.Equal(t, 3, summary.ByType[types.Child])
	assert.Equal(t, 3, summary.ByType[types.Other])
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.Vouchers)
	assert.Zero(t, summary.Rows)
	assert.NotNil(t, summary.ByType)
}
