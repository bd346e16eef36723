// =============================================================================
// Voucher XML Converter - Transaction Extractor
// =============================================================================
//
// This module flattens the voucher tree into output rows. It is the core of
// the converter and has no side effects.
//
// FLATTENING RULES (per VOUCHER, in document order):
//   1. One Parent row carrying the voucher header.
//   2. One Child row per ALLLEDGERENTRIES.LIST, carrying the entry's first
//      bill allocation reference (NA where missing).
//   3. One Other row per ALLLEDGERENTRIES.LIST, carrying the entry's amount.
//
// All Child rows of a voucher come before all of its Other rows. A voucher
// with N ledger entries always yields 1 + 2N rows.
//
// =============================================================================

package extractor

import (
	"github.com/beevik/etree"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tallyxml"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/types"
)

// =============================================================================
// SCHEMA
// =============================================================================

const (
	voucherTag     = "VOUCHER"
	ledgerEntryTag = "ALLLEDGERENTRIES.LIST"
)

// Child paths, relative to the node they are evaluated against.
var (
	voucherNumberPath = etree.MustCompilePath("VOUCHERNUMBER")
	datePath          = etree.MustCompilePath("DATE")
	partyLedgerPath   = etree.MustCompilePath("PARTYLEDGERNAME")
	amountPath        = etree.MustCompilePath("AMOUNT")

	ledgerNamePath = etree.MustCompilePath("LEDGERNAME")

	refNoPath     = etree.MustCompilePath("BILLALLOCATIONS.LIST/NAME")
	refTypePath   = etree.MustCompilePath("BILLALLOCATIONS.LIST/BILLTYPE")
	refAmountPath = etree.MustCompilePath("BILLALLOCATIONS.LIST/AMOUNT")
	refDatePath   = etree.MustCompilePath("BILLALLOCATIONS.LIST/DUEDATEOFPYMT")
)

// voucherHeader holds the voucher-level values copied into every row of the
// voucher's group.
type voucherHeader struct {
	date   types.Field
	vchNo  types.Field
	debtor types.Field
	amount types.Field
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract walks tree and returns the flattened rows.
//
// Missing voucher header fields stay absent. Missing bill allocation fields
// become NA. Extract never fails on a parsed tree.
func Extract(tree *tallyxml.Tree) []types.Row {
	var rows []types.Row

	for _, voucher := range tallyxml.Descendants(tree.Root(), voucherTag) {
		rows = append(rows, extractVoucher(voucher)...)
	}

	return rows
}

// extractVoucher returns the Parent, Child and Other rows of one voucher.
func extractVoucher(voucher *etree.Element) []types.Row {
	header := voucherHeader{
		vchNo:  lookup(voucher, voucherNumberPath),
		date:   lookup(voucher, datePath),
		debtor: lookup(voucher, partyLedgerPath),
		amount: lookup(voucher, amountPath),
	}

	entries := tallyxml.Descendants(voucher, ledgerEntryTag)
	rows := make([]types.Row, 0, 1+2*len(entries))

	rows = append(rows, parentRow(header))

	for _, entry := range entries {
		rows = append(rows, childRow(header, entry))
	}

	// Second pass over the same entries; Other rows are grouped after all
	// Child rows rather than interleaved per entry.
	for _, entry := range entries {
		rows = append(rows, otherRow(header, entry))
	}

	return rows
}

func parentRow(h voucherHeader) types.Row {
	return types.Row{
		Date:            h.date,
		TransactionType: types.Parent,
		VchNo:           h.vchNo,
		RefNo:           types.NotApplicable(),
		RefType:         types.NotApplicable(),
		RefDate:         types.NotApplicable(),
		Debtor:          h.debtor,
		RefAmount:       types.NotApplicable(),
		Amount:          h.amount,
		Particulars:     h.debtor,
	}
}

func childRow(h voucherHeader, entry *etree.Element) types.Row {
	ledgerName := lookup(entry, ledgerNamePath)

	return types.Row{
		Date:            h.date,
		TransactionType: types.Child,
		VchNo:           h.vchNo,
		RefNo:           lookup(entry, refNoPath).OrNA(),
		RefType:         lookup(entry, refTypePath).OrNA(),
		RefDate:         lookup(entry, refDatePath).OrNA(),
		Debtor:          ledgerName,
		RefAmount:       lookup(entry, refAmountPath).OrNA(),
		Amount:          types.NotApplicable(),
		Particulars:     ledgerName,
	}
}

func otherRow(h voucherHeader, entry *etree.Element) types.Row {
	ledgerName := lookup(entry, ledgerNamePath)

	return types.Row{
		Date:            h.date,
		TransactionType: types.Other,
		VchNo:           h.vchNo,
		RefNo:           types.NotApplicable(),
		RefType:         types.NotApplicable(),
		RefDate:         types.NotApplicable(),
		Debtor:          ledgerName,
		RefAmount:       types.NotApplicable(),
		Amount:          lookup(entry, amountPath),
		Particulars:     ledgerName,
	}
}

func lookup(el *etree.Element, path etree.Path) types.Field {
	return types.Lookup(tallyxml.FindText(el, path))
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary counts what an extraction produced.
type Summary struct {
	Vouchers      int
	LedgerEntries int
	Rows          int
	ByType        map[types.TransactionType]int
}

// Summarize counts rows by transaction type. Every voucher yields exactly one
// Parent row and every ledger entry exactly one Other row, so those counts
// double as voucher and ledger entry counts.
func Summarize(rows []types.Row) Summary {
	summary := Summary{
		Rows:   len(rows),
		ByType: map[types.TransactionType]int{},
	}

	for _, row := range rows {
		summary.ByType[row.TransactionType]++
	}

	summary.Vouchers = summary.ByType[types.Parent]
	summary.LedgerEntries = summary.ByType[types.Other]

	return summary
}
