// =============================================================================
// Voucher XML Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   vchconv convert   - Convert Input.xml (or --url) into Output.xlsx
//   vchconv serve     - Run the HTTP conversion service
//   vchconv version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Parsing, extraction, writers, sources, service
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/voucher-xml-to-xlsx/cmd"
)

func main() {
	cmd.Execute()
}
