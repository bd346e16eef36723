// =============================================================================
// Voucher XML Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, the local entry point. It converts
// one document into one output file.
//
// COMMAND USAGE:
//   vchconv convert [flags]
//
// FLAGS:
//   --input   : Local XML file (default from config, "Input.xml")
//   --url     : Remote locator instead of --input (Drive link or s3://)
//   --output  : Output file, placeholders allowed (default "Output.xlsx")
//   --format  : xlsx or csv (default from config)
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/converter"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tabular"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	inputPath  string
	outputPath string
	sourceURL  string
	format     string
)

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a voucher XML document into a spreadsheet",
	Long: `The convert command reads a voucher XML document and writes the flattened
rows to a spreadsheet file.

Each voucher yields one Parent row, then one Child row per ledger entry, then
one Other row per ledger entry: all Child rows of a voucher come before its
Other rows. The output file is only created when the whole conversion
succeeds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to the input XML file")
	convertCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path to the output file ({uuid}, {timestamp}, {date} allowed)")
	convertCmd.Flags().StringVarP(&sourceURL, "url", "u", "", "Google Drive share link or s3://bucket/key to convert instead of --input")
	convertCmd.Flags().StringVarP(&format, "format", "f", "", "Output format: xlsx or csv")

	convertCmd.MarkFlagsMutuallyExclusive("input", "url")
}

// =============================================================================
// MAIN CONVERSION FUNCTION
// =============================================================================

func runConvert(cmd *cobra.Command) error {
	outputFormat := mainConfig.OutputFormat
	if format != "" {
		outputFormat = format
	}

	writer, err := newWriter(outputFormat)
	if err != nil {
		return err
	}

	output := resolveOutputPath(cmd, writer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var result converter.Result

	if sourceURL != "" {
		fetcher, err := newFetcher(ctx)
		if err != nil {
			return err
		}
		conv := converter.New(fetcher, writer, nil, log)
		result = conv.ConvertLocatorToFile(ctx, sourceURL, output)
	} else {
		input := mainConfig.InputFile
		if inputPath != "" {
			input = inputPath
		}
		conv := converter.New(nil, writer, nil, log)
		result = conv.ConvertFile(ctx, input, output)
	}

	if !result.Success {
		return result.Error
	}

	printSummary(cmd, result)
	return nil
}

// resolveOutputPath picks the output file name. Without --output the
// configured name is used, its extension following the output format.
func resolveOutputPath(cmd *cobra.Command, writer tabular.Writer) string {
	name := outputPath
	if !cmd.Flags().Changed("output") || name == "" {
		name = mainConfig.OutputFile
		if ext := filepath.Ext(name); ext != "" && ext != writer.Extension() {
			name = utils.ReplaceExtension(name, writer.Extension())
		}
	}

	return utils.GenerateOutputFileName(name, writer.Extension())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func printSummary(cmd *cobra.Command, result converter.Result) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Data has been successfully written to %s\n", result.OutputFile)
	fmt.Fprintf(out, "Vouchers:        %d\n", result.Stats.Vouchers)
	fmt.Fprintf(out, "Ledger entries:  %d\n", result.Stats.LedgerEntries)
	fmt.Fprintf(out, "Rows written:    %d\n", result.Stats.RowsWritten)
	fmt.Fprintf(out, "Time elapsed:    %s\n", result.Stats.ProcessingTime)
}
