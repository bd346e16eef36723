// =============================================================================
// Voucher XML Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (vchconv)
//   ├── convertCmd (vchconv convert)
//   ├── serveCmd   (vchconv serve)
//   └── versionCmd (vchconv version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration before any subcommand runs
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/config"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/logger"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tabular"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// mainConfig and log are set up by loadConfig before a subcommand runs.
var (
	mainConfig *config.MainConfig
	log        zerolog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vchconv",
	Short: "Voucher XML Converter - Flatten accounting voucher exports into spreadsheets",
	Long: `vchconv reads a voucher export (an XML document of VOUCHER elements with
ledger entries and bill allocations) and writes one spreadsheet row per
voucher, per ledger entry and per entry's allocation detail.

The document can be a local file, a Google Drive share link or an
s3://bucket/key object. The converter runs once from the command line or as
an HTTP service.

Example Usage:
  vchconv convert                               # Input.xml -> Output.xlsx
  vchconv convert --url https://drive.google.com/file/d/<id>/view
  vchconv convert --format csv --output daybook_{date}
  vchconv serve --addr :5000                    # POST /convert`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultConfigFile,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// loadConfig reads the configuration and builds the logger. A missing
// default config file means built-in defaults; a missing file named with
// --config is an error.
func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") && !utils.FileExists(cfgFile) {
		return fmt.Errorf("config file not found: %s", cfgFile)
	}

	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	mainConfig = cfg
	log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	return nil
}

// newWriter builds the tabular writer for format.
func newWriter(format string) (tabular.Writer, error) {
	return tabular.New(format, tabular.Options{
		SheetName: mainConfig.SheetName,
		Delimiter: mainConfig.CSVDelimiter,
	})
}
