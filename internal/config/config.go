// =============================================================================
// Voucher XML Converter - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Values are layered, later
// layers overriding earlier ones:
//   1. Built-in defaults (Default)
//   2. The YAML file (config.yaml by default; a missing file is not an error)
//   3. A .env file in the working directory, if present
//   4. Environment variables prefixed with VCHCONV_
//
// ENVIRONMENT NAMES:
//   Top-level keys map to VCHCONV_<KEY>, nested keys to
//   VCHCONV_<SECTION>_<KEY>, e.g. VCHCONV_SERVER_ADDR or
//   VCHCONV_FETCH_MAX_RETRIES.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/logger"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tabular"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "VCHCONV_"

// DefaultConfigFile is the file read when no --config flag is given.
const DefaultConfigFile = "config.yaml"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// LOCAL CONVERSION SETTINGS
	// =========================================================================

	// InputFile is read by "vchconv convert" when no --input is given.
	// Default: "Input.xml"
	InputFile string `yaml:"input_file" env:"INPUT_FILE"`

	// OutputFile is written by "vchconv convert" when no --output is given.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - Current date (YYYY-MM-DD)
	// Default: "Output.xlsx"
	OutputFile string `yaml:"output_file" env:"OUTPUT_FILE"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputFormat selects the tabular writer: "xlsx" or "csv".
	// Default: "xlsx"
	OutputFormat string `yaml:"output_format" env:"OUTPUT_FORMAT"`

	// SheetName is the xlsx sheet title.
	// Default: "Sheet1"
	SheetName string `yaml:"sheet_name" env:"SHEET_NAME"`

	// CSVDelimiter is the csv separator ("," "tab" "pipe" "semicolon" or a
	// single character).
	// Default: ","
	CSVDelimiter string `yaml:"csv_delimiter" env:"CSV_DELIMITER"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// LogFormat is "json" or "console".
	// Default: "console"
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	Server ServerConfig `yaml:"server" envPrefix:"SERVER_"`
	Fetch  FetchConfig  `yaml:"fetch" envPrefix:"FETCH_"`
}

// ServerConfig holds the HTTP service settings.
type ServerConfig struct {
	// Addr is the listen address. Default: ":5000"
	Addr string `yaml:"addr" env:"ADDR"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// RequestTimeout bounds one conversion request end to end.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	// AllowedOrigins feeds the CORS middleware. Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// FetchConfig holds the remote source settings.
type FetchConfig struct {
	// DriveDownloadURL is the endpoint share links are rewritten to.
	// Default: "https://drive.google.com/uc"
	DriveDownloadURL string `yaml:"drive_download_url" env:"DRIVE_DOWNLOAD_URL"`

	// Timeout bounds each HTTP request to the source.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// MaxRetries is the number of retries after a failed first attempt.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`

	// MaxBytes caps the size of a downloaded document.
	MaxBytes int64 `yaml:"max_bytes" env:"MAX_BYTES"`

	// TempDir holds downloaded documents. Empty means the system default.
	TempDir string `yaml:"temp_dir" env:"TEMP_DIR"`

	// S3 settings for s3://bucket/key locators. Empty credentials use the
	// default AWS credential chain.
	S3Region          string `yaml:"s3_region" env:"S3_REGION"`
	S3Endpoint        string `yaml:"s3_endpoint" env:"S3_ENDPOINT"`
	S3AccessKeyID     string `yaml:"s3_access_key_id" env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
}

// =============================================================================
// LOADING FUNCTIONS
// =============================================================================

// Default returns the built-in configuration.
func Default() *MainConfig {
	return &MainConfig{
		InputFile:    "Input.xml",
		OutputFile:   "Output.xlsx",
		OutputFormat: tabular.FormatXLSX,
		SheetName:    tabular.DefaultSheetName,
		CSVDelimiter: ",",
		LogLevel:     "info",
		LogFormat:    "console",
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  90 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Fetch: FetchConfig{
			DriveDownloadURL: "https://drive.google.com/uc",
			Timeout:          60 * time.Second,
			MaxRetries:       3,
			MaxBytes:         64 << 20,
		},
	}
}

// LoadMainConfig loads the main configuration.
//
// PARAMETERS:
//   - configPath: The path to the YAML file. Empty or missing means defaults.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed, an environment value is
//     malformed, or the result is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config := Default()

	// Read the configuration file.
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// A missing .env file is fine.
	_ = godotenv.Load()

	// Apply environment overrides.
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Validate the configuration.
	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	var problems []string

	if !tabular.IsSupported(config.OutputFormat) {
		problems = append(problems, fmt.Sprintf("output_format %q is not one of xlsx, csv", config.OutputFormat))
	}
	if strings.TrimSpace(config.SheetName) == "" {
		problems = append(problems, "sheet_name must not be empty")
	}
	if len([]rune(config.SheetName)) > 31 {
		problems = append(problems, "sheet_name must be at most 31 characters")
	}
	if _, err := tabular.ParseDelimiter(config.CSVDelimiter); err != nil {
		problems = append(problems, fmt.Sprintf("csv_delimiter: %v", err))
	}
	if !logger.ValidLevel(config.LogLevel) {
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", config.LogLevel))
	}
	if config.LogFormat != "json" && config.LogFormat != "console" {
		problems = append(problems, fmt.Sprintf("log_format %q is not one of json, console", config.LogFormat))
	}
	if config.Server.Addr == "" {
		problems = append(problems, "server.addr must not be empty")
	}
	if config.Fetch.MaxRetries < 0 {
		problems = append(problems, "fetch.max_retries must not be negative")
	}
	if config.Fetch.MaxBytes <= 0 {
		problems = append(problems, "fetch.max_bytes must be positive")
	}

	timeouts := []struct {
		name  string
		value time.Duration
	}{
		{"server.read_timeout", config.Server.ReadTimeout},
		{"server.write_timeout", config.Server.WriteTimeout},
		{"server.shutdown_timeout", config.Server.ShutdownTimeout},
		{"server.request_timeout", config.Server.RequestTimeout},
		{"fetch.timeout", config.Fetch.Timeout},
	}
	for _, timeout := range timeouts {
		if timeout.value < 0 {
			problems = append(problems, timeout.name+" must not be negative")
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}

	return nil
}
