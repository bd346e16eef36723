// =============================================================================
// Voucher XML Converter - Converter Module
// =============================================================================
//
// This module orchestrates one conversion, from a source document to a
// tabular output.
//
// CONVERSION PIPELINE:
//   1. Fetch the source (remote locator) or open it (local file)
//   2. Parse the XML into a node tree
//   3. Extract the flattened rows
//   4. Write the rows with the configured tabular writer
//
// Every failure is reported as a *StageError naming the stage that failed.
// Downloaded artifacts are released on every exit path, and file outputs are
// written atomically so a failed run leaves nothing behind.
//
// CONCURRENCY:
//   A Converter holds no per-run state and may be shared between goroutines.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/extractor"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/metrics"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/source"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tabular"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tallyxml"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/types"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/pkg/utils"
)

// =============================================================================
// STAGES AND ERRORS
// =============================================================================

// Stage names a step of the pipeline.
type Stage string

const (
	StageLocate Stage = "locate"
	StageFetch  Stage = "fetch"
	StageParse  Stage = "parse"
	StageWrite  Stage = "write"
)

// StageError reports the stage a conversion failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of a conversion error, or "" if err is not a
// *StageError.
func StageOf(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one conversion.
type Result struct {
	// Source is the locator or input path that was converted.
	Source string

	// OutputFile is the path of the written file. It is empty for stream
	// conversions and when the conversion failed.
	OutputFile string

	// Success indicates whether the conversion was successful.
	Success bool

	// Error is a *StageError if the conversion failed, nil otherwise.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the conversion.
type ProcessingStats struct {
	// Vouchers is the number of vouchers found.
	Vouchers int

	// LedgerEntries is the number of ledger entries found.
	LedgerEntries int

	// RowsWritten is the number of data rows written, header excluded.
	RowsWritten int

	// SourceBytes is the size of the source document.
	SourceBytes int64

	// ProcessingTime is the time taken by the whole conversion.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs conversions with one fetcher and one writer.
type Converter struct {
	fetcher source.Fetcher
	writer  tabular.Writer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a new Converter.
//
// PARAMETERS:
//   - fetcher: Resolves remote locators. May be nil for file-only use.
//   - writer: Serializes the rows.
//   - m: Metrics sink. May be nil.
//   - logger: Base logger.
func New(fetcher source.Fetcher, writer tabular.Writer, m *metrics.Metrics, logger zerolog.Logger) *Converter {
	return &Converter{
		fetcher: fetcher,
		writer:  writer,
		metrics: m,
		logger:  logger.With().Str("component", "converter").Logger(),
	}
}

// Writer returns the tabular writer used for output.
func (c *Converter) Writer() tabular.Writer {
	return c.writer
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// ConvertLocator fetches the document behind locator and streams the
// tabular output to out.
func (c *Converter) ConvertLocator(ctx context.Context, locator string, out io.Writer) Result {
	result := Result{Source: locator}
	start := time.Now()

	err := c.withArtifact(ctx, locator, &result, func(r io.Reader) error {
		return c.convert(r, out, &result)
	})

	return c.finish(result, start, err)
}

// ConvertLocatorToFile fetches the document behind locator and writes the
// tabular output to outputPath.
func (c *Converter) ConvertLocatorToFile(ctx context.Context, locator, outputPath string) Result {
	result := Result{Source: locator}
	start := time.Now()

	err := c.withArtifact(ctx, locator, &result, func(r io.Reader) error {
		return c.convertToFile(outputPath, &result, func(w io.Writer) error {
			return c.convert(r, w, &result)
		})
	})

	return c.finish(result, start, err)
}

// ConvertFile converts a local XML file into outputPath. The document is
// parsed before the output file is created.
func (c *Converter) ConvertFile(ctx context.Context, inputPath, outputPath string) Result {
	result := Result{Source: inputPath}
	start := time.Now()

	err := func() error {
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: StageFetch, Err: err}
		}

		size, err := utils.GetFileSize(inputPath)
		if err != nil {
			return &StageError{Stage: StageFetch, Err: fmt.Errorf("failed to open input file: %w", err)}
		}
		result.Stats.SourceBytes = size

		tree, err := tallyxml.ParseFile(inputPath)
		if err != nil {
			var parseErr *tallyxml.ParseError
			if errors.As(err, &parseErr) {
				return &StageError{Stage: StageParse, Err: err}
			}
			return &StageError{Stage: StageFetch, Err: err}
		}

		return c.convertToFile(outputPath, &result, func(w io.Writer) error {
			return c.emit(tree, w, &result)
		})
	}()

	return c.finish(result, start, err)
}

// =============================================================================
// PIPELINE STEPS
// =============================================================================

// withArtifact fetches locator, hands the artifact's content to use, and
// releases the artifact whatever happens.
func (c *Converter) withArtifact(ctx context.Context, locator string, result *Result, use func(io.Reader) error) error {
	if c.fetcher == nil {
		return &StageError{Stage: StageFetch, Err: source.ErrUnavailable}
	}

	artifact, err := c.fetcher.Fetch(ctx, locator)
	if err != nil {
		stage := StageFetch
		if errors.Is(err, source.ErrInvalidLocator) {
			stage = StageLocate
		}
		return &StageError{Stage: stage, Err: err}
	}
	defer func() {
		if err := artifact.Release(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to release artifact")
		}
	}()

	result.Stats.SourceBytes = artifact.Size
	c.metrics.ObserveSourceBytes(artifact.Size)

	r, err := artifact.Open()
	if err != nil {
		return &StageError{Stage: StageFetch, Err: err}
	}
	defer r.Close()

	return use(r)
}

// convertToFile runs write into an atomically created output file.
func (c *Converter) convertToFile(outputPath string, result *Result, write func(io.Writer) error) error {
	var pipelineErr error

	err := utils.WriteFileAtomic(outputPath, func(f *os.File) error {
		pipelineErr = write(f)
		return pipelineErr
	})

	switch {
	case pipelineErr != nil:
		return pipelineErr
	case err != nil:
		return &StageError{Stage: StageWrite, Err: err}
	}

	result.OutputFile = outputPath
	return nil
}

// convert parses r and emits its rows to out.
func (c *Converter) convert(r io.Reader, out io.Writer, result *Result) error {
	tree, err := tallyxml.Parse(r)
	if err != nil {
		return &StageError{Stage: StageParse, Err: err}
	}

	return c.emit(tree, out, result)
}

// emit extracts the rows of tree and writes them to out.
func (c *Converter) emit(tree *tallyxml.Tree, out io.Writer, result *Result) error {
	rows := extractor.Extract(tree)
	summary := extractor.Summarize(rows)

	result.Stats.Vouchers = summary.Vouchers
	result.Stats.LedgerEntries = summary.LedgerEntries

	c.logger.Debug().
		Int("vouchers", summary.Vouchers).
		Int("ledger_entries", summary.LedgerEntries).
		Int("rows", summary.Rows).
		Msg("rows extracted")

	if err := c.writer.Write(out, rows); err != nil {
		return &StageError{Stage: StageWrite, Err: err}
	}

	result.Stats.RowsWritten = summary.Rows
	return nil
}

// finish completes result, records metrics and logs the outcome.
func (c *Converter) finish(result Result, start time.Time, err error) Result {
	result.Stats.ProcessingTime = time.Since(start)
	seconds := result.Stats.ProcessingTime.Seconds()

	if err != nil {
		result.Error = err
		result.OutputFile = ""
		c.metrics.ObserveFailure(string(StageOf(err)), seconds)
		c.logger.Error().
			Err(err).
			Str("stage", string(StageOf(err))).
			Dur("duration", result.Stats.ProcessingTime).
			Msg("conversion failed")
		return result
	}

	result.Success = true
	c.metrics.ObserveSuccess(seconds, map[string]int{
		string(types.Parent): result.Stats.Vouchers,
		string(types.Child):  result.Stats.LedgerEntries,
		string(types.Other):  result.Stats.LedgerEntries,
	})
	c.logger.Info().
		Int("vouchers", result.Stats.Vouchers).
		Int("rows", result.Stats.RowsWritten).
		Str("format", c.writer.Format()).
		Dur("duration", result.Stats.ProcessingTime).
		Msg("conversion complete")

	return result
}
