package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/mock/gomock"

	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/metrics"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/source"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/source/mocks"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tabular"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/tallyxml"
	"github.com/ginjaninja78/voucher-xml-to-xlsx/internal/types"
)

const (
	shareLink = "https://drive.google.com/file/d/abc/view"

	voucherXML = `<ENVELOPE><BODY><VOUCHER>
<DATE>1-Apr-23</DATE><VOUCHERNUMBER>V1</VOUCHERNUMBER><PARTYLEDGERNAME>Acme</PARTYLEDGERNAME><AMOUNT>1000</AMOUNT>
<ALLLEDGERENTRIES.LIST><LEDGERNAME>Sales</LEDGERNAME><AMOUNT>1000</AMOUNT>
<BILLALLOCATIONS.LIST><NAME>Inv001</NAME><BILLTYPE>New Ref</BILLTYPE><AMOUNT>1000</AMOUNT><DUEDATEOFPYMT>30-Apr-23</DUEDATEOFPYMT></BILLALLOCATIONS.LIST>
</ALLLEDGERENTRIES.LIST>
</VOUCHER></BODY></ENVELOPE>`
)

var errDiskFull = errors.New("disk full")

// failingWriter is a tabular.Writer whose Write always fails.
type failingWriter struct{}

func (failingWriter) Format() string      { return "xlsx" }
func (failingWriter) ContentType() string { return "application/octet-stream" }
func (failingWriter) Extension() string   { return ".xlsx" }
func (failingWriter) Write(w io.Writer, _ []types.Row) error {
	_, _ = io.WriteString(w, "partial")
	return &tabular.WriteError{Format: "xlsx", Err: errDiskFull}
}

func newArtifact(t *testing.T, content string) *source.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), source.ArtifactPrefix+"test.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return &source.Artifact{Path: path, Size: int64(len(content))}
}

func assertReleased(t *testing.T, a *source.Artifact) {
	t.Helper()
	_, err := os.Stat(a.Path)
	assert.True(t, os.IsNotExist(err), "artifact must be removed")
}

func xlsxWriter(t *testing.T) tabular.Writer {
	t.Helper()
	w, err := tabular.New(tabular.FormatXLSX, tabular.Options{})
	require.NoError(t, err)
	return w
}

func TestConvertLocator_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	artifact := newArtifact(t, voucherXML)

	fetcher.EXPECT().Fetch(gomock.Any(), shareLink).Return(artifact, nil)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	conv := New(fetcher, xlsxWriter(t), m, zerolog.Nop())

	var out bytes.Buffer
	result := conv.ConvertLocator(context.Background(), shareLink, &out)

	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, shareLink, result.Source)
	assert.Empty(t, result.OutputFile)
	assert.Equal(t, 1, result.Stats.Vouchers)
	assert.Equal(t, 1, result.Stats.LedgerEntries)
	assert.Equal(t, 3, result.Stats.RowsWritten)
	assert.Equal(t, int64(len(voucherXML)), result.Stats.SourceBytes)
	assertReleased(t, artifact)

	f, err := excelize.OpenReader(&out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, types.Columns, rows[0])
	assert.Equal(t, []string{"1-Apr-23", "Child", "V1", "Inv001", "New Ref", "30-Apr-23", "Sales", "1000", "NA", "Sales"}, rows[2])

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Conversions.WithLabelValues(metrics.OutcomeSuccess, "")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RowsWritten.WithLabelValues("Parent")))
}

func TestConvertLocator_Failures(t *testing.T) {
	tests := []struct {
		name      string
		fetchErr  error
		content   string
		writer    tabular.Writer
		wantStage Stage
		wantIs    error
	}{
		{
			name:      "invalid locator",
			fetchErr:  fmt.Errorf("%w: no file id", source.ErrInvalidLocator),
			wantStage: StageLocate,
			wantIs:    source.ErrInvalidLocator,
		},
		{
			name:      "fetch failure",
			fetchErr:  &source.FetchError{StatusCode: 503},
			wantStage: StageFetch,
		},
		{
			name:      "malformed document",
			content:   "<ENVELOPE><VOUCHER>",
			wantStage: StageParse,
		},
		{
			name:      "empty document",
			content:   "",
			wantStage: StageParse,
			wantIs:    tallyxml.ErrNoRoot,
		},
		{
			name:      "write failure",
			content:   voucherXML,
			writer:    failingWriter{},
			wantStage: StageWrite,
			wantIs:    errDiskFull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			fetcher := mocks.NewMockFetcher(ctrl)

			var artifact *source.Artifact
			if tt.fetchErr != nil {
				fetcher.EXPECT().Fetch(gomock.Any(), shareLink).Return(nil, tt.fetchErr)
			} else {
				artifact = newArtifact(t, tt.content)
				fetcher.EXPECT().Fetch(gomock.Any(), shareLink).Return(artifact, nil)
			}

			writer := tt.writer
			if writer == nil {
				writer = xlsxWriter(t)
			}

			m := metrics.New(prometheus.NewRegistry())
			conv := New(fetcher, writer, m, zerolog.Nop())

			result := conv.ConvertLocator(context.Background(), shareLink, io.Discard)

			assert.False(t, result.Success)
			require.Error(t, result.Error)
			assert.Equal(t, tt.wantStage, StageOf(result.Error))
			assert.True(t, strings.HasPrefix(result.Error.Error(), string(tt.wantStage)+" failed: "))
			if tt.wantIs != nil {
				assert.ErrorIs(t, result.Error, tt.wantIs)
			}
			if artifact != nil {
				assertReleased(t, artifact)
			}

			assert.Equal(t, float64(1), testutil.ToFloat64(m.Conversions.WithLabelValues(metrics.OutcomeFailure, string(tt.wantStage))))
		})
	}
}

func TestConvertLocator_ParseErrorIsTyped(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), shareLink).Return(newArtifact(t, "not xml at all <"), nil)

	conv := New(fetcher, xlsxWriter(t), nil, zerolog.Nop())
	result := conv.ConvertLocator(context.Background(), shareLink, io.Discard)

	var parseErr *tallyxml.ParseError
	assert.True(t, errors.As(result.Error, &parseErr))
}

func TestConvertLocator_NoFetcher(t *testing.T) {
	conv := New(nil, xlsxWriter(t), nil, zerolog.Nop())
	result := conv.ConvertLocator(context.Background(), shareLink, io.Discard)

	assert.Equal(t, StageFetch, StageOf(result.Error))
	assert.ErrorIs(t, result.Error, source.ErrUnavailable)
}

func TestConvertLocatorToFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockFetcher(ctrl)
	artifact := newArtifact(t, voucherXML)
	fetcher.EXPECT().Fetch(gomock.Any(), shareLink).Return(artifact, nil)

	writer, err := tabular.New(tabular.FormatCSV, tabular.Options{})
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "out", "Output.csv")
	conv := New(fetcher, writer, nil, zerolog.Nop())

	result := conv.ConvertLocatorToFile(context.Background(), shareLink, output)
	require.NoError(t, result.Error)
	assert.Equal(t, output, result.OutputFile)
	assertReleased(t, artifact)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Date,Transaction Type,Vch No.,Ref No,Ref Type,Ref Date,Debtor,Ref Amount,Amount,Particulars", lines[0])
	assert.Equal(t, "1-Apr-23,Parent,V1,NA,NA,NA,Acme,NA,1000,Acme", lines[1])
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Input.xml")
	output := filepath.Join(dir, "Output.xlsx")
	require.NoError(t, os.WriteFile(input, []byte(voucherXML), 0644))

	conv := New(nil, xlsxWriter(t), nil, zerolog.Nop())
	result := conv.ConvertFile(context.Background(), input, output)

	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, output, result.OutputFile)
	assert.Equal(t, 3, result.Stats.RowsWritten)
	assert.Equal(t, int64(len(voucherXML)), result.Stats.SourceBytes)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestConvertFile_FailuresLeaveNoOutput(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		writer    tabular.Writer
		wantStage Stage
	}{
		{name: "parse failure", input: "<ENVELOPE>", wantStage: StageParse},
		{name: "second root", input: voucherXML + voucherXML, wantStage: StageParse},
		{name: "write failure", input: voucherXML, writer: failingWriter{}, wantStage: StageWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "Input.xml")
			output := filepath.Join(dir, "Output.xlsx")
			require.NoError(t, os.WriteFile(input, []byte(tt.input), 0644))

			writer := tt.writer
			if writer == nil {
				writer = xlsxWriter(t)
			}

			result := New(nil, writer, nil, zerolog.Nop()).ConvertFile(context.Background(), input, output)

			assert.Equal(t, tt.wantStage, StageOf(result.Error))
			assert.Empty(t, result.OutputFile)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, 1, "only the input may remain")
		})
	}
}

func TestConvertFile_MissingInput(t *testing.T) {
	dir := t.TempDir()
	result := New(nil, xlsxWriter(t), nil, zerolog.Nop()).
		ConvertFile(context.Background(), filepath.Join(dir, "Input.xml"), filepath.Join(dir, "Output.xlsx"))

	assert.Equal(t, StageFetch, StageOf(result.Error))
	assert.ErrorIs(t, result.Error, os.ErrNotExist)
}

func TestConvertFile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	result := New(nil, xlsxWriter(t), nil, zerolog.Nop()).
		ConvertFile(ctx, filepath.Join(dir, "Input.xml"), filepath.Join(dir, "Output.xlsx"))

	assert.ErrorIs(t, result.Error, context.Canceled)
}

func TestStageOf_NonStageError(t *testing.T) {
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
	assert.Equal(t, Stage(""), StageOf(nil))
}
