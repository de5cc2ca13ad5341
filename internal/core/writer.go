package core

// writer.go writes one in-memory result set to one output file.
//
// Spreadsheet output is bounded by the format's row ceiling, so it is
// checked up front and cancellation is only observed between phases.
// Delimited output has no ceiling and polls for cancellation every
// CancelCheckInterval rows. A delimited file interrupted by cancellation
// is left on disk as written so far.

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetRowLimit is the maximum number of data rows in an xlsx sheet
// (1,048,576 rows minus the header).
const SpreadsheetRowLimit int64 = 1_048_575

// CancelCheckInterval is how often, in rows, delimited writes poll ctx.
var CancelCheckInterval = 10_000

// spreadsheetColumnWidth is the default column width for xlsx output.
const spreadsheetColumnWidth = 18

// WriteRequest describes a single table write.
type WriteRequest struct {
	Table    string
	Dir      string
	Rows     *TabularResult
	Format   Format
	FileName string
}

// Writer writes tabular results to files.
type Writer struct{}

// NewWriter creates a Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write exports req.Rows and always returns an outcome; failures are
// reported through the outcome's Err field rather than returned.
func (w *Writer) Write(ctx context.Context, req WriteRequest) ExportOutcome {
	start := time.Now()
	logger := loggerFrom(ctx).With("table", req.Table, "format", req.Format, "file", req.FileName)

	if req.Rows == nil {
		req.Rows = &TabularResult{}
	}

	outcome := ExportOutcome{
		TableName: req.Table,
		FileName:  req.FileName,
		Format:    req.Format,
	}
	path := filepath.Join(req.Dir, req.FileName)

	var (
		written int64
		err     error
	)
	switch {
	case req.Format == FormatXLSX:
		written, err = w.writeSpreadsheet(ctx, path, req)
	case req.Format.IsDelimited():
		written, err = w.writeDelimited(ctx, path, req)
	default:
		err = &ExportError{Kind: KindWrite, Table: req.Table, Message: fmt.Sprintf("unsupported format %q", req.Format)}
	}

	outcome.Elapsed = time.Since(start)
	outcome.RecordsExported = written

	if err != nil {
		exportErr := classifyWriteError(req.Table, err)
		outcome.Err = exportErr
		outcome.Message = exportErr.Message
		outcome.Status = StatusFailed
		if exportErr.Kind == KindCancelled {
			outcome.Status = StatusCancelled
			outcome.Message = fmt.Sprintf("Export of %s cancelled after %d rows", req.Table, written)
		}
		if info, statErr := os.Stat(path); statErr == nil {
			outcome.FilePath = path
			outcome.FileSizeBytes = info.Size()
		}
		logger.Error("table export failed",
			"kind", exportErr.Kind,
			"rows_written", written,
			"error", exportErr.Message,
			"duration_ms", outcome.Elapsed.Milliseconds(),
		)
		return outcome
	}

	outcome.Success = true
	outcome.Status = StatusSucceeded
	outcome.FilePath = path
	if info, statErr := os.Stat(path); statErr == nil {
		outcome.FileSizeBytes = info.Size()
	}
	outcome.Message = fmt.Sprintf("Exported %d records to %s", written, req.FileName)

	logger.Info("table exported",
		"rows", written,
		"bytes", outcome.FileSizeBytes,
		"duration_ms", outcome.Elapsed.Milliseconds(),
	)
	return outcome
}

// writeDelimited streams rows through encoding/csv with the format's delimiter.
func (w *Writer) writeDelimited(ctx context.Context, path string, req WriteRequest) (int64, error) {
	if err := ensureDir(req.Dir); err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 64*1024)
	cw := csv.NewWriter(buf)
	cw.Comma = req.Format.Delimiter()

	header := req.Rows.ColumnNames()
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	var written int64
	record := make([]string, len(header))
	for i, row := range req.Rows.Rows {
		if i%CancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				flushDelimited(cw, buf)
				return written, err
			}
		}

		for j := range record {
			if j < len(row) {
				record[j] = FormatCell(req.Rows.Columns[j], row[j])
			} else {
				record[j] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return written, fmt.Errorf("write row %d: %w", i+1, err)
		}
		written++
	}

	if err := flushDelimited(cw, buf); err != nil {
		return written, err
	}
	return written, nil
}

func flushDelimited(cw *csv.Writer, buf *bufio.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush file: %w", err)
	}
	return nil
}

// writeSpreadsheet writes an xlsx workbook with a single sheet.
// The row ceiling is enforced before anything is allocated.
func (w *Writer) writeSpreadsheet(ctx context.Context, path string, req WriteRequest) (int64, error) {
	total := int64(req.Rows.Len())
	if total > SpreadsheetRowLimit {
		return 0, &ExportError{
			Kind:  KindRowLimit,
			Table: req.Table,
			Message: fmt.Sprintf("%s has %d rows, which exceeds the spreadsheet limit of %d rows; use CSV or TXT format instead",
				req.Table, total, SpreadsheetRowLimit),
		}
	}

	// Phase: load
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	wb := excelize.NewFile()
	defer wb.Close()

	sheet := sheetName(req.Table)
	if err := wb.SetSheetName("Sheet1", sheet); err != nil {
		return 0, fmt.Errorf("name sheet: %w", err)
	}

	sw, err := wb.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("open sheet: %w", err)
	}

	// Phase: format header
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	headerStyle, err := wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return 0, fmt.Errorf("header style: %w", err)
	}

	// Phase: format columns
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	header := req.Rows.ColumnNames()
	if len(header) > 0 {
		if err := sw.SetColWidth(1, len(header), spreadsheetColumnWidth); err != nil {
			return 0, fmt.Errorf("column width: %w", err)
		}
	}

	headerCells := make([]any, len(header))
	for i, name := range header {
		headerCells[i] = excelize.Cell{StyleID: headerStyle, Value: name}
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	for i, row := range req.Rows.Rows {
		cells := make([]any, len(header))
		for j := range cells {
			if j < len(row) {
				cells[j] = SpreadsheetCell(req.Rows.Columns[j], row[j])
			} else {
				cells[j] = ""
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return 0, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return 0, fmt.Errorf("flush sheet: %w", err)
	}

	// Phase: save
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := ensureDir(req.Dir); err != nil {
		return 0, err
	}
	if err := wb.SaveAs(path); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}

	return total, nil
}

// classifyWriteError converts any write failure into an *ExportError.
func classifyWriteError(table string, err error) *ExportError {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr
	}
	if isContextErr(err) {
		return newExportError(KindCancelled, table, err)
	}
	return newExportError(KindWrite, table, err)
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// sheetName makes a table name safe for use as a worksheet name.
func sheetName(table string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, table)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet1"
	}
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	return name
}
