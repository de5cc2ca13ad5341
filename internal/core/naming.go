package core

// naming.go computes deterministic export file names.
//
// Batch modes produce {EX|IM}_{MONYY}_{DD-DD}_{seq}.{ext}, where the period
// segment comes from two YYYYMMDD tokens. Ad-hoc downloads produce
// {table}_{YYYYMMDD_HHMMSS}.{ext}. File names are a compatibility contract
// with downstream consumers and must not change shape.

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// PeriodLayout is the layout of a period token.
const PeriodLayout = "20060102"

// TimestampLayout is used for ad-hoc names and for the period fallback.
const TimestampLayout = "20060102_150405"

// Format is an output file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

// ParseFormat accepts the canonical names plus a few common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "xlsx", "excel", "spreadsheet":
		return FormatXLSX, nil
	case "csv", "comma":
		return FormatCSV, nil
	case "txt", "tsv", "tab":
		return FormatTXT, nil
	}
	return "", &ValidationError{Message: fmt.Sprintf("unknown format: %q (use xlsx, csv, or txt)", s)}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// IsDelimited reports whether the format is a delimited text format.
func (f Format) IsDelimited() bool {
	return f == FormatCSV || f == FormatTXT
}

// Delimiter returns the field separator for delimited formats.
func (f Format) Delimiter() rune {
	if f == FormatTXT {
		return '\t'
	}
	return ','
}

// NamingInput carries everything that determines an output file name.
type NamingInput struct {
	Mode        Mode
	Table       string
	PeriodStart string
	PeriodEnd   string
	Sequence    int
}

// BuildFileName returns the output file name for one table export.
// now is only consulted for ad-hoc names and for the period fallback.
func BuildFileName(in NamingInput, format Format, now time.Time) string {
	ext := format.Extension()

	if in.Mode == ModeAdHoc {
		return fmt.Sprintf("%s_%s.%s", in.Table, now.Format(TimestampLayout), ext)
	}

	prefix := string(in.Mode)
	if prefix == "" {
		prefix = string(ModeExport)
	}

	return fmt.Sprintf("%s_%s_%d.%s", prefix, PeriodSegment(in.PeriodStart, in.PeriodEnd, now), in.Sequence, ext)
}

// PeriodSegment derives "MONYY_DD-DD" from two period tokens.
// If either token is absent or malformed it falls back to a timestamp.
func PeriodSegment(start, end string, now time.Time) string {
	s, okStart := parsePeriodToken(start)
	e, okEnd := parsePeriodToken(end)
	if !okStart || !okEnd {
		return now.Format(TimestampLayout)
	}

	return fmt.Sprintf("%s%s_%s-%s",
		strings.ToUpper(s.Format("Jan")),
		s.Format("06"),
		s.Format("02"),
		e.Format("02"),
	)
}

// SkippedFileName marks a name as belonging to a skipped table.
func SkippedFileName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_skipped"
}

func parsePeriodToken(tok string) (time.Time, bool) {
	tok = strings.TrimSpace(tok)
	if len(tok) != len(PeriodLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(PeriodLayout, tok)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
