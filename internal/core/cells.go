package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Time layouts by column type. Fractional seconds are trimmed when zero.
const (
	dateLayout        = "2006-01-02"
	timestampLayout   = "2006-01-02 15:04:05.999999999"
	timestamptzLayout = "2006-01-02 15:04:05.999999999-07:00"
)

// FormatCell renders a database value from col for a delimited file.
// Values are written verbatim: numbers keep every digit and no locale
// grouping, and NULL becomes an empty string. The column type picks the
// layout for dates and timestamps, and json columns are written as JSON.
func FormatCell(col Column, v any) string {
	if v == nil {
		return ""
	}
	switch typeName := strings.ToLower(col.TypeName); {
	case typeName == "json" || typeName == "jsonb":
		return formatJSON(v)
	case strings.HasPrefix(typeName, "_"):
		if elems, ok := v.([]any); ok {
			return formatArray(Column{TypeName: typeName[1:]}, elems)
		}
	}
	if t, ok := timeValue(v); ok {
		return formatTime(col.TypeName, t)
	}
	return formatValue(v)
}

// formatValue renders v without column type information.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return formatTime("", val)
	case pgtype.Numeric:
		return formatNumeric(val)
	case pgtype.Text:
		if !val.Valid {
			return ""
		}
		return val.String
	case pgtype.Date:
		if !val.Valid {
			return ""
		}
		return formatTime("date", val.Time)
	case pgtype.Timestamp:
		if !val.Valid {
			return ""
		}
		return formatTime("timestamp", val.Time)
	case pgtype.Timestamptz:
		if !val.Valid {
			return ""
		}
		return formatTime("timestamptz", val.Time)
	case pgtype.Bool:
		if !val.Valid {
			return ""
		}
		return strconv.FormatBool(val.Bool)
	case pgtype.Int8:
		if !val.Valid {
			return ""
		}
		return strconv.FormatInt(val.Int64, 10)
	case pgtype.Int4:
		if !val.Valid {
			return ""
		}
		return strconv.FormatInt(int64(val.Int32), 10)
	case pgtype.Float8:
		if !val.Valid {
			return ""
		}
		return strconv.FormatFloat(val.Float64, 'f', -1, 64)
	case pgtype.UUID:
		if !val.Valid {
			return ""
		}
		b := val.Bytes
		return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case map[string]any:
		return formatJSON(val)
	case []any:
		return formatJSON(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// timeValue unwraps the time types pgx returns for date and timestamp columns.
func timeValue(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case pgtype.Date:
		return val.Time, val.Valid
	case pgtype.Timestamp:
		return val.Time, val.Valid
	case pgtype.Timestamptz:
		return val.Time, val.Valid
	}
	return time.Time{}, false
}

// SpreadsheetCell converts a database value from col into a value for a
// spreadsheet cell. Integers and floats stay numeric. Decimals that survive
// a float64 round trip are written as numbers; wider decimals are written as
// text so no digits are lost. Everything else is written as FormatCell text.
func SpreadsheetCell(col Column, v any) any {
	if t := strings.ToLower(col.TypeName); t == "json" || t == "jsonb" {
		return FormatCell(col, v)
	}
	switch val := v.(type) {
	case nil:
		return ""
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64, bool:
		return val
	case pgtype.Numeric:
		s := formatNumeric(val)
		if s == "" {
			return ""
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || strconv.FormatFloat(f, 'f', -1, 64) != s {
			return s
		}
		return f
	case pgtype.Int8:
		if !val.Valid {
			return ""
		}
		return val.Int64
	case pgtype.Int4:
		if !val.Valid {
			return ""
		}
		return val.Int32
	case pgtype.Float8:
		if !val.Valid {
			return ""
		}
		return val.Float64
	case pgtype.Bool:
		if !val.Valid {
			return ""
		}
		return val.Bool
	default:
		return FormatCell(col, v)
	}
}

// formatTime picks the layout from the column type. Without a type, a value
// at midnight is assumed to be a date.
func formatTime(typeName string, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	switch strings.ToLower(typeName) {
	case "date":
		return t.Format(dateLayout)
	case "timestamp":
		return t.Format(timestampLayout)
	case "timestamptz":
		return t.Format(timestamptzLayout)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(timestampLayout)
}

// formatJSON writes v as compact JSON without HTML escaping. Raw bytes that
// already hold JSON text are written as is.
func formatJSON(v any) string {
	if raw, ok := v.([]byte); ok && json.Valid(raw) {
		return string(raw)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// formatArray writes elems as a PostgreSQL array literal, e.g. {1,2,NULL}.
func formatArray(elem Column, elems []any) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		switch val := e.(type) {
		case nil:
			b.WriteString("NULL")
		case []any:
			b.WriteString(formatArray(elem, val))
		default:
			b.WriteString(quoteArrayElement(FormatCell(elem, val)))
		}
	}
	b.WriteByte('}')
	return b.String()
}

func quoteArrayElement(s string) string {
	if s != "" && !strings.EqualFold(s, "NULL") && !strings.ContainsAny(s, "{},\"\\ \t\n") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

// formatNumeric renders a pgtype.Numeric exactly, without going through float64.
func formatNumeric(n pgtype.Numeric) string {
	if !n.Valid {
		return ""
	}
	if n.NaN {
		return "NaN"
	}
	switch n.InfinityModifier {
	case pgtype.Infinity:
		return "Infinity"
	case pgtype.NegativeInfinity:
		return "-Infinity"
	}
	if n.Int == nil {
		return "0"
	}

	digits := new(big.Int).Abs(n.Int).String()
	neg := n.Int.Sign() < 0

	switch {
	case n.Exp > 0:
		digits += zeros(int(n.Exp))
	case n.Exp < 0:
		scale := int(-n.Exp)
		if len(digits) <= scale {
			digits = zeros(scale-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}

	if neg {
		return "-" + digits
	}
	return digits
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
