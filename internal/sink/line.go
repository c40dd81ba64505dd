package sink

import (
	"fmt"
	"strconv"
	"strings"
)

// Field is one line-protocol field. Order is preserved on the wire.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for Field{key, value}.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// FormatLine renders a point without a timestamp:
//
//	measurement[,tagSet] field1=v1,field2=v2
//
// tagSet is inserted verbatim (it comes from configuration, already in
// "k=v,k2=v2" form). The server assigns the timestamp.
func FormatLine(measurement, tagSet string, fields []Field) string {
	var b strings.Builder

	b.WriteString(escapeMeasurement(measurement))
	if tagSet = strings.TrimSpace(tagSet); tagSet != "" {
		b.WriteByte(',')
		b.WriteString(stripNewlines(tagSet))
	}

	b.WriteByte(' ')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeKey(f.Key))
		b.WriteByte('=')
		b.WriteString(formatValue(f.Value))
	}

	return b.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val) + "i"
	case int64:
		return strconv.FormatInt(val, 10) + "i"
	case bool:
		return strconv.FormatBool(val)
	case string:
		return strconv.Quote(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// escapeKey escapes field keys: commas, equals signs and spaces are
// backslash-escaped and newlines are stripped.
func escapeKey(s string) string {
	s = stripNewlines(s)
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes commas and spaces in measurement names.
func escapeMeasurement(s string) string {
	s = stripNewlines(s)
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}

func stripNewlines(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, "\r", "")
}
