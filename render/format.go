package render

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultDateLayout renders dates as "January 28, 2025".
const DefaultDateLayout = "January 02, 2006"

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var currencyPrinter = message.NewPrinter(language.English)

// Funcs returns the functions available to templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"currency": Currency,
		"date":     pipedDate,
		"xml":      escapeXML,
		"join":     join,
	}
}

// Currency formats v as dollars with thousands grouping and two decimals.
// A value that cannot be read as a number is returned in its string form.
func Currency(v any) string {
	f, ok := toFloat(v)
	if !ok {
		return stringify(v)
	}
	return currencyPrinter.Sprintf("$%.2f", f)
}

// Date formats a time value or an ISO-8601 string. An optional Go layout
// overrides DefaultDateLayout. Anything else yields a *DateError.
func Date(v any, layout ...string) (string, error) {
	l := DefaultDateLayout
	if len(layout) > 0 && layout[0] != "" {
		l = layout[0]
	}
	switch x := v.(type) {
	case time.Time:
		return x.Format(l), nil
	case *time.Time:
		if x != nil {
			return x.Format(l), nil
		}
	case string:
		t, err := parseISO(x)
		if err != nil {
			return "", &DateError{Value: x}
		}
		return t.Format(l), nil
	}
	return "", &DateError{Value: fmt.Sprint(v), Type: fmt.Sprintf("%T", v)}
}

// pipedDate adapts Date to pipeline order: text/template passes the piped
// value last, so {{.d | date "02/01/2006"}} arrives as (layout, value).
func pipedDate(args ...any) (string, error) {
	switch len(args) {
	case 1:
		return Date(args[0])
	case 2:
		layout, ok := args[0].(string)
		if !ok {
			return "", fmt.Errorf("date: layout must be a string, got %T", args[0])
		}
		return Date(args[1], layout)
	}
	return "", fmt.Errorf("date: expected a value and an optional layout, got %d arguments", len(args))
}

func parseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, l := range isoLayouts {
		var t time.Time
		if t, err = time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// stringify prints whole floats without an exponent so JSON numbers such as
// 1000000 do not come out as 1e+06.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(v)
}

func escapeXML(v any) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(stringify(v)))
	return sb.String()
}

func join(sep string, v any) string {
	list, ok := v.([]any)
	if !ok {
		return stringify(v)
	}
	parts := make([]string, len(list))
	for i, item := range list {
		parts[i] = stringify(item)
	}
	return strings.Join(parts, sep)
}
