package render

import (
	"errors"
	"testing"
	"time"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{1234.5, "$1,234.50"},
		{0, "$0.00"},
		{1000000, "$1,000,000.00"},
		{"99.999", "$100.00"},
		{"n/a", "n/a"},
		{[]any{1}, "[1]"},
	}
	for _, tt := range tests {
		if got := Currency(tt.in); got != tt.want {
			t.Errorf("Currency(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDate(t *testing.T) {
	ts := time.Date(2025, 1, 5, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		in     any
		layout []string
		want   string
	}{
		{"2025-01-28", nil, "January 28, 2025"},
		{"2025-01-28T10:00:00", nil, "January 28, 2025"},
		{"2025-01-28T10:00:00Z", nil, "January 28, 2025"},
		{ts, nil, "January 05, 2025"},
		{"2025-01-28", []string{"02/01/2006"}, "28/01/2025"},
	}
	for _, tt := range tests {
		got, err := Date(tt.in, tt.layout...)
		if err != nil {
			t.Errorf("Date(%v): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Date(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDate_Invalid(t *testing.T) {
	for _, in := range []any{"2025-13-45", "28/01/2025", "Jan 28, 2025", 20250128.0, nil} {
		_, err := Date(in)
		var de *DateError
		if !errors.As(err, &de) {
			t.Errorf("Date(%#v): expected *DateError, got %v", in, err)
		}
	}

	_, err := Date("2025-13-45")
	var de *DateError
	errors.As(err, &de)
	if de.Value != "2025-13-45" || de.Type != "" {
		t.Fatalf("string failure should carry the literal: %+v", de)
	}
	_, err = Date(42.0)
	errors.As(err, &de)
	if de.Type != "float64" {
		t.Fatalf("type failure should name the type: %+v", de)
	}
}

func TestPipedDate(t *testing.T) {
	// WHAT: text/template hands the piped value in last position.
	fn := Funcs()["date"].(func(...any) (string, error))
	got, err := fn("02/01/2006", "2025-01-15")
	if err != nil || got != "15/01/2025" {
		t.Fatalf("with layout: %q, %v", got, err)
	}
	if got, err := fn("2025-01-15"); err != nil || got != "January 15, 2025" {
		t.Fatalf("default layout: %q, %v", got, err)
	}
	if _, err := fn(2, "2025-01-15"); err == nil {
		t.Fatal("non-string layout accepted")
	}
	if _, err := fn(); err == nil {
		t.Fatal("no arguments accepted")
	}
}

func TestEscapeXML(t *testing.T) {
	if got := escapeXML(`Smith & "Sons" <Ltd>`); got != "Smith &amp; &#34;Sons&#34; &lt;Ltd&gt;" {
		t.Fatalf("escapeXML = %q", got)
	}
	if got := escapeXML(1000000.0); got != "1000000" {
		t.Fatalf("whole float printed as %q", got)
	}
}

func TestJoin(t *testing.T) {
	if got := join(", ", []any{"a", 2.0, "c"}); got != "a, 2, c" {
		t.Fatalf("join = %q", got)
	}
}
