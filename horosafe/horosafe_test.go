package horosafe

import (
	"errors"
	"strings"
	"testing"
)

func TestSafePath(t *testing.T) {
	tests := []struct {
		base, input string
		wantErr     bool
	}{
		{"/data/templates", "invoice.docx", false},
		{"/data/templates", "../etc/passwd", true},
		{"/data/templates", "abc/../def", true},
		{"/data/templates", "abc/../../outside", true},
		{"/data/templates", "sub/report.docx", false},
	}
	for _, tt := range tests {
		_, err := SafePath(tt.base, tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q, %q) error=%v, wantErr=%v", tt.base, tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateFileName(t *testing.T) {
	valid := []string{"invoice_2025", "Q3 report", "发票-001", "a.b"}
	for _, s := range valid {
		if err := ValidateFileName(s); err != nil {
			t.Errorf("ValidateFileName(%q): unexpected error %v", s, err)
		}
	}
	invalid := []string{"", "   ", "a/b", `a\b`, "..", "x\x00y", "tab\there", strings.Repeat("a", 256)}
	for _, s := range invalid {
		if err := ValidateFileName(s); err == nil {
			t.Errorf("ValidateFileName(%q): expected error", s)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("at limit: got %q, %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: expected ErrTooLarge, got %v", err)
	}
}
