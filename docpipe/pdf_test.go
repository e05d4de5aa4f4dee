package docpipe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParsePDF_Simple(t *testing.T) {
	// WHAT: a one-page PDF yields its text and MediaBox size.
	// WHY: pdfcpu reads the page tree, the content stream interpreter does the rest.
	dir := t.TempDir()
	path := filepath.Join(dir, "text.pdf")
	if err := os.WriteFile(path, buildRealTextPDF("Hello World from PDF extraction test"), 0644); err != nil {
		t.Fatal(err)
	}

	pipe := New(Config{})
	res, err := pipe.ParsePDF(context.Background(), path, true, "all")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Metadata.Pages != 1 || res.TotalPagesParsed != 1 {
		t.Fatalf("pages = %d parsed = %d", res.Metadata.Pages, res.TotalPagesParsed)
	}
	page := res.Pages[0]
	if page.PageNumber != 1 || page.Width != 612 || page.Height != 792 {
		t.Errorf("page = %+v", page)
	}
	if !strings.Contains(page.Text, "Hello World") {
		t.Errorf("text = %q", page.Text)
	}
	if page.Tables == nil || len(page.Tables) != 0 {
		t.Errorf("tables = %+v", page.Tables)
	}
}

func TestParsePDF_PageRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.pdf")
	raw := buildPDF(nil,
		"BT /F1 12 Tf 72 720 Td (Page one) Tj ET",
		"BT /F1 12 Tf 72 720 Td (Page two) Tj ET",
		"BT /F1 12 Tf 72 720 Td (Page three) Tj ET",
	)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	pipe := New(Config{})
	ctx := context.Background()

	tests := []struct {
		pages string
		want  []int
	}{
		{"all", []int{1, 2, 3}},
		{"2", []int{2}},
		{"2-3", []int{2, 3}},
		{"2-1", []int{}},
		{"3,1,9", []int{3, 1}},
	}
	for _, tt := range tests {
		res, err := pipe.ParsePDF(ctx, path, false, tt.pages)
		if err != nil {
			t.Fatalf("pages=%q: %v", tt.pages, err)
		}
		got := []int{}
		for _, p := range res.Pages {
			got = append(got, p.PageNumber)
		}
		if !reflect.DeepEqual(got, tt.want) || res.TotalPagesParsed != len(tt.want) {
			t.Errorf("pages=%q: got %v", tt.pages, got)
		}
	}

	res, _ := pipe.ParsePDF(ctx, path, false, "2")
	if res.Pages[0].Text != "Page two" {
		t.Errorf("page 2 text = %q", res.Pages[0].Text)
	}

	if _, err := pipe.ParsePDF(ctx, path, false, "two"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}

	txt, err := pipe.ExtractText(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if txt.Text != "Page one\n\nPage two\n\nPage three" {
		t.Errorf("extracted text = %q", txt.Text)
	}
}

func TestParsePDF_Tables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.pdf")
	stream := "BT /F1 12 Tf 72 740 Td (Invoice) Tj ET\n" +
		"BT 72 700 Td (Item) Tj 200 0 Td (Qty) Tj ET\n" +
		"BT 72 680 Td (Apple) Tj 200 0 Td (3) Tj ET\n" +
		"BT 72 660 Td (Pear) Tj 200 0 Td (5) Tj ET"
	if err := os.WriteFile(path, buildPDF(nil, stream), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := New(Config{}).ParsePDF(context.Background(), path, true, "all")
	if err != nil {
		t.Fatal(err)
	}
	tables := res.Pages[0].Tables
	if len(tables) != 1 {
		t.Fatalf("tables = %+v", tables)
	}
	want := [][]string{{"Item", "Qty"}, {"Apple", "3"}, {"Pear", "5"}}
	if tables[0].Rows != 3 || tables[0].Columns != 2 || !reflect.DeepEqual(tables[0].Data, want) {
		t.Errorf("table = %+v", tables[0])
	}
}

func TestPDF_Metadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info.pdf")
	raw := buildPDF(map[string]string{"Title": "Quarterly", "Author": "Alice", "CreationDate": "D:20250115093000Z"}, "BT 72 720 Td (x) Tj ET")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
	pipe := New(Config{})

	md, err := pipe.Metadata(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if md["pages"] != 1 || md["title"] != "Quarterly" || md["author"] != "Alice" || md["file_type"] != ".pdf" {
		t.Errorf("metadata = %v", md)
	}
	if created, _ := md["created"].(string); !strings.Contains(created, "20250115") {
		t.Errorf("created = %v", md["created"])
	}

	res, err := pipe.ParsePDF(context.Background(), path, false, "all")
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata.Info["Title"] != "Quarterly" || res.Metadata.Info["CreationDate"] == "" {
		t.Errorf("info = %v", res.Metadata.Info)
	}
}

func TestExtractLines(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   [][]string
	}{
		{
			name:   "cells on one baseline",
			stream: "BT /F1 12 Tf 72 700 Td (Name) Tj 200 0 Td (Qty) Tj ET",
			want:   [][]string{{"Name", "Qty"}},
		},
		{
			name:   "TJ kerning and word gaps",
			stream: "BT 72 660 Td [(To) -50 (tal) -300 (due)] TJ ET",
			want:   [][]string{{"Total due"}},
		},
		{
			name:   "leading and T*",
			stream: "BT 14 TL 72 700 Td (first) Tj T* (second) Tj (third) ' ET",
			want:   [][]string{{"first"}, {"second"}, {"third"}},
		},
		{
			name:   "font change keeps the cell",
			stream: "BT /F1 12 Tf 72 700 Td (bold) Tj /F2 12 Tf ( and plain) Tj ET",
			want:   [][]string{{"bold and plain"}},
		},
		{
			name:   "text matrix",
			stream: "BT 1 0 0 1 72 700 Tm (a) Tj 1 0 0 1 72 680 Tm (b) Tj ET",
			want:   [][]string{{"a"}, {"b"}},
		},
		{
			name:   "escapes and nesting",
			stream: `BT 72 700 Td (f\(x\) = g(y)) Tj ET`,
			want:   [][]string{{"f(x) = g(y)"}},
		},
		{
			name:   "hex strings",
			stream: "BT 72 700 Td <48656C6C6F> Tj 72 680 Td <FEFF00480069> Tj ET",
			want:   [][]string{{"Hello"}, {"Hi"}},
		},
		{
			name:   "graphics only",
			stream: "q 100 0 0 100 72 692 cm /Im1 Do Q",
			want:   [][]string{},
		},
	}
	for _, tt := range tests {
		got := extractLines([]byte(tt.stream))
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDetectTables(t *testing.T) {
	lines := [][]string{
		{"Title"},
		{"a", "b"},
		{"c", "d"},
		{"x", "y", "z"},
		{"only one three-cell row"},
		{"p", "q", "r"},
		{"s", "t", "u"},
	}
	tables := detectTables(lines)
	if len(tables) != 2 {
		t.Fatalf("tables = %+v", tables)
	}
	if tables[0].Columns != 2 || tables[0].Rows != 2 || tables[1].Columns != 3 || tables[1].TableNumber != 2 {
		t.Errorf("tables = %+v", tables)
	}
}

// --- PDF test helpers ---

// buildRealTextPDF creates a valid one-page PDF showing text.
func buildRealTextPDF(text string) []byte {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "(", `\(`)
	escaped = strings.ReplaceAll(escaped, ")", `\)`)
	return buildPDF(nil, "BT\n/F1 12 Tf\n72 720 Td\n("+escaped+") Tj\nET")
}

// buildPDF creates a valid PDF with one page per content stream and proper
// xref offsets. info, when set, becomes the document information dictionary.
func buildPDF(info map[string]string, streams ...string) []byte {
	n := len(streams)
	// 1 catalog, 2 pages, 3 font, then a page and a content object per page,
	// then the optional info dictionary.
	total := 3 + 2*n
	infoNr := 0
	if info != nil {
		total++
		infoNr = total
	}
	offsets := make([]int, total+1)

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(pdfItoa(4+2*i) + " 0 R")
	}
	b.WriteString("] /Count " + pdfItoa(n) + " >>\nendobj\n")

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, stream := range streams {
		pageNr, contentNr := 4+2*i, 5+2*i
		offsets[pageNr] = b.Len()
		b.WriteString(pdfItoa(pageNr) + " 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents " +
			pdfItoa(contentNr) + " 0 R /Resources << /Font << /F1 3 0 R /F2 3 0 R >> >> >>\nendobj\n")

		offsets[contentNr] = b.Len()
		b.WriteString(pdfItoa(contentNr) + " 0 obj\n<< /Length " + pdfItoa(len(stream)) + " >>\nstream\n")
		b.WriteString(stream)
		b.WriteString("\nendstream\nendobj\n")
	}

	if infoNr > 0 {
		offsets[infoNr] = b.Len()
		b.WriteString(pdfItoa(infoNr) + " 0 obj\n<<")
		for _, k := range []string{"Title", "Author", "Subject", "Creator", "Producer", "CreationDate"} {
			if v, ok := info[k]; ok {
				b.WriteString(" /" + k + " (" + v + ")")
			}
		}
		b.WriteString(" >>\nendobj\n")
	}

	xrefOffset := b.Len()
	b.WriteString("xref\n0 " + pdfItoa(total+1) + "\n")
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		b.WriteString(pdfPadOffset(offsets[i]))
		b.WriteString(" 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size " + pdfItoa(total+1) + " /Root 1 0 R")
	if infoNr > 0 {
		b.WriteString(" /Info " + pdfItoa(infoNr) + " 0 R")
	}
	b.WriteString(" >>\nstartxref\n")
	b.WriteString(pdfItoa(xrefOffset))
	b.WriteString("\n%%EOF\n")
	return []byte(b.String())
}

func pdfItoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string(rune('0'+n%10)) + s
		n /= 10
	}
	return s
}

func pdfPadOffset(n int) string {
	s := pdfItoa(n)
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}
