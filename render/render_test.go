package render

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/docmcp/ooxml"
	"github.com/hazyhaar/docmcp/registry"
)

var fixedNow = time.Date(2025, 1, 28, 9, 5, 3, 0, time.UTC)

func invoiceTemplate() *ooxml.DocxBuilder {
	return ooxml.NewDocx().
		Heading(0, "INVOICE").
		Runs("Bill to: {{", ".customer_name}}").
		Paragraph("Date: {{.invoice_date | date}}").
		Table([][]string{
			{"Description", "Amount"},
			{"{{range .items}}", ""},
			{"{{.description}}", "{{.amount | currency}}"},
			{"{{end}}", ""},
		}).
		Paragraph("Total: {{.total | currency}}").
		Paragraph("Issued {{.today | date}}")
}

func setup(t *testing.T, templates map[string]*ooxml.DocxBuilder) (*Renderer, *registry.Registry) {
	t.Helper()
	dir := t.TempDir()
	tmplDir := filepath.Join(dir, "templates")
	if err := os.MkdirAll(tmplDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, b := range templates {
		if err := b.Save(filepath.Join(tmplDir, name+".docx")); err != nil {
			t.Fatal(err)
		}
	}
	reg := registry.New(registry.WithClock(func() time.Time { return fixedNow }))
	r := New(Config{
		TemplateDir: tmplDir,
		OutputDir:   filepath.Join(dir, "output"),
		Now:         func() time.Time { return fixedNow },
	}, reg)
	return r, reg
}

func invoiceData() map[string]any {
	return map[string]any{
		"customer_name": "Smith & Sons",
		"invoice_date":  "2025-01-15",
		"items": []any{
			map[string]any{"description": "Consulting", "amount": 1200.0},
			map[string]any{"description": "Support", "amount": 34.5},
		},
		"total": 1234.5,
	}
}

func documentXML(t *testing.T, path string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer zr.Close()
	data, err := ooxml.ReadPart(&zr.Reader, "word/document.xml")
	if err != nil {
		t.Fatalf("read document.xml: %v", err)
	}
	return string(data)
}

func TestRender_Success(t *testing.T) {
	r, reg := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})

	rec, err := r.Render(context.Background(), "invoice", invoiceData(), "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rec.Filename != "invoice_20250128_090503.docx" {
		t.Errorf("filename = %q", rec.Filename)
	}
	if !filepath.IsAbs(rec.Path) {
		t.Errorf("path not absolute: %s", rec.Path)
	}
	if rec.Size <= 0 || rec.Template != "invoice" || len(rec.ID) != 8 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if got, ok := reg.Get(rec.ID); !ok || got.Path != rec.Path {
		t.Fatalf("record not registered: %+v", got)
	}

	doc := documentXML(t, rec.Path)
	for _, want := range []string{
		"Bill to: Smith &amp; Sons",
		"Date: January 15, 2025",
		"Consulting", "$1,200.00",
		"Support", "$34.50",
		"Total: $1,234.50",
		"Issued January 28, 2025",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(doc, "{{") {
		t.Error("unrendered action left in output")
	}
	if n := strings.Count(doc, "<w:tr>"); n != 3 {
		t.Errorf("table rows = %d, want header + 2 items", n)
	}
}

func TestRender_OutputName(t *testing.T) {
	r, _ := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})

	rec, err := r.Render(context.Background(), "invoice.docx", invoiceData(), "acme_jan")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rec.Filename != "acme_jan.docx" {
		t.Fatalf("filename = %q", rec.Filename)
	}

	_, err = r.Render(context.Background(), "invoice", invoiceData(), "../escape")
	if KindOf(err) != KindTemplate {
		t.Fatalf("traversal in output name: %v", err)
	}
}

func TestRender_DoesNotMutateData(t *testing.T) {
	r, _ := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})
	data := invoiceData()
	if _, err := r.Render(context.Background(), "invoice", data, ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := data["today"]; ok {
		t.Fatal("caller map received injected keys")
	}
}

func TestRender_UndefinedField(t *testing.T) {
	r, reg := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})
	data := invoiceData()
	delete(data, "customer_name")

	_, err := r.Render(context.Background(), "invoice", data, "")
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if re.Kind != KindUndefinedField || re.Field != "customer_name" {
		t.Fatalf("kind=%s field=%q", re.Kind, re.Field)
	}
	if reg.Len() != 0 {
		t.Fatal("failed render registered a record")
	}
	entries, _ := os.ReadDir(r.Config().OutputDir)
	if len(entries) != 0 {
		t.Fatalf("partial output left behind: %v", entries)
	}
}

func TestRender_InvalidDate(t *testing.T) {
	r, _ := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})
	data := invoiceData()
	data["invoice_date"] = "2025-13-45"

	_, err := r.Render(context.Background(), "invoice", data, "")
	var re *Error
	if !errors.As(err, &re) || re.Kind != KindInvalidDate {
		t.Fatalf("expected invalid date, got %v", err)
	}
	if re.Value != "2025-13-45" {
		t.Fatalf("value = %q", re.Value)
	}
}

func TestRender_NonSerializable(t *testing.T) {
	r, _ := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})
	data := invoiceData()
	data["callback"] = func() {}

	_, err := r.Render(context.Background(), "invoice", data, "")
	if KindOf(err) != KindNonSerializable {
		t.Fatalf("expected non-serializable, got %v", err)
	}
}

func TestRender_TemplateNotFound(t *testing.T) {
	r, _ := setup(t, nil)

	_, err := r.Render(context.Background(), "missing", map[string]any{}, "")
	if KindOf(err) != KindTemplateNotFound || !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected template not found, got %v", err)
	}
	_, err = r.Render(context.Background(), "../../etc/passwd", map[string]any{}, "")
	if KindOf(err) != KindTemplateNotFound {
		t.Fatalf("traversal should resolve to not found, got %v", err)
	}
}

func TestRender_SizeExceeded(t *testing.T) {
	r, reg := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})
	r.cfg.MaxFileSize = 100

	_, err := r.Render(context.Background(), "invoice", invoiceData(), "big")
	if KindOf(err) != KindSizeExceeded {
		t.Fatalf("expected size exceeded, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.Config().OutputDir, "big.docx")); !os.IsNotExist(err) {
		t.Fatal("oversized output not removed")
	}
	if reg.Len() != 0 {
		t.Fatal("oversized output registered")
	}
}

func TestRender_CanceledContext(t *testing.T) {
	r, _ := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, "invoice", invoiceData(), ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestScanVariables(t *testing.T) {
	r, _ := setup(t, map[string]*ooxml.DocxBuilder{"invoice": invoiceTemplate()})

	vars, err := r.ScanVariables("invoice")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"customer_name", "invoice_date", "items", "total"}
	if !reflect.DeepEqual(vars, want) {
		t.Fatalf("vars = %v, want %v", vars, want)
	}
}

func TestTemplates(t *testing.T) {
	r, _ := setup(t, map[string]*ooxml.DocxBuilder{
		"report":  ooxml.NewDocx().Paragraph("{{.title}}"),
		"invoice": invoiceTemplate(),
	})
	if err := os.WriteFile(filepath.Join(r.Config().TemplateDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := r.Templates()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "invoice" || list[1].Name != "report" {
		t.Fatalf("templates = %+v", list)
	}

	info, err := r.Template("report.docx")
	if err != nil || info.Name != "report" || info.Size == 0 {
		t.Fatalf("Template: %+v, %v", info, err)
	}
}

func TestTemplates_MissingDir(t *testing.T) {
	r := New(Config{TemplateDir: filepath.Join(t.TempDir(), "nope")}, registry.New())
	list, err := r.Templates()
	if err != nil || list != nil {
		t.Fatalf("got %v, %v", list, err)
	}
}

func TestRender_QuotedArguments(t *testing.T) {
	tmpl := ooxml.NewDocx().Paragraph(`Short: {{.d | date "02/01/2006"}} {{join ", " .tags}}`)
	r, _ := setup(t, map[string]*ooxml.DocxBuilder{"short": tmpl})

	rec, err := r.Render(context.Background(), "short", map[string]any{
		"d":    "2025-01-15",
		"tags": []any{"a", "b"},
	}, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if doc := documentXML(t, rec.Path); !strings.Contains(doc, "Short: 15/01/2025 a, b") {
		t.Fatalf("quoted arguments not honored: %s", doc)
	}
}
