package ooxml

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDocxBuilder_RoundTrip(t *testing.T) {
	b := NewDocx()
	b.Core = CoreProperties{Title: "Quarterly", Creator: "Alice & Bob", Revision: "3"}
	b.Heading(1, "Summary").Paragraph("a < b").Table([][]string{{"k", "v"}, {"x", "1"}})

	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}

	doc, err := ReadPart(zr, "word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`w:val="Heading1"`, "a &lt; b", "<w:tbl>"} {
		if !strings.Contains(string(doc), want) {
			t.Errorf("document.xml missing %q", want)
		}
	}

	props, err := ReadCoreProperties(zr)
	if err != nil {
		t.Fatal(err)
	}
	if props.Title != "Quarterly" || props.Creator != "Alice & Bob" || props.Revision != "3" {
		t.Fatalf("core props: %+v", props)
	}
}

func TestReadCoreProperties_Missing(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, _ := zw.Create("word/document.xml")
	fw.Write([]byte("<w:document/>"))
	zw.Close()

	zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	props, err := ReadCoreProperties(zr)
	if err != nil {
		t.Fatalf("missing core.xml should not fail: %v", err)
	}
	if props != (CoreProperties{}) {
		t.Fatalf("expected zero props, got %+v", props)
	}

	if _, err := ReadPart(zr, "ppt/presentation.xml"); !errors.Is(err, ErrPartNotFound) {
		t.Fatalf("expected ErrPartNotFound, got %v", err)
	}
}

func TestPartsWithPrefix_NumericOrder(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"ppt/slides/slide10.xml", "ppt/slides/slide2.xml", "ppt/slides/slide1.xml", "ppt/slides/_rels/slide1.xml.rels"} {
		zw.Create(name)
	}
	zw.Close()

	zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	got := PartsWithPrefix(zr, "ppt/slides/slide", ".xml")
	want := []string{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml", "ppt/slides/slide10.xml"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRelsPathAndResolve(t *testing.T) {
	if got := RelsPath("ppt/slides/slide1.xml"); got != "ppt/slides/_rels/slide1.xml.rels" {
		t.Errorf("RelsPath = %q", got)
	}
	if got := RelsPath("ppt/presentation.xml"); got != "ppt/_rels/presentation.xml.rels" {
		t.Errorf("RelsPath = %q", got)
	}
	tests := []struct{ part, target, want string }{
		{"ppt/slides/slide1.xml", "../media/image1.png", "ppt/media/image1.png"},
		{"ppt/presentation.xml", "slides/slide2.xml", "ppt/slides/slide2.xml"},
		{"ppt/slides/slide1.xml", "/ppt/notesSlides/notesSlide1.xml", "ppt/notesSlides/notesSlide1.xml"},
	}
	for _, tt := range tests {
		if got := ResolveTarget(tt.part, tt.target); got != tt.want {
			t.Errorf("ResolveTarget(%q, %q) = %q, want %q", tt.part, tt.target, got, tt.want)
		}
	}
}

func TestReadRels(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("ppt/slides/_rels/slide1.xml.rels")
	w.Write([]byte(`<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="` + RelImage + `" Target="../media/image1.png"/>` +
		`<Relationship Id="rId2" Type="http://x/hyperlink" Target="https://example.com" TargetMode="External"/>` +
		`</Relationships>`))
	zw.Close()
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}

	rels, err := ReadRels(zr, "ppt/slides/slide1.xml")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 2 || rels["rId1"].Type != RelImage || !rels["rId2"].External() {
		t.Fatalf("rels = %+v", rels)
	}

	none, err := ReadRels(zr, "ppt/slides/slide9.xml")
	if err != nil || len(none) != 0 {
		t.Fatalf("missing rels part: %v, %v", none, err)
	}
}
