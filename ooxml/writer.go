package ooxml

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// DocxBuilder assembles a minimal WordprocessingML package: headings,
// paragraphs and tables. It backs the sample-template generator and the
// fixtures of the parser and renderer tests.
type DocxBuilder struct {
	body strings.Builder
	Core CoreProperties
}

// NewDocx returns an empty builder.
func NewDocx() *DocxBuilder {
	return &DocxBuilder{}
}

// Heading appends a paragraph styled HeadingN (level 0 is the Title style).
func (b *DocxBuilder) Heading(level int, text string) *DocxBuilder {
	style := "Title"
	if level > 0 {
		style = fmt.Sprintf("Heading%d", level)
	}
	b.paragraph(style, text)
	return b
}

// Paragraph appends a Normal paragraph with a single run.
func (b *DocxBuilder) Paragraph(text string) *DocxBuilder {
	b.paragraph("", text)
	return b
}

// Runs appends one paragraph whose text is split over several runs, the way
// Word stores text edited in several passes.
func (b *DocxBuilder) Runs(parts ...string) *DocxBuilder {
	b.body.WriteString("<w:p>")
	for _, p := range parts {
		b.run(p)
	}
	b.body.WriteString("</w:p>")
	return b
}

// Table appends a table, first row included as a regular row.
func (b *DocxBuilder) Table(rows [][]string) *DocxBuilder {
	b.body.WriteString("<w:tbl><w:tblPr><w:tblStyle w:val=\"TableGrid\"/></w:tblPr>")
	for _, row := range rows {
		b.body.WriteString("<w:tr>")
		for _, cell := range row {
			b.body.WriteString("<w:tc>")
			b.paragraph("", cell)
			b.body.WriteString("</w:tc>")
		}
		b.body.WriteString("</w:tr>")
	}
	b.body.WriteString("</w:tbl>")
	return b
}

func (b *DocxBuilder) paragraph(style, text string) {
	b.body.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(&b.body, "<w:pPr><w:pStyle w:val=%q/></w:pPr>", style)
	}
	b.run(text)
	b.body.WriteString("</w:p>")
}

func (b *DocxBuilder) run(text string) {
	b.body.WriteString(`<w:r><w:t xml:space="preserve">`)
	_ = xml.EscapeText(&b.body, []byte(text))
	b.body.WriteString("</w:t></w:r>")
}

// DocumentXML returns the word/document.xml payload.
func (b *DocxBuilder) DocumentXML() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="` + wordNS + `"><w:body>` + b.body.String() +
		`<w:sectPr/></w:body></w:document>`
}

// WriteTo writes the package to w.
func (b *DocxBuilder) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", packageRels},
		{"word/document.xml", b.DocumentXML()},
		{"word/_rels/document.xml.rels", documentRels},
		{"word/styles.xml", stylesXML},
		{"docProps/core.xml", b.coreXML()},
	}
	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return cw.n, err
		}
		if _, err := io.WriteString(fw, p.body); err != nil {
			return cw.n, err
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Save writes the package to path.
func (b *DocxBuilder) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := b.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *DocxBuilder) coreXML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	field := func(tag, val string) {
		if val == "" {
			return
		}
		sb.WriteString("<" + tag + ">")
		_ = xml.EscapeText(&sb, []byte(val))
		sb.WriteString("</" + tag + ">")
	}
	field("dc:title", b.Core.Title)
	field("dc:subject", b.Core.Subject)
	field("dc:creator", b.Core.Creator)
	field("cp:keywords", b.Core.Keywords)
	field("dc:description", b.Core.Description)
	field("cp:lastModifiedBy", b.Core.LastModifiedBy)
	field("cp:revision", b.Core.Revision)
	field("cp:category", b.Core.Category)
	if b.Core.Created != "" {
		sb.WriteString(`<dcterms:created xsi:type="dcterms:W3CDTF">` + b.Core.Created + `</dcterms:created>`)
	}
	if b.Core.Modified != "" {
		sb.WriteString(`<dcterms:modified xsi:type="dcterms:W3CDTF">` + b.Core.Modified + `</dcterms:modified>`)
	}
	sb.WriteString(`</cp:coreProperties>`)
	return sb.String()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const packageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

// stylesXML declares the styles the builder references, with Word's
// built-in names.
var stylesXML = func() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:styles xmlns:w="` + wordNS + `">`)
	sb.WriteString(`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>`)
	sb.WriteString(`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/></w:style>`)
	for i := 1; i <= 6; i++ {
		fmt.Fprintf(&sb, `<w:style w:type="paragraph" w:styleId="Heading%d"><w:name w:val="heading %d"/><w:basedOn w:val="Normal"/></w:style>`, i, i)
	}
	sb.WriteString(`<w:style w:type="table" w:styleId="TableGrid"><w:name w:val="Table Grid"/></w:style>`)
	sb.WriteString(`</w:styles>`)
	return sb.String()
}()
