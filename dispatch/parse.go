package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/docmcp/docpipe"
)

// textPreview caps the text echoed by extract_text_from_document.
const textPreview = 2000

// parseFailure maps the shared input validation failures to diagnostics.
// Anything else is unexpected and keeps its trace.
func (d *Dispatcher) parseFailure(path string, err error) (Reply, error) {
	var se *docpipe.SheetError
	switch {
	case errors.Is(err, docpipe.ErrNotFound):
		return diag(KindNotFound, "Error: File not found: %s", path)
	case errors.Is(err, docpipe.ErrWrongFormat):
		return diag(KindWrongFormat, "Error: Wrong file format for %s (%v). Supported extensions: %s",
			path, err, strings.Join(docpipe.SupportedFormats(), ", "))
	case errors.Is(err, docpipe.ErrSizeExceeded):
		return diag(KindSizeExceeded, "Error: File too large: %s (maximum %g MB)", path, d.parser.MaxFileSizeMB())
	case errors.Is(err, docpipe.ErrInvalidRange):
		return diag(KindInvalidRange, "Error: Invalid range: %v\nUse \"all\", a range like \"1-5\", a list like \"1,3,5\" or a single number.", err)
	case errors.As(err, &se):
		return diag(KindSheetNotFound, "Error: Sheet '%s' not found.\nAvailable sheets: %s", se.Sheet, strings.Join(se.Available, ", "))
	}
	return Reply{}, err
}

func (d *Dispatcher) parseDocx(ctx context.Context, a args) (Reply, error) {
	path := a.str("file_path")
	res, err := d.parser.ParseDocx(ctx, path, a.boolean("include_tables"))
	if err != nil {
		return d.parseFailure(path, err)
	}
	md := res.Metadata
	title := md.Title
	if title == "" {
		title = "(none)"
	}
	return ok(fmt.Sprintf(`**DOCX document parsed**

**File**:
- Name: %s
- Size: %g MB
- Author: %s
- Title: %s

**Content**:
- Paragraphs: %d
- Tables: %d

**Result (JSON)**:
`+"```json\n%s\n```",
		md.Filename, md.FileSizeMB, md.Author, title,
		res.Content.ParagraphCount, res.Content.TableCount, jsonText(res, true)))
}

func (d *Dispatcher) parsePDF(ctx context.Context, a args) (Reply, error) {
	path := a.str("file_path")
	res, err := d.parser.ParsePDF(ctx, path, a.boolean("include_tables"), a.str("pages"))
	if err != nil {
		return d.parseFailure(path, err)
	}
	var chars, tables int
	for _, p := range res.Pages {
		chars += len([]rune(p.Text))
		tables += len(p.Tables)
	}
	return ok(fmt.Sprintf(`**PDF document parsed**

**File**:
- Name: %s
- Size: %g MB
- Pages: %d
- Parsed: %d pages

**Content**:
- Text length: %d characters
- Tables: %d

**Result (JSON)**:
`+"```json\n%s\n```"+`

Tip: use the pages argument to parse specific pages (e.g. "1-5" or "1,3,5").`,
		res.Metadata.Filename, res.Metadata.FileSizeMB, res.Metadata.Pages, res.TotalPagesParsed,
		chars, tables, jsonText(res, true)))
}

func (d *Dispatcher) parseExcel(ctx context.Context, a args) (Reply, error) {
	path := a.str("file_path")
	res, err := d.parser.ParseXLSX(ctx, path, a.str("sheet_name"), a.boolean("include_formulas"))
	if err != nil {
		return d.parseFailure(path, err)
	}
	names := make([]string, 0, len(res.Sheets))
	var cells, formulas int
	for _, s := range res.Sheets {
		names = append(names, s.Name)
		cells += s.Rows * s.Columns
		formulas += len(s.Formulas)
	}
	return ok(fmt.Sprintf(`**Excel document parsed**

**File**:
- Name: %s
- Size: %g MB
- Sheets: %d
- Parsed: %d sheets

**Content**:
- Sheet names: %s
- Cells: %d
- Formulas: %d

**Result (JSON)**:
`+"```json\n%s\n```"+`

Tip: use the sheet_name argument to parse a single sheet.`,
		res.Metadata.Filename, res.Metadata.FileSizeMB, res.Metadata.SheetsCount, res.TotalSheetsParsed,
		strings.Join(names, ", "), cells, formulas, jsonText(res, true)))
}

func (d *Dispatcher) parsePPT(ctx context.Context, a args) (Reply, error) {
	path := a.str("file_path")
	res, err := d.parser.ParsePPTX(ctx, path, a.boolean("include_tables"), a.boolean("include_images"), a.str("slides"))
	if err != nil {
		return d.parseFailure(path, err)
	}
	var tables, images, notes int
	for _, s := range res.Slides {
		tables += len(s.Tables)
		images += len(s.Images)
		if s.Notes != "" {
			notes++
		}
	}
	return ok(fmt.Sprintf(`**PowerPoint document parsed**

**File**:
- Name: %s
- Size: %g MB
- Slides: %d
- Parsed: %d slides

**Content**:
- Tables: %d
- Images: %d
- Slides with notes: %d

**Result (JSON)**:
`+"```json\n%s\n```"+`

Tip: use the slides argument to parse specific slides (e.g. "1-5" or "1,3,5").`,
		res.Metadata.Filename, res.Metadata.FileSizeMB, res.Metadata.SlideCount, res.TotalSlidesParsed,
		tables, images, notes, jsonText(res, true)))
}

func (d *Dispatcher) extractText(ctx context.Context, a args) (Reply, error) {
	path := a.str("file_path")
	res, err := d.parser.ExtractText(ctx, path)
	if err != nil {
		return d.parseFailure(path, err)
	}
	runes := []rune(res.Text)
	shown := string(runes)
	if len(runes) > textPreview {
		shown = string(runes[:textPreview]) + "..."
	}
	return ok(fmt.Sprintf(`**Text extracted**

**File**: %s

**Statistics**:
- Characters: %d
- Words: %d
- Lines: %d

**Text**:
`+"```\n%s\n```"+`

Tip: for structured output use parse_docx_document, parse_pdf_document, parse_excel_document or parse_ppt_document.`,
		res.Filename, len(runes), len(strings.Fields(res.Text)), strings.Count(res.Text, "\n")+1, shown))
}

func (d *Dispatcher) documentMetadata(ctx context.Context, a args) (Reply, error) {
	path := a.str("file_path")
	md, err := d.parser.Metadata(ctx, path)
	if err != nil {
		return d.parseFailure(path, err)
	}
	return ok(fmt.Sprintf("**Document metadata**\n\n**File**:\n- Name: %v\n- Size: %v MB\n- Type: %v\n\n**Metadata (JSON)**:\n```json\n%s\n```",
		md["filename"], md["file_size_mb"], md["file_type"], jsonText(md, true)))
}
