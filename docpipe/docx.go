package docpipe

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hazyhaar/docmcp/ooxml"
)

// maxXMLDepth bounds element nesting in parsed XML parts.
const maxXMLDepth = 256

var errTooDeep = fmt.Errorf("docpipe: XML nesting depth exceeds %d", maxXMLDepth)

// docxBody is what one pass over word/document.xml collects.
type docxBody struct {
	paragraphs     []Paragraph // non-empty top-level paragraphs
	bodyParagraphs int         // all top-level paragraphs, empty ones included
	tables         []Table     // top-level tables
	sections       int
	lines          []string // every paragraph's text in document order
}

// ParseDocx returns the core properties, styled paragraphs and, when
// includeTables is set, the top-level tables of a .docx file.
func (p *Pipeline) ParseDocx(ctx context.Context, path string, includeTables bool) (*DocxResult, error) {
	info, _, err := p.check(path, FormatDocx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, core, err := readDocx(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	tables := []Table{}
	if includeTables && body.tables != nil {
		tables = body.tables
	}
	paragraphs := body.paragraphs
	if paragraphs == nil {
		paragraphs = []Paragraph{}
	}
	return &DocxResult{
		Metadata: DocxMetadata{
			Filename:       filepath.Base(path),
			FileSizeMB:     sizeMB(info.Size()),
			Author:         orDefault(core.Creator, "Unknown"),
			Title:          core.Title,
			Subject:        core.Subject,
			Created:        isoTime(core.Created),
			Modified:       isoTime(core.Modified),
			LastModifiedBy: core.LastModifiedBy,
		},
		Content: DocxContent{
			Paragraphs:     paragraphs,
			ParagraphCount: len(paragraphs),
			Tables:         tables,
			TableCount:     len(tables),
		},
	}, nil
}

func docxMetadata(path string, md map[string]any) error {
	body, core, err := readDocx(path)
	if err != nil {
		return err
	}
	md["author"] = orDefault(core.Creator, "Unknown")
	md["title"] = core.Title
	md["subject"] = core.Subject
	md["keywords"] = core.Keywords
	md["created"] = isoTime(core.Created)
	md["modified"] = isoTime(core.Modified)
	md["last_modified_by"] = core.LastModifiedBy
	md["revision"] = core.Revision
	md["category"] = core.Category
	md["comments"] = core.Description
	md["statistics"] = map[string]int{
		"paragraphs": body.bodyParagraphs,
		"tables":     len(body.tables),
		"sections":   body.sections,
	}
	return nil
}

func readDocx(path string) (*docxBody, ooxml.CoreProperties, error) {
	var core ooxml.CoreProperties
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, core, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	data, err := ooxml.ReadPart(&r.Reader, "word/document.xml")
	if err != nil {
		return nil, core, err
	}
	styles, defaultStyle := docxStyles(&r.Reader)
	if core, err = ooxml.ReadCoreProperties(&r.Reader); err != nil {
		return nil, core, err
	}
	body, err := parseDocxBody(data, styles, defaultStyle)
	if err != nil {
		return nil, core, err
	}
	return body, core, nil
}

type tableBuilder struct {
	gridCols int
	rows     [][]string
	row      []string
	cell     []string
}

func (tb *tableBuilder) table(number int) Table {
	cols := tb.gridCols
	for _, r := range tb.rows {
		cols = max(cols, len(r))
	}
	data := tb.rows
	if data == nil {
		data = [][]string{}
	}
	return Table{TableNumber: number, Rows: len(data), Columns: cols, Data: data}
}

// parseDocxBody streams the document part. Text boxes and the fallback
// branch of alternate content are skipped so drawn text is not duplicated.
func parseDocxBody(data []byte, styles map[string]string, defaultStyle string) (*docxBody, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	body := &docxBody{}

	var (
		depth, tblDepth, skip int
		inPara, inText        bool
		text                  strings.Builder
		style                 string
		tb                    *tableBuilder
	)
	skipped := func(local string) bool { return local == "txbxContent" || local == "Fallback" }

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, errTooDeep
			}
			if skipped(t.Name.Local) {
				skip++
				continue
			}
			if skip > 0 {
				continue
			}
			switch t.Name.Local {
			case "p":
				if !inPara {
					inPara = true
					text.Reset()
					style = ""
				}
			case "pStyle":
				if inPara {
					style = attr(t, "val")
				}
			case "t":
				inText = inPara
			case "tab":
				if inPara {
					text.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					text.WriteByte('\n')
				}
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					tb = &tableBuilder{}
				}
			case "gridCol":
				if tblDepth == 1 {
					tb.gridCols++
				}
			case "tr":
				if tblDepth == 1 {
					tb.row = []string{}
				}
			case "tc":
				if tblDepth == 1 {
					tb.cell = nil
				}
			case "sectPr":
				body.sections++
			}

		case xml.CharData:
			if inText && skip == 0 {
				text.Write(t)
			}

		case xml.EndElement:
			depth--
			if skipped(t.Name.Local) {
				skip--
				continue
			}
			if skip > 0 {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if !inPara {
					continue
				}
				inPara = false
				s := text.String()
				if strings.TrimSpace(s) != "" {
					body.lines = append(body.lines, s)
				}
				switch tblDepth {
				case 0:
					body.bodyParagraphs++
					if strings.TrimSpace(s) != "" {
						body.paragraphs = append(body.paragraphs, Paragraph{Text: s, Style: styleName(styles, style, defaultStyle)})
					}
				case 1:
					tb.cell = append(tb.cell, s)
				}
			case "tc":
				if tblDepth == 1 {
					tb.row = append(tb.row, strings.Join(tb.cell, "\n"))
				}
			case "tr":
				if tblDepth == 1 {
					tb.rows = append(tb.rows, tb.row)
				}
			case "tbl":
				if tblDepth == 1 {
					body.tables = append(body.tables, tb.table(len(body.tables)+1))
					tb = nil
				}
				if tblDepth > 0 {
					tblDepth--
				}
			}
		}
	}
	return body, nil
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// docxStyles maps paragraph style ids to display names. Word stores some
// built-in names in lower case ("heading 1"); those are title-cased the way
// Word shows them.
func docxStyles(zr *zip.Reader) (map[string]string, string) {
	names := map[string]string{}
	data, err := ooxml.ReadPart(zr, "word/styles.xml")
	if err != nil {
		return names, "Normal"
	}
	var doc struct {
		Styles []struct {
			Type    string `xml:"type,attr"`
			Default string `xml:"default,attr"`
			ID      string `xml:"styleId,attr"`
			Name    struct {
				Val string `xml:"val,attr"`
			} `xml:"name"`
		} `xml:"style"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return names, "Normal"
	}
	title := cases.Title(language.English)
	def := "Normal"
	for _, s := range doc.Styles {
		name := s.Name.Val
		if name == "" {
			name = s.ID
		}
		if name == strings.ToLower(name) {
			name = title.String(name)
		}
		names[s.ID] = name
		if s.Type == "paragraph" && (s.Default == "1" || s.Default == "true") {
			def = name
		}
	}
	return names, def
}

func styleName(styles map[string]string, id, def string) string {
	if id == "" {
		return def
	}
	if name, ok := styles[id]; ok {
		return name
	}
	return id
}
