package docpipe

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hazyhaar/docmcp/ooxml"
)

const relNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// presentation is the slide order and size read from ppt/presentation.xml.
type presentation struct {
	slides []string
	cx, cy int64
}

// ParsePPTX returns the selected slides of a .pptx file: title, text
// frames, speaker notes and, when requested, tables and pictures. slides
// follows ParseRange.
func (p *Pipeline) ParsePPTX(ctx context.Context, path string, includeTables, includeImages bool, slides string) (*PPTXResult, error) {
	info, _, err := p.check(path, FormatPPTX)
	if err != nil {
		return nil, err
	}
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: open zip: %w", path, err)
	}
	defer r.Close()
	zr := &r.Reader

	pres, err := readPresentation(zr)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	core, err := ooxml.ReadCoreProperties(zr)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	indices, err := ParseRange(slides, len(pres.slides))
	if err != nil {
		return nil, err
	}

	res := &PPTXResult{
		Metadata: PPTXMetadata{
			Filename:    filepath.Base(path),
			FileSizeMB:  sizeMB(info.Size()),
			SlideCount:  len(pres.slides),
			SlideWidth:  pres.cx,
			SlideHeight: pres.cy,
			Author:      orDefault(core.Creator, "Unknown"),
			Title:       core.Title,
			Subject:     core.Subject,
			Created:     isoTime(core.Created),
			Modified:    isoTime(core.Modified),
		},
		Slides: []Slide{},
	}
	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := readSlide(zr, pres.slides[i], includeImages)
		if err != nil {
			return nil, fmt.Errorf("parse %s slide %d: %w", path, i+1, err)
		}
		s.SlideNumber = i + 1
		if !includeTables {
			s.Tables = []Table{}
		}
		res.Slides = append(res.Slides, *s)
	}
	res.TotalSlidesParsed = len(res.Slides)
	return res, nil
}

func readPresentation(zr *zip.Reader) (*presentation, error) {
	const part = "ppt/presentation.xml"
	data, err := ooxml.ReadPart(zr, part)
	if err != nil {
		return nil, err
	}
	var doc struct {
		SldSz struct {
			Cx int64 `xml:"cx,attr"`
			Cy int64 `xml:"cy,attr"`
		} `xml:"sldSz"`
		SldIDs []struct {
			RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sldIdLst>sldId"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", part, err)
	}
	pres := &presentation{cx: doc.SldSz.Cx, cy: doc.SldSz.Cy}

	rels, err := ooxml.ReadRels(zr, part)
	if err != nil {
		return nil, err
	}
	for _, id := range doc.SldIDs {
		rel, ok := rels[id.RID]
		if !ok || rel.External() {
			continue
		}
		pres.slides = append(pres.slides, ooxml.ResolveTarget(part, rel.Target))
	}
	if len(doc.SldIDs) == 0 {
		pres.slides = ooxml.PartsWithPrefix(zr, "ppt/slides/slide", ".xml")
	}
	return pres, nil
}

// shapeText is the text of one shape and its placeholder type, if any.
type shapeText struct {
	ph    string
	paras []string
}

func (s shapeText) text() string { return strings.TrimSpace(strings.Join(s.paras, "\n")) }

type picRef struct {
	name, embed string
}

// spTree is what one pass over a slide or notes part collects.
type spTree struct {
	shapeCount int
	shapes     []shapeText
	tables     []Table
	pics       []picRef
}

var topLevelShapes = map[string]bool{
	"sp": true, "pic": true, "graphicFrame": true, "grpSp": true, "cxnSp": true, "contentPart": true,
}

func parseSpTree(data []byte) (*spTree, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	tree := &spTree{}

	var (
		stack       []string
		cur         *shapeText
		pic         *picRef
		tb          *tableBuilder
		inP, inText bool
		inCell      bool
		text        strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode slide: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			if len(stack) > maxXMLDepth {
				return nil, errTooDeep
			}
			if len(stack) >= 2 && stack[len(stack)-2] == "spTree" && topLevelShapes[t.Name.Local] {
				tree.shapeCount++
			}
			switch t.Name.Local {
			case "sp":
				cur = &shapeText{}
			case "ph":
				if cur != nil {
					cur.ph = orDefault(attr(t, "type"), "obj")
				}
			case "p":
				inP = true
				text.Reset()
			case "t":
				inText = inP
			case "br":
				if inP {
					text.WriteByte('\n')
				}
			case "tbl":
				tb = &tableBuilder{}
			case "gridCol":
				if tb != nil {
					tb.gridCols++
				}
			case "tr":
				if tb != nil {
					tb.row = []string{}
				}
			case "tc":
				if tb != nil {
					tb.cell = nil
					inCell = true
				}
			case "pic":
				pic = &picRef{}
			case "cNvPr":
				if pic != nil && pic.name == "" {
					pic.name = attr(t, "name")
				}
			case "blip":
				if pic != nil {
					pic.embed = attr(t, "embed")
				}
			}

		case xml.CharData:
			if inText {
				text.Write(t)
			}

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if !inP {
					continue
				}
				inP = false
				switch {
				case inCell && tb != nil:
					tb.cell = append(tb.cell, text.String())
				case cur != nil:
					cur.paras = append(cur.paras, text.String())
				}
			case "tc":
				if tb != nil {
					tb.row = append(tb.row, strings.TrimSpace(strings.Join(tb.cell, "\n")))
					inCell = false
				}
			case "tr":
				if tb != nil {
					tb.rows = append(tb.rows, tb.row)
				}
			case "tbl":
				if tb != nil {
					tree.tables = append(tree.tables, tb.table(len(tree.tables)+1))
					tb = nil
				}
			case "sp":
				if cur != nil {
					tree.shapes = append(tree.shapes, *cur)
					cur = nil
				}
			case "pic":
				if pic != nil {
					tree.pics = append(tree.pics, *pic)
					pic = nil
				}
			}
		}
	}
	return tree, nil
}

func readSlide(zr *zip.Reader, part string, includeImages bool) (*Slide, error) {
	data, err := ooxml.ReadPart(zr, part)
	if err != nil {
		return nil, err
	}
	tree, err := parseSpTree(data)
	if err != nil {
		return nil, err
	}
	rels, err := ooxml.ReadRels(zr, part)
	if err != nil {
		return nil, err
	}

	s := &Slide{ShapeCount: tree.shapeCount, Texts: []string{}, Tables: tree.tables}
	if s.Tables == nil {
		s.Tables = []Table{}
	}
	for _, sh := range tree.shapes {
		txt := sh.text()
		if (sh.ph == "title" || sh.ph == "ctrTitle") && s.Title == "" {
			s.Title = txt
			continue
		}
		if txt != "" {
			s.Texts = append(s.Texts, txt)
		}
	}

	if includeImages {
		s.Images = []Image{}
		for _, pr := range tree.pics {
			rel, ok := rels[pr.embed]
			if !ok || rel.External() {
				continue
			}
			target := ooxml.ResolveTarget(part, rel.Target)
			img := Image{
				Name:        pr.name,
				Path:        target,
				ContentType: mime.TypeByExtension(strings.ToLower(path.Ext(target))),
			}
			if f := ooxml.Part(zr, target); f != nil {
				img.Size = int64(f.UncompressedSize64)
			}
			s.Images = append(s.Images, img)
		}
	}

	for _, rel := range rels {
		if rel.Type != ooxml.RelNotesSlide || rel.External() {
			continue
		}
		notes, err := readNotes(zr, ooxml.ResolveTarget(part, rel.Target))
		if err != nil {
			return nil, err
		}
		s.Notes = notes
		break
	}
	return s, nil
}

// readNotes returns the text of the body placeholder of a notes slide.
func readNotes(zr *zip.Reader, part string) (string, error) {
	data, err := ooxml.ReadPart(zr, part)
	if errors.Is(err, ooxml.ErrPartNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	tree, err := parseSpTree(data)
	if err != nil {
		return "", err
	}
	var out []string
	for _, sh := range tree.shapes {
		if sh.ph == "body" {
			if txt := sh.text(); txt != "" {
				out = append(out, txt)
			}
		}
	}
	return strings.Join(out, "\n"), nil
}

func pptxMetadata(ctx context.Context, path string, md map[string]any) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	pres, err := readPresentation(&r.Reader)
	if err != nil {
		return err
	}
	core, err := ooxml.ReadCoreProperties(&r.Reader)
	if err != nil {
		return err
	}
	md["slide_count"] = len(pres.slides)
	md["slide_width"] = pres.cx
	md["slide_height"] = pres.cy
	md["author"] = orDefault(core.Creator, "Unknown")
	md["title"] = core.Title
	md["subject"] = core.Subject
	md["keywords"] = core.Keywords
	md["created"] = isoTime(core.Created)
	md["modified"] = isoTime(core.Modified)
	md["last_modified_by"] = core.LastModifiedBy
	md["revision"] = core.Revision

	tables, images := 0, 0
	for _, part := range pres.slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := readSlide(&r.Reader, part, true)
		if err != nil {
			return err
		}
		tables += len(s.Tables)
		images += len(s.Images)
	}
	md["statistics"] = map[string]int{"slides": len(pres.slides), "tables": tables, "images": images}
	return nil
}

// pptxText renders each slide as a "=== Slide N ===" header followed by its
// title, text frames and table rows.
func pptxText(ctx context.Context, path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	pres, err := readPresentation(&r.Reader)
	if err != nil {
		return "", err
	}
	var parts []string
	for i, part := range pres.slides {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s, err := readSlide(&r.Reader, part, false)
		if err != nil {
			return "", err
		}
		parts = append(parts, "=== Slide "+strconv.Itoa(i+1)+" ===")
		if s.Title != "" {
			parts = append(parts, s.Title)
		}
		parts = append(parts, s.Texts...)
		for _, t := range s.Tables {
			for _, row := range t.Data {
				parts = append(parts, strings.Join(row, "\t"))
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}
