package docpipe

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ParsePDF returns the selected pages of a PDF with their text, size and,
// when includeTables is set, the column-aligned text blocks detected as
// tables. pages follows ParseRange.
func (p *Pipeline) ParsePDF(ctx context.Context, path string, includeTables bool, pages string) (*PDFResult, error) {
	info, _, err := p.check(path, FormatPDF)
	if err != nil {
		return nil, err
	}
	pctx, err := readPDF(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	indices, err := ParseRange(pages, pctx.PageCount)
	if err != nil {
		return nil, err
	}
	dims, err := pctx.PageDims()
	if err != nil {
		p.logger.Warn("pdf page dimensions unavailable", "path", path, "error", err)
	}

	res := &PDFResult{
		Metadata: PDFMetadata{
			Filename:   filepath.Base(path),
			FileSizeMB: sizeMB(info.Size()),
			Pages:      pctx.PageCount,
			Info:       pdfInfo(pctx),
		},
		Pages: []PDFPage{},
	}
	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines := pageLines(pctx, i+1)
		page := PDFPage{
			PageNumber: i + 1,
			Text:       joinLines(lines),
			Tables:     []Table{},
		}
		if i < len(dims) {
			page.Width, page.Height = dims[i].Width, dims[i].Height
		}
		if includeTables {
			page.Tables = detectTables(lines)
		}
		res.Pages = append(res.Pages, page)
	}
	res.TotalPagesParsed = len(res.Pages)
	return res, nil
}

func readPDF(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}

// pdfInfo returns the non-empty entries of the information dictionary under
// their PDF key names.
func pdfInfo(ctx *model.Context) map[string]string {
	out := map[string]string{}
	for k, v := range map[string]string{
		"Title":        ctx.XRefTable.Title,
		"Author":       ctx.XRefTable.Author,
		"Subject":      ctx.XRefTable.Subject,
		"Keywords":     ctx.XRefTable.Keywords,
		"Creator":      ctx.XRefTable.Creator,
		"Producer":     ctx.XRefTable.Producer,
		"CreationDate": ctx.XRefTable.CreationDate,
		"ModDate":      ctx.XRefTable.ModDate,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func pdfMetadata(path string, md map[string]any) error {
	ctx, err := readPDF(path)
	if err != nil {
		return err
	}
	md["pages"] = ctx.PageCount
	md["author"] = orDefault(ctx.XRefTable.Author, "Unknown")
	md["title"] = ctx.XRefTable.Title
	md["subject"] = ctx.XRefTable.Subject
	md["creator"] = ctx.XRefTable.Creator
	md["producer"] = ctx.XRefTable.Producer
	md["created"] = ctx.XRefTable.CreationDate
	md["modified"] = ctx.XRefTable.ModDate
	return nil
}

func pdfText(ctx context.Context, path string) (string, error) {
	pctx, err := readPDF(path)
	if err != nil {
		return "", err
	}
	var parts []string
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if text := joinLines(pageLines(pctx, pageNr)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// pageLines returns the text lines of a page, each split into the cells
// that were positioned separately on the same baseline.
func pageLines(ctx *model.Context, pageNr int) [][]string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return nil
	}
	return extractLines(data)
}

func joinLines(lines [][]string) string {
	out := make([]string, 0, len(lines))
	for _, cells := range lines {
		out = append(out, strings.Join(cells, " "))
	}
	return strings.Join(out, "\n")
}

// detectTables groups runs of at least two consecutive lines that share a
// cell count of two or more.
func detectTables(lines [][]string) []Table {
	tables := []Table{}
	flush := func(run [][]string) {
		if len(run) >= 2 {
			tables = append(tables, Table{
				TableNumber: len(tables) + 1,
				Rows:        len(run),
				Columns:     len(run[0]),
				Data:        run,
			})
		}
	}
	var run [][]string
	for _, cells := range lines {
		if len(cells) >= 2 && (len(run) == 0 || len(run[0]) == len(cells)) {
			run = append(run, cells)
			continue
		}
		flush(run)
		run = nil
		if len(cells) >= 2 {
			run = [][]string{cells}
		}
	}
	flush(run)
	return tables
}

// pdfToken is one lexical element of a content stream.
type pdfToken struct {
	kind byte // 's' string, 'n' number, 'o' operator, '[' and ']' array bounds, '/' name
	text string
	num  float64
}

// textState tracks the text line matrix origin, enough to tell a new
// baseline from a horizontal move on the current one.
type textState struct {
	x, y, leading float64
	lastX, lastY  float64
	shown         bool

	lines [][]string
	cell  strings.Builder
}

func (s *textState) moveTo(x, y float64) { s.x, s.y = x, y }

func (s *textState) nextLine() { s.moveTo(s.x, s.y-s.leading) }

func (s *textState) endCell() {
	if s.cell.Len() == 0 {
		return
	}
	cell := cleanPDFText(s.cell.String())
	s.cell.Reset()
	if cell == "" {
		return
	}
	if len(s.lines) == 0 {
		s.lines = append(s.lines, nil)
	}
	last := len(s.lines) - 1
	s.lines[last] = append(s.lines[last], cell)
}

func (s *textState) show(text string) {
	switch {
	case !s.shown:
		s.lines = append(s.lines, nil)
	case math.Abs(s.y-s.lastY) > 1:
		s.endCell()
		s.lines = append(s.lines, nil)
	case math.Abs(s.x-s.lastX) > 1:
		s.endCell()
	}
	s.cell.WriteString(text)
	s.shown = true
	s.lastX, s.lastY = s.x, s.y
}

func (s *textState) result() [][]string {
	s.endCell()
	out := s.lines[:0]
	for _, l := range s.lines {
		if len(l) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// extractLines interprets the text operators of a content stream.
func extractLines(data []byte) [][]string {
	st := &textState{}
	var operands []pdfToken
	nums := func(n int) []float64 {
		if len(operands) < n {
			return nil
		}
		out := make([]float64, n)
		for i, t := range operands[len(operands)-n:] {
			out[i] = t.num
		}
		return out
	}
	lastString := func() (string, bool) {
		for i := len(operands) - 1; i >= 0; i-- {
			if operands[i].kind == 's' {
				return operands[i].text, true
			}
		}
		return "", false
	}

	lexPDF(data, func(tok pdfToken) {
		if tok.kind != 'o' {
			operands = append(operands, tok)
			return
		}
		switch tok.text {
		case "BT":
			st.moveTo(0, 0)
		case "Td":
			if v := nums(2); v != nil {
				st.moveTo(st.x+v[0], st.y+v[1])
			}
		case "TD":
			if v := nums(2); v != nil {
				st.leading = -v[1]
				st.moveTo(st.x+v[0], st.y+v[1])
			}
		case "Tm":
			if v := nums(6); v != nil {
				st.moveTo(v[4], v[5])
			}
		case "TL":
			if v := nums(1); v != nil {
				st.leading = v[0]
			}
		case "T*":
			st.nextLine()
		case "Tj":
			if s, ok := lastString(); ok {
				st.show(s)
			}
		case "'", `"`:
			st.nextLine()
			if s, ok := lastString(); ok {
				st.show(s)
			}
		case "TJ":
			var sb strings.Builder
			start := len(operands)
			for i := len(operands) - 1; i >= 0; i-- {
				if operands[i].kind == '[' {
					start = i + 1
					break
				}
			}
			for _, t := range operands[start:] {
				switch {
				case t.kind == 's':
					sb.WriteString(t.text)
				case t.kind == 'n' && t.num < -200:
					sb.WriteByte(' ')
				}
			}
			st.show(sb.String())
		}
		operands = operands[:0]
	})
	return st.result()
}

// lexPDF splits a content stream into tokens. Dictionaries and inline image
// data are not interpreted; their bytes surface as harmless operators.
func lexPDF(data []byte, emit func(pdfToken)) {
	isDelim := func(c byte) bool {
		return strings.IndexByte("()<>[]{}/%", c) >= 0
	}
	isSpace := func(c byte) bool {
		return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
	}
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			j, raw := i+1, []byte{}
			for nest := 1; j < len(data); j++ {
				if data[j] == '\\' && j+1 < len(data) {
					raw = append(raw, data[j], data[j+1])
					j++
					continue
				}
				if data[j] == '(' {
					nest++
				} else if data[j] == ')' {
					nest--
					if nest == 0 {
						break
					}
				}
				raw = append(raw, data[j])
			}
			emit(pdfToken{kind: 's', text: pdfBytesToString([]byte(decodePDFString(raw)))})
			i = j + 1
		case c == '<' && i+1 < len(data) && data[i+1] == '<', c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			j := i + 1
			for j < len(data) && data[j] != '>' {
				j++
			}
			emit(pdfToken{kind: 's', text: decodeHexString(data[i+1 : min(j, len(data))])})
			i = j + 1
		case c == '[' || c == ']':
			emit(pdfToken{kind: c})
			i++
		case c == '/':
			j := i + 1
			for j < len(data) && !isSpace(data[j]) && !isDelim(data[j]) {
				j++
			}
			emit(pdfToken{kind: '/', text: string(data[i+1 : j])})
			i = j
		case c == '{' || c == '}' || c == ')' || c == '>':
			i++
		default:
			j := i
			for j < len(data) && !isSpace(data[j]) && !isDelim(data[j]) {
				j++
			}
			word := string(data[i:j])
			if f, err := strconv.ParseFloat(word, 64); err == nil {
				emit(pdfToken{kind: 'n', num: f})
			} else {
				emit(pdfToken{kind: 'o', text: word})
			}
			i = j
		}
	}
}

func decodeHexString(h []byte) string {
	clean := make([]byte, 0, len(h))
	for _, c := range h {
		if !unicode.IsSpace(rune(c)) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	b, err := hex.DecodeString(string(clean))
	if err != nil {
		return ""
	}
	return pdfBytesToString(b)
}

// pdfBytesToString decodes a text string: UTF-16BE when it carries a byte
// order mark, otherwise one rune per byte.
func pdfBytesToString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, len(b)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '(':
				sb.WriteByte('(')
			case ')':
				sb.WriteByte(')')
			default:
				// Octal escape (e.g. \040 for space).
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
						i++
						val = val*8 + int(raw[i]-'0')
						if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
							i++
							val = val*8 + int(raw[i]-'0')
						}
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(raw[i])
				}
			}
		} else {
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// cleanPDFText normalises whitespace in extracted PDF text.
func cleanPDFText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
