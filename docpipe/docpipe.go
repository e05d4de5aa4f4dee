// Package docpipe parses office documents into normalized structures.
//
// Supported formats:
//   - .docx        Word (word/document.xml, styles, core properties)
//   - .pdf         PDF (pdfcpu: page tree, info dictionary, content streams)
//   - .xlsx, .xlsm Excel (excelize: cells, formulas, merged ranges)
//   - .pptx        PowerPoint (slides, tables, pictures, speaker notes)
//
// Every entry point validates the input the same way before opening it:
// the file must exist, carry the expected extension and fit under
// Config.MaxFileSize.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	res, err := pipe.ParseDocx(ctx, "/path/to/file.docx", true)
//	fmt.Println(res.Content.ParagraphCount, "paragraphs")
package docpipe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("docpipe: file not found")
	ErrWrongFormat   = errors.New("docpipe: wrong file format")
	ErrSizeExceeded  = errors.New("docpipe: file size exceeds limit")
	ErrInvalidRange  = errors.New("docpipe: invalid range")
	ErrSheetNotFound = errors.New("docpipe: sheet not found")
)

// SheetError reports a worksheet name absent from the workbook.
type SheetError struct {
	Sheet     string
	Available []string
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("docpipe: sheet %q not found (available: %s)", e.Sheet, strings.Join(e.Available, ", "))
}

func (e *SheetError) Is(target error) bool { return target == ErrSheetNotFound }

// Pipeline is the document parsing engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// MaxFileSizeMB is the input ceiling in megabytes.
func (p *Pipeline) MaxFileSizeMB() float64 {
	return float64(p.cfg.MaxFileSize) / (1024 * 1024)
}

// Detect returns the document format based on file extension.
func (p *Pipeline) Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".docx":
		return FormatDocx, nil
	case ".pdf":
		return FormatPDF, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".pptx":
		return FormatPPTX, nil
	default:
		return "", fmt.Errorf("%w: unsupported extension %q", ErrWrongFormat, ext)
	}
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{".docx", ".pdf", ".xlsx", ".xlsm", ".pptx"}
}

// check runs the shared validation: existence, then extension, then size.
// want == "" accepts any supported format.
func (p *Pipeline) check(path string, want Format) (os.FileInfo, Format, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	format, err := p.Detect(path)
	if err != nil {
		return nil, "", err
	}
	if want != "" && format != want {
		return nil, "", fmt.Errorf("%w: expected %s, got %q", ErrWrongFormat, want, filepath.Ext(path))
	}

	if info.Size() > p.cfg.MaxFileSize {
		return nil, "", fmt.Errorf("%w: %d bytes (max %d)", ErrSizeExceeded, info.Size(), p.cfg.MaxFileSize)
	}
	p.logger.Debug("parsing document", "path", path, "format", format, "size", info.Size())
	return info, format, nil
}

// ParseRange selects 0-based indices from a 1-based selector over n items:
// "all", an inclusive range "a-b", a list "a,b,c" or a single number.
// Indices outside [1, n] are skipped; "3-2" selects nothing.
func ParseRange(sel string, n int) ([]int, error) {
	sel = strings.TrimSpace(sel)
	invalid := fmt.Errorf("%w: %q", ErrInvalidRange, sel)

	var wanted []int
	switch {
	case strings.EqualFold(sel, "all"):
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	case strings.Contains(sel, "-"):
		bounds := strings.Split(sel, "-")
		if len(bounds) != 2 {
			return nil, invalid
		}
		start, err1 := strconv.Atoi(strings.TrimSpace(bounds[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err1 != nil || err2 != nil {
			return nil, invalid
		}
		start, end = max(start, 1), min(end, n)
		for i := start; i <= end; i++ {
			wanted = append(wanted, i)
		}
	case strings.Contains(sel, ","):
		for _, part := range strings.Split(sel, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, invalid
			}
			wanted = append(wanted, v)
		}
	default:
		v, err := strconv.Atoi(sel)
		if err != nil {
			return nil, invalid
		}
		wanted = append(wanted, v)
	}

	out := make([]int, 0, len(wanted))
	for _, v := range wanted {
		if v >= 1 && v <= n {
			out = append(out, v-1)
		}
	}
	return out, nil
}

// ExtractText returns the plain text of a document of any supported format.
func (p *Pipeline) ExtractText(ctx context.Context, path string) (*Text, error) {
	_, format, err := p.check(path, "")
	if err != nil {
		return nil, err
	}
	var text string
	switch format {
	case FormatDocx:
		doc, _, err := readDocx(path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", path, err)
		}
		text = strings.Join(doc.lines, "\n")
	case FormatPDF:
		text, err = pdfText(ctx, path)
	case FormatXLSX:
		text, err = xlsxText(path)
	case FormatPPTX:
		text, err = pptxText(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return &Text{Filename: filepath.Base(path), Format: format, Text: text}, nil
}

// Metadata returns file information plus the format's document properties
// and statistics.
func (p *Pipeline) Metadata(ctx context.Context, path string) (map[string]any, error) {
	info, format, err := p.check(path, "")
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	md := map[string]any{
		"filename":     info.Name(),
		"file_path":    abs,
		"file_size_mb": sizeMB(info.Size()),
		"file_type":    strings.ToLower(filepath.Ext(path)),
	}
	switch format {
	case FormatDocx:
		err = docxMetadata(path, md)
	case FormatPDF:
		err = pdfMetadata(path, md)
	case FormatXLSX:
		err = xlsxMetadata(path, md)
	case FormatPPTX:
		err = pptxMetadata(ctx, path, md)
	}
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	return md, nil
}

func sizeMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*100) / 100
}

// isoTime normalizes a W3CDTF timestamp to "2006-01-02T15:04:05" UTC. An
// empty value yields nil and an unparsable one is returned as is.
func isoTime(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			v := t.UTC().Format("2006-01-02T15:04:05")
			return &v
		}
	}
	return &s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
