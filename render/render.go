// Package render merges a data context into DOCX templates and writes the
// result to the output directory.
//
// Templates use Go text/template syntax inside the document text:
//
//	{{.customer_name}}            value, XML-escaped
//	{{.invoice_date | date}}      ISO-8601 string or time, "January 02, 2006"
//	{{.total | currency}}         "$1,234.50"
//	{{range .items}}...{{end}}    repeats a paragraph or a table row when the
//	                              control action sits alone in it
//
// Keys are strict: a template referencing a key absent from the context fails
// with KindUndefinedField. The context always carries "now" and "today".
package render

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/docmcp/horosafe"
	"github.com/hazyhaar/docmcp/ooxml"
	"github.com/hazyhaar/docmcp/registry"
)

// Ext is the template and output extension.
const Ext = ".docx"

// Config configures a Renderer.
type Config struct {
	// TemplateDir holds the .docx templates (default: "templates").
	TemplateDir string `json:"template_dir" yaml:"template_dir"`

	// OutputDir receives rendered documents (default: "output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MaxFileSize is the ceiling for a rendered file in bytes (default: 50 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Now is the clock used for "now", "today" and default output names.
	Now func() time.Time `json:"-" yaml:"-"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.TemplateDir == "" {
		c.TemplateDir = "templates"
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer renders templates and records the outputs in a registry.
type Renderer struct {
	cfg    Config
	reg    *registry.Registry
	logger *slog.Logger
}

// New creates a Renderer recording into reg.
func New(cfg Config, reg *registry.Registry) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg, reg: reg, logger: cfg.Logger}
}

// Config returns the effective configuration.
func (r *Renderer) Config() Config { return r.cfg }

// MaxFileSizeMB is the output ceiling in megabytes.
func (r *Renderer) MaxFileSizeMB() float64 {
	return float64(r.cfg.MaxFileSize) / (1024 * 1024)
}

// Resolve finds a template by its literal name, then with Ext appended.
func (r *Renderer) Resolve(name string) (string, error) {
	for _, candidate := range []string{name, name + Ext} {
		p, err := horosafe.SafePath(r.cfg.TemplateDir, candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", &Error{Kind: KindTemplateNotFound, Template: name, Err: fmt.Errorf("%w: %s", ErrTemplateNotFound, name)}
}

// Render merges data into the named template. outputName, when set, becomes
// <outputName>.docx; otherwise <template stem>_<YYYYmmdd_HHMMSS>.docx. The
// data map is not modified.
func (r *Renderer) Render(ctx context.Context, name string, data map[string]any, outputName string) (registry.Record, error) {
	if err := ctx.Err(); err != nil {
		return registry.Record{}, err
	}
	src, err := r.Resolve(name)
	if err != nil {
		return registry.Record{}, err
	}
	if _, err := json.Marshal(data); err != nil {
		return registry.Record{}, &Error{Kind: KindNonSerializable, Template: name, Value: err.Error(), Err: err}
	}

	now := r.cfg.Now()
	filename := outputName + Ext
	if outputName == "" {
		stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		filename = stem + "_" + now.Format("20060102_150405") + Ext
	}
	if err := horosafe.ValidateFileName(filename); err != nil {
		return registry.Record{}, &Error{Kind: KindTemplate, Template: name, Err: fmt.Errorf("output name: %w", err)}
	}
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return registry.Record{}, fmt.Errorf("render: output dir: %w", err)
	}
	dst := filepath.Join(r.cfg.OutputDir, filename)
	if abs, err := filepath.Abs(dst); err == nil {
		dst = abs
	}

	merged := make(map[string]any, len(data)+2)
	for k, v := range data {
		merged[k] = v
	}
	merged["now"] = now
	merged["today"] = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	r.logger.Debug("rendering template", "template", name, "output", dst)
	if err := r.renderPackage(name, src, dst, merged); err != nil {
		return registry.Record{}, err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return registry.Record{}, fmt.Errorf("render: stat output: %w", err)
	}
	if info.Size() > r.cfg.MaxFileSize {
		os.Remove(dst)
		return registry.Record{}, &Error{
			Kind:     KindSizeExceeded,
			Template: name,
			Value:    fmt.Sprintf("%d", info.Size()),
			Err:      fmt.Errorf("%w: %d bytes (max %d)", horosafe.ErrTooLarge, info.Size(), r.cfg.MaxFileSize),
		}
	}

	return r.reg.Add(registry.Record{
		Filename: filename,
		Path:     dst,
		Template: name,
		Size:     info.Size(),
	})
}

// templatedParts are the package parts that carry document text.
var templatedParts = regexp.MustCompile(`^word/(document|header\d*|footer\d*|footnotes|endnotes)\.xml$`)

// renderPackage copies src to dst, executing the text-bearing parts. dst is
// removed on any failure.
func (r *Renderer) renderPackage(name, src, dst string, data map[string]any) (err error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return &Error{Kind: KindTemplate, Template: name, Err: fmt.Errorf("open template: %w", err)}
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("render: create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("render: close %s: %w", dst, cerr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	zw := zip.NewWriter(out)
	for _, f := range zr.File {
		if !templatedParts.MatchString(f.Name) {
			if err = zw.Copy(f); err != nil {
				return fmt.Errorf("render: copy %s: %w", f.Name, err)
			}
			continue
		}
		var body []byte
		if body, err = ooxml.ReadFile(f); err != nil {
			return &Error{Kind: KindTemplate, Template: name, Err: err}
		}
		if body, err = execute(name, f.Name, body, data); err != nil {
			return err
		}
		var w io.Writer
		w, err = zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			return fmt.Errorf("render: write %s: %w", f.Name, err)
		}
		if _, err = w.Write(body); err != nil {
			return fmt.Errorf("render: write %s: %w", f.Name, err)
		}
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("render: finalize: %w", err)
	}
	return nil
}

// TemplateInfo describes a template file.
type TemplateInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Templates lists the .docx files of the template directory by name.
func (r *Renderer) Templates() ([]TemplateInfo, error) {
	entries, err := os.ReadDir(r.cfg.TemplateDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("render: list templates: %w", err)
	}
	var out []TemplateInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, TemplateInfo{
			Name:     strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Path:     filepath.Join(r.cfg.TemplateDir, e.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Template describes one template, resolved like Render does.
func (r *Renderer) Template(name string) (TemplateInfo, error) {
	p, err := r.Resolve(name)
	if err != nil {
		return TemplateInfo{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return TemplateInfo{}, err
	}
	base := filepath.Base(p)
	return TemplateInfo{
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		Path:     p,
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}
