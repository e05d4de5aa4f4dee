package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/docmcp/registry"
	"github.com/hazyhaar/docmcp/render"
	"github.com/hazyhaar/docmcp/schema"
)

func (d *Dispatcher) listTemplates(_ context.Context, _ args) (Reply, error) {
	infos, err := d.renderer.Templates()
	if err != nil {
		return Reply{}, err
	}
	if len(infos) == 0 {
		return ok("No templates found. Please add .docx template files to the templates directory.")
	}
	lines := make([]string, 0, len(infos))
	for _, t := range infos {
		lines = append(lines, fmt.Sprintf("- **%s** (%.1f KB) - Modified: %s",
			t.Name, float64(t.Size)/1024, t.Modified.Format("2006-01-02 15:04")))
	}
	return ok(fmt.Sprintf("**Available Templates** (%d found):\n\n%s\n\nUse these template names with the `generate_document` tool.",
		len(infos), strings.Join(lines, "\n")))
}

// template resolves name or produces the not-found diagnostic.
func (d *Dispatcher) template(name string) (render.TemplateInfo, *Reply, error) {
	info, err := d.renderer.Template(name)
	if render.KindOf(err) == render.KindTemplateNotFound {
		r, _ := diag(KindNotFound, "Error: Template not found: %s", name)
		return info, &r, nil
	}
	return info, nil, err
}

// entry loads the schema entry for name. A malformed metadata file is a
// diagnostic, an absent entry is not.
func (d *Dispatcher) entry(name string) (*schema.Entry, *Reply) {
	e, err := d.schemas.Lookup(name)
	if err != nil {
		r, _ := diag(KindInvalidSchema, "Error: template metadata file %s is invalid: %v", d.schemas.Path(), err)
		return nil, &r
	}
	return e, nil
}

func (d *Dispatcher) validateTemplate(ctx context.Context, a args) (Reply, error) {
	name := a.str("template_name")
	info, nf, err := d.template(name)
	if nf != nil || err != nil {
		return deref(nf), err
	}
	e, bad := d.entry(name)
	if bad != nil {
		return *bad, nil
	}
	if e == nil {
		return d.scanTemplate(ctx, name, info)
	}

	var req strings.Builder
	if len(e.Required) > 0 {
		req.WriteString("### Required Fields:\n")
		for _, f := range e.Required {
			hint := ""
			if f.Format != "" {
				hint = " (" + f.Format + ")"
			}
			fmt.Fprintf(&req, "- **%s** (`%s%s`): %s\n", f.Name, f.Type, hint, f.Description)
			switch ex := f.Example.(type) {
			case nil:
			case []any, map[string]any:
				fmt.Fprintf(&req, "  Example: ```json\n%s\n```\n", jsonText(ex, true))
			default:
				if s := fmt.Sprint(ex); s != "" {
					fmt.Fprintf(&req, "  Example: `%s`\n", s)
				}
			}
		}
	}
	var opt strings.Builder
	if len(e.Optional) > 0 {
		opt.WriteString("\n### Optional Fields:\n")
		for _, f := range e.Optional {
			fmt.Fprintf(&opt, "- **%s** (`%s`): %s\n", f.Name, f.Type, f.Description)
		}
	}
	desc := e.Description
	if desc == "" {
		desc = "No description available"
	}
	return ok(fmt.Sprintf(`**Template Validation Results**:

**Template**: %s.docx
**File Size**: %.1f KB
**Description**: %s

**Field Summary**:
- Required Fields: %d
- Optional Fields: %d
- Total Fields: %d

%s
%s

### Date Format Note:
All date fields must be in ISO format: **YYYY-MM-DD** (e.g., "2025-01-28")

### Quick Start:
Use the `+"`generate_sample_data`"+` tool to get a complete example with all required fields filled.`,
		info.Name, float64(info.Size)/1024, desc,
		len(e.Required), len(e.Optional), len(e.Required)+len(e.Optional),
		req.String(), opt.String()))
}

// scanTemplate is the basic mode used when no schema entry exists.
func (d *Dispatcher) scanTemplate(ctx context.Context, name string, info render.TemplateInfo) (Reply, error) {
	vars, err := d.renderer.ScanVariables(name)
	if err != nil {
		d.logger.WarnContext(ctx, "template scan failed", "template", name, "error", err)
		vars = []string{"(Unable to scan - template may be corrupted)"}
	}
	lines := make([]string, 0, len(vars))
	for _, v := range vars {
		lines = append(lines, "- "+v)
	}
	return ok(fmt.Sprintf(`**Template Validation Results** (Basic Mode):

**Template**: %s.docx
**File Size**: %.1f KB
**Variables Found**: %d

**Template Variables**:
%s

**Note**: Template metadata not found. Showing basic variable scan only.
For detailed field information, check %s`,
		info.Name, float64(info.Size)/1024, len(vars), strings.Join(lines, "\n"), d.schemas.Path()))
}

func (d *Dispatcher) templateSchema(_ context.Context, a args) (Reply, error) {
	name := a.str("template_name")
	if _, nf, err := d.template(name); nf != nil || err != nil {
		return deref(nf), err
	}
	e, bad := d.entry(name)
	if bad != nil {
		return *bad, nil
	}
	key := schema.Key(name)
	if e == nil {
		keys, _ := d.schemas.Keys()
		return diag(KindNoSchema, "No schema available for template: %s\n\nAvailable templates: %s", name, strings.Join(keys, ", "))
	}
	js := e.JSONSchema()
	desc := e.Description
	if desc == "" {
		desc = "No description"
	}
	return ok(fmt.Sprintf("**Template Schema: %s**\n\n**Description**: %s\n**Total Fields**: %d (%d required, %d optional)\n\n**JSON Schema**:\n```json\n%s\n```\n\n**Usage Tip**: Use this schema to validate your data before generating documents.",
		key, desc, len(js.Properties), len(js.Required), len(js.Properties)-len(js.Required), jsonText(js, true)))
}

// sampleData consults the schema before the template directory, so an
// unknown key is always reported as having no schema.
func (d *Dispatcher) sampleData(_ context.Context, a args) (Reply, error) {
	name := a.str("template_name")
	locale := a.str("locale")
	e, bad := d.entry(name)
	if bad != nil {
		return *bad, nil
	}
	if e == nil {
		return diag(KindNoSchema, "No schema available for template: %s", name)
	}
	key := schema.Key(name)
	sample := schema.Sample(key, e, locale, d.now())
	return ok(fmt.Sprintf("**Sample Data for %s** (%s):\n\n```json\n%s\n```\n\n**Usage**:\n1. Copy this JSON data\n2. Modify values as needed\n3. Use with `generate_document` tool:\n   ```\n   generate_document %q <paste-modified-json>\n   ```",
		key, strings.ToUpper(locale), jsonText(sample, true), name))
}

func (d *Dispatcher) deleteDocument(_ context.Context, a args) (Reply, error) {
	id := a.str("document_id")
	rec, err := d.registry.Delete(id)
	if errors.Is(err, registry.ErrNotFound) {
		return diag(KindNotFound, "Error: Document not found: %s", id)
	}
	if err != nil {
		return diag(KindUnknown, "Error deleting document: %v", err)
	}
	return ok("Document deleted successfully: " + rec.Filename)
}

func (d *Dispatcher) listDocuments(_ context.Context, _ args) (Reply, error) {
	recs := d.registry.List()
	if len(recs) == 0 {
		return ok("No documents generated yet. Use the `generate_document` tool to create documents.")
	}
	var total int64
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		total += r.Size
		lines = append(lines, fmt.Sprintf("- **%s** (ID: `%s`)\n  - Template: %s\n  - Size: %.1f KB\n  - Created: %s",
			r.Filename, r.ID, r.Template, float64(r.Size)/1024, r.Created.Format("2006-01-02 15:04:05")))
	}
	return ok(fmt.Sprintf("**Generated Documents** (%d documents, %.2f MB total):\n\n%s\n\nUse document IDs with the `delete_document` tool to remove documents.",
		len(recs), float64(total)/mb, strings.Join(lines, "\n")))
}

func deref(r *Reply) Reply {
	if r == nil {
		return Reply{}
	}
	return *r
}

// jsonText encodes v without HTML escaping so examples and parsed text stay
// readable.
func jsonText(v any, indent bool) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
