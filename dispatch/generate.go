package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/docmcp/render"
	"github.com/hazyhaar/docmcp/schema"
)

const mb = 1024 * 1024

func (d *Dispatcher) generateDocument(ctx context.Context, a args) (Reply, error) {
	return d.generate(ctx, a.str("template_name"), a.object("context_data"), a.str("output_name"))
}

func (d *Dispatcher) previewTemplate(ctx context.Context, a args) (Reply, error) {
	name := "preview_" + d.now().Format("20060102_150405")
	r, err := d.generate(ctx, a.str("template_name"), a.object("sample_data"), name)
	if err != nil || r.Kind != "" {
		return r, err
	}
	r.Text += "\n\n**Note**: This is a preview document. Delete it with `delete_document` once checked."
	return r, nil
}

// generate renders one document. Declared optional fields the caller left
// out are filled with the zero value of their kind before rendering.
func (d *Dispatcher) generate(ctx context.Context, name string, data map[string]any, output string) (Reply, error) {
	entry, err := d.schemas.Lookup(name)
	if err != nil {
		d.logger.WarnContext(ctx, "schema unavailable", "template", name, "error", err)
		entry = nil
	}
	merged := make(map[string]any, len(data))
	for k, v := range data {
		merged[k] = v
	}
	if entry != nil {
		entry.FillOptional(merged)
	}

	rec, err := d.renderer.Render(ctx, name, merged, output)
	if err != nil {
		return d.renderFailure(name, data, entry, err)
	}
	return ok(fmt.Sprintf(`Document generated successfully!

**File**: %s
**Location**: %s
**Document ID**: %s
**Size**: %.2f MB
**Template**: %s
**Created**: %s

You can access this document using the resource URI: `+"`document://%s`",
		rec.Filename, rec.Path, rec.ID, float64(rec.Size)/mb, rec.Template,
		rec.Created.Format("2006-01-02 15:04:05"), rec.ID))
}

// renderFailure picks exactly one diagnostic for a render error. Errors
// that carry no render kind are unexpected and go back to the caller with
// a trace.
func (d *Dispatcher) renderFailure(name string, data map[string]any, entry *schema.Entry, err error) (Reply, error) {
	var re *render.Error
	if !errors.As(err, &re) {
		return Reply{}, err
	}
	switch re.Kind {
	case render.KindTemplateNotFound:
		return diag(KindNotFound, "Error: Template not found: %s", name)
	case render.KindUndefinedField:
		return missingField(re.Field, entry)
	case render.KindInvalidDate:
		return invalidDate(re.Value)
	case render.KindNonSerializable:
		return diag(KindNonSerializable, `**Template Processing Error**

The template data could not be processed.
This usually follows another problem in the data:
1. A required field is missing
2. A date field has an invalid format
3. An array field has an incorrect structure

**Original error**: %v

**Debug tips**:
1. Run `+"`validate_template`"+` to see all required fields
2. Check that all date fields use ISO format (YYYY-MM-DD)
3. Ensure array fields contain proper object structures`, re.Err)
	case render.KindSizeExceeded:
		return diag(KindSizeExceeded, "Error: Generated file exceeds maximum size (%g MB)", d.renderer.MaxFileSizeMB())
	}
	return diag(KindUnknown, `**Document Generation Error**

**Error**: %v

**Template**: %s

**Provided fields**:
%s

**Debug tips**:
1. Run `+"`validate_template \"%s\"`"+` to see required fields
2. Use `+"`generate_sample_data \"%s\"`"+` to get a working example
3. Check that all date fields use ISO format (YYYY-MM-DD)`, err, name, preview(data), name, name)
}

func missingField(field string, entry *schema.Entry) (Reply, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "**Missing Field Error**\n\n**Missing field**: `%s`\n", field)

	var (
		spec     schema.FieldSpec
		required bool
		found    bool
	)
	if entry != nil {
		spec, required, found = entry.Lookup(field)
	}
	if found {
		partition := "Optional"
		if required {
			partition = "Required"
		}
		desc := spec.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(&b, "**Field type**: %s\n**Description**: %s\n**Data type**: %s\n", partition, desc, spec.Type)
		if spec.Format != "" {
			fmt.Fprintf(&b, "**Format**: %s\n", spec.Format)
		}
		if spec.Example != nil {
			fmt.Fprintf(&b, "\n**Example value**:\n```json\n%q: %s\n```\n", field, jsonText(spec.Example, false))
		}
	} else {
		b.WriteString("\nThis field is required by the template but wasn't found in your data.\n")
	}
	b.WriteString("\n**Tip**: Use `validate_template` to see all required fields.")
	return Reply{Text: b.String(), Kind: KindUndefinedField}, nil
}

func invalidDate(value string) (Reply, error) {
	if value == "" {
		value = "unknown"
	}
	return diag(KindInvalidDate, `**Date Format Error**

**Invalid date value**: `+"`%s`"+`

**Required format**: ISO date format (YYYY-MM-DD)
**Example**: "2025-01-28"

**Common mistakes**:
- Using localized formats like "28/01/2025" or "Jan 28, 2025"
- Using Chinese date format like "2025年1月28日"

Please use the ISO format: YYYY-MM-DD`, value)
}

// preview describes each supplied field by its type and size, never by
// its value.
func preview(data map[string]any) string {
	if len(data) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", k, shape(data[k])))
	}
	return strings.Join(lines, "\n")
}

func shape(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string (%d chars)", len([]rune(x)))
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case []any:
		return fmt.Sprintf("array (%d items)", len(x))
	case map[string]any:
		return fmt.Sprintf("object (%d keys)", len(x))
	}
	return fmt.Sprintf("[%T]", v)
}
