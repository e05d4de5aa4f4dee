package dispatch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docmcp/kit"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	templateScheme = "template://"
	documentScheme = "document://"
)

// RegisterMCP exposes every operation as a tool, templates and documents as
// resources, and the two generation prompts.
func (d *Dispatcher) RegisterMCP(srv *mcp.Server) {
	for _, name := range d.order {
		d.registerTool(srv, d.ops[name])
	}
	d.registerResources(srv)
	for _, p := range prompts {
		srv.AddPrompt(p.prompt(), p.handler)
	}
}

func (d *Dispatcher) registerTool(srv *mcp.Server, op *operation) {
	tool := &mcp.Tool{
		Name:        op.name,
		Description: op.desc,
		InputSchema: op.inputSchema(),
	}
	name := op.name
	endpoint := func(ctx context.Context, req any) (any, error) {
		raw, _ := req.(map[string]any)
		return d.Dispatch(ctx, name, raw)[0].Text, nil
	}
	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		raw, err := kit.DecodeArguments(req)
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: raw, EnrichCtx: d.enrich}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (d *Dispatcher) enrich(ctx context.Context) context.Context {
	ctx = kit.WithTransport(ctx, "mcp")
	if kit.GetRequestID(ctx) == "" {
		ctx = kit.WithRequestID(ctx, d.newReqID())
	}
	return ctx
}

func (d *Dispatcher) registerResources(srv *mcp.Server) {
	read := func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     d.ReadResource(uri),
		}}}, nil
	}
	if infos, err := d.renderer.Templates(); err == nil {
		for _, t := range infos {
			srv.AddResource(&mcp.Resource{
				URI:         templateScheme + t.Name,
				Name:        t.Name,
				MIMEType:    docxMIME,
				Description: "Word template: " + t.Name + ".docx",
			}, read)
		}
	}
	srv.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "template",
		URITemplate: templateScheme + "{name}",
		MIMEType:    docxMIME,
		Description: "Word template by name",
	}, read)
	srv.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "document",
		URITemplate: documentScheme + "{id}",
		MIMEType:    docxMIME,
		Description: "Generated document by id",
	}, read)
}

// ReadResource describes a template:// or document:// URI as JSON. Lookup
// failures are reported inside the JSON, never as errors.
func (d *Dispatcher) ReadResource(uri string) string {
	switch {
	case strings.HasPrefix(uri, templateScheme):
		name := strings.TrimPrefix(uri, templateScheme)
		info, err := d.renderer.Template(name)
		if err != nil {
			return resourceError("Template not found: " + name)
		}
		return jsonText(struct {
			Name     string    `json:"name"`
			Path     string    `json:"path"`
			Size     int64     `json:"size"`
			Modified time.Time `json:"modified"`
		}{info.Name, info.Path, info.Size, info.Modified}, false)

	case strings.HasPrefix(uri, documentScheme):
		id := strings.TrimPrefix(uri, documentScheme)
		rec, found := d.registry.Get(id)
		if !found {
			return resourceError("Document not found: " + id)
		}
		st, err := os.Stat(rec.Path)
		if err != nil {
			return resourceError("Document file not found: " + rec.Filename)
		}
		return jsonText(struct {
			ID       string    `json:"id"`
			Filename string    `json:"filename"`
			Path     string    `json:"path"`
			Size     int64     `json:"size"`
			Created  time.Time `json:"created"`
			Template string    `json:"template"`
		}{rec.ID, rec.Filename, rec.Path, st.Size(), rec.Created, rec.Template}, false)
	}
	return resourceError("Unknown resource URI: " + uri)
}

func resourceError(msg string) string {
	return jsonText(map[string]string{"error": msg}, false)
}

type promptArg struct {
	name, desc, def string
}

type promptDef struct {
	name, desc, result string
	args               []promptArg
	body               string
}

func (p promptDef) prompt() *mcp.Prompt {
	out := &mcp.Prompt{Name: p.name, Description: p.desc}
	for _, a := range p.args {
		out.Arguments = append(out.Arguments, &mcp.PromptArgument{Name: a.name, Description: a.desc, Required: true})
	}
	return out
}

// Text fills the prompt body, using defaults for missing arguments.
func (p promptDef) Text(in map[string]string) string {
	vals := make([]any, len(p.args))
	for i, a := range p.args {
		v := in[a.name]
		if v == "" {
			v = a.def
		}
		vals[i] = v
	}
	return fmt.Sprintf(p.body, vals...)
}

func (p promptDef) handler(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var in map[string]string
	if req.Params != nil {
		in = req.Params.Arguments
	}
	return &mcp.GetPromptResult{
		Description: p.result,
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: p.Text(in)},
		}},
	}, nil
}

var prompts = []promptDef{
	{
		name:   "invoice_generator",
		desc:   "Generate an invoice from customer and product data",
		result: "Invoice generation prompt",
		args: []promptArg{
			{"customer_name", "Name of the customer", "Customer"},
			{"products", "Comma-separated list of products", "Product 1, Product 2"},
		},
		body: `Please generate an invoice for %s with the following products: %s.

Use the generate_document tool with the invoice template and provide appropriate context data including:
- Customer information (name, address, email)
- Invoice details (number, date, due date)
- Product list with quantities and prices
- Calculate totals and tax

Make the data realistic and professional.`,
	},
	{
		name:   "report_generator",
		desc:   "Generate a report with title, content and data",
		result: "Report generation prompt",
		args: []promptArg{
			{"title", "Report title", "Report Title"},
			{"author", "Report author", "Author Name"},
		},
		body: `Please generate a report titled "%s" by %s.

Use the generate_document tool with the report template and provide appropriate context data including:
- Report metadata (title, author, date, version)
- Executive summary
- Main content sections
- Data tables or charts descriptions
- Conclusions and recommendations

Make the content professional and well-structured.`,
	},
}
