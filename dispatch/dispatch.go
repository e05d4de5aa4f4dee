// Package dispatch routes named operations to the renderer, the registry,
// the schema store and the format parsers, and turns every outcome into a
// single text block for the calling agent.
//
// Failures never escape Dispatch. Expected ones (missing template, invalid
// range, undefined field...) become diagnostics that name the offending
// input and the expected form. Unexpected ones, panics included, become an
// error message followed by a stack trace.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/hazyhaar/docmcp/audit"
	"github.com/hazyhaar/docmcp/docpipe"
	"github.com/hazyhaar/docmcp/idgen"
	"github.com/hazyhaar/docmcp/kit"
	"github.com/hazyhaar/docmcp/observability"
	"github.com/hazyhaar/docmcp/registry"
	"github.com/hazyhaar/docmcp/render"
	"github.com/hazyhaar/docmcp/schema"
)

// Block is one content block of a reply. Only text blocks are produced.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextBlock returns a text Block.
func TextBlock(s string) Block { return Block{Type: "text", Text: s} }

// Kind classifies a diagnostic reply. The zero Kind is a success.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindWrongFormat     Kind = "wrong_format"
	KindSizeExceeded    Kind = "size_exceeded"
	KindInvalidRange    Kind = "invalid_range"
	KindSheetNotFound   Kind = "sheet_not_found"
	KindInvalidArgument Kind = "invalid_argument"
	KindUndefinedField  Kind = "undefined_field"
	KindInvalidDate     Kind = "invalid_date"
	KindNonSerializable Kind = "non_serializable"
	KindNoSchema        Kind = "no_schema"
	KindInvalidSchema   Kind = "invalid_schema"
	KindUnknown         Kind = "unknown"
)

// Reply is what a handler produces: the text for the caller and, for a
// diagnostic, its kind.
type Reply struct {
	Text string
	Kind Kind
}

// ErrorKind implements kit.Classified.
func (r Reply) ErrorKind() string { return string(r.Kind) }

func ok(text string) (Reply, error) { return Reply{Text: text}, nil }

func diag(kind Kind, format string, args ...any) (Reply, error) {
	return Reply{Text: fmt.Sprintf(format, args...), Kind: kind}, nil
}

// Config wires a Dispatcher. Renderer, Registry, Schemas and Parser are
// required.
type Config struct {
	Renderer *render.Renderer
	Registry *registry.Registry
	Schemas  *schema.Store
	Parser   *docpipe.Pipeline

	// Metrics and Audit are optional.
	Metrics *observability.Metrics
	Audit   audit.Logger

	// Timeout bounds each operation; zero disables it.
	Timeout time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Dispatcher is the operation router. It holds no state of its own beyond
// the registry it shares with the renderer.
type Dispatcher struct {
	renderer *render.Renderer
	registry *registry.Registry
	schemas  *schema.Store
	parser   *docpipe.Pipeline
	now      func() time.Time
	logger   *slog.Logger

	ops       map[string]*operation
	order     []string
	endpoints map[string]kit.Endpoint
	newReqID  func() string
}

// New builds the routing table and wraps every operation in the
// middleware chain: logging, metrics, audit, timeout, panic recovery.
func New(cfg Config) *Dispatcher {
	cfg.defaults()
	d := &Dispatcher{
		renderer:  cfg.Renderer,
		registry:  cfg.Registry,
		schemas:   cfg.Schemas,
		parser:    cfg.Parser,
		now:       cfg.Now,
		logger:    cfg.Logger,
		ops:       map[string]*operation{},
		endpoints: map[string]kit.Endpoint{},
		newReqID:  idgen.Prefixed("req_", idgen.NanoID(12)),
	}
	for _, op := range d.catalog() {
		var auditMW kit.Middleware
		if cfg.Audit != nil {
			auditMW = audit.Middleware(cfg.Audit, op.name)
		}
		chain := kit.Chain(
			kit.Logging(d.logger, op.name),
			cfg.Metrics.Middleware(op.name),
			auditMW,
			kit.Timeout(cfg.Timeout),
			kit.Recover(d.logger),
		)
		d.ops[op.name] = op
		d.order = append(d.order, op.name)
		d.endpoints[op.name] = chain(op.endpoint())
	}
	return d
}

// Names lists the operation names in catalog order.
func (d *Dispatcher) Names() []string {
	return append([]string(nil), d.order...)
}

// Dispatch runs the named operation and always returns exactly one block.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) []Block {
	ep, found := d.endpoints[name]
	if !found {
		d.logger.WarnContext(ctx, "unknown operation", "operation", name)
		return []Block{TextBlock("Unknown operation: " + name)}
	}
	if args == nil {
		args = map[string]any{}
	}
	resp, err := ep(ctx, args)
	if err != nil {
		return []Block{TextBlock(d.failure(ctx, name, args, err))}
	}
	reply, _ := resp.(Reply)
	return []Block{TextBlock(reply.Text)}
}

// failure formats an unexpected error with a stack trace. For a recovered
// panic the trace is the one captured at the panic site.
func (d *Dispatcher) failure(ctx context.Context, name string, args map[string]any, err error) string {
	stack := debug.Stack()
	var pe *kit.PanicError
	if errors.As(err, &pe) {
		stack = pe.Stack
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d.logger.ErrorContext(ctx, "operation error",
		"operation", name,
		"arguments", keys,
		"error", err,
		"stack", string(stack))
	return fmt.Sprintf("Error executing %s: %v\n\nTraceback:\n%s", name, err, stack)
}
