package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/docmcp/kit"
)

// Argument types understood by bind.
const (
	typString = "string"
	typBool   = "boolean"
	typObject = "object"
)

type param struct {
	name     string
	typ      string
	desc     string
	required bool
	def      any
}

type operation struct {
	name   string
	desc   string
	params []param
	run    func(ctx context.Context, a args) (Reply, error)
}

// args holds bound arguments: every declared parameter is present, either
// from the caller or from its default. Optional parameters without a
// default are absent.
type args map[string]any

func (a args) str(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a args) boolean(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a args) object(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

func (op *operation) endpoint() kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		raw, _ := req.(map[string]any)
		bound, reply, ok := op.bind(raw)
		if !ok {
			return reply, nil
		}
		return op.run(ctx, bound)
	}
}

// bind applies defaults and coerces caller values to the declared types.
// Undeclared arguments are ignored.
func (op *operation) bind(raw map[string]any) (args, Reply, bool) {
	out := make(args, len(op.params))
	for _, p := range op.params {
		v, present := raw[p.name]
		if !present || v == nil {
			if p.def != nil {
				out[p.name] = p.def
				continue
			}
			if p.required {
				r, _ := diag(KindInvalidArgument, "Error: missing required argument %q for %s", p.name, op.name)
				return nil, r, false
			}
			continue
		}
		cv, err := coerce(p.typ, v)
		if err != nil {
			r, _ := diag(KindInvalidArgument, "Error: invalid argument %q for %s: %v", p.name, op.name, err)
			return nil, r, false
		}
		out[p.name] = cv
	}
	return out, Reply{}, true
}

func coerce(typ string, v any) (any, error) {
	switch typ {
	case typString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(x), nil
		case json.Number:
			return x.String(), nil
		}
		return nil, fmt.Errorf("expected a string, got %s", describe(v))
	case typBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("expected a boolean, got %q", x)
			}
			return b, nil
		}
		return nil, fmt.Errorf("expected a boolean, got %s", describe(v))
	case typObject:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
		return nil, fmt.Errorf("expected an object, got %s", describe(v))
	}
	return v, nil
}

// describe names the JSON type of a decoded value.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}

// inputSchema renders the parameter list as a JSON-Schema object.
func (op *operation) inputSchema() map[string]any {
	props := make(map[string]any, len(op.params))
	var required []string
	for _, p := range op.params {
		prop := map[string]any{"type": p.typ, "description": p.desc}
		if p.def != nil {
			prop["default"] = p.def
		}
		props[p.name] = prop
		if p.required {
			required = append(required, p.name)
		}
	}
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
