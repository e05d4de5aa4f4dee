// Package kit holds the transport-neutral plumbing shared by the operation
// layer: the Endpoint signature, middleware composition, request-scoped
// context values and the MCP tool adapter.
package kit

import "context"

// Endpoint is one operation: a decoded request in, a response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(next Endpoint) Endpoint

// Chain composes middlewares left-to-right: the first one is the outermost
// wrapper and runs first on the request path.
//
//	wrapped := Chain(Recover(logger), Logging(logger, "op"))(endpoint)
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				next = mws[i](next)
			}
		}
		return next
	}
}

// Classified is implemented by responses that carry a diagnostic instead of
// a result. Middlewares use it to count handled failures that are not Go
// errors.
type Classified interface {
	ErrorKind() string
}

// Outcome names the result of a call for logs, metrics and audit rows:
// "success", the response's ErrorKind, or "error".
func Outcome(resp any, err error) string {
	if err != nil {
		return "error"
	}
	if c, ok := resp.(Classified); ok {
		if k := c.ErrorKind(); k != "" {
			return k
		}
	}
	return "success"
}
