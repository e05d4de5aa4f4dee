package kit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// PanicError is a recovered panic. Stack is captured at the recover site.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover converts a panic in a downstream endpoint into a *PanicError.
func Recover(logger *slog.Logger) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					logger.ErrorContext(ctx, "endpoint panic recovered",
						"panic", r,
						"request_id", GetRequestID(ctx),
						"stack", string(stack))
					resp, err = nil, &PanicError{Value: r, Stack: stack}
				}
			}()
			return next(ctx, req)
		}
	}
}

// Logging logs every call of op with its duration and outcome.
func Logging(logger *slog.Logger, op string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"operation", op,
				"transport", GetTransport(ctx),
				"request_id", GetRequestID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
				"outcome", Outcome(resp, err),
			}
			if err != nil {
				logger.ErrorContext(ctx, "operation failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "operation done", attrs...)
			}
			return resp, err
		}
	}
}

// Timeout bounds the context handed to the endpoint. d <= 0 disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Endpoint) Endpoint {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req any) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}
