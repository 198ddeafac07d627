// Package sources defines the upstream data collaborators of the report
// pipeline and the explicit fallback chain used to combine them.
package sources

import (
	"context"
	"fmt"
	"strings"
)

// Result is either a value or an explicit unavailable signal with a reason
type Result[T any] struct {
	value  T
	ok     bool
	reason string
	source string
}

// Ok wraps an available value
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Unavailable signals that a source could not provide data
func Unavailable[T any](format string, args ...any) Result[T] {
	return Result[T]{reason: fmt.Sprintf(format, args...)}
}

// IsOk reports whether the result carries a value
func (r Result[T]) IsOk() bool {
	return r.ok
}

// Value returns the carried value and whether it is present
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Reason explains why the result is unavailable
func (r Result[T]) Reason() string {
	return r.reason
}

// Source names the provider that produced the result, when known
func (r Result[T]) Source() string {
	return r.source
}

// Attempt is one entry in a fallback chain
type Attempt[T any] struct {
	Name  string
	Fetch func(ctx context.Context) Result[T]
}

// FirstAvailable tries attempts in declared order and returns the first Ok.
// When every attempt is unavailable the reasons are joined.
func FirstAvailable[T any](ctx context.Context, attempts ...Attempt[T]) Result[T] {
	reasons := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			reasons = append(reasons, err.Error())
			break
		}
		res := a.Fetch(ctx)
		if res.ok {
			res.source = a.Name
			return res
		}
		reasons = append(reasons, a.Name+": "+res.reason)
	}
	if len(reasons) == 0 {
		return Unavailable[T]("no sources configured")
	}
	return Result[T]{reason: strings.Join(reasons, "; ")}
}

// Static returns an attempt that always yields v
func Static[T any](name string, v T) Attempt[T] {
	return Attempt[T]{Name: name, Fetch: func(context.Context) Result[T] { return Ok(v) }}
}
