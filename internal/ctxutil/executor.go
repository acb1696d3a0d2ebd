// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// ExecutorKey is the context key for the executor identity.
// Exported so it can be used consistently across packages.
type ExecutorKey struct{}

// WithExecutorID returns a context with the executor ID embedded.
func WithExecutorID(ctx context.Context, executorID string) context.Context {
	return context.WithValue(ctx, ExecutorKey{}, executorID)
}

// ExecutorFromContext returns the executor ID from context, or empty string if not set.
func ExecutorFromContext(ctx context.Context) string {
	if v := ctx.Value(ExecutorKey{}); v != nil {
		return v.(string)
	}
	return ""
}
