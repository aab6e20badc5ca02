package logging

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	providerKey  contextKey = "provider"
	modelKey     contextKey = "model"
)

// WithRequestID attaches a request id to ctx for later log-field extraction.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithProvider attaches the provider name handling the request.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, provider)
}

// WithModel attaches the requested model name.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, modelKey, model)
}

func extractContextFields(ctx context.Context) []any {
	var fields []any
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		fields = append(fields, "request_id", v)
	}
	if v, ok := ctx.Value(providerKey).(string); ok && v != "" {
		fields = append(fields, "provider", v)
	}
	if v, ok := ctx.Value(modelKey).(string); ok && v != "" {
		fields = append(fields, "model", v)
	}
	return fields
}
