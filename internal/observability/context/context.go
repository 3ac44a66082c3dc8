package context

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	entityKey    ctxKey = "billing_entity"
	tenantIDKey  ctxKey = "tenant_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithEntity tags the context with the billing entity a webhook arrived on.
func WithEntity(ctx context.Context, entityCode string) context.Context {
	if entityCode == "" {
		return ctx
	}
	return context.WithValue(ctx, entityKey, entityCode)
}

func EntityFromContext(ctx context.Context) string {
	return stringValue(ctx, entityKey)
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

func TenantIDFromContext(ctx context.Context) string {
	return stringValue(ctx, tenantIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
