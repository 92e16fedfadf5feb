package types

import "context"

type contextKey string

const (
	ctxKeyTenantID       contextKey = "tenant_id"
	ctxKeyCustomerID     contextKey = "customer_id"
	ctxKeyCorrelationID  contextKey = "correlation_id"
	ctxKeyIdempotencyKey contextKey = "idempotency_key"
	ctxKeyForceWriter    contextKey = "force_writer"

	// CtxDBTransaction is a context key for a database transaction. Nothing
	// reads or writes it; internal/postgres keeps the active transaction
	// under its own TxKey.
	CtxDBTransaction contextKey = "db_transaction"
)

// WithForceWriter marks ctx with a force-writer flag that ShouldForceWriter
// reports. No repository reads the flag, and internal/postgres uses a
// single connection, so marking ctx does not change where queries go.
func WithForceWriter(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyForceWriter, true)
}

// ShouldForceWriter reports whether ctx was marked with WithForceWriter.
func ShouldForceWriter(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyForceWriter).(bool)
	return v
}

// WithTenantID scopes ctx to the given organization. Every repository call must
// read the tenant back out with TenantID and filter by it.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKeyTenantID, tenantID)
}

// TenantID returns the organization scoping the current request, if any.
func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTenantID).(string)
	return v
}

// WithCustomerID scopes ctx to a customer, used by portal-token sessions.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, ctxKeyCustomerID, customerID)
}

// CustomerID returns the customer scoping the current request, if any.
func CustomerID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyCustomerID).(string)
	return v
}

// WithCorrelationID attaches a tenant-scoped correlation id used on every error.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationID returns the correlation id attached to ctx, if any.
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyCorrelationID).(string)
	return v
}

// WithIdempotencyKey attaches the client-supplied idempotency key to ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKeyIdempotencyKey, key)
}

// IdempotencyKey returns the idempotency key attached to ctx, if any.
func IdempotencyKey(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyIdempotencyKey).(string)
	return v
}
