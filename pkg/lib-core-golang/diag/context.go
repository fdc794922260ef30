package diag

import "context"

type contextKeys string

const operationIDKey contextKeys = "operationID"

// ContextWithOperationID - create context with operationID
func ContextWithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, operationIDKey, operationID)
}

// OperationIDValue - returns operationID value taken from context
func OperationIDValue(ctx context.Context) string {
	val := ctx.Value(operationIDKey)
	if val == nil {
		return ""
	}
	return val.(string)
}
