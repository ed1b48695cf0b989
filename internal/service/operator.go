package service

import (
	"context"

	"pid_tuner/internal/models"
)

type operatorCtxKey struct{}

// WithOperator marks ctx as acting on behalf of op. Link actions taken with
// that ctx are attributed to op in the journal.
func WithOperator(ctx context.Context, op models.Operator) context.Context {
	return context.WithValue(ctx, operatorCtxKey{}, op)
}

// OperatorFrom returns the operator set by WithOperator.
func OperatorFrom(ctx context.Context) (models.Operator, bool) {
	op, ok := ctx.Value(operatorCtxKey{}).(models.Operator)
	return op, ok
}

// attribute adds the acting operator, if any, to journal metadata.
func attribute(ctx context.Context, meta map[string]any) map[string]any {
	op, ok := OperatorFrom(ctx)
	if !ok {
		return meta
	}
	if meta == nil {
		meta = make(map[string]any, 2)
	}
	meta["operator_id"] = op.ID
	meta["operator"] = op.Username
	return meta
}

func operatorName(ctx context.Context) string {
	if op, ok := OperatorFrom(ctx); ok {
		return op.Username
	}
	return ""
}
