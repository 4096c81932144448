package expressions

import (
	"context"

	"github.com/rendis/procdoc/pkg/schema"
)

// Engine evaluates user-supplied expressions.
// Three implementations: CEL (access policies), Expr (KPI formulas), GoJQ (report queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// expressionError wraps a compile or evaluation failure as EXPRESSION_ERROR.
func expressionError(engine, stage, expression string, err error) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeExpression,
		"%s %s error in %q: %s", engine, stage, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"engine": engine, "expression": expression})
}

func emptyExpression(engine string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeValidation, "empty %s expression", engine).WithField("expression")
}
