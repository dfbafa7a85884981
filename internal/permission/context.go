package permission

import "context"

type decisionKey struct{}

// ContextWithDecision stores the decision that admitted a request so
// handlers can apply its filter.
func ContextWithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionKey{}, d)
}

// DecisionFromContext returns false when no authorization middleware ran.
// Callers must then treat the request as denied.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}
