package middleware

import (
	"net/http"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
)

// Authorization guards routes with checker decisions. It must run after
// the auth middleware has placed the caller's identity in the context.
type Authorization struct {
	*transport.BaseHandler
	checker permission.Checker
}

func NewAuthorization(baseHandler *transport.BaseHandler, checker permission.Checker) *Authorization {
	return &Authorization{BaseHandler: baseHandler, checker: checker}
}

// Require admits the request only if the caller may perform action on
// resource, with at least minScope when it is non-nil. The admitting
// decision is stored in the request context.
func (a *Authorization) Require(resource, action string, minScope *scope.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := errors.IdentityFromContext(r.Context())
			if !ok {
				a.Logger.Warn("authorization check failed: identity not found in context", "path", r.URL.Path)
				a.WriteAppError(w, errors.ErrInvalidToken)
				return
			}

			decision, err := a.checker.Check(r.Context(), permission.Request{
				Identity:      identity,
				Resource:      resource,
				Action:        action,
				RequiredScope: minScope,
			})
			if err != nil {
				a.Logger.ErrorContext(r.Context(), "authorization check failed", "error", err, "user_id", identity.UserID, "resource", resource, "action", action)
				a.HandleServiceError(w, err)
				return
			}

			if !decision.Allowed {
				a.Logger.WarnContext(r.Context(), "access denied",
					"user_id", identity.UserID,
					"role_id", identity.RoleID,
					"resource", resource,
					"action", action,
					"reason", decision.Reason)
				a.WriteAppError(w, errors.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(permission.ContextWithDecision(r.Context(), decision)))
		})
	}
}
