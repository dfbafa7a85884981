package permission

import (
	"net/http"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Checker Checker
}

func NewHandler(baseHandler *transport.BaseHandler, checker Checker) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Checker:     checker,
	}
}

// Check answers whether the caller may perform ?action= on ?resource=,
// optionally with a minimum ?scope=. Only the caller's own role is consulted.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	identity, ok := errors.IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}

	q := r.URL.Query()
	req := Request{
		Identity: identity,
		Resource: q.Get("resource"),
		Action:   q.Get("action"),
	}
	if raw := q.Get("scope"); raw != "" {
		sc, err := scope.Parse(raw)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		req.RequiredScope = &sc
	}

	decision, err := h.Checker.Check(r.Context(), req)
	if err != nil {
		h.Logger.Error("Check: failed", "error", err, "resource", req.Resource, "action", req.Action)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CheckResponse{
		Resource: req.Resource,
		Action:   req.Action,
		Decision: decision,
	})
}
