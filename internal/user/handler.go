package user

import (
	"context"
	"net/http"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type ServiceAPI interface {
	GetMe(ctx context.Context, userID int64) (*MeResponse, error)
	List(ctx context.Context, filter scope.Filter, limit, offset int) (*ListResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := errors.IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}

	resp, err := h.Service.GetMe(r.Context(), identity.UserID)
	if err != nil {
		h.Logger.Error("GetCurrentUser: failed to load profile", "user_id", identity.UserID, "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// ListUsers handles GET /users. The route is guarded by teams:read and the
// listing is narrowed by the scope of that grant.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	decision, ok := permission.DecisionFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrForbidden)
		return
	}

	limit, offset := transport.PageParams(r, defaultListLimit, maxListLimit)
	resp, err := h.Service.List(r.Context(), decision.Filter, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
