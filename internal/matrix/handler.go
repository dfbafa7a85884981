package matrix

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
)

type ServiceAPI interface {
	GetFullMatrix(ctx context.Context) (*permission.Matrix, error)
	GetRolePermissions(ctx context.Context, roleID int64) (*RoleResponse, error)
	ApplyBatch(ctx context.Context, actor Actor, roleID int64, updates []Update) (int, error)
	CreateRole(ctx context.Context, actor Actor, dto CreateRoleDTO) (*permission.Role, error)
	DeleteRole(ctx context.Context, actor Actor, roleID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := h.Service.GetFullMatrix(r.Context())
	if err != nil {
		h.Logger.Error("GetMatrix: failed to build matrix", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) GetRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}
	resp, err := h.Service.GetRolePermissions(r.Context(), roleID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) UpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("UpdateRolePermissions: invalid request body", "error", err)
		h.WriteAppError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	changed, err := h.Service.ApplyBatch(r.Context(), actor, roleID, req.Updates)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, BatchResponse{RoleID: roleID, Changed: changed})
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Warn("CreateRole: invalid request body", "error", err)
		h.WriteAppError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	role, err := h.Service.CreateRole(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteRole(r.Context(), actor, roleID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, errors.NewValidationFieldError("roleID", "role id must be a positive integer", errors.ErrCodeValidationFailed))
		return 0, false
	}
	return id, true
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	profile, ok := errors.ActorFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return Actor{}, false
	}
	return Actor{
		UserID:    profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
