package entry

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/permission"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/scope"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, ownerID int64, dto CreateEntryDTO) (*Entry, error)
	Get(ctx context.Context, filter scope.Filter, id int64) (*Entry, error)
	List(ctx context.Context, filter scope.Filter, lf ListFilter) (*ListResponse, error)
	Approve(ctx context.Context, filter scope.Filter, reviewerID, id int64) (*Entry, error)
	Reject(ctx context.Context, filter scope.Filter, reviewerID, id int64) (*Entry, error)
	Delete(ctx context.Context, filter scope.Filter, id int64) error
}

// Handler serves entries. Every route is mounted behind the authorization
// middleware, whose decision supplies the row filter.
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

func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := errors.IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}

	var dto CreateEntryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Warn("CreateEntry: invalid request body", "error", err)
		h.WriteAppError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	e, err := h.Service.Create(r.Context(), identity.UserID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.decision(w, r)
	if !ok {
		return
	}

	limit, offset := transport.PageParams(r, DefaultLimit, MaxLimit)
	resp, err := h.Service.List(r.Context(), decision.Filter, ListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.decision(w, r)
	if !ok {
		return
	}
	id, ok := h.entryID(w, r)
	if !ok {
		return
	}

	e, err := h.Service.Get(r.Context(), decision.Filter, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) ApproveEntry(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Service.Approve)
}

func (h *Handler) RejectEntry(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Service.Reject)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, fn func(context.Context, scope.Filter, int64, int64) (*Entry, error)) {
	identity, ok := errors.IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, errors.ErrInvalidToken)
		return
	}
	decision, ok := h.decision(w, r)
	if !ok {
		return
	}
	id, ok := h.entryID(w, r)
	if !ok {
		return
	}

	e, err := fn(r.Context(), decision.Filter, identity.UserID, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.decision(w, r)
	if !ok {
		return
	}
	id, ok := h.entryID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), decision.Filter, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request) (permission.Decision, bool) {
	d, ok := permission.DecisionFromContext(r.Context())
	if !ok || !d.Allowed {
		h.Logger.Error("entry route reached without an authorization decision", "path", r.URL.Path)
		h.WriteAppError(w, errors.ErrForbidden)
		return permission.Decision{}, false
	}
	return d, true
}

func (h *Handler) entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, errors.NewValidationFieldError("id", "invalid entry id", errors.ErrCodeValidationFailed))
		return 0, false
	}
	return id, true
}
