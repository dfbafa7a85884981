package audit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	errors "github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal"
	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
)

type ServiceAPI interface {
	Query(ctx context.Context, filter Filter) (*Page, error)
	ExportCSV(ctx context.Context, filter Filter) ([]byte, error)
	Verify(ctx context.Context) (*VerifyReport, error)
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

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, appErr := FilterFromRequest(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	page, err := h.Service.Query(r.Context(), filter)
	if err != nil {
		h.Logger.Error("ListAuditLogs: query failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) ExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, appErr := FilterFromRequest(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	data, err := h.Service.ExportCSV(r.Context(), filter)
	if err != nil {
		h.Logger.Error("ExportAuditLogs: export failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("audit-logs-%s.csv", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Error("ExportAuditLogs: failed to write response", "error", err)
	}
}

func (h *Handler) VerifyAuditLogs(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.Verify(r.Context())
	if err != nil {
		h.Logger.Error("VerifyAuditLogs: verification failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	if !report.Valid {
		h.Logger.Warn("audit chain broken", "first_broken_id", *report.FirstBrokenID, "reason", report.Reason)
	}
	h.WriteJSON(w, http.StatusOK, report)
}

// FilterFromRequest reads role_id, action, resource_type, from, to, limit
// and offset. Dates are RFC 3339 timestamps or YYYY-MM-DD days; a day in
// "to" includes the whole day.
func FilterFromRequest(r *http.Request) (Filter, *errors.AppError) {
	q := r.URL.Query()
	var f Filter

	if raw := q.Get("role_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, errors.NewValidationFieldError("role_id", "role_id must be an integer", errors.ErrCodeValidationFailed)
		}
		f.RoleID = &id
	}
	f.ActionKind = Kind(q.Get("action"))
	f.ResourceType = q.Get("resource_type")

	var err error
	if f.From, err = ParseBound(q.Get("from"), false); err != nil {
		return f, errors.NewValidationFieldError("from", "from must be RFC 3339 or YYYY-MM-DD", errors.ErrCodeInvalidDateRange)
	}
	if f.To, err = ParseBound(q.Get("to"), true); err != nil {
		return f, errors.NewValidationFieldError("to", "to must be RFC 3339 or YYYY-MM-DD", errors.ErrCodeInvalidDateRange)
	}

	f.Limit, f.Offset = transport.PageParams(r, DefaultLimit, MaxLimit)
	return f, nil
}

// ParseBound reads an RFC 3339 timestamp or a YYYY-MM-DD day. With endOfDay
// a day means its last microsecond.
func ParseBound(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Microsecond), nil
	}
	return day, nil
}
