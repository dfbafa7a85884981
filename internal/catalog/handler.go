package catalog

import (
	"context"
	"net/http"

	"github.com/mustafa-ahmed-dev/elryan-data-entry-management-sub001/internal/transport"
)

type ServiceAPI interface {
	GetCatalog(ctx context.Context) (*CatalogResponse, error)
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

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Service.GetCatalog(r.Context())
	if err != nil {
		h.Logger.Error("GetCatalog: failed to load catalog", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}
