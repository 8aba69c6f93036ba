package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// DashboardHandler handles dashboard and live stock endpoints
type DashboardHandler struct {
	service *service.CatalogService
	view    *service.LedgerView
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler.
// view may be nil, in which case stock is computed per request.
func NewDashboardHandler(svc *service.CatalogService, view *service.LedgerView, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		view:    view,
		logger:  log,
	}
}

// GetStats returns dashboard statistics
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// ListStock returns the current stock picture of every item
func (h *DashboardHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	if h.view == nil {
		views, err := h.service.ListItemViews(r.Context())
		if err != nil {
			httputil.Error(w, err)
			return
		}
		views = filterViews(views, r)
		httputil.JSONWithMeta(w, http.StatusOK, views, &httputil.Meta{
			Total: int64(len(views)),
			AsOf:  time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	views := filterViews(h.view.Items(), r)
	httputil.JSONWithMeta(w, http.StatusOK, views, &httputil.Meta{
		Total: int64(len(views)),
		AsOf:  h.view.ComputedAt().UTC().Format(time.RFC3339),
	})
}

// GetStock returns the current stock picture of one item
func (h *DashboardHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.view == nil {
		view, err := h.service.GetItemView(r.Context(), id)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, view)
		return
	}

	view, ok := h.view.Item(id)
	if !ok {
		httputil.Error(w, errors.NotFound("item"))
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}
