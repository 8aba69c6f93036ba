package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// BatchHandler handles the batch endpoints of an item.
// Batches are never edited; purchases and initial stock are the only ways in.
type BatchHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.CatalogService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// ListByItem lists an item's batches
func (h *BatchHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	batches, err := h.service.ListItemBatches(r.Context(), itemID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// AddInitialStock records stock that did not come through a purchase
func (h *BatchHandler) AddInitialStock(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	var req initialStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.AddInitialStock(r.Context(), itemID, *req.input())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}
