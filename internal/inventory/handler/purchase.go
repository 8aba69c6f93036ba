package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// PurchaseHandler handles purchase endpoints
type PurchaseHandler struct {
	service *service.PurchaseService
	logger  *logger.Logger
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(svc *service.PurchaseService, log *logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		service: svc,
		logger:  log,
	}
}

// Amounts may arrive as JSON numbers or strings; both decode exactly.
type purchaseRequest struct {
	SupplierID   string                `json:"supplierId"`
	PurchaseDate string                `json:"purchaseDate"`
	Items        []purchaseLineRequest `json:"items"`
}

type purchaseLineRequest struct {
	ItemID       string              `json:"itemId"`
	CostPrice    *decimal.Decimal    `json:"costPrice"`
	SellingPrice *decimal.Decimal    `json:"sellingPrice"`
	Batches      []batchEntryRequest `json:"batches"`
}

type batchEntryRequest struct {
	Quantity   *decimal.Decimal `json:"quantity"`
	ExpiryDate *string          `json:"expiryDate"`
}

func amount(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func (r purchaseRequest) toService() service.PurchaseRequest {
	out := service.PurchaseRequest{
		SupplierID:   r.SupplierID,
		PurchaseDate: r.PurchaseDate,
		Items:        make([]service.PurchaseLine, 0, len(r.Items)),
	}
	for _, line := range r.Items {
		l := service.PurchaseLine{
			ItemID:       line.ItemID,
			CostPrice:    amount(line.CostPrice),
			SellingPrice: amount(line.SellingPrice),
			Batches:      make([]service.BatchEntry, 0, len(line.Batches)),
		}
		for _, b := range line.Batches {
			entry := service.BatchEntry{Quantity: amount(b.Quantity)}
			if b.ExpiryDate != nil {
				entry.ExpiryDate = *b.ExpiryDate
			}
			l.Batches = append(l.Batches, entry)
		}
		out.Items = append(out.Items, l)
	}
	return out
}

// List lists purchases, newest first
func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.service.ListPurchases(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, purchases, &httputil.Meta{Total: int64(len(purchases))})
}

// Get gets a purchase with its batches
func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetPurchase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// Submit records a purchase and fans its lines out into batches
func (h *PurchaseHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Submit(r.Context(), req.toService())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Debug().
		Str("purchase_id", result.Purchase.ID).
		Str("user_id", httputil.GetUserID(r.Context())).
		Int("batches", len(result.Batches)).
		Msg("purchase submitted")

	httputil.Created(w, result)
}
