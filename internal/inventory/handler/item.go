package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// ItemHandler handles item endpoints
type ItemHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.CatalogService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

type initialStockRequest struct {
	Quantity   float64 `json:"quantity" validate:"gt=0"`
	ExpiryDate *string `json:"expiryDate" validate:"omitempty,datetime=2006-01-02"`
}

func (r *initialStockRequest) input() *service.InitialStockInput {
	if r == nil {
		return nil
	}
	return &service.InitialStockInput{Quantity: r.Quantity, ExpiryDate: r.ExpiryDate}
}

type createItemRequest struct {
	TradeName         string               `json:"tradeName" validate:"required"`
	GenericName       *string              `json:"genericName"`
	BrandName         *string              `json:"brandName"`
	Category          *string              `json:"category"`
	CostPrice         decimal.Decimal      `json:"costPrice"`
	SellingPrice      decimal.Decimal      `json:"sellingPrice"`
	MinimumStock      int                  `json:"minimumStock" validate:"gte=0"`
	DiscountPrevented bool                 `json:"discountPrevented"`
	Notes             *string              `json:"notes"`
	InitialStock      *initialStockRequest `json:"initialStock"`
}

type updateItemRequest struct {
	TradeName         *string          `json:"tradeName"`
	GenericName       *string          `json:"genericName"`
	BrandName         *string          `json:"brandName"`
	Category          *string          `json:"category"`
	CostPrice         *decimal.Decimal `json:"costPrice"`
	SellingPrice      *decimal.Decimal `json:"sellingPrice"`
	MinimumStock      *int             `json:"minimumStock" validate:"omitempty,gte=0"`
	DiscountPrevented *bool            `json:"discountPrevented"`
	Notes             *string          `json:"notes"`
}

// List lists every item with its stock, status and classified batches
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListItemViews(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	views = filterViews(views, r)
	httputil.JSONWithMeta(w, http.StatusOK, views, &httputil.Meta{Total: int64(len(views))})
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := h.service.GetItemView(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Create creates a new item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	view, err := h.service.CreateItem(r.Context(), service.ItemInput{
		TradeName:         req.TradeName,
		GenericName:       req.GenericName,
		BrandName:         req.BrandName,
		Category:          req.Category,
		CostPrice:         req.CostPrice,
		SellingPrice:      req.SellingPrice,
		MinimumStock:      req.MinimumStock,
		DiscountPrevented: req.DiscountPrevented,
		Notes:             req.Notes,
		InitialStock:      req.InitialStock.input(),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, view)
}

// Update updates an item
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	view, err := h.service.UpdateItem(r.Context(), id, service.ItemPatch{
		TradeName:         req.TradeName,
		GenericName:       req.GenericName,
		BrandName:         req.BrandName,
		Category:          req.Category,
		CostPrice:         req.CostPrice,
		SellingPrice:      req.SellingPrice,
		MinimumStock:      req.MinimumStock,
		DiscountPrevented: req.DiscountPrevented,
		Notes:             req.Notes,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// filterViews applies the optional status and category query filters
func filterViews(views []*service.ItemView, r *http.Request) []*service.ItemView {
	status := r.URL.Query().Get("status")
	category := r.URL.Query().Get("category")
	if status == "" && category == "" {
		return views
	}

	out := make([]*service.ItemView, 0, len(views))
	for _, v := range views {
		if status != "" && string(v.Status) != status {
			continue
		}
		if category != "" && (v.Category == nil || *v.Category != category) {
			continue
		}
		out = append(out, v)
	}
	return out
}
