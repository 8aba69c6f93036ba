package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// Handlers groups the pharmacy ledger handlers
type Handlers struct {
	Items      *ItemHandler
	Batches    *BatchHandler
	Categories *CategoryHandler
	Suppliers  *SupplierHandler
	Purchases  *PurchaseHandler
	Dashboard  *DashboardHandler
}

// NewHandlers creates every handler. view may be nil.
func NewHandlers(catalog *service.CatalogService, purchases *service.PurchaseService, view *service.LedgerView, log *logger.Logger) *Handlers {
	return &Handlers{
		Items:      NewItemHandler(catalog, log),
		Batches:    NewBatchHandler(catalog, log),
		Categories: NewCategoryHandler(catalog, log),
		Suppliers:  NewSupplierHandler(catalog, log),
		Purchases:  NewPurchaseHandler(purchases, log),
		Dashboard:  NewDashboardHandler(catalog, view, log),
	}
}

// Routes registers the ledger routes on r. Callers add the session middleware.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.Items.List)
		r.Post("/", h.Items.Create)
		r.Get("/{id}", h.Items.Get)
		r.Patch("/{id}", h.Items.Update)
		r.Get("/{id}/batches", h.Batches.ListByItem)
		r.Post("/{id}/batches", h.Batches.AddInitialStock)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.Categories.List)
		r.Post("/", h.Categories.Create)
		r.Get("/{id}", h.Categories.Get)
		r.Put("/{id}", h.Categories.Update)
		r.Delete("/{id}", h.Categories.Delete)
	})

	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.Suppliers.List)
		r.Post("/", h.Suppliers.Create)
		r.Get("/{id}", h.Suppliers.Get)
		r.Put("/{id}", h.Suppliers.Update)
		r.Delete("/{id}", h.Suppliers.Delete)
	})

	r.Route("/purchases", func(r chi.Router) {
		r.Get("/", h.Purchases.List)
		r.Post("/", h.Purchases.Submit)
		r.Get("/{id}", h.Purchases.Get)
	})

	r.Get("/stock", h.Dashboard.ListStock)
	r.Get("/stock/{id}", h.Dashboard.GetStock)
	r.Get("/dashboard/stats", h.Dashboard.GetStats)
}
