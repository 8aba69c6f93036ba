package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// SupplierHandler handles supplier endpoints
type SupplierHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewSupplierHandler creates a new supplier handler
func NewSupplierHandler(svc *service.CatalogService, log *logger.Logger) *SupplierHandler {
	return &SupplierHandler{service: svc, logger: log}
}

type supplierRequest struct {
	Name        string  `json:"name" validate:"required"`
	CompanyName *string `json:"companyName"`
	PhoneNumber *string `json:"phoneNumber"`
	Address     string  `json:"address" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Note        *string `json:"note"`
}

func (r supplierRequest) input() service.SupplierInput {
	return service.SupplierInput{
		Name:        r.Name,
		CompanyName: r.CompanyName,
		PhoneNumber: r.PhoneNumber,
		Address:     r.Address,
		Email:       r.Email,
		Note:        r.Note,
	}
}

// List lists suppliers
func (h *SupplierHandler) List(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, suppliers, &httputil.Meta{Total: int64(len(suppliers))})
}

// Get gets a supplier
func (h *SupplierHandler) Get(w http.ResponseWriter, r *http.Request) {
	supplier, err := h.service.GetSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, supplier)
}

// Create creates a supplier
func (h *SupplierHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	supplier, err := h.service.CreateSupplier(r.Context(), req.input())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, supplier)
}

// Update replaces a supplier's details
func (h *SupplierHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	supplier, err := h.service.UpdateSupplier(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, supplier)
}

// Delete deletes a supplier
func (h *SupplierHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSupplier(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
