package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/easonhq/eason/internal/auth"
	"github.com/easonhq/eason/internal/catalog"
	"github.com/easonhq/eason/internal/users"
)

type CatalogHandler struct {
	Repo   *catalog.Repo
	Tokens *auth.Tokens
	Log    *slog.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	write := auth.RequireRole(users.RoleAdmin, users.RoleWholesaler)

	r.Route("/api/products", func(r chi.Router) {
		r.With(h.Tokens.Optional).Get("/", h.listProducts)
		r.With(h.Tokens.Optional).Get("/{id}", h.getProduct)
		r.Group(func(r chi.Router) {
			r.Use(h.Tokens.Require, write)
			r.Post("/", h.createProduct)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Group(func(r chi.Router) {
			r.Use(h.Tokens.Require, write)
			r.Post("/", h.createCategory)
			r.Put("/{id}", h.updateCategory)
			r.Delete("/{id}", h.deleteCategory)
		})
	})

	r.Route("/api/units", func(r chi.Router) {
		r.Get("/", h.listUnits)
		r.Group(func(r chi.Router) {
			r.Use(h.Tokens.Require, write)
			r.Post("/", h.createUnit)
			r.Put("/{id}", h.updateUnit)
			r.Delete("/{id}", h.deleteUnit)
		})
	})
}

type nameRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type productResp struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Category    nameRef           `json:"category"`
	Unit        nameRef           `json:"unit"`
	Stock       int               `json:"stock"`
	Description string            `json:"description"`
	Image       *string           `json:"image,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	PriceInfo   catalog.PriceView `json:"priceInfo"`
}

func toProductResp(p catalog.Product, role users.Role) productResp {
	return productResp{
		ID:          p.ID,
		Name:        p.Name,
		Category:    nameRef{ID: p.CategoryID, Name: p.CategoryName},
		Unit:        nameRef{ID: p.UnitID, Name: p.UnitName},
		Stock:       p.Stock,
		Description: p.Description,
		Image:       p.Image,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		PriceInfo:   catalog.ResolvePrice(p, role),
	}
}

func callerRole(r *http.Request) users.Role {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id.Role
	}
	return users.RoleGuest
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Repo.ListProducts(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	role := callerRole(r)
	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductResp(p, role))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.Repo.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResp(p, callerRole(r)))
}

type productReq struct {
	Name                  *string    `json:"name"`
	CategoryID            *uuid.UUID `json:"categoryId"`
	UnitID                *uuid.UUID `json:"unitId"`
	BaseCost              *int64     `json:"baseCost"`
	WholesalerPrice       *int64     `json:"wholesalerPrice"`
	RetailerPriceOverride *int64     `json:"retailerPriceOverride"`
	Stock                 *int       `json:"stock"`
	Description           *string    `json:"description"`
	Image                 *string    `json:"image"`
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" ||
		req.CategoryID == nil || req.UnitID == nil ||
		req.BaseCost == nil || req.WholesalerPrice == nil {
		writeMessage(w, http.StatusBadRequest, "name, categoryId, unitId, baseCost and wholesalerPrice are required")
		return
	}
	if *req.BaseCost < 0 {
		writeMessage(w, http.StatusBadRequest, "base cost cannot be negative")
		return
	}
	if *req.WholesalerPrice < *req.BaseCost {
		writeMessage(w, http.StatusBadRequest, "wholesaler price cannot be less than base cost")
		return
	}
	if req.Stock != nil && *req.Stock < 0 {
		writeMessage(w, http.StatusBadRequest, "stock cannot be negative")
		return
	}

	p := catalog.Product{
		Name:                  strings.TrimSpace(*req.Name),
		CategoryID:            *req.CategoryID,
		UnitID:                *req.UnitID,
		BaseCostCents:         *req.BaseCost,
		WholesalerPriceCents:  *req.WholesalerPrice,
		RetailerOverrideCents: req.RetailerPriceOverride,
		Image:                 req.Image,
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}

	created, err := h.Repo.CreateProduct(r.Context(), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResp(created, callerRole(r)))
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	p, err := h.Repo.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
	}
	if req.UnitID != nil {
		p.UnitID = *req.UnitID
	}
	if req.BaseCost != nil {
		p.BaseCostCents = *req.BaseCost
	}
	if req.WholesalerPrice != nil {
		p.WholesalerPriceCents = *req.WholesalerPrice
	}
	if req.RetailerPriceOverride != nil {
		p.RetailerOverrideCents = req.RetailerPriceOverride
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Image != nil {
		p.Image = req.Image
	}

	if p.BaseCostCents < 0 {
		writeMessage(w, http.StatusBadRequest, "base cost cannot be negative")
		return
	}
	if p.WholesalerPriceCents < p.BaseCostCents {
		writeMessage(w, http.StatusBadRequest, "wholesaler price cannot be less than base cost")
		return
	}
	if p.Stock < 0 {
		writeMessage(w, http.StatusBadRequest, "stock cannot be negative")
		return
	}

	updated, err := h.Repo.UpdateProduct(r.Context(), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResp(updated, callerRole(r)))
}

func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.Repo.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Product deleted successfully")
}

type nameReq struct {
	Name string `json:"name"`
}

func decodeName(r *http.Request) (string, bool) {
	var req nameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	return name, name != ""
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Repo.ListCategories(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *CatalogHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeName(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "category name is required")
		return
	}
	c, err := h.Repo.CreateCategory(r.Context(), name)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid category id")
		return
	}
	name, ok := decodeName(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "category name is required")
		return
	}
	c, err := h.Repo.UpdateCategory(r.Context(), id, name)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := h.Repo.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Category deleted")
}

func (h *CatalogHandler) listUnits(w http.ResponseWriter, r *http.Request) {
	us, err := h.Repo.ListUnits(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, us)
}

func (h *CatalogHandler) createUnit(w http.ResponseWriter, r *http.Request) {
	name, ok := decodeName(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "unit name is required")
		return
	}
	u, err := h.Repo.CreateUnit(r.Context(), name)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *CatalogHandler) updateUnit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid unit id")
		return
	}
	name, ok := decodeName(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "unit name is required")
		return
	}
	u, err := h.Repo.UpdateUnit(r.Context(), id, name)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *CatalogHandler) deleteUnit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid unit id")
		return
	}
	if err := h.Repo.DeleteUnit(r.Context(), id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeMessage(w, http.StatusOK, "Unit deleted")
}
