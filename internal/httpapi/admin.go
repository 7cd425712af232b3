package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"b3tr-store/internal/domain"
	"b3tr-store/internal/repository"
	"b3tr-store/internal/validator"

	log "github.com/sirupsen/logrus"
)

type PurchaseLister interface {
	List(ctx context.Context) ([]domain.PurchaseRecord, error)
}

type AdminHandler struct {
	catalog   Catalog
	purchases PurchaseLister
}

type productForm struct {
	Name        string  `json:"name"`
	PriceUSD    float64 `json:"priceUSD"`
	PriceB3TR   float64 `json:"priceB3TR"`
	Description string  `json:"description"`
}

func (f productForm) toDomain(id int) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        f.Name,
		PriceUSD:    f.PriceUSD,
		PriceB3TR:   f.PriceB3TR,
		Description: f.Description,
	}
}

func RegisterAdmin(mux *http.ServeMux, password string, catalog Catalog, purchases PurchaseLister) {
	h := AdminHandler{catalog: catalog, purchases: purchases}
	mux.HandleFunc("POST /v1/admin/products", instrument("admin_products", requireAdmin(password, h.CreateProduct)))
	mux.HandleFunc("PUT /v1/admin/products/{id}", instrument("admin_product", requireAdmin(password, h.UpdateProduct)))
	mux.HandleFunc("DELETE /v1/admin/products/{id}", instrument("admin_product", requireAdmin(password, h.DeleteProduct)))
	mux.HandleFunc("GET /v1/admin/purchases", instrument("admin_purchases", requireAdmin(password, h.ListPurchases)))
}

func (h AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.CreateProduct"

	var form productForm
	if err := decodeJSON(r, &form, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		return
	}
	p := form.toDomain(0)
	if err := validator.ValidateProduct(p); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// Loading first seeds an empty catalog, so new ids continue after the defaults.
	if _, err := h.catalog.GetAll(r.Context()); err != nil {
		log.WithField("op", op).WithError(err).Error("Failed to load catalog")
		writeError(w, http.StatusInternalServerError, "failed to save product")
		return
	}
	saved, err := h.catalog.Upsert(r.Context(), p)
	if err != nil {
		log.WithField("op", op).WithError(err).Error("Failed to save product")
		writeError(w, http.StatusInternalServerError, "failed to save product")
		return
	}

	log.WithFields(log.Fields{"op": op, "product_id": saved.ID}).Info("Product created")
	writeJSON(w, http.StatusCreated, saved)
}

func (h AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.UpdateProduct"

	id, ok := productID(w, r)
	if !ok {
		return
	}
	var form productForm
	if err := decodeJSON(r, &form, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON data")
		return
	}
	p := form.toDomain(id)
	if err := validator.ValidateProduct(p); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if _, err := h.catalog.Get(r.Context(), id); err != nil {
		h.catalogError(w, op, err)
		return
	}
	saved, err := h.catalog.Upsert(r.Context(), p)
	if err != nil {
		h.catalogError(w, op, err)
		return
	}

	log.WithFields(log.Fields{"op": op, "product_id": id}).Info("Product updated")
	writeJSON(w, http.StatusOK, saved)
}

func (h AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	const op = "AdminHandler.DeleteProduct"

	id, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.catalogError(w, op, err)
		return
	}

	log.WithFields(log.Fields{"op": op, "product_id": id}).Info("Product deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h AdminHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	rs, err := h.purchases.List(r.Context())
	if err != nil {
		log.WithField("op", "AdminHandler.ListPurchases").WithError(err).Error("Failed to load purchases")
		writeError(w, http.StatusInternalServerError, "failed to load purchases")
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (h AdminHandler) catalogError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	log.WithField("op", op).WithError(err).Error("Catalog operation failed")
	writeError(w, http.StatusInternalServerError, "catalog operation failed")
}

func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}
