package httpapi

import (
	"context"
	"net/http"

	"b3tr-store/internal/domain"

	log "github.com/sirupsen/logrus"
)

// StoreInfo is the public storefront configuration a client needs to render
// the shop and open the wallet.
type StoreInfo struct {
	Title                  string   `json:"title"`
	Description            string   `json:"description"`
	Icons                  []string `json:"icons"`
	Network                string   `json:"network"`
	NodeURL                string   `json:"nodeUrl"`
	Recipient              string   `json:"recipient"`
	TokenContract          string   `json:"tokenContract"`
	TokenSymbol            string   `json:"tokenSymbol"`
	GasSymbol              string   `json:"gasSymbol"`
	WalletConnectProjectID string   `json:"walletConnectProjectId,omitempty"`
}

type Catalog interface {
	GetAll(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int) (domain.Product, error)
	Upsert(ctx context.Context, p domain.Product) (domain.Product, error)
	Delete(ctx context.Context, id int) error
}

type StoreHandler struct {
	info    StoreInfo
	catalog Catalog
}

func RegisterStore(mux *http.ServeMux, info StoreInfo, catalog Catalog) {
	if info.Icons == nil {
		info.Icons = []string{}
	}
	h := StoreHandler{info: info, catalog: catalog}
	mux.HandleFunc("GET /v1/store", instrument("store", h.GetStore))
	mux.HandleFunc("GET /v1/products", instrument("products", h.GetProducts))
}

func (h StoreHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info)
}

func (h StoreHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	const op = "StoreHandler.GetProducts"

	ps, err := h.catalog.GetAll(r.Context())
	if err != nil {
		log.WithField("op", op).WithError(err).Error("Error loading products")
		writeError(w, http.StatusInternalServerError, "Failed to load products: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
