package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Info          StoreInfo
	Catalog       Catalog
	Purchases     PurchaseLister
	Sessions      Sessions
	AdminPassword string
}

// NewRouter registers every route and returns the JSON-only root handler.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	RegisterStore(mux, d.Info, d.Catalog)
	RegisterSessions(mux, d.Sessions)
	RegisterAdmin(mux, d.AdminPassword, d.Catalog, d.Purchases)

	mux.HandleFunc("GET /health", instrument("health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	mux.Handle("GET /metrics", promhttp.Handler())

	return AllowJSON(mux)
}
