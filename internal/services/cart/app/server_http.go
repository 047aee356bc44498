package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/louisbranch/sharedcart/internal/services/cart/catalog"
	"github.com/louisbranch/sharedcart/internal/services/cart/domain"
	"github.com/louisbranch/sharedcart/internal/services/cart/session"
)

type productView struct {
	Name      string        `json:"name"`
	Price     domain.Amount `json:"price"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type errorBody struct {
	Error string `json:"error"`
}

// queryAPI serves the read-only HTTP surface.
type queryAPI struct {
	registry *session.Registry
	catalog  catalog.Store
	logger   *slog.Logger
}

func (a *queryAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/sessions", a.listSessions)
	mux.HandleFunc("POST /api/sessions", a.newSessionCode)
	mux.HandleFunc("GET /api/sessions/{id}", a.getSession)
	mux.HandleFunc("GET /api/products", a.listProducts)
	mux.HandleFunc("GET /api/products/{barcode}", a.getProduct)
	mux.HandleFunc("GET /api/alternatives", a.listAlternatives)
	mux.HandleFunc("GET /api/alternatives/{productName}", a.getAlternatives)
}

func (a *queryAPI) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.registry.List())
}

func (a *queryAPI) getSession(w http.ResponseWriter, r *http.Request) {
	summary, ok := a.registry.Summary(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *queryAPI) newSessionCode(w http.ResponseWriter, _ *http.Request) {
	code, err := a.registry.NewCode()
	if err != nil {
		a.logger.Error("allocate session code", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "no session code available"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": code})
}

func (a *queryAPI) listProducts(w http.ResponseWriter, r *http.Request) {
	if !a.catalogReady(w) {
		return
	}
	products, err := a.catalog.ListProducts(r.Context())
	if err != nil {
		a.storeFailure(w, "list products", err)
		return
	}
	out := make(map[string]productView, len(products))
	for _, p := range products {
		out[p.Barcode] = productView{Name: p.Name, Price: p.Price, UpdatedAt: p.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *queryAPI) getProduct(w http.ResponseWriter, r *http.Request) {
	if !a.catalogReady(w) {
		return
	}
	product, err := a.catalog.GetProduct(r.Context(), r.PathValue("barcode"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Product not found"})
		return
	}
	if err != nil {
		a.storeFailure(w, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, productView{Name: product.Name, Price: product.Price, UpdatedAt: product.UpdatedAt})
}

func (a *queryAPI) listAlternatives(w http.ResponseWriter, r *http.Request) {
	if !a.catalogReady(w) {
		return
	}
	alternatives, err := a.catalog.ListAlternatives(r.Context())
	if err != nil {
		a.storeFailure(w, "list alternatives", err)
		return
	}
	writeJSON(w, http.StatusOK, alternatives)
}

func (a *queryAPI) getAlternatives(w http.ResponseWriter, r *http.Request) {
	if !a.catalogReady(w) {
		return
	}
	alternatives, err := a.catalog.GetAlternatives(r.Context(), r.PathValue("productName"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Alternatives not found"})
		return
	}
	if err != nil {
		a.storeFailure(w, "get alternatives", err)
		return
	}
	writeJSON(w, http.StatusOK, alternatives)
}

func (a *queryAPI) catalogReady(w http.ResponseWriter) bool {
	if a.catalog == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "catalog unavailable"})
		return false
	}
	return true
}

func (a *queryAPI) storeFailure(w http.ResponseWriter, op string, err error) {
	a.logger.Error(op, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
