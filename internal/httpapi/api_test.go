package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"b3tr-store/internal/chain"
	"b3tr-store/internal/checkout"
	"b3tr-store/internal/domain"
	"b3tr-store/internal/kvstore"
	"b3tr-store/internal/repository"
	"b3tr-store/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccount  = "0x1111111111111111111111111111111111111111"
	testPassword = "b3tr2025"
)

type staticBalances struct{ token decimal.Decimal }

func (b staticBalances) TokenBalance(context.Context, string) (decimal.Decimal, error) {
	return b.token, nil
}

func (staticBalances) GasBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(10), nil
}

type stubSigner struct{}

func (stubSigner) SignTransaction(context.Context, wallet.TxRequest) (string, error) {
	return "0xfeed", nil
}

type confirmedReceipts struct{}

func (confirmedReceipts) TransactionReceipt(context.Context, string) (*chain.Receipt, error) {
	return &chain.Receipt{Reverted: false}, nil
}

type api struct {
	srv       *httptest.Server
	purchases *repository.PurchaseLog
	store     kvstore.Store
}

func newAPI(t *testing.T, tokenBalance int64) *api {
	t.Helper()

	store := kvstore.NewMemoryStore()
	catalog := repository.NewCatalogRepository(store)
	purchases := repository.NewPurchaseLog(store)

	registry := checkout.NewRegistry(&checkout.Services{
		Catalog: catalog,
		Guard: checkout.NewGuard(staticBalances{token: decimal.NewFromInt(tokenBalance)}, checkout.GuardPolicy{
			TokenSymbol: "B3TR", GasSymbol: "VTHO", MinGasBalance: decimal.NewFromInt(1),
		}),
		Submitter: checkout.NewSubmitter(stubSigner{}, checkout.SubmitterConfig{
			Token:       chain.NewToken("0x7c255e1a8da128f7b2770875d32cc82e4f4e6d54", 18),
			TokenSymbol: "B3TR",
			GasSymbol:   "VTHO",
			Recipient:   "0x8d5fb3e576bbe08279a3a64194c01b36d4bbb0c9",
			GasLimit:    150000,
		}),
		Poller:   checkout.NewPoller(confirmedReceipts{}, time.Millisecond),
		Recorder: checkout.NewRecorder(purchases, nil, time.Second),
	}, time.Minute)
	t.Cleanup(registry.Close)

	router := NewRouter(Deps{
		Info:          StoreInfo{Title: "B3TR BEACH Store", Network: "main", TokenSymbol: "B3TR"},
		Catalog:       catalog,
		Purchases:     purchases,
		Sessions:      registry,
		AdminPassword: testPassword,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &api{srv: srv, purchases: purchases, store: store}
}

func (a *api) do(t *testing.T, method, path string, body any, header ...string) *http.Response {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestProducts_SeedsCatalog(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodGet, "/v1/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ps := decode[[]domain.Product](t, resp)
	require.Len(t, ps, 6)
	assert.Equal(t, "B3TR BEACH Towel", ps[1].Name)
}

func TestProducts_MalformedCatalog(t *testing.T) {
	a := newAPI(t, 1000)
	require.NoError(t, a.store.Set(context.Background(), repository.ProductsKey, "{broken"))

	resp := a.do(t, http.MethodGet, "/v1/products", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.True(t, strings.HasPrefix(decode[errorResponse](t, resp).Error, "Failed to load products: "))
}

func TestStoreInfo(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodGet, "/v1/store", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	info := decode[StoreInfo](t, resp)
	assert.Equal(t, "B3TR BEACH Store", info.Title)
	assert.Equal(t, []string{}, info.Icons)
}

func TestCheckoutFlow(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[sessionResponse](t, resp).Session.ID
	require.NotEmpty(t, id)

	resp = a.do(t, http.MethodPost, "/v1/sessions/"+id+"/purchase", selectRequest{ProductID: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sel := decode[sessionResponse](t, resp)
	require.NotNil(t, sel.Decision)
	assert.Equal(t, "need_connect", sel.Decision.Outcome)
	assert.Equal(t, checkout.StageAwaitingWallet, sel.Session.Stage)

	resp = a.do(t, http.MethodPost, "/v1/sessions/"+id+"/wallet", accountRequest{Account: testAccount})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conn := decode[sessionResponse](t, resp)
	require.NotNil(t, conn.Decision)
	assert.Equal(t, "admit", conn.Decision.Outcome)
	assert.Equal(t, checkout.StageConfirming, conn.Session.Stage)

	resp = a.do(t, http.MethodPost, "/v1/sessions/"+id+"/purchase/confirm",
		domain.Buyer{Name: "Ana", Email: "ana@example.com", Address: "1 Beach Rd"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp := a.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
		return decode[sessionResponse](t, resp).Session.Outcome == "success"
	}, 2*time.Second, 5*time.Millisecond)

	resp = a.do(t, http.MethodGet, "/v1/admin/purchases", nil, adminPasswordHeader, testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := decode[[]domain.PurchaseRecord](t, resp)
	require.Len(t, records, 1)
	assert.Equal(t, "B3TR BEACH Towel", records[0].Item)
	assert.Equal(t, float64(200), records[0].Amount)
	assert.Equal(t, "0xfeed", records[0].TxID)
}

func TestCheckout_InsufficientBalance(t *testing.T) {
	a := newAPI(t, 5)

	resp := a.do(t, http.MethodPost, "/v1/sessions", accountRequest{Account: testAccount})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[sessionResponse](t, resp).Session.ID

	resp = a.do(t, http.MethodPost, "/v1/sessions/"+id+"/purchase", selectRequest{ProductID: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sel := decode[sessionResponse](t, resp)
	assert.Equal(t, "rejected", sel.Decision.Outcome)
	assert.Equal(t, "Insufficient B3TR balance: required 200 B3TR, available 5 B3TR.", sel.Decision.Reason)

	resp = a.do(t, http.MethodPost, "/v1/sessions/"+id+"/purchase/confirm",
		domain.Buyer{Name: "Ana", Email: "ana@example.com", Address: "1 Beach Rd"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCheckout_MissingBuyerDetails(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodPost, "/v1/sessions", accountRequest{Account: testAccount})
	id := decode[sessionResponse](t, resp).Session.ID
	a.do(t, http.MethodPost, "/v1/sessions/"+id+"/purchase", selectRequest{ProductID: 2})

	resp = a.do(t, http.MethodPost, "/v1/sessions/"+id+"/purchase/confirm", domain.Buyer{Name: "Ana"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[sessionErrorResponse](t, resp)
	assert.Equal(t, "Please fill in your name, email, and address.", body.Error)
	assert.Equal(t, checkout.StageConfirming, body.Session.Stage)
}

func TestSessions_Balance(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodPost, "/v1/sessions", nil)
	id := decode[sessionResponse](t, resp).Session.ID

	resp = a.do(t, http.MethodGet, "/v1/sessions/"+id+"/balance", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	a.do(t, http.MethodPost, "/v1/sessions/"+id+"/wallet", accountRequest{Account: testAccount})

	resp = a.do(t, http.MethodGet, "/v1/sessions/"+id+"/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := decode[checkout.Balance](t, resp)
	assert.Equal(t, testAccount, b.Account)
	assert.Equal(t, "1000", b.Token.String())
	assert.Equal(t, "10", b.Gas.String())

	resp = a.do(t, http.MethodGet, "/v1/sessions/nope/balance", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_NotFoundAndDelete(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodGet, "/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.do(t, http.MethodPost, "/v1/sessions", nil)
	id := decode[sessionResponse](t, resp).Session.ID

	resp = a.do(t, http.MethodDelete, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = a.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_RequiresPassword(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodGet, "/v1/admin/purchases", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/v1/admin/purchases", nil, adminPasswordHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/v1/admin/purchases", nil, adminPasswordHeader, testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]domain.PurchaseRecord](t, resp))
}

func TestAdmin_ProductLifecycle(t *testing.T) {
	a := newAPI(t, 1000)
	form := productForm{Name: "B3TR BEACH Sandals", PriceUSD: 30, PriceB3TR: 300, Description: "Cork sandals."}

	resp := a.do(t, http.MethodPost, "/v1/admin/products", form, adminPasswordHeader, testPassword)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[domain.Product](t, resp)
	assert.Equal(t, 7, created.ID)

	form.PriceB3TR = 250
	resp = a.do(t, http.MethodPut, "/v1/admin/products/7", form, adminPasswordHeader, testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = a.do(t, http.MethodGet, "/v1/products", nil)
	ps := decode[[]domain.Product](t, resp)
	require.Len(t, ps, 7)
	assert.Equal(t, domain.Product{ID: 7, Name: "B3TR BEACH Sandals", PriceUSD: 30, PriceB3TR: 250, Description: "Cork sandals."}, ps[6])

	resp = a.do(t, http.MethodPut, "/v1/admin/products/99", form, adminPasswordHeader, testPassword)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.do(t, http.MethodDelete, "/v1/admin/products/7", nil, adminPasswordHeader, testPassword)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = a.do(t, http.MethodDelete, "/v1/admin/products/7", nil, adminPasswordHeader, testPassword)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdmin_RejectsIncompleteProduct(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodPost, "/v1/admin/products", productForm{Name: "Free thing", Description: "x"}, adminPasswordHeader, testPassword)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAllowJSON(t *testing.T) {
	a := newAPI(t, 1000)

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/v1/sessions", strings.NewReader("account=0x1"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	a := newAPI(t, 1000)

	resp := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
