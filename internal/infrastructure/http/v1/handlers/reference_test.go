package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "storeflow/internal/core/context"
	"storeflow/internal/core/id"
	"storeflow/internal/infrastructure/http/v1/handlers"
	"storeflow/internal/infrastructure/http/v1/middleware"
	"storeflow/internal/infrastructure/storage/postgres/ledger_repo"
	"storeflow/internal/infrastructure/storage/postgres/reference_repo"
)

type stubRefs struct {
	storesAsked []id.ID
}

func (s *stubRefs) Stores(_ context.Context, ids []id.ID) ([]reference_repo.Store, error) {
	s.storesAsked = ids
	return []reference_repo.Store{{ID: storeA, Code: "A", Name: "Store A", IsActive: true}}, nil
}

func (s *stubRefs) SearchProducts(context.Context, string, int) ([]reference_repo.Product, error) {
	return []reference_repo.Product{}, nil
}

type stubBalances struct{ called bool }

func (s *stubBalances) Balances(context.Context, id.ID, []id.ID) ([]ledger_repo.Balance, error) {
	s.called = true
	return []ledger_repo.Balance{}, nil
}

func newReferenceRouter(refs handlers.ReferenceReader, balances handlers.BalanceReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Trace(), middleware.ErrorHandler())
	r.Use(func(c *gin.Context) {
		user := &appctx.UserContext{UserID: "u-1", StoreIDs: []string{storeA.String()}}
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
	})
	h := handlers.NewReferenceHandler(handlers.NewBaseHandler(), refs, balances)
	r.GET("/stores", h.MyStores)
	r.GET("/stores/:id/stock", h.StoreStock)
	r.GET("/products", h.Products)
	return r
}

func TestMyStores_OnlyAssigned(t *testing.T) {
	refs := &stubRefs{}
	r := newReferenceRouter(refs, &stubBalances{})

	rec := serve(r, http.MethodGet, "/stores", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []id.ID{storeA}, refs.storesAsked)
	assert.Contains(t, rec.Body.String(), `"code":"A"`)
}

func TestStoreStock_UnassignedStoreLooksMissing(t *testing.T) {
	balances := &stubBalances{}
	r := newReferenceRouter(&stubRefs{}, balances)

	rec := serve(r, http.MethodGet, "/stores/"+id.New().String()+"/stock", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, balances.called)

	rec = serve(r, http.MethodGet, "/stores/"+storeA.String()+"/stock?productId=bad", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodGet, "/stores/"+storeA.String()+"/stock", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, balances.called)
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ok := handlers.NewHealthHandler(failingPinger{}, "test")
	down := handlers.NewHealthHandler(failingPinger{err: context.DeadlineExceeded}, "test")
	r.GET("/live", ok.Live)
	r.GET("/ready", ok.Ready)
	r.GET("/ready-down", down.Ready)
	r.GET("/info", ok.Info)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/ready-down", "").Code)
	assert.Contains(t, serve(r, http.MethodGet, "/info", "").Body.String(), `"version":"test"`)
}
