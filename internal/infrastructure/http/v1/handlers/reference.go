package handlers

import (
	"context"
	"slices"

	"github.com/gin-gonic/gin"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/infrastructure/storage/postgres/ledger_repo"
	"storeflow/internal/infrastructure/storage/postgres/reference_repo"
)

// ReferenceReader lists stores and products.
type ReferenceReader interface {
	Stores(ctx context.Context, storeIDs []id.ID) ([]reference_repo.Store, error)
	SearchProducts(ctx context.Context, search string, limit int) ([]reference_repo.Product, error)
}

// BalanceReader reads stock on hand.
type BalanceReader interface {
	Balances(ctx context.Context, storeID id.ID, productIDs []id.ID) ([]ledger_repo.Balance, error)
}

// ReferenceHandler serves stores, products and stock balances.
type ReferenceHandler struct {
	*BaseHandler
	refs     ReferenceReader
	balances BalanceReader
}

// NewReferenceHandler creates a reference handler.
func NewReferenceHandler(base *BaseHandler, refs ReferenceReader, balances BalanceReader) *ReferenceHandler {
	return &ReferenceHandler{BaseHandler: base, refs: refs, balances: balances}
}

// MyStores handles GET /stores: the stores the caller is assigned to.
func (h *ReferenceHandler) MyStores(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	stores, err := h.refs.Stores(c.Request.Context(), actor.StoreIDs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": stores})
}

// Products handles GET /products?search=&limit=
func (h *ReferenceHandler) Products(c *gin.Context) {
	if _, ok := h.Actor(c); !ok {
		return
	}
	var q struct {
		Search string `form:"search"`
		Limit  int    `form:"limit" binding:"omitempty,min=1,max=200"`
	}
	if !h.BindQuery(c, &q) {
		return
	}
	products, err := h.refs.SearchProducts(c.Request.Context(), q.Search, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": products})
}

// StoreStock handles GET /stores/:id/stock. Only assigned stores are readable.
func (h *ReferenceHandler) StoreStock(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	storeID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if !slices.Contains(actor.StoreIDs, storeID) {
		h.Error(c, apperror.NewNotFound("store", storeID.String()))
		return
	}

	var productIDs []id.ID
	if raw := c.QueryArray("productId"); len(raw) > 0 {
		parsed, err := id.ParseAll(raw)
		if err != nil {
			h.Error(c, apperror.NewFieldValidation("productId", "invalid id format"))
			return
		}
		productIDs = parsed
	}

	balances, err := h.balances.Balances(c.Request.Context(), storeID, productIDs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": balances})
}
