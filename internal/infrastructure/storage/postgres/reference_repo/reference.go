// Package reference_repo looks up stores and products referenced by movement records.
package reference_repo

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/domain/approval"
	"storeflow/internal/infrastructure/storage/postgres"
)

const (
	storesTable   = "stores"
	productsTable = "products"
)

var _ approval.ReferenceData = (*Repo)(nil)

// Store is a location that holds stock.
type Store struct {
	ID       id.ID  `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"isActive"`
}

// Product is a stocked item.
type Product struct {
	ID       id.ID  `db:"id" json:"id"`
	SKU      string `db:"sku" json:"sku"`
	Name     string `db:"name" json:"name"`
	Unit     string `db:"unit" json:"unit"`
	IsActive bool   `db:"is_active" json:"isActive"`
}

// Repo reads the stores and products tables.
type Repo struct {
	txManager *postgres.TxManager
}

// NewRepo creates the reference repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// ValidateStores fails with VALIDATION_FAILED listing ids that are unknown or inactive.
func (r *Repo) ValidateStores(ctx context.Context, storeIDs []id.ID) error {
	return r.validate(ctx, storesTable, "store", storeIDs)
}

// ValidateProducts fails with VALIDATION_FAILED listing ids that are unknown or inactive.
func (r *Repo) ValidateProducts(ctx context.Context, productIDs []id.ID) error {
	return r.validate(ctx, productsTable, "product", productIDs)
}

func (r *Repo) validate(ctx context.Context, table, what string, ids []id.ID) error {
	if len(ids) == 0 {
		return nil
	}

	sql, args, err := builder().
		Select("id").
		From(table).
		Where(squirrel.Eq{"id": ids, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var found []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &found, sql, args...); err != nil {
		return fmt.Errorf("lookup %s: %w", table, err)
	}

	missing := unknownIDs(ids, found)
	if len(missing) == 0 {
		return nil
	}
	return apperror.NewFieldValidation(what+"Id", "unknown or inactive "+what).
		WithDetail("ids", id.Strings(missing))
}

func unknownIDs(wanted, found []id.ID) []id.ID {
	var missing []id.ID
	for _, w := range wanted {
		if !slices.Contains(found, w) && !slices.Contains(missing, w) {
			missing = append(missing, w)
		}
	}
	return missing
}

// Stores returns the given stores ordered by code.
func (r *Repo) Stores(ctx context.Context, storeIDs []id.ID) ([]Store, error) {
	out := []Store{}
	if len(storeIDs) == 0 {
		return out, nil
	}
	sql, args, err := builder().
		Select("id", "code", "name", "is_active").
		From(storesTable).
		Where(squirrel.Eq{"id": storeIDs}).
		OrderBy("code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return out, nil
}

// SearchProducts returns active products whose SKU or name contains search.
func (r *Repo) SearchProducts(ctx context.Context, search string, limit int) ([]Product, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := builder().
		Select("id", "sku", "name", "unit", "is_active").
		From(productsTable).
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("sku").
		Limit(uint64(limit))
	if search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{squirrel.ILike{"sku": pattern}, squirrel.ILike{"name": pattern}})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := []Product{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return out, nil
}
