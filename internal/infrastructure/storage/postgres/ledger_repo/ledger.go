// Package ledger_repo is the PostgreSQL stock ledger. It applies movement postings
// exactly once per posting key.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/approval"
	"storeflow/internal/domain/posting"
	"storeflow/internal/infrastructure/storage/postgres"
	"storeflow/pkg/logger"
)

var _ approval.Poster = (*Ledger)(nil)

// Balance is the on-hand quantity of a product at a store.
type Balance struct {
	StoreID   id.ID          `db:"store_id" json:"storeId"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	OnHand    types.Quantity `db:"on_hand" json:"onHand"`
	Value     types.Money    `db:"value" json:"value"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// Ledger writes stock_ledger entries and maintains stock_balances.
type Ledger struct {
	txManager *postgres.TxManager
}

// NewLedger creates the ledger.
func NewLedger(txManager *postgres.TxManager) *Ledger {
	return &Ledger{txManager: txManager}
}

// ApplyMovement posts entries under key. A key that was already applied is a no-op.
func (l *Ledger) ApplyMovement(ctx context.Context, key posting.Key, entries []posting.Entry) error {
	return l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		tag, err := l.txManager.GetQuerier(ctx).Exec(ctx, `
			INSERT INTO sys_posting_keys (record_id, seq, entries, applied_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (record_id, seq) DO NOTHING
		`, key.RecordID, key.Seq, len(entries))
		if err != nil {
			return fmt.Errorf("claim posting key %s: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			logger.Info(ctx, "posting key already applied", "key", key.String())
			return nil
		}

		queries := make([]postgres.BatchQuery, 0, 2*len(entries))
		for _, e := range entries {
			queries = append(queries, postgres.BatchQuery{
				SQL: `INSERT INTO stock_ledger (id, record_id, seq, store_id, product_id, kind, quantity, value, created_at)
				      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
				Args: []any{id.New(), key.RecordID, key.Seq, e.StoreID, e.ProductID, e.Kind, e.Quantity.Int64Scaled(), e.Value},
			})

			onHand := int64(0)
			if e.Kind.AffectsOnHand() {
				onHand = e.Quantity.Int64Scaled()
			}
			queries = append(queries, postgres.BatchQuery{
				SQL: `INSERT INTO stock_balances (store_id, product_id, on_hand, value, updated_at)
				      VALUES ($1, $2, $3, $4, NOW())
				      ON CONFLICT (store_id, product_id) DO UPDATE SET
				          on_hand = stock_balances.on_hand + EXCLUDED.on_hand,
				          value = stock_balances.value + EXCLUDED.value,
				          updated_at = NOW()`,
				Args: []any{e.StoreID, e.ProductID, onHand, e.Value},
			})
		}

		if _, err := postgres.ExecBatch(ctx, l.txManager, queries); err != nil {
			return fmt.Errorf("apply postings %s: %w", key, err)
		}
		return nil
	})
}

// Balances returns the on-hand stock of a store, optionally narrowed to products.
func (l *Ledger) Balances(ctx context.Context, storeID id.ID, productIDs []id.ID) ([]Balance, error) {
	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("store_id", "product_id", "on_hand", "value", "updated_at").
		From("stock_balances").
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("product_id")
	if len(productIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": productIDs})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []Balance{}
	if err := pgxscan.Select(ctx, l.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	return out, nil
}
