// Package posting describes the stock and accounting entries a committed transition
// hands to the ledger collaborator.
package posting

import (
	"fmt"

	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
)

// Kind classifies a ledger entry.
type Kind string

const (
	// KindStockAdjustment corrects on-hand stock to a physical count.
	KindStockAdjustment Kind = "stock_adjustment"
	// KindVariance books the value of an accepted count difference. Quantity is informational.
	KindVariance Kind = "variance"
	// KindIssue moves stock out of the issuing store.
	KindIssue Kind = "issue"
	// KindReceipt moves stock into the requesting store.
	KindReceipt Kind = "receipt"
)

// AffectsOnHand reports whether entries of this kind change stock quantities.
func (k Kind) AffectsOnHand() bool {
	return k != KindVariance
}

// Key identifies one apply-movement call. Replaying a key must not post twice.
type Key struct {
	RecordID id.ID
	Seq      int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.RecordID, k.Seq)
}

// Entry is one signed ledger line.
type Entry struct {
	StoreID   id.ID          `json:"storeId"`
	ProductID id.ID          `json:"productId"`
	Kind      Kind           `json:"kind"`
	Quantity  types.Quantity `json:"quantity"`
	Value     types.Money    `json:"value"`
}

// NewEntry builds an entry valued at quantity times unitValue.
func NewEntry(kind Kind, store, product id.ID, qty types.Quantity, unitValue types.Money) Entry {
	return Entry{
		StoreID:   store,
		ProductID: product,
		Kind:      kind,
		Quantity:  qty,
		Value:     qty.Times(unitValue),
	}
}
