// Package fulfillment applies issue and receipt events to store request lines
// and derives the aggregate fulfillment status.
package fulfillment

import (
	"slices"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/movement"
)

// LineQuantity is the quantity issued or received for one product in a single event.
type LineQuantity struct {
	ProductID id.ID          `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
}

// Result describes an applied event.
type Result struct {
	Status movement.Status
	// Applied holds the accepted quantities in line order.
	Applied []LineQuantity
}

// ApplyIssue adds issued quantities to rec's lines.
// The event is all-or-nothing: on error rec is untouched.
func ApplyIssue(rec *movement.Record, issues []LineQuantity) (*Result, error) {
	lines, applied, err := apply(rec, issues, func(l *movement.LineItem, q types.Quantity) error {
		if q > l.RemainingToIssue() {
			return apperror.NewOverIssue(l.ProductID.String(), l.QuantityRequested, l.QuantityIssued, q)
		}
		l.QuantityIssued += q
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec.Lines = lines
	return &Result{Status: StatusAfterIssue(lines), Applied: applied}, nil
}

// ApplyReceipt adds received quantities to rec's lines, capped by what was issued.
// The event is all-or-nothing: on error rec is untouched.
func ApplyReceipt(rec *movement.Record, receipts []LineQuantity) (*Result, error) {
	lines, applied, err := apply(rec, receipts, func(l *movement.LineItem, q types.Quantity) error {
		if q > l.InTransit() {
			return apperror.NewOverReceive(l.ProductID.String(), l.QuantityIssued, l.QuantityReceived, q)
		}
		l.QuantityReceived += q
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec.Lines = lines
	return &Result{Status: StatusAfterReceipt(lines), Applied: applied}, nil
}

func apply(
	rec *movement.Record,
	events []LineQuantity,
	step func(l *movement.LineItem, q types.Quantity) error,
) ([]movement.LineItem, []LineQuantity, error) {
	if len(events) == 0 {
		return nil, nil, apperror.NewFieldValidation("lines", "at least one line quantity is required")
	}

	lines := slices.Clone(rec.Lines)
	seen := make(map[id.ID]struct{}, len(events))
	touched := make(map[int]types.Quantity, len(events))

	for _, ev := range events {
		if _, dup := seen[ev.ProductID]; dup {
			return nil, nil, apperror.NewFieldValidation("lines.productId", "product listed twice in one event").
				WithDetail("productId", ev.ProductID.String())
		}
		seen[ev.ProductID] = struct{}{}

		if !ev.Quantity.IsPositive() {
			return nil, nil, apperror.NewFieldValidation("lines.quantity", "quantity must be positive").
				WithDetail("productId", ev.ProductID.String())
		}

		idx := rec.LineIndex(ev.ProductID)
		if idx < 0 {
			return nil, nil, apperror.NewFieldValidation("lines.productId", "product is not on this record").
				WithDetail("productId", ev.ProductID.String())
		}

		if err := step(&lines[idx], ev.Quantity); err != nil {
			return nil, nil, err
		}
		touched[idx] = ev.Quantity
	}

	applied := make([]LineQuantity, 0, len(touched))
	for i := range lines {
		if q, ok := touched[i]; ok {
			applied = append(applied, LineQuantity{ProductID: lines[i].ProductID, Quantity: q})
		}
	}
	return lines, applied, nil
}

// StatusAfterIssue derives the status once issuing has happened.
// Lines already being received keep the record in partially_received.
func StatusAfterIssue(lines []movement.LineItem) movement.Status {
	var issued, received types.Quantity
	for _, l := range lines {
		issued += l.QuantityIssued
		received += l.QuantityReceived
	}
	switch {
	case issued == 0:
		return movement.StatusApproved
	case received > 0:
		if FullyReceived(lines) {
			return movement.StatusFulfilled
		}
		return movement.StatusPartiallyReceived
	case FullyIssued(lines):
		return movement.StatusFulfilled
	default:
		return movement.StatusPartialIssued
	}
}

// StatusAfterReceipt derives the status once a receipt is recorded.
func StatusAfterReceipt(lines []movement.LineItem) movement.Status {
	if FullyReceived(lines) {
		return movement.StatusFulfilled
	}
	return movement.StatusPartiallyReceived
}

// FullyIssued reports whether every line has issued its requested quantity.
func FullyIssued(lines []movement.LineItem) bool {
	for _, l := range lines {
		if l.QuantityIssued != l.QuantityRequested {
			return false
		}
	}
	return len(lines) > 0
}

// FullyReceived reports whether every requested unit has been received.
func FullyReceived(lines []movement.LineItem) bool {
	for _, l := range lines {
		if l.QuantityReceived != l.QuantityRequested {
			return false
		}
	}
	return len(lines) > 0
}

// Progress summarizes line quantities for display.
type Progress struct {
	Requested types.Quantity `json:"requested"`
	Issued    types.Quantity `json:"issued"`
	Received  types.Quantity `json:"received"`
}

// Summarize totals all lines.
func Summarize(lines []movement.LineItem) Progress {
	var p Progress
	for _, l := range lines {
		p.Requested += l.QuantityRequested
		p.Issued += l.QuantityIssued
		p.Received += l.QuantityReceived
	}
	return p
}
