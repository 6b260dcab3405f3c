package approval

import (
	"time"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/stats"
	"storeflow/internal/domain/workflow"
)

// DraftInput carries record content. Kind, stores and request type are fixed at creation.
type DraftInput struct {
	Date     *time.Time
	Priority movement.Priority
	Notes    string

	StoreID *id.ID

	RequestingStoreID *id.ID
	IssuingStoreID    *id.ID
	RequestType       movement.RequestType

	Lines []LineInput

	// Version, when non-zero, must match the stored version on update.
	Version int
}

// LineInput is one requested or counted product.
type LineInput struct {
	ProductID         id.ID
	QuantityRequested types.Quantity
	ExpectedQuantity  types.Quantity
	CountedQuantity   types.Quantity
	UnitValue         types.Money
}

// applyScope sets the stores and request type. They are fixed once the record exists.
func (in DraftInput) applyScope(rec *movement.Record) {
	switch rec.Kind {
	case movement.KindPhysicalInventory:
		rec.StoreID = in.StoreID
	case movement.KindStoreRequestIssue:
		rec.RequestingStoreID = in.RequestingStoreID
		rec.IssuingStoreID = in.IssuingStoreID
		rec.RequestType = in.RequestType
		if rec.RequestType == "" {
			rec.RequestType = movement.RequestTypeRequest
		}
	}
}

// checkScope rejects an update that tries to move rec to other stores or flip its request type.
// Omitted fields and fields repeating the stored value are accepted.
func (in DraftInput) checkScope(rec *movement.Record) error {
	fixed := func(field string, want, got *id.ID) error {
		if got == nil || (want != nil && *want == *got) {
			return nil
		}
		return apperror.NewFieldValidation(field, "cannot change after creation")
	}

	switch rec.Kind {
	case movement.KindPhysicalInventory:
		return fixed("storeId", rec.StoreID, in.StoreID)
	case movement.KindStoreRequestIssue:
		if err := fixed("requestingStoreId", rec.RequestingStoreID, in.RequestingStoreID); err != nil {
			return err
		}
		if err := fixed("issuingStoreId", rec.IssuingStoreID, in.IssuingStoreID); err != nil {
			return err
		}
		if in.RequestType != "" && in.RequestType != rec.RequestType {
			return apperror.NewFieldValidation("requestType", "cannot change after creation")
		}
	}
	return nil
}

// applyContent copies the editable content onto rec, keeping quantities already issued or received.
func (in DraftInput) applyContent(rec *movement.Record) {
	if in.Date != nil {
		rec.Date = in.Date.UTC()
	}
	if in.Priority != "" {
		rec.Priority = in.Priority
	}
	rec.Notes = in.Notes

	lines := make([]movement.LineItem, 0, len(in.Lines))
	for _, l := range in.Lines {
		item := movement.LineItem{
			ProductID:         l.ProductID,
			QuantityRequested: l.QuantityRequested,
			ExpectedQuantity:  l.ExpectedQuantity,
			CountedQuantity:   l.CountedQuantity,
			UnitValue:         l.UnitValue,
		}
		if idx := rec.LineIndex(l.ProductID); idx >= 0 {
			prev := rec.Lines[idx]
			item.LineID = prev.LineID
			item.QuantityIssued = prev.QuantityIssued
			item.QuantityReceived = prev.QuantityReceived
		}
		lines = append(lines, item)
	}
	rec.SetLines(lines)
}

func (in DraftInput) storeRefs(kind movement.Kind) []id.ID {
	var out []id.ID
	add := func(p *id.ID) {
		if p != nil && !id.IsNil(*p) {
			out = append(out, *p)
		}
	}
	if kind == movement.KindPhysicalInventory {
		add(in.StoreID)
	} else {
		add(in.RequestingStoreID)
		add(in.IssuingStoreID)
	}
	return out
}

func (in DraftInput) productRefs() []id.ID {
	out := make([]id.ID, 0, len(in.Lines))
	for _, l := range in.Lines {
		out = append(out, l.ProductID)
	}
	return out
}

// VarianceInput is the accept-variance request.
type VarianceInput = workflow.VarianceAcceptance

// ListPage is one page of visible records plus stats over the whole filtered set.
type ListPage struct {
	movement.ListResult
	Stats stats.Stats `json:"stats"`
}
