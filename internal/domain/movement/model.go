package movement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/entity"
	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
)

var _ entity.Validatable = (*Record)(nil)

// Record is a movement record. Status changes only through the workflow engine.
type Record struct {
	entity.BaseEntity

	Kind            Kind      `db:"kind" json:"kind"`
	ReferenceNumber string    `db:"reference_number" json:"referenceNumber"`
	Status          Status    `db:"status" json:"status"`
	Date            time.Time `db:"date" json:"date"`

	// StoreID is set for physical inventory; the two others for store request/issue.
	StoreID           *id.ID      `db:"store_id" json:"storeId,omitempty"`
	RequestingStoreID *id.ID      `db:"requesting_store_id" json:"requestingStoreId,omitempty"`
	IssuingStoreID    *id.ID      `db:"issuing_store_id" json:"issuingStoreId,omitempty"`
	RequestType       RequestType `db:"request_type" json:"requestType,omitempty"`

	Priority Priority `db:"priority" json:"priority"`
	Notes    string   `db:"notes" json:"notes,omitempty"`

	// TotalValue is derived by Recalculate; never set it directly.
	TotalValue types.Money `db:"total_value" json:"totalValue"`

	// TransitionSeq counts committed transitions; with ID it keys the posting call.
	TransitionSeq int `db:"transition_seq" json:"transitionSeq"`

	AuditTrail

	Lines []LineItem `db:"-" json:"lineItems"`
}

// AuditTrail holds who moved the record through each workflow step.
type AuditTrail struct {
	SubmittedBy *string    `db:"submitted_by" json:"submittedBy,omitempty"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`

	ApprovedBy    *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	ApprovalNotes *string    `db:"approval_notes" json:"approvalNotes,omitempty"`

	RejectedBy      *string    `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`

	ReturnedBy   *string    `db:"returned_by" json:"returnedBy,omitempty"`
	ReturnedAt   *time.Time `db:"returned_at" json:"returnedAt,omitempty"`
	ReturnReason *string    `db:"return_reason" json:"returnReason,omitempty"`

	LastIssuedBy   *string    `db:"last_issued_by" json:"lastIssuedBy,omitempty"`
	LastIssuedAt   *time.Time `db:"last_issued_at" json:"lastIssuedAt,omitempty"`
	LastReceivedBy *string    `db:"last_received_by" json:"lastReceivedBy,omitempty"`
	LastReceivedAt *time.Time `db:"last_received_at" json:"lastReceivedAt,omitempty"`

	FulfilledBy *string    `db:"fulfilled_by" json:"fulfilledBy,omitempty"`
	FulfilledAt *time.Time `db:"fulfilled_at" json:"fulfilledAt,omitempty"`

	CancelledBy        *string    `db:"cancelled_by" json:"cancelledBy,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellationReason,omitempty"`

	VarianceAcceptedBy *string    `db:"variance_accepted_by" json:"varianceAcceptedBy,omitempty"`
	VarianceAcceptedAt *time.Time `db:"variance_accepted_at" json:"varianceAcceptedAt,omitempty"`
	VarianceNote       *string    `db:"variance_note" json:"varianceNote,omitempty"`
}

// HasWorkflowStamps reports whether any approval or fulfillment field is set.
func (a AuditTrail) HasWorkflowStamps() bool {
	return a.SubmittedAt != nil || a.ApprovedAt != nil || a.RejectedAt != nil ||
		a.ReturnedAt != nil || a.LastIssuedAt != nil || a.LastReceivedAt != nil ||
		a.FulfilledAt != nil || a.CancelledAt != nil || a.VarianceAcceptedAt != nil
}

// LineItem is one product on a record. ProductID is unique within a record.
type LineItem struct {
	LineID    id.ID `db:"line_id" json:"lineId"`
	LineNo    int   `db:"line_no" json:"lineNo"`
	ProductID id.ID `db:"product_id" json:"productId"`

	QuantityRequested types.Quantity `db:"quantity_requested" json:"quantityRequested"`
	QuantityIssued    types.Quantity `db:"quantity_issued" json:"quantityIssued"`
	QuantityReceived  types.Quantity `db:"quantity_received" json:"quantityReceived"`

	// Physical inventory only.
	ExpectedQuantity types.Quantity  `db:"expected_quantity" json:"expectedQuantity"`
	CountedQuantity  types.Quantity  `db:"counted_quantity" json:"countedQuantity"`
	AcceptedVariance *types.Quantity `db:"accepted_variance" json:"acceptedVariance,omitempty"`

	UnitValue types.Money `db:"unit_value" json:"unitValue"`
}

// Variance is counted minus expected.
func (l LineItem) Variance() types.Quantity {
	return l.CountedQuantity - l.ExpectedQuantity
}

// RemainingToIssue is requested minus issued.
func (l LineItem) RemainingToIssue() types.Quantity {
	return l.QuantityRequested - l.QuantityIssued
}

// InTransit is issued but not yet received.
func (l LineItem) InTransit() types.Quantity {
	return l.QuantityIssued - l.QuantityReceived
}

// ValuedQuantity is the quantity multiplied by UnitValue in the record total.
func (l LineItem) ValuedQuantity(k Kind) types.Quantity {
	if k == KindPhysicalInventory {
		return l.CountedQuantity
	}
	return l.QuantityRequested
}

// Actor is the caller of a workflow operation.
type Actor struct {
	UserID   string
	Roles    []string
	StoreIDs []id.ID
}

// New creates a draft record of the given kind.
func New(kind Kind, userID string, now time.Time) *Record {
	return &Record{
		BaseEntity: entity.NewBaseEntity(userID, now),
		Kind:       kind,
		Status:     StatusDraft,
		Date:       now,
		Priority:   PriorityNormal,
		TotalValue: decimal.Zero,
		Lines:      make([]LineItem, 0),
	}
}

// SetLines replaces the line items, numbering them in order, and recalculates totals.
func (r *Record) SetLines(lines []LineItem) {
	r.Lines = make([]LineItem, len(lines))
	for i, l := range lines {
		if id.IsNil(l.LineID) {
			l.LineID = id.New()
		}
		l.LineNo = i + 1
		r.Lines[i] = l
	}
	r.Recalculate()
}

// Recalculate derives TotalValue from the current line items.
func (r *Record) Recalculate() {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.ValuedQuantity(r.Kind).Times(l.UnitValue))
	}
	r.TotalValue = total
}

// LineIndex returns the position of productID in Lines, or -1.
func (r *Record) LineIndex(productID id.ID) int {
	for i := range r.Lines {
		if r.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// InitiatingStoreID is the store that authored the record.
func (r *Record) InitiatingStoreID() id.ID {
	switch {
	case r.Kind == KindPhysicalInventory:
		return deref(r.StoreID)
	case r.RequestType == RequestTypeIssue:
		return deref(r.IssuingStoreID)
	default:
		return deref(r.RequestingStoreID)
	}
}

// StoreRefs returns every store the record is scoped to.
func (r *Record) StoreRefs() []id.ID {
	if r.Kind == KindPhysicalInventory {
		return []id.ID{deref(r.StoreID)}
	}
	return []id.ID{deref(r.RequestingStoreID), deref(r.IssuingStoreID)}
}

// ContentMutable reports whether lines and header may still be edited.
func (r *Record) ContentMutable() bool {
	if r.Status == StatusDraft {
		return true
	}
	return r.Kind == KindPhysicalInventory && r.Status == StatusReturnedForCorrection
}

// Validate implements entity.Validatable for editable content.
func (r *Record) Validate(_ context.Context) error {
	return r.CheckContent()
}

// CheckContent validates header and line items.
func (r *Record) CheckContent() error {
	if !r.Kind.Valid() {
		return apperror.NewFieldValidation("kind", "unknown movement kind").WithDetail("value", r.Kind)
	}
	if !r.Priority.Valid() {
		return apperror.NewFieldValidation("priority", "unknown priority").WithDetail("value", r.Priority)
	}

	switch r.Kind {
	case KindPhysicalInventory:
		if r.StoreID == nil || id.IsNil(*r.StoreID) {
			return apperror.NewFieldValidation("storeId", "store is required")
		}
	case KindStoreRequestIssue:
		if r.RequestingStoreID == nil || id.IsNil(*r.RequestingStoreID) {
			return apperror.NewFieldValidation("requestingStoreId", "requesting store is required")
		}
		if r.IssuingStoreID == nil || id.IsNil(*r.IssuingStoreID) {
			return apperror.NewFieldValidation("issuingStoreId", "issuing store is required")
		}
		if *r.RequestingStoreID == *r.IssuingStoreID {
			return apperror.NewFieldValidation("issuingStoreId", "issuing store must differ from requesting store")
		}
		if !r.RequestType.Valid() {
			return apperror.NewFieldValidation("requestType", "request type must be request or issue").
				WithDetail("value", r.RequestType)
		}
	}

	return r.validateLines()
}

func (r *Record) validateLines() error {
	seen := make(map[id.ID]int, len(r.Lines))
	for i, l := range r.Lines {
		lineNo := i + 1
		if id.IsNil(l.ProductID) {
			return apperror.NewFieldValidation("lineItems.productId", "product is required").
				WithDetail("lineNo", lineNo)
		}
		if prev, dup := seen[l.ProductID]; dup {
			return apperror.NewFieldValidation("lineItems.productId", "duplicate product in line items").
				WithDetail("lineNo", lineNo).
				WithDetail("duplicateOf", prev).
				WithDetail("productId", l.ProductID.String())
		}
		seen[l.ProductID] = lineNo

		if l.UnitValue.IsNegative() {
			return apperror.NewFieldValidation("lineItems.unitValue", "unit value must not be negative").
				WithDetail("lineNo", lineNo)
		}

		if r.Kind == KindPhysicalInventory {
			if l.ExpectedQuantity.IsNegative() || l.CountedQuantity.IsNegative() {
				return apperror.NewFieldValidation("lineItems.countedQuantity", "quantities must not be negative").
					WithDetail("lineNo", lineNo)
			}
			continue
		}

		if !l.QuantityRequested.IsPositive() {
			return apperror.NewFieldValidation("lineItems.quantityRequested", "requested quantity must be positive").
				WithDetail("lineNo", lineNo)
		}
		if l.QuantityIssued > l.QuantityRequested || l.QuantityReceived > l.QuantityIssued {
			return apperror.NewFieldValidation("lineItems.quantityRequested", "requested quantity is below the issued quantity").
				WithDetail("lineNo", lineNo)
		}
	}
	return nil
}

func deref(p *id.ID) id.ID {
	if p == nil {
		return id.Nil()
	}
	return *p
}
