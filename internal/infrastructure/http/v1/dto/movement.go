package dto

import (
	"fmt"
	"time"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/approval"
	"storeflow/internal/domain/fulfillment"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/stats"
	"storeflow/internal/domain/workflow"
)

// DraftRequest creates or updates a movement record.
type DraftRequest struct {
	Date     *time.Time        `json:"date"`
	Priority movement.Priority `json:"priority"`
	Notes    string            `json:"notes"`

	StoreID *string `json:"storeId"`

	RequestingStoreID *string              `json:"requestingStoreId"`
	IssuingStoreID    *string              `json:"issuingStoreId"`
	RequestType       movement.RequestType `json:"requestType"`

	LineItems []LineRequest `json:"lineItems"`

	// Version is required on update.
	Version int `json:"version"`
}

// LineRequest is one line of a draft.
type LineRequest struct {
	ProductID         string         `json:"productId"`
	QuantityRequested types.Quantity `json:"quantityRequested"`
	ExpectedQuantity  types.Quantity `json:"expectedQuantity"`
	CountedQuantity   types.Quantity `json:"countedQuantity"`
	UnitValue         types.Money    `json:"unitValue"`
}

// ToInput converts the request to the service input.
func (r DraftRequest) ToInput() (approval.DraftInput, error) {
	in := approval.DraftInput{
		Date:        r.Date,
		Priority:    r.Priority,
		Notes:       r.Notes,
		RequestType: r.RequestType,
		Version:     r.Version,
	}

	var err error
	if in.StoreID, err = parseOptionalID("storeId", r.StoreID); err != nil {
		return in, err
	}
	if in.RequestingStoreID, err = parseOptionalID("requestingStoreId", r.RequestingStoreID); err != nil {
		return in, err
	}
	if in.IssuingStoreID, err = parseOptionalID("issuingStoreId", r.IssuingStoreID); err != nil {
		return in, err
	}

	in.Lines = make([]approval.LineInput, 0, len(r.LineItems))
	for i, l := range r.LineItems {
		productID, err := parseID(fmt.Sprintf("lineItems[%d].productId", i), l.ProductID)
		if err != nil {
			return in, err
		}
		in.Lines = append(in.Lines, approval.LineInput{
			ProductID:         productID,
			QuantityRequested: l.QuantityRequested,
			ExpectedQuantity:  l.ExpectedQuantity,
			CountedQuantity:   l.CountedQuantity,
			UnitValue:         l.UnitValue,
		})
	}
	return in, nil
}

// ApproveRequest carries optional approval notes.
type ApproveRequest struct {
	Notes string `json:"notes"`
}

// ReasonRequest is the body of reject, cancel and return for correction.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// QuantitiesRequest is the body of fulfill and receive.
type QuantitiesRequest struct {
	Lines []QuantityLine `json:"lines"`
}

// QuantityLine is the quantity for one product.
type QuantityLine struct {
	ProductID string         `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
}

// ToLineQuantities converts the request lines.
func (r QuantitiesRequest) ToLineQuantities() ([]fulfillment.LineQuantity, error) {
	if len(r.Lines) == 0 {
		return nil, apperror.NewFieldValidation("lines", "at least one line is required")
	}
	out := make([]fulfillment.LineQuantity, 0, len(r.Lines))
	for i, l := range r.Lines {
		productID, err := parseID(fmt.Sprintf("lines[%d].productId", i), l.ProductID)
		if err != nil {
			return nil, err
		}
		out = append(out, fulfillment.LineQuantity{ProductID: productID, Quantity: l.Quantity})
	}
	return out, nil
}

// VarianceRequest accepts the counted-vs-expected variance of a physical inventory.
// Without lines the full variance of every line is accepted.
type VarianceRequest struct {
	Note  string         `json:"note"`
	Lines []QuantityLine `json:"lines"`
}

// ToInput converts the request to the service input.
func (r VarianceRequest) ToInput() (approval.VarianceInput, error) {
	in := approval.VarianceInput{Note: r.Note}
	for i, l := range r.Lines {
		productID, err := parseID(fmt.Sprintf("lines[%d].productId", i), l.ProductID)
		if err != nil {
			return in, err
		}
		in.Lines = append(in.Lines, workflow.VarianceLine{ProductID: productID, Quantity: l.Quantity})
	}
	return in, nil
}

// ListQuery holds list query parameters.
type ListQuery struct {
	PaginationRequest
	View        movement.View        `form:"view"`
	Status      []string             `form:"status"`
	DateFrom    *time.Time           `form:"dateFrom" time_format:"2006-01-02"`
	DateTo      *time.Time           `form:"dateTo" time_format:"2006-01-02"`
	Search      string               `form:"search"`
	Priority    movement.Priority    `form:"priority"`
	RequestType movement.RequestType `form:"requestType"`
	OrderBy     string               `form:"orderBy"`
}

// ToFilter converts the query to a list filter of kind.
func (q ListQuery) ToFilter(kind movement.Kind) (movement.ListFilter, error) {
	q.Defaults()
	f := movement.DefaultListFilter(kind)
	f.View = q.View
	f.DateFrom = q.DateFrom
	f.Search = q.Search
	f.Priority = q.Priority
	f.RequestType = q.RequestType
	f.Limit = q.Limit
	f.Offset = q.Offset
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.DateTo != nil {
		// inclusive end of day
		end := q.DateTo.Add(24*time.Hour - time.Nanosecond)
		f.DateTo = &end
	}

	if !f.View.Valid() {
		return f, apperror.NewFieldValidation("view", "unknown view")
	}
	if kind == movement.KindPhysicalInventory && f.View != movement.ViewAll {
		return f, apperror.NewFieldValidation("view", "physical inventory has no views")
	}

	for _, s := range splitList(q.Status) {
		status := movement.Status(s)
		if !status.ValidFor(kind) {
			return f, apperror.NewFieldValidation("status", "unknown status").WithDetail("status", s)
		}
		f.Statuses = append(f.Statuses, status)
	}
	return f, nil
}

// MovementResponse is a record plus the actions the caller may take next.
type MovementResponse struct {
	*movement.Record
	AvailableActions []movement.Action `json:"availableActions"`
}

// MovementListResponse is a page of records with stats of the whole filtered set.
type MovementListResponse struct {
	Records    []*movement.Record `json:"records"`
	Pagination PaginationResponse `json:"pagination"`
	Stats      stats.Stats        `json:"stats"`
}

// FromListPage builds the list response.
func FromListPage(p *approval.ListPage) MovementListResponse {
	items := p.Records
	if items == nil {
		items = []*movement.Record{}
	}
	return MovementListResponse{
		Records: items,
		Pagination: PaginationResponse{
			Limit:      p.Limit,
			Offset:     p.Offset,
			TotalCount: p.TotalCount,
		},
		Stats: p.Stats,
	}
}

// HistoryResponse lists committed transitions, oldest first.
type HistoryResponse struct {
	Items []*workflow.Transition `json:"items"`
}
