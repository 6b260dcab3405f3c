package movement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
)

func ptr(v id.ID) *id.ID { return &v }

func TestRecalculate(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("store request values requested quantity", func(t *testing.T) {
		r := New(KindStoreRequestIssue, "u1", now)
		r.SetLines([]LineItem{
			{ProductID: id.New(), QuantityRequested: types.Qty(10), QuantityIssued: types.Qty(4), UnitValue: types.MustMoney("2.50")},
			{ProductID: id.New(), QuantityRequested: types.Qty(3), UnitValue: types.MustMoney("1.00")},
		})
		assert.Equal(t, "28", r.TotalValue.String())
		assert.Equal(t, 1, r.Lines[0].LineNo)
		assert.Equal(t, 2, r.Lines[1].LineNo)
		assert.False(t, id.IsNil(r.Lines[0].LineID))
	})

	t.Run("physical inventory values counted quantity", func(t *testing.T) {
		r := New(KindPhysicalInventory, "u1", now)
		r.SetLines([]LineItem{
			{ProductID: id.New(), ExpectedQuantity: types.Qty(10), CountedQuantity: types.Qty(8), UnitValue: types.MustMoney("5")},
		})
		assert.Equal(t, "40", r.TotalValue.String())
		assert.Equal(t, types.Qty(-2), r.Lines[0].Variance())
	})
}

func TestValidate(t *testing.T) {
	now := time.Now()
	storeA, storeB := id.New(), id.New()
	product := id.New()

	tests := []struct {
		name    string
		build   func() *Record
		wantErr bool
		field   string
	}{
		{
			name: "valid physical inventory",
			build: func() *Record {
				r := New(KindPhysicalInventory, "u", now)
				r.StoreID = ptr(storeA)
				return r
			},
		},
		{
			name:    "physical inventory without store",
			build:   func() *Record { return New(KindPhysicalInventory, "u", now) },
			wantErr: true,
			field:   "storeId",
		},
		{
			name: "same requesting and issuing store",
			build: func() *Record {
				r := New(KindStoreRequestIssue, "u", now)
				r.RequestingStoreID, r.IssuingStoreID = ptr(storeA), ptr(storeA)
				r.RequestType = RequestTypeRequest
				return r
			},
			wantErr: true,
			field:   "issuingStoreId",
		},
		{
			name: "missing request type",
			build: func() *Record {
				r := New(KindStoreRequestIssue, "u", now)
				r.RequestingStoreID, r.IssuingStoreID = ptr(storeA), ptr(storeB)
				return r
			},
			wantErr: true,
			field:   "requestType",
		},
		{
			name: "duplicate product",
			build: func() *Record {
				r := New(KindStoreRequestIssue, "u", now)
				r.RequestingStoreID, r.IssuingStoreID = ptr(storeA), ptr(storeB)
				r.RequestType = RequestTypeRequest
				r.SetLines([]LineItem{
					{ProductID: product, QuantityRequested: types.Qty(1)},
					{ProductID: product, QuantityRequested: types.Qty(2)},
				})
				return r
			},
			wantErr: true,
			field:   "lineItems.productId",
		},
		{
			name: "zero requested quantity",
			build: func() *Record {
				r := New(KindStoreRequestIssue, "u", now)
				r.RequestingStoreID, r.IssuingStoreID = ptr(storeA), ptr(storeB)
				r.RequestType = RequestTypeIssue
				r.SetLines([]LineItem{{ProductID: product}})
				return r
			},
			wantErr: true,
			field:   "lineItems.quantityRequested",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate(context.Background())
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestInitiatingStore(t *testing.T) {
	req, iss := id.New(), id.New()
	r := &Record{Kind: KindStoreRequestIssue, RequestingStoreID: &req, IssuingStoreID: &iss, RequestType: RequestTypeRequest}
	assert.Equal(t, req, r.InitiatingStoreID())

	r.RequestType = RequestTypeIssue
	assert.Equal(t, iss, r.InitiatingStoreID())
}

func TestListFilterMatches(t *testing.T) {
	d := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	r := &Record{Kind: KindPhysicalInventory, Status: StatusSubmitted, Date: d, ReferenceNumber: "PI-2026-00007", Priority: PriorityHigh}

	from := d.AddDate(0, 0, -1)
	to := d.AddDate(0, 0, -1)

	assert.True(t, ListFilter{Kind: KindPhysicalInventory}.Matches(r))
	assert.True(t, ListFilter{Search: "pi-2026"}.Matches(r))
	assert.False(t, ListFilter{Search: "SR-"}.Matches(r))
	assert.True(t, ListFilter{DateFrom: &from}.Matches(r))
	assert.False(t, ListFilter{DateTo: &to}.Matches(r))
	assert.False(t, ListFilter{Statuses: []Status{StatusDraft}}.Matches(r))
	assert.False(t, ListFilter{Priority: PriorityLow}.Matches(r))
}
