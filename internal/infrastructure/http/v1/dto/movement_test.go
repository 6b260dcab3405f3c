package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/movement"
)

func strPtr(s string) *string { return &s }

func TestDraftRequest_ToInput(t *testing.T) {
	req := DraftRequest{
		RequestingStoreID: strPtr("0b7c3f2e-5d7a-4c4b-9a59-1f2d8e6c0a11"),
		IssuingStoreID:    strPtr(""),
		LineItems: []LineRequest{
			{ProductID: "5a4f1c3e-8d2b-4e6f-a1b2-c3d4e5f60718", QuantityRequested: types.Qty(3), UnitValue: types.MustMoney("2.50")},
		},
	}

	in, err := req.ToInput()
	require.NoError(t, err)
	require.NotNil(t, in.RequestingStoreID)
	assert.Nil(t, in.IssuingStoreID)
	require.Len(t, in.Lines, 1)
	assert.Equal(t, types.Qty(3), in.Lines[0].QuantityRequested)

	req.LineItems[0].ProductID = "nope"
	_, err = req.ToInput()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "lineItems[0].productId", appErr.Details["field"])
}

func TestQuantitiesRequest_RequiresLines(t *testing.T) {
	_, err := QuantitiesRequest{}.ToLineQuantities()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestListQuery_ToFilter(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		kind    movement.Kind
		query   ListQuery
		check   func(t *testing.T, f movement.ListFilter)
		wantErr bool
	}{
		{
			name:  "defaults",
			kind:  movement.KindStoreRequestIssue,
			query: ListQuery{},
			check: func(t *testing.T, f movement.ListFilter) {
				assert.Equal(t, 50, f.Limit)
				assert.Equal(t, "-date", f.OrderBy)
				assert.Empty(t, f.Statuses)
			},
		},
		{
			name:  "comma separated statuses",
			kind:  movement.KindStoreRequestIssue,
			query: ListQuery{Status: []string{"submitted,approved", "partial_issued"}},
			check: func(t *testing.T, f movement.ListFilter) {
				assert.Equal(t, []movement.Status{
					movement.StatusSubmitted, movement.StatusApproved, movement.StatusPartialIssued,
				}, f.Statuses)
			},
		},
		{
			name:  "date to covers the whole day",
			kind:  movement.KindPhysicalInventory,
			query: ListQuery{DateTo: &day},
			check: func(t *testing.T, f movement.ListFilter) {
				require.NotNil(t, f.DateTo)
				assert.True(t, f.DateTo.After(day.Add(23*time.Hour)))
				assert.True(t, f.DateTo.Before(day.Add(24*time.Hour)))
			},
		},
		{
			name:    "status of another kind",
			kind:    movement.KindPhysicalInventory,
			query:   ListQuery{Status: []string{"partial_issued"}},
			wantErr: true,
		},
		{
			name:    "unknown view",
			kind:    movement.KindStoreRequestIssue,
			query:   ListQuery{View: "sideways"},
			wantErr: true,
		},
		{
			name:    "view on physical inventory",
			kind:    movement.KindPhysicalInventory,
			query:   ListQuery{View: movement.ViewIssue},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.query.ToFilter(tt.kind)
			if tt.wantErr {
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, f.Kind)
			tt.check(t, f)
		})
	}
}
