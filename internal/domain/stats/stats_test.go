package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/scope"
)

func rec(status movement.Status, value string, date time.Time, ref string) *movement.Record {
	return &movement.Record{
		Kind:            movement.KindStoreRequestIssue,
		Status:          status,
		TotalValue:      types.MustMoney(value),
		Date:            date,
		ReferenceNumber: ref,
	}
}

func TestCompute(t *testing.T) {
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	records := []*movement.Record{
		rec(movement.StatusDraft, "10", jan, "SR-2026-00001"),
		rec(movement.StatusSubmitted, "20", jan, "SR-2026-00002"),
		rec(movement.StatusApproved, "30", feb, "SR-2026-00003"),
		rec(movement.StatusRejected, "40", feb, "SR-2026-00004"),
		rec(movement.StatusCancelled, "50", feb, "SR-2026-00005"),
		rec(movement.StatusPartialIssuedCancelled, "60", feb, "SR-2026-00006"),
		rec(movement.StatusPartialIssued, "70", feb, "SR-2026-00007"),
	}

	t.Run("all records", func(t *testing.T) {
		s := Compute(records, movement.ListFilter{Kind: movement.KindStoreRequestIssue})
		assert.Equal(t, 7, s.Total)
		assert.Equal(t, 1, s.Draft)
		assert.Equal(t, 1, s.Submitted)
		assert.Equal(t, 1, s.Approved)
		assert.Equal(t, 1, s.Rejected)
		assert.Equal(t, 1, s.ByStatus[movement.StatusPartialIssuedCancelled])
		assert.Equal(t, 0, s.ByStatus[movement.StatusFulfilled])
		assert.Equal(t, "130", s.TotalValue.String())
	})

	t.Run("date range", func(t *testing.T) {
		from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		s := Compute(records, movement.ListFilter{Kind: movement.KindStoreRequestIssue, DateFrom: &from})
		assert.Equal(t, 5, s.Total)
		assert.Equal(t, 0, s.Draft)
		assert.Equal(t, "100", s.TotalValue.String())
	})

	t.Run("search", func(t *testing.T) {
		s := Compute(records, movement.ListFilter{Kind: movement.KindStoreRequestIssue, Search: "00003"})
		assert.Equal(t, 1, s.Total)
		assert.Equal(t, 1, s.Approved)
	})

	t.Run("recomputed on every call", func(t *testing.T) {
		first := Compute(records, movement.ListFilter{Kind: movement.KindStoreRequestIssue})
		records[0].Status = movement.StatusSubmitted
		second := Compute(records, movement.ListFilter{Kind: movement.KindStoreRequestIssue})
		records[0].Status = movement.StatusDraft
		assert.Equal(t, 1, first.Draft)
		assert.Equal(t, 0, second.Draft)
		assert.Equal(t, 2, second.Submitted)
	})
}

func TestAggregate_CountsEveryRecord(t *testing.T) {
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	records := []*movement.Record{
		rec(movement.StatusDraft, "10", jan, "SR-2026-00001"),
		rec(movement.StatusRejected, "40", jan, "SR-2026-00002"),
		rec(movement.StatusFulfilled, "5", jan, "SR-2026-00003"),
	}

	s := Aggregate(movement.KindStoreRequestIssue, records)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Draft)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 1, s.ByStatus[movement.StatusFulfilled])
	assert.Equal(t, "15", s.TotalValue.String())

	empty := Aggregate(movement.KindPhysicalInventory, nil)
	assert.Zero(t, empty.Total)
	assert.Contains(t, empty.ByStatus, movement.StatusReturnedForCorrection)
}

func TestCompute_NoStoresFailsClosed(t *testing.T) {
	storeA, storeB := id.New(), id.New()
	var all []*movement.Record
	for i := 0; i < 20; i++ {
		r := rec(movement.StatusApproved, "1", time.Now(), "")
		r.RequestingStoreID, r.IssuingStoreID = &storeA, &storeB
		r.RequestType = movement.RequestTypeRequest
		all = append(all, r)
	}

	rule := scope.NewResolver().Rule(movement.Actor{UserID: "nobody"}, movement.KindStoreRequestIssue, movement.ViewAll)
	var visible []*movement.Record
	for _, r := range all {
		if rule.Matches(r) {
			visible = append(visible, r)
		}
	}

	s := Compute(visible, movement.ListFilter{Kind: movement.KindStoreRequestIssue})
	assert.Empty(t, visible)
	assert.Equal(t, 0, s.Total)
	assert.True(t, s.TotalValue.IsZero())
}
