// Package stats aggregates movement record headers into dashboard counters.
// Counters are recomputed from the records on every call.
package stats

import (
	"github.com/shopspring/decimal"

	"storeflow/internal/core/types"
	"storeflow/internal/domain/movement"
)

// Stats holds per-status counts and the value of live records.
type Stats struct {
	Draft     int `json:"draft"`
	Submitted int `json:"submitted"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`

	ByStatus map[movement.Status]int `json:"byStatus"`
	Total    int                     `json:"total"`

	// TotalValue excludes cancelled and rejected records.
	TotalValue types.Money `json:"totalValue"`
}

// Empty returns zeroed stats with every status of kind present in ByStatus.
func Empty(kind movement.Kind) Stats {
	s := Stats{
		ByStatus:   make(map[movement.Status]int),
		TotalValue: decimal.Zero,
	}
	for _, st := range kind.Statuses() {
		s.ByStatus[st] = 0
	}
	return s
}

// Compute aggregates records that match filter. Records are expected to be scope-filtered already;
// pagination fields of the filter are ignored.
func Compute(records []*movement.Record, filter movement.ListFilter) Stats {
	matched := make([]*movement.Record, 0, len(records))
	for _, r := range records {
		if filter.Matches(r) {
			matched = append(matched, r)
		}
	}
	return Aggregate(filter.Kind, matched)
}

// Aggregate counts every record given. Callers that already applied the list
// filter in storage use it so the counters cover exactly the listed set.
func Aggregate(kind movement.Kind, records []*movement.Record) Stats {
	s := Empty(kind)

	for _, r := range records {
		s.Total++
		s.ByStatus[r.Status]++

		switch r.Status {
		case movement.StatusDraft:
			s.Draft++
		case movement.StatusSubmitted:
			s.Submitted++
		case movement.StatusApproved:
			s.Approved++
		case movement.StatusRejected:
			s.Rejected++
		}

		if countsTowardValue(r.Status) {
			s.TotalValue = s.TotalValue.Add(r.TotalValue)
		}
	}
	return s
}

func countsTowardValue(s movement.Status) bool {
	switch s {
	case movement.StatusCancelled, movement.StatusPartialIssuedCancelled, movement.StatusRejected:
		return false
	}
	return true
}
