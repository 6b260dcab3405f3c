package movement

import (
	"strings"
	"time"
)

// ListFilter narrows a list of records of one kind. Scope is applied separately.
type ListFilter struct {
	Kind        Kind
	View        View
	Statuses    []Status
	DateFrom    *time.Time
	DateTo      *time.Time
	Search      string
	Priority    Priority
	RequestType RequestType

	// OrderBy is a column name, "-" prefixed for descending.
	OrderBy string

	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter(kind Kind) ListFilter {
	return ListFilter{
		Kind:    kind,
		OrderBy: "-date",
		Limit:   50,
	}
}

// Matches applies the non-scope criteria to a single record.
func (f ListFilter) Matches(r *Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
		return false
	}
	if f.DateFrom != nil && r.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && r.Date.After(*f.DateTo) {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.RequestType != "" && r.RequestType != f.RequestType {
		return false
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		needle := strings.ToLower(s)
		if !strings.Contains(strings.ToLower(r.ReferenceNumber), needle) &&
			!strings.Contains(strings.ToLower(r.Notes), needle) {
			return false
		}
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ListResult contains one page of records.
type ListResult struct {
	Records    []*Record `json:"records"`
	TotalCount int64     `json:"totalCount"`
	Limit      int       `json:"limit"`
	Offset     int       `json:"offset"`
}
