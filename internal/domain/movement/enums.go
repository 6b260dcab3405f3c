// Package movement provides the Movement Record: a physical inventory count or a
// store-to-store stock request/issue, with its line items and audit trail.
package movement

import "slices"

// Kind discriminates the two record variants.
type Kind string

const (
	KindPhysicalInventory Kind = "physical_inventory"
	KindStoreRequestIssue Kind = "store_request_issue"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindPhysicalInventory || k == KindStoreRequestIssue
}

// ReferencePrefix is the numbering prefix for the kind.
func (k Kind) ReferencePrefix() string {
	if k == KindPhysicalInventory {
		return "PI"
	}
	return "SR"
}

// Status is the single source of truth for which actions are legal.
type Status string

const (
	StatusDraft                  Status = "draft"
	StatusSubmitted              Status = "submitted"
	StatusApproved               Status = "approved"
	StatusRejected               Status = "rejected"
	StatusReturnedForCorrection  Status = "returned_for_correction"
	StatusFulfilled              Status = "fulfilled"
	StatusPartialIssued          Status = "partial_issued"
	StatusPartiallyReceived      Status = "partially_received"
	StatusCancelled              Status = "cancelled"
	StatusPartialIssuedCancelled Status = "partial_issued_cancelled"
)

var (
	physicalInventoryStatuses = []Status{
		StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusReturnedForCorrection,
	}
	storeRequestIssueStatuses = []Status{
		StatusDraft, StatusSubmitted, StatusApproved, StatusRejected,
		StatusFulfilled, StatusPartialIssued, StatusPartiallyReceived,
		StatusCancelled, StatusPartialIssuedCancelled,
	}

	// IssueViewStatuses are the only statuses shown in the issue view.
	IssueViewStatuses = []Status{
		StatusApproved, StatusFulfilled, StatusPartialIssued, StatusPartiallyReceived,
		StatusCancelled, StatusPartialIssuedCancelled,
	}
)

// Statuses lists every status of the kind.
func (k Kind) Statuses() []Status {
	switch k {
	case KindPhysicalInventory:
		return slices.Clone(physicalInventoryStatuses)
	case KindStoreRequestIssue:
		return slices.Clone(storeRequestIssueStatuses)
	}
	return nil
}

// ValidFor reports whether s belongs to the status set of kind k.
func (s Status) ValidFor(k Kind) bool {
	return slices.Contains(k.Statuses(), s)
}

// Action names a workflow operation. Transition actions move the status;
// create/update/delete act on drafts only.
type Action string

const (
	ActionCreate              Action = "create"
	ActionUpdate              Action = "update"
	ActionDelete              Action = "delete"
	ActionSubmit              Action = "submit"
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionReturnForCorrection Action = "return_for_correction"
	ActionFulfill             Action = "fulfill"
	ActionReceive             Action = "receive"
	ActionCancel              Action = "cancel"
	ActionAcceptVariance      Action = "accept_variance"
)

// RequestType distinguishes which store initiated a store request/issue.
type RequestType string

const (
	RequestTypeRequest RequestType = "request"
	RequestTypeIssue   RequestType = "issue"
)

func (t RequestType) Valid() bool {
	return t == RequestTypeRequest || t == RequestTypeIssue
}

// Priority is informational only.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// View selects which side of a store request/issue the caller is looking from.
type View string

const (
	// ViewAll is the union of the request and issue views.
	ViewAll     View = ""
	ViewRequest View = "request"
	ViewIssue   View = "issue"
)

func (v View) Valid() bool {
	return v == ViewAll || v == ViewRequest || v == ViewIssue
}
