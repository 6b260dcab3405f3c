// Package workflow holds the per-kind state machines of movement records and the
// engine that applies transitions to them.
package workflow

import (
	"slices"

	"storeflow/internal/domain/movement"
)

// Edge is one legal transition. Edges with several targets resolve the
// final status from line quantities.
type Edge struct {
	From   movement.Status
	Action movement.Action
	To     []movement.Status
}

func e(from movement.Status, action movement.Action, to ...movement.Status) Edge {
	return Edge{From: from, Action: action, To: to}
}

var graphs = map[movement.Kind][]Edge{
	movement.KindPhysicalInventory: {
		e(movement.StatusDraft, movement.ActionSubmit, movement.StatusSubmitted),
		e(movement.StatusReturnedForCorrection, movement.ActionSubmit, movement.StatusSubmitted),
		e(movement.StatusSubmitted, movement.ActionApprove, movement.StatusApproved),
		e(movement.StatusSubmitted, movement.ActionReject, movement.StatusRejected),
		e(movement.StatusSubmitted, movement.ActionReturnForCorrection, movement.StatusReturnedForCorrection),
		e(movement.StatusApproved, movement.ActionAcceptVariance, movement.StatusApproved),
	},
	movement.KindStoreRequestIssue: {
		e(movement.StatusDraft, movement.ActionSubmit, movement.StatusSubmitted),
		e(movement.StatusSubmitted, movement.ActionApprove, movement.StatusApproved),
		e(movement.StatusSubmitted, movement.ActionReject, movement.StatusRejected),

		e(movement.StatusApproved, movement.ActionFulfill, movement.StatusPartialIssued, movement.StatusFulfilled),
		e(movement.StatusPartialIssued, movement.ActionFulfill, movement.StatusPartialIssued, movement.StatusFulfilled),
		e(movement.StatusPartiallyReceived, movement.ActionFulfill, movement.StatusPartiallyReceived),

		e(movement.StatusPartialIssued, movement.ActionReceive, movement.StatusPartiallyReceived, movement.StatusFulfilled),
		e(movement.StatusPartiallyReceived, movement.ActionReceive, movement.StatusPartiallyReceived, movement.StatusFulfilled),
		e(movement.StatusFulfilled, movement.ActionReceive, movement.StatusFulfilled),

		e(movement.StatusDraft, movement.ActionCancel, movement.StatusCancelled),
		e(movement.StatusSubmitted, movement.ActionCancel, movement.StatusCancelled),
		e(movement.StatusApproved, movement.ActionCancel, movement.StatusCancelled),
		e(movement.StatusPartialIssued, movement.ActionCancel, movement.StatusPartialIssuedCancelled),
	},
}

// Edges returns the transition table of kind.
func Edges(kind movement.Kind) []Edge {
	return slices.Clone(graphs[kind])
}

// Targets returns the statuses action may lead to from the given status.
func Targets(kind movement.Kind, from movement.Status, action movement.Action) ([]movement.Status, bool) {
	for _, edge := range graphs[kind] {
		if edge.From == from && edge.Action == action {
			return edge.To, true
		}
	}
	return nil, false
}

// Allowed reports whether action is legal for a record of kind in status.
// Draft edits and deletion are included.
func Allowed(kind movement.Kind, status movement.Status, action movement.Action) bool {
	switch action {
	case movement.ActionUpdate:
		return Editable(kind, status)
	case movement.ActionDelete:
		return status == movement.StatusDraft
	}
	_, ok := Targets(kind, status, action)
	return ok
}

// Editable reports whether record content may be changed in status.
func Editable(kind movement.Kind, status movement.Status) bool {
	if status == movement.StatusDraft {
		return true
	}
	return kind == movement.KindPhysicalInventory && status == movement.StatusReturnedForCorrection
}

// AvailableActions lists the actions legal from status, in table order.
func AvailableActions(kind movement.Kind, status movement.Status) []movement.Action {
	var out []movement.Action
	if Editable(kind, status) {
		out = append(out, movement.ActionUpdate)
	}
	if status == movement.StatusDraft {
		out = append(out, movement.ActionDelete)
	}
	for _, edge := range graphs[kind] {
		if edge.From == status && !slices.Contains(out, edge.Action) {
			out = append(out, edge.Action)
		}
	}
	return out
}

// Terminal reports whether no transition leaves status.
func Terminal(kind movement.Kind, status movement.Status) bool {
	for _, edge := range graphs[kind] {
		if edge.From == status {
			return false
		}
	}
	return true
}
