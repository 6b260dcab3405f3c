// Package scope decides which movement records an actor may see and act on,
// based on the stores assigned to the actor.
package scope

import (
	"context"
	"slices"

	"storeflow/internal/core/apperror"
	appctx "storeflow/internal/core/context"
	"storeflow/internal/core/id"
	"storeflow/internal/domain/movement"
)

// Rule is the visibility predicate for one kind and view.
// Repositories translate it to SQL; Matches evaluates it in memory.
type Rule struct {
	Kind     movement.Kind
	View     movement.View
	StoreIDs []id.ID

	// IssueStatuses restricts the issue view. Issue-type records the issuing
	// store initiated itself reach it through the all view instead.
	IssueStatuses []movement.Status
}

// Empty reports a fail-closed rule: nothing is visible.
func (r Rule) Empty() bool {
	return len(r.StoreIDs) == 0
}

// Matches reports whether rec is visible under the rule.
func (r Rule) Matches(rec *movement.Record) bool {
	if r.Empty() || rec.Kind != r.Kind {
		return false
	}

	if rec.Kind == movement.KindPhysicalInventory {
		return r.has(rec.StoreID)
	}

	switch r.View {
	case movement.ViewRequest:
		return r.requestSide(rec)
	case movement.ViewIssue:
		return r.issueSide(rec)
	default:
		return r.requestSide(rec) || r.issueSide(rec) || r.initiatedSide(rec)
	}
}

func (r Rule) requestSide(rec *movement.Record) bool {
	return r.has(rec.RequestingStoreID)
}

func (r Rule) issueSide(rec *movement.Record) bool {
	return r.has(rec.IssuingStoreID) && slices.Contains(r.IssueStatuses, rec.Status)
}

// initiatedSide covers issue-type records, which the issuing store opens itself.
func (r Rule) initiatedSide(rec *movement.Record) bool {
	return rec.RequestType == movement.RequestTypeIssue && r.has(rec.IssuingStoreID)
}

func (r Rule) has(store *id.ID) bool {
	return store != nil && slices.Contains(r.StoreIDs, *store)
}

// Resolver derives visibility rules and per-record access for actors.
type Resolver struct{}

// NewResolver creates a scope resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Rule builds the list predicate for actor. An actor without stores gets an empty rule.
func (r *Resolver) Rule(actor movement.Actor, kind movement.Kind, view movement.View) Rule {
	if kind == movement.KindPhysicalInventory {
		view = movement.ViewAll
	}
	return Rule{
		Kind:          kind,
		View:          view,
		StoreIDs:      slices.Clone(actor.StoreIDs),
		IssueStatuses: slices.Clone(movement.IssueViewStatuses),
	}
}

// Visible reports whether rec appears in the actor's given view.
func (r *Resolver) Visible(actor movement.Actor, rec *movement.Record, view movement.View) bool {
	return r.Rule(actor, rec.Kind, view).Matches(rec)
}

// CanAccess reports whether the actor may address rec by id for action.
// A submitted request is invisible to the issuing store but still reachable there for a decision.
func (r *Resolver) CanAccess(actor movement.Actor, rec *movement.Record, action movement.Action) bool {
	if r.Visible(actor, rec, movement.ViewAll) {
		return true
	}
	if rec.Kind != movement.KindStoreRequestIssue || rec.Status != movement.StatusSubmitted {
		return false
	}
	if action != movement.ActionApprove && action != movement.ActionReject {
		return false
	}
	return rec.IssuingStoreID != nil && slices.Contains(actor.StoreIDs, *rec.IssuingStoreID)
}

// ActorFromContext builds the acting principal from the authenticated user.
func ActorFromContext(ctx context.Context) (movement.Actor, error) {
	user := appctx.GetUser(ctx)
	if user == nil || user.UserID == "" {
		return movement.Actor{}, apperror.NewUnauthorized("authentication required")
	}

	stores, err := id.ParseAll(user.StoreIDs)
	if err != nil {
		return movement.Actor{}, apperror.NewUnauthorized("malformed store assignment").WithCause(err)
	}

	return movement.Actor{
		UserID:   user.UserID,
		Roles:    slices.Clone(user.Roles),
		StoreIDs: stores,
	}, nil
}
