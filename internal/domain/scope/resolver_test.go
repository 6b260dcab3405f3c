package scope

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeflow/internal/core/apperror"
	appctx "storeflow/internal/core/context"
	"storeflow/internal/core/id"
	"storeflow/internal/domain/movement"
)

func sri(req, iss id.ID, rt movement.RequestType, st movement.Status) *movement.Record {
	return &movement.Record{
		Kind:              movement.KindStoreRequestIssue,
		RequestingStoreID: &req,
		IssuingStoreID:    &iss,
		RequestType:       rt,
		Status:            st,
	}
}

func TestVisible_StoreRequestIssue(t *testing.T) {
	storeA, storeB, storeC := id.New(), id.New(), id.New()
	res := NewResolver()

	atA := movement.Actor{UserID: "a", StoreIDs: []id.ID{storeA}}
	atB := movement.Actor{UserID: "b", StoreIDs: []id.ID{storeB}}
	atC := movement.Actor{UserID: "c", StoreIDs: []id.ID{storeC}}

	tests := []struct {
		name   string
		actor  movement.Actor
		rec    *movement.Record
		view   movement.View
		expect bool
	}{
		{"requester sees own draft", atA, sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusDraft), movement.ViewRequest, true},
		{"issuer does not see submitted request", atB, sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusSubmitted), movement.ViewIssue, false},
		{"issuer sees approved request", atB, sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusApproved), movement.ViewIssue, true},
		{"issue view hides own issue draft", atB, sri(storeA, storeB, movement.RequestTypeIssue, movement.StatusDraft), movement.ViewIssue, false},
		{"issue view hides own submitted issue", atB, sri(storeA, storeB, movement.RequestTypeIssue, movement.StatusSubmitted), movement.ViewIssue, false},
		{"issue view hides own rejected issue", atB, sri(storeA, storeB, movement.RequestTypeIssue, movement.StatusRejected), movement.ViewIssue, false},
		{"issue view shows approved issue", atB, sri(storeA, storeB, movement.RequestTypeIssue, movement.StatusApproved), movement.ViewIssue, true},
		{"initiator sees own issue draft in all view", atB, sri(storeA, storeB, movement.RequestTypeIssue, movement.StatusDraft), movement.ViewAll, true},
		{"initiator sees own rejected issue in all view", atB, sri(storeA, storeB, movement.RequestTypeIssue, movement.StatusRejected), movement.ViewAll, true},
		{"rejected request stays hidden from issuer", atB, sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusRejected), movement.ViewAll, false},
		{"issuer request view excludes issue side", atB, sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusApproved), movement.ViewRequest, false},
		{"all view is the union", atB, sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusFulfilled), movement.ViewAll, true},
		{"unrelated store sees nothing", atC, sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusApproved), movement.ViewAll, false},
		{"no stores fails closed", movement.Actor{UserID: "x"}, sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusApproved), movement.ViewAll, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, res.Visible(tt.actor, tt.rec, tt.view))
		})
	}
}

func TestVisible_PhysicalInventory(t *testing.T) {
	store, other := id.New(), id.New()
	rec := &movement.Record{Kind: movement.KindPhysicalInventory, StoreID: &store, Status: movement.StatusSubmitted}
	res := NewResolver()

	assert.True(t, res.Visible(movement.Actor{StoreIDs: []id.ID{store}}, rec, movement.ViewIssue))
	assert.False(t, res.Visible(movement.Actor{StoreIDs: []id.ID{other}}, rec, movement.ViewAll))
}

func TestCanAccess_SubmittedRequestDecision(t *testing.T) {
	storeA, storeB := id.New(), id.New()
	res := NewResolver()
	issuer := movement.Actor{UserID: "b", StoreIDs: []id.ID{storeB}}
	rec := sri(storeA, storeB, movement.RequestTypeRequest, movement.StatusSubmitted)

	assert.True(t, res.CanAccess(issuer, rec, movement.ActionApprove))
	assert.True(t, res.CanAccess(issuer, rec, movement.ActionReject))
	assert.False(t, res.CanAccess(issuer, rec, movement.ActionCancel))
	assert.False(t, res.CanAccess(movement.Actor{StoreIDs: []id.ID{id.New()}}, rec, movement.ActionApprove))

	rec.Status = movement.StatusDraft
	assert.False(t, res.CanAccess(issuer, rec, movement.ActionApprove))
}

func TestCanAccess_OwnIssueDraft(t *testing.T) {
	storeA, storeB := id.New(), id.New()
	res := NewResolver()
	issuer := movement.Actor{UserID: "b", StoreIDs: []id.ID{storeB}}
	rec := sri(storeA, storeB, movement.RequestTypeIssue, movement.StatusDraft)

	assert.True(t, res.CanAccess(issuer, rec, movement.ActionUpdate))
	assert.True(t, res.CanAccess(issuer, rec, movement.ActionSubmit))
	assert.False(t, res.Visible(issuer, rec, movement.ViewIssue))
}

func TestRule_IssueViewOnlyIssueStatuses(t *testing.T) {
	storeA, storeB := id.New(), id.New()
	rule := NewResolver().Rule(movement.Actor{UserID: "b", StoreIDs: []id.ID{storeB}}, movement.KindStoreRequestIssue, movement.ViewIssue)

	for _, st := range movement.KindStoreRequestIssue.Statuses() {
		for _, rt := range []movement.RequestType{movement.RequestTypeRequest, movement.RequestTypeIssue} {
			want := slices.Contains(movement.IssueViewStatuses, st)
			assert.Equal(t, want, rule.Matches(sri(storeA, storeB, rt, st)), "%s %s", rt, st)
		}
	}
}

func TestRule_Empty(t *testing.T) {
	rule := NewResolver().Rule(movement.Actor{UserID: "x"}, movement.KindStoreRequestIssue, movement.ViewAll)
	assert.True(t, rule.Empty())
}

func TestActorFromContext(t *testing.T) {
	_, err := ActorFromContext(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))

	store := id.New()
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:   "u1",
		Roles:    []string{"manager"},
		StoreIDs: []string{store.String()},
	})
	actor, err := ActorFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", actor.UserID)
	assert.Equal(t, []id.ID{store}, actor.StoreIDs)

	bad := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u1", StoreIDs: []string{"nope"}})
	_, err = ActorFromContext(bad)
	assert.Error(t, err)
}
