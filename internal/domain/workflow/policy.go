package workflow

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/domain/movement"
)

const (
	exprOwnStore      = `record.storeId in actor.storeIds`
	exprInitiator     = `record.initiatingStoreId in actor.storeIds`
	exprIssuingStore  = `record.issuingStoreId in actor.storeIds`
	exprRequesting    = `record.requestingStoreId in actor.storeIds`
	exprApproverRoles = `"admin" in actor.roles || "manager" in actor.roles`
	exprCancel        = exprInitiator + ` || (record.status in ["approved", "partial_issued"] && (` +
		exprRequesting + ` || ` + exprIssuingStore + `))`
)

// DefaultPolicies maps "<kind>.<action>" to the CEL expression that must hold for the actor.
var DefaultPolicies = map[string]string{
	policyName(movement.KindPhysicalInventory, movement.ActionCreate):              exprOwnStore,
	policyName(movement.KindPhysicalInventory, movement.ActionUpdate):              exprOwnStore,
	policyName(movement.KindPhysicalInventory, movement.ActionDelete):              exprOwnStore,
	policyName(movement.KindPhysicalInventory, movement.ActionSubmit):              exprOwnStore,
	policyName(movement.KindPhysicalInventory, movement.ActionApprove):             exprApproverRoles,
	policyName(movement.KindPhysicalInventory, movement.ActionReject):              exprApproverRoles,
	policyName(movement.KindPhysicalInventory, movement.ActionReturnForCorrection): exprApproverRoles,
	policyName(movement.KindPhysicalInventory, movement.ActionAcceptVariance):      exprApproverRoles,

	policyName(movement.KindStoreRequestIssue, movement.ActionCreate):  exprInitiator,
	policyName(movement.KindStoreRequestIssue, movement.ActionUpdate):  exprInitiator,
	policyName(movement.KindStoreRequestIssue, movement.ActionDelete):  exprInitiator,
	policyName(movement.KindStoreRequestIssue, movement.ActionSubmit):  exprInitiator,
	policyName(movement.KindStoreRequestIssue, movement.ActionApprove): exprIssuingStore,
	policyName(movement.KindStoreRequestIssue, movement.ActionReject):  exprIssuingStore,
	policyName(movement.KindStoreRequestIssue, movement.ActionFulfill): exprIssuingStore,
	policyName(movement.KindStoreRequestIssue, movement.ActionReceive): exprRequesting,
	policyName(movement.KindStoreRequestIssue, movement.ActionCancel):  exprCancel,
}

func policyName(kind movement.Kind, action movement.Action) string {
	return string(kind) + "." + string(action)
}

// Policy evaluates compiled authority rules.
type Policy struct {
	programs map[string]cel.Program
}

// NewPolicy compiles DefaultPolicies with overrides applied on top.
// An unknown policy name or an expression that does not yield bool is an error.
func NewPolicy(overrides map[string]string) (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("actor", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	exprs := make(map[string]string, len(DefaultPolicies))
	for name, expr := range DefaultPolicies {
		exprs[name] = expr
	}
	for name, expr := range overrides {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, known := DefaultPolicies[name]; !known {
			return nil, fmt.Errorf("unknown policy %q", name)
		}
		exprs[name] = expr
	}

	p := &Policy{programs: make(map[string]cel.Program, len(exprs))}
	for name, expr := range exprs {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("policy %s: %w", name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("policy %s: expression must yield bool, got %s", name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", name, err)
		}
		p.programs[name] = prg
	}
	return p, nil
}

// MustDefaultPolicy compiles the default rules. For tests and wiring without overrides.
func MustDefaultPolicy() *Policy {
	p, err := NewPolicy(nil)
	if err != nil {
		panic(err)
	}
	return p
}

// Authorize returns Forbidden unless the actor satisfies the rule for action on rec.
// Actions without a rule are denied.
func (p *Policy) Authorize(actor movement.Actor, rec *movement.Record, action movement.Action) error {
	name := policyName(rec.Kind, action)
	prg, ok := p.programs[name]
	if !ok {
		return apperror.NewForbidden(fmt.Sprintf("action %s is not permitted on %s", action, rec.Kind))
	}

	out, _, err := prg.Eval(map[string]any{
		"actor":  actorVars(actor),
		"record": recordVars(rec),
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate policy %s: %w", name, err))
	}

	allowed, _ := out.Value().(bool)
	if !allowed {
		return apperror.NewForbidden(fmt.Sprintf("not allowed to %s this record", action)).
			WithDetail("action", string(action))
	}
	return nil
}

func actorVars(a movement.Actor) map[string]any {
	roles := a.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]any{
		"id":       a.UserID,
		"roles":    roles,
		"storeIds": id.Strings(a.StoreIDs),
	}
}

func recordVars(r *movement.Record) map[string]any {
	return map[string]any{
		"kind":              string(r.Kind),
		"status":            string(r.Status),
		"requestType":       string(r.RequestType),
		"storeId":           optionalID(r.StoreID),
		"requestingStoreId": optionalID(r.RequestingStoreID),
		"issuingStoreId":    optionalID(r.IssuingStoreID),
		"initiatingStoreId": idString(r.InitiatingStoreID()),
		"createdBy":         r.CreatedBy,
	}
}

func optionalID(v *id.ID) string {
	if v == nil {
		return ""
	}
	return idString(*v)
}

func idString(v id.ID) string {
	if id.IsNil(v) {
		return ""
	}
	return v.String()
}
