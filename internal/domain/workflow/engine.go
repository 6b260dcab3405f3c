package workflow

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/fulfillment"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/posting"
)

// Transition is the outcome of one applied action.
type Transition struct {
	Action  movement.Action `json:"action"`
	From    movement.Status `json:"from"`
	To      movement.Status `json:"to"`
	Seq     int             `json:"seq"`
	ActorID string          `json:"actorId"`
	Reason  string          `json:"reason,omitempty"`
	At      time.Time       `json:"at"`

	// Lines carries the quantities of a fulfill or receive event.
	Lines []fulfillment.LineQuantity `json:"lines,omitempty"`

	// Postings must be applied under PostingKey before the transition commits.
	Postings []posting.Entry `json:"postings,omitempty"`
}

// PostingKey is the idempotency key of the side effect.
func (t *Transition) PostingKey(recordID id.ID) posting.Key {
	return posting.Key{RecordID: recordID, Seq: t.Seq}
}

// VarianceLine overrides the accepted variance of one product.
type VarianceLine struct {
	ProductID id.ID          `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
}

// VarianceAcceptance is the input of AcceptVariance.
// Without lines the full counted-minus-expected difference of every line is accepted.
type VarianceAcceptance struct {
	Note  string
	Lines []VarianceLine
}

// Engine applies workflow actions to records in memory.
// It does not persist; callers commit the mutated record with the returned transition.
type Engine struct {
	policy *Policy
	now    func() time.Time
}

// NewEngine creates an engine using policy for authority checks.
func NewEngine(policy *Policy) *Engine {
	return &Engine{
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Authorize checks the actor's authority for action on rec.
func (e *Engine) Authorize(actor movement.Actor, rec *movement.Record, action movement.Action) error {
	return e.policy.Authorize(actor, rec, action)
}

// CheckAllowed returns InvalidTransition when action is illegal in rec's status.
func (e *Engine) CheckAllowed(rec *movement.Record, action movement.Action) error {
	if !Allowed(rec.Kind, rec.Status, action) {
		return apperror.NewInvalidTransition(string(rec.Kind), string(rec.Status), string(action))
	}
	return nil
}

func (e *Engine) begin(actor movement.Actor, rec *movement.Record, action movement.Action) ([]movement.Status, error) {
	targets, ok := Targets(rec.Kind, rec.Status, action)
	if !ok {
		return nil, apperror.NewInvalidTransition(string(rec.Kind), string(rec.Status), string(action))
	}
	if err := e.policy.Authorize(actor, rec, action); err != nil {
		return nil, err
	}
	return targets, nil
}

func (e *Engine) commit(
	actor movement.Actor,
	rec *movement.Record,
	action movement.Action,
	to movement.Status,
	at time.Time,
) *Transition {
	from := rec.Status
	rec.Status = to
	rec.TransitionSeq++
	rec.Touch(actor.UserID, at)
	rec.Recalculate()

	return &Transition{
		Action:  action,
		From:    from,
		To:      to,
		Seq:     rec.TransitionSeq,
		ActorID: actor.UserID,
		At:      at,
	}
}

// Submit sends a draft (or a returned physical inventory) for approval.
func (e *Engine) Submit(actor movement.Actor, rec *movement.Record) (*Transition, error) {
	targets, err := e.begin(actor, rec, movement.ActionSubmit)
	if err != nil {
		return nil, err
	}
	if len(rec.Lines) == 0 {
		return nil, apperror.NewFieldValidation("lineItems", "at least one line item is required to submit")
	}
	if err := rec.CheckContent(); err != nil {
		return nil, err
	}

	at := e.now()
	rec.SubmittedBy, rec.SubmittedAt = &actor.UserID, &at
	rec.ReturnReason = nil

	return e.commit(actor, rec, movement.ActionSubmit, targets[0], at), nil
}

// Approve accepts a submitted record. Approving a physical inventory posts
// the counted-minus-expected stock adjustment for every differing line.
func (e *Engine) Approve(actor movement.Actor, rec *movement.Record, notes string) (*Transition, error) {
	targets, err := e.begin(actor, rec, movement.ActionApprove)
	if err != nil {
		return nil, err
	}

	at := e.now()
	rec.ApprovedBy, rec.ApprovedAt = &actor.UserID, &at
	if n := strings.TrimSpace(notes); n != "" {
		rec.ApprovalNotes = &n
	}

	t := e.commit(actor, rec, movement.ActionApprove, targets[0], at)
	t.Reason = strings.TrimSpace(notes)
	if rec.Kind == movement.KindPhysicalInventory {
		store := *rec.StoreID
		for _, l := range rec.Lines {
			if v := l.Variance(); !v.IsZero() {
				t.Postings = append(t.Postings, posting.NewEntry(posting.KindStockAdjustment, store, l.ProductID, v, l.UnitValue))
			}
		}
	}
	return t, nil
}

// Reject closes a submitted record. A non-empty reason is required.
func (e *Engine) Reject(actor movement.Actor, rec *movement.Record, reason string) (*Transition, error) {
	targets, err := e.begin(actor, rec, movement.ActionReject)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.NewFieldValidation("reason", "rejection reason is required")
	}

	at := e.now()
	rec.RejectedBy, rec.RejectedAt, rec.RejectionReason = &actor.UserID, &at, &reason

	t := e.commit(actor, rec, movement.ActionReject, targets[0], at)
	t.Reason = reason
	return t, nil
}

// ReturnForCorrection sends a submitted physical inventory back to its author.
func (e *Engine) ReturnForCorrection(actor movement.Actor, rec *movement.Record, reason string) (*Transition, error) {
	targets, err := e.begin(actor, rec, movement.ActionReturnForCorrection)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.NewFieldValidation("reason", "return reason is required")
	}

	at := e.now()
	rec.ReturnedBy, rec.ReturnedAt, rec.ReturnReason = &actor.UserID, &at, &reason

	t := e.commit(actor, rec, movement.ActionReturnForCorrection, targets[0], at)
	t.Reason = reason
	return t, nil
}

// Fulfill records an issue event from the issuing store.
func (e *Engine) Fulfill(actor movement.Actor, rec *movement.Record, issues []fulfillment.LineQuantity) (*Transition, error) {
	targets, err := e.begin(actor, rec, movement.ActionFulfill)
	if err != nil {
		return nil, err
	}

	res, err := fulfillment.ApplyIssue(rec, issues)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(targets, res.Status) {
		return nil, apperror.NewInternal(fmt.Errorf("issue from %s resolved to unexpected status %s", rec.Status, res.Status))
	}

	at := e.now()
	rec.LastIssuedBy, rec.LastIssuedAt = &actor.UserID, &at
	if res.Status == movement.StatusFulfilled {
		rec.FulfilledBy, rec.FulfilledAt = &actor.UserID, &at
	}

	t := e.commit(actor, rec, movement.ActionFulfill, res.Status, at)
	t.Lines = res.Applied
	issuing := *rec.IssuingStoreID
	for _, q := range res.Applied {
		l := rec.Lines[rec.LineIndex(q.ProductID)]
		t.Postings = append(t.Postings, posting.NewEntry(posting.KindIssue, issuing, q.ProductID, -q.Quantity, l.UnitValue))
	}
	return t, nil
}

// Receive records a receipt event at the requesting store.
// A record already fulfilled by issue stays fulfilled while receipts arrive.
func (e *Engine) Receive(actor movement.Actor, rec *movement.Record, receipts []fulfillment.LineQuantity) (*Transition, error) {
	targets, err := e.begin(actor, rec, movement.ActionReceive)
	if err != nil {
		return nil, err
	}

	from := rec.Status
	res, err := fulfillment.ApplyReceipt(rec, receipts)
	if err != nil {
		return nil, err
	}
	to := res.Status
	if from == movement.StatusFulfilled {
		to = movement.StatusFulfilled
	}
	if !slices.Contains(targets, to) {
		return nil, apperror.NewInternal(fmt.Errorf("receipt from %s resolved to unexpected status %s", from, to))
	}

	at := e.now()
	rec.LastReceivedBy, rec.LastReceivedAt = &actor.UserID, &at
	if to == movement.StatusFulfilled && from != movement.StatusFulfilled {
		rec.FulfilledBy, rec.FulfilledAt = &actor.UserID, &at
	}

	t := e.commit(actor, rec, movement.ActionReceive, to, at)
	t.Lines = res.Applied
	requesting := *rec.RequestingStoreID
	for _, q := range res.Applied {
		l := rec.Lines[rec.LineIndex(q.ProductID)]
		t.Postings = append(t.Postings, posting.NewEntry(posting.KindReceipt, requesting, q.ProductID, q.Quantity, l.UnitValue))
	}
	return t, nil
}

// Cancel withdraws a store request. Cancelling after a partial issue keeps its own terminal status.
func (e *Engine) Cancel(actor movement.Actor, rec *movement.Record, reason string) (*Transition, error) {
	targets, err := e.begin(actor, rec, movement.ActionCancel)
	if err != nil {
		return nil, err
	}

	at := e.now()
	rec.CancelledBy, rec.CancelledAt = &actor.UserID, &at
	if r := strings.TrimSpace(reason); r != "" {
		rec.CancellationReason = &r
	}

	t := e.commit(actor, rec, movement.ActionCancel, targets[0], at)
	t.Reason = strings.TrimSpace(reason)
	return t, nil
}

// AcceptVariance books the count difference of an approved physical inventory. It runs once.
func (e *Engine) AcceptVariance(actor movement.Actor, rec *movement.Record, in VarianceAcceptance) (*Transition, error) {
	targets, err := e.begin(actor, rec, movement.ActionAcceptVariance)
	if err != nil {
		return nil, err
	}
	if rec.VarianceAcceptedAt != nil {
		return nil, apperror.NewInvalidTransition(string(rec.Kind), string(rec.Status), string(movement.ActionAcceptVariance)).
			WithDetail("reason", "variance already accepted")
	}

	accepted, err := resolveVariance(rec, in.Lines)
	if err != nil {
		return nil, err
	}

	at := e.now()
	rec.VarianceAcceptedBy, rec.VarianceAcceptedAt = &actor.UserID, &at
	if n := strings.TrimSpace(in.Note); n != "" {
		rec.VarianceNote = &n
	}

	store := *rec.StoreID
	var postings []posting.Entry
	for i := range rec.Lines {
		q, ok := accepted[i]
		if !ok {
			continue
		}
		rec.Lines[i].AcceptedVariance = &q
		postings = append(postings, posting.NewEntry(posting.KindVariance, store, rec.Lines[i].ProductID, q, rec.Lines[i].UnitValue))
	}

	t := e.commit(actor, rec, movement.ActionAcceptVariance, targets[0], at)
	t.Reason = strings.TrimSpace(in.Note)
	t.Postings = postings
	return t, nil
}

// resolveVariance maps line index to accepted variance. Overrides must have the sign of
// the line's variance and must not exceed it.
func resolveVariance(rec *movement.Record, overrides []VarianceLine) (map[int]types.Quantity, error) {
	out := make(map[int]types.Quantity)

	if len(overrides) == 0 {
		for i, l := range rec.Lines {
			if v := l.Variance(); !v.IsZero() {
				out[i] = v
			}
		}
	} else {
		for _, o := range overrides {
			idx := rec.LineIndex(o.ProductID)
			if idx < 0 {
				return nil, apperror.NewFieldValidation("lines.productId", "product is not on this record").
					WithDetail("productId", o.ProductID.String())
			}
			if _, dup := out[idx]; dup {
				return nil, apperror.NewFieldValidation("lines.productId", "product listed twice").
					WithDetail("productId", o.ProductID.String())
			}
			v := rec.Lines[idx].Variance()
			if o.Quantity.IsZero() || (o.Quantity.IsNegative() != v.IsNegative()) || o.Quantity.Abs() > v.Abs() {
				return nil, apperror.NewFieldValidation("lines.quantity", "accepted variance must lie between zero and the counted difference").
					WithDetail("productId", o.ProductID.String()).
					WithDetail("variance", v)
			}
			out[idx] = o.Quantity
		}
	}

	if len(out) == 0 {
		return nil, apperror.NewValidation("record has no variance to accept")
	}
	return out, nil
}
