package approval

import (
	"context"
	"fmt"
	"time"

	"storeflow/internal/core/apperror"
	"storeflow/internal/core/id"
	"storeflow/internal/core/numerator"
	"storeflow/internal/core/tx"
	"storeflow/internal/domain/fulfillment"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/scope"
	"storeflow/internal/domain/stats"
	"storeflow/internal/domain/workflow"
	"storeflow/pkg/logger"
)

const aggregateType = "movement"

// Deps wires the service collaborators. References and Observer are optional.
type Deps struct {
	Repo       Repository
	TxManager  tx.Manager
	Engine     *workflow.Engine
	Resolver   *scope.Resolver
	Numerator  numerator.Generator
	Poster     Poster
	Journal    Journal
	Events     EventPublisher
	References ReferenceData
	Observer   Observer
}

// Service implements the movement workflow operations.
// Every mutation runs in one transaction holding the record's row lock.
type Service struct {
	repo      Repository
	txManager tx.Manager
	engine    *workflow.Engine
	resolver  *scope.Resolver
	numerator numerator.Generator
	poster    Poster
	journal   Journal
	events    EventPublisher
	refs      ReferenceData
	observer  Observer
}

// NewService creates the approval service.
func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		txManager: d.TxManager,
		engine:    d.Engine,
		resolver:  d.Resolver,
		numerator: d.Numerator,
		poster:    d.Poster,
		journal:   d.Journal,
		events:    d.Events,
		refs:      d.References,
		observer:  d.Observer,
	}
	if s.resolver == nil {
		s.resolver = scope.NewResolver()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

func notFound(recordID id.ID) error {
	return apperror.NewNotFound(aggregateType, recordID.String())
}

// CreateDraft creates a record in draft with a fresh reference number.
func (s *Service) CreateDraft(ctx context.Context, actor movement.Actor, kind movement.Kind, in DraftInput) (_ *movement.Record, err error) {
	defer s.observe(kind, movement.ActionCreate, time.Now(), &err)

	if !kind.Valid() {
		return nil, apperror.NewFieldValidation("kind", "unknown movement kind")
	}

	rec := movement.New(kind, actor.UserID, s.engine.Now())
	in.applyScope(rec)
	in.applyContent(rec)

	if err := rec.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.engine.Authorize(actor, rec, movement.ActionCreate); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, kind, in); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(kind.ReferencePrefix()), nil, rec.Date)
		if err != nil {
			return fmt.Errorf("generate reference number: %w", err)
		}
		rec.ReferenceNumber = number

		if err := s.repo.Create(ctx, rec); err != nil {
			return fmt.Errorf("create record: %w", err)
		}
		if err := s.repo.SaveLines(ctx, rec.ID, rec.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.publish(ctx, "movement.created", rec, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement draft created", "id", rec.ID, "kind", kind, "number", rec.ReferenceNumber)
	return rec, nil
}

// UpdateDraft replaces the editable content of a draft (or of a physical inventory returned for correction).
func (s *Service) UpdateDraft(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, in DraftInput) (_ *movement.Record, err error) {
	defer s.observe(kind, movement.ActionUpdate, time.Now(), &err)

	var out *movement.Record
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.lockAccessible(ctx, actor, kind, recordID, movement.ActionUpdate)
		if err != nil {
			return err
		}
		if err := s.engine.CheckAllowed(rec, movement.ActionUpdate); err != nil {
			return err
		}
		if in.Version != 0 && in.Version != rec.Version {
			return apperror.NewConcurrentModification(aggregateType, recordID.String())
		}
		if err := s.engine.Authorize(actor, rec, movement.ActionUpdate); err != nil {
			return err
		}

		if err := in.checkScope(rec); err != nil {
			return err
		}

		in.applyContent(rec)
		if err := rec.Validate(ctx); err != nil {
			return err
		}
		if err := s.checkProducts(ctx, in); err != nil {
			return err
		}

		rec.Touch(actor.UserID, s.engine.Now())
		if err := s.repo.Update(ctx, rec); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		if err := s.repo.SaveLines(ctx, rec.ID, rec.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		out = rec
		return s.publish(ctx, "movement.updated", rec, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement draft updated", "id", out.ID, "version", out.Version)
	return out, nil
}

// Delete removes a draft. Records that left draft are kept as audit records.
func (s *Service) Delete(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID) (err error) {
	defer s.observe(kind, movement.ActionDelete, time.Now(), &err)

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.lockAccessible(ctx, actor, kind, recordID, movement.ActionDelete)
		if err != nil {
			return err
		}
		if err := s.engine.CheckAllowed(rec, movement.ActionDelete); err != nil {
			return err
		}
		if err := s.engine.Authorize(actor, rec, movement.ActionDelete); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, recordID); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		return s.publish(ctx, "movement.deleted", rec, nil)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "movement draft deleted", "id", recordID)
	return nil
}

// Submit sends a record for approval.
func (s *Service) Submit(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID) (*movement.Record, error) {
	return s.transition(ctx, actor, kind, recordID, movement.ActionSubmit, func(rec *movement.Record) (*workflow.Transition, error) {
		return s.engine.Submit(actor, rec)
	})
}

// Approve approves a submitted record.
func (s *Service) Approve(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, notes string) (*movement.Record, error) {
	return s.transition(ctx, actor, kind, recordID, movement.ActionApprove, func(rec *movement.Record) (*workflow.Transition, error) {
		return s.engine.Approve(actor, rec, notes)
	})
}

// Reject rejects a submitted record with a reason.
func (s *Service) Reject(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, reason string) (*movement.Record, error) {
	return s.transition(ctx, actor, kind, recordID, movement.ActionReject, func(rec *movement.Record) (*workflow.Transition, error) {
		return s.engine.Reject(actor, rec, reason)
	})
}

// ReturnForCorrection sends a submitted physical inventory back to its author.
func (s *Service) ReturnForCorrection(ctx context.Context, actor movement.Actor, recordID id.ID, reason string) (*movement.Record, error) {
	return s.transition(ctx, actor, movement.KindPhysicalInventory, recordID, movement.ActionReturnForCorrection,
		func(rec *movement.Record) (*workflow.Transition, error) {
			return s.engine.ReturnForCorrection(actor, rec, reason)
		})
}

// AcceptVariance books the count difference of an approved physical inventory.
func (s *Service) AcceptVariance(ctx context.Context, actor movement.Actor, recordID id.ID, in VarianceInput) (*movement.Record, error) {
	return s.transition(ctx, actor, movement.KindPhysicalInventory, recordID, movement.ActionAcceptVariance,
		func(rec *movement.Record) (*workflow.Transition, error) {
			return s.engine.AcceptVariance(actor, rec, in)
		})
}

// Fulfill records an issue event on a store request.
func (s *Service) Fulfill(ctx context.Context, actor movement.Actor, recordID id.ID, issues []fulfillment.LineQuantity) (*movement.Record, error) {
	return s.transition(ctx, actor, movement.KindStoreRequestIssue, recordID, movement.ActionFulfill,
		func(rec *movement.Record) (*workflow.Transition, error) {
			return s.engine.Fulfill(actor, rec, issues)
		})
}

// Receive records a receipt event on a store request.
func (s *Service) Receive(ctx context.Context, actor movement.Actor, recordID id.ID, receipts []fulfillment.LineQuantity) (*movement.Record, error) {
	return s.transition(ctx, actor, movement.KindStoreRequestIssue, recordID, movement.ActionReceive,
		func(rec *movement.Record) (*workflow.Transition, error) {
			return s.engine.Receive(actor, rec, receipts)
		})
}

// Cancel cancels a record.
func (s *Service) Cancel(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, reason string) (*movement.Record, error) {
	return s.transition(ctx, actor, kind, recordID, movement.ActionCancel, func(rec *movement.Record) (*workflow.Transition, error) {
		return s.engine.Cancel(actor, rec, reason)
	})
}

// transition runs one workflow action atomically: lock, apply, persist, journal,
// publish, then post side effects. A posting failure rolls everything back.
func (s *Service) transition(
	ctx context.Context,
	actor movement.Actor,
	kind movement.Kind,
	recordID id.ID,
	action movement.Action,
	apply func(rec *movement.Record) (*workflow.Transition, error),
) (_ *movement.Record, err error) {
	defer s.observe(kind, action, time.Now(), &err)

	var (
		out *movement.Record
		tr  *workflow.Transition
	)
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.lockAccessible(ctx, actor, kind, recordID, action)
		if err != nil {
			return err
		}

		t, err := apply(rec)
		if err != nil {
			return err
		}

		if err := s.repo.Update(ctx, rec); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		if touchesLines(action) {
			if err := s.repo.SaveLines(ctx, rec.ID, rec.Lines); err != nil {
				return fmt.Errorf("save lines: %w", err)
			}
		}
		if err := s.journal.Append(ctx, rec, t); err != nil {
			return fmt.Errorf("append journal: %w", err)
		}
		if err := s.publish(ctx, "movement."+string(action), rec, t); err != nil {
			return err
		}

		if len(t.Postings) > 0 {
			if err := s.poster.ApplyMovement(ctx, t.PostingKey(rec.ID), t.Postings); err != nil {
				return apperror.NewSideEffectFailed(err).
					WithDetail("record_id", rec.ID.String()).
					WithDetail("seq", t.Seq)
			}
		}

		out, tr = rec, t
		return nil
	})
	if err != nil {
		if apperror.HasCode(err, apperror.CodeSideEffectFailed) {
			logger.Warn(ctx, "movement transition rolled back", "id", recordID, "action", action, "error", err)
		}
		return nil, err
	}

	logger.Info(ctx, "movement transitioned",
		"id", out.ID,
		"number", out.ReferenceNumber,
		"action", action,
		"from", tr.From,
		"to", tr.To,
		"seq", tr.Seq,
		"postings", len(tr.Postings),
	)
	return out, nil
}

func touchesLines(action movement.Action) bool {
	switch action {
	case movement.ActionFulfill, movement.ActionReceive, movement.ActionAcceptVariance:
		return true
	}
	return false
}

// lockAccessible loads and locks the record. Records of another kind or outside the
// actor's reach are reported as not found.
func (s *Service) lockAccessible(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, action movement.Action) (*movement.Record, error) {
	rec, err := s.repo.GetForUpdate(ctx, recordID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, notFound(recordID)
		}
		return nil, fmt.Errorf("load record: %w", err)
	}
	if rec.Kind != kind || !s.resolver.CanAccess(actor, rec, action) {
		return nil, notFound(recordID)
	}
	return rec, nil
}

// Get returns a record visible to the actor.
func (s *Service) Get(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID) (*movement.Record, error) {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, notFound(recordID)
		}
		return nil, err
	}
	if rec.Kind != kind || !s.resolver.Visible(actor, rec, movement.ViewAll) {
		return nil, notFound(recordID)
	}
	return rec, nil
}

// History returns the committed transitions of a visible record, oldest first.
func (s *Service) History(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID) ([]*workflow.Transition, error) {
	if _, err := s.Get(ctx, actor, kind, recordID); err != nil {
		return nil, err
	}
	return s.journal.History(ctx, recordID)
}

// Snapshot returns a visible record as it was right after transition seq.
func (s *Service) Snapshot(ctx context.Context, actor movement.Actor, kind movement.Kind, recordID id.ID, seq int) (*movement.Record, error) {
	if _, err := s.Get(ctx, actor, kind, recordID); err != nil {
		return nil, err
	}
	rec, err := s.journal.Snapshot(ctx, recordID, seq)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperror.NewNotFound("transition", seq)
	}
	return rec, nil
}

// List returns one page of records visible to the actor and stats over every matching record.
// An actor without stores gets an empty page without touching storage.
func (s *Service) List(ctx context.Context, actor movement.Actor, filter movement.ListFilter) (*ListPage, error) {
	if !filter.Kind.Valid() {
		return nil, apperror.NewFieldValidation("kind", "unknown movement kind")
	}
	if !filter.View.Valid() {
		return nil, apperror.NewFieldValidation("view", "view must be request or issue")
	}

	rule := s.resolver.Rule(actor, filter.Kind, filter.View)
	if rule.Empty() {
		return &ListPage{
			ListResult: movement.ListResult{Records: []*movement.Record{}, Limit: filter.Limit, Offset: filter.Offset},
			Stats:      stats.Empty(filter.Kind),
		}, nil
	}

	page, err := s.repo.List(ctx, filter, rule)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	summaries, err := s.repo.Summaries(ctx, filter, rule)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}

	return &ListPage{
		ListResult: page,
		Stats:      stats.Aggregate(filter.Kind, summaries),
	}, nil
}

// AvailableActions lists what the actor may do next with rec.
func (s *Service) AvailableActions(actor movement.Actor, rec *movement.Record) []movement.Action {
	var out []movement.Action
	for _, a := range workflow.AvailableActions(rec.Kind, rec.Status) {
		if a == movement.ActionAcceptVariance && rec.VarianceAcceptedAt != nil {
			continue
		}
		if s.resolver.CanAccess(actor, rec, a) && s.engine.Authorize(actor, rec, a) == nil {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) checkReferences(ctx context.Context, kind movement.Kind, in DraftInput) error {
	if s.refs == nil {
		return nil
	}
	if err := s.refs.ValidateStores(ctx, in.storeRefs(kind)); err != nil {
		return err
	}
	return s.checkProducts(ctx, in)
}

func (s *Service) checkProducts(ctx context.Context, in DraftInput) error {
	if s.refs == nil || len(in.Lines) == 0 {
		return nil
	}
	return s.refs.ValidateProducts(ctx, in.productRefs())
}

// MovementEvent is the outbox payload of every movement event.
type MovementEvent struct {
	RecordID          id.ID           `json:"recordId"`
	Kind              movement.Kind   `json:"kind"`
	ReferenceNumber   string          `json:"referenceNumber"`
	Status            movement.Status `json:"status"`
	StoreID           *id.ID          `json:"storeId,omitempty"`
	RequestingStoreID *id.ID          `json:"requestingStoreId,omitempty"`
	IssuingStoreID    *id.ID          `json:"issuingStoreId,omitempty"`

	Transition *workflow.Transition `json:"transition,omitempty"`
}

func (s *Service) publish(ctx context.Context, eventType string, rec *movement.Record, t *workflow.Transition) error {
	if s.events == nil {
		return nil
	}
	err := s.events.Publish(ctx, Event{
		AggregateType: aggregateType,
		AggregateID:   rec.ID,
		EventType:     eventType,
		Payload: MovementEvent{
			RecordID:          rec.ID,
			Kind:              rec.Kind,
			ReferenceNumber:   rec.ReferenceNumber,
			Status:            rec.Status,
			StoreID:           rec.StoreID,
			RequestingStoreID: rec.RequestingStoreID,
			IssuingStoreID:    rec.IssuingStoreID,
			Transition:        t,
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (s *Service) observe(kind movement.Kind, action movement.Action, started time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = "error"
		if appErr, ok := apperror.AsAppError(*errp); ok {
			outcome = appErr.Code
		}
	}
	s.observer.ObserveOperation(kind, action, outcome, time.Since(started))
}
