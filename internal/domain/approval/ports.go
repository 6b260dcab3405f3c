// Package approval exposes the movement workflow operations: draft editing,
// transitions, listing with stats, and deletion.
package approval

import (
	"context"
	"time"

	"storeflow/internal/core/id"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/posting"
	"storeflow/internal/domain/scope"
	"storeflow/internal/domain/workflow"
)

// Repository persists movement records. Get methods load line items too.
type Repository interface {
	GetByID(ctx context.Context, recordID id.ID) (*movement.Record, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, recordID id.ID) (*movement.Record, error)
	Create(ctx context.Context, rec *movement.Record) error
	// Update writes the header with an optimistic version check and bumps Version.
	Update(ctx context.Context, rec *movement.Record) error
	SaveLines(ctx context.Context, recordID id.ID, lines []movement.LineItem) error
	Delete(ctx context.Context, recordID id.ID) error
	List(ctx context.Context, filter movement.ListFilter, rule scope.Rule) (movement.ListResult, error)
	// Summaries returns headers (no lines) of every record List matches, ignoring pagination.
	Summaries(ctx context.Context, filter movement.ListFilter, rule scope.Rule) ([]*movement.Record, error)
}

// Poster applies stock postings. Replaying a key must be a no-op.
type Poster interface {
	ApplyMovement(ctx context.Context, key posting.Key, entries []posting.Entry) error
}

// Journal stores committed transitions with a record snapshot.
type Journal interface {
	Append(ctx context.Context, rec *movement.Record, t *workflow.Transition) error
	History(ctx context.Context, recordID id.ID) ([]*workflow.Transition, error)
	// Snapshot returns the record right after transition seq, or nil if there is none.
	Snapshot(ctx context.Context, recordID id.ID, seq int) (*movement.Record, error)
}

// Event is written to the outbox in the transaction that produced it.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher writes events within the current transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// ReferenceData checks that referenced stores and products exist.
type ReferenceData interface {
	ValidateStores(ctx context.Context, storeIDs []id.ID) error
	ValidateProducts(ctx context.Context, productIDs []id.ID) error
}

// Observer receives operation outcomes, e.g. for metrics.
type Observer interface {
	ObserveOperation(kind movement.Kind, action movement.Action, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(movement.Kind, movement.Action, string, time.Duration) {}
