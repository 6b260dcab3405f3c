// Package entity holds the persistence-facing base shared by stored aggregates.
package entity

import (
	"context"
	"time"

	"storeflow/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains the identity, optimistic-lock version and authorship stamps.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version for optimistic locking (incremented by the repository on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy"`
}

// NewBaseEntity creates a new BaseEntity with generated ID, stamped by userID.
func NewBaseEntity(userID string, now time.Time) BaseEntity {
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: userID,
		UpdatedBy: userID,
	}
}

// Touch records a modification by userID.
func (b *BaseEntity) Touch(userID string, now time.Time) {
	b.UpdatedAt = now
	b.UpdatedBy = userID
}
