package numerator

import (
	"context"
	"sync"
	"time"
)

// Generator hands out reference numbers.
type Generator interface {
	// GetNextNumber returns the next number for cfg in period, e.g. PI-2026-00001.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber moves the sequence, used when importing existing records.
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}

// SequenceGenerator is an in-memory Generator for tests and local tooling.
type SequenceGenerator struct {
	mu   sync.Mutex
	next map[string]int64
}

// NewSequenceGenerator creates an empty in-memory generator.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{next: make(map[string]int64)}
}

// GetNextNumber implements Generator.
func (g *SequenceGenerator) GetNextNumber(_ context.Context, cfg Config, _ *Options, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := Key(cfg, period)
	g.next[key]++
	return Format(cfg, period, g.next[key]), nil
}

// SetNextNumber implements Generator.
func (g *SequenceGenerator) SetNextNumber(_ context.Context, cfg Config, period time.Time, value int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next[Key(cfg, period)] = value - 1
	return nil
}

var _ Generator = (*SequenceGenerator)(nil)
