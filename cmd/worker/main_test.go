package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"storeflow/pkg/config"
	"storeflow/pkg/logger"
)

type fakeRelay struct {
	batches []int
	calls   int
	err     error
}

func (f *fakeRelay) ProcessBatch(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.batches) {
		return 0, nil
	}
	n := f.batches[f.calls]
	f.calls++
	return n, nil
}

func (f *fakeRelay) MoveToDLQ(context.Context) (int64, error) { return 0, nil }

type fakeKeys struct{ cleaned bool }

func (f *fakeKeys) CleanupExpired(context.Context) (int64, error) {
	f.cleaned = true
	return 3, nil
}

func TestProcessOutbox_DrainsFullBatches(t *testing.T) {
	tests := []struct {
		name      string
		batches   []int
		err       error
		wantCalls int
	}{
		{name: "partial batch stops", batches: []int{4}, wantCalls: 1},
		{name: "full batches continue", batches: []int{10, 10, 2}, wantCalls: 3},
		{name: "empty stops", batches: []int{10, 0}, wantCalls: 2},
		{name: "error stops", err: errors.New("db down"), wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &fakeRelay{batches: tt.batches, err: tt.err}
			w := NewWorker(relay, &fakeKeys{}, nil, config.WorkerConfig{OutboxBatchSize: 10}, logger.NewNop())
			w.processOutbox(context.Background())
			assert.Equal(t, tt.wantCalls, relay.calls)
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	keys := &fakeKeys{}
	w := NewWorker(&fakeRelay{}, keys, nil, config.WorkerConfig{}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)

	w.cleanupIdempotency(context.Background())
	assert.True(t, keys.cleaned)
}
