package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/workflow"
)

func TestJournal_SnapshotCompression(t *testing.T) {
	j, err := NewJournal(nil, 256)
	require.NoError(t, err)

	rec := movement.New(movement.KindPhysicalInventory, "u1", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	tr := &workflow.Transition{Action: movement.ActionSubmit, From: movement.StatusDraft, To: movement.StatusSubmitted, Seq: 1, ActorID: "u1"}

	tests := []struct {
		name  string
		notes string
		algo  CompressionAlgo
	}{
		{name: "small snapshot stays plain", notes: "short", algo: CompressionNone},
		{name: "large snapshot is compressed", notes: strings.Repeat("counted twice ", 100), algo: CompressionZstd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.Notes = tt.notes
			entry, err := j.newEntry(rec, tr)
			require.NoError(t, err)
			assert.Equal(t, tt.algo, entry.CompressionAlgo)
			assert.Equal(t, rec.ID, entry.RecordID)
			assert.Equal(t, 1, entry.Seq)

			if tt.algo == CompressionZstd {
				assert.Nil(t, entry.Snapshot)
				assert.NotEmpty(t, entry.SnapshotCompressed)
			}

			back, err := j.decodeSnapshot(entry)
			require.NoError(t, err)
			assert.Equal(t, tt.notes, back.Notes)
			assert.Equal(t, rec.ID, back.ID)
		})
	}
}

func TestJournal_DefaultThreshold(t *testing.T) {
	j, err := NewJournal(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultCompressThreshold, j.compressThreshold)
}
