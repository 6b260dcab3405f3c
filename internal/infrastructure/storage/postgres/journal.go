package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"storeflow/internal/core/id"
	"storeflow/internal/domain/approval"
	"storeflow/internal/domain/movement"
	"storeflow/internal/domain/workflow"
)

var _ approval.Journal = (*Journal)(nil)

// CompressionAlgo specifies how a snapshot is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const defaultCompressThreshold = 8 * 1024

// JournalEntry is one committed transition with the record as it was after it.
type JournalEntry struct {
	ID                 id.ID           `db:"id"`
	RecordID           id.ID           `db:"record_id"`
	Seq                int             `db:"seq"`
	Action             movement.Action `db:"action"`
	FromStatus         movement.Status `db:"from_status"`
	ToStatus           movement.Status `db:"to_status"`
	ActorID            string          `db:"actor_id"`
	Transition         json.RawMessage `db:"transition"`
	Snapshot           json.RawMessage `db:"snapshot"`
	SnapshotCompressed []byte          `db:"snapshot_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`
	CreatedAt          time.Time       `db:"created_at"`
}

// Journal appends transitions to movement_transitions.
// Snapshots above the threshold are stored zstd-compressed.
type Journal struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewJournal creates a journal. threshold <= 0 uses the default of 8KB.
func NewJournal(txManager *TxManager, threshold int) (*Journal, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = defaultCompressThreshold
	}
	return &Journal{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Append records t with a snapshot of rec. It must run in the transition's transaction.
func (j *Journal) Append(ctx context.Context, rec *movement.Record, t *workflow.Transition) error {
	entry, err := j.newEntry(rec, t)
	if err != nil {
		return err
	}

	_, err = j.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO movement_transitions (
			id, record_id, seq, action, from_status, to_status, actor_id,
			transition, snapshot, snapshot_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		entry.ID, entry.RecordID, entry.Seq, entry.Action, entry.FromStatus, entry.ToStatus, entry.ActorID,
		entry.Transition, entry.Snapshot, entry.SnapshotCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

func (j *Journal) newEntry(rec *movement.Record, t *workflow.Transition) (*JournalEntry, error) {
	transition, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal transition: %w", err)
	}
	snapshot, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	entry := &JournalEntry{
		ID:              id.New(),
		RecordID:        rec.ID,
		Seq:             t.Seq,
		Action:          t.Action,
		FromStatus:      t.From,
		ToStatus:        t.To,
		ActorID:         t.ActorID,
		Transition:      transition,
		Snapshot:        snapshot,
		CompressionAlgo: CompressionNone,
		CreatedAt:       t.At,
	}
	if len(snapshot) > j.compressThreshold {
		entry.SnapshotCompressed = j.encoder.EncodeAll(snapshot, nil)
		entry.Snapshot = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

// History returns the transitions of a record, oldest first.
func (j *Journal) History(ctx context.Context, recordID id.ID) ([]*workflow.Transition, error) {
	var rows []struct {
		Transition json.RawMessage `db:"transition"`
	}
	err := pgxscan.Select(ctx, j.txManager.GetQuerier(ctx), &rows, `
		SELECT transition FROM movement_transitions WHERE record_id = $1 ORDER BY seq
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}

	out := make([]*workflow.Transition, 0, len(rows))
	for _, r := range rows {
		var t workflow.Transition
		if err := json.Unmarshal(r.Transition, &t); err != nil {
			return nil, fmt.Errorf("decode transition: %w", err)
		}
		out = append(out, &t)
	}
	return out, nil
}

// Snapshot returns the record as it was right after transition seq.
func (j *Journal) Snapshot(ctx context.Context, recordID id.ID, seq int) (*movement.Record, error) {
	var entry JournalEntry
	err := pgxscan.Get(ctx, j.txManager.GetQuerier(ctx), &entry, `
		SELECT id, record_id, seq, action, from_status, to_status, actor_id,
		       transition, snapshot, snapshot_compressed, compression_algo, created_at
		FROM movement_transitions
		WHERE record_id = $1 AND seq = $2
	`, recordID, seq)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query journal entry: %w", err)
	}
	return j.decodeSnapshot(&entry)
}

func (j *Journal) decodeSnapshot(entry *JournalEntry) (*movement.Record, error) {
	raw := []byte(entry.Snapshot)
	if entry.CompressionAlgo == CompressionZstd {
		decompressed, err := j.decoder.DecodeAll(entry.SnapshotCompressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
		raw = decompressed
	}

	var rec movement.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &rec, nil
}
