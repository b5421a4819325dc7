// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
	"millstock/internal/domain/maintenance"
)

// SnapshotKind classifies what produced a recovery snapshot.
type SnapshotKind string

const (
	// SnapshotKindCleanup is written before cleanup deletes rows
	SnapshotKindCleanup SnapshotKind = "cleanup"
	// SnapshotKindBackfill is written before a backfill mutates rows
	SnapshotKindBackfill SnapshotKind = "backfill"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// RecoverySnapshot preserves one row as it was before a destructive
// maintenance operation touched it. Restore re-inserts the payload;
// snapshots are never deleted by the application.
type RecoverySnapshot struct {
	ID                id.ID           `db:"id"`
	BatchID           id.ID           `db:"batch_id"`
	Kind              SnapshotKind    `db:"kind"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	Reason            string          `db:"reason"`
	CreatedBy         string          `db:"created_by"`
	CreatedAt         time.Time       `db:"created_at"`
}

// BatchSummary describes one snapshot batch for listings.
type BatchSummary struct {
	BatchID    id.ID        `db:"batch_id" json:"batchId"`
	Kind       SnapshotKind `db:"kind" json:"kind"`
	EntityType string       `db:"entity_type" json:"entityType"`
	Count      int64        `db:"count" json:"count"`
	Reason     string       `db:"reason" json:"reason"`
	CreatedBy  string       `db:"created_by" json:"createdBy"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
}

// RecoveryStore persists pre-operation snapshots in sys_recovery_snapshots.
// Large payloads are zstd-compressed; the store is transparent about it and
// always returns decompressed payloads.
type RecoveryStore struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes, default 10KB
}

// NewRecoveryStore creates a new recovery snapshot store.
func NewRecoveryStore(txManager *TxManager) (*RecoveryStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &RecoveryStore{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// Save records one snapshot. Must run inside the same transaction as the
// destructive operation, so a failed cleanup leaves no snapshots behind.
func (s *RecoveryStore) Save(ctx context.Context, snap RecoverySnapshot) error {
	if user := appctx.GetUser(ctx); user != nil && snap.CreatedBy == "" {
		snap.CreatedBy = user.UserID
	}

	if id.IsNil(snap.ID) {
		snap.ID = id.New()
	}

	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	// Compress large payloads
	snap.CompressionAlgo = CompressionNone
	if len(snap.Payload) > s.compressThreshold {
		snap.PayloadCompressed = s.encoder.EncodeAll(snap.Payload, nil)
		snap.Payload = nil
		snap.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO sys_recovery_snapshots (
			id, batch_id, kind, entity_type, entity_id,
			payload, payload_compressed, compression_algo, reason,
			created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		snap.ID, snap.BatchID, snap.Kind, snap.EntityType, snap.EntityID,
		snap.Payload, snap.PayloadCompressed, snap.CompressionAlgo, snap.Reason,
		snap.CreatedBy, snap.CreatedAt,
	)

	return err
}

// SaveRows snapshots a set of rows under one batch ID.
// Each row map must contain an "id" the row can be identified by later.
func (s *RecoveryStore) SaveRows(
	ctx context.Context,
	batchID id.ID,
	kind SnapshotKind,
	entityType string,
	reason string,
	rows []map[string]any,
) error {
	for i, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal snapshot row %d: %w", i, err)
		}

		entityID, err := rowEntityID(row)
		if err != nil {
			return fmt.Errorf("snapshot row %d: %w", i, err)
		}

		err = s.Save(ctx, RecoverySnapshot{
			BatchID:    batchID,
			Kind:       kind,
			EntityType: entityType,
			EntityID:   entityID,
			Payload:    payload,
			Reason:     reason,
		})
		if err != nil {
			return fmt.Errorf("save snapshot row %d: %w", i, err)
		}
	}
	return nil
}

// GetBatch retrieves all snapshots of a batch with payloads decompressed.
func (s *RecoveryStore) GetBatch(ctx context.Context, batchID id.ID) ([]RecoverySnapshot, error) {
	sql := `
		SELECT id, batch_id, kind, entity_type, entity_id,
			   payload, payload_compressed, compression_algo, reason,
			   created_by, created_at
		FROM sys_recovery_snapshots
		WHERE batch_id = $1
		ORDER BY created_at, id
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, batchID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot batch: %w", err)
	}
	defer rows.Close()

	var snaps []RecoverySnapshot
	for rows.Next() {
		var snap RecoverySnapshot
		err := rows.Scan(
			&snap.ID, &snap.BatchID, &snap.Kind, &snap.EntityType, &snap.EntityID,
			&snap.Payload, &snap.PayloadCompressed, &snap.CompressionAlgo, &snap.Reason,
			&snap.CreatedBy, &snap.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		if snap.CompressionAlgo == CompressionZstd && len(snap.PayloadCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(snap.PayloadCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress snapshot payload: %w", err)
			}
			snap.Payload = decompressed
			snap.PayloadCompressed = nil
		}

		snaps = append(snaps, snap)
	}

	return snaps, rows.Err()
}

// ListBatches returns recent snapshot batches, newest first.
func (s *RecoveryStore) ListBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	sql := `
		SELECT batch_id, kind, entity_type, COUNT(*) AS count,
			   MIN(reason) AS reason, MIN(created_by) AS created_by,
			   MIN(created_at) AS created_at
		FROM sys_recovery_snapshots
		GROUP BY batch_id, kind, entity_type
		ORDER BY MIN(created_at) DESC
		LIMIT $1
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshot batches: %w", err)
	}
	defer rows.Close()

	var batches []BatchSummary
	for rows.Next() {
		var b BatchSummary
		err := rows.Scan(
			&b.BatchID, &b.Kind, &b.EntityType, &b.Count,
			&b.Reason, &b.CreatedBy, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan batch summary: %w", err)
		}
		batches = append(batches, b)
	}

	return batches, rows.Err()
}

// SaveCleanupBatch snapshots rows about to be deleted by cleanup.
func (s *RecoveryStore) SaveCleanupBatch(ctx context.Context, batchID id.ID, entityType, reason string, rows []map[string]any) error {
	return s.SaveRows(ctx, batchID, SnapshotKindCleanup, entityType, reason, rows)
}

// BatchPayloads returns the preserved rows of a batch for restore.
func (s *RecoveryStore) BatchPayloads(ctx context.Context, batchID id.ID) ([]maintenance.BatchPayload, error) {
	snaps, err := s.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	payloads := make([]maintenance.BatchPayload, 0, len(snaps))
	for _, snap := range snaps {
		payloads = append(payloads, maintenance.BatchPayload{
			EntityType: snap.EntityType,
			EntityID:   snap.EntityID,
			Payload:    snap.Payload,
		})
	}
	return payloads, nil
}

var _ maintenance.SnapshotStore = (*RecoveryStore)(nil)

func rowEntityID(row map[string]any) (id.ID, error) {
	raw, ok := row["id"]
	if !ok {
		return id.Nil(), fmt.Errorf("row has no id field")
	}
	switch v := raw.(type) {
	case id.ID:
		return v, nil
	case string:
		return id.Parse(v)
	default:
		return id.Nil(), fmt.Errorf("row id has unexpected type %T", raw)
	}
}

// Diff compares a snapshot payload with the live row state.
// Used by restore previews to show what changed since the snapshot.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	// Find changed and new fields
	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !equal(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	// Find deleted fields
	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}

// equal compares two values for equality.
func equal(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
