// Package maintenance provides administrative repair operations: backfills
// for null snapshots, cleanup of invalid historical rows with recovery
// snapshots, restore, and the consistency report. Every operation is
// idempotent; nothing here runs in the steady-state request path.
package maintenance

import (
	"context"
	"encoding/json"
	"fmt"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/tx"
	"millstock/internal/domain/hamali"
	"millstock/internal/domain/movements"
	"millstock/internal/domain/posting"
	"millstock/pkg/logger"
)

// movementEntityType names movement snapshots in the recovery store.
const movementEntityType = "StockMovement"

// defaultScanLimit bounds one backfill or report pass.
const defaultScanLimit = 500

// MovementStore is the movement persistence surface maintenance needs.
type MovementStore interface {
	GetByID(ctx context.Context, movementID id.ID) (*movements.Movement, error)
	Update(ctx context.Context, m *movements.Movement) error
	Delete(ctx context.Context, movementID id.ID) error

	// ListPaltiMissingSourceBags returns approved conversions whose source
	// bag snapshot is null, oldest first.
	ListPaltiMissingSourceBags(ctx context.Context, limit int) ([]*movements.Movement, error)

	// SetSourceBags populates the snapshot, guarded so a non-null value is
	// never overwritten. Returns whether the row changed.
	SetSourceBags(ctx context.Context, movementID id.ID, bags int64) (bool, error)

	// ListPostedConversions returns posted conversions for the key audit.
	ListPostedConversions(ctx context.Context, limit int) ([]*movements.Movement, error)

	// Restore re-inserts a row; a live row with the same id wins and the
	// call reports false.
	Restore(ctx context.Context, m *movements.Movement) (bool, error)
}

// LedgerStore is the ledger surface maintenance needs. Satisfied by the
// stock ledger service.
type LedgerStore interface {
	LegsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockLeg, error)
	ReverseLegs(ctx context.Context, recorderID id.ID) error
	OrphanLegs(ctx context.Context, limit int) ([]entity.StockLeg, error)
}

// BatchPayload is one preserved row from a snapshot batch.
type BatchPayload struct {
	EntityType string
	EntityID   id.ID
	Payload    json.RawMessage
}

// SnapshotStore preserves rows before destructive operations and returns
// them for restore.
type SnapshotStore interface {
	// SaveCleanupBatch must run inside the same transaction as the deletes
	// it precedes.
	SaveCleanupBatch(ctx context.Context, batchID id.ID, entityType, reason string, rows []map[string]any) error
	BatchPayloads(ctx context.Context, batchID id.ID) ([]BatchPayload, error)
}

// HamaliBackfiller prices unpriced hamali entries.
type HamaliBackfiller interface {
	BackfillAmounts(ctx context.Context, limit int) (hamali.BackfillResult, error)
}

// Service runs maintenance operations.
type Service struct {
	movs      MovementStore
	ledger    LedgerStore
	snapshots SnapshotStore
	hamali    HamaliBackfiller
	posting   *posting.Engine
	txManager tx.Manager
}

// NewService creates a maintenance service.
func NewService(
	movs MovementStore,
	ledger LedgerStore,
	snapshots SnapshotStore,
	hamaliSvc HamaliBackfiller,
	postingEngine *posting.Engine,
	txManager tx.Manager,
) *Service {
	return &Service{
		movs:      movs,
		ledger:    ledger,
		snapshots: snapshots,
		hamali:    hamaliSvc,
		posting:   postingEngine,
		txManager: txManager,
	}
}

// Inconsistency is one row a maintenance pass refused to touch.
type Inconsistency struct {
	MovementID id.ID  `json:"movementId"`
	Number     string `json:"number"`
	Reason     string `json:"reason"`
}

// SourceBagsResult summarizes one source-bags backfill pass.
type SourceBagsResult struct {
	Scanned int             `json:"scanned"`
	Updated int             `json:"updated"`
	Skipped []Inconsistency `json:"skipped,omitempty"`
}

// BackfillSourceBags derives the source bag count for approved conversions
// whose snapshot is null: round_half_up(quintals × 100 / source bag weight).
// Only null rows are touched; rows missing the weight or measured quintals
// are reported, never guessed.
func (s *Service) BackfillSourceBags(ctx context.Context, limit int) (SourceBagsResult, error) {
	if limit <= 0 {
		limit = defaultScanLimit
	}

	var result SourceBagsResult

	rows, err := s.movs.ListPaltiMissingSourceBags(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("list conversions missing source bags: %w", err)
	}
	result.Scanned = len(rows)

	for _, m := range rows {
		if m.SourcePackagingKg == nil || !m.SourcePackagingKg.IsPositive() {
			result.Skipped = append(result.Skipped, Inconsistency{
				MovementID: m.ID, Number: m.Number,
				Reason: "missing source weight snapshot",
			})
			continue
		}
		if !m.Quintals.IsPositive() {
			result.Skipped = append(result.Skipped, Inconsistency{
				MovementID: m.ID, Number: m.Number,
				Reason: "missing measured quintals",
			})
			continue
		}

		bags, err := movements.DeriveSourceBags(m.Quintals, *m.SourcePackagingKg)
		if err != nil {
			result.Skipped = append(result.Skipped, Inconsistency{
				MovementID: m.ID, Number: m.Number,
				Reason: err.Error(),
			})
			continue
		}

		updated, err := s.movs.SetSourceBags(ctx, m.ID, bags)
		if err != nil {
			return result, fmt.Errorf("set source bags on %s: %w", m.Number, err)
		}
		if updated {
			result.Updated++
		}
	}

	logger.Info(ctx, "source bags backfill pass finished",
		"scanned", result.Scanned,
		"updated", result.Updated,
		"skipped", len(result.Skipped),
	)

	return result, nil
}

// BackfillHamaliAmounts prices unpriced hamali entries.
func (s *Service) BackfillHamaliAmounts(ctx context.Context, limit int) (hamali.BackfillResult, error) {
	return s.hamali.BackfillAmounts(ctx, limit)
}

// CleanupResult summarizes one cleanup batch.
type CleanupResult struct {
	BatchID  id.ID `json:"batchId"`
	Deleted  int   `json:"deleted"`
	Unposted int   `json:"unposted"`
}

// Cleanup deletes the given movements after snapshotting each row's full
// JSON into the recovery store, all in one transaction. Posted rows lose
// their ledger legs first. A missing id aborts the whole batch.
func (s *Service) Cleanup(ctx context.Context, movementIDs []id.ID, reason string) (CleanupResult, error) {
	if !appctx.IsAdmin(ctx) {
		return CleanupResult{}, apperror.NewForbidden("cleanup requires the admin role")
	}
	if len(movementIDs) == 0 {
		return CleanupResult{}, apperror.NewValidation("movement ids are required")
	}
	if reason == "" {
		return CleanupResult{}, apperror.NewValidation("cleanup reason is required")
	}

	result := CleanupResult{BatchID: id.New()}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rows := make([]map[string]any, 0, len(movementIDs))
		targets := make([]*movements.Movement, 0, len(movementIDs))

		for _, movementID := range movementIDs {
			m, err := s.movs.GetByID(ctx, movementID)
			if err != nil {
				return err
			}

			payload, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal movement %s: %w", m.Number, err)
			}
			var row map[string]any
			if err := json.Unmarshal(payload, &row); err != nil {
				return fmt.Errorf("decode movement %s: %w", m.Number, err)
			}

			rows = append(rows, row)
			targets = append(targets, m)
		}

		if err := s.snapshots.SaveCleanupBatch(ctx, result.BatchID, movementEntityType, reason, rows); err != nil {
			return fmt.Errorf("save recovery snapshots: %w", err)
		}

		for _, m := range targets {
			if m.Posted {
				if err := s.ledger.ReverseLegs(ctx, m.ID); err != nil {
					return fmt.Errorf("reverse legs of %s: %w", m.Number, err)
				}
				result.Unposted++
			}
			if err := s.movs.Delete(ctx, m.ID); err != nil {
				return fmt.Errorf("delete %s: %w", m.Number, err)
			}
			result.Deleted++
		}

		return nil
	})
	if err != nil {
		return CleanupResult{}, err
	}

	logger.Warn(ctx, "cleanup batch executed",
		"batch_id", result.BatchID,
		"deleted", result.Deleted,
		"unposted", result.Unposted,
		"reason", reason,
	)

	return result, nil
}

// RestoreResult summarizes one restore pass.
type RestoreResult struct {
	BatchID      id.ID `json:"batchId"`
	Restored     int   `json:"restored"`
	Reposted     int   `json:"reposted"`
	SkippedAlive int   `json:"skippedAlive"`
}

// Restore re-inserts the rows of a snapshot batch. A live row with the same
// id always wins; restore fills gaps only. Rows that were posted when
// snapshotted get their ledger legs regenerated.
func (s *Service) Restore(ctx context.Context, batchID id.ID) (RestoreResult, error) {
	if !appctx.IsAdmin(ctx) {
		return RestoreResult{}, apperror.NewForbidden("restore requires the admin role")
	}

	result := RestoreResult{BatchID: batchID}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		payloads, err := s.snapshots.BatchPayloads(ctx, batchID)
		if err != nil {
			return fmt.Errorf("load snapshot batch: %w", err)
		}
		if len(payloads) == 0 {
			return apperror.NewNotFound("snapshot batch", batchID.String())
		}

		for _, p := range payloads {
			if p.EntityType != movementEntityType {
				continue
			}

			var m movements.Movement
			if err := json.Unmarshal(p.Payload, &m); err != nil {
				return fmt.Errorf("decode snapshot %s: %w", p.EntityID, err)
			}

			inserted, err := s.movs.Restore(ctx, &m)
			if err != nil {
				return fmt.Errorf("restore %s: %w", m.Number, err)
			}
			if !inserted {
				result.SkippedAlive++
				continue
			}
			result.Restored++

			// The cleanup removed the legs with the row; a row restored
			// as posted must get them back.
			if m.Posted {
				if err := s.posting.Post(ctx, &m, func(ctx context.Context) error {
					return s.movs.Update(ctx, &m)
				}); err != nil {
					return fmt.Errorf("repost %s: %w", m.Number, err)
				}
				result.Reposted++
			}
		}

		return nil
	})
	if err != nil {
		return RestoreResult{}, err
	}

	logger.Info(ctx, "snapshot batch restored",
		"batch_id", batchID,
		"restored", result.Restored,
		"reposted", result.Reposted,
		"skipped_alive", result.SkippedAlive,
	)

	return result, nil
}

// ReportIssue is one finding of the consistency report.
type ReportIssue struct {
	MovementID *id.ID `json:"movementId,omitempty"`
	Number     string `json:"number,omitempty"`
	Detail     string `json:"detail"`
}

// Report lists every inconsistency found. Findings are returned and logged,
// never auto-healed.
type Report struct {
	MissingSourceBags []ReportIssue `json:"missingSourceBags,omitempty"`
	OrphanLegs        []ReportIssue `json:"orphanLegs,omitempty"`
	KeyMismatches     []ReportIssue `json:"keyMismatches,omitempty"`
}

// Total returns the finding count.
func (r Report) Total() int {
	return len(r.MissingSourceBags) + len(r.OrphanLegs) + len(r.KeyMismatches)
}

// ConsistencyReport scans for approved conversions with null source bags,
// ledger legs whose movement is gone, and posted conversions whose stored
// leg keys disagree with the keys recomputed from their snapshots.
func (s *Service) ConsistencyReport(ctx context.Context, limit int) (Report, error) {
	if limit <= 0 {
		limit = defaultScanLimit
	}

	var report Report

	missing, err := s.movs.ListPaltiMissingSourceBags(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("scan missing source bags: %w", err)
	}
	for _, m := range missing {
		movementID := m.ID
		report.MissingSourceBags = append(report.MissingSourceBags, ReportIssue{
			MovementID: &movementID,
			Number:     m.Number,
			Detail:     "approved conversion has no source bag snapshot",
		})
	}

	orphans, err := s.ledger.OrphanLegs(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("scan orphan legs: %w", err)
	}
	for _, leg := range orphans {
		recorderID := leg.RecorderID
		report.OrphanLegs = append(report.OrphanLegs, ReportIssue{
			MovementID: &recorderID,
			Detail: fmt.Sprintf("leg %s (%s, %d bags) references a missing movement",
				leg.LineID, leg.Kind, leg.Bags),
		})
	}

	conversions, err := s.movs.ListPostedConversions(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("scan posted conversions: %w", err)
	}
	for _, m := range conversions {
		legs, err := s.ledger.LegsByRecorder(ctx, m.ID)
		if err != nil {
			return report, fmt.Errorf("load legs of %s: %w", m.Number, err)
		}

		sourceKey := m.SourceKey()
		targetKey := m.TargetKey()
		for _, leg := range legs {
			var want string
			switch leg.Kind {
			case entity.LegKindConversionSource:
				if leg.Key != sourceKey {
					want = sourceKey.String()
				}
			case entity.LegKindConversionTarget:
				if leg.Key != targetKey {
					want = targetKey.String()
				}
			}
			if want == "" {
				continue
			}
			movementID := m.ID
			report.KeyMismatches = append(report.KeyMismatches, ReportIssue{
				MovementID: &movementID,
				Number:     m.Number,
				Detail: fmt.Sprintf("%s leg carries key %s, recomputed %s",
					leg.Kind, leg.Key.String(), want),
			})
		}
	}

	if report.Total() > 0 {
		logger.Warn(ctx, "consistency report found issues",
			"missing_source_bags", len(report.MissingSourceBags),
			"orphan_legs", len(report.OrphanLegs),
			"key_mismatches", len(report.KeyMismatches),
		)
	}

	return report, nil
}
