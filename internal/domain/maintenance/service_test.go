package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/hamali"
	"millstock/internal/domain/movements"
	"millstock/internal/domain/posting"
)

// --- mocks ---

type mockTxManager struct{}

func (mockTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockMovementStore struct {
	byID  map[id.ID]*movements.Movement
	order []id.ID
}

func newMockMovementStore() *mockMovementStore {
	return &mockMovementStore{byID: make(map[id.ID]*movements.Movement)}
}

func clone(m *movements.Movement) *movements.Movement {
	c := *m
	return &c
}

// add seeds a row directly, bypassing the service.
func (r *mockMovementStore) add(m *movements.Movement) {
	r.byID[m.ID] = clone(m)
	r.order = append(r.order, m.ID)
}

func (r *mockMovementStore) GetByID(ctx context.Context, movementID id.ID) (*movements.Movement, error) {
	m, ok := r.byID[movementID]
	if !ok {
		return nil, apperror.NewNotFound("movement", movementID)
	}
	return clone(m), nil
}

func (r *mockMovementStore) Update(ctx context.Context, m *movements.Movement) error {
	if _, ok := r.byID[m.ID]; !ok {
		return apperror.NewNotFound("movement", m.ID)
	}
	r.byID[m.ID] = clone(m)
	return nil
}

func (r *mockMovementStore) Delete(ctx context.Context, movementID id.ID) error {
	if _, ok := r.byID[movementID]; !ok {
		return apperror.NewNotFound("movement", movementID)
	}
	delete(r.byID, movementID)
	return nil
}

func (r *mockMovementStore) ListPaltiMissingSourceBags(ctx context.Context, limit int) ([]*movements.Movement, error) {
	var out []*movements.Movement
	for _, mid := range r.order {
		m, ok := r.byID[mid]
		if !ok || m.Type != movements.TypePalti || m.Status != movements.StatusApproved || m.SourceBags != nil {
			continue
		}
		out = append(out, clone(m))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *mockMovementStore) SetSourceBags(ctx context.Context, movementID id.ID, bags int64) (bool, error) {
	m, ok := r.byID[movementID]
	if !ok {
		return false, apperror.NewNotFound("movement", movementID)
	}
	if m.SourceBags != nil {
		return false, nil
	}
	b := bags
	m.SourceBags = &b
	return true, nil
}

func (r *mockMovementStore) ListPostedConversions(ctx context.Context, limit int) ([]*movements.Movement, error) {
	var out []*movements.Movement
	for _, mid := range r.order {
		m, ok := r.byID[mid]
		if !ok || m.Type != movements.TypePalti || !m.Posted {
			continue
		}
		out = append(out, clone(m))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *mockMovementStore) Restore(ctx context.Context, m *movements.Movement) (bool, error) {
	if _, ok := r.byID[m.ID]; ok {
		return false, nil
	}
	r.byID[m.ID] = clone(m)
	r.order = append(r.order, m.ID)
	return true, nil
}

var _ MovementStore = (*mockMovementStore)(nil)

// mockLedger backs both the maintenance ledger surface and the posting
// engine, so reposting during restore lands in the same leg slice the
// assertions read.
type mockLedger struct {
	legs    []entity.StockLeg
	orphans []entity.StockLeg
}

func (m *mockLedger) RecordLegs(ctx context.Context, recorderID id.ID, recorderVersion int, legs []entity.StockLeg) error {
	kept := m.legs[:0]
	for _, l := range m.legs {
		if l.RecorderID != recorderID || l.RecorderVersion >= recorderVersion {
			kept = append(kept, l)
		}
	}
	m.legs = append(kept, legs...)
	return nil
}

func (m *mockLedger) ReverseLegs(ctx context.Context, recorderID id.ID) error {
	kept := m.legs[:0]
	for _, l := range m.legs {
		if l.RecorderID != recorderID {
			kept = append(kept, l)
		}
	}
	m.legs = kept
	return nil
}

func (m *mockLedger) LegsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockLeg, error) {
	var out []entity.StockLeg
	for _, l := range m.legs {
		if l.RecorderID == recorderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLedger) OrphanLegs(ctx context.Context, limit int) ([]entity.StockLeg, error) {
	return m.orphans, nil
}

var _ LedgerStore = (*mockLedger)(nil)
var _ posting.Ledger = (*mockLedger)(nil)

type savedBatch struct {
	entityType string
	reason     string
	payloads   []BatchPayload
}

type mockSnapshots struct {
	batches map[id.ID]*savedBatch
}

func newMockSnapshots() *mockSnapshots {
	return &mockSnapshots{batches: make(map[id.ID]*savedBatch)}
}

func (s *mockSnapshots) SaveCleanupBatch(ctx context.Context, batchID id.ID, entityType, reason string, rows []map[string]any) error {
	batch := &savedBatch{entityType: entityType, reason: reason}
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return err
		}
		rawID, _ := row["id"].(string)
		entityID, err := id.Parse(rawID)
		if err != nil {
			return fmt.Errorf("row has no id: %w", err)
		}
		batch.payloads = append(batch.payloads, BatchPayload{
			EntityType: entityType,
			EntityID:   entityID,
			Payload:    payload,
		})
	}
	s.batches[batchID] = batch
	return nil
}

func (s *mockSnapshots) BatchPayloads(ctx context.Context, batchID id.ID) ([]BatchPayload, error) {
	batch, ok := s.batches[batchID]
	if !ok {
		return nil, nil
	}
	return batch.payloads, nil
}

var _ SnapshotStore = (*mockSnapshots)(nil)

type stubBackfiller struct {
	result hamali.BackfillResult
	calls  int
}

func (s *stubBackfiller) BackfillAmounts(ctx context.Context, limit int) (hamali.BackfillResult, error) {
	s.calls++
	return s.result, nil
}

// --- fixture ---

type fixture struct {
	svc    *Service
	movs   *mockMovementStore
	ledger *mockLedger
	snaps  *mockSnapshots
	hamali *stubBackfiller
	engine *posting.Engine
}

func newFixture() *fixture {
	movs := newMockMovementStore()
	ledger := &mockLedger{}
	snaps := newMockSnapshots()
	backfiller := &stubBackfiller{}
	txm := mockTxManager{}
	engine := posting.NewEngine(ledger, txm)
	svc := NewService(movs, ledger, snaps, backfiller, engine, txm)
	return &fixture{svc: svc, movs: movs, ledger: ledger, snaps: snaps, hamali: backfiller, engine: engine}
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

func qty(t *testing.T, s string) types.Quantity {
	t.Helper()
	q, err := types.ParseQuantity(s)
	if err != nil {
		t.Fatalf("parse quantity %q: %v", s, err)
	}
	return q
}

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "owner", Role: appctx.RoleAdmin,
	})
}

func operatorCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "ravi", Role: appctx.RoleOperator,
	})
}

// approvedPalti builds a 30kg NLC → 26kg Sona repack, approved but with the
// source bag snapshot left null.
func approvedPalti(t *testing.T, number string) *movements.Movement {
	t.Helper()
	m := movements.NewMovement(movements.TypePalti, day(t, "2025-07-10"))
	m.Number = number
	m.LocationCode = "mill"
	m.Variety = "sum25 rnr"
	m.ProductType = "paddy"

	srcID, tgtID := id.New(), id.New()
	srcBrand, tgtBrand := "nlc", "sona"
	srcKg, tgtKg := types.NewQuantityFromInt(30), types.NewQuantityFromInt(26)
	m.SourcePackagingID, m.SourcePackagingBrand, m.SourcePackagingKg = &srcID, &srcBrand, &srcKg
	m.TargetPackagingID, m.TargetPackagingBrand, m.TargetPackagingKg = &tgtID, &tgtBrand, &tgtKg

	m.Bags = 57
	m.Quintals = qty(t, "15")

	if err := m.Approve("ravi"); err != nil {
		t.Fatalf("approve palti: %v", err)
	}
	return m
}

// seedPostedPalti completes the snapshot and posts through the engine so the
// mock ledger holds real legs.
func (f *fixture) seedPostedPalti(t *testing.T, number string) *movements.Movement {
	t.Helper()
	m := approvedPalti(t, number)
	sb := int64(50)
	m.SourceBags = &sb
	m.ShortageKg = qty(t, "18")
	m.ShortageBags = 1
	f.movs.add(m)
	if err := f.engine.Post(adminCtx(), m, func(ctx context.Context) error {
		return f.movs.Update(ctx, m)
	}); err != nil {
		t.Fatalf("post palti %s: %v", number, err)
	}
	return m
}

func production(t *testing.T, number string) *movements.Movement {
	t.Helper()
	m := movements.NewMovement(movements.TypeProduction, day(t, "2025-07-11"))
	m.Number = number
	m.LocationCode = "mill"
	m.Variety = "sum25 rnr"
	m.ProductType = "paddy"
	pkgID := id.New()
	brand := "nlc"
	kg := types.NewQuantityFromInt(30)
	m.PackagingID, m.PackagingBrand, m.PackagingKg = &pkgID, &brand, &kg
	m.Bags = 40
	m.Quintals = qty(t, "12")
	return m
}

// --- source bags backfill ---

func TestBackfillSourceBags_DerivesNullOnly(t *testing.T) {
	f := newFixture()

	good := approvedPalti(t, "MOV2025-00001")
	f.movs.add(good)

	noWeight := approvedPalti(t, "MOV2025-00002")
	noWeight.SourcePackagingKg = nil
	f.movs.add(noWeight)

	result, err := f.svc.BackfillSourceBags(adminCtx(), 0)
	if err != nil {
		t.Fatalf("BackfillSourceBags: %v", err)
	}

	if result.Scanned != 2 || result.Updated != 1 {
		t.Fatalf("pass = %+v, want scanned 2 updated 1", result)
	}
	if len(result.Skipped) != 1 || !strings.Contains(result.Skipped[0].Reason, "source weight") {
		t.Fatalf("Skipped = %+v, want one missing-weight report", result.Skipped)
	}

	// 15 quintals at 30 kg per bag.
	stored := f.movs.byID[good.ID]
	if stored.SourceBags == nil || *stored.SourceBags != 50 {
		t.Fatalf("SourceBags = %v, want 50", stored.SourceBags)
	}

	// The broken row stays null; a second pass re-reports it and touches
	// nothing else.
	again, err := f.svc.BackfillSourceBags(adminCtx(), 0)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if again.Scanned != 1 || again.Updated != 0 || len(again.Skipped) != 1 {
		t.Fatalf("second pass = %+v, want scanned 1 updated 0 skipped 1", again)
	}
}

func TestBackfillSourceBags_RoundsHalfUp(t *testing.T) {
	f := newFixture()

	// 14.85 quintals / 30 kg = 49.5 bags, rounds to 50.
	m := approvedPalti(t, "MOV2025-00003")
	m.Quintals = qty(t, "14.85")
	f.movs.add(m)

	result, err := f.svc.BackfillSourceBags(adminCtx(), 0)
	if err != nil {
		t.Fatalf("BackfillSourceBags: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", result.Updated)
	}
	stored := f.movs.byID[m.ID]
	if stored.SourceBags == nil || *stored.SourceBags != 50 {
		t.Fatalf("SourceBags = %v, want 50", stored.SourceBags)
	}
}

func TestBackfillHamaliAmounts_Delegates(t *testing.T) {
	f := newFixture()
	f.hamali.result = hamali.BackfillResult{Scanned: 3, Updated: 2}

	result, err := f.svc.BackfillHamaliAmounts(adminCtx(), 10)
	if err != nil {
		t.Fatalf("BackfillHamaliAmounts: %v", err)
	}
	if f.hamali.calls != 1 || result.Updated != 2 {
		t.Fatalf("calls = %d result = %+v, want one delegated call", f.hamali.calls, result)
	}
}

// --- cleanup ---

func TestCleanup_SnapshotsThenDeletes(t *testing.T) {
	f := newFixture()

	posted := f.seedPostedPalti(t, "MOV2025-00010")
	pending := production(t, "MOV2025-00011")
	f.movs.add(pending)

	result, err := f.svc.Cleanup(adminCtx(), []id.ID{posted.ID, pending.ID}, "duplicate entry batch")
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if result.Deleted != 2 || result.Unposted != 1 {
		t.Fatalf("result = %+v, want deleted 2 unposted 1", result)
	}
	if len(f.movs.byID) != 0 {
		t.Fatalf("store still holds %d rows", len(f.movs.byID))
	}
	if legs, _ := f.ledger.LegsByRecorder(context.Background(), posted.ID); len(legs) != 0 {
		t.Fatalf("posted row still has %d legs", len(legs))
	}

	batch := f.snaps.batches[result.BatchID]
	if batch == nil || len(batch.payloads) != 2 {
		t.Fatalf("snapshot batch missing or incomplete: %+v", batch)
	}
	if batch.reason != "duplicate entry batch" {
		t.Fatalf("reason = %q", batch.reason)
	}

	// Snapshots must round-trip to the full document.
	var restored movements.Movement
	if err := json.Unmarshal(batch.payloads[0].Payload, &restored); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if restored.Number != posted.Number || !restored.Posted {
		t.Fatalf("snapshot lost state: number %q posted %v", restored.Number, restored.Posted)
	}
}

func TestCleanup_RequiresAdmin(t *testing.T) {
	f := newFixture()
	m := production(t, "MOV2025-00012")
	f.movs.add(m)

	_, err := f.svc.Cleanup(operatorCtx(), []id.ID{m.ID}, "typo")
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}
	if _, exists := f.movs.byID[m.ID]; !exists {
		t.Fatal("row deleted despite rejection")
	}
}

func TestCleanup_UnknownIDAbortsBatch(t *testing.T) {
	f := newFixture()
	m := production(t, "MOV2025-00013")
	f.movs.add(m)

	_, err := f.svc.Cleanup(adminCtx(), []id.ID{m.ID, id.New()}, "bad import")
	if !apperror.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, exists := f.movs.byID[m.ID]; !exists {
		t.Fatal("known row deleted although the batch aborted")
	}
	if len(f.snaps.batches) != 0 {
		t.Fatal("snapshot written for an aborted batch")
	}
}

// --- restore ---

func TestRestore_FillsGapsAndReposts(t *testing.T) {
	f := newFixture()

	m := f.seedPostedPalti(t, "MOV2025-00020")
	cleanup, err := f.svc.Cleanup(adminCtx(), []id.ID{m.ID}, "operator error")
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	result, err := f.svc.Restore(adminCtx(), cleanup.BatchID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.Restored != 1 || result.Reposted != 1 {
		t.Fatalf("result = %+v, want restored 1 reposted 1", result)
	}

	stored, exists := f.movs.byID[m.ID]
	if !exists {
		t.Fatal("movement not back in store")
	}
	if stored.Number != m.Number || !stored.Posted {
		t.Fatalf("restored row lost state: number %q posted %v", stored.Number, stored.Posted)
	}

	legs, _ := f.ledger.LegsByRecorder(context.Background(), m.ID)
	if len(legs) != 2 {
		t.Fatalf("restored palti has %d legs, want source and target", len(legs))
	}
}

func TestRestore_LiveRowWins(t *testing.T) {
	f := newFixture()

	m := f.seedPostedPalti(t, "MOV2025-00021")
	cleanup, err := f.svc.Cleanup(adminCtx(), []id.ID{m.ID}, "mistake")
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := f.svc.Restore(adminCtx(), cleanup.BatchID); err != nil {
		t.Fatalf("first restore: %v", err)
	}

	legsBefore, _ := f.ledger.LegsByRecorder(context.Background(), m.ID)

	again, err := f.svc.Restore(adminCtx(), cleanup.BatchID)
	if err != nil {
		t.Fatalf("second restore: %v", err)
	}
	if again.Restored != 0 || again.SkippedAlive != 1 {
		t.Fatalf("second restore = %+v, want skipped alive", again)
	}

	legsAfter, _ := f.ledger.LegsByRecorder(context.Background(), m.ID)
	if len(legsAfter) != len(legsBefore) {
		t.Fatalf("legs changed on no-op restore: %d -> %d", len(legsBefore), len(legsAfter))
	}
}

func TestRestore_UnknownBatch(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Restore(adminCtx(), id.New())
	if !apperror.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

// --- consistency report ---

func TestConsistencyReport_FindsEverything(t *testing.T) {
	f := newFixture()

	missing := approvedPalti(t, "MOV2025-00030")
	f.movs.add(missing)

	anchor := f.seedPostedPalti(t, "MOV2025-00031")
	orphanRecorder := id.New()
	f.ledger.orphans = []entity.StockLeg{entity.NewStockLeg(
		orphanRecorder, 1, day(t, "2025-07-09"),
		entity.LegKindSale, anchor.SourceKey(),
		10, types.NewQuantityFromInt(300),
	)}

	// Corrupt the stored source brand so the recomputed key disagrees with
	// the posted legs.
	mismatched := f.seedPostedPalti(t, "MOV2025-00032")
	badBrand := "indy"
	f.movs.byID[mismatched.ID].SourcePackagingBrand = &badBrand

	report, err := f.svc.ConsistencyReport(adminCtx(), 0)
	if err != nil {
		t.Fatalf("ConsistencyReport: %v", err)
	}

	if len(report.MissingSourceBags) != 1 || report.MissingSourceBags[0].Number != missing.Number {
		t.Fatalf("MissingSourceBags = %+v", report.MissingSourceBags)
	}
	if len(report.OrphanLegs) != 1 || *report.OrphanLegs[0].MovementID != orphanRecorder {
		t.Fatalf("OrphanLegs = %+v", report.OrphanLegs)
	}
	if len(report.KeyMismatches) != 1 || report.KeyMismatches[0].Number != mismatched.Number {
		t.Fatalf("KeyMismatches = %+v", report.KeyMismatches)
	}

	// Reports never heal.
	if f.movs.byID[missing.ID].SourceBags != nil {
		t.Fatal("report filled a source bag snapshot")
	}
	if got := *f.movs.byID[mismatched.ID].SourcePackagingBrand; got != "indy" {
		t.Fatalf("report rewrote the stored brand to %q", got)
	}
}

func TestConsistencyReport_CleanLedger(t *testing.T) {
	f := newFixture()
	f.seedPostedPalti(t, "MOV2025-00040")

	report, err := f.svc.ConsistencyReport(adminCtx(), 0)
	if err != nil {
		t.Fatalf("ConsistencyReport: %v", err)
	}
	if report.Total() != 0 {
		t.Fatalf("report = %+v, want empty", report)
	}
}
