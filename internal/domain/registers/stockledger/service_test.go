package stockledger

import (
	"context"
	"testing"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/entity"
	"millstock/internal/core/id"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/types"
)

// mockLedgerRepo folds over an in-memory leg slice.
type mockLedgerRepo struct {
	legs []entity.StockLeg
}

func (m *mockLedgerRepo) ReplaceLegs(ctx context.Context, recorderID id.ID, recorderVersion int, legs []entity.StockLeg) error {
	kept := m.legs[:0]
	for _, l := range m.legs {
		if l.RecorderID != recorderID || l.RecorderVersion >= recorderVersion {
			kept = append(kept, l)
		}
	}
	m.legs = append(kept, legs...)
	return nil
}

func (m *mockLedgerRepo) DeleteLegs(ctx context.Context, recorderID id.ID) error {
	kept := m.legs[:0]
	for _, l := range m.legs {
		if l.RecorderID != recorderID {
			kept = append(kept, l)
		}
	}
	m.legs = kept
	return nil
}

func (m *mockLedgerRepo) LegsByRecorder(ctx context.Context, recorderID id.ID) ([]entity.StockLeg, error) {
	var out []entity.StockLeg
	for _, l := range m.legs {
		if l.RecorderID == recorderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLedgerRepo) FoldBalance(ctx context.Context, key stockkey.Key, asOf time.Time, profile Profile) (Balance, error) {
	var b Balance
	for _, l := range m.legs {
		if l.Key != key {
			continue
		}
		if !profile.Includes(l.Kind, DayOf(l.Period), asOf) {
			continue
		}
		b.Bags += l.SignedBags()
		b.NetKg += l.SignedKg()
	}
	return b, nil
}

func (m *mockLedgerRepo) SameDateSourceBags(ctx context.Context, key stockkey.Key, date time.Time) (int64, error) {
	var sum int64
	for _, l := range m.legs {
		if l.Key == key && l.Kind == entity.LegKindConversionSource && DayOf(l.Period).Equal(date) {
			sum += l.Bags
		}
	}
	return sum, nil
}

func (m *mockLedgerRepo) BalanceGrid(ctx context.Context, filter GridFilter, asOf time.Time) ([]GridRow, error) {
	byKey := make(map[stockkey.Key]*GridRow)
	var order []stockkey.Key
	for _, l := range m.legs {
		if filter.LocationCode != "" && l.LocationCode != filter.LocationCode {
			continue
		}
		if !ProfileClosing.Includes(l.Kind, DayOf(l.Period), asOf) {
			continue
		}
		row, ok := byKey[l.Key]
		if !ok {
			row = &GridRow{Key: l.Key}
			byKey[l.Key] = row
			order = append(order, l.Key)
		}
		row.Bags += l.SignedBags()
		row.NetKg += l.SignedKg()
	}
	var out []GridRow
	for _, k := range order {
		if byKey[k].Bags == 0 && !filter.IncludeZero {
			continue
		}
		out = append(out, *byKey[k])
	}
	return out, nil
}

func (m *mockLedgerRepo) ListLegs(ctx context.Context, filter LegFilter) ([]entity.StockLeg, error) {
	return m.legs, nil
}

func (m *mockLedgerRepo) OrphanLegs(ctx context.Context, limit int) ([]entity.StockLeg, error) {
	return nil, nil
}

var _ Repository = (*mockLedgerRepo)(nil)

// --- helpers ---

func qty(t *testing.T, s string) types.Quantity {
	t.Helper()
	q, err := types.ParseQuantity(s)
	if err != nil {
		t.Fatalf("parse quantity %q: %v", s, err)
	}
	return q
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

func paddy30(loc string) stockkey.Key {
	return stockkey.New(loc, "Sum25 RNR Raw", "paddy", "Super", types.NewQuantityFromInt(30))
}

func paddy26(loc string) stockkey.Key {
	return stockkey.New(loc, "Sum25 RNR Raw", "paddy", "Super", types.NewQuantityFromInt(26))
}

func leg(kind entity.LegKind, key stockkey.Key, bags int64, kgPerBag types.Quantity, period time.Time) entity.StockLeg {
	return entity.NewStockLeg(id.New(), 1, period, kind, key, bags, kgPerBag.MulInt(bags))
}

// --- cutoff profiles ---

func TestProfile_CutoffTable(t *testing.T) {
	boundary := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	before := boundary.AddDate(0, 0, -1)
	after := boundary.AddDate(0, 0, 1)

	tests := []struct {
		profile Profile
		kind    entity.LegKind
		sameDay bool
	}{
		{ProfileClosing, entity.LegKindProduction, true},
		{ProfileClosing, entity.LegKindPurchase, true},
		{ProfileClosing, entity.LegKindSale, true},
		{ProfileClosing, entity.LegKindConversionSource, true},
		{ProfileClosing, entity.LegKindConversionTarget, true},
		{ProfileSaleGate, entity.LegKindProduction, true},
		{ProfileSaleGate, entity.LegKindPurchase, true},
		{ProfileSaleGate, entity.LegKindSale, true},
		{ProfileSaleGate, entity.LegKindConversionSource, false},
		{ProfileSaleGate, entity.LegKindConversionTarget, true},
		{ProfileConversionGate, entity.LegKindProduction, true},
		{ProfileConversionGate, entity.LegKindPurchase, true},
		{ProfileConversionGate, entity.LegKindSale, true},
		{ProfileConversionGate, entity.LegKindConversionSource, false},
		{ProfileConversionGate, entity.LegKindConversionTarget, false},
	}

	for _, tt := range tests {
		name := tt.profile.Name() + "/" + string(tt.kind)
		t.Run(name, func(t *testing.T) {
			if !tt.profile.Includes(tt.kind, before, boundary) {
				t.Error("prior-day leg must always count")
			}
			if tt.profile.Includes(tt.kind, after, boundary) {
				t.Error("future leg must never count")
			}
			if got := tt.profile.Includes(tt.kind, boundary, boundary); got != tt.sameDay {
				t.Errorf("same-day inclusion: want %v, got %v", tt.sameDay, got)
			}
		})
	}
}

func TestGateProfile(t *testing.T) {
	if p, err := GateProfile(entity.LegKindSale); err != nil || p.Name() != "sale_gate" {
		t.Errorf("sale: got %v, %v", p.Name(), err)
	}
	if p, err := GateProfile(entity.LegKindConversionSource); err != nil || p.Name() != "conversion_gate" {
		t.Errorf("conversion_source: got %v, %v", p.Name(), err)
	}
	if _, err := GateProfile(entity.LegKindProduction); err == nil {
		t.Error("production does not deduct; expected error")
	}
}

// --- same-day ordering properties ---

func TestAvailable_SameDayPurchaseCountsForSale(t *testing.T) {
	k := paddy30("O-1")
	d := day(t, "2026-03-10")
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindPurchase, k, 40, qty(t, "30"), d),
	}}
	svc := NewService(repo)

	avail, err := svc.Available(context.Background(), k, d, entity.LegKindSale, nil)
	if err != nil {
		t.Fatal(err)
	}
	if avail != 40 {
		t.Errorf("same-day purchase must be sellable: want 40, got %d", avail)
	}
}

func TestAvailable_ConversionTargetSellableSameDay(t *testing.T) {
	src, tgt := paddy30("O-1"), paddy26("O-1")
	d := day(t, "2026-03-10")
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindProduction, src, 50, qty(t, "30"), d.AddDate(0, 0, -3)),
		leg(entity.LegKindConversionSource, src, 50, qty(t, "30"), d),
		leg(entity.LegKindConversionTarget, tgt, 57, qty(t, "26"), d),
	}}
	svc := NewService(repo)

	avail, err := svc.Available(context.Background(), tgt, d, entity.LegKindSale, nil)
	if err != nil {
		t.Fatal(err)
	}
	if avail != 57 {
		t.Errorf("same-day conversion receipt must be sellable: want 57, got %d", avail)
	}
}

func TestAvailable_ConversionTargetNotReconvertibleSameDay(t *testing.T) {
	src, tgt := paddy30("O-1"), paddy26("O-1")
	d := day(t, "2026-03-10")
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindProduction, src, 50, qty(t, "30"), d.AddDate(0, 0, -3)),
		leg(entity.LegKindConversionSource, src, 50, qty(t, "30"), d),
		leg(entity.LegKindConversionTarget, tgt, 57, qty(t, "26"), d),
	}}
	svc := NewService(repo)

	avail, err := svc.Available(context.Background(), tgt, d, entity.LegKindConversionSource, nil)
	if err != nil {
		t.Fatal(err)
	}
	if avail != 0 {
		t.Errorf("same-day conversion receipt must not re-convert: want 0, got %d", avail)
	}
}

func TestAvailable_PostedSameDaySourceZeroesKey(t *testing.T) {
	src := paddy30("O-1")
	d := day(t, "2026-03-10")
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindProduction, src, 50, qty(t, "30"), d.AddDate(0, 0, -3)),
		leg(entity.LegKindConversionSource, src, 50, qty(t, "30"), d),
	}}
	svc := NewService(repo)

	// The sale-gate fold excludes the same-day source leg, but the explicit
	// same-date deduction brings it back.
	avail, err := svc.Available(context.Background(), src, d, entity.LegKindSale, nil)
	if err != nil {
		t.Fatal(err)
	}
	if avail != 0 {
		t.Errorf("converted-away stock must not be sellable: want 0, got %d", avail)
	}
}

func TestCheckDeduction_DoubleConversionBlockedInBatch(t *testing.T) {
	src := paddy30("O-1")
	d := day(t, "2026-03-10")
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindProduction, src, 50, qty(t, "30"), d.AddDate(0, 0, -3)),
	}}
	svc := NewService(repo)
	ctx := context.Background()
	batch := NewBatchState()

	// First conversion takes the whole key.
	if err := svc.CheckDeduction(ctx, src, d, 50, entity.LegKindConversionSource, batch); err != nil {
		t.Fatalf("first conversion must pass: %v", err)
	}
	batch.AddSource(src, d, 50)

	// Second conversion in the same batch must see the pending deduction.
	err := svc.CheckDeduction(ctx, src, d, 50, entity.LegKindConversionSource, batch)
	if !apperror.IsInsufficientStock(err) {
		t.Fatalf("second conversion must be rejected, got %v", err)
	}
}

func TestCheckDeduction_DoubleConversionBlockedAcrossBatches(t *testing.T) {
	src := paddy30("O-1")
	d := day(t, "2026-03-10")
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindProduction, src, 50, qty(t, "30"), d.AddDate(0, 0, -3)),
		// First conversion already posted earlier today.
		leg(entity.LegKindConversionSource, src, 50, qty(t, "30"), d),
	}}
	svc := NewService(repo)

	err := svc.CheckDeduction(context.Background(), src, d, 50, entity.LegKindConversionSource, nil)
	if !apperror.IsInsufficientStock(err) {
		t.Fatalf("conversion against posted same-day source must be rejected, got %v", err)
	}
}

func TestBalance_ClosingAfterPalti(t *testing.T) {
	src, tgt := paddy30("O-1"), paddy26("O-1")
	d := day(t, "2026-03-10")
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindProduction, src, 50, qty(t, "30"), d),
		leg(entity.LegKindConversionSource, src, 50, qty(t, "30"), d),
		leg(entity.LegKindConversionTarget, tgt, 57, qty(t, "26"), d),
	}}
	svc := NewService(repo)
	ctx := context.Background()

	srcBal, err := svc.Balance(ctx, src, d)
	if err != nil {
		t.Fatal(err)
	}
	if srcBal.Bags != 0 {
		t.Errorf("source key closing balance: want 0, got %d", srcBal.Bags)
	}

	tgtBal, err := svc.Balance(ctx, tgt, d)
	if err != nil {
		t.Fatal(err)
	}
	if tgtBal.Bags != 57 {
		t.Errorf("target key closing balance: want 57, got %d", tgtBal.Bags)
	}
	if tgtBal.NetKg != qty(t, "1482") {
		t.Errorf("target key closing weight: want 1482 kg, got %s", tgtBal.NetKg.String())
	}
}

// Production 50×30 kg, palti into 57×26 kg (shortage 18 kg), then an
// oversold sale of 58 bags is rejected short by exactly one bag.
func TestEndToEnd_ProductionPaltiSale(t *testing.T) {
	src, tgt := paddy30("O-1"), paddy26("O-1")
	d := day(t, "2026-03-10")
	ctx := context.Background()

	repo := &mockLedgerRepo{}
	svc := NewService(repo)

	prodID, paltiID := id.New(), id.New()
	if err := svc.RecordLegs(ctx, prodID, 1, []entity.StockLeg{
		entity.NewStockLeg(prodID, 1, d, entity.LegKindProduction, src, 50, qty(t, "1500")),
	}); err != nil {
		t.Fatal(err)
	}
	if err := svc.RecordLegs(ctx, paltiID, 1, []entity.StockLeg{
		entity.NewStockLeg(paltiID, 1, d, entity.LegKindConversionSource, src, 50, qty(t, "1500")),
		entity.NewStockLeg(paltiID, 1, d, entity.LegKindConversionTarget, tgt, 57, qty(t, "1482")),
	}); err != nil {
		t.Fatal(err)
	}

	err := svc.CheckDeduction(ctx, tgt, d, 58, entity.LegKindSale, nil)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInsufficientStock {
		t.Fatalf("oversold sale must be rejected, got %v", err)
	}
	if appErr.Details["shortfall"] != int64(1) {
		t.Errorf("shortfall: want 1, got %v", appErr.Details["shortfall"])
	}
	if appErr.Details["available"] != int64(57) {
		t.Errorf("available: want 57, got %v", appErr.Details["available"])
	}

	// The full converted quantity is sellable.
	if err := svc.CheckDeduction(ctx, tgt, d, 57, entity.LegKindSale, nil); err != nil {
		t.Fatalf("sale of the full converted stock must pass: %v", err)
	}
}

func TestCheckDeduction_NextDaySeesClosing(t *testing.T) {
	src, tgt := paddy30("O-1"), paddy26("O-1")
	d := day(t, "2026-03-10")
	next := d.AddDate(0, 0, 1)
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindProduction, src, 50, qty(t, "30"), d),
		leg(entity.LegKindConversionSource, src, 50, qty(t, "30"), d),
		leg(entity.LegKindConversionTarget, tgt, 57, qty(t, "26"), d),
	}}
	svc := NewService(repo)
	ctx := context.Background()

	// Next day the target stock is convertible again.
	avail, err := svc.Available(ctx, tgt, next, entity.LegKindConversionSource, nil)
	if err != nil {
		t.Fatal(err)
	}
	if avail != 57 {
		t.Errorf("next-day conversion availability: want 57, got %d", avail)
	}

	// And the drained source key stays at zero.
	avail, err = svc.Available(ctx, src, next, entity.LegKindSale, nil)
	if err != nil {
		t.Fatal(err)
	}
	if avail != 0 {
		t.Errorf("drained source availability: want 0, got %d", avail)
	}
}

func TestBalanceGrid_GroupsByKey(t *testing.T) {
	src, tgt := paddy30("O-1"), paddy26("O-1")
	other := paddy30("MILL GODOWN 2")
	d := day(t, "2026-03-10")
	repo := &mockLedgerRepo{legs: []entity.StockLeg{
		leg(entity.LegKindProduction, src, 50, qty(t, "30"), d),
		leg(entity.LegKindConversionSource, src, 50, qty(t, "30"), d),
		leg(entity.LegKindConversionTarget, tgt, 57, qty(t, "26"), d),
		leg(entity.LegKindPurchase, other, 10, qty(t, "30"), d),
	}}
	svc := NewService(repo)

	rows, err := svc.BalanceGrid(context.Background(), GridFilter{LocationCode: "O-1"}, d)
	if err != nil {
		t.Fatal(err)
	}
	// Zero-bag source key drops out by default.
	if len(rows) != 1 {
		t.Fatalf("want 1 grid row, got %d", len(rows))
	}
	if rows[0].Key != tgt || rows[0].Bags != 57 {
		t.Errorf("unexpected grid row: %+v", rows[0])
	}
}

func TestRecordLegs_Validation(t *testing.T) {
	svc := NewService(&mockLedgerRepo{})
	ctx := context.Background()
	k := paddy30("O-1")
	d := day(t, "2026-03-10")
	rid := id.New()

	bad := []entity.StockLeg{
		entity.NewStockLeg(rid, 1, d, entity.LegKindProduction, k, 0, 0),
	}
	if err := svc.RecordLegs(ctx, rid, 1, bad); err == nil {
		t.Error("zero bags must be rejected")
	}

	bad = []entity.StockLeg{
		entity.NewStockLeg(rid, 1, d, entity.LegKind("teleport"), k, 10, qty(t, "300")),
	}
	if err := svc.RecordLegs(ctx, rid, 1, bad); err == nil {
		t.Error("unknown kind must be rejected")
	}

	bad = []entity.StockLeg{
		entity.NewStockLeg(rid, 1, d, entity.LegKindProduction, stockkey.Key{}, 10, qty(t, "300")),
	}
	if err := svc.RecordLegs(ctx, rid, 1, bad); err == nil {
		t.Error("zero key must be rejected")
	}

	// Empty set is a no-op, not an error.
	if err := svc.RecordLegs(ctx, rid, 1, nil); err != nil {
		t.Errorf("empty set: %v", err)
	}
}
