package movements

import (
	"context"
	"fmt"
	"testing"
	"time"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/entity"
	"millstock/internal/core/events"
	"millstock/internal/core/id"
	"millstock/internal/core/numerator"
	"millstock/internal/core/stockkey"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/approval"
	"millstock/internal/domain/catalogs/location"
	"millstock/internal/domain/catalogs/packaging"
	"millstock/internal/domain/posting"
	"millstock/internal/domain/registers/stockledger"
)

// --- mocks ---

type mockTxManager struct{}

func (mockTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockLocker struct {
	calls [][]int64
}

func (m *mockLocker) AcquireKeyLocks(ctx context.Context, tokens []int64) error {
	m.calls = append(m.calls, tokens)
	return nil
}

type mockEvents struct {
	published []events.Event
}

func (m *mockEvents) Publish(ctx context.Context, e events.Event) error {
	m.published = append(m.published, e)
	return nil
}

func (m *mockEvents) PublishBatch(ctx context.Context, evs []events.Event) error {
	m.published = append(m.published, evs...)
	return nil
}

func (m *mockEvents) has(eventType string) bool {
	for _, e := range m.published {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

type mockMovementRepo struct {
	byID  map[id.ID]*Movement
	order []id.ID
}

func newMockMovementRepo() *mockMovementRepo {
	return &mockMovementRepo{byID: make(map[id.ID]*Movement)}
}

// clone simulates a database read: callers mutate their own copy until
// Update writes it back.
func clone(m *Movement) *Movement {
	c := *m
	return &c
}

func (r *mockMovementRepo) Create(ctx context.Context, m *Movement) error {
	r.byID[m.ID] = clone(m)
	r.order = append(r.order, m.ID)
	return nil
}

func (r *mockMovementRepo) CreateBatch(ctx context.Context, ms []*Movement) error {
	for _, m := range ms {
		if err := r.Create(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *mockMovementRepo) GetByID(ctx context.Context, movementID id.ID) (*Movement, error) {
	m, ok := r.byID[movementID]
	if !ok {
		return nil, apperror.NewNotFound("movement", movementID)
	}
	return clone(m), nil
}

func (r *mockMovementRepo) GetByNumber(ctx context.Context, number string) (*Movement, error) {
	for _, m := range r.byID {
		if m.Number == number {
			return clone(m), nil
		}
	}
	return nil, apperror.NewNotFound("movement", number)
}

func (r *mockMovementRepo) Update(ctx context.Context, m *Movement) error {
	if _, ok := r.byID[m.ID]; !ok {
		return apperror.NewNotFound("movement", m.ID)
	}
	r.byID[m.ID] = clone(m)
	return nil
}

func (r *mockMovementRepo) Delete(ctx context.Context, movementID id.ID) error {
	if _, ok := r.byID[movementID]; !ok {
		return apperror.NewNotFound("movement", movementID)
	}
	delete(r.byID, movementID)
	return nil
}

func (r *mockMovementRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Movement], error) {
	var items []*Movement
	for _, mid := range r.order {
		if m, ok := r.byID[mid]; ok {
			items = append(items, clone(m))
		}
	}
	return domain.ListResult[*Movement]{Items: items, TotalCount: int64(len(items))}, nil
}

func (r *mockMovementRepo) GetForUpdate(ctx context.Context, movementID id.ID) (*Movement, error) {
	return r.GetByID(ctx, movementID)
}

var _ Repository = (*mockMovementRepo)(nil)

type mockPackagings struct {
	items []*packaging.Packaging
}

func (m *mockPackagings) Resolve(ctx context.Context, brand, kg string) (*packaging.Packaging, error) {
	canonical := stockkey.NormalizeBrand(brand)
	q, err := types.ParseQuantity(kg)
	if err != nil {
		return nil, apperror.NewValidation("invalid packaging weight").WithDetail("value", kg)
	}
	for _, p := range m.items {
		if p.Brand == canonical && p.KeyKg() == stockkey.FormatKg(q) {
			return p, nil
		}
	}
	return nil, apperror.NewNotFound("packaging", canonical+" "+kg)
}

type mockLocations struct {
	items map[string]*location.Location
}

func (m *mockLocations) Resolve(ctx context.Context, code string) (*location.Location, error) {
	canonical := stockkey.NormalizeLocation(code)
	if loc, ok := m.items[canonical]; ok {
		return loc, nil
	}
	return nil, apperror.NewNotFound("location", code)
}

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

func (m *mockLedgerRepo) FoldBalance(ctx context.Context, key stockkey.Key, asOf time.Time, profile stockledger.Profile) (stockledger.Balance, error) {
	var b stockledger.Balance
	for _, l := range m.legs {
		if l.Key != key {
			continue
		}
		if !profile.Includes(l.Kind, stockledger.DayOf(l.Period), asOf) {
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
		if l.Key == key && l.Kind == entity.LegKindConversionSource && stockledger.DayOf(l.Period).Equal(date) {
			sum += l.Bags
		}
	}
	return sum, nil
}

func (m *mockLedgerRepo) BalanceGrid(ctx context.Context, filter stockledger.GridFilter, asOf time.Time) ([]stockledger.GridRow, error) {
	return nil, nil
}

func (m *mockLedgerRepo) ListLegs(ctx context.Context, filter stockledger.LegFilter) ([]entity.StockLeg, error) {
	return m.legs, nil
}

func (m *mockLedgerRepo) OrphanLegs(ctx context.Context, limit int) ([]entity.StockLeg, error) {
	return nil, nil
}

var _ stockledger.Repository = (*mockLedgerRepo)(nil)

// --- fixture ---

type fixture struct {
	svc    *Service
	repo   *mockMovementRepo
	ledger *mockLedgerRepo
	events *mockEvents
	locker *mockLocker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ledgerRepo := &mockLedgerRepo{}
	ledgerSvc := stockledger.NewService(ledgerRepo)
	txm := mockTxManager{}
	engine := posting.NewEngine(ledgerSvc, txm)
	repo := newMockMovementRepo()
	locker := &mockLocker{}
	evs := &mockEvents{}

	var seq int
	numbers := &numerator.MockGenerator{
		GetNextNumberFunc: func(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
			seq++
			return fmt.Sprintf("%s2025-%05d", cfg.Prefix, seq), nil
		},
	}

	packs := &mockPackagings{items: []*packaging.Packaging{
		packaging.NewPackaging("PKG25-00001", "NLC 30kg", "NLC", types.NewQuantityFromInt(30)),
		packaging.NewPackaging("PKG25-00002", "Sona 26kg", "Sona", types.NewQuantityFromInt(26)),
	}}
	locs := &mockLocations{items: map[string]*location.Location{
		"MILL": location.NewLocation("MILL", "Mill floor", location.KindMill),
		"GD-1": location.NewLocation("GD-1", "Godown 1", location.KindGodown),
	}}

	svc := NewService(repo, packs, locs, ledgerSvc, engine, approval.MustPolicy(""), numbers, txm, locker, evs)
	return &fixture{svc: svc, repo: repo, ledger: ledgerRepo, events: evs, locker: locker}
}

// seedStock records an already-posted production leg so the key has balance.
func (f *fixture) seedStock(t *testing.T, key stockkey.Key, date time.Time, bags int64, kgPerBag int64) {
	t.Helper()
	leg := entity.NewStockLeg(
		id.New(), 1, date,
		entity.LegKindProduction, key,
		bags, types.NewQuantityFromInt(kgPerBag).MulInt(bags),
	)
	if err := f.ledger.ReplaceLegs(context.Background(), leg.RecorderID, 1, []entity.StockLeg{leg}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
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

func operatorCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "ravi", Role: appctx.RoleOperator,
	})
}

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "owner", Role: appctx.RoleAdmin,
	})
}

func paddyKey(loc string) stockkey.Key {
	return stockkey.New(loc, "sum25 rnr", "paddy", "nlc", types.NewQuantityFromInt(30))
}

func productionProposal(t *testing.T, bags int64) Proposal {
	return Proposal{
		Type:           TypeProduction,
		Date:           day(t, "2025-07-10"),
		Location:       "mill",
		Variety:        "Sum25 RNR",
		ProductType:    "Paddy",
		PackagingBrand: "NLC",
		PackagingKg:    "30",
		Bags:           bags,
	}
}

func saleProposal(t *testing.T, bags int64) Proposal {
	p := productionProposal(t, bags)
	p.Type = TypeSale
	p.BillNumber = "B-142"
	return p
}

func paltiProposal(t *testing.T) Proposal {
	return Proposal{
		Type:                 TypePalti,
		Date:                 day(t, "2025-07-10"),
		Location:             "mill",
		Variety:              "Sum25 RNR",
		ProductType:          "Paddy",
		SourcePackagingBrand: "NLC",
		SourcePackagingKg:    "30",
		Quintals:             "15",
		TargetPackagingBrand: "Sona",
		TargetPackagingKg:    "26",
		TargetBags:           57,
	}
}

// --- tests ---

func TestCreate_ProductionDerivesQuintals(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.Create(operatorCtx(), productionProposal(t, 50))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if m.Status != StatusPending {
		t.Errorf("Status = %s, want pending", m.Status)
	}
	if m.Posted {
		t.Error("new movement must not be posted")
	}
	if m.Quintals != qty(t, "15") {
		t.Errorf("Quintals = %s, want 15", m.Quintals)
	}
	if m.LocationCode != "MILL" || m.Variety != "sum25 rnr" || m.ProductType != "paddy" {
		t.Errorf("dimensions not canonical: %s / %s / %s", m.LocationCode, m.Variety, m.ProductType)
	}
	if m.PackagingBrand == nil || *m.PackagingBrand != "nlc" {
		t.Errorf("PackagingBrand = %v, want nlc", m.PackagingBrand)
	}
	if m.PackagingKg == nil || *m.PackagingKg != qty(t, "30") {
		t.Errorf("PackagingKg = %v, want 30", m.PackagingKg)
	}
	if m.Number != "PRD2025-00001" {
		t.Errorf("Number = %q", m.Number)
	}
	if m.RequiresAdminApproval {
		t.Error("50-bag production must not need admin approval")
	}
	if m.CreatedBy != "ravi" {
		t.Errorf("CreatedBy = %q", m.CreatedBy)
	}
	if !f.events.has("movement.created") {
		t.Error("movement.created event not published")
	}
	if len(f.ledger.legs) != 0 {
		t.Errorf("pending movement wrote %d legs", len(f.ledger.legs))
	}
	if _, err := f.repo.GetByID(context.Background(), m.ID); err != nil {
		t.Errorf("movement not persisted: %v", err)
	}
}

func TestCreate_PurchaseKeepsMeasuredQuintals(t *testing.T) {
	f := newFixture(t)

	p := productionProposal(t, 100)
	p.Type = TypePurchase
	p.Quintals = "29.85"

	m, err := f.svc.Create(operatorCtx(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Quintals != qty(t, "29.85") {
		t.Errorf("Quintals = %s, want measured 29.85", m.Quintals)
	}
	if m.Number != "PUR2025-00001" {
		t.Errorf("Number = %q", m.Number)
	}
}

func TestCreate_PaltiDerivesSourceBagsAndShortage(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, paddyKey("MILL"), day(t, "2025-07-09"), 50, 30)

	m, err := f.svc.Create(operatorCtx(), paltiProposal(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if m.SourceBags == nil || *m.SourceBags != 50 {
		t.Fatalf("SourceBags = %v, want 50", m.SourceBags)
	}
	if m.Bags != 57 {
		t.Errorf("Bags = %d, want target 57", m.Bags)
	}
	if m.ShortageKg != qty(t, "18") {
		t.Errorf("ShortageKg = %s, want 18", m.ShortageKg)
	}
	if m.ShortageBags != 1 {
		t.Errorf("ShortageBags = %d, want 1", m.ShortageBags)
	}
	if !m.RequiresAdminApproval {
		t.Error("palti must need admin approval under the default policy")
	}
	if m.Number != "PAL2025-00001" {
		t.Errorf("Number = %q", m.Number)
	}
}

func TestCreate_PaltiFromBagsDerivesQuintals(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, paddyKey("MILL"), day(t, "2025-07-09"), 50, 30)

	p := paltiProposal(t)
	p.Quintals = ""
	p.SourceBags = 50

	m, err := f.svc.Create(operatorCtx(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.Quintals != qty(t, "15") {
		t.Errorf("Quintals = %s, want derived 15", m.Quintals)
	}
}

func TestCreateBatch_GateRejectsOverdraw(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBatch(operatorCtx(), []Proposal{saleProposal(t, 10)})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInsufficientStock {
		t.Fatalf("error = %v, want %s", err, apperror.CodeInsufficientStock)
	}
	if appErr.Details["batchIndex"] != 0 {
		t.Errorf("batchIndex = %v, want 0", appErr.Details["batchIndex"])
	}
	if len(f.repo.byID) != 0 {
		t.Error("failed batch must persist nothing")
	}
	if len(f.events.published) != 0 {
		t.Error("failed batch must publish nothing")
	}
}

func TestCreateBatch_SecondPaltiSameSourceRejected(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, paddyKey("MILL"), day(t, "2025-07-09"), 50, 30)

	_, err := f.svc.CreateBatch(operatorCtx(), []Proposal{paltiProposal(t), paltiProposal(t)})
	if err == nil {
		t.Fatal("expected second palti to overdraw the source key")
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInsufficientStock {
		t.Fatalf("error = %v, want %s", err, apperror.CodeInsufficientStock)
	}
	if appErr.Details["batchIndex"] != 1 {
		t.Errorf("batchIndex = %v, want 1", appErr.Details["batchIndex"])
	}
	if len(f.repo.byID) != 0 {
		t.Error("failed batch must persist nothing")
	}
}

func TestApprove_PostsImmediately(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.Create(operatorCtx(), productionProposal(t, 50))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := f.svc.Approve(operatorCtx(), m.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if approved.Status != StatusApproved || !approved.Countable() {
		t.Errorf("Status = %s, Countable = %v", approved.Status, approved.Countable())
	}
	if !approved.Posted || approved.PostedVersion != 1 {
		t.Errorf("Posted = %v, PostedVersion = %d", approved.Posted, approved.PostedVersion)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != "ravi" {
		t.Errorf("ApprovedBy = %v", approved.ApprovedBy)
	}

	if len(f.ledger.legs) != 1 {
		t.Fatalf("legs = %d, want 1", len(f.ledger.legs))
	}
	leg := f.ledger.legs[0]
	if leg.Kind != entity.LegKindProduction || leg.Bags != 50 || leg.NetKg != qty(t, "1500") {
		t.Errorf("leg = %s/%d/%s", leg.Kind, leg.Bags, leg.NetKg)
	}
	if leg.Key != paddyKey("MILL") {
		t.Errorf("leg key = %v", leg.Key)
	}

	if len(f.locker.calls) != 1 || len(f.locker.calls[0]) != 1 {
		t.Errorf("locker calls = %v, want one call with one token", f.locker.calls)
	}

	stored, err := f.repo.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.Posted {
		t.Error("posted state not persisted")
	}
	if !f.events.has("movement.approved") {
		t.Error("movement.approved event not published")
	}
}

func TestApprove_SaleGateRechecksUnderLock(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, paddyKey("MILL"), day(t, "2025-07-09"), 50, 30)

	first, err := f.svc.Create(operatorCtx(), saleProposal(t, 30))
	if err != nil {
		t.Fatalf("create first sale: %v", err)
	}
	// Both sales pass the creation gate: neither is countable yet.
	second, err := f.svc.Create(operatorCtx(), saleProposal(t, 30))
	if err != nil {
		t.Fatalf("create second sale: %v", err)
	}

	if _, err := f.svc.Approve(operatorCtx(), first.ID); err != nil {
		t.Fatalf("approve first sale: %v", err)
	}

	_, err = f.svc.Approve(operatorCtx(), second.ID)
	if err == nil {
		t.Fatal("second sale must fail the re-check: only 20 bags left")
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInsufficientStock {
		t.Fatalf("error = %v, want %s", err, apperror.CodeInsufficientStock)
	}
	if appErr.Details["available"] != int64(20) {
		t.Errorf("available = %v, want 20", appErr.Details["available"])
	}

	stored, err := f.repo.GetByID(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != StatusPending || stored.Posted {
		t.Errorf("failed approval must leave movement pending, got %s posted=%v", stored.Status, stored.Posted)
	}

	// First sale's legs only.
	var saleLegs int
	for _, l := range f.ledger.legs {
		if l.Kind == entity.LegKindSale {
			saleLegs++
		}
	}
	if saleLegs != 1 {
		t.Errorf("sale legs = %d, want 1", saleLegs)
	}
}

func TestAdminApprove_PaltiFlow(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, paddyKey("MILL"), day(t, "2025-07-09"), 50, 30)

	m, err := f.svc.Create(operatorCtx(), paltiProposal(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := f.svc.Approve(operatorCtx(), m.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Countable() || approved.Posted {
		t.Error("palti must not count before admin approval")
	}
	if len(f.ledger.legs) != 1 {
		t.Errorf("legs = %d, want only the seed", len(f.ledger.legs))
	}

	if _, err := f.svc.AdminApprove(operatorCtx(), m.ID); err == nil {
		t.Fatal("operator must not admin-approve")
	} else if appErr, ok := apperror.AsAppError(err); !ok || appErr.Code != apperror.CodeForbidden {
		t.Fatalf("error = %v, want %s", err, apperror.CodeForbidden)
	}

	final, err := f.svc.AdminApprove(adminCtx(), m.ID)
	if err != nil {
		t.Fatalf("AdminApprove: %v", err)
	}
	if !final.Countable() || !final.Posted {
		t.Error("admin-approved palti must be posted")
	}
	if final.AdminApprovedBy == nil || *final.AdminApprovedBy != "owner" {
		t.Errorf("AdminApprovedBy = %v", final.AdminApprovedBy)
	}

	var source, target *entity.StockLeg
	for i := range f.ledger.legs {
		l := &f.ledger.legs[i]
		switch l.Kind {
		case entity.LegKindConversionSource:
			source = l
		case entity.LegKindConversionTarget:
			target = l
		}
	}
	if source == nil || target == nil {
		t.Fatalf("palti must write source and target legs, got %d legs", len(f.ledger.legs))
	}
	if source.Bags != 50 || source.NetKg != qty(t, "1500") {
		t.Errorf("source leg = %d bags %s", source.Bags, source.NetKg)
	}
	if target.Bags != 57 || target.NetKg != qty(t, "1482") {
		t.Errorf("target leg = %d bags %s", target.Bags, target.NetKg)
	}
	if target.Key.PackagingBrand != "sona" || target.Key.PackagingKg != "26.00" {
		t.Errorf("target key = %v", target.Key)
	}

	// Both palti keys were locked.
	last := f.locker.calls[len(f.locker.calls)-1]
	if len(last) != 2 {
		t.Errorf("palti posting locked %d keys, want 2", len(last))
	}
}

func TestReject_KeepsAuditRow(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, paddyKey("MILL"), day(t, "2025-07-09"), 50, 30)

	m, err := f.svc.Create(operatorCtx(), saleProposal(t, 10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rejected, err := f.svc.Reject(operatorCtx(), m.ID, "duplicate entry")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Errorf("Status = %s", rejected.Status)
	}
	if rejected.RejectedBy == nil || *rejected.RejectedBy != "ravi" {
		t.Errorf("RejectedBy = %v", rejected.RejectedBy)
	}
	if rejected.RejectReason == nil || *rejected.RejectReason != "duplicate entry" {
		t.Errorf("RejectReason = %v", rejected.RejectReason)
	}

	if _, err := f.svc.Approve(operatorCtx(), m.ID); err == nil {
		t.Error("rejected movement must not be approvable")
	}
	if _, err := f.repo.GetByID(context.Background(), m.ID); err != nil {
		t.Errorf("rejected row must remain: %v", err)
	}
}

func TestDelete_OnlyBeforeCounting(t *testing.T) {
	f := newFixture(t)

	m, err := f.svc.Create(operatorCtx(), productionProposal(t, 50))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Approve(operatorCtx(), m.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	err = f.svc.Delete(operatorCtx(), m.ID)
	if appErr, ok := apperror.AsAppError(err); !ok || appErr.Code != apperror.CodeMovementPosted {
		t.Fatalf("delete posted: error = %v, want %s", err, apperror.CodeMovementPosted)
	}

	pending, err := f.svc.Create(operatorCtx(), productionProposal(t, 10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.Delete(operatorCtx(), pending.ID); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	if _, err := f.repo.GetByID(context.Background(), pending.ID); !apperror.IsNotFound(err) {
		t.Errorf("pending movement still present after delete: %v", err)
	}
}

func TestCreateBatch_Empty(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBatch(operatorCtx(), nil)
	if appErr, ok := apperror.AsAppError(err); !ok || appErr.Code != apperror.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestCreate_UnknownLocationRejected(t *testing.T) {
	f := newFixture(t)

	p := productionProposal(t, 10)
	p.Location = "GD-9"
	if _, err := f.svc.Create(operatorCtx(), p); !apperror.IsNotFound(err) {
		t.Fatalf("error = %v, want not found", err)
	}
}
