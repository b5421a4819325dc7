package packaging

import (
	"context"
	"strings"
	"testing"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
)

// mockRepo covers the finder surface Resolve and the update hook use.
// The embedded interface satisfies the rest of Repository.
type mockRepo struct {
	Repository

	rows       []*Packaging
	referenced bool
}

var _ Repository = (*mockRepo)(nil)

func (m *mockRepo) FindByBrandAndKg(_ context.Context, brand, keyKg string) (*Packaging, error) {
	for _, p := range m.rows {
		if p.Brand == brand && p.KeyKg() == keyKg {
			return p, nil
		}
	}
	return nil, apperror.NewNotFound("packaging", brand+" "+keyKg)
}

func (m *mockRepo) ListByBrand(_ context.Context, brand string) ([]*Packaging, error) {
	var out []*Packaging
	for _, p := range m.rows {
		if p.Brand == brand {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, pkgID id.ID) (*Packaging, error) {
	for _, p := range m.rows {
		if p.ID == pkgID {
			return p, nil
		}
	}
	return nil, apperror.NewNotFound("packaging", pkgID.String())
}

func (m *mockRepo) IsReferenced(context.Context, id.ID) (bool, error) {
	return m.referenced, nil
}

func pkgRow(brand string, kg int64) *Packaging {
	return NewPackaging("PKG-TEST", brand, brand, types.NewQuantityFromInt(kg))
}

func TestResolve_NormalizesBrandAndWeight(t *testing.T) {
	repo := &mockRepo{rows: []*Packaging{pkgRow("sona", 26)}}
	svc := NewService(repo, nil, nil)

	p, err := svc.Resolve(context.Background(), "  SONA ", "26.0")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.Brand != "sona" || p.KeyKg() != "26.00" {
		t.Errorf("Resolve() = %s %s, want sona 26.00", p.Brand, p.KeyKg())
	}
}

func TestResolve_BrandAloneWithSingleWeight(t *testing.T) {
	repo := &mockRepo{rows: []*Packaging{pkgRow("jaya", 25)}}
	svc := NewService(repo, nil, nil)

	p, err := svc.Resolve(context.Background(), "Jaya", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.KeyKg() != "25.00" {
		t.Errorf("Resolve() kg = %s, want 25.00", p.KeyKg())
	}
}

func TestResolve_BrandAloneAmbiguous(t *testing.T) {
	repo := &mockRepo{rows: []*Packaging{pkgRow("sona", 25), pkgRow("sona", 26)}}
	svc := NewService(repo, nil, nil)

	_, err := svc.Resolve(context.Background(), "sona", " ")
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeValidation {
		t.Fatalf("Resolve() error = %v, want %s", err, apperror.CodeValidation)
	}

	weights, _ := appErr.Details["weights"].(string)
	if !strings.Contains(weights, "25.00") || !strings.Contains(weights, "26.00") {
		t.Errorf("weights detail = %q, want both registered weights", weights)
	}
}

func TestResolve_UnknownBrand(t *testing.T) {
	svc := NewService(&mockRepo{}, nil, nil)

	_, err := svc.Resolve(context.Background(), "ponni", "")
	if !apperror.IsNotFound(err) {
		t.Fatalf("Resolve() error = %v, want not found", err)
	}
}

func TestUpdateHook_WeightFrozenOnceReferenced(t *testing.T) {
	stored := pkgRow("sona", 26)
	repo := &mockRepo{rows: []*Packaging{stored}, referenced: true}
	svc := NewService(repo, nil, nil)

	edited := *stored
	edited.KgPerBag = types.NewQuantityFromInt(25)

	err := svc.checkFrozenOnceReferenced(context.Background(), &edited)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodePackagingFrozen {
		t.Fatalf("hook error = %v, want %s", err, apperror.CodePackagingFrozen)
	}
}

func TestUpdateHook_BrandFrozenOnceReferenced(t *testing.T) {
	stored := pkgRow("sona", 26)
	repo := &mockRepo{rows: []*Packaging{stored}, referenced: true}
	svc := NewService(repo, nil, nil)

	edited := *stored
	edited.Brand = "sona masoori"

	err := svc.checkFrozenOnceReferenced(context.Background(), &edited)
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodePackagingFrozen {
		t.Fatalf("hook error = %v, want %s", err, apperror.CodePackagingFrozen)
	}
}

func TestUpdateHook_NameStaysEditable(t *testing.T) {
	stored := pkgRow("sona", 26)
	repo := &mockRepo{rows: []*Packaging{stored}, referenced: true}
	svc := NewService(repo, nil, nil)

	// Denormalized brand spelling of the same value is not an edit.
	edited := *stored
	edited.Name = "Sona 26kg gunny"
	edited.Brand = " SONA "

	if err := svc.checkFrozenOnceReferenced(context.Background(), &edited); err != nil {
		t.Fatalf("hook error = %v, want nil", err)
	}
}

func TestUpdateHook_UnreferencedRowStaysEditable(t *testing.T) {
	stored := pkgRow("sona", 26)
	repo := &mockRepo{rows: []*Packaging{stored}, referenced: false}
	svc := NewService(repo, nil, nil)

	edited := *stored
	edited.KgPerBag = types.NewQuantityFromInt(25)

	if err := svc.checkFrozenOnceReferenced(context.Background(), &edited); err != nil {
		t.Fatalf("hook error = %v, want nil", err)
	}
}
