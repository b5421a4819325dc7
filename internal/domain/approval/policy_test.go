package approval

import (
	"context"
	"testing"
)

func TestPolicy_DefaultExpr(t *testing.T) {
	p := MustPolicy("")

	if p.Expr() != DefaultAdminTierExpr {
		t.Fatalf("Expr() = %q, want default", p.Expr())
	}

	tests := []struct {
		name string
		in   Input
		want bool
	}{
		{"palti always escalates", Input{Type: "palti", Bags: 1, SourceBags: 2}, true},
		{"large sale escalates", Input{Type: "sale", Bags: 500}, true},
		{"sale under threshold stays single tier", Input{Type: "sale", Bags: 499}, false},
		{"small purchase stays single tier", Input{Type: "purchase", Bags: 10}, false},
		{"large production escalates", Input{Type: "production", Bags: 1200}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.RequiresAdminTier(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("RequiresAdminTier: %v", err)
			}
			if got != tt.want {
				t.Errorf("RequiresAdminTier(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPolicy_CustomExpr(t *testing.T) {
	p, err := NewPolicy(`product_type == 'rice' && quintals > 100.0`)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	got, err := p.RequiresAdminTier(context.Background(), Input{
		Type:        "sale",
		ProductType: "rice",
		Quintals:    148.2,
	})
	if err != nil {
		t.Fatalf("RequiresAdminTier: %v", err)
	}
	if !got {
		t.Error("expected rice over 100 quintals to escalate")
	}

	got, err = p.RequiresAdminTier(context.Background(), Input{
		Type:        "sale",
		ProductType: "paddy",
		Quintals:    148.2,
	})
	if err != nil {
		t.Fatalf("RequiresAdminTier: %v", err)
	}
	if got {
		t.Error("expected paddy to stay single tier under this policy")
	}
}

func TestNewPolicy_RejectsBadExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"syntax error", `bags >=`},
		{"non-bool result", `bags + 1`},
		{"unknown variable", `weight > 10`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPolicy(tt.expr); err == nil {
				t.Errorf("NewPolicy(%q) succeeded, want error", tt.expr)
			}
		})
	}
}
