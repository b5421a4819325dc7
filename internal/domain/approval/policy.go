// Package approval decides which stock movements need a second, admin-tier
// sign-off before they count toward balances. The rule is a CEL expression
// evaluated against a snapshot of the movement at creation time, so later
// policy changes never reclassify documents already in flight.
package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"millstock/internal/core/apperror"
)

// DefaultAdminTierExpr guards repackaging and high-volume movements.
const DefaultAdminTierExpr = `type == 'palti' || bags >= 500`

// Input is the fact set a policy expression can reference.
type Input struct {
	Type        string
	Bags        int64
	SourceBags  int64
	Location    string
	ProductType string
	Quintals    float64
}

// Policy evaluates the admin-tier rule for a movement snapshot.
type Policy struct {
	expr    string
	program cel.Program
}

// NewPolicy compiles expr into an evaluable program. An empty expression
// falls back to DefaultAdminTierExpr. Compilation errors are returned so a
// broken expression stops the process at startup rather than at the first
// movement.
func NewPolicy(expr string) (*Policy, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultAdminTierExpr
	}

	env, err := cel.NewEnv(
		cel.Variable("type", cel.StringType),
		cel.Variable("bags", cel.IntType),
		cel.Variable("source_bags", cel.IntType),
		cel.Variable("location", cel.StringType),
		cel.Variable("product_type", cel.StringType),
		cel.Variable("quintals", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("build approval policy environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile approval policy %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("approval policy %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build approval policy program: %w", err)
	}

	return &Policy{expr: expr, program: program}, nil
}

// MustPolicy is NewPolicy for wiring with known-good expressions, e.g. tests.
func MustPolicy(expr string) *Policy {
	p, err := NewPolicy(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Expr returns the source expression for logging and diagnostics.
func (p *Policy) Expr() string {
	return p.expr
}

// RequiresAdminTier reports whether the movement needs admin approval on top
// of the regular one.
func (p *Policy) RequiresAdminTier(ctx context.Context, in Input) (bool, error) {
	out, _, err := p.program.ContextEval(ctx, map[string]any{
		"type":         in.Type,
		"bags":         in.Bags,
		"source_bags":  in.SourceBags,
		"location":     in.Location,
		"product_type": in.ProductType,
		"quintals":     in.Quintals,
	})
	if err != nil {
		return false, apperror.NewInternal(fmt.Errorf("evaluate approval policy: %w", err))
	}

	verdict, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewInternal(fmt.Errorf("approval policy returned %T, want bool", out.Value()))
	}
	return verdict, nil
}
