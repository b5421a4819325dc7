package numerator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "millstock/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences upsert per key: increment by one,
// reserve a range, or pin a value, depending on the statement shape.
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	key := args[0].(string)
	switch {
	case strings.Contains(sql, "sys_sequences.current_val + $2"):
		m.values[key] += args[1].(int64)
	case strings.Contains(sql, "sys_sequences.current_val + 1"):
		m.values[key]++
	default:
		m.values[key] = args[1].(int64)
	}

	return &mockRow{val: m.values[key]}
}

func (m *mockQuerier) value(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

var july = time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("TEST")

	num, err := svc.GetNextNumber(ctx, cfg, nil, july)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TEST-2025-00001" {
		t.Errorf("expected TEST-2025-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, july)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TEST-2025-00002" {
		t.Errorf("expected TEST-2025-00002, got %s", num)
	}

	// Strict goes to the database every time.
	if q.calls != 2 {
		t.Errorf("expected 2 db calls, got %d", q.calls)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("ORD")

	opts := &corenumerator.Options{
		Strategy:  corenumerator.StrategyCached,
		RangeSize: 10,
	}

	// First call reserves 1..10; the database jumps straight to 10.
	num, err := svc.GetNextNumber(ctx, cfg, opts, july)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2025-00001" {
		t.Errorf("expected ORD-2025-00001, got %s", num)
	}
	if got := q.value("ORD_2025"); got != 10 {
		t.Errorf("expected DB value 10, got %d", got)
	}

	// Second call is served from memory.
	num, err = svc.GetNextNumber(ctx, cfg, opts, july)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2025-00002" {
		t.Errorf("expected ORD-2025-00002, got %s", num)
	}
	if got := q.value("ORD_2025"); got != 10 {
		t.Errorf("expected DB value to stay 10, got %d", got)
	}

	// Exhaust the range; the next call reserves 11..20.
	for i := 0; i < 8; i++ {
		if _, err := svc.GetNextNumber(ctx, cfg, opts, july); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, july)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2025-00011" {
		t.Errorf("expected ORD-2025-00011, got %s", num)
	}
	if got := q.value("ORD_2025"); got != 20 {
		t.Errorf("expected DB value 20, got %d", got)
	}
}

func TestSetNextNumber_DropsCachedRange(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("INV")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	// Fill the in-memory range 1..10.
	if _, err := svc.GetNextNumber(ctx, cfg, opts, july); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.SetNextNumber(ctx, cfg, july, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The stale range is gone: the next number reserves past the pin.
	num, err := svc.GetNextNumber(ctx, cfg, opts, july)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2025-00101" {
		t.Errorf("expected INV-2025-00101, got %s", num)
	}
	if got := q.value("INV_2025"); got != 110 {
		t.Errorf("expected DB value 110, got %d", got)
	}
}

func TestGetNextNumber_YearlyReset(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("PLT")

	num, err := svc.GetNextNumber(ctx, cfg, nil, july)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "PLT-2025-00001" {
		t.Errorf("expected PLT-2025-00001, got %s", num)
	}

	// A new year starts its own sequence.
	nextYear := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	num, err = svc.GetNextNumber(ctx, cfg, nil, nextYear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "PLT-2026-00001" {
		t.Errorf("expected PLT-2026-00001, got %s", num)
	}
}
