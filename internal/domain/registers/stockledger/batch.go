package stockledger

import (
	"time"

	"millstock/internal/core/stockkey"
)

// BatchState accumulates in-flight same-date source deductions while a
// batch of proposals validates sequentially. Legs not yet written still
// claim stock against later proposals in the same batch.
type BatchState struct {
	sources map[batchKey]int64
}

type batchKey struct {
	key  string
	date time.Time
}

// NewBatchState creates an empty batch accumulator.
func NewBatchState() *BatchState {
	return &BatchState{sources: make(map[batchKey]int64)}
}

// AddSource records a pending conversion-source deduction.
func (b *BatchState) AddSource(key stockkey.Key, date time.Time, bags int64) {
	if b == nil {
		return
	}
	b.sources[batchKey{key: key.String(), date: DayOf(date)}] += bags
}

// SameDateSources returns the accumulated pending deduction for a key+date.
// A nil BatchState reports zero, so single-event checks skip allocation.
func (b *BatchState) SameDateSources(key stockkey.Key, date time.Time) int64 {
	if b == nil {
		return 0
	}
	return b.sources[batchKey{key: key.String(), date: DayOf(date)}]
}
