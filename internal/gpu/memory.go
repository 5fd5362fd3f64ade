package gpu

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrMemoryBudgetExceeded is returned when a reservation would exceed the
// device memory budget.
var ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

// MemoryStats contains device memory usage statistics.
type MemoryStats struct {
	// BudgetBytes is the memory budget in bytes. Zero means unlimited.
	BudgetBytes uint64

	// UsedBytes is the memory currently reserved.
	UsedBytes uint64

	// Resources is the number of labelled resources holding memory.
	Resources int

	// Utilization is UsedBytes/BudgetBytes, or 0 without a budget.
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	if s.BudgetBytes == 0 {
		return fmt.Sprintf("Memory[%.1f MB, %d resources]", mb(s.UsedBytes), s.Resources)
	}
	return fmt.Sprintf("Memory[%.1f%% used, %.1f/%.1f MB, %d resources]",
		s.Utilization*100, mb(s.UsedBytes), mb(s.BudgetBytes), s.Resources)
}

func mb(b uint64) float64 { return float64(b) / (1024 * 1024) }

// MemoryLedger accounts for the buffers and textures created on a device
// and enforces an optional budget. Sizes are the requested sizes, not the
// driver's actual allocation.
//
// MemoryLedger is safe for concurrent use.
type MemoryLedger struct {
	mu     sync.Mutex
	budget uint64
	used   uint64
	bytes  map[string]uint64
}

// NewMemoryLedger creates a ledger with a budget in megabytes.
// A budget <= 0 disables the limit.
func NewMemoryLedger(budgetMB int) *MemoryLedger {
	l := &MemoryLedger{bytes: make(map[string]uint64)}
	l.SetBudget(budgetMB)
	return l
}

// SetBudget replaces the budget. Existing reservations are kept even when
// they exceed the new budget.
func (l *MemoryLedger) SetBudget(budgetMB int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if budgetMB <= 0 {
		l.budget = 0
		return
	}
	l.budget = uint64(budgetMB) * 1024 * 1024
}

// Reserve records size bytes under label, failing if the budget would be
// exceeded. Reservations under the same label accumulate.
func (l *MemoryLedger) Reserve(label string, size uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.budget > 0 && l.used+size > l.budget {
		return fmt.Errorf("%w: %s needs %d bytes, %d of %d in use",
			ErrMemoryBudgetExceeded, label, size, l.used, l.budget)
	}
	l.used += size
	l.bytes[label] += size
	return nil
}

// Release returns size bytes reserved under label.
func (l *MemoryLedger) Release(label string, size uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	held := l.bytes[label]
	size = min(size, held)
	l.used -= size
	if held == size {
		delete(l.bytes, label)
	} else {
		l.bytes[label] = held - size
	}
}

// Stats returns current usage statistics.
func (l *MemoryLedger) Stats() MemoryStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := MemoryStats{BudgetBytes: l.budget, UsedBytes: l.used, Resources: len(l.bytes)}
	if l.budget > 0 {
		s.Utilization = float64(l.used) / float64(l.budget)
	}
	return s
}

// Labels returns the labels currently holding memory, sorted.
func (l *MemoryLedger) Labels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	labels := make([]string, 0, len(l.bytes))
	for label := range l.bytes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// reservations remembers what one owner reserved so it can release it all.
type reservations struct {
	ledger  *MemoryLedger
	entries []reservation
}

type reservation struct {
	label string
	size  uint64
}

func (r *reservations) reserve(label string, size uint64) error {
	if r.ledger == nil {
		return nil
	}
	if err := r.ledger.Reserve(label, size); err != nil {
		return err
	}
	r.entries = append(r.entries, reservation{label, size})
	return nil
}

func (r *reservations) releaseAll() {
	if r.ledger == nil {
		return
	}
	for _, e := range r.entries {
		r.ledger.Release(e.label, e.size)
	}
	r.entries = nil
}
