package gpu

import (
	"errors"
	"strings"
	"testing"
)

func TestMemoryLedgerUnlimited(t *testing.T) {
	l := NewMemoryLedger(0)
	if err := l.Reserve("positions", 1<<30); err != nil {
		t.Fatalf("Reserve failed without a budget: %v", err)
	}
	s := l.Stats()
	if s.BudgetBytes != 0 || s.UsedBytes != 1<<30 || s.Resources != 1 || s.Utilization != 0 {
		t.Errorf("Stats() = %+v", s)
	}
	if !strings.Contains(s.String(), "1024.0 MB") {
		t.Errorf("String() = %q", s.String())
	}
}

func TestMemoryLedgerBudget(t *testing.T) {
	l := NewMemoryLedger(1)
	if err := l.Reserve("target", 600*1024); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	err := l.Reserve("staging", 600*1024)
	if !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Fatalf("error = %v, want ErrMemoryBudgetExceeded", err)
	}
	if got := l.Stats().UsedBytes; got != 600*1024 {
		t.Errorf("failed reservation changed usage to %d", got)
	}

	l.Release("target", 600*1024)
	if err := l.Reserve("staging", 600*1024); err != nil {
		t.Errorf("Reserve after Release failed: %v", err)
	}
	if labels := l.Labels(); len(labels) != 1 || labels[0] != "staging" {
		t.Errorf("Labels() = %v, want [staging]", labels)
	}
}

func TestMemoryLedgerAccumulatesLabels(t *testing.T) {
	l := NewMemoryLedger(0)
	_ = l.Reserve("snapshot", 100)
	_ = l.Reserve("snapshot", 50)
	_ = l.Reserve("masses", 10)

	l.Release("snapshot", 100)
	if s := l.Stats(); s.UsedBytes != 60 || s.Resources != 2 {
		t.Errorf("Stats() = %+v, want 60 bytes in 2 resources", s)
	}
	l.Release("snapshot", 500)
	l.Release("unknown", 5)
	if s := l.Stats(); s.UsedBytes != 10 || s.Resources != 1 {
		t.Errorf("Stats() = %+v, want 10 bytes in 1 resource", s)
	}
}

func TestReservationsReleaseAll(t *testing.T) {
	l := NewMemoryLedger(0)
	r := reservations{ledger: l}
	if err := r.reserve("a", 8); err != nil {
		t.Fatal(err)
	}
	if err := r.reserve("b", 16); err != nil {
		t.Fatal(err)
	}
	r.releaseAll()
	if s := l.Stats(); s.UsedBytes != 0 || s.Resources != 0 {
		t.Errorf("Stats() after releaseAll = %+v", s)
	}

	var none reservations
	if err := none.reserve("x", 1); err != nil {
		t.Errorf("reserve without ledger failed: %v", err)
	}
	none.releaseAll()
}
