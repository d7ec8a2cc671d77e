package orderbook

import (
	"testing"

	"github.com/rickgao/depthbook/internal/model"
)

func TestSide_ResetOmitsEmptyLevels(t *testing.T) {
	s := newSide(true)
	s.set(500, 1) // discarded by reset

	s.reset([]model.PriceLevel{
		{Price: 10, Quantity: 1},
		{Price: 12, Quantity: 0},
		{Price: 11, Quantity: -1},
		{Price: 9, Quantity: 3},
	})

	if s.depth() != 2 {
		t.Errorf("depth() = %d, want 2", s.depth())
	}
	if s.index.Len() != 2 {
		t.Errorf("index Len() = %d, want 2", s.index.Len())
	}
	p, q, ok := s.best()
	if !ok || p != 10 || q != 1 {
		t.Errorf("best() = (%v, %v, %v), want (10, 1, true)", p, q, ok)
	}
}

func TestSide_BidsAndAsksOrdering(t *testing.T) {
	tests := []struct {
		name string
		max  bool
		want float64
	}{
		{"bids max-heap", true, 105},
		{"asks min-heap", false, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSide(tt.max)
			for _, p := range []float64{100, 95, 105, 101, 99} {
				s.set(p, 1)
			}
			if p, _, _ := s.best(); p != tt.want {
				t.Errorf("best() = %v, want %v", p, tt.want)
			}
		})
	}
}

func TestSide_LazyPrune(t *testing.T) {
	s := newSide(false)
	for _, p := range []float64{101, 102, 103} {
		s.set(p, 1)
	}

	// Deleting drops the map entry but leaves the index alone.
	s.set(101, 0)
	s.set(102, 0)
	if s.index.Len() != 3 {
		t.Errorf("index Len() after delete = %d, want 3", s.index.Len())
	}
	if _, ok := s.levels[101]; ok {
		t.Error("deleted level still in map")
	}

	p, _, ok := s.best()
	if !ok || p != 103 {
		t.Errorf("best() = (%v, %v), want (103, true)", p, ok)
	}
	if s.index.Len() != 1 {
		t.Errorf("index Len() after prune = %d, want 1", s.index.Len())
	}

	s.set(103, 0)
	if _, _, ok := s.best(); ok {
		t.Error("best() on an empty side should report false")
	}
	if s.index.Len() != 0 {
		t.Errorf("index Len() = %d, want 0", s.index.Len())
	}
}

func TestSide_UpsertKeepsLatestQuantity(t *testing.T) {
	s := newSide(true)
	s.set(100, 1)
	s.set(100, 4)
	s.set(100, 2.5)

	if s.depth() != 1 {
		t.Errorf("depth() = %d, want 1", s.depth())
	}
	// Duplicates are allowed in the index.
	if s.index.Len() != 3 {
		t.Errorf("index Len() = %d, want 3", s.index.Len())
	}
	_, q, _ := s.best()
	if q != 2.5 {
		t.Errorf("best qty = %v, want 2.5", q)
	}

	// A duplicate of a deleted price must not resurrect it.
	s.set(100, 0)
	if _, _, ok := s.best(); ok {
		t.Error("best() should report false after the only level is removed")
	}
}

func TestSide_CompactBoundsIndex(t *testing.T) {
	s := newSide(true)
	s.set(50, 1)
	s.set(60, 1)

	for i := 0; i < 5*compactSlack; i++ {
		s.set(60, float64(i+1))
	}

	if limit := 2*s.depth() + compactSlack; s.index.Len() > limit {
		t.Errorf("index Len() = %d, want <= %d", s.index.Len(), limit)
	}
	p, q, _ := s.best()
	if p != 60 || q != float64(5*compactSlack) {
		t.Errorf("best() = (%v, %v), want (60, %d)", p, q, 5*compactSlack)
	}

	s.set(60, 0)
	if p, _, _ := s.best(); p != 50 {
		t.Errorf("best() after removing top = %v, want 50", p)
	}
}
