package orderbook

import (
	"container/heap"

	"github.com/rickgao/depthbook/internal/model"
)

// compactSlack is how far the index may outgrow the level map before it is
// rebuilt from the map keys.
const compactSlack = 1024

// priceHeap is a binary heap of prices. max selects a max-heap (bids);
// otherwise it is a min-heap (asks). Entries may be stale or duplicated.
type priceHeap struct {
	prices []float64
	max    bool
}

func (h *priceHeap) Len() int { return len(h.prices) }

func (h *priceHeap) Less(i, j int) bool {
	if h.max {
		return h.prices[i] > h.prices[j]
	}
	return h.prices[i] < h.prices[j]
}

func (h *priceHeap) Swap(i, j int) { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceHeap) Push(x any) {
	h.prices = append(h.prices, x.(float64))
}

func (h *priceHeap) Pop() any {
	old := h.prices
	n := len(old)
	x := old[n-1]
	h.prices = old[:n-1]
	return x
}

func (h *priceHeap) peek() (float64, bool) {
	if len(h.prices) == 0 {
		return 0, false
	}
	return h.prices[0], true
}

// side is one half of the book: price -> aggregate quantity plus a lazily
// pruned heap index of prices. The map never holds a quantity <= 0.
type side struct {
	levels map[float64]float64
	index  *priceHeap
}

func newSide(max bool) *side {
	return &side{
		levels: make(map[float64]float64),
		index:  &priceHeap{max: max},
	}
}

// reset replaces the side with the given levels. Levels with quantity <= 0
// are omitted. Index entries are pushed as-is without deduplication.
func (s *side) reset(levels []model.PriceLevel) {
	s.levels = make(map[float64]float64, len(levels))
	s.index.prices = make([]float64, 0, len(levels))
	for _, l := range levels {
		if l.Quantity <= 0 {
			continue
		}
		s.levels[l.Price] = l.Quantity
		s.index.prices = append(s.index.prices, l.Price)
	}
	heap.Init(s.index)
}

// set upserts a level, or removes it when qty <= 0. A removed price stays in
// the index until it surfaces at the top.
func (s *side) set(price, qty float64) {
	if qty <= 0 {
		delete(s.levels, price)
		return
	}
	s.levels[price] = qty
	heap.Push(s.index, price)

	if s.index.Len() > 2*len(s.levels)+compactSlack {
		s.compact()
	}
}

// prune pops index entries whose price is no longer in the map.
func (s *side) prune() {
	for {
		p, ok := s.index.peek()
		if !ok {
			return
		}
		if _, live := s.levels[p]; live {
			return
		}
		heap.Pop(s.index)
	}
}

// best returns the top price and its quantity after pruning.
func (s *side) best() (price, qty float64, ok bool) {
	s.prune()
	p, ok := s.index.peek()
	if !ok {
		return 0, 0, false
	}
	return p, s.levels[p], true
}

// compact rebuilds the index from the live prices.
func (s *side) compact() {
	prices := make([]float64, 0, len(s.levels))
	for p := range s.levels {
		prices = append(prices, p)
	}
	s.index.prices = prices
	heap.Init(s.index)
}

func (s *side) depth() int {
	return len(s.levels)
}
