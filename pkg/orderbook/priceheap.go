package orderbook

import "container/heap"

// priceHeap orders the distinct prices of one side of the book, best first.
// A price whose level empties stays in the heap until it reaches the top,
// where best discards it.
type priceHeap struct {
	prices []float64
	better func(a, b float64) bool
	queued map[float64]struct{}
}

func newPriceHeap(side Side) *priceHeap {
	better := func(a, b float64) bool { return a < b }
	if side == BID {
		better = func(a, b float64) bool { return a > b }
	}
	return &priceHeap{
		better: better,
		queued: make(map[float64]struct{}),
	}
}

func (h priceHeap) Len() int           { return len(h.prices) }
func (h priceHeap) Less(i, j int) bool { return h.better(h.prices[i], h.prices[j]) }
func (h priceHeap) Swap(i, j int)      { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceHeap) Push(x any) {
	h.prices = append(h.prices, x.(float64))
}

func (h *priceHeap) Pop() any {
	n := len(h.prices)
	price := h.prices[n-1]
	h.prices = h.prices[:n-1]
	delete(h.queued, price)
	return price
}

// add queues price unless it is already in the heap, live or stale.
func (h *priceHeap) add(price float64) {
	if _, ok := h.queued[price]; ok {
		return
	}
	h.queued[price] = struct{}{}
	heap.Push(h, price)
}

// best returns the best price with a non-empty level in book, deleting the
// empty levels it passes.
func (h *priceHeap) best(book levels) (float64, bool) {
	for len(h.prices) > 0 {
		price := h.prices[0]
		if level := book[price]; level != nil && level.Len() > 0 {
			return price, true
		}
		heap.Pop(h)
		delete(book, price)
	}
	return 0, false
}

// drop deletes the level at price. The heap entry goes now if it is on top,
// otherwise best discards it later.
func (h *priceHeap) drop(book levels, price float64) {
	delete(book, price)
	if len(h.prices) > 0 && h.prices[0] == price {
		heap.Pop(h)
	}
}
