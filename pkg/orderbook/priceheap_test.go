package orderbook

import (
	"testing"

	"github.com/gammazero/deque"
)

func level(orders ...*Order) *deque.Deque[*Order] {
	d := &deque.Deque[*Order]{}
	for _, o := range orders {
		d.PushBack(o)
	}
	return d
}

func TestPriceHeapSkipsStaleLevels(t *testing.T) {
	h := newPriceHeap(BID)
	book := levels{
		101: level(),
		100: level(&Order{ID: "1"}),
		99:  level(&Order{ID: "2"}),
	}
	for _, p := range []float64{99, 101, 100, 101} {
		h.add(p)
	}
	if h.Len() != 3 {
		t.Fatalf("duplicate price queued twice, len %d", h.Len())
	}

	price, ok := h.best(book)
	if !ok || price != 100 {
		t.Fatalf("expected best 100, got %v %v", price, ok)
	}
	if _, ok := book[101]; ok {
		t.Fatalf("empty level 101 should be deleted once passed")
	}

	h.drop(book, 100)
	if price, _ := h.best(book); price != 99 {
		t.Fatalf("expected 99 after drop, got %v", price)
	}

	h.drop(book, 99)
	if _, ok := h.best(book); ok {
		t.Fatalf("expected empty side")
	}
}

func TestPriceHeapAskOrder(t *testing.T) {
	h := newPriceHeap(ASK)
	book := levels{
		102: level(&Order{ID: "1"}),
		100: level(&Order{ID: "2"}),
	}
	h.add(102)
	h.add(100)

	// a level dropped below the top stays queued until best reaches it
	h.drop(book, 102)
	if h.Len() != 2 {
		t.Fatalf("expected stale entry to remain, len %d", h.Len())
	}
	if price, _ := h.best(book); price != 100 {
		t.Fatalf("expected 100, got %v", price)
	}
	h.add(102)
	book[102] = level(&Order{ID: "3"})
	h.drop(book, 100)
	if price, ok := h.best(book); !ok || price != 102 {
		t.Fatalf("re-added price should be live, got %v %v", price, ok)
	}
}
