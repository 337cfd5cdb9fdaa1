package orderbook

import (
	"errors"
	"testing"
)

func TestCancelOrder(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("1", BID, 100, 10))

	if err := ob.DeleteOrder("1"); err != nil {
		t.Fatalf("expected cancel success, got %v", err)
	}
	if _, _, ok := ob.Lookup("1"); ok {
		t.Fatalf("order should be removed from the live index")
	}
	if bids, _ := ob.Book(); len(bids) != 0 {
		t.Fatalf("empty level should be pruned, got %+v", bids)
	}
	if _, ok := ob.bids[100]; ok {
		t.Fatalf("level map entry should be pruned")
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("1", BID, 100, 10))
	before, _ := ob.Book()

	if err := ob.DeleteOrder("nope"); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
	after, _ := ob.Book()
	if len(before) != len(after) || before[0] != after[0] || ob.LiveOrders() != 1 {
		t.Fatalf("unknown cancel must not mutate the book")
	}
}

func TestCancelKeepsFIFOOfOthers(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("A", ASK, 50, 1))
	mustNew(t, ob, limit("B", ASK, 50, 1))
	mustNew(t, ob, limit("C", ASK, 50, 1))

	if err := ob.DeleteOrder("B"); err != nil {
		t.Fatal(err)
	}
	mustNew(t, ob, limit("X", BID, 50, 2))

	trades := drain(ob)
	if len(trades) != 4 || trades[0].OrderID != "A" || trades[2].OrderID != "C" {
		t.Fatalf("expected A then C to fill, got %+v", trades)
	}
}

func TestCancelNonBestLevel(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("B1", BID, 10, 1))
	mustNew(t, ob, limit("B2", BID, 9, 1))

	if err := ob.DeleteOrder("B2"); err != nil {
		t.Fatal(err)
	}
	// price 9 is re-used after its level was pruned below the top of the heap
	mustNew(t, ob, limit("B3", BID, 9, 3))
	if err := ob.DeleteOrder("B1"); err != nil {
		t.Fatal(err)
	}

	bids, _ := ob.Book()
	if len(bids) != 1 || bids[0] != (PriceLevel{Price: 9, Qty: 3}) {
		t.Fatalf("unexpected bids %+v", bids)
	}
	if ob.BestBid() != 9 {
		t.Fatalf("expected best bid 9, got %v", ob.BestBid())
	}
}

func TestReplaceSize(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("NEWORDER_1", BID, 23.54, 100))

	if err := ob.ReplaceOrder("NEWORDER_1", limit("NEWORDER_2", BID, 23.54, 120)); err != nil {
		t.Fatalf("expected replace success, got %v", err)
	}

	front := ob.bids[23.54].Front()
	if front.ID != "NEWORDER_2" || front.Qty != 120 {
		t.Fatalf("expected NEWORDER_2 for 120, got %v", front)
	}
	if _, _, ok := ob.Lookup("NEWORDER_1"); ok {
		t.Fatalf("original id must leave the live index")
	}
}

func TestReplacePriceAndSize(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("NEWORDER_1", BID, 23.54, 100))

	if err := ob.ReplaceOrder("NEWORDER_1", limit("NEWORDER_2", BID, 23.55, 120)); err != nil {
		t.Fatal(err)
	}

	bids, _ := ob.Book()
	if len(bids) != 1 || bids[0] != (PriceLevel{Price: 23.55, Qty: 120}) {
		t.Fatalf("expected 120@23.55, got %+v", bids)
	}
	if price, side, ok := ob.Lookup("NEWORDER_2"); !ok || price != 23.55 || side != BID {
		t.Fatalf("replacement not indexed at its new price")
	}
}

func TestReplaceLosesTimePriority(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("A", BID, 10, 5))
	mustNew(t, ob, limit("B", BID, 10, 5))

	if err := ob.ReplaceOrder("A", limit("A2", BID, 10, 5)); err != nil {
		t.Fatal(err)
	}
	mustNew(t, ob, limit("S", ASK, 10, 5))

	if trades := drain(ob); trades[0].OrderID != "B" {
		t.Fatalf("replaced order goes to the back of the level, got %s first", trades[0].OrderID)
	}
}

func TestReplaceExecutesImmediately(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("A", BID, 23.54, 100))
	mustNew(t, ob, limit("S", ASK, 23.55, 100))

	if err := ob.ReplaceOrder("A", limit("A2", BID, 23.55, 100)); err != nil {
		t.Fatal(err)
	}

	trades := drain(ob)
	if len(trades) != 2 || trades[1].OrderID != "A2" || trades[1].Price != 23.55 {
		t.Fatalf("replacement should trade at 23.55, got %+v", trades)
	}
	if bids, asks := ob.Book(); len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("expected empty book, got %+v %+v", bids, asks)
	}
}

func TestReplaceRejections(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("A", BID, 10, 5))
	mustNew(t, ob, limit("B", BID, 9, 5))

	if err := ob.ReplaceOrder("nope", limit("C", BID, 10, 5)); !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("expected ErrUnknownOrder, got %v", err)
	}
	if err := ob.ReplaceOrder("A", limit("C", ASK, 10, 5)); !errors.Is(err, ErrSideMismatch) {
		t.Errorf("expected ErrSideMismatch, got %v", err)
	}
	if err := ob.ReplaceOrder("A", limit("B", BID, 10, 5)); !errors.Is(err, ErrDuplicateOrderID) {
		t.Errorf("expected ErrDuplicateOrderID, got %v", err)
	}

	if _, _, ok := ob.Lookup("A"); !ok {
		t.Fatalf("failed replace must leave the original order resting")
	}
}

func TestReplaceSameID(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("A", ASK, 10, 5))

	if err := ob.ReplaceOrder("A", limit("A", ASK, 11, 7)); err != nil {
		t.Fatal(err)
	}
	_, asks := ob.Book()
	if len(asks) != 1 || asks[0] != (PriceLevel{Price: 11, Qty: 7}) {
		t.Fatalf("unexpected asks %+v", asks)
	}
}
