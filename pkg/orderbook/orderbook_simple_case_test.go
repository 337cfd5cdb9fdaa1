package orderbook

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestBook() *Orderbook {
	return New("TEST", WithClock(fixedClock{time.Unix(1700000000, 0)}))
}

func limit(id string, side Side, price float64, qty int64) *Order {
	return &Order{ID: id, Symbol: "TEST", Side: side, Type: LIMIT, Price: price, Qty: qty, Session: "S-" + id}
}

func drain(ob *Orderbook) []Trade {
	var trades []Trade
	for tr := range ob.DrainTrades() {
		trades = append(trades, tr)
	}
	return trades
}

func mustNew(t *testing.T, ob *Orderbook, o *Order) {
	t.Helper()
	if err := ob.NewOrder(o); err != nil {
		t.Fatalf("NewOrder(%s): %v", o.ID, err)
	}
}

func TestWrongInstrument(t *testing.T) {
	ob := newTestBook()
	o := limit("B1", BID, 23.54, 100)
	o.Symbol = "HYG"

	if err := ob.NewOrder(o); !errors.Is(err, ErrWrongInstrument) {
		t.Fatalf("expected ErrWrongInstrument, got %v", err)
	}
	if ob.LiveOrders() != 0 {
		t.Fatalf("rejected order must not be indexed")
	}
}

func TestInsertionRests(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("B1", BID, 23.54, 100))

	bids, asks := ob.Book()
	if len(bids) != 1 || bids[0] != (PriceLevel{Price: 23.54, Qty: 100}) {
		t.Fatalf("unexpected bids %+v", bids)
	}
	if len(asks) != 0 {
		t.Fatalf("unexpected asks %+v", asks)
	}
	if ob.BestBid() != 23.54 || !math.IsInf(ob.BestAsk(), 1) {
		t.Fatalf("unexpected bbo %v/%v", ob.BestBid(), ob.BestAsk())
	}
	if ob.PendingTrades() != 0 {
		t.Fatalf("resting order must not trade")
	}
}

func TestEmptyBookBBO(t *testing.T) {
	ob := newTestBook()
	bid, ask := ob.BBO()
	if !math.IsInf(bid, -1) || !math.IsInf(ask, 1) {
		t.Fatalf("expected -Inf/+Inf, got %v/%v", bid, ask)
	}
}

func TestFullExecution(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("B1", BID, 23.54, 100))
	mustNew(t, ob, limit("S1", ASK, 23.54, 100))

	trades := drain(ob)
	if len(trades) != 2 {
		t.Fatalf("expected one trade pair, got %d trades", len(trades))
	}
	resting, aggressor := trades[0], trades[1]
	if resting.OrderID != "B1" || resting.Side != BID || resting.Session != "S-B1" {
		t.Errorf("first trade should describe the resting bid: %+v", resting)
	}
	if aggressor.OrderID != "S1" || aggressor.Side != ASK || aggressor.Session != "S-S1" {
		t.Errorf("second trade should describe the aggressor: %+v", aggressor)
	}
	for _, tr := range trades {
		if tr.Price != 23.54 || tr.Qty != 100 {
			t.Errorf("incorrect qty/price: %+v", tr)
		}
	}
	if resting.ExecID != aggressor.ExecID || resting.ExecID != "TEST000001" {
		t.Errorf("trade pair must share exec id, got %s/%s", resting.ExecID, aggressor.ExecID)
	}

	bids, asks := ob.Book()
	if len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("both orders should be consumed, book %+v %+v", bids, asks)
	}
	if ob.LiveOrders() != 0 {
		t.Fatalf("consumed orders must leave the live index")
	}
}

func TestPartialAggressiveFill(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("B1", BID, 23.54, 50))
	mustNew(t, ob, limit("S1", ASK, 23.54, 100))

	trades := drain(ob)
	if len(trades) != 2 || trades[0].Qty != 50 || trades[1].Qty != 50 {
		t.Fatalf("expected one 50 lot trade pair, got %+v", trades)
	}

	bids, asks := ob.Book()
	if len(bids) != 0 {
		t.Fatalf("bid should be consumed, got %+v", bids)
	}
	if len(asks) != 1 || asks[0] != (PriceLevel{Price: 23.54, Qty: 50}) {
		t.Fatalf("expected resting ask 50@23.54, got %+v", asks)
	}
	if _, side, ok := ob.Lookup("S1"); !ok || side != ASK {
		t.Fatalf("remainder should be live")
	}
}

func TestMarketOrderSweep(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("B1", BID, 23.54, 100))
	mustNew(t, ob, &Order{ID: "M1", Symbol: "TEST", Side: ASK, Type: MARKET, Qty: 50})

	trades := drain(ob)
	if len(trades) != 2 || trades[1].Qty != 50 || trades[1].Price != 23.54 {
		t.Fatalf("unexpected trades %+v", trades)
	}

	bids, asks := ob.Book()
	if len(bids) != 1 || bids[0].Qty != 50 {
		t.Fatalf("expected bid left at 50, got %+v", bids)
	}
	if len(asks) != 0 {
		t.Fatalf("market order must never rest, got %+v", asks)
	}
}

func TestMarketOrderRemainderDropped(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("S1", ASK, 10, 30))
	mustNew(t, ob, &Order{ID: "M1", Symbol: "TEST", Side: BID, Type: MARKET, Qty: 100})

	if trades := drain(ob); len(trades) != 2 || trades[0].Qty != 30 {
		t.Fatalf("unexpected trades %+v", trades)
	}
	bids, asks := ob.Book()
	if len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("expected empty book, got %+v %+v", bids, asks)
	}
	if _, _, ok := ob.Lookup("M1"); ok {
		t.Fatalf("market order must not stay in the live index")
	}
}

func TestMarketOrderEmptyBook(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, &Order{ID: "M1", Symbol: "TEST", Side: BID, Type: MARKET, Qty: 10})

	if ob.PendingTrades() != 0 || ob.LiveOrders() != 0 {
		t.Fatalf("market order against an empty book is a no-op")
	}
}

func TestNoMatchDueToPrice(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("S1", ASK, 100, 10))
	mustNew(t, ob, limit("B1", BID, 98, 10))

	if ob.PendingTrades() != 0 {
		t.Fatalf("expected no match")
	}
	if ob.BestBid() != 98 || ob.BestAsk() != 100 {
		t.Fatalf("unexpected bbo %v/%v", ob.BestBid(), ob.BestAsk())
	}
}

func TestFIFOMatch(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("A", ASK, 100, 5))
	mustNew(t, ob, limit("B", ASK, 100, 5))
	mustNew(t, ob, limit("X", BID, 100, 5))

	trades := drain(ob)
	if len(trades) != 2 {
		t.Fatalf("expected one trade pair, got %+v", trades)
	}
	if trades[0].OrderID != "A" {
		t.Fatalf("first resting order must fill first, got %s", trades[0].OrderID)
	}
	if _, _, ok := ob.Lookup("B"); !ok {
		t.Fatalf("second order should still rest")
	}
}

func TestMultiLevelMatch(t *testing.T) {
	ob := newTestBook()
	for i, px := range []float64{103, 101, 102} {
		mustNew(t, ob, limit(fmt.Sprintf("S%d", i), ASK, px, 5))
	}
	mustNew(t, ob, limit("B1", BID, 105, 15))

	trades := drain(ob)
	if len(trades) != 6 {
		t.Fatalf("expected 3 trade pairs, got %d", len(trades))
	}
	want := []float64{101, 102, 103}
	for i := range want {
		if trades[2*i].Price != want[i] {
			t.Errorf("pair %d: expected price %v, got %v", i, want[i], trades[2*i].Price)
		}
	}
	if ids := []string{trades[0].ExecID, trades[2].ExecID, trades[4].ExecID}; ids[0] >= ids[1] || ids[1] >= ids[2] {
		t.Errorf("exec ids must increase, got %v", ids)
	}
	if bids, asks := ob.Book(); len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("expected empty book, got %+v %+v", bids, asks)
	}
}

func TestLimitStopsAtPrice(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("S1", ASK, 101, 5))
	mustNew(t, ob, limit("S2", ASK, 103, 5))
	mustNew(t, ob, limit("B1", BID, 102, 10))

	trades := drain(ob)
	if len(trades) != 2 || trades[0].Price != 101 {
		t.Fatalf("expected a single fill at 101, got %+v", trades)
	}
	if ob.BestBid() != 102 || ob.BestAsk() != 103 {
		t.Fatalf("remainder should rest at 102 under the 103 ask, got %v/%v", ob.BestBid(), ob.BestAsk())
	}
}

func TestDuplicateOrderID(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("B1", BID, 10, 10))

	if err := ob.NewOrder(limit("B1", BID, 11, 10)); !errors.Is(err, ErrDuplicateOrderID) {
		t.Fatalf("expected ErrDuplicateOrderID, got %v", err)
	}
	bids, _ := ob.Book()
	if len(bids) != 1 || bids[0].Price != 10 {
		t.Fatalf("duplicate must not touch the book, got %+v", bids)
	}
}

func TestDrainTradesIsOneShot(t *testing.T) {
	ob := newTestBook()
	mustNew(t, ob, limit("B1", BID, 10, 10))
	mustNew(t, ob, limit("S1", ASK, 10, 4))
	mustNew(t, ob, limit("S2", ASK, 10, 4))

	seq := ob.DrainTrades()
	n := 0
	for range seq {
		n++
		break
	}
	if n != 1 || ob.PendingTrades() != 3 {
		t.Fatalf("early stop should consume exactly one trade, pending=%d", ob.PendingTrades())
	}
	if rest := drain(ob); len(rest) != 3 || rest[0].OrderID != "S1" {
		t.Fatalf("remaining trades out of order: %+v", rest)
	}
	if len(drain(ob)) != 0 {
		t.Fatalf("drained queue must be empty")
	}
}

func TestHighVolumeOrders(t *testing.T) {
	ob := newTestBook()

	num := 10_000
	for i := 0; i < num; i++ {
		side := BID
		if i%2 == 0 {
			side = ASK
		}
		mustNew(t, ob, limit(fmt.Sprintf("ORD-%d", i), side, 100.0, 10))
	}

	if trades := drain(ob); len(trades) != num {
		t.Errorf("expected %d trades, got %d", num, len(trades))
	}
}

func BenchmarkOrderBookMatch(b *testing.B) {
	ob := New("TEST")

	for i := 0; i < 10_000; i++ {
		_ = ob.NewOrder(&Order{
			ID:     fmt.Sprintf("SELL-%d", i),
			Symbol: "TEST",
			Side:   ASK,
			Price:  100.0 + float64(i%5),
			Qty:    10,
			Type:   LIMIT,
		})
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = ob.NewOrder(&Order{
			ID:     fmt.Sprintf("BUY-%d", i),
			Symbol: "TEST",
			Side:   BID,
			Price:  101.0,
			Qty:    10,
			Type:   LIMIT,
		})
		for range ob.DrainTrades() {
		}
	}
}
