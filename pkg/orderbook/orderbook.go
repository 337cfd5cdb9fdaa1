// file: pkg/orderbook/orderbook.go

package orderbook

import (
	"fmt"
	"iter"
	"math"
	"sort"

	"github.com/gammazero/deque"
)

type levels map[float64]*deque.Deque[*Order]

type liveOrder struct {
	price float64
	side  Side
}

// Orderbook is the limit order book of one instrument. It is not safe for
// concurrent use; callers serialize access through Market.
type Orderbook struct {
	symbol string
	clock  Clock

	bids    levels
	asks    levels
	bidHeap *priceHeap
	askHeap *priceHeap

	live    map[string]liveOrder
	trades  deque.Deque[Trade]
	execSeq uint64
}

type Option func(*Orderbook)

func WithClock(c Clock) Option {
	return func(ob *Orderbook) {
		ob.clock = c
	}
}

func New(symbol string, opts ...Option) *Orderbook {
	ob := &Orderbook{
		symbol:  symbol,
		clock:   RealClock{},
		bids:    make(levels),
		asks:    make(levels),
		bidHeap: newPriceHeap(BID),
		askHeap: newPriceHeap(ASK),
		live:    make(map[string]liveOrder),
	}
	for _, opt := range opts {
		opt(ob)
	}
	return ob
}

func (ob *Orderbook) Symbol() string {
	return ob.symbol
}

// NewOrder matches order against the book and rests any limit remainder.
// Market orders never rest.
func (ob *Orderbook) NewOrder(order *Order) error {
	if order.Symbol != ob.symbol {
		return fmt.Errorf("%w: %s order sent to %s book", ErrWrongInstrument, order.Symbol, ob.symbol)
	}
	if _, ok := ob.live[order.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.ID)
	}
	if order.Timestamp == 0 {
		order.Timestamp = micros(ob.clock.Now())
	}

	// registered before matching so the id is taken for the whole pass
	ob.live[order.ID] = liveOrder{price: order.Price, side: order.Side}

	switch order.Type {
	case MARKET:
		ob.executeMarket(order)
	default:
		ob.executeLimit(order)
	}
	return nil
}

func (ob *Orderbook) executeMarket(order *Order) {
	order.Price = math.Inf(1)
	if order.Side == ASK {
		order.Price = math.Inf(-1)
	}

	ob.match(order)

	// unmatched market quantity is dropped
	delete(ob.live, order.ID)
}

func (ob *Orderbook) executeLimit(order *Order) {
	if ob.crossesBook(order) {
		ob.match(order)
	}

	if order.Qty > 0 {
		ob.rest(order)
		return
	}
	delete(ob.live, order.ID)
}

func (ob *Orderbook) crossesBook(order *Order) bool {
	if order.Side == BID {
		askPrice, ok := ob.askHeap.best(ob.asks)
		return ok && order.Price >= askPrice
	}
	bidPrice, ok := ob.bidHeap.best(ob.bids)
	return ok && order.Price <= bidPrice
}

func crosses(side Side, orderPrice, bookPrice float64) bool {
	if side == ASK {
		return orderPrice <= bookPrice
	}
	return orderPrice >= bookPrice
}

// match walks the opposite side in price priority, FIFO within each level,
// until the incoming order is exhausted or the next level no longer crosses.
func (ob *Orderbook) match(order *Order) {
	counter, counterHeap := ob.asks, ob.askHeap
	if order.Side == ASK {
		counter, counterHeap = ob.bids, ob.bidHeap
	}

	for order.Qty > 0 {
		price, ok := counterHeap.best(counter)
		if !ok || !crosses(order.Side, order.Price, price) {
			return
		}

		level := counter[price]
		for order.Qty > 0 && level.Len() > 0 {
			resting := level.Front()
			ob.execute(order, resting)
			if resting.Qty == 0 {
				level.PopFront()
				delete(ob.live, resting.ID)
			}
		}

		if level.Len() == 0 {
			counterHeap.drop(counter, price)
		}
	}
}

func (ob *Orderbook) execute(order, resting *Order) {
	qty := min(order.Qty, resting.Qty)
	order.Qty -= qty
	resting.Qty -= qty

	execID := ob.nextExecID()
	ts := micros(ob.clock.Now())

	ob.trades.PushBack(Trade{
		Symbol:    resting.Symbol,
		Price:     resting.Price,
		Qty:       qty,
		Side:      resting.Side,
		ExecID:    execID,
		OrderID:   resting.ID,
		Session:   resting.Session,
		Timestamp: ts,
	})
	ob.trades.PushBack(Trade{
		Symbol:    order.Symbol,
		Price:     resting.Price,
		Qty:       qty,
		Side:      order.Side,
		ExecID:    execID,
		OrderID:   order.ID,
		Session:   order.Session,
		Timestamp: ts,
	})
}

func (ob *Orderbook) nextExecID() string {
	ob.execSeq++
	return fmt.Sprintf("%s%06d", ob.symbol, ob.execSeq)
}

func (ob *Orderbook) rest(order *Order) {
	book, priceHeap := ob.bids, ob.bidHeap
	if order.Side == ASK {
		book, priceHeap = ob.asks, ob.askHeap
	}

	if book[order.Price] == nil {
		book[order.Price] = &deque.Deque[*Order]{}
		priceHeap.add(order.Price)
	}
	book[order.Price].PushBack(order)
	ob.live[order.ID] = liveOrder{price: order.Price, side: order.Side}
}


// ReplaceOrder removes the resting order origID and submits order through
// NewOrder, so the replacement may trade immediately.
func (ob *Orderbook) ReplaceOrder(origID string, order *Order) error {
	if order.Symbol != ob.symbol {
		return fmt.Errorf("%w: %s order sent to %s book", ErrWrongInstrument, order.Symbol, ob.symbol)
	}
	lo, ok := ob.live[origID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, origID)
	}
	if order.Side != lo.side {
		return fmt.Errorf("%w: %s is %s", ErrSideMismatch, origID, lo.side)
	}
	if _, dup := ob.live[order.ID]; dup && order.ID != origID {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.ID)
	}

	ob.remove(origID, lo)
	return ob.NewOrder(order)
}

func (ob *Orderbook) DeleteOrder(orderID string) error {
	lo, ok := ob.live[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	ob.remove(orderID, lo)
	return nil
}

func (ob *Orderbook) remove(orderID string, lo liveOrder) *Order {
	book, priceHeap := ob.bids, ob.bidHeap
	if lo.side == ASK {
		book, priceHeap = ob.asks, ob.askHeap
	}
	delete(ob.live, orderID)

	level := book[lo.price]
	if level == nil {
		return nil
	}
	var removed *Order
	if i := level.Index(func(o *Order) bool { return o.ID == orderID }); i >= 0 {
		removed = level.Remove(i)
	}
	if level.Len() == 0 {
		priceHeap.drop(book, lo.price)
	}
	return removed
}

// Lookup reports the resting price and side of a live order.
func (ob *Orderbook) Lookup(orderID string) (float64, Side, bool) {
	lo, ok := ob.live[orderID]
	return lo.price, lo.side, ok
}

// BestBid returns -Inf when there are no bids.
func (ob *Orderbook) BestBid() float64 {
	if price, ok := ob.bidHeap.best(ob.bids); ok {
		return price
	}
	return math.Inf(-1)
}

// BestAsk returns +Inf when there are no asks.
func (ob *Orderbook) BestAsk() float64 {
	if price, ok := ob.askHeap.best(ob.asks); ok {
		return price
	}
	return math.Inf(1)
}

func (ob *Orderbook) BBO() (bid, ask float64) {
	return ob.BestBid(), ob.BestAsk()
}

// Book aggregates resting quantity per price: bids descending, asks ascending.
func (ob *Orderbook) Book() (bids, asks []PriceLevel) {
	return aggregate(ob.bids, true), aggregate(ob.asks, false)
}

func aggregate(book levels, descending bool) []PriceLevel {
	prices := make([]float64, 0, len(book))
	for price, level := range book {
		if level.Len() > 0 {
			prices = append(prices, price)
		}
	}
	if descending {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}

	out := make([]PriceLevel, 0, len(prices))
	for _, price := range prices {
		level := book[price]
		var qty int64
		for i := 0; i < level.Len(); i++ {
			qty += level.At(i).Qty
		}
		out = append(out, PriceLevel{Price: price, Qty: qty})
	}
	return out
}

func (ob *Orderbook) Snapshot() Snapshot {
	bids, asks := ob.Book()
	return Snapshot{Symbol: ob.symbol, Bids: bids, Asks: asks}
}

// DrainTrades yields pending trades in generation order, removing each one
// as it is consumed.
func (ob *Orderbook) DrainTrades() iter.Seq[Trade] {
	return func(yield func(Trade) bool) {
		for ob.trades.Len() > 0 {
			if !yield(ob.trades.PopFront()) {
				return
			}
		}
	}
}

func (ob *Orderbook) PendingTrades() int {
	return ob.trades.Len()
}

func (ob *Orderbook) LiveOrders() int {
	return len(ob.live)
}
