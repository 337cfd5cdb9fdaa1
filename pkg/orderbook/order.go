package orderbook

import (
	"fmt"
	"time"
)

type Side string

const (
	BID Side = "BID"
	ASK Side = "ASK"
)

// Opposite returns the side an order of s matches against.
func (s Side) Opposite() Side {
	if s == BID {
		return ASK
	}
	return BID
}

type OrderType string

const (
	LIMIT  OrderType = "LIMIT"
	MARKET OrderType = "MARKET"
)

type Order struct {
	ID        string // client order id
	Symbol    string
	Side      Side
	Type      OrderType
	Price     float64
	Qty       int64
	Session   string
	Timestamp float64 // microseconds
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%s symbol=%s side=%s type=%s px=%v qty=%d session=%s}",
		o.ID, o.Symbol, o.Side, o.Type, o.Price, o.Qty, o.Session)
}

// Trade describes one side of a match. Both trades of a match share ExecID and Price.
type Trade struct {
	Symbol    string
	Price     float64
	Qty       int64
	Side      Side
	ExecID    string
	OrderID   string
	Session   string
	Timestamp float64
}

type PriceLevel struct {
	Price float64
	Qty   int64
}

type Snapshot struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
	Trades []PriceLevel // price and quantity of the trades that produced this snapshot
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func micros(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e3
}
