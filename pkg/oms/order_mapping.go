package oms

import (
	"context"
	"sync"
	"time"

	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ownership records every client order id a session has ever submitted.
// Only a cancel takes an id out again.
type ownership struct {
	mu     sync.Mutex
	orders map[string]map[string]struct{}
}

func newOwnership() *ownership {
	return &ownership{orders: make(map[string]map[string]struct{})}
}

func (o *ownership) record(session, clOrdID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids, ok := o.orders[session]
	if !ok {
		ids = make(map[string]struct{})
		o.orders[session] = ids
	}
	ids[clOrdID] = struct{}{}
}

func (o *ownership) owns(session, clOrdID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, ok := o.orders[session][clOrdID]
	return ok
}

func (o *ownership) forget(session, clOrdID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.orders[session], clOrdID)
}

type orderKey struct {
	session string
	clOrdID string
}

// orderState is what the router knows about an open order beyond the book:
// the exchange order id and the running fill totals.
type orderState struct {
	orderID  string
	symbol   string
	side     model.OrderSide
	qty      decimal.Decimal
	price    decimal.Decimal
	cum      decimal.Decimal
	notional decimal.Decimal
}

func (st *orderState) leaves() decimal.Decimal {
	if l := st.qty.Sub(st.cum); l.IsPositive() {
		return l
	}
	return decimal.Zero
}

func (st *orderState) avgPx() decimal.Decimal {
	if st.cum.IsZero() {
		return decimal.Zero
	}
	return st.notional.Div(st.cum)
}

func (st *orderState) fields(clOrdID string, ts time.Time) model.ReportFields {
	return model.ReportFields{
		OrderID:      st.orderID,
		ClOrdID:      clOrdID,
		Symbol:       st.symbol,
		Side:         st.side,
		OrderQty:     st.qty,
		Price:        st.price,
		CumQty:       st.cum,
		LeavesQty:    st.leaves(),
		AvgPx:        st.avgPx(),
		TransactTime: ts,
	}
}

type orderStates struct {
	mu     sync.Mutex
	orders map[orderKey]*orderState
}

func newOrderStates() *orderStates {
	return &orderStates{orders: make(map[orderKey]*orderState)}
}

func (s *orderStates) open(key orderKey, st *orderState) {
	s.mu.Lock()
	s.orders[key] = st
	s.mu.Unlock()
}

// get returns a copy so callers can read it without holding the lock.
func (s *orderStates) get(key orderKey) (orderState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.orders[key]
	if !ok {
		return orderState{}, false
	}
	return *st, true
}

// fill applies an execution and returns the order state after it.
func (s *orderStates) fill(key orderKey, qty, px decimal.Decimal) (orderState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.orders[key]
	if !ok {
		return orderState{}, false
	}
	st.cum = st.cum.Add(qty)
	st.notional = st.notional.Add(qty.Mul(px))
	return *st, true
}

func (s *orderStates) close(key orderKey) {
	s.mu.Lock()
	delete(s.orders, key)
	s.mu.Unlock()
}

func (s *orderStates) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// markEnded queues a finished order's journal chain for cleanup.
func (s *OMS) markEnded(orderID string) {
	if s.cfg.EventRetention <= 0 {
		return
	}
	s.endedMu.Lock()
	s.ended[orderID] = s.clock.Now()
	s.endedMu.Unlock()
}

func (s *OMS) startCleaner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(s.clock.Now())
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

func (s *OMS) cleanup(now time.Time) {
	s.endedMu.Lock()
	var expired []string
	for orderID, at := range s.ended {
		if now.Sub(at) >= s.cfg.EventRetention {
			expired = append(expired, orderID)
			delete(s.ended, orderID)
		}
	}
	s.endedMu.Unlock()

	for _, orderID := range expired {
		s.eventstore.DeleteChainByOrderID(orderID)
	}
	if len(expired) > 0 {
		s.logger.Debug("cleaned up finished orders", zap.Int("count", len(expired)))
	}
}
