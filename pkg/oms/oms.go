package oms

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joripage/tradesim/pkg/logging"
	eventstore "github.com/joripage/tradesim/pkg/oms/event_store"
	"github.com/joripage/tradesim/pkg/oms/model"
	riskrule "github.com/joripage/tradesim/pkg/oms/risk_rule"
	"github.com/joripage/tradesim/pkg/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// noOrderID is reported as the exchange order id when a request never reached an order.
const noOrderID = "NONE"

type Config struct {
	// EventRetention is how long the event store keeps a finished order's
	// events. Zero keeps them for the life of the process.
	EventRetention time.Duration `yaml:"event_retention"`
	// CleanupInterval defaults to EventRetention.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// PriceLimits bounds limit prices of new and replacing orders.
	PriceLimits riskrule.LimitPriceConfig `yaml:"price_limits"`
}

// OMS turns order requests into book operations and book trades into
// execution reports addressed to the owning sessions.
type OMS struct {
	cfg        Config
	logger     *zap.Logger
	clock      orderbook.Clock
	markets    *orderbook.Registry
	eventstore eventstore.EventStore
	sinks      []SnapshotSink
	rules      []riskrule.RiskRule

	sessions *sessionSet
	owners   *ownership
	orders   *orderStates
	orderIDs *idGenerator
	execIDs  *idGenerator

	endedMu  sync.Mutex
	ended    map[string]time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

type Option func(*OMS)

func WithLogger(logger *zap.Logger) Option {
	return func(s *OMS) { s.logger = logger }
}

func WithClock(c orderbook.Clock) Option {
	return func(s *OMS) { s.clock = c }
}

func WithRegistry(r *orderbook.Registry) Option {
	return func(s *OMS) { s.markets = r }
}

func WithEventStore(es eventstore.EventStore) Option {
	return func(s *OMS) { s.eventstore = es }
}

// WithRiskRule adds a rule checked after the built-in price limits.
func WithRiskRule(rule riskrule.RiskRule) Option {
	return func(s *OMS) { s.rules = append(s.rules, rule) }
}

// WithSnapshotSink registers a sink that is told about every book change.
func WithSnapshotSink(sink SnapshotSink) Option {
	return func(s *OMS) { s.sinks = append(s.sinks, sink) }
}

func NewOMS(cfg Config, opts ...Option) *OMS {
	s := &OMS{
		cfg:      cfg,
		logger:   zap.NewNop(),
		clock:    orderbook.RealClock{},
		sessions: newSessionSet(),
		owners:   newOwnership(),
		orders:   newOrderStates(),
		orderIDs: newIDGenerator("O"),
		execIDs:  newIDGenerator("E"),
		ended:    make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		rules:    []riskrule.RiskRule{riskrule.NewLimitPriceRule(cfg.PriceLimits)},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.markets == nil {
		s.markets = orderbook.NewRegistry(orderbook.WithClock(s.clock))
	}
	if s.eventstore == nil {
		s.eventstore = eventstore.NewInMemoryEventStore()
	}
	s.logger = s.logger.Named("oms")
	return s
}

// Start runs background housekeeping until ctx is done or Stop is called.
func (s *OMS) Start(ctx context.Context) {
	if s.cfg.EventRetention <= 0 {
		return
	}
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = s.cfg.EventRetention
	}
	go s.startCleaner(ctx, interval)
}

// Stop may be called more than once.
func (s *OMS) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *OMS) checkRules(order riskrule.Order) error {
	for _, rule := range s.rules {
		if err := rule.Check(order); err != nil {
			return err
		}
	}
	return nil
}

func (s *OMS) Markets() *orderbook.Registry {
	return s.markets
}

func (s *OMS) EventStore() eventstore.EventStore {
	return s.eventstore
}

func (s *OMS) OnLogon(session string) {
	s.sessions.add(session)
	s.logger.Info("session logged on", zap.String("session", session))
}

func (s *OMS) OnLogout(session string) {
	s.sessions.remove(session)
	s.logger.Info("session logged out", zap.String("session", session))
}

func (s *OMS) IsLoggedOn(session string) bool {
	return s.sessions.contains(session)
}

func (s *OMS) AddOrder(ctx context.Context, addOrder *model.AddOrder) []model.Envelope {
	logger := logging.FromContext(ctx, s.logger).With(
		zap.String("session", addOrder.Session),
		zap.String("cl_ord_id", addOrder.ClOrdID),
		zap.String("symbol", addOrder.Symbol))

	fields := model.ReportFields{
		ClOrdID:      addOrder.ClOrdID,
		Symbol:       addOrder.Symbol,
		Side:         addOrder.Side,
		OrderQty:     addOrder.Quantity,
		Price:        addOrder.Price,
		TransactTime: s.clock.Now(),
	}
	side, err := validateOrder(addOrder.Side, addOrder.Type, addOrder.Price, addOrder.Quantity)
	if err == nil {
		err = s.checkRules(riskrule.Order{
			Symbol:   addOrder.Symbol,
			Type:     addOrder.Type,
			Price:    addOrder.Price,
			Quantity: addOrder.Quantity,
		})
	}
	if err != nil {
		return s.reject(addOrder.Session, fields, model.RejectOther, err.Error())
	}

	market := s.markets.GetOrCreate(addOrder.Symbol)
	s.owners.record(addOrder.Session, addOrder.ClOrdID)

	order := &orderbook.Order{
		ID:      addOrder.ClOrdID,
		Symbol:  addOrder.Symbol,
		Side:    side,
		Type:    bookOrderType[addOrder.Type],
		Price:   addOrder.Price.InexactFloat64(),
		Qty:     addOrder.Quantity.IntPart(),
		Session: addOrder.Session,
	}
	if order.Type == orderbook.MARKET {
		fields.Price = decimal.Zero
	}

	var out []model.Envelope
	market.Do(func(ob *orderbook.Orderbook) {
		if err := ob.NewOrder(order); err != nil {
			out = s.rejectBookError(logger, addOrder.Session, fields, err)
			return
		}

		key := orderKey{addOrder.Session, addOrder.ClOrdID}
		st := &orderState{
			orderID: s.orderIDs.Next(addOrder.Symbol),
			symbol:  addOrder.Symbol,
			side:    addOrder.Side,
			qty:     addOrder.Quantity,
			price:   fields.Price,
		}
		s.orders.open(key, st)

		trades := drain(ob)
		if len(trades) == 0 {
			ack := &model.Ack{ReportFields: st.fields(addOrder.ClOrdID, fields.TransactTime), Kind: model.ExecTypeNew}
			ack.ExecID = s.execIDs.Next(addOrder.Symbol)
			out = s.emit(addOrder.Session, ack)
		} else {
			out = s.fanOut(logger, trades)
		}

		// a market order never rests, whatever is left of it is dropped
		if order.Type == orderbook.MARKET {
			if _, open := s.orders.get(key); open {
				s.orders.close(key)
				s.markEnded(st.orderID)
			}
		}
		s.publish(ob, trades)
	})
	return out
}

func (s *OMS) ModifyOrder(ctx context.Context, modifyOrder *model.ModifyOrder) []model.Envelope {
	logger := logging.FromContext(ctx, s.logger).With(
		zap.String("session", modifyOrder.Session),
		zap.String("cl_ord_id", modifyOrder.ClOrdID),
		zap.String("orig_cl_ord_id", modifyOrder.OrigClOrdID),
		zap.String("symbol", modifyOrder.Symbol))

	fields := model.ReportFields{
		ClOrdID:      modifyOrder.ClOrdID,
		OrigClOrdID:  modifyOrder.OrigClOrdID,
		Symbol:       modifyOrder.Symbol,
		Side:         modifyOrder.Side,
		OrderQty:     modifyOrder.NewQuantity,
		Price:        modifyOrder.NewPrice,
		TransactTime: s.clock.Now(),
	}

	market, ok := s.markets.Get(modifyOrder.Symbol)
	if !ok {
		return s.reject(modifyOrder.Session, fields, model.RejectUnknownInstrument,
			fmt.Sprintf("Symbol %s not found.", modifyOrder.Symbol))
	}
	if !s.owners.owns(modifyOrder.Session, modifyOrder.OrigClOrdID) {
		return s.reject(modifyOrder.Session, fields, model.RejectUnknownOrder,
			fmt.Sprintf("Client order ID %s not found.", modifyOrder.OrigClOrdID))
	}
	err := validateReplace(modifyOrder.NewPrice, modifyOrder.NewQuantity)
	if err == nil {
		err = s.checkRules(riskrule.Order{
			Symbol:   modifyOrder.Symbol,
			Type:     model.OrderTypeLimit,
			Price:    modifyOrder.NewPrice,
			Quantity: modifyOrder.NewQuantity,
		})
	}
	if err != nil {
		return s.reject(modifyOrder.Session, fields, model.RejectOther, err.Error())
	}
	s.owners.record(modifyOrder.Session, modifyOrder.ClOrdID)

	var out []model.Envelope
	market.Do(func(ob *orderbook.Orderbook) {
		origKey := orderKey{modifyOrder.Session, modifyOrder.OrigClOrdID}
		prev, tracked := s.orders.get(origKey)
		_, bookSide, live := ob.Lookup(modifyOrder.OrigClOrdID)
		if !tracked || !live {
			out = s.reject(modifyOrder.Session, fields, model.RejectUnknownOrder,
				fmt.Sprintf("Order %s is no longer live.", modifyOrder.OrigClOrdID))
			return
		}
		fields.OrderID = prev.orderID

		// the resting order decides the side
		if modifyOrder.Side != "" && bookSide != bookSides[modifyOrder.Side] {
			out = s.reject(modifyOrder.Session, fields, model.RejectOther,
				fmt.Sprintf("Side %s does not match order %s.", modifyOrder.Side, modifyOrder.OrigClOrdID))
			return
		}

		order := &orderbook.Order{
			ID:      modifyOrder.ClOrdID,
			Symbol:  modifyOrder.Symbol,
			Side:    bookSide,
			Type:    orderbook.LIMIT,
			Price:   modifyOrder.NewPrice.InexactFloat64(),
			Qty:     modifyOrder.NewQuantity.IntPart(),
			Session: modifyOrder.Session,
		}
		if err := ob.ReplaceOrder(modifyOrder.OrigClOrdID, order); err != nil {
			out = s.rejectBookError(logger, modifyOrder.Session, fields, err)
			return
		}

		s.orders.close(origKey)
		st := &orderState{
			orderID: prev.orderID,
			symbol:  modifyOrder.Symbol,
			side:    prev.side,
			qty:     modifyOrder.NewQuantity,
			price:   modifyOrder.NewPrice,
		}
		s.orders.open(orderKey{modifyOrder.Session, modifyOrder.ClOrdID}, st)

		trades := drain(ob)
		if len(trades) == 0 {
			ack := &model.Ack{ReportFields: st.fields(modifyOrder.ClOrdID, fields.TransactTime), Kind: model.ExecTypeReplaced}
			ack.OrigClOrdID = modifyOrder.OrigClOrdID
			ack.ExecID = s.execIDs.Next(modifyOrder.Symbol)
			out = s.emit(modifyOrder.Session, ack)
		} else {
			out = s.fanOut(logger, trades)
		}
		s.publish(ob, trades)
	})
	return out
}

func (s *OMS) CancelOrder(ctx context.Context, cancelOrder *model.CancelOrder) []model.Envelope {
	fields := model.ReportFields{
		ClOrdID:      cancelOrder.ClOrdID,
		OrigClOrdID:  cancelOrder.OrigClOrdID,
		Symbol:       cancelOrder.Symbol,
		Side:         cancelOrder.Side,
		TransactTime: s.clock.Now(),
	}

	market, ok := s.markets.Get(cancelOrder.Symbol)
	if !ok {
		return s.reject(cancelOrder.Session, fields, model.RejectUnknownInstrument,
			fmt.Sprintf("Symbol %s not found.", cancelOrder.Symbol))
	}
	if !s.owners.owns(cancelOrder.Session, cancelOrder.OrigClOrdID) {
		return s.reject(cancelOrder.Session, fields, model.RejectUnknownOrder,
			fmt.Sprintf("Client order ID %s not found.", cancelOrder.OrigClOrdID))
	}

	var out []model.Envelope
	market.Do(func(ob *orderbook.Orderbook) {
		origKey := orderKey{cancelOrder.Session, cancelOrder.OrigClOrdID}
		prev, tracked := s.orders.get(origKey)
		if !tracked {
			s.owners.forget(cancelOrder.Session, cancelOrder.OrigClOrdID)
			out = s.reject(cancelOrder.Session, fields, model.RejectUnknownOrder,
				fmt.Sprintf("Order %s is no longer live.", cancelOrder.OrigClOrdID))
			return
		}
		fields.OrderID = prev.orderID

		// a mismatched side leaves the order live and owned
		if _, bookSide, live := ob.Lookup(cancelOrder.OrigClOrdID); live &&
			cancelOrder.Side != "" && bookSide != bookSides[cancelOrder.Side] {
			out = s.reject(cancelOrder.Session, fields, model.RejectOther,
				fmt.Sprintf("Side %s does not match order %s.", cancelOrder.Side, cancelOrder.OrigClOrdID))
			return
		}
		s.owners.forget(cancelOrder.Session, cancelOrder.OrigClOrdID)

		if err := ob.DeleteOrder(cancelOrder.OrigClOrdID); err != nil {
			logging.FromContext(ctx, s.logger).Info("cancel arrived too late",
				zap.String("orig_cl_ord_id", cancelOrder.OrigClOrdID), zap.Error(err))
			out = s.reject(cancelOrder.Session, fields, model.RejectUnknownOrder,
				fmt.Sprintf("Order %s is no longer live.", cancelOrder.OrigClOrdID))
			return
		}
		s.orders.close(origKey)
		s.markEnded(prev.orderID)

		ack := &model.Ack{ReportFields: prev.fields(cancelOrder.ClOrdID, fields.TransactTime), Kind: model.ExecTypeCanceled}
		ack.OrigClOrdID = cancelOrder.OrigClOrdID
		ack.LeavesQty = decimal.Zero
		ack.ExecID = s.execIDs.Next(cancelOrder.Symbol)
		out = s.emit(cancelOrder.Session, ack)
		s.publish(ob, nil)
	})
	return out
}

// fanOut turns trades into fills for their own sessions. Fills for sessions
// that are not logged on are journaled but not delivered.
func (s *OMS) fanOut(logger *zap.Logger, trades []orderbook.Trade) []model.Envelope {
	s.sessions.mu.RLock()
	defer s.sessions.mu.RUnlock()

	out := make([]model.Envelope, 0, len(trades))
	for _, tr := range trades {
		key := orderKey{tr.Session, tr.OrderID}
		qty, px := decimal.NewFromInt(tr.Qty), decimal.NewFromFloat(tr.Price)
		st, ok := s.orders.fill(key, qty, px)
		if !ok {
			logger.Error("trade for untracked order",
				zap.String("order_id", tr.OrderID), zap.String("exec_id", tr.ExecID))
			continue
		}

		fill := &model.Fill{
			ReportFields: st.fields(tr.OrderID, s.clock.Now()),
			LastQty:      qty,
			LastPx:       px,
		}
		fill.ExecID = tr.ExecID
		if !fill.LeavesQty.IsPositive() {
			s.orders.close(key)
			s.markEnded(st.orderID)
		}

		env := model.Envelope{Session: tr.Session, Report: fill}
		if !s.sessions.containsLocked(tr.Session) {
			logger.Warn("session not logged on, dropping fill",
				zap.String("target_session", tr.Session),
				zap.String("order_id", tr.OrderID),
				zap.String("exec_id", tr.ExecID))
			s.eventstore.AddEvent(model.NewOrderEvent(env, false))
			continue
		}
		s.eventstore.AddEvent(model.NewOrderEvent(env, true))
		out = append(out, env)
	}
	return out
}

func (s *OMS) emit(session string, report model.Report) []model.Envelope {
	env := model.Envelope{Session: session, Report: report}
	s.eventstore.AddEvent(model.NewOrderEvent(env, true))
	return []model.Envelope{env}
}

func (s *OMS) reject(session string, fields model.ReportFields, reason model.RejectReason, text string) []model.Envelope {
	if fields.OrderID == "" {
		fields.OrderID = noOrderID
	}
	fields.ExecID = s.execIDs.Next(fields.Symbol)
	fields.CumQty = decimal.Zero
	fields.LeavesQty = decimal.Zero
	fields.AvgPx = decimal.Zero
	return s.emit(session, &model.Reject{ReportFields: fields, Reason: reason, Text: text})
}

func (s *OMS) rejectBookError(logger *zap.Logger, session string, fields model.ReportFields, err error) []model.Envelope {
	switch {
	case errors.Is(err, orderbook.ErrDuplicateOrderID):
		return s.reject(session, fields, model.RejectDuplicateOrder,
			fmt.Sprintf("Client order ID %s is already live.", fields.ClOrdID))
	case errors.Is(err, orderbook.ErrUnknownOrder):
		return s.reject(session, fields, model.RejectUnknownOrder,
			fmt.Sprintf("Order %s is no longer live.", fields.OrigClOrdID))
	case errors.Is(err, orderbook.ErrWrongInstrument):
		// routing bug, nothing the client can act on
		logger.Error("order routed to the wrong book", zap.Error(err))
		return nil
	default:
		logger.Error("book rejected order", zap.Error(err))
		return s.reject(session, fields, model.RejectOther, err.Error())
	}
}

// publish hands the book after an operation, plus the trades it produced, to
// every snapshot sink. Sinks run under the market lock and must not block.
func (s *OMS) publish(ob *orderbook.Orderbook, trades []orderbook.Trade) {
	if len(s.sinks) == 0 {
		return
	}
	snap := ob.Snapshot()
	// trades come in pairs, the aggressor's half is enough
	for i := 1; i < len(trades); i += 2 {
		snap.Trades = append(snap.Trades, orderbook.PriceLevel{Price: trades[i].Price, Qty: trades[i].Qty})
	}
	for _, sink := range s.sinks {
		sink.OnBookChanged(snap)
	}
}

func drain(ob *orderbook.Orderbook) []orderbook.Trade {
	var trades []orderbook.Trade
	for tr := range ob.DrainTrades() {
		trades = append(trades, tr)
	}
	return trades
}
