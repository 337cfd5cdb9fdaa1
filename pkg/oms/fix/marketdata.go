package fixgateway

import (
	"context"
	"sort"
	"sync"

	"github.com/joripage/tradesim/pkg/orderbook"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	fix42mdsfr "github.com/quickfixgo/fix42/marketdatasnapshotfullrefresh"
	fix44mdsfr "github.com/quickfixgo/fix44/marketdatasnapshotfullrefresh"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SnapshotSource answers a snapshot request with the latest known book.
type SnapshotSource interface {
	Latest(symbol string) (orderbook.Snapshot, bool)
}

const (
	subscriptionSnapshot    = enum.SubscriptionRequestType("0")
	subscriptionUpdates     = enum.SubscriptionRequestType("1")
	subscriptionUnsubscribe = enum.SubscriptionRequestType("2")
)

// subscriptions maps symbol -> session -> MDReqID of the subscription.
type subscriptions struct {
	mu       sync.RWMutex
	bySymbol map[string]map[string]string
}

func newSubscriptions() *subscriptions {
	return &subscriptions{bySymbol: make(map[string]map[string]string)}
}

func (s *subscriptions) subscribe(symbol, session, mdReqID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, ok := s.bySymbol[symbol]
	if !ok {
		sessions = make(map[string]string)
		s.bySymbol[symbol] = sessions
	}
	sessions[session] = mdReqID
}

func (s *subscriptions) unsubscribe(symbol, session string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bySymbol[symbol], session)
	if len(s.bySymbol[symbol]) == 0 {
		delete(s.bySymbol, symbol)
	}
}

func (s *subscriptions) removeSession(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for symbol, sessions := range s.bySymbol {
		delete(sessions, session)
		if len(sessions) == 0 {
			delete(s.bySymbol, symbol)
		}
	}
}

type subscriber struct {
	session string
	mdReqID string
}

func (s *subscriptions) subscribers(symbol string) []subscriber {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]subscriber, 0, len(s.bySymbol[symbol]))
	for session, mdReqID := range s.bySymbol[symbol] {
		out = append(out, subscriber{session, mdReqID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].session < out[j].session })
	return out
}

func (s *FixGateway) MarketDataRequest(req *MarketDataRequest) {
	session := req.SessionID.String()
	logger := s.logger.With(zap.String("session", session), zap.String("md_req_id", req.MDReqID))

	for _, symbol := range req.Symbols {
		switch req.SubscriptionRequestType {
		case subscriptionUpdates:
			s.marketData.subscribe(symbol, session, req.MDReqID)
			s.sendLatest(req.SessionID, symbol, req.MDReqID)
		case subscriptionSnapshot:
			s.sendLatest(req.SessionID, symbol, req.MDReqID)
		case subscriptionUnsubscribe:
			s.marketData.unsubscribe(symbol, session)
		default:
			logger.Warn("unsupported subscription request type",
				zap.String("type", string(req.SubscriptionRequestType)))
			return
		}
		logger.Debug("market data request", zap.String("symbol", symbol),
			zap.String("type", string(req.SubscriptionRequestType)))
	}
}

func (s *FixGateway) sendLatest(sessionID quickfix.SessionID, symbol, mdReqID string) {
	if s.snapshots == nil {
		return
	}
	snap, ok := s.snapshots.Latest(symbol)
	if !ok {
		snap = orderbook.Snapshot{Symbol: symbol}
	}
	s.sendSnapshot(sessionID, snap, mdReqID)
}

// PublishSnapshot sends snap to every session subscribed to its symbol.
func (s *FixGateway) PublishSnapshot(ctx context.Context, snap orderbook.Snapshot) error {
	for _, sub := range s.marketData.subscribers(snap.Symbol) {
		v, ok := s.sessionMapping.Load(sub.session)
		if !ok {
			continue
		}
		s.sendSnapshot(v.(quickfix.SessionID), snap, sub.mdReqID)
	}
	return nil
}

func (s *FixGateway) sendSnapshot(sessionID quickfix.SessionID, snap orderbook.Snapshot, mdReqID string) {
	var msg quickfix.Messagable
	switch sessionID.BeginString {
	case quickfix.BeginStringFIX44:
		msg = marketDataSnapshot44(snap, mdReqID)
	case quickfix.BeginStringFIX42:
		msg = marketDataSnapshot42(snap, mdReqID)
	default:
		s.logger.Warn("market data not supported for session", zap.String("session", sessionID.String()))
		return
	}
	if err := s.send(msg, sessionID); err != nil {
		s.logger.Error("send market data", zap.String("session", sessionID.String()),
			zap.String("symbol", snap.Symbol), zap.Error(err))
	}
}

type mdEntry struct {
	entryType enum.MDEntryType
	level     orderbook.PriceLevel
}

func mdEntries(snap orderbook.Snapshot) []mdEntry {
	entries := make([]mdEntry, 0, len(snap.Bids)+len(snap.Asks)+len(snap.Trades))
	for _, l := range snap.Bids {
		entries = append(entries, mdEntry{enum.MDEntryType_BID, l})
	}
	for _, l := range snap.Asks {
		entries = append(entries, mdEntry{enum.MDEntryType_OFFER, l})
	}
	for _, l := range snap.Trades {
		entries = append(entries, mdEntry{enum.MDEntryType_TRADE, l})
	}
	return entries
}

func marketDataSnapshot44(snap orderbook.Snapshot, mdReqID string) fix44mdsfr.MarketDataSnapshotFullRefresh {
	msg := fix44mdsfr.New()
	msg.SetSymbol(snap.Symbol)
	if mdReqID != "" {
		msg.SetMDReqID(mdReqID)
	}

	group := fix44mdsfr.NewNoMDEntriesRepeatingGroup()
	for _, e := range mdEntries(snap) {
		entry := group.Add()
		entry.SetMDEntryType(e.entryType)
		entry.SetMDEntryPx(decimal.NewFromFloat(e.level.Price), pxScale)
		entry.SetMDEntrySize(decimal.NewFromInt(e.level.Qty), qtyScale)
	}
	msg.SetNoMDEntries(group)
	return msg
}

func marketDataSnapshot42(snap orderbook.Snapshot, mdReqID string) fix42mdsfr.MarketDataSnapshotFullRefresh {
	msg := fix42mdsfr.New(field.NewSymbol(snap.Symbol))
	if mdReqID != "" {
		msg.SetMDReqID(mdReqID)
	}

	group := fix42mdsfr.NewNoMDEntriesRepeatingGroup()
	for _, e := range mdEntries(snap) {
		entry := group.Add()
		entry.SetMDEntryType(e.entryType)
		entry.SetMDEntryPx(decimal.NewFromFloat(e.level.Price), pxScale)
		entry.SetMDEntrySize(decimal.NewFromInt(e.level.Qty), qtyScale)
	}
	msg.SetNoMDEntries(group)
	return msg
}
