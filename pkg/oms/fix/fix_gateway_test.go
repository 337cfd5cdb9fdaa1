package fixgateway

import (
	"context"
	"testing"

	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/joripage/tradesim/pkg/orderbook"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sid44 = quickfix.SessionID{BeginString: quickfix.BeginStringFIX44, SenderCompID: "EXCH", TargetCompID: "A"}
	sid42 = quickfix.SessionID{BeginString: quickfix.BeginStringFIX42, SenderCompID: "EXCH", TargetCompID: "B"}
)

type fakeOMS struct {
	sessions map[string]bool
	added    []*model.AddOrder
	modified []*model.ModifyOrder
	canceled []*model.CancelOrder
	reply    []model.Envelope
}

func (f *fakeOMS) OnLogon(session string)  { f.sessions[session] = true }
func (f *fakeOMS) OnLogout(session string) { delete(f.sessions, session) }

func (f *fakeOMS) AddOrder(_ context.Context, o *model.AddOrder) []model.Envelope {
	f.added = append(f.added, o)
	return f.reply
}

func (f *fakeOMS) ModifyOrder(_ context.Context, o *model.ModifyOrder) []model.Envelope {
	f.modified = append(f.modified, o)
	return f.reply
}

func (f *fakeOMS) CancelOrder(_ context.Context, o *model.CancelOrder) []model.Envelope {
	f.canceled = append(f.canceled, o)
	return f.reply
}

type sentMsg struct {
	msg       *quickfix.Message
	sessionID quickfix.SessionID
}

type staticSnapshots map[string]orderbook.Snapshot

func (s staticSnapshots) Latest(symbol string) (orderbook.Snapshot, bool) {
	snap, ok := s[symbol]
	return snap, ok
}

func newTestGateway() (*FixGateway, *fakeOMS, *[]sentMsg) {
	gw := NewFixGateway(&FixGatewayConfig{}, nil)
	fake := &fakeOMS{sessions: make(map[string]bool)}
	gw.AddOmsInstance(fake)

	sent := &[]sentMsg{}
	gw.send = func(m quickfix.Messagable, sessionID quickfix.SessionID) error {
		*sent = append(*sent, sentMsg{m.ToMessage(), sessionID})
		return nil
	}
	return gw, fake, sent
}

func TestLogonLogout(t *testing.T) {
	gw, fake, _ := newTestGateway()

	gw.onLogon(sid44)
	assert.True(t, fake.sessions[sid44.String()])
	_, ok := gw.sessionMapping.Load(sid44.String())
	assert.True(t, ok)

	gw.onLogout(sid44)
	assert.False(t, fake.sessions[sid44.String()])
	_, ok = gw.sessionMapping.Load(sid44.String())
	assert.False(t, ok)
}

func TestAddOrderConversion(t *testing.T) {
	gw, fake, _ := newTestGateway()
	gw.onLogon(sid44)

	gw.AddOrder(context.Background(), &NewOrderSingle{
		SessionID: sid44,
		ClOrdID:   "C1",
		Symbol:    "AAPL",
		OrdType:   enum.OrdType_LIMIT,
		Side:      enum.Side_SELL,
		Price:     decimal.NewFromInt(100),
		OrderQty:  decimal.NewFromInt(10),
	})

	require.Len(t, fake.added, 1)
	got := fake.added[0]
	assert.Equal(t, sid44.String(), got.Session)
	assert.Equal(t, model.OrderTypeLimit, got.Type)
	assert.Equal(t, model.OrderSideSell, got.Side)
	assert.Equal(t, "C1", got.ClOrdID)

	gw.AddOrder(context.Background(), &NewOrderSingle{SessionID: sid44, OrdType: enum.OrdType_STOP, Side: "9"})
	assert.Equal(t, model.OrderType(""), fake.added[1].Type, "unsupported types are left for the OMS to reject")
	assert.Equal(t, model.OrderSide(""), fake.added[1].Side)
}

func TestDeliverUsesSessionVersion(t *testing.T) {
	gw, fake, sent := newTestGateway()
	gw.onLogon(sid44)
	gw.onLogon(sid42)

	fill := func(leaves int64) *model.Fill {
		return &model.Fill{ReportFields: model.ReportFields{
			OrderID: "AAPL_O_000001", ExecID: "AAPL000001", ClOrdID: "C1", Symbol: "AAPL",
			Side: model.OrderSideBuy, LeavesQty: decimal.NewFromInt(leaves),
		}, LastQty: decimal.NewFromInt(10), LastPx: decimal.NewFromInt(100)}
	}
	fake.reply = []model.Envelope{
		{Session: sid44.String(), Report: fill(0)},
		{Session: sid42.String(), Report: fill(0)},
		{Session: "FIX.4.4:EXCH->GONE", Report: fill(0)},
	}
	gw.CancelOrder(context.Background(), &OrderCancelRequest{SessionID: sid44, Symbol: "AAPL"})

	require.Len(t, *sent, 2, "reports for unknown sessions are not sent")
	first, second := (*sent)[0], (*sent)[1]

	assert.Equal(t, sid44, first.sessionID)
	execType, _ := first.msg.Body.GetString(tag.ExecType)
	assert.Equal(t, string(enum.ExecType_TRADE), execType)

	assert.Equal(t, sid42, second.sessionID)
	execType, _ = second.msg.Body.GetString(tag.ExecType)
	assert.Equal(t, string(enum.ExecType_FILL), execType)
}

func TestModifyOrderConversion(t *testing.T) {
	gw, fake, _ := newTestGateway()

	gw.ModifyOrder(context.Background(), &OrderCancelReplaceRequest{
		SessionID:   sid42,
		ClOrdID:     "C2",
		OrigClOrdID: "C1",
		Symbol:      "AAPL",
		Side:        enum.Side_BUY,
		Price:       decimal.NewFromInt(101),
		OrderQty:    decimal.NewFromInt(5),
	})

	require.Len(t, fake.modified, 1)
	got := fake.modified[0]
	assert.Equal(t, sid42.String(), got.Session)
	assert.Equal(t, "C1", got.OrigClOrdID)
	assert.True(t, got.NewPrice.Equal(decimal.NewFromInt(101)))
	assert.Equal(t, model.OrderSideBuy, got.Side)
}

func TestMarketDataSubscription(t *testing.T) {
	gw, _, sent := newTestGateway()
	gw.SetSnapshotSource(staticSnapshots{
		"AAPL": {Symbol: "AAPL", Bids: []orderbook.PriceLevel{{Price: 100, Qty: 6}}},
	})
	gw.onLogon(sid44)
	ctx := context.Background()

	gw.MarketDataRequest(&MarketDataRequest{
		SessionID: sid44, MDReqID: "md1", SubscriptionRequestType: subscriptionUpdates, Symbols: []string{"AAPL"},
	})
	require.Len(t, *sent, 1, "subscribing answers with the current book")

	require.NoError(t, gw.PublishSnapshot(ctx, orderbook.Snapshot{Symbol: "AAPL"}))
	require.NoError(t, gw.PublishSnapshot(ctx, orderbook.Snapshot{Symbol: "MSFT"}))
	require.Len(t, *sent, 2)
	mdReqID, _ := (*sent)[1].msg.Body.GetString(tag.MDReqID)
	assert.Equal(t, "md1", mdReqID)

	gw.MarketDataRequest(&MarketDataRequest{
		SessionID: sid44, MDReqID: "md1", SubscriptionRequestType: subscriptionUnsubscribe, Symbols: []string{"AAPL"},
	})
	require.NoError(t, gw.PublishSnapshot(ctx, orderbook.Snapshot{Symbol: "AAPL"}))
	assert.Len(t, *sent, 2)

	gw.MarketDataRequest(&MarketDataRequest{
		SessionID: sid44, MDReqID: "md2", SubscriptionRequestType: subscriptionSnapshot, Symbols: []string{"MSFT"},
	})
	assert.Len(t, *sent, 3, "snapshot requests are answered even for unknown books")
	require.NoError(t, gw.PublishSnapshot(ctx, orderbook.Snapshot{Symbol: "MSFT"}))
	assert.Len(t, *sent, 3, "a snapshot request does not subscribe")
}

func TestLogoutDropsSubscriptions(t *testing.T) {
	gw, _, sent := newTestGateway()
	gw.onLogon(sid42)
	gw.MarketDataRequest(&MarketDataRequest{
		SessionID: sid42, MDReqID: "md1", SubscriptionRequestType: subscriptionUpdates, Symbols: []string{"AAPL"},
	})
	gw.onLogout(sid42)

	require.NoError(t, gw.PublishSnapshot(context.Background(), orderbook.Snapshot{Symbol: "AAPL"}))
	assert.Empty(t, *sent, "no snapshot source and no subscribers")
	assert.Empty(t, gw.marketData.subscribers("AAPL"))
}

func TestRoutingKey(t *testing.T) {
	msg := quickfix.NewMessage()
	msg.Header.SetString(tag.MsgType, "D")
	msg.Body.SetString(tag.Symbol, "AAPL")
	assert.Equal(t, "AAPL", getRoutingKey(msg, sid44))

	msg = quickfix.NewMessage()
	msg.Header.SetString(tag.MsgType, "V")
	assert.Equal(t, "MSGTYPE:V", getRoutingKey(msg, sid44))

	assert.Equal(t, sid44.String(), getRoutingKey(quickfix.NewMessage(), sid44))
}
