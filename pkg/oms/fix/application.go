package fixgateway

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joripage/go_util/pkg/shardqueue"
	"github.com/joripage/tradesim/pkg/logging"
	fix42md "github.com/quickfixgo/fix42/marketdatarequest"
	fix42nos "github.com/quickfixgo/fix42/newordersingle"
	fix42ocrr "github.com/quickfixgo/fix42/ordercancelreplacerequest"
	fix42ocr "github.com/quickfixgo/fix42/ordercancelrequest"
	fix44md "github.com/quickfixgo/fix44/marketdatarequest"
	fix44nos "github.com/quickfixgo/fix44/newordersingle"
	fix44ocrr "github.com/quickfixgo/fix44/ordercancelreplacerequest"
	fix44ocr "github.com/quickfixgo/fix44/ordercancelrequest"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"
	"github.com/quickfixgo/tag"
	"go.uber.org/zap"
)

// Application implements the quickfix.Application interface
type Application struct {
	*quickfix.MessageRouter
	cfg        *FixGatewayConfig
	dispatcher chan *inboundMsg
	shardQueue *shardqueue.Shardqueue
	logger     *zap.Logger

	gateway *FixGateway
}

type inboundMsg struct {
	msg       *quickfix.Message
	sessionID quickfix.SessionID
}

const (
	defaultNumShards = 16
	defaultQueueSize = 100_000
)

func newApplication(cfg *FixGatewayConfig, gateway *FixGateway) *Application {
	app := &Application{
		MessageRouter: quickfix.NewMessageRouter(),
		cfg:           cfg,
		logger:        gateway.logger,
		gateway:       gateway,
	}

	app.AddRoute(fix44nos.Route(app.onNewOrderSingle44))
	app.AddRoute(fix44ocr.Route(app.onOrderCancelRequest44))
	app.AddRoute(fix44ocrr.Route(app.onOrderCancelReplaceRequest44))
	app.AddRoute(fix44md.Route(app.onMarketDataRequest44))

	app.AddRoute(fix42nos.Route(app.onNewOrderSingle42))
	app.AddRoute(fix42ocr.Route(app.onOrderCancelRequest42))
	app.AddRoute(fix42ocrr.Route(app.onOrderCancelReplaceRequest42))
	app.AddRoute(fix42md.Route(app.onMarketDataRequest42))

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if cfg.EnableShardQueue {
		numShards := cfg.NumShards
		if numShards <= 0 {
			numShards = defaultNumShards
		}
		app.shardQueue = shardqueue.NewShardQueue(numShards, queueSize)
		app.shardQueue.Start(func(msg interface{}) error {
			if v, ok := msg.(*inboundMsg); ok {
				app.route(v)
			}
			return nil
		})
	} else if cfg.EnableQueue {
		app.dispatcher = make(chan *inboundMsg, queueSize)
		go app.runDispatcher()
	}

	return app
}

func startApp(cfg *FixGatewayConfig, gateway *FixGateway) (*Application, *quickfix.Acceptor, error) {
	f, err := os.Open(cfg.ConfigFilepath)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening %v: %w", cfg.ConfigFilepath, err)
	}
	defer f.Close() // nolint

	appSettings, err := quickfix.ParseSettings(f)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading cfg: %w", err)
	}

	app := newApplication(cfg, gateway)

	logFactory, err := file.NewLogFactory(appSettings)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create log factory: %w", err)
	}
	acceptor, err := quickfix.NewAcceptor(app, quickfix.NewMemoryStoreFactory(), appSettings, logFactory)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create acceptor: %w", err)
	}

	if err = acceptor.Start(); err != nil {
		return nil, nil, fmt.Errorf("unable to start FIX acceptor: %w", err)
	}

	return app, acceptor, nil
}

func (a *Application) stop() {
	if a.dispatcher != nil {
		close(a.dispatcher)
	}
}

// OnCreate implemented as part of Application interface
func (a *Application) OnCreate(sessionID quickfix.SessionID) {}

// OnLogon implemented as part of Application interface
func (a *Application) OnLogon(sessionID quickfix.SessionID) {
	a.gateway.onLogon(sessionID)
}

// OnLogout implemented as part of Application interface
func (a *Application) OnLogout(sessionID quickfix.SessionID) {
	a.gateway.onLogout(sessionID)
}

// ToAdmin implemented as part of Application interface
func (a *Application) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {}

// ToApp implemented as part of Application interface
func (a *Application) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}

// FromAdmin implemented as part of Application interface
func (a *Application) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

// FromApp implemented as part of Application interface, uses Router on incoming application messages
func (a *Application) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) (reject quickfix.MessageRejectError) {
	if a.shardQueue != nil {
		a.shardQueue.Shard(getRoutingKey(msg, sessionID), &inboundMsg{msg, sessionID})
		return nil
	} else if a.dispatcher != nil {
		a.dispatcher <- &inboundMsg{msg, sessionID}
		return nil
	}

	return a.Route(msg, sessionID)
}

// getRoutingKey keeps every message for one symbol on one shard, so a
// symbol's requests reach the book in arrival order.
func getRoutingKey(msg *quickfix.Message, sessionID quickfix.SessionID) string {
	if symbol, err := msg.Body.GetString(tag.Symbol); err == nil && symbol != "" {
		return symbol
	}

	if msgType, err := msg.Header.GetString(tag.MsgType); err == nil {
		return "MSGTYPE:" + msgType
	}

	return sessionID.String()
}

func (a *Application) route(in *inboundMsg) {
	if err := a.Route(in.msg, in.sessionID); err != nil {
		a.logger.Warn("route error", zap.String("session", in.sessionID.String()), zap.Error(err))
	}
}

func (a *Application) runDispatcher() {
	for msg := range a.dispatcher {
		a.route(msg)
	}
}

func (a *Application) requestContext(sessionID quickfix.SessionID) context.Context {
	ctx := logging.WithRequestID(context.Background(), uuid.NewString())
	return logging.WithLogger(ctx, a.logger.With(zap.String("session", sessionID.String())))
}

func (a *Application) onNewOrderSingle44(msg fix44nos.NewOrderSingle, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, err := msg.GetClOrdID()
	if err != nil {
		return err
	}
	symbol, err := msg.GetSymbol()
	if err != nil {
		return err
	}
	side, err := msg.GetSide()
	if err != nil {
		return err
	}
	ordType, err := msg.GetOrdType()
	if err != nil {
		return err
	}
	orderQty, err := msg.GetOrderQty()
	if err != nil {
		return err
	}
	price, _ := msg.GetPrice()
	account, _ := msg.GetAccount()

	a.gateway.AddOrder(a.requestContext(sessionID), &NewOrderSingle{
		SessionID: sessionID,
		Account:   account,
		ClOrdID:   clOrdID,
		Symbol:    symbol,
		OrdType:   ordType,
		Price:     price,
		Side:      side,
		OrderQty:  orderQty,
	})
	return nil
}

func (a *Application) onNewOrderSingle42(msg fix42nos.NewOrderSingle, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, err := msg.GetClOrdID()
	if err != nil {
		return err
	}
	symbol, err := msg.GetSymbol()
	if err != nil {
		return err
	}
	side, err := msg.GetSide()
	if err != nil {
		return err
	}
	ordType, err := msg.GetOrdType()
	if err != nil {
		return err
	}
	orderQty, err := msg.GetOrderQty()
	if err != nil {
		return err
	}
	price, _ := msg.GetPrice()
	account, _ := msg.GetAccount()

	a.gateway.AddOrder(a.requestContext(sessionID), &NewOrderSingle{
		SessionID: sessionID,
		Account:   account,
		ClOrdID:   clOrdID,
		Symbol:    symbol,
		OrdType:   ordType,
		Price:     price,
		Side:      side,
		OrderQty:  orderQty,
	})
	return nil
}

func (a *Application) onOrderCancelRequest44(msg fix44ocr.OrderCancelRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, err := msg.GetClOrdID()
	if err != nil {
		return err
	}
	origClOrdID, err := msg.GetOrigClOrdID()
	if err != nil {
		return err
	}
	symbol, err := msg.GetSymbol()
	if err != nil {
		return err
	}
	side, _ := msg.GetSide()

	a.gateway.CancelOrder(a.requestContext(sessionID), &OrderCancelRequest{
		SessionID:   sessionID,
		OrigClOrdID: origClOrdID,
		ClOrdID:     clOrdID,
		Symbol:      symbol,
		Side:        side,
	})
	return nil
}

func (a *Application) onOrderCancelRequest42(msg fix42ocr.OrderCancelRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, err := msg.GetClOrdID()
	if err != nil {
		return err
	}
	origClOrdID, err := msg.GetOrigClOrdID()
	if err != nil {
		return err
	}
	symbol, err := msg.GetSymbol()
	if err != nil {
		return err
	}
	side, _ := msg.GetSide()

	a.gateway.CancelOrder(a.requestContext(sessionID), &OrderCancelRequest{
		SessionID:   sessionID,
		OrigClOrdID: origClOrdID,
		ClOrdID:     clOrdID,
		Symbol:      symbol,
		Side:        side,
	})
	return nil
}

func (a *Application) onOrderCancelReplaceRequest44(msg fix44ocrr.OrderCancelReplaceRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, err := msg.GetClOrdID()
	if err != nil {
		return err
	}
	origClOrdID, err := msg.GetOrigClOrdID()
	if err != nil {
		return err
	}
	symbol, err := msg.GetSymbol()
	if err != nil {
		return err
	}
	orderQty, err := msg.GetOrderQty()
	if err != nil {
		return err
	}
	side, _ := msg.GetSide()
	ordType, _ := msg.GetOrdType()
	price, _ := msg.GetPrice()

	a.gateway.ModifyOrder(a.requestContext(sessionID), &OrderCancelReplaceRequest{
		SessionID:   sessionID,
		OrigClOrdID: origClOrdID,
		ClOrdID:     clOrdID,
		Symbol:      symbol,
		Side:        side,
		OrdType:     ordType,
		Price:       price,
		OrderQty:    orderQty,
	})
	return nil
}

func (a *Application) onOrderCancelReplaceRequest42(msg fix42ocrr.OrderCancelReplaceRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, err := msg.GetClOrdID()
	if err != nil {
		return err
	}
	origClOrdID, err := msg.GetOrigClOrdID()
	if err != nil {
		return err
	}
	symbol, err := msg.GetSymbol()
	if err != nil {
		return err
	}
	orderQty, err := msg.GetOrderQty()
	if err != nil {
		return err
	}
	side, _ := msg.GetSide()
	ordType, _ := msg.GetOrdType()
	price, _ := msg.GetPrice()

	a.gateway.ModifyOrder(a.requestContext(sessionID), &OrderCancelReplaceRequest{
		SessionID:   sessionID,
		OrigClOrdID: origClOrdID,
		ClOrdID:     clOrdID,
		Symbol:      symbol,
		Side:        side,
		OrdType:     ordType,
		Price:       price,
		OrderQty:    orderQty,
	})
	return nil
}

func (a *Application) onMarketDataRequest44(msg fix44md.MarketDataRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	mdReqID, err := msg.GetMDReqID()
	if err != nil {
		return err
	}
	reqType, err := msg.GetSubscriptionRequestType()
	if err != nil {
		return err
	}
	group, err := msg.GetNoRelatedSym()
	if err != nil {
		return err
	}

	req := &MarketDataRequest{SessionID: sessionID, MDReqID: mdReqID, SubscriptionRequestType: reqType}
	for i := 0; i < group.Len(); i++ {
		if symbol, err := group.Get(i).GetSymbol(); err == nil {
			req.Symbols = append(req.Symbols, symbol)
		}
	}
	a.gateway.MarketDataRequest(req)
	return nil
}

func (a *Application) onMarketDataRequest42(msg fix42md.MarketDataRequest, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	mdReqID, err := msg.GetMDReqID()
	if err != nil {
		return err
	}
	reqType, err := msg.GetSubscriptionRequestType()
	if err != nil {
		return err
	}
	group, err := msg.GetNoRelatedSym()
	if err != nil {
		return err
	}

	req := &MarketDataRequest{SessionID: sessionID, MDReqID: mdReqID, SubscriptionRequestType: reqType}
	for i := 0; i < group.Len(); i++ {
		if symbol, err := group.Get(i).GetSymbol(); err == nil {
			req.Symbols = append(req.Symbols, symbol)
		}
	}
	a.gateway.MarketDataRequest(req)
	return nil
}
