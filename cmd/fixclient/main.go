package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	fix44er "github.com/quickfixgo/fix44/executionreport"
	fix44mdr "github.com/quickfixgo/fix44/marketdatarequest"
	fix44mdsfr "github.com/quickfixgo/fix44/marketdatasnapshotfullrefresh"
	fix44nos "github.com/quickfixgo/fix44/newordersingle"
	fix44ocr "github.com/quickfixgo/fix44/ordercancelrequest"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/log/file"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InitiatorApp logs on, subscribes to market data for one symbol and sends a
// crossing pair of orders followed by a cancel of the unfilled remainder.
type InitiatorApp struct {
	*quickfix.MessageRouter
	symbol string
	logger *zap.Logger
	seq    atomic.Int64
}

func newInitiatorApp(symbol string, logger *zap.Logger) *InitiatorApp {
	a := &InitiatorApp{
		MessageRouter: quickfix.NewMessageRouter(),
		symbol:        symbol,
		logger:        logger,
	}
	a.AddRoute(fix44er.Route(a.onExecutionReport))
	a.AddRoute(fix44mdsfr.Route(a.onMarketData))
	return a
}

func (a *InitiatorApp) OnCreate(sessionID quickfix.SessionID) {}

func (a *InitiatorApp) OnLogon(sessionID quickfix.SessionID) {
	a.logger.Info("logon", zap.String("session", sessionID.String()))
	go a.run(sessionID)
}

func (a *InitiatorApp) OnLogout(sessionID quickfix.SessionID) {
	a.logger.Info("logout", zap.String("session", sessionID.String()))
}

func (a *InitiatorApp) ToAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) {}

func (a *InitiatorApp) ToApp(msg *quickfix.Message, sessionID quickfix.SessionID) error {
	return nil
}

func (a *InitiatorApp) FromAdmin(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

func (a *InitiatorApp) FromApp(msg *quickfix.Message, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	return a.Route(msg, sessionID)
}

func (a *InitiatorApp) nextClOrdID() string {
	return fmt.Sprintf("C%d-%d", time.Now().Unix(), a.seq.Add(1))
}

func (a *InitiatorApp) run(sessionID quickfix.SessionID) {
	a.send(sessionID, marketDataRequest(a.symbol))

	a.send(sessionID, a.newOrder(enum.Side_SELL, 100, 10))
	buyID := a.nextClOrdID()
	buy := a.newOrderWithID(buyID, enum.Side_BUY, 100, 25)
	a.send(sessionID, buy)

	time.Sleep(time.Second)
	cancel := fix44ocr.New(
		field.NewOrigClOrdID(buyID),
		field.NewClOrdID(a.nextClOrdID()),
		field.NewSide(enum.Side_BUY),
		field.NewTransactTime(time.Now()))
	cancel.SetSymbol(a.symbol)
	a.send(sessionID, cancel)
}

func (a *InitiatorApp) newOrder(side enum.Side, px, qty int64) fix44nos.NewOrderSingle {
	return a.newOrderWithID(a.nextClOrdID(), side, px, qty)
}

func (a *InitiatorApp) newOrderWithID(clOrdID string, side enum.Side, px, qty int64) fix44nos.NewOrderSingle {
	order := fix44nos.New(
		field.NewClOrdID(clOrdID),
		field.NewSide(side),
		field.NewTransactTime(time.Now()),
		field.NewOrdType(enum.OrdType_LIMIT))
	order.SetSymbol(a.symbol)
	order.SetPrice(decimal.NewFromInt(px), 0)
	order.SetOrderQty(decimal.NewFromInt(qty), 0)
	return order
}

func marketDataRequest(symbol string) fix44mdr.MarketDataRequest {
	req := fix44mdr.New(
		field.NewMDReqID("md-"+symbol),
		field.NewSubscriptionRequestType(enum.SubscriptionRequestType_SNAPSHOT_PLUS_UPDATES),
		field.NewMarketDepth(0))

	types := fix44mdr.NewNoMDEntryTypesRepeatingGroup()
	for _, t := range []enum.MDEntryType{enum.MDEntryType_BID, enum.MDEntryType_OFFER, enum.MDEntryType_TRADE} {
		types.Add().SetMDEntryType(t)
	}
	req.SetNoMDEntryTypes(types)

	symbols := fix44mdr.NewNoRelatedSymRepeatingGroup()
	symbols.Add().SetSymbol(symbol)
	req.SetNoRelatedSym(symbols)
	return req
}

func (a *InitiatorApp) send(sessionID quickfix.SessionID, m quickfix.Messagable) {
	if err := quickfix.SendToTarget(m, sessionID); err != nil {
		a.logger.Error("send", zap.Error(err))
	}
}

func (a *InitiatorApp) onExecutionReport(msg fix44er.ExecutionReport, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	clOrdID, _ := msg.GetClOrdID()
	execType, _ := msg.GetExecType()
	status, _ := msg.GetOrdStatus()
	cum, _ := msg.GetCumQty()
	leaves, _ := msg.GetLeavesQty()
	avgPx, _ := msg.GetAvgPx()
	text, _ := msg.GetText()
	a.logger.Info("execution report",
		zap.String("cl_ord_id", clOrdID),
		zap.String("exec_type", string(execType)),
		zap.String("status", string(status)),
		zap.String("cum_qty", cum.String()),
		zap.String("leaves_qty", leaves.String()),
		zap.String("avg_px", avgPx.String()),
		zap.String("text", text))
	return nil
}

func (a *InitiatorApp) onMarketData(msg fix44mdsfr.MarketDataSnapshotFullRefresh, sessionID quickfix.SessionID) quickfix.MessageRejectError {
	symbol, _ := msg.GetSymbol()
	entries, err := msg.GetNoMDEntries()
	if err != nil {
		return err
	}
	for i := 0; i < entries.Len(); i++ {
		e := entries.Get(i)
		entryType, _ := e.GetMDEntryType()
		px, _ := e.GetMDEntryPx()
		size, _ := e.GetMDEntrySize()
		a.logger.Info("market data",
			zap.String("symbol", symbol),
			zap.String("type", string(entryType)),
			zap.String("px", px.String()),
			zap.String("size", size.String()))
	}
	return nil
}

func main() {
	var cfgPath, symbol string
	flag.StringVar(&cfgPath, "config", "./config/client.cfg", "quickfix initiator settings")
	flag.StringVar(&symbol, "symbol", "AAPL", "symbol to trade")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync() // nolint

	cfg, err := os.Open(cfgPath)
	if err != nil {
		logger.Fatal("open settings", zap.Error(err))
	}
	defer cfg.Close() // nolint

	settings, err := quickfix.ParseSettings(cfg)
	if err != nil {
		logger.Fatal("parse settings", zap.Error(err))
	}

	app := newInitiatorApp(symbol, logger)
	storeFactory := quickfix.NewMemoryStoreFactory()
	logFactory, err := file.NewLogFactory(settings)
	if err != nil {
		logger.Fatal("log factory", zap.Error(err))
	}
	initiator, err := quickfix.NewInitiator(app, storeFactory, settings, logFactory)
	if err != nil {
		logger.Fatal("new initiator", zap.Error(err))
	}
	if err := initiator.Start(); err != nil {
		logger.Fatal("start initiator", zap.Error(err))
	}
	defer initiator.Stop()
	logger.Info("initiator started", zap.String("symbol", symbol))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}
