package fixgateway

import (
	"context"
	"sync"

	"github.com/joripage/tradesim/pkg/logging"
	"github.com/joripage/tradesim/pkg/oms"
	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

type FixGatewayConfig struct {
	ConfigFilepath   string `yaml:"config_filepath"`
	EnableQueue      bool   `yaml:"enable_queue"`
	EnableShardQueue bool   `yaml:"enable_shard_queue"`
	NumShards        int    `yaml:"num_shards"`
	QueueSize        int    `yaml:"queue_size"`
}

type sendFunc func(m quickfix.Messagable, sessionID quickfix.SessionID) error

// FixGateway speaks FIX to clients on behalf of the OMS. Sessions are known
// to the OMS by SessionID.String().
type FixGateway struct {
	cfg         *FixGatewayConfig
	app         *Application
	acceptor    *quickfix.Acceptor
	omsInstance oms.IOMS
	logger      *zap.Logger
	send        sendFunc

	sessionMapping sync.Map // string -> quickfix.SessionID
	marketData     *subscriptions
	snapshots      SnapshotSource
}

func NewFixGateway(cfg *FixGatewayConfig, logger *zap.Logger) *FixGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixGateway{
		cfg:        cfg,
		logger:     logger.Named("fixgateway"),
		send:       quickfix.SendToTarget,
		marketData: newSubscriptions(),
	}
}

func (s *FixGateway) AddOmsInstance(o oms.IOMS) {
	s.omsInstance = o
}

// SetSnapshotSource lets market data requests be answered with the current book.
func (s *FixGateway) SetSnapshotSource(src SnapshotSource) {
	s.snapshots = src
}

func (s *FixGateway) Start(ctx context.Context) error {
	app, acceptor, err := startApp(s.cfg, s)
	if err != nil {
		s.logger.Error("start app", zap.Error(err))
		return err
	}
	s.app, s.acceptor = app, acceptor
	return nil
}

func (s *FixGateway) Stop() {
	if s.acceptor != nil {
		s.acceptor.Stop()
	}
	if s.app != nil {
		s.app.stop()
	}
}

func (s *FixGateway) onLogon(sessionID quickfix.SessionID) {
	s.sessionMapping.Store(sessionID.String(), sessionID)
	s.omsInstance.OnLogon(sessionID.String())
}

func (s *FixGateway) onLogout(sessionID quickfix.SessionID) {
	s.omsInstance.OnLogout(sessionID.String())
	s.marketData.removeSession(sessionID.String())
	s.sessionMapping.Delete(sessionID.String())
}

var (
	orderTypeMapping = map[enum.OrdType]model.OrderType{
		enum.OrdType_LIMIT:  model.OrderTypeLimit,
		enum.OrdType_MARKET: model.OrderTypeMarket,
	}

	sideMapping = map[enum.Side]model.OrderSide{
		enum.Side_BUY:  model.OrderSideBuy,
		enum.Side_SELL: model.OrderSideSell,
	}
)

func (s *FixGateway) AddOrder(ctx context.Context, newOrderSingle *NewOrderSingle) {
	envs := s.omsInstance.AddOrder(ctx, &model.AddOrder{
		Session:  newOrderSingle.SessionID.String(),
		ClOrdID:  newOrderSingle.ClOrdID,
		Account:  newOrderSingle.Account,
		Symbol:   newOrderSingle.Symbol,
		Type:     orderTypeMapping[newOrderSingle.OrdType],
		Side:     sideMapping[newOrderSingle.Side],
		Price:    newOrderSingle.Price,
		Quantity: newOrderSingle.OrderQty,
	})
	s.deliver(ctx, envs)
}

func (s *FixGateway) ModifyOrder(ctx context.Context, req *OrderCancelReplaceRequest) {
	envs := s.omsInstance.ModifyOrder(ctx, &model.ModifyOrder{
		Session:     req.SessionID.String(),
		ClOrdID:     req.ClOrdID,
		OrigClOrdID: req.OrigClOrdID,
		Symbol:      req.Symbol,
		Side:        sideMapping[req.Side],
		NewPrice:    req.Price,
		NewQuantity: req.OrderQty,
	})
	s.deliver(ctx, envs)
}

func (s *FixGateway) CancelOrder(ctx context.Context, req *OrderCancelRequest) {
	envs := s.omsInstance.CancelOrder(ctx, &model.CancelOrder{
		Session:     req.SessionID.String(),
		ClOrdID:     req.ClOrdID,
		OrigClOrdID: req.OrigClOrdID,
		Symbol:      req.Symbol,
		Side:        sideMapping[req.Side],
	})
	s.deliver(ctx, envs)
}

// deliver renders each report in its session's FIX version and sends it.
func (s *FixGateway) deliver(ctx context.Context, envs []model.Envelope) {
	logger := logging.FromContext(ctx, s.logger)
	for _, env := range envs {
		v, ok := s.sessionMapping.Load(env.Session)
		if !ok {
			logger.Warn("no fix session for report", zap.String("target_session", env.Session))
			continue
		}
		sessionID := v.(quickfix.SessionID)

		msg, err := executionReport(sessionID.BeginString, env.Report)
		if err != nil {
			logger.Error("build execution report", zap.String("target_session", env.Session), zap.Error(err))
			continue
		}
		if err := s.send(msg, sessionID); err != nil {
			logger.Error("send execution report",
				zap.String("target_session", env.Session),
				zap.String("exec_id", env.Report.Fields().ExecID),
				zap.Error(err))
		}
	}
}
