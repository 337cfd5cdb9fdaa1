// Package worker copies the order events published by the exchange from
// kafka into the journal database.
package worker

import (
	"context"
	"encoding/json"

	kafkawrapper "github.com/joripage/tradesim/pkg/kafka_wrapper"
	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/joripage/tradesim/pkg/oms/repo"
	"go.uber.org/zap"
)

type consumer interface {
	Run(ctx context.Context, handler kafkawrapper.BatchHandler) error
}

type Worker struct {
	orderEvent repo.IOrderEvent
	logger     *zap.Logger
}

func NewWorker(repo repo.IRepo, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		orderEvent: repo.OrderEvent(),
		logger:     logger.Named("worker"),
	}
}

// StartConsumer blocks until ctx is done.
func (w *Worker) StartConsumer(ctx context.Context, c consumer) error {
	w.logger.Info("journal worker started")
	return c.Run(ctx, w.handleBatch)
}

// handleBatch stores every decodable event of the batch. Undecodable
// messages are logged and skipped, they would fail on every retry.
func (w *Worker) handleBatch(ctx context.Context, batch []kafkawrapper.Message) error {
	events := make([]*model.OrderEvent, 0, len(batch))
	for _, msg := range batch {
		var ev model.OrderEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			w.logger.Warn("unmarshal order event",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}
		events = append(events, &ev)
	}
	if len(events) == 0 {
		return nil
	}

	if _, err := w.orderEvent.BulkCreate(ctx, events); err != nil {
		w.logger.Error("store order events", zap.Int("count", len(events)), zap.Error(err))
		return err
	}
	w.logger.Debug("stored order events", zap.Int("count", len(events)))
	return nil
}
