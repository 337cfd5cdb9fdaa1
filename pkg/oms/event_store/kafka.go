package eventstore

import (
	"context"

	kafkawrapper "github.com/joripage/tradesim/pkg/kafka_wrapper"
	"github.com/joripage/tradesim/pkg/oms/model"
	"go.uber.org/zap"
)

// Publisher is the part of kafkawrapper.Producer the store needs.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error
}

var _ Publisher = (*kafkawrapper.Producer)(nil)

// KafkaEventStore keeps events in memory and ships each one to a topic, keyed
// by exchange order id so that one order's events stay on one partition.
type KafkaEventStore struct {
	*InMemoryEventStore
	producer Publisher
	topic    string
	logger   *zap.Logger
}

func NewKafkaEventStore(producer Publisher, topic string, logger *zap.Logger) *KafkaEventStore {
	return &KafkaEventStore{
		InMemoryEventStore: NewInMemoryEventStore(),
		producer:           producer,
		topic:              topic,
		logger:             logger.Named("eventstore"),
	}
}

func (s *KafkaEventStore) AddEvent(ev *model.OrderEvent) {
	s.InMemoryEventStore.AddEvent(ev)

	err := s.producer.PublishJSON(context.Background(), s.topic, ev.OrderID, ev, map[string]string{
		"exec_type": string(ev.ExecType),
	})
	if err != nil {
		s.logger.Error("publish order event",
			zap.String("event_id", ev.EventID),
			zap.String("order_id", ev.OrderID),
			zap.Error(err))
	}
}
