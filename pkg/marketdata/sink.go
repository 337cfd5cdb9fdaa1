package marketdata

import (
	"context"
	"encoding/json"
	"time"

	kafkawrapper "github.com/joripage/tradesim/pkg/kafka_wrapper"
	"github.com/joripage/tradesim/pkg/orderbook"
	"github.com/redis/go-redis/v9"
)

type Level struct {
	Price float64 `json:"price"`
	Qty   int64   `json:"qty"`
}

// BookMessage is the JSON form of a snapshot sent to redis and kafka.
type BookMessage struct {
	Symbol    string    `json:"symbol"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
	Trades    []Level   `json:"trades,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func levels(in []orderbook.PriceLevel) []Level {
	out := make([]Level, len(in))
	for i, l := range in {
		out[i] = Level{Price: l.Price, Qty: l.Qty}
	}
	return out
}

func NewBookMessage(snap orderbook.Snapshot, now time.Time) BookMessage {
	msg := BookMessage{
		Symbol:    snap.Symbol,
		Bids:      levels(snap.Bids),
		Asks:      levels(snap.Asks),
		Timestamp: now,
	}
	if len(snap.Trades) > 0 {
		msg.Trades = levels(snap.Trades)
	}
	return msg
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

var _ redisPublisher = (*redis.Client)(nil)

// RedisSink publishes every snapshot on the channel <prefix>.<symbol>.
type RedisSink struct {
	client redisPublisher
	prefix string
	now    func() time.Time
}

func NewRedisSink(client redisPublisher, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "marketdata"
	}
	return &RedisSink{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisSink) Channel(symbol string) string {
	return s.prefix + "." + symbol
}

func (s *RedisSink) PublishSnapshot(ctx context.Context, snap orderbook.Snapshot) error {
	b, err := json.Marshal(NewBookMessage(snap, s.now()))
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.Channel(snap.Symbol), b).Err()
}

type kafkaPublisher interface {
	PublishJSON(ctx context.Context, topic string, key string, v any, headers map[string]string) error
}

var _ kafkaPublisher = (*kafkawrapper.Producer)(nil)

// KafkaSink writes snapshots to a topic keyed by symbol.
type KafkaSink struct {
	producer kafkaPublisher
	topic    string
	now      func() time.Time
}

func NewKafkaSink(producer kafkaPublisher, topic string) *KafkaSink {
	if topic == "" {
		topic = "marketdata.snapshots"
	}
	return &KafkaSink{producer: producer, topic: topic, now: time.Now}
}

func (s *KafkaSink) PublishSnapshot(ctx context.Context, snap orderbook.Snapshot) error {
	return s.producer.PublishJSON(ctx, s.topic, snap.Symbol, NewBookMessage(snap, s.now()), nil)
}
