package kafkawrapper

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Brokers      []string      `yaml:"brokers"`
	GroupID      string        `yaml:"group_id"`
	Topic        string        `yaml:"topic"`
	MaxRetries   int           `yaml:"max_retries"`
	BackoffMin   time.Duration `yaml:"backoff_min"`
	BackoffMax   time.Duration `yaml:"backoff_max"`
	DLQTopic     string        `yaml:"dlq_topic"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// BatchHandler handles one batch. The batch is committed once the handler
// succeeds, or after MaxRetries failures when it has been sent to the DLQ.
type BatchHandler func(ctx context.Context, batch []Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerGroup struct {
	r      reader
	cfg    ConsumerConfig
	dlq    *Producer
	logger *zap.Logger
}

func NewConsumerGroup(cfg ConsumerConfig, logger *zap.Logger) *ConsumerGroup {
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})

	var dlq *Producer
	if cfg.DLQTopic != "" {
		dlq = NewProducer(KafkaConfig{Brokers: cfg.Brokers})
	}
	return newConsumerGroup(rd, cfg, dlq, logger)
}

func newConsumerGroup(r reader, cfg ConsumerConfig, dlq *Producer, logger *zap.Logger) *ConsumerGroup {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffMin == 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsumerGroup{
		r:      r,
		cfg:    cfg,
		dlq:    dlq,
		logger: logger.Named("consumer").With(zap.String("topic", cfg.Topic), zap.String("group_id", cfg.GroupID)),
	}
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil || cg.r == nil {
		return nil
	}
	if cg.dlq != nil {
		_ = cg.dlq.Close()
	}
	return cg.r.Close()
}

// Run reads batches of up to BatchSize messages, waiting at most BatchTimeout
// after the first message for a batch to fill, and hands them to handler one batch at a time. It
// returns when ctx is done.
func (cg *ConsumerGroup) Run(ctx context.Context, handler BatchHandler) error {
	if cg == nil || cg.r == nil {
		return ErrNotInitialized
	}

	for {
		batch, err := cg.nextBatch(ctx)
		if len(batch) > 0 {
			cg.handle(ctx, batch, handler)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			cg.logger.Error("fetch message", zap.Error(err))
			select {
			case <-time.After(cg.cfg.BackoffMin):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (cg *ConsumerGroup) nextBatch(ctx context.Context) ([]kafka.Message, error) {
	var batch []kafka.Message
	fetchCtx := ctx

	for len(batch) < cg.cfg.BatchSize {
		m, err := cg.r.FetchMessage(fetchCtx)
		if err != nil {
			if len(batch) > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return batch, nil
			}
			return batch, err
		}
		batch = append(batch, m)
		if len(batch) == 1 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, cg.cfg.BatchTimeout)
			defer cancel()
		}
	}
	return batch, nil
}

func (cg *ConsumerGroup) handle(ctx context.Context, batch []kafka.Message, handler BatchHandler) {
	wrapped := make([]Message, len(batch))
	for i, m := range batch {
		wrapped[i] = wrapMessage(m)
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = cg.cfg.BackoffMin
	boff.MaxInterval = cg.cfg.BackoffMax
	boff.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := handler(ctx, wrapped)
		if err != nil {
			cg.logger.Warn("handle batch", zap.Int("attempt", attempt), zap.Int("size", len(batch)), zap.Error(err))
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(boff, uint64(cg.cfg.MaxRetries)), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		cg.deadLetter(ctx, batch)
	}

	if err := cg.r.CommitMessages(ctx, batch...); err != nil {
		cg.logger.Error("commit messages", zap.Int("size", len(batch)), zap.Error(err))
	}
}

func (cg *ConsumerGroup) deadLetter(ctx context.Context, batch []kafka.Message) {
	if cg.dlq == nil {
		cg.logger.Error("dropping batch after retries", zap.Int("size", len(batch)),
			zap.Int64("first_offset", batch[0].Offset))
		return
	}
	for _, m := range batch {
		if err := cg.dlq.Publish(ctx, cg.cfg.DLQTopic, m.Key, m.Value, fromHeaders(m.Headers)); err != nil {
			cg.logger.Error("publish to dlq", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func wrapMessage(m kafka.Message) Message {
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   fromHeaders(m.Headers),
	}
}
