package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joripage/tradesim/pkg/orderbook"
	"go.uber.org/zap"
)

const defaultRepublishInterval = 5 * time.Second

type Config struct {
	// RepublishInterval is how often every known book is sent again.
	RepublishInterval  time.Duration `yaml:"republish_interval"`
	RedisChannelPrefix string        `yaml:"redis_channel_prefix"`
	KafkaTopic         string        `yaml:"kafka_topic"`
}

// Sink receives book snapshots. Implementations are called from a single
// goroutine.
type Sink interface {
	PublishSnapshot(ctx context.Context, snap orderbook.Snapshot) error
}

// Publisher keeps the latest book of every symbol. Changed books are pushed
// to the sinks as soon as Run notices them, and all books are pushed again
// on every tick.
type Publisher struct {
	interval time.Duration
	sinks    []Sink
	logger   *zap.Logger

	mu     sync.RWMutex
	latest map[string]orderbook.Snapshot
	dirty  map[string]struct{}
	notify chan struct{}
}

func NewPublisher(cfg Config, logger *zap.Logger, sinks ...Sink) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.RepublishInterval
	if interval <= 0 {
		interval = defaultRepublishInterval
	}
	return &Publisher{
		interval: interval,
		sinks:    sinks,
		logger:   logger.Named("marketdata"),
		latest:   make(map[string]orderbook.Snapshot),
		dirty:    make(map[string]struct{}),
		notify:   make(chan struct{}, 1),
	}
}

// AddSink must be called before Run.
func (p *Publisher) AddSink(sink Sink) {
	p.sinks = append(p.sinks, sink)
}

// OnBookChanged records snap as the latest book for its symbol. Trades of
// changes not yet published are carried over so none are lost. It never
// blocks.
func (p *Publisher) OnBookChanged(snap orderbook.Snapshot) {
	p.mu.Lock()
	if _, pending := p.dirty[snap.Symbol]; pending && len(p.latest[snap.Symbol].Trades) > 0 {
		trades := append([]orderbook.PriceLevel(nil), p.latest[snap.Symbol].Trades...)
		snap.Trades = append(trades, snap.Trades...)
	}
	p.latest[snap.Symbol] = snap
	p.dirty[snap.Symbol] = struct{}{}
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Latest returns the last book seen for symbol.
func (p *Publisher) Latest(symbol string) (orderbook.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap, ok := p.latest[symbol]
	return snap, ok
}

func (p *Publisher) Symbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	symbols := make([]string, 0, len(p.latest))
	for symbol := range p.latest {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Run publishes until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("market data publisher started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("market data publisher stopped")
			return
		case <-p.notify:
			p.flush(ctx)
		case <-ticker.C:
			p.flush(ctx)
			p.republish(ctx)
		}
	}
}

// flush publishes the books that changed since the last flush. Their trades
// are published once and then cleared.
func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	snaps := make([]orderbook.Snapshot, 0, len(p.dirty))
	for symbol := range p.dirty {
		snap := p.latest[symbol]
		snaps = append(snaps, snap)
		snap.Trades = nil
		p.latest[symbol] = snap
	}
	clear(p.dirty)
	p.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Symbol < snaps[j].Symbol })
	for _, snap := range snaps {
		p.publish(ctx, snap)
	}
}

func (p *Publisher) republish(ctx context.Context) {
	for _, symbol := range p.Symbols() {
		if snap, ok := p.Latest(symbol); ok {
			p.publish(ctx, snap)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, snap orderbook.Snapshot) {
	for _, sink := range p.sinks {
		if err := sink.PublishSnapshot(ctx, snap); err != nil {
			p.logger.Error("publish snapshot", zap.String("symbol", snap.Symbol), zap.Error(err))
		}
	}
}
