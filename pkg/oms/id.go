package oms

import (
	"fmt"
	"sync"
)

// idGenerator mints per-symbol sequential ids such as AAPL_O_000001.
type idGenerator struct {
	mu  sync.Mutex
	tag string
	seq map[string]uint64
}

func newIDGenerator(tag string) *idGenerator {
	return &idGenerator{
		tag: tag,
		seq: make(map[string]uint64),
	}
}

func (g *idGenerator) Next(symbol string) string {
	g.mu.Lock()
	g.seq[symbol]++
	n := g.seq[symbol]
	g.mu.Unlock()

	return fmt.Sprintf("%s_%s_%06d", symbol, g.tag, n)
}
