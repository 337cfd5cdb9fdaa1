package orderbook

import (
	"sort"
	"sync"
)

// Market pairs a book with the lock that serializes every operation on it.
type Market struct {
	mu   sync.Mutex
	book *Orderbook
}

// Do runs fn with exclusive access to the market's book.
func (m *Market) Do(fn func(ob *Orderbook)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.book)
}

func (m *Market) Symbol() string {
	return m.book.symbol
}

// Registry maps symbols to markets. Markets are created on first reference
// and live for the lifetime of the registry.
type Registry struct {
	books sync.Map
	opts  []Option
}

func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts: opts,
	}
}

func (r *Registry) GetOrCreate(symbol string) *Market {
	if val, ok := r.books.Load(symbol); ok {
		return val.(*Market)
	}

	m := &Market{book: New(symbol, r.opts...)}
	actual, _ := r.books.LoadOrStore(symbol, m)
	return actual.(*Market)
}

func (r *Registry) Get(symbol string) (*Market, bool) {
	val, ok := r.books.Load(symbol)
	if !ok {
		return nil, false
	}
	return val.(*Market), true
}

func (r *Registry) Symbols() []string {
	var symbols []string
	r.books.Range(func(k, _ any) bool {
		symbols = append(symbols, k.(string))
		return true
	})
	sort.Strings(symbols)
	return symbols
}
