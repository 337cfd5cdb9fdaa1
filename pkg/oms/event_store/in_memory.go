package eventstore

import (
	"sync"

	"github.com/joripage/tradesim/pkg/oms/model"
)

type InMemoryEventStore struct {
	mu            sync.RWMutex
	orders        map[string][]*model.OrderEvent
	latestClOrdID map[string]string // OrderID -> current ClOrdID
	clOrdChain    map[string]string // ClOrdID -> OrigClOrdID
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		orders:        make(map[string][]*model.OrderEvent),
		latestClOrdID: make(map[string]string),
		clOrdChain:    make(map[string]string),
	}
}

func (s *InMemoryEventStore) AddEvent(ev *model.OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// rejects never reach the book and are not part of an order's lifecycle
	if ev.ExecType == model.ExecTypeRejected {
		return
	}
	s.orders[ev.OrderID] = append(s.orders[ev.OrderID], ev)
	s.trackClOrdChain(ev.OrderID, ev.ClOrdID, ev.OrigClOrdID)
}

// trackClOrdChain updates the chain between ClOrdID and OrigClOrdID
func (s *InMemoryEventStore) trackClOrdChain(orderID, clOrdID, origClOrdID string) {
	s.latestClOrdID[orderID] = clOrdID

	if origClOrdID != "" && origClOrdID != clOrdID {
		s.clOrdChain[clOrdID] = origClOrdID
	}
}

func (s *InMemoryEventStore) Events(orderID string) []*model.OrderEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.orders[orderID]
	out := make([]*model.OrderEvent, len(events))
	copy(out, events)
	return out
}

func (s *InMemoryEventStore) GetLatestClOrdID(orderID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestClOrdID[orderID]
}

// GetOrigClOrdID returns the immediate OrigClOrdID for a given ClOrdID
func (s *InMemoryEventStore) GetOrigClOrdID(clOrdID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.clOrdChain[clOrdID]
}

// ReconstructChain walks backward to get full chain of ClOrdIDs
func (s *InMemoryEventStore) ReconstructChain(clOrdID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []string
	seen := make(map[string]struct{})
	curr := clOrdID
	for curr != "" {
		if _, ok := seen[curr]; ok {
			break
		}
		seen[curr] = struct{}{}
		chain = append(chain, curr)
		curr = s.clOrdChain[curr]
	}
	return chain
}

// DeleteChainByOrderID drops everything recorded for a finished order.
func (s *InMemoryEventStore) DeleteChainByOrderID(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range s.orders[orderID] {
		delete(s.clOrdChain, ev.ClOrdID)
	}
	delete(s.orders, orderID)
	delete(s.latestClOrdID, orderID)
}
