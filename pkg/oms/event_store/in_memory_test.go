package eventstore

import (
	"context"
	"errors"
	"testing"

	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func event(orderID, execID, clOrdID, origClOrdID string, execType model.OrderExecType) *model.OrderEvent {
	return &model.OrderEvent{
		EventID:     model.NewEventID(execID, clOrdID),
		OrderID:     orderID,
		ExecID:      execID,
		ClOrdID:     clOrdID,
		OrigClOrdID: origClOrdID,
		ExecType:    execType,
	}
}

func TestChain(t *testing.T) {
	s := NewInMemoryEventStore()
	s.AddEvent(event("O1", "E1", "C1", "", model.ExecTypeNew))
	s.AddEvent(event("O1", "E2", "C2", "C1", model.ExecTypeReplaced))
	s.AddEvent(event("O1", "E3", "C3", "C2", model.ExecTypeReplaced))

	assert.Equal(t, "C3", s.GetLatestClOrdID("O1"))
	assert.Equal(t, "C2", s.GetOrigClOrdID("C3"))
	assert.Equal(t, []string{"C3", "C2", "C1"}, s.ReconstructChain("C3"))
	assert.Len(t, s.Events("O1"), 3)
}

func TestRejectsNotTracked(t *testing.T) {
	s := NewInMemoryEventStore()
	s.AddEvent(event("NONE", "E1", "C9", "C8", model.ExecTypeRejected))

	assert.Empty(t, s.Events("NONE"))
	assert.Empty(t, s.GetOrigClOrdID("C9"))
}

func TestChainCycle(t *testing.T) {
	s := NewInMemoryEventStore()
	s.AddEvent(event("O1", "E1", "A", "B", model.ExecTypeReplaced))
	s.AddEvent(event("O1", "E2", "B", "A", model.ExecTypeReplaced))

	assert.Equal(t, []string{"A", "B"}, s.ReconstructChain("A"))
}

func TestDeleteChain(t *testing.T) {
	s := NewInMemoryEventStore()
	s.AddEvent(event("O1", "E1", "C1", "", model.ExecTypeNew))
	s.AddEvent(event("O1", "E2", "C2", "C1", model.ExecTypeReplaced))
	s.AddEvent(event("O2", "E3", "D1", "", model.ExecTypeNew))

	s.DeleteChainByOrderID("O1")

	assert.Empty(t, s.Events("O1"))
	assert.Empty(t, s.GetLatestClOrdID("O1"))
	assert.Equal(t, []string{"C2"}, s.ReconstructChain("C2"))
	assert.Len(t, s.Events("O2"), 1)
}

func TestEventsReturnsCopy(t *testing.T) {
	s := NewInMemoryEventStore()
	s.AddEvent(event("O1", "E1", "C1", "", model.ExecTypeNew))

	events := s.Events("O1")
	events[0] = nil
	assert.NotNil(t, s.Events("O1")[0])
}

type publishCall struct {
	topic, key string
	headers    map[string]string
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) PublishJSON(_ context.Context, topic string, key string, _ any, headers map[string]string) error {
	f.calls = append(f.calls, publishCall{topic, key, headers})
	return f.err
}

func TestKafkaEventStore(t *testing.T) {
	pub := &fakePublisher{}
	s := NewKafkaEventStore(pub, "order.events", zap.NewNop())

	s.AddEvent(event("O1", "E1", "C1", "", model.ExecTypeNew))
	s.AddEvent(event("NONE", "E2", "C2", "", model.ExecTypeRejected))

	require.Len(t, pub.calls, 2, "rejects are journaled too")
	assert.Equal(t, publishCall{"order.events", "O1", map[string]string{"exec_type": "New"}}, pub.calls[0])
	assert.Len(t, s.Events("O1"), 1)
}

func TestKafkaEventStorePublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	s := NewKafkaEventStore(pub, "order.events", zap.NewNop())

	s.AddEvent(event("O1", "E1", "C1", "", model.ExecTypeNew))
	assert.Len(t, s.Events("O1"), 1, "the in-memory copy is kept")
}
