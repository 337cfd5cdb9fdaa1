package eventstore

import "github.com/joripage/tradesim/pkg/oms/model"

type EventStore interface {
	AddEvent(ev *model.OrderEvent)
	Events(orderID string) []*model.OrderEvent
	GetLatestClOrdID(orderID string) string
	GetOrigClOrdID(clOrdID string) string
	ReconstructChain(clOrdID string) []string
	DeleteChainByOrderID(orderID string)
}
