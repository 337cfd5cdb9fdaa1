package oms

import (
	"context"

	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/joripage/tradesim/pkg/orderbook"
)

// IOMS is what a gateway needs from the order management system. The
// returned envelopes are ready to be delivered to their sessions.
type IOMS interface {
	OnLogon(session string)
	OnLogout(session string)
	AddOrder(ctx context.Context, addOrder *model.AddOrder) []model.Envelope
	ModifyOrder(ctx context.Context, modifyOrder *model.ModifyOrder) []model.Envelope
	CancelOrder(ctx context.Context, cancelOrder *model.CancelOrder) []model.Envelope
}

var _ IOMS = (*OMS)(nil)

// SnapshotSink receives the book of a symbol after every change to it.
type SnapshotSink interface {
	OnBookChanged(snapshot orderbook.Snapshot)
}
