package repo

import (
	"context"

	"github.com/joripage/tradesim/pkg/oms/model"
)

type IOrderEvent interface {
	Create(ctx context.Context, record *model.OrderEvent) (*model.OrderEvent, error)
	// BulkCreate skips records whose event id is already stored, so a batch
	// can be replayed after a partial failure.
	BulkCreate(ctx context.Context, records []*model.OrderEvent) ([]*model.OrderEvent, error)
	ListByOrderID(ctx context.Context, orderID string) ([]*model.OrderEvent, error)
}
