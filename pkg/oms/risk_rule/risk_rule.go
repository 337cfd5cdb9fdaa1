package riskrule

import (
	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

// Order is the part of a new or replacing order a rule looks at.
type Order struct {
	Symbol   string
	Type     model.OrderType
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

type RiskRule interface {
	Check(order Order) error
}
