package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddOrder is a new order request as decoded by a gateway.
type AddOrder struct {
	Session      string
	ClOrdID      string
	Account      string
	Symbol       string
	Type         OrderType
	Side         OrderSide
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	TransactTime time.Time
}

type CancelOrder struct {
	Session     string
	ClOrdID     string
	OrigClOrdID string
	Symbol      string
	Side        OrderSide
}

// ModifyOrder replaces OrigClOrdID with a new order carrying ClOrdID.
type ModifyOrder struct {
	Session     string
	ClOrdID     string
	OrigClOrdID string
	Symbol      string
	Side        OrderSide
	NewPrice    decimal.Decimal
	NewQuantity decimal.Decimal
}
