package fixgateway

import (
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// NewOrderSingle is a decoded D message, whatever the FIX version.
type NewOrderSingle struct {
	SessionID quickfix.SessionID

	Account  string
	ClOrdID  string
	Symbol   string
	OrdType  enum.OrdType
	Price    decimal.Decimal
	Side     enum.Side
	OrderQty decimal.Decimal
}

type OrderCancelRequest struct {
	SessionID quickfix.SessionID

	OrigClOrdID string
	ClOrdID     string
	Symbol      string
	Side        enum.Side
}

type OrderCancelReplaceRequest struct {
	SessionID quickfix.SessionID

	OrigClOrdID string
	ClOrdID     string
	Symbol      string
	Side        enum.Side
	OrdType     enum.OrdType
	Price       decimal.Decimal
	OrderQty    decimal.Decimal
}

// MarketDataRequest is a decoded V message.
type MarketDataRequest struct {
	SessionID quickfix.SessionID

	MDReqID                 string
	SubscriptionRequestType enum.SubscriptionRequestType
	Symbols                 []string
}
