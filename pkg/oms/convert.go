package oms

import (
	"math"

	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/joripage/tradesim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

var bookSides = map[model.OrderSide]orderbook.Side{
	model.OrderSideBuy:  orderbook.BID,
	model.OrderSideSell: orderbook.ASK,
}

var bookOrderType = map[model.OrderType]orderbook.OrderType{
	model.OrderTypeLimit:  orderbook.LIMIT,
	model.OrderTypeMarket: orderbook.MARKET,
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

func validQuantity(qty decimal.Decimal) bool {
	return qty.IsPositive() && qty.IsInteger() && !qty.GreaterThan(maxQuantity)
}

// validPrice also rejects prices that round to zero or infinity in the book.
func validPrice(price decimal.Decimal) bool {
	f := price.InexactFloat64()
	return price.IsPositive() && f > 0 && !math.IsInf(f, 0)
}

func validateOrder(side model.OrderSide, orderType model.OrderType, price, qty decimal.Decimal) (orderbook.Side, error) {
	bookSide, ok := bookSides[side]
	if !ok {
		return "", ErrInvalidSide
	}
	if _, ok := bookOrderType[orderType]; !ok {
		return "", ErrInvalidOrderType
	}
	if !validQuantity(qty) {
		return "", ErrInvalidQuantity
	}
	if orderType == model.OrderTypeLimit && !validPrice(price) {
		return "", ErrInvalidPrice
	}
	return bookSide, nil
}

// validateReplace checks a replacement, which is always a limit order.
func validateReplace(price, qty decimal.Decimal) error {
	if !validQuantity(qty) {
		return ErrInvalidQuantity
	}
	if !validPrice(price) {
		return ErrInvalidPrice
	}
	return nil
}
