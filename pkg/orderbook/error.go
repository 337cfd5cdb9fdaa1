package orderbook

import "errors"

var (
	ErrWrongInstrument  = errors.New("incorrect orderbook assignment")
	ErrDuplicateOrderID = errors.New("duplicate order id")
	ErrUnknownOrder     = errors.New("order not found")
	ErrSideMismatch     = errors.New("replacement side does not match resting order")
)
