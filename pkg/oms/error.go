package oms

import "errors"

var (
	ErrInvalidQuantity  = errors.New("order quantity must be a positive whole number within range")
	ErrInvalidPrice     = errors.New("limit price must be positive and within range")
	ErrInvalidSide      = errors.New("invalid side")
	ErrInvalidOrderType = errors.New("invalid order type")
)
