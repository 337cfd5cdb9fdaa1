package riskrule

import (
	"errors"
	"fmt"

	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/shopspring/decimal"
)

var ErrPriceLimit = errors.New("price limit violation")

// PriceBand bounds a limit price. A zero Ceil leaves the price unbounded
// above.
type PriceBand struct {
	Floor float64 `yaml:"floor"`
	Ceil  float64 `yaml:"ceil"`
}

type LimitPriceConfig struct {
	Default PriceBand            `yaml:"default"`
	Symbols map[string]PriceBand `yaml:"symbols"`
}

type limitPrice struct {
	ceil  decimal.Decimal
	floor decimal.Decimal
}

func newLimitPrice(band PriceBand) limitPrice {
	return limitPrice{
		ceil:  decimal.NewFromFloat(band.Ceil),
		floor: decimal.NewFromFloat(band.Floor),
	}
}

// LimitPriceRule rejects limit prices outside the band of their symbol, or
// the default band for symbols without one. Market orders are not checked.
type LimitPriceRule struct {
	fallback limitPrice
	prices   map[string]limitPrice
}

func NewLimitPriceRule(cfg LimitPriceConfig) *LimitPriceRule {
	r := &LimitPriceRule{
		fallback: newLimitPrice(cfg.Default),
		prices:   make(map[string]limitPrice, len(cfg.Symbols)),
	}
	for symbol, band := range cfg.Symbols {
		r.prices[symbol] = newLimitPrice(band)
	}
	return r
}

func (r *LimitPriceRule) Check(order Order) error {
	if order.Type == model.OrderTypeMarket {
		return nil
	}
	limit, ok := r.prices[order.Symbol]
	if !ok {
		limit = r.fallback
	}
	if order.Price.LessThan(limit.floor) {
		return fmt.Errorf("%w: %s below %s", ErrPriceLimit, order.Price, limit.floor)
	}
	if limit.ceil.IsPositive() && order.Price.GreaterThan(limit.ceil) {
		return fmt.Errorf("%w: %s above %s", ErrPriceLimit, order.Price, limit.ceil)
	}
	return nil
}
