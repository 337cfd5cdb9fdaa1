package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCanceled        OrderStatus = "Canceled"
	OrderStatusReplaced        OrderStatus = "Replaced"
	OrderStatusRejected        OrderStatus = "Rejected"
)

type OrderExecType string

const (
	ExecTypeNew      OrderExecType = "New"
	ExecTypeCanceled OrderExecType = "Canceled"
	ExecTypeReplaced OrderExecType = "Replaced"
	ExecTypeRejected OrderExecType = "Rejected"
	ExecTypeTrade    OrderExecType = "Trade"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

type RejectReason string

const (
	RejectUnknownInstrument RejectReason = "UnknownInstrument"
	RejectUnknownOrder      RejectReason = "UnknownOrder"
	RejectDuplicateOrder    RejectReason = "DuplicateOrder"
	RejectOther             RejectReason = "Other"
)

// ReportFields is the part every execution report carries.
type ReportFields struct {
	OrderID      string // exchange order id
	ExecID       string
	ClOrdID      string
	OrigClOrdID  string
	Symbol       string
	Side         OrderSide
	OrderQty     decimal.Decimal
	Price        decimal.Decimal
	CumQty       decimal.Decimal
	LeavesQty    decimal.Decimal
	AvgPx        decimal.Decimal
	TransactTime time.Time
}

// Report is an outbound execution report. It is implemented by *Ack, *Fill and *Reject.
type Report interface {
	Fields() *ReportFields
	ExecType() OrderExecType
	Status() OrderStatus
}

// Ack acknowledges a new order, a replacement or a cancel.
type Ack struct {
	ReportFields
	Kind OrderExecType // ExecTypeNew, ExecTypeReplaced or ExecTypeCanceled
}

func (a *Ack) Fields() *ReportFields   { return &a.ReportFields }
func (a *Ack) ExecType() OrderExecType { return a.Kind }

func (a *Ack) Status() OrderStatus {
	switch a.Kind {
	case ExecTypeReplaced:
		return OrderStatusReplaced
	case ExecTypeCanceled:
		return OrderStatusCanceled
	default:
		return OrderStatusNew
	}
}

// Fill reports one execution against the order.
type Fill struct {
	ReportFields
	LastQty decimal.Decimal
	LastPx  decimal.Decimal
}

func (f *Fill) Fields() *ReportFields   { return &f.ReportFields }
func (f *Fill) ExecType() OrderExecType { return ExecTypeTrade }

func (f *Fill) Status() OrderStatus {
	if f.LeavesQty.IsPositive() {
		return OrderStatusPartiallyFilled
	}
	return OrderStatusFilled
}

type Reject struct {
	ReportFields
	Reason RejectReason
	Text   string
}

func (r *Reject) Fields() *ReportFields   { return &r.ReportFields }
func (r *Reject) ExecType() OrderExecType { return ExecTypeRejected }
func (r *Reject) Status() OrderStatus     { return OrderStatusRejected }

// Envelope addresses a report to a session.
type Envelope struct {
	Session string
	Report  Report
}
