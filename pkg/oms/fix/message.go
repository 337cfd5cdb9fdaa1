package fixgateway

import (
	"errors"
	"fmt"

	"github.com/joripage/tradesim/pkg/oms/model"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	fix42er "github.com/quickfixgo/fix42/executionreport"
	fix44er "github.com/quickfixgo/fix44/executionreport"
	"github.com/quickfixgo/quickfix"
)

const (
	qtyScale = 0
	pxScale  = 4
)

var errUnsupportedVersion = errors.New("unsupported FIX version")

var (
	OrderStatusMapping = map[model.OrderStatus]enum.OrdStatus{
		model.OrderStatusNew:             enum.OrdStatus_NEW,
		model.OrderStatusPartiallyFilled: enum.OrdStatus_PARTIALLY_FILLED,
		model.OrderStatusFilled:          enum.OrdStatus_FILLED,
		model.OrderStatusCanceled:        enum.OrdStatus_CANCELED,
		model.OrderStatusReplaced:        enum.OrdStatus_REPLACED,
		model.OrderStatusRejected:        enum.OrdStatus_REJECTED,
	}

	ExecTypeMapping = map[model.OrderExecType]enum.ExecType{
		model.ExecTypeNew:      enum.ExecType_NEW,
		model.ExecTypeCanceled: enum.ExecType_CANCELED,
		model.ExecTypeReplaced: enum.ExecType_REPLACED,
		model.ExecTypeRejected: enum.ExecType_REJECTED,
		model.ExecTypeTrade:    enum.ExecType_TRADE,
	}

	SideMapping = map[model.OrderSide]enum.Side{
		model.OrderSideBuy:  enum.Side_BUY,
		model.OrderSideSell: enum.Side_SELL,
	}

	RejectReasonMapping = map[model.RejectReason]enum.OrdRejReason{
		model.RejectUnknownInstrument: enum.OrdRejReason_UNKNOWN_SYMBOL,
		model.RejectUnknownOrder:      enum.OrdRejReason_UNKNOWN_ORDER,
		model.RejectDuplicateOrder:    enum.OrdRejReason_DUPLICATE_ORDER,
		model.RejectOther:             enum.OrdRejReason_OTHER,
	}
)

func executionReport(beginString string, report model.Report) (quickfix.Messagable, error) {
	switch beginString {
	case quickfix.BeginStringFIX44:
		return executionReport44(report), nil
	case quickfix.BeginStringFIX42:
		return executionReport42(report), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedVersion, beginString)
	}
}

// side falls back to buy for reports about requests that never had a valid side.
func side(s model.OrderSide) enum.Side {
	if v, ok := SideMapping[s]; ok {
		return v
	}
	return enum.Side_BUY
}

func executionReport44(report model.Report) fix44er.ExecutionReport {
	f := report.Fields()
	msg := fix44er.New(
		field.NewOrderID(f.OrderID),
		field.NewExecID(f.ExecID),
		field.NewExecType(ExecTypeMapping[report.ExecType()]),
		field.NewOrdStatus(OrderStatusMapping[report.Status()]),
		field.NewSide(side(f.Side)),
		field.NewLeavesQty(f.LeavesQty, qtyScale),
		field.NewCumQty(f.CumQty, qtyScale),
		field.NewAvgPx(f.AvgPx, pxScale),
	)
	msg.SetClOrdID(f.ClOrdID)
	if f.OrigClOrdID != "" {
		msg.SetOrigClOrdID(f.OrigClOrdID)
	}
	msg.SetSymbol(f.Symbol)
	msg.SetOrderQty(f.OrderQty, qtyScale)
	if f.Price.IsPositive() {
		msg.SetPrice(f.Price, pxScale)
	}
	msg.SetTransactTime(f.TransactTime)

	switch r := report.(type) {
	case *model.Fill:
		msg.SetLastQty(r.LastQty, qtyScale)
		msg.SetLastPx(r.LastPx, pxScale)
	case *model.Reject:
		msg.SetOrdRejReason(RejectReasonMapping[r.Reason])
		msg.SetText(r.Text)
	}
	return msg
}

// FIX.4.2 has no Trade exec type, fills are reported as partial or full fills.
func executionReport42(report model.Report) fix42er.ExecutionReport {
	f := report.Fields()
	execType := ExecTypeMapping[report.ExecType()]
	if _, ok := report.(*model.Fill); ok {
		execType = enum.ExecType_PARTIAL_FILL
		if report.Status() == model.OrderStatusFilled {
			execType = enum.ExecType_FILL
		}
	}

	msg := fix42er.New(
		field.NewOrderID(f.OrderID),
		field.NewExecID(f.ExecID),
		field.NewExecTransType(enum.ExecTransType_NEW),
		field.NewExecType(execType),
		field.NewOrdStatus(OrderStatusMapping[report.Status()]),
		field.NewSymbol(f.Symbol),
		field.NewSide(side(f.Side)),
		field.NewLeavesQty(f.LeavesQty, qtyScale),
		field.NewCumQty(f.CumQty, qtyScale),
		field.NewAvgPx(f.AvgPx, pxScale),
	)
	msg.SetClOrdID(f.ClOrdID)
	if f.OrigClOrdID != "" {
		msg.SetOrigClOrdID(f.OrigClOrdID)
	}
	msg.SetOrderQty(f.OrderQty, qtyScale)
	if f.Price.IsPositive() {
		msg.SetPrice(f.Price, pxScale)
	}
	msg.SetTransactTime(f.TransactTime)

	switch r := report.(type) {
	case *model.Fill:
		msg.SetLastShares(r.LastQty, qtyScale)
		msg.SetLastPx(r.LastPx, pxScale)
	case *model.Reject:
		msg.SetOrdRejReason(RejectReasonMapping[r.Reason])
		msg.SetText(r.Text)
	}
	return msg
}
