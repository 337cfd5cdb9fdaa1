package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderEvent is the journal record of one execution report.
type OrderEvent struct {
	EventID     string          `json:"event_id" gorm:"primaryKey;type:uuid"`
	Session     string          `json:"session"`
	OrderID     string          `json:"order_id" gorm:"index"`
	ExecID      string          `json:"exec_id"`
	ClOrdID     string          `json:"cl_ord_id"`
	OrigClOrdID string          `json:"orig_cl_ord_id"`
	Symbol      string          `json:"symbol"`
	Side        OrderSide       `json:"side"`
	ExecType    OrderExecType   `json:"exec_type"`
	Status      OrderStatus     `json:"status"`
	OrderQty    decimal.Decimal `json:"order_qty" gorm:"type:numeric"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric"`
	CumQty      decimal.Decimal `json:"cum_qty" gorm:"type:numeric"`
	LeavesQty   decimal.Decimal `json:"leaves_qty" gorm:"type:numeric"`
	AvgPx       decimal.Decimal `json:"avg_px" gorm:"type:numeric"`
	LastQty     decimal.Decimal `json:"last_qty" gorm:"type:numeric"`
	LastPx      decimal.Decimal `json:"last_px" gorm:"type:numeric"`
	Text        string          `json:"text"`
	Delivered   bool            `json:"delivered"`
	Timestamp   time.Time       `json:"ts" gorm:"column:ts"`
}

func (OrderEvent) TableName() string {
	return "order_events"
}

// eventNamespace scopes event ids so that replaying a report yields the same id.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("tradesim.order_events"))

// NewOrderEvent flattens env into a journal record. delivered is false when the
// destination session was not logged on.
func NewOrderEvent(env Envelope, delivered bool) *OrderEvent {
	f := env.Report.Fields()
	ev := &OrderEvent{
		EventID:     NewEventID(f.ExecID, f.ClOrdID),
		Session:     env.Session,
		OrderID:     f.OrderID,
		ExecID:      f.ExecID,
		ClOrdID:     f.ClOrdID,
		OrigClOrdID: f.OrigClOrdID,
		Symbol:      f.Symbol,
		Side:        f.Side,
		ExecType:    env.Report.ExecType(),
		Status:      env.Report.Status(),
		OrderQty:    f.OrderQty,
		Price:       f.Price,
		CumQty:      f.CumQty,
		LeavesQty:   f.LeavesQty,
		AvgPx:       f.AvgPx,
		Delivered:   delivered,
		Timestamp:   f.TransactTime,
	}

	switch r := env.Report.(type) {
	case *Fill:
		ev.LastQty, ev.LastPx = r.LastQty, r.LastPx
	case *Reject:
		ev.Text = string(r.Reason) + ": " + r.Text
	}
	return ev
}

// NewEventID derives a stable id from the exec id and the client order id.
// Both sides of a trade share the exec id, so the client order id is needed.
func NewEventID(execID, clOrdID string) string {
	return uuid.NewSHA1(eventNamespace, []byte(execID+"/"+clOrdID)).String()
}
