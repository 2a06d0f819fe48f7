package model

import (
	"fmt"
	"time"
)

// SideType is the order's buy/sell direction.
type SideType string

// OrderType is the exchange order type.
type OrderType string

// OrderStatusType is the lifecycle state of an order at the exchange.
type OrderStatusType string

var (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

var (
	OrderTypeLimit           OrderType = "LIMIT"
	OrderTypeMarket          OrderType = "MARKET"
	OrderTypeLimitMaker      OrderType = "LIMIT_MAKER"
	OrderTypeStopLoss        OrderType = "STOP_LOSS"
	OrderTypeStopLossLimit   OrderType = "STOP_LOSS_LIMIT"
	OrderTypeTakeProfit      OrderType = "TAKE_PROFIT"
	OrderTypeTakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"
)

var (
	OrderStatusTypeNew             OrderStatusType = "NEW"
	OrderStatusTypePartiallyFilled OrderStatusType = "PARTIALLY_FILLED"
	OrderStatusTypeFilled          OrderStatusType = "FILLED"
	OrderStatusTypeCanceled        OrderStatusType = "CANCELED"
	OrderStatusTypePendingCancel   OrderStatusType = "PENDING_CANCEL"
	OrderStatusTypeRejected        OrderStatusType = "REJECTED"
	OrderStatusTypeExpired          OrderStatusType = "EXPIRED"
)

// OrderRole identifies which leg of a CHoCH entry a futures order fills:
// one of the two scaled-in entries, the shared take-profit, or the shared
// stop-loss. Role drives order.Manager's fill-state machine.
type OrderRole string

const (
	OrderRoleEntry1 OrderRole = "ENTRY1"
	OrderRoleEntry2 OrderRole = "ENTRY2"
	OrderRoleTakeProfit OrderRole = "TAKE_PROFIT"
	OrderRoleStopLoss   OrderRole = "STOP_LOSS"
)

// Order is one exchange order, persisted and tracked through fills.
type Order struct {
	ID         int64           `db:"id" json:"id" gorm:"primaryKey,autoIncrement"`
	ExchangeID int64           `db:"exchange_id" json:"exchange_id"`
	Pair       string          `db:"pair" json:"pair"`
	Side       SideType        `db:"side" json:"side"`
	Type       OrderType       `db:"type" json:"type"`
	Status     OrderStatusType `db:"status" json:"status"`
	Price      float64         `db:"price" json:"price"`
	Quantity   float64         `db:"quantity" json:"quantity"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Stop carries the trigger price for STOP_LOSS/TAKE_PROFIT orders.
	Stop *float64 `db:"stop" json:"stop"`
	// GroupID ties the four orders of one CHoCH entry together.
	GroupID *int64 `db:"group_id" json:"group_id"`
	// Role is which of entry1/entry2/tp/sl this order is within its group.
	Role OrderRole `db:"role" json:"role"`
	// ReduceOnly marks TP/SL orders that close an existing futures position
	// rather than open one.
	ReduceOnly bool `db:"reduce_only" json:"reduce_only"`

	// Internal fields, not persisted.
	RefPrice    float64 `json:"ref_price" gorm:"-"`
	Profit      float64 `json:"profit" gorm:"-"`
	ProfitValue float64 `json:"profit_value" gorm:"-"`
	Candle      Candle  `json:"-" gorm:"-"`
}

func (o Order) String() string {
	return fmt.Sprintf("[%s] %s %s | ID: %d, Type: %s, %f x $%f (~$%.f)",
		o.Status, o.Side, o.Pair, o.ID, o.Type, o.Quantity, o.Price, o.Quantity*o.Price)
}
