package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCanceled   OrderStatus = "Canceled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCanceled:
		return true
	}
	return false
}

// orderTransitions lists the statuses reachable from each status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCanceled},
	OrderProcessing: {OrderShipped, OrderCanceled},
	OrderShipped:    {OrderDelivered},
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderLine is one purchased catalog item, frozen at checkout time.
// Lines are stored inside Orders.orderDetails as a JSON array.
type OrderLine struct {
	VinylID   int64           `json:"vinylId"`
	Titulo    string          `json:"titulo"`
	Artista   string          `json:"artista"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Subtotal is UnitPrice × Quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a placed purchase. Many orders reference one user.
type Order struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	UserID        int64           `json:"userId"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	OrderDetails  []OrderLine     `json:"orderDetails"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
}
