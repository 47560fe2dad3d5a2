package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order status values as stored and exchanged over the API.
const (
	StatusPending   OrderStatus = "Pending"
	StatusShipped   OrderStatus = "Shipped"
	StatusDelivered OrderStatus = "Delivered"
	StatusRefunded  OrderStatus = "Refunded"
)

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []OrderStatus {
	return []OrderStatus{StatusPending, StatusShipped, StatusDelivered, StatusRefunded}
}

// ParseStatus resolves s case-insensitively to a known status.
func ParseStatus(s string) (OrderStatus, bool) {
	for _, st := range ValidStatuses() {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusRefunded:
		return true
	}
	return false
}

// Order is the durable record of a completed purchase.
//
// TotalAmount is in major units of the settlement currency.
// PaymentReference is the gateway's reference, stored verbatim.
type Order struct {
	ID               string          `json:"id"`
	BuyerID          string          `json:"buyerId"`
	Items            []OrderItem     `json:"items"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Currency         string          `json:"currency"`
	ShippingDetails  ShippingDetails `json:"shippingDetails"`
	PaymentReference string          `json:"paymentReference"`
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// CanTransitionTo reports whether the order may move to target. Every known
// status is reachable from every other, backward moves included.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	return target.IsValid()
}

// IsVisibleTo reports whether actor may read the order.
func (o *Order) IsVisibleTo(actor Actor) bool {
	return actor.IsOperator || (actor.UserID != "" && actor.UserID == o.BuyerID)
}

// OrderItem is a product reference and quantity. The product is referenced,
// not owned; it may since have been deleted from the catalog.
type OrderItem struct {
	ProductRef string `json:"productRef"`
	Quantity   int    `json:"quantity"`
}

// ShippingDetails is the delivery snapshot captured at checkout.
type ShippingDetails struct {
	FullName   string `json:"fullName" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
}

// Normalize trims surrounding whitespace from every field.
func (s ShippingDetails) Normalize() ShippingDetails {
	return ShippingDetails{
		FullName:   strings.TrimSpace(s.FullName),
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		PostalCode: strings.TrimSpace(s.PostalCode),
		Country:    strings.TrimSpace(s.Country),
		Phone:      strings.TrimSpace(s.Phone),
	}
}

// OrderDetails is an order with its buyer and products resolved for display.
type OrderDetails struct {
	Order
	Buyer *Buyer            `json:"buyer,omitempty"`
	Lines []OrderItemDetail `json:"lines"`
}

// OrderItemDetail pairs an item with its product. Product is nil when the
// referenced product no longer exists.
type OrderItemDetail struct {
	OrderItem
	Product *Product `json:"product"`
}

// NewOrderDetails joins o with the given buyer and product lookup.
func NewOrderDetails(o Order, buyer *Buyer, products map[string]Product) OrderDetails {
	lines := make([]OrderItemDetail, len(o.Items))
	for i, item := range o.Items {
		lines[i] = OrderItemDetail{OrderItem: item}
		if p, ok := products[item.ProductRef]; ok {
			lines[i].Product = &p
		}
	}
	return OrderDetails{Order: o, Buyer: buyer, Lines: lines}
}
