package domain

// RecipientKind distinguishes the two notifications sent per order.
type RecipientKind string

const (
	RecipientBuyer    RecipientKind = "buyer"
	RecipientOperator RecipientKind = "operator"
)

// Message is a plain-text notification.
type Message struct {
	OrderID string        `json:"orderId"`
	Kind    RecipientKind `json:"kind"`
	From    string        `json:"from"`
	To      string        `json:"to"`
	Subject string        `json:"subject"`
	Body    string        `json:"body"`
}
