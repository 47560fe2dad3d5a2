package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MinLineQuantity is the smallest quantity a cart line can hold. Lowering a
// line below it clamps; deleting a line is always an explicit RemoveItem.
const MinLineQuantity = 1

// MaxLineQuantity matches the INT quantity column of order_items.
const MaxLineQuantity = math.MaxInt32

// ClampQuantity keeps qty within [MinLineQuantity, MaxLineQuantity].
func ClampQuantity(qty int) int {
	if qty < MinLineQuantity {
		return MinLineQuantity
	}
	if qty > MaxLineQuantity {
		return MaxLineQuantity
	}
	return qty
}

// CartLine is one product in a cart. UnitPrice is in the catalog currency.
type CartLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// LineTotal returns UnitPrice × Quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a buyer's in-progress selection, keyed by product id.
// Lines keep insertion order so the cart renders stably.
type Cart struct {
	BuyerID   string     `json:"buyerId"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewCart returns an empty cart owned by buyerID.
func NewCart(buyerID string) *Cart {
	return &Cart{BuyerID: buyerID, Lines: []CartLine{}}
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// FindLine returns the line for productID, if present.
func (c *Cart) FindLine(productID string) (CartLine, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

// AddItem sets the quantity of product in the cart. An existing line has its
// quantity replaced, not summed, and its price refreshed from product.
func (c *Cart) AddItem(product Product, qty int) {
	line := CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  ClampQuantity(qty),
	}
	if i := c.indexOf(product.ID); i >= 0 {
		c.Lines[i] = line
		return
	}
	c.Lines = append(c.Lines, line)
}

// UpdateQuantity sets the quantity of an existing line, clamped to
// MinLineQuantity. It reports false when the product is not in the cart.
func (c *Cart) UpdateQuantity(productID string, qty int) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.Lines[i].Quantity = ClampQuantity(qty)
	return true
}

// RemoveItem deletes the line for productID. Absent products are a no-op.
func (c *Cart) RemoveItem(productID string) {
	if i := c.indexOf(productID); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Lines = []CartLine{}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Total returns Σ unitPrice × quantity in the catalog currency.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// ItemCount returns the number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// OrderItems snapshots the cart as order line items.
func (c *Cart) OrderItems() []OrderItem {
	items := make([]OrderItem, len(c.Lines))
	for i, l := range c.Lines {
		items[i] = OrderItem{ProductRef: l.ProductID, Quantity: l.Quantity}
	}
	return items
}
