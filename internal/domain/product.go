package domain

import "github.com/shopspring/decimal"

// Product is the catalog view the order pipeline needs. Catalog management
// lives elsewhere; this service only reads products.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
}

// Buyer is the account data embedded in order views.
type Buyer struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"-"`
}
