// Package catalog defines the read-mostly product and alternatives data that
// participants look up before adding items.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/sharedcart/internal/services/cart/domain"
)

// ErrNotFound indicates a requested catalog record is missing.
var ErrNotFound = errors.New("record not found")

// Product is one barcode entry.
type Product struct {
	Barcode   string
	Name      string
	Price     domain.Amount
	UpdatedAt time.Time
}

// Alternative is a cheaper substitute for a named product.
type Alternative struct {
	Name           string `json:"name"`
	SavingsPercent int    `json:"savingsPercent"`
}

// Store persists catalog records.
type Store interface {
	UpsertProduct(ctx context.Context, product Product) error
	ReplaceAlternatives(ctx context.Context, productName string, alternatives []Alternative) error
	GetProduct(ctx context.Context, barcode string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	GetAlternatives(ctx context.Context, productName string) ([]Alternative, error)
	ListAlternatives(ctx context.Context) (map[string][]Alternative, error)
}
