package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/sharedcart/internal/services/cart/domain"
)

// SampleProducts is the starter product list keyed by barcode.
var SampleProducts = []Product{
	{Barcode: "12345678", Name: "Organic Milk", Price: domain.MustAmount("6.99")},
	{Barcode: "23456789", Name: "Premium Coffee", Price: domain.MustAmount("12.99")},
	{Barcode: "34567890", Name: "Branded Cereal", Price: domain.MustAmount("5.49")},
	{Barcode: "45678901", Name: "Fresh Salmon", Price: domain.MustAmount("15.99")},
	{Barcode: "56789012", Name: "Premium Chocolate", Price: domain.MustAmount("8.49")},
}

// SampleAlternatives lists cheaper substitutes for the sample products.
var SampleAlternatives = map[string][]Alternative{
	"Organic Milk": {
		{Name: "Regular Milk", SavingsPercent: 30},
		{Name: "Store Brand Milk", SavingsPercent: 40},
	},
	"Premium Coffee": {
		{Name: "Regular Coffee", SavingsPercent: 45},
		{Name: "Store Brand Coffee", SavingsPercent: 60},
	},
	"Branded Cereal": {
		{Name: "Store Brand Cereal", SavingsPercent: 35},
	},
	"Fresh Salmon": {
		{Name: "Frozen Salmon", SavingsPercent: 25},
		{Name: "Canned Tuna", SavingsPercent: 70},
	},
	"Premium Chocolate": {
		{Name: "Regular Chocolate", SavingsPercent: 40},
	},
}

// Seed upserts the sample data. Running it again refreshes the same rows.
func Seed(ctx context.Context, store Store, now time.Time) error {
	for _, product := range SampleProducts {
		product.UpdatedAt = now
		if err := store.UpsertProduct(ctx, product); err != nil {
			return fmt.Errorf("seed product %s: %w", product.Barcode, err)
		}
	}
	for name, alternatives := range SampleAlternatives {
		if err := store.ReplaceAlternatives(ctx, name, alternatives); err != nil {
			return fmt.Errorf("seed alternatives for %s: %w", name, err)
		}
	}
	return nil
}
