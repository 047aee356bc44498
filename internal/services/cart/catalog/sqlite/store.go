// Package sqlite provides a SQLite-backed catalog store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/sharedcart/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/sharedcart/internal/services/cart/catalog"
	"github.com/louisbranch/sharedcart/internal/services/cart/catalog/sqlite/migrations"
	"github.com/louisbranch/sharedcart/internal/services/cart/domain"
)

// Store persists catalog records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite catalog store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// UpsertProduct inserts or replaces one product keyed by barcode.
func (s *Store) UpsertProduct(ctx context.Context, product catalog.Product) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	barcode := strings.TrimSpace(product.Barcode)
	name := strings.TrimSpace(product.Name)
	if barcode == "" {
		return fmt.Errorf("barcode is required")
	}
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if product.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	updatedAt := product.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO products (barcode, name, price, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(barcode) DO UPDATE SET
		   name = excluded.name,
		   price = excluded.price,
		   updated_at = excluded.updated_at`,
		barcode,
		name,
		product.Price.String(),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// ReplaceAlternatives swaps the full alternative list for productName.
func (s *Store) ReplaceAlternatives(ctx context.Context, productName string, alternatives []catalog.Alternative) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	productName = strings.TrimSpace(productName)
	if productName == "" {
		return fmt.Errorf("product name is required")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace alternatives: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM alternatives WHERE product_name = ?`, productName); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear alternatives: %w", err)
	}
	for i, alt := range alternatives {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alternatives (product_name, position, name, savings_percent) VALUES (?, ?, ?, ?)`,
			productName, i, strings.TrimSpace(alt.Name), alt.SavingsPercent,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert alternative: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alternatives: %w", err)
	}
	return nil
}

// GetProduct returns one product by barcode.
func (s *Store) GetProduct(ctx context.Context, barcode string) (catalog.Product, error) {
	if err := s.ready(ctx); err != nil {
		return catalog.Product{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT barcode, name, price, updated_at FROM products WHERE barcode = ?`,
		strings.TrimSpace(barcode),
	)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// ListProducts returns every product ordered by barcode.
func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT barcode, name, price, updated_at FROM products ORDER BY barcode ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// GetAlternatives returns the substitutes for productName in stored order.
func (s *Store) GetAlternatives(ctx context.Context, productName string) ([]catalog.Alternative, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, savings_percent FROM alternatives WHERE product_name = ? ORDER BY position ASC`,
		strings.TrimSpace(productName),
	)
	if err != nil {
		return nil, fmt.Errorf("get alternatives: %w", err)
	}
	defer rows.Close()

	var alternatives []catalog.Alternative
	for rows.Next() {
		var alt catalog.Alternative
		if err := rows.Scan(&alt.Name, &alt.SavingsPercent); err != nil {
			return nil, fmt.Errorf("get alternatives: %w", err)
		}
		alternatives = append(alternatives, alt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get alternatives: %w", err)
	}
	if len(alternatives) == 0 {
		return nil, catalog.ErrNotFound
	}
	return alternatives, nil
}

// ListAlternatives returns every product's substitutes keyed by product name.
func (s *Store) ListAlternatives(ctx context.Context) (map[string][]catalog.Alternative, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT product_name, name, savings_percent FROM alternatives ORDER BY product_name ASC, position ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list alternatives: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]catalog.Alternative)
	for rows.Next() {
		var productName string
		var alt catalog.Alternative
		if err := rows.Scan(&productName, &alt.Name, &alt.SavingsPercent); err != nil {
			return nil, fmt.Errorf("list alternatives: %w", err)
		}
		out[productName] = append(out[productName], alt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alternatives: %w", err)
	}
	return out, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (catalog.Product, error) {
	var product catalog.Product
	var price string
	var updatedAt int64
	if err := row.Scan(&product.Barcode, &product.Name, &price, &updatedAt); err != nil {
		return catalog.Product{}, err
	}
	amount, err := domain.AmountFromString(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("decode price %q: %w", price, err)
	}
	product.Price = amount
	product.UpdatedAt = fromMillis(updatedAt)
	return product, nil
}

var _ catalog.Store = (*Store)(nil)
