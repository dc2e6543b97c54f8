package repository

import (
	"context"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
)

// ProductRepository provides whole-document access to the products collection.
// Every mutation rewrites the full collection; there is no partial update.
type ProductRepository interface {
	// List returns all products, or an empty slice when none are stored.
	List(ctx context.Context) ([]model.Product, error)
	// Replace overwrites the whole collection, stamping timestamps.
	Replace(ctx context.Context, products []model.Product) error
	// Add inserts a product with a fresh identifier (max existing + 1).
	Add(ctx context.Context, p model.Product) (model.Product, error)
	// Update overwrites the product matching p.ID; ErrNotFound when absent.
	// CreatedAt is preserved from the stored record.
	Update(ctx context.Context, p model.Product) (model.Product, error)
	// Delete removes the product by id; ErrNotFound when absent.
	Delete(ctx context.Context, id int) error
}

// OrderRepository provides whole-document access to the orders collection.
type OrderRepository interface {
	// List returns all orders, or an empty slice when none are stored.
	List(ctx context.Context) ([]model.Order, error)
	// Replace overwrites the whole collection.
	Replace(ctx context.Context, orders []model.Order) error
	// Get returns the order by id; ErrNotFound when absent.
	Get(ctx context.Context, id string) (model.Order, error)
	// Add inserts a new order with generated id and tracking number.
	Add(ctx context.Context, o model.Order) (model.Order, error)
	// SetStatus advances an order's status, appending a timeline step.
	SetStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error)
}

// SettingsRepository persists the storefront preferences document.
type SettingsRepository interface {
	// Get returns stored settings, or the defaults when none are stored.
	Get(ctx context.Context) (model.Settings, error)
	// Save overwrites the settings document.
	Save(ctx context.Context, s model.Settings) error
}
