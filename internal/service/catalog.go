package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// UsageReport is the storage-pressure telemetry surfaced to admin views.
type UsageReport struct {
	Bytes        int
	Percent      int
	CeilingBytes int
	NearCapacity bool
}

// CatalogService defines operations over products, orders and settings.
type CatalogService interface {
	// Products returns the full catalog.
	Products(ctx context.Context) ([]model.Product, error)
	// AddProduct validates and inserts a product with a fresh identifier.
	AddProduct(ctx context.Context, p model.Product) (model.Product, error)
	// UpdateProduct validates and overwrites the product matching p.ID.
	UpdateProduct(ctx context.Context, p model.Product) (model.Product, error)
	// DeleteProduct removes a product by id.
	DeleteProduct(ctx context.Context, id int) error
	// SeedDefaults populates the catalog when it is empty.
	SeedDefaults(ctx context.Context) error

	// Orders returns all orders.
	Orders(ctx context.Context) ([]model.Order, error)
	// PlaceOrder validates and records a new order.
	PlaceOrder(ctx context.Context, o model.Order) (model.Order, error)
	// AdvanceOrder moves an order to the given status.
	AdvanceOrder(ctx context.Context, id string, status model.OrderStatus) (model.Order, error)

	// Settings returns the storefront preferences.
	Settings(ctx context.Context) (model.Settings, error)
	// SaveSettings overwrites the storefront preferences.
	SaveSettings(ctx context.Context, s model.Settings) error

	// Usage reports the persisted footprint against the quota ceiling.
	Usage(ctx context.Context) UsageReport
}

type CatalogServiceImpl struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	settings repository.SettingsRepository
	store    *storage.Store
	logger   *zap.Logger
}

var _ CatalogService = (*CatalogServiceImpl)(nil)

// NewCatalogService constructs CatalogService with required dependencies.
func NewCatalogService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	settings repository.SettingsRepository,
	store *storage.Store,
	logger *zap.Logger,
) *CatalogServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogServiceImpl{
		products: products,
		orders:   orders,
		settings: settings,
		store:    store,
		logger:   logger,
	}
}

// Products returns the full catalog.
func (s *CatalogServiceImpl) Products(ctx context.Context) ([]model.Product, error) {
	return s.products.List(ctx)
}

func validateProduct(p model.Product) error {
	if p.Name == "" {
		return errors.New("validation: empty product name")
	}
	if p.Price < 0 {
		return fmt.Errorf("validation: negative price %.2f", p.Price)
	}
	if p.Stock < 0 {
		return fmt.Errorf("validation: negative stock %d", p.Stock)
	}
	switch p.Status {
	case "", model.ProductActive, model.ProductInactive:
	default:
		return fmt.Errorf("validation: unknown status %q", p.Status)
	}
	return nil
}

// AddProduct validates and inserts a product; it reports quota pressure right
// after a successful write so admins see it before the next one fails.
func (s *CatalogServiceImpl) AddProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if err := validateProduct(p); err != nil {
		return model.Product{}, err
	}
	if p.Status == "" {
		p.Status = model.ProductActive
	}
	added, err := s.products.Add(ctx, p)
	if err != nil {
		return model.Product{}, err
	}
	s.warnOnPressure(ctx)
	return added, nil
}

// UpdateProduct validates and overwrites the product matching p.ID.
func (s *CatalogServiceImpl) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if err := validateProduct(p); err != nil {
		return model.Product{}, err
	}
	updated, err := s.products.Update(ctx, p)
	if err != nil {
		return model.Product{}, err
	}
	s.warnOnPressure(ctx)
	return updated, nil
}

// DeleteProduct removes a product by id.
func (s *CatalogServiceImpl) DeleteProduct(ctx context.Context, id int) error {
	return s.products.Delete(ctx, id)
}

// SeedDefaults populates the catalog with the demo products when empty.
func (s *CatalogServiceImpl) SeedDefaults(ctx context.Context) error {
	existing, err := s.products.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return s.products.Replace(ctx, defaultProducts())
}

// Orders returns all orders.
func (s *CatalogServiceImpl) Orders(ctx context.Context) ([]model.Order, error) {
	return s.orders.List(ctx)
}

// PlaceOrder validates and records a new order.
func (s *CatalogServiceImpl) PlaceOrder(ctx context.Context, o model.Order) (model.Order, error) {
	if o.Customer == "" {
		return model.Order{}, errors.New("validation: empty customer")
	}
	if len(o.Lines) == 0 {
		return model.Order{}, errors.New("validation: empty order")
	}
	for i, line := range o.Lines {
		if line.Name == "" {
			return model.Order{}, fmt.Errorf("validation: line[%d] empty name", i)
		}
		if line.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("validation: line[%d] non-positive quantity", i)
		}
		if line.Price < 0 {
			return model.Order{}, fmt.Errorf("validation: line[%d] negative price", i)
		}
	}
	placed, err := s.orders.Add(ctx, o)
	if err != nil {
		return model.Order{}, err
	}
	s.warnOnPressure(ctx)
	return placed, nil
}

var orderStatuses = map[model.OrderStatus]bool{
	model.OrderPlaced:     true,
	model.OrderPending:    true,
	model.OrderProcessing: true,
	model.OrderShipped:    true,
	model.OrderDelivered:  true,
	model.OrderCancelled:  true,
}

// AdvanceOrder moves an order to the given status. Cancelled and delivered
// orders are terminal.
func (s *CatalogServiceImpl) AdvanceOrder(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	if !orderStatuses[status] {
		return model.Order{}, fmt.Errorf("validation: unknown status %q", status)
	}
	current, err := s.orders.Get(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if current.Status == model.OrderCancelled || current.Status == model.OrderDelivered {
		return model.Order{}, fmt.Errorf("validation: order %s is %s", id, current.Status)
	}
	return s.orders.SetStatus(ctx, id, status)
}

// Settings returns the storefront preferences.
func (s *CatalogServiceImpl) Settings(ctx context.Context) (model.Settings, error) {
	return s.settings.Get(ctx)
}

// SaveSettings overwrites the storefront preferences.
func (s *CatalogServiceImpl) SaveSettings(ctx context.Context, settings model.Settings) error {
	return s.settings.Save(ctx, settings)
}

// Usage reports the persisted footprint against the quota ceiling.
func (s *CatalogServiceImpl) Usage(ctx context.Context) UsageReport {
	return UsageReport{
		Bytes:        s.store.UsageBytes(ctx),
		Percent:      s.store.UsagePercent(ctx),
		CeilingBytes: s.store.Ceiling(),
		NearCapacity: s.store.NearCapacity(ctx),
	}
}

func (s *CatalogServiceImpl) warnOnPressure(ctx context.Context) {
	if s.store.NearCapacity(ctx) {
		s.logger.Warn("storage near capacity",
			zap.Int("usagePercent", s.store.UsagePercent(ctx)),
			zap.Int("ceilingBytes", s.store.Ceiling()),
		)
	}
}

// defaultProducts is the demo catalog seeded into a fresh installation.
func defaultProducts() []model.Product {
	return []model.Product{
		{
			ID: 1, Name: "Smart Watch", Price: 179.99, Category: "Electronics", Stock: 45,
			Image:       "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=400",
			Status:      model.ProductActive,
			Description: "High-quality smart watch with fitness tracking and notifications",
		},
		{
			ID: 2, Name: "Wireless Earbuds Pro", Price: 79.99, Category: "Audio", Stock: 120,
			Image:       "https://images.unsplash.com/photo-1590658268037-6bf12165a8df?w=400",
			Status:      model.ProductActive,
			Description: "Premium wireless earbuds with active noise cancellation",
		},
		{
			ID: 3, Name: "Gaming Laptop", Price: 999.99, Category: "Computers", Stock: 15,
			Image:       "https://images.unsplash.com/photo-1603302576837-37561b2e2302?w=400",
			Status:      model.ProductActive,
			Description: "Powerful gaming laptop with RTX graphics",
		},
		{
			ID: 4, Name: "Mechanical Keyboard", Price: 129.99, Category: "Accessories", Stock: 67,
			Image:       "https://images.unsplash.com/photo-1595225476474-87563907a212?w=400",
			Status:      model.ProductActive,
			Description: "RGB mechanical keyboard with customizable switches",
		},
		{
			ID: 5, Name: "Wireless Mouse", Price: 49.99, Category: "Accessories", Stock: 89,
			Image:       "https://images.unsplash.com/photo-1527864550417-7fd91fc51a46?w=400",
			Status:      model.ProductActive,
			Description: "Ergonomic wireless mouse with precision tracking",
		},
		{
			ID: 6, Name: "USB-C Hub", Price: 39.99, Category: "Accessories", Stock: 150,
			Image:       "https://images.unsplash.com/photo-1625948515291-69613efd103f?w=400",
			Status:      model.ProductActive,
			Description: "Multi-port USB-C hub with fast data transfer",
		},
	}
}
