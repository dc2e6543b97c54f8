package kvstore

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// Products implements repository.ProductRepository.
type Products struct {
	store *storage.Store
	clock clockwork.Clock
}

var _ repository.ProductRepository = (*Products)(nil)

// NewProducts constructs a product repository over the store.
func NewProducts(store *storage.Store, clock clockwork.Clock) *Products {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Products{store: store, clock: clock}
}

// List returns all stored products, backfilling timestamps on legacy records.
func (r *Products) List(ctx context.Context) ([]model.Product, error) {
	products := []model.Product{}
	r.store.Load(ctx, storage.KeyProducts, &products)
	now := r.clock.Now()
	for i := range products {
		if products[i].CreatedAt.IsZero() {
			products[i].CreatedAt = now
		}
		if products[i].UpdatedAt.IsZero() {
			products[i].UpdatedAt = now
		}
	}
	return products, nil
}

// Replace overwrites the whole collection, refreshing every updated timestamp
// and filling missing created timestamps.
func (r *Products) Replace(ctx context.Context, products []model.Product) error {
	now := r.clock.Now()
	for i := range products {
		products[i].UpdatedAt = now
		if products[i].CreatedAt.IsZero() {
			products[i].CreatedAt = now
		}
	}
	return r.store.Save(ctx, storage.KeyProducts, products)
}

// Add inserts a product under a fresh identifier. Identifiers grow
// monotonically from the current maximum and are never reused after deletes.
func (r *Products) Add(ctx context.Context, p model.Product) (model.Product, error) {
	products, err := r.List(ctx)
	if err != nil {
		return model.Product{}, err
	}
	maxID := 0
	for _, e := range products {
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	now := r.clock.Now()
	p.ID = maxID + 1
	p.CreatedAt = now
	p.UpdatedAt = now
	products = append(products, p)
	if err := r.store.Save(ctx, storage.KeyProducts, products); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// Update overwrites the product matching p.ID, preserving its created
// timestamp and refreshing the updated one.
func (r *Products) Update(ctx context.Context, p model.Product) (model.Product, error) {
	products, err := r.List(ctx)
	if err != nil {
		return model.Product{}, err
	}
	for i := range products {
		if products[i].ID != p.ID {
			continue
		}
		p.CreatedAt = products[i].CreatedAt
		p.UpdatedAt = r.clock.Now()
		products[i] = p
		if err := r.store.Save(ctx, storage.KeyProducts, products); err != nil {
			return model.Product{}, err
		}
		return p, nil
	}
	return model.Product{}, errs.ErrNotFound
}

// Delete removes the product by id.
func (r *Products) Delete(ctx context.Context, id int) error {
	products, err := r.List(ctx)
	if err != nil {
		return err
	}
	kept := products[:0]
	found := false
	for _, e := range products {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return errs.ErrNotFound
	}
	return r.store.Save(ctx, storage.KeyProducts, kept)
}
