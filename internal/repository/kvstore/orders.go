package kvstore

import (
	"context"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// Orders implements repository.OrderRepository.
type Orders struct {
	store *storage.Store
	clock clockwork.Clock
}

var _ repository.OrderRepository = (*Orders)(nil)

// NewOrders constructs an order repository over the store.
func NewOrders(store *storage.Store, clock clockwork.Clock) *Orders {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orders{store: store, clock: clock}
}

// List returns all stored orders.
func (r *Orders) List(ctx context.Context) ([]model.Order, error) {
	orders := []model.Order{}
	r.store.Load(ctx, storage.KeyOrders, &orders)
	return orders, nil
}

// Replace overwrites the whole collection.
func (r *Orders) Replace(ctx context.Context, orders []model.Order) error {
	return r.store.Save(ctx, storage.KeyOrders, orders)
}

// Get returns the order by id.
func (r *Orders) Get(ctx context.Context, id string) (model.Order, error) {
	orders, err := r.List(ctx)
	if err != nil {
		return model.Order{}, err
	}
	for _, o := range orders {
		if o.ID == id {
			return o, nil
		}
	}
	return model.Order{}, errs.ErrNotFound
}

// Add inserts a new order with generated id and tracking number, an initial
// placed timeline step, and a derived item count and amount.
func (r *Orders) Add(ctx context.Context, o model.Order) (model.Order, error) {
	orders, err := r.List(ctx)
	if err != nil {
		return model.Order{}, err
	}

	ref, err := uuid.NewV4()
	if err != nil {
		return model.Order{}, err
	}
	hexRef := strings.ToUpper(strings.ReplaceAll(ref.String(), "-", ""))
	now := r.clock.Now()

	o.ID = "ORD-" + hexRef[:8]
	o.TrackingNumber = "TRK" + hexRef[8:20]
	o.Status = model.OrderPlaced
	o.Date = now
	o.EstimatedDelivery = now.AddDate(0, 0, 5)
	o.CreatedAt = now
	o.UpdatedAt = now
	o.ItemCount = 0
	o.Amount = 0
	for _, line := range o.Lines {
		o.ItemCount += line.Quantity
		o.Amount += line.Price * float64(line.Quantity)
	}
	o.Timeline = []model.TimelineStep{{Status: model.OrderPlaced, Date: now, Completed: true}}

	orders = append(orders, o)
	if err := r.store.Save(ctx, storage.KeyOrders, orders); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// SetStatus advances an order's status and appends a completed timeline step.
func (r *Orders) SetStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error) {
	orders, err := r.List(ctx)
	if err != nil {
		return model.Order{}, err
	}
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		now := r.clock.Now()
		orders[i].Status = status
		orders[i].UpdatedAt = now
		orders[i].Timeline = append(orders[i].Timeline, model.TimelineStep{
			Status:    status,
			Date:      now,
			Completed: true,
		})
		if err := r.store.Save(ctx, storage.KeyOrders, orders); err != nil {
			return model.Order{}, err
		}
		return orders[i], nil
	}
	return model.Order{}, errs.ErrNotFound
}
