package service

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// SnapshotVersion tags exported backup documents.
const SnapshotVersion = "1.0.0"

// BackupService bundles all collections for user-initiated backup and restore.
type BackupService interface {
	// Export returns a snapshot of every collection.
	Export(ctx context.Context) (model.Snapshot, error)
	// Import restores a snapshot all-or-nothing: nothing is written when the
	// snapshot as a whole would exceed the storage ceiling.
	Import(ctx context.Context, snap model.Snapshot) error
}

type BackupServiceImpl struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	settings repository.SettingsRepository
	store    *storage.Store
	clock    clockwork.Clock
}

var _ BackupService = (*BackupServiceImpl)(nil)

// NewBackupService constructs BackupService with required dependencies.
func NewBackupService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	settings repository.SettingsRepository,
	store *storage.Store,
	clock clockwork.Clock,
) *BackupServiceImpl {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &BackupServiceImpl{
		products: products,
		orders:   orders,
		settings: settings,
		store:    store,
		clock:    clock,
	}
}

// Export returns a snapshot of every collection with a version tag and
// export timestamp.
func (s *BackupServiceImpl) Export(ctx context.Context) (model.Snapshot, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	orders, err := s.orders.List(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	return model.Snapshot{
		Version:    SnapshotVersion,
		ExportDate: s.clock.Now(),
		Products:   products,
		Orders:     orders,
		Settings:   settings,
	}, nil
}

// Import restores a snapshot. The aggregate footprint of all collection
// writes is checked against the ceiling up front, so a snapshot that does
// not fit is rejected before any collection is overwritten.
func (s *BackupServiceImpl) Import(ctx context.Context, snap model.Snapshot) error {
	docs := map[string]any{
		storage.KeyProducts: snap.Products,
		storage.KeyOrders:   snap.Orders,
		storage.KeySettings: snap.Settings,
	}

	// Stored size of each collection after the import, computed the same way
	// the store accounts for writes.
	incoming := 0
	for key, v := range docs {
		n, err := s.store.DocumentSize(key, v)
		if err != nil {
			return err
		}
		incoming += n
	}

	usage := s.store.UsageBytes(ctx)
	current := 0
	for key := range docs {
		current += s.store.KeyFootprint(ctx, key)
	}
	if usage-current+incoming > s.store.Ceiling() {
		return fmt.Errorf("importing snapshot: %w", errs.ErrQuotaExceeded)
	}

	if err := s.products.Replace(ctx, snap.Products); err != nil {
		return err
	}
	if err := s.orders.Replace(ctx, snap.Orders); err != nil {
		return err
	}
	return s.settings.Save(ctx, snap.Settings)
}
