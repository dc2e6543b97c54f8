package kvstore

import (
	"context"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// Settings implements repository.SettingsRepository.
type Settings struct {
	store *storage.Store
}

var _ repository.SettingsRepository = (*Settings)(nil)

// NewSettings constructs a settings repository over the store.
func NewSettings(store *storage.Store) *Settings {
	return &Settings{store: store}
}

// Get returns stored settings, falling back to the defaults.
func (r *Settings) Get(ctx context.Context) (model.Settings, error) {
	s := model.DefaultSettings()
	r.store.Load(ctx, storage.KeySettings, &s)
	return s, nil
}

// Save overwrites the settings document.
func (r *Settings) Save(ctx context.Context, s model.Settings) error {
	return r.store.Save(ctx, storage.KeySettings, s)
}
