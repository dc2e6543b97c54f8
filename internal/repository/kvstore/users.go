// Package kvstore implements the repository interfaces on the quota-aware
// key-value store as whole-document read-modify-write.
package kvstore

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// Per-email key prefixes within the store namespace.
const (
	userKeyPrefix    = "user_"
	twoFAKeyPrefix   = "2fa_"
	pendingKeyPrefix = "2fa_code_"
)

// Users implements repository.UserRepository.
type Users struct {
	store *storage.Store
	clock clockwork.Clock
}

var _ repository.UserRepository = (*Users)(nil)

// NewUsers constructs a user repository over the store.
func NewUsers(store *storage.Store, clock clockwork.Clock) *Users {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Users{store: store, clock: clock}
}

// Create inserts a new user record keyed by email.
func (r *Users) Create(ctx context.Context, u *model.User) error {
	var existing model.User
	if r.store.Load(ctx, userKeyPrefix+u.Email, &existing) {
		return errs.ErrAlreadyExists
	}
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.clock.Now()
	}
	return r.store.Save(ctx, userKeyPrefix+u.Email, cp)
}

// GetByEmail loads a user record.
func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if !r.store.Load(ctx, userKeyPrefix+email, &u) {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// Update overwrites an existing user record.
func (r *Users) Update(ctx context.Context, u *model.User) error {
	var existing model.User
	if !r.store.Load(ctx, userKeyPrefix+u.Email, &existing) {
		return errs.ErrNotFound
	}
	cp := *u
	cp.CreatedAt = existing.CreatedAt
	return r.store.Save(ctx, userKeyPrefix+u.Email, cp)
}

// SetTwoFactor toggles the per-email two-factor flag. Disabling removes the
// flag key entirely.
func (r *Users) SetTwoFactor(ctx context.Context, email string, enabled bool) error {
	if !enabled {
		return r.store.Delete(ctx, twoFAKeyPrefix+email)
	}
	return r.store.Save(ctx, twoFAKeyPrefix+email, true)
}

// TwoFactorEnabled reads the per-email two-factor flag.
func (r *Users) TwoFactorEnabled(ctx context.Context, email string) (bool, error) {
	var enabled bool
	r.store.Load(ctx, twoFAKeyPrefix+email, &enabled)
	return enabled, nil
}

// SetPendingCode stores the expected two-factor code for a pending login.
func (r *Users) SetPendingCode(ctx context.Context, email, code string) error {
	return r.store.Save(ctx, pendingKeyPrefix+email, code)
}

// PendingCode returns the stored code.
func (r *Users) PendingCode(ctx context.Context, email string) (string, error) {
	var code string
	if !r.store.Load(ctx, pendingKeyPrefix+email, &code) {
		return "", errs.ErrNotFound
	}
	return code, nil
}

// ClearPendingCode discards the stored code.
func (r *Users) ClearPendingCode(ctx context.Context, email string) error {
	return r.store.Delete(ctx, pendingKeyPrefix+email)
}

// ClearFlags removes per-email security flags.
func (r *Users) ClearFlags(ctx context.Context, email string) error {
	if err := r.store.Delete(ctx, pendingKeyPrefix+email); err != nil {
		return err
	}
	return r.store.Delete(ctx, "account_locked_"+email)
}
