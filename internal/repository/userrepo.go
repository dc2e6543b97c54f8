// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
)

// UserRepository provides access to registered account records and their
// per-email security flags. Emails are expected normalized by the caller.
type UserRepository interface {
	// Create inserts a new user; ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByEmail loads a user; ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update overwrites an existing user; ErrNotFound when absent.
	Update(ctx context.Context, u *model.User) error

	// SetTwoFactor toggles the per-email two-factor flag.
	SetTwoFactor(ctx context.Context, email string, enabled bool) error
	// TwoFactorEnabled reads the per-email two-factor flag.
	TwoFactorEnabled(ctx context.Context, email string) (bool, error)

	// SetPendingCode stores the expected two-factor code for a pending login.
	SetPendingCode(ctx context.Context, email, code string) error
	// PendingCode returns the stored code; ErrNotFound when none is pending.
	PendingCode(ctx context.Context, email string) (string, error)
	// ClearPendingCode discards the stored code.
	ClearPendingCode(ctx context.Context, email string) error

	// ClearFlags removes per-email security flags (lockouts, pending codes).
	ClearFlags(ctx context.Context, email string) error
}
