package service

import (
	"context"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/crypto"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
)

// Verifier checks a credential pair and yields the principal's role.
// Implementations stand in for a backend credential check; swap in a real
// one when this layer fronts an actual identity service.
type Verifier interface {
	// Verify returns the role for valid credentials or ErrInvalidCredentials.
	Verify(ctx context.Context, email, secret string) (model.Role, error)
}

const (
	adminEmail = "admin@admin.com"
	// SHA-256 of the demo admin secret; the plaintext never appears here.
	adminSecretDigest = "240be518fabd2724ddb6f04eeb1da5967448d7e831c08c8fa822809f74c720a9"

	minSecretLen = 6
)

// RuleSet is the demo verification strategy: the hardcoded admin pair yields
// the admin role, any other secret of sufficient length is accepted as a
// regular user. The secret is digested before comparison, mirroring what a
// client would send to a verification backend.
type RuleSet struct {
	hasher crypto.Hasher
}

var _ Verifier = RuleSet{}

// NewRuleSet constructs the demo verifier. A nil hasher falls back to SHA-256.
func NewRuleSet(hasher crypto.Hasher) RuleSet {
	if hasher == nil {
		hasher = crypto.SHA256Hasher{}
	}
	return RuleSet{hasher: hasher}
}

// Verify applies the rule set.
func (r RuleSet) Verify(_ context.Context, email, secret string) (model.Role, error) {
	digest, err := r.hasher.Hash(secret)
	if err != nil {
		return "", err
	}
	if email == adminEmail && digest == adminSecretDigest {
		return model.RoleAdmin, nil
	}
	if len(secret) >= minSecretLen {
		return model.RoleUser, nil
	}
	return "", errs.ErrInvalidCredentials
}
