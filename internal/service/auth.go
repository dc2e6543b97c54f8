// Package service contains application services for authentication, catalog
// management and backup.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/audit"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/crypto"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/fingerprint"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/limiter"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/policy"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/session"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// Suspicious-activity heuristic defaults.
const (
	DefaultSuspiciousWindow = 24 * time.Hour
	DefaultSuspiciousMax    = 50
	// DefaultTwoFactorAttempts caps code checks per pending login.
	DefaultTwoFactorAttempts = 5

	tokenBytes      = 32
	twoFactorDigits = 6
)

// LoginResult is the outcome of a successful first-stage login.
type LoginResult struct {
	// RequiresTwoFactor is set when a code check must complete the login;
	// no session has been committed yet in that case.
	RequiresTwoFactor bool
	// Session is the committed session, nil while two-factor is pending.
	Session *model.Session
	// AttemptsLeft is the remaining rate-limit budget within the window.
	AttemptsLeft int
	// TwoFactorCode is the generated challenge, surfaced because no delivery
	// channel exists in this simulation.
	TwoFactorCode string
}

// AuthService owns login/logout/session lifecycle, rate limiting, the
// inactivity watcher and the audit trail.
type AuthService interface {
	// Login authenticates a principal; persistent extends the session lifetime.
	Login(ctx context.Context, email, secret string, persistent bool) (LoginResult, error)
	// VerifyTwoFactor completes a pending login with the expected code.
	VerifyTwoFactor(ctx context.Context, code string) (*model.Session, error)
	// Logout clears session state; safe to call with no active session.
	Logout(ctx context.Context) error
	// SessionValid reports whether a live session exists, clearing expired ones.
	SessionValid(ctx context.Context) bool
	// CurrentSession returns the active session or ErrNotFound.
	CurrentSession(ctx context.Context) (*model.Session, error)
	// RestoreSession revives a persisted session at startup.
	RestoreSession(ctx context.Context) (*model.Session, error)
	// Register creates an account after email and strength validation.
	Register(ctx context.Context, email, name, secret string) error
	// ChangeSecret rotates the stored secret for the active session's account.
	ChangeSecret(ctx context.Context, current, newSecret string) error
	// SetTwoFactorEnabled toggles the per-account two-factor flag.
	SetTwoFactorEnabled(ctx context.Context, enabled bool) error
	// ClearSecurityFlags drops the email's login history and limiter ledger.
	ClearSecurityFlags(ctx context.Context, email string) error
	// Activity signals user activity to the idle watcher.
	Activity()
	// Close tears down the idle watcher.
	Close()
}

// AuthConfig tunes session lifetimes and the security heuristics.
type AuthConfig struct {
	SessionTTL        time.Duration
	PersistentTTL     time.Duration
	IdleTimeout       time.Duration
	SuspiciousWindow  time.Duration
	SuspiciousMax     int
	TwoFactorAttempts int
}

func (c *AuthConfig) fillDefaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = session.DefaultTTL
	}
	if c.PersistentTTL <= 0 {
		c.PersistentTTL = session.PersistentTTL
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = session.DefaultIdleTimeout
	}
	if c.SuspiciousWindow <= 0 {
		c.SuspiciousWindow = DefaultSuspiciousWindow
	}
	if c.SuspiciousMax <= 0 {
		c.SuspiciousMax = DefaultSuspiciousMax
	}
	if c.TwoFactorAttempts <= 0 {
		c.TwoFactorAttempts = DefaultTwoFactorAttempts
	}
}

type pendingLogin struct {
	sess     model.Session
	attempts int
}

type AuthServiceImpl struct {
	users    repository.UserRepository
	store    *storage.Store
	lim      limiter.Limiter
	trail    *audit.Log
	history  *audit.History
	fp       fingerprint.Provider
	codec    *session.Codec
	verifier Verifier
	hasher   crypto.Hasher
	clock    clockwork.Clock
	logger   *zap.Logger
	cfg      AuthConfig
	onIdle   func()

	mu      sync.Mutex
	pending *pendingLogin
	watcher *session.Watcher
}

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthOption configures optional dependencies of the auth service.
type AuthOption func(*AuthServiceImpl)

// WithClock injects a clock, used by tests to advance virtual time.
func WithClock(clock clockwork.Clock) AuthOption {
	return func(s *AuthServiceImpl) { s.clock = clock }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) AuthOption {
	return func(s *AuthServiceImpl) { s.logger = l }
}

// WithVerifier swaps the credential verification strategy.
func WithVerifier(v Verifier) AuthOption {
	return func(s *AuthServiceImpl) { s.verifier = v }
}

// WithHasher swaps the secret hasher used for stored account records.
func WithHasher(h crypto.Hasher) AuthOption {
	return func(s *AuthServiceImpl) { s.hasher = h }
}

// WithConfig overrides heuristic tunables.
func WithConfig(cfg AuthConfig) AuthOption {
	return func(s *AuthServiceImpl) { s.cfg = cfg }
}

// WithIdleCallback registers a callback invoked after an inactivity logout.
func WithIdleCallback(fn func()) AuthOption {
	return func(s *AuthServiceImpl) { s.onIdle = fn }
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository,
	store *storage.Store,
	lim limiter.Limiter,
	trail *audit.Log,
	history *audit.History,
	fp fingerprint.Provider,
	codec *session.Codec,
	opts ...AuthOption,
) *AuthServiceImpl {
	s := &AuthServiceImpl{
		users:   users,
		store:   store,
		lim:     lim,
		trail:   trail,
		history: history,
		fp:      fp,
		codec:   codec,
		hasher:  crypto.SHA256Hasher{},
		clock:   clockwork.NewRealClock(),
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.verifier == nil {
		s.verifier = NewRuleSet(s.hasher)
	}
	s.cfg.fillDefaults()
	return s
}

// Login runs the precondition chain in order: identifier validation, rate
// limit, suspicious-activity heuristic, credential verification. Every path
// appends exactly one audit event describing the outcome.
func (s *AuthServiceImpl) Login(ctx context.Context, email, secret string, persistent bool) (LoginResult, error) {
	email = policy.NormalizeEmail(email)

	if err := policy.ValidateEmail(email); err != nil {
		s.trail.Record(ctx, audit.EventLoginFailed, map[string]string{
			"email": email, "reason": "invalid email",
		})
		return LoginResult{}, err
	}

	dec := s.lim.Allow(email)
	if !dec.Allowed {
		s.trail.Record(ctx, audit.EventRateLimitExceeded, map[string]string{"email": email})
		return LoginResult{}, &errs.RateLimitError{RetryAfter: dec.RetryAfter}
	}

	if n := s.history.RecentCount(ctx, email, s.cfg.SuspiciousWindow); n > s.cfg.SuspiciousMax {
		reason := "Unusual number of login attempts detected"
		s.trail.Record(ctx, audit.EventSuspiciousActivity, map[string]string{
			"email": email, "reason": reason,
		})
		return LoginResult{}, &errs.SuspiciousActivityError{Reason: reason}
	}

	role, err := s.verifier.Verify(ctx, email, secret)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			s.trail.Record(ctx, audit.EventLoginFailed, map[string]string{
				"email": email, "reason": "invalid credentials",
			})
			return LoginResult{}, errs.ErrInvalidCredentials
		}
		s.trail.Record(ctx, audit.EventLoginError, map[string]string{"error": err.Error()})
		return LoginResult{}, fmt.Errorf("verify credentials: %w", err)
	}

	sess, err := s.buildSession(email, role, persistent)
	if err != nil {
		s.trail.Record(ctx, audit.EventLoginError, map[string]string{"error": err.Error()})
		return LoginResult{}, err
	}

	enabled, err := s.users.TwoFactorEnabled(ctx, email)
	if err != nil {
		s.trail.Record(ctx, audit.EventLoginError, map[string]string{"error": err.Error()})
		return LoginResult{}, err
	}
	if enabled {
		code, err := crypto.NewNumericCode(twoFactorDigits)
		if err != nil {
			s.trail.Record(ctx, audit.EventLoginError, map[string]string{"error": err.Error()})
			return LoginResult{}, err
		}
		if err := s.users.SetPendingCode(ctx, email, code); err != nil {
			s.trail.Record(ctx, audit.EventLoginError, map[string]string{"error": err.Error()})
			return LoginResult{}, err
		}
		s.mu.Lock()
		s.pending = &pendingLogin{sess: sess}
		s.mu.Unlock()
		s.trail.Record(ctx, audit.EventTwoFactorPending, map[string]string{"email": email})
		return LoginResult{RequiresTwoFactor: true, AttemptsLeft: dec.AttemptsLeft, TwoFactorCode: code}, nil
	}

	if err := s.commitSession(ctx, sess); err != nil {
		s.trail.Record(ctx, audit.EventLoginError, map[string]string{"error": err.Error()})
		return LoginResult{}, err
	}
	s.trail.Record(ctx, audit.EventLoginSuccess, map[string]string{
		"email": email, "role": string(role),
	})
	return LoginResult{Session: &sess, AttemptsLeft: dec.AttemptsLeft}, nil
}

// VerifyTwoFactor completes a pending login. Checks are capped per pending
// login; exhausting the cap abandons it.
func (s *AuthServiceImpl) VerifyTwoFactor(ctx context.Context, code string) (*model.Session, error) {
	s.mu.Lock()
	p := s.pending
	if p == nil {
		s.mu.Unlock()
		return nil, errs.ErrNoPendingLogin
	}
	p.attempts++
	attempts := p.attempts
	email := p.sess.Email
	s.mu.Unlock()

	expected, err := s.users.PendingCode(ctx, email)
	if err != nil {
		return nil, errs.ErrNoPendingLogin
	}

	if code != expected {
		s.trail.Record(ctx, audit.EventTwoFactorFailed, map[string]string{"email": email})
		if attempts >= s.cfg.TwoFactorAttempts {
			s.abandonPending(ctx, email)
			return nil, fmt.Errorf("%w: attempt limit reached", errs.ErrInvalidCode)
		}
		return nil, errs.ErrInvalidCode
	}

	s.mu.Lock()
	sess := p.sess
	s.pending = nil
	s.mu.Unlock()
	if err := s.users.ClearPendingCode(ctx, email); err != nil {
		s.logger.Warn("pending code not cleared", zap.Error(err))
	}
	if err := s.commitSession(ctx, sess); err != nil {
		return nil, err
	}
	s.trail.Record(ctx, audit.EventTwoFactorSuccess, map[string]string{"email": email})
	return &sess, nil
}

func (s *AuthServiceImpl) abandonPending(ctx context.Context, email string) {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	if err := s.users.ClearPendingCode(ctx, email); err != nil {
		s.logger.Warn("pending code not cleared", zap.Error(err))
	}
}

func (s *AuthServiceImpl) buildSession(email string, role model.Role, persistent bool) (model.Session, error) {
	token, err := crypto.NewToken(tokenBytes)
	if err != nil {
		return model.Session{}, fmt.Errorf("issue token: %w", err)
	}
	name := strings.SplitN(email, "@", 2)[0]
	if role == model.RoleAdmin {
		name = "Admin User"
	}
	ttl := s.cfg.SessionTTL
	if persistent {
		ttl = s.cfg.PersistentTTL
	}
	now := s.clock.Now()
	return model.Session{
		Email:       email,
		Name:        name,
		Role:        role,
		Token:       token,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		Fingerprint: s.fp.Fingerprint(),
	}, nil
}

// commitSession persists the signed session and current-user record, resets
// the limiter ledger, appends login history and arms the idle watcher.
func (s *AuthServiceImpl) commitSession(ctx context.Context, sess model.Session) error {
	stored, err := s.codec.Encode(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.store.Save(ctx, storage.KeySession, stored); err != nil {
		return err
	}
	user := model.User{Email: sess.Email, Name: sess.Name, Role: sess.Role}
	if err := s.store.Save(ctx, storage.KeyCurrentUser, user); err != nil {
		return err
	}

	s.lim.Reset(sess.Email)
	if err := s.history.Record(ctx, sess.Email); err != nil {
		s.logger.Warn("login history not recorded", zap.Error(err))
	}

	s.rearmWatcher()
	return nil
}

// rearmWatcher replaces any active watcher so exactly one runs per session.
func (s *AuthServiceImpl) rearmWatcher() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.watcher = session.NewWatcher(s.cfg.IdleTimeout, s.clock, s.idleTimeout)
	s.watcher.Start()
}

// idleTimeout runs inside the watcher goroutine when the countdown fires.
func (s *AuthServiceImpl) idleTimeout() {
	ctx := context.Background()
	s.trail.Record(ctx, audit.EventSessionTimeout, nil)
	s.clearSession(ctx)
	if s.onIdle != nil {
		s.onIdle()
	}
}

// Activity signals user activity, postponing the inactivity logout.
func (s *AuthServiceImpl) Activity() {
	s.mu.Lock()
	w := s.watcher
	s.mu.Unlock()
	if w != nil {
		w.Activity()
	}
}

// Close tears down the idle watcher; call on shutdown.
func (s *AuthServiceImpl) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
}

// Logout clears session state and the watcher. Idempotent.
func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	details := map[string]string{}
	if sess, err := s.CurrentSession(ctx); err == nil {
		details["email"] = sess.Email
	}
	s.trail.Record(ctx, audit.EventLogout, details)

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	s.clearSession(ctx)
	s.Close()
	return nil
}

func (s *AuthServiceImpl) clearSession(ctx context.Context) {
	if err := s.store.Delete(ctx, storage.KeySession); err != nil {
		s.logger.Warn("session record not removed", zap.Error(err))
	}
	if err := s.store.Delete(ctx, storage.KeyCurrentUser); err != nil {
		s.logger.Warn("current user record not removed", zap.Error(err))
	}
}

// CurrentSession returns the persisted session when it is still valid.
func (s *AuthServiceImpl) CurrentSession(ctx context.Context) (*model.Session, error) {
	var stored string
	if !s.store.Load(ctx, storage.KeySession, &stored) {
		return nil, errs.ErrNotFound
	}
	sess, err := s.codec.Decode(stored)
	if err != nil {
		return nil, errs.ErrNotFound
	}
	if !sess.Valid(s.clock.Now()) {
		return nil, errs.ErrNotFound
	}
	return sess, nil
}

// SessionValid reports whether a live session exists. Discovering an expired
// or tampered record clears it as a side effect.
func (s *AuthServiceImpl) SessionValid(ctx context.Context) bool {
	var stored string
	if !s.store.Load(ctx, storage.KeySession, &stored) {
		return false
	}
	sess, err := s.codec.Decode(stored)
	if err != nil || !sess.Valid(s.clock.Now()) {
		s.trail.Record(ctx, audit.EventSessionExpired, nil)
		s.clearSession(ctx)
		return false
	}
	return true
}

// RestoreSession revives a persisted session at startup, rearming the idle
// watcher and recording the restoration.
func (s *AuthServiceImpl) RestoreSession(ctx context.Context) (*model.Session, error) {
	sess, err := s.CurrentSession(ctx)
	if err != nil {
		// Clean up whatever invalid record may remain.
		s.SessionValid(ctx)
		return nil, err
	}
	s.rearmWatcher()
	s.trail.Record(ctx, audit.EventSessionRestored, map[string]string{"email": sess.Email})
	return sess, nil
}

// Register creates an account after email and strength validation.
func (s *AuthServiceImpl) Register(ctx context.Context, email, name, secret string) error {
	email = policy.NormalizeEmail(email)
	if err := policy.ValidateEmail(email); err != nil {
		s.trail.Record(ctx, audit.EventRegistrationError, map[string]string{
			"email": email, "reason": "invalid email",
		})
		return err
	}
	if err := policy.RequireStrong(secret); err != nil {
		s.trail.Record(ctx, audit.EventRegistrationError, map[string]string{
			"email": email, "reason": "weak secret",
		})
		return err
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		s.trail.Record(ctx, audit.EventRegistrationError, map[string]string{"error": err.Error()})
		return fmt.Errorf("hash secret: %w", err)
	}
	u := &model.User{
		Email:      email,
		Name:       strings.TrimSpace(name),
		Role:       model.RoleUser,
		SecretHash: hash,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			s.trail.Record(ctx, audit.EventRegistrationError, map[string]string{
				"email": email, "reason": "already exists",
			})
			return errs.ErrAlreadyExists
		}
		s.trail.Record(ctx, audit.EventRegistrationError, map[string]string{"error": err.Error()})
		return err
	}
	s.trail.Record(ctx, audit.EventRegistration, map[string]string{"email": email})
	return nil
}

// ChangeSecret rotates the stored secret for the active session's account.
// The new secret must pass the strength policy; the current one must match
// the stored hash when an account record exists.
func (s *AuthServiceImpl) ChangeSecret(ctx context.Context, current, newSecret string) error {
	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return errs.ErrNotFound
	}
	if err := policy.RequireStrong(newSecret); err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, sess.Email)
	switch {
	case err == nil:
		if !s.hasher.Compare(current, u.SecretHash) {
			return errs.ErrIncorrectSecret
		}
		hash, err := s.hasher.Hash(newSecret)
		if err != nil {
			return fmt.Errorf("hash secret: %w", err)
		}
		u.SecretHash = hash
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
	case errors.Is(err, errs.ErrNotFound):
		// Demo accounts have no stored record yet; create one.
		hash, err := s.hasher.Hash(newSecret)
		if err != nil {
			return fmt.Errorf("hash secret: %w", err)
		}
		u := &model.User{
			Email:      sess.Email,
			Name:       sess.Name,
			Role:       sess.Role,
			SecretHash: hash,
			CreatedAt:  s.clock.Now(),
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
	default:
		return err
	}

	s.trail.Record(ctx, audit.EventPasswordChanged, map[string]string{"email": sess.Email})
	return nil
}

// SetTwoFactorEnabled toggles the per-account two-factor flag.
func (s *AuthServiceImpl) SetTwoFactorEnabled(ctx context.Context, enabled bool) error {
	sess, err := s.CurrentSession(ctx)
	if err != nil {
		return errs.ErrNotFound
	}
	if err := s.users.SetTwoFactor(ctx, sess.Email, enabled); err != nil {
		return err
	}
	kind := audit.EventTwoFactorEnabled
	if !enabled {
		kind = audit.EventTwoFactorDisabled
	}
	s.trail.Record(ctx, kind, map[string]string{"email": sess.Email})
	return nil
}

// ClearSecurityFlags drops the email's login history, limiter ledger and
// per-email flags, countering false positives from the heuristics.
func (s *AuthServiceImpl) ClearSecurityFlags(ctx context.Context, email string) error {
	email = policy.NormalizeEmail(email)
	if err := s.history.ClearFor(ctx, email); err != nil {
		return err
	}
	s.lim.Reset(email)
	if err := s.users.ClearFlags(ctx, email); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.EventSecurityFlagsClear, map[string]string{"email": email})
	return nil
}
