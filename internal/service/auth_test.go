package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/audit"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/fingerprint"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/limiter"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/repository/kvstore"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/session"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

type authEnv struct {
	svc     *AuthServiceImpl
	store   *storage.Store
	clock   *clockwork.FakeClock
	trail   *audit.Log
	history *audit.History
	users   *kvstore.Users
	idle    chan struct{}
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()

	clock := clockwork.NewFakeClock()
	store := storage.New(storage.NewMemory())
	fp := fingerprint.Static{FP: model.Fingerprint{Host: "test", Hash: "cafe"}}
	trail := audit.NewLog(store, fp, clock, nil)
	history := audit.NewHistory(store, fp, clock)
	users := kvstore.NewUsers(store, clock)
	lim := limiter.NewMemory(limiter.DefaultWindow, limiter.DefaultMaxAttempts, clock)
	codec := session.NewCodec([]byte("test-sign-key"), clock)
	idle := make(chan struct{}, 1)

	svc := NewAuthService(users, store, lim, trail, history, fp, codec,
		WithClock(clock),
		WithIdleCallback(func() { idle <- struct{}{} }),
	)
	t.Cleanup(svc.Close)

	return &authEnv{
		svc: svc, store: store, clock: clock,
		trail: trail, history: history, users: users, idle: idle,
	}
}

func (e *authEnv) lastEvent(t *testing.T) model.AuditEvent {
	t.Helper()
	events := e.trail.Events(context.Background())
	if len(events) == 0 {
		t.Fatalf("audit trail is empty")
	}
	return events[len(events)-1]
}

func TestAuth_Login_AdminSuccess(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	res, err := env.svc.Login(ctx, "  Admin@Admin.COM ", "admin123", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.RequiresTwoFactor {
		t.Fatalf("unexpected two-factor challenge")
	}
	sess := res.Session
	if sess == nil || sess.Role != model.RoleAdmin || sess.Email != "admin@admin.com" {
		t.Fatalf("session: %+v", sess)
	}
	if sess.Name != "Admin User" {
		t.Fatalf("name=%q", sess.Name)
	}
	if len(sess.Token) != 64 {
		t.Fatalf("token length=%d, want 64 hex chars", len(sess.Token))
	}
	if want := env.clock.Now().Add(session.DefaultTTL); !sess.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt=%v, want %v", sess.ExpiresAt, want)
	}

	if ev := env.lastEvent(t); ev.Kind != audit.EventLoginSuccess {
		t.Fatalf("last event=%s, want %s", ev.Kind, audit.EventLoginSuccess)
	}
	if got, err := env.svc.CurrentSession(ctx); err != nil || got.Token != sess.Token {
		t.Fatalf("CurrentSession after login: %+v %v", got, err)
	}
	if !env.svc.SessionValid(ctx) {
		t.Fatalf("SessionValid=false right after login")
	}
	if n := env.history.RecentCount(ctx, "admin@admin.com", time.Hour); n != 1 {
		t.Fatalf("history count=%d, want 1", n)
	}
}

func TestAuth_Login_RegularUserByLength(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	res, err := env.svc.Login(context.Background(), "bob@example.com", "longenough", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Session.Role != model.RoleUser || res.Session.Name != "bob" {
		t.Fatalf("session: %+v", res.Session)
	}
}

func TestAuth_Login_InvalidEmail(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	for _, email := range []string{"not-an-email", "user@tempmail.com"} {
		if _, err := env.svc.Login(ctx, email, "whatever123", false); !errors.Is(err, errs.ErrInvalidEmail) {
			t.Fatalf("Login(%q): %v, want ErrInvalidEmail", email, err)
		}
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventLoginFailed {
		t.Fatalf("last event=%s, want %s", ev.Kind, audit.EventLoginFailed)
	}
}

func TestAuth_Login_ShortSecretRejected(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	if _, err := env.svc.Login(context.Background(), "bob@example.com", "tiny", false); !errors.Is(err, errs.ErrInvalidCredentials) {
		t.Fatalf("Login: %v, want ErrInvalidCredentials", err)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventLoginFailed {
		t.Fatalf("last event=%s", ev.Kind)
	}
}

func TestAuth_Login_RateLimited(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	for i := 0; i < limiter.DefaultMaxAttempts; i++ {
		if _, err := env.svc.Login(ctx, "bob@example.com", "tiny", false); !errors.Is(err, errs.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	_, err := env.svc.Login(ctx, "bob@example.com", "tiny", false)
	var rl *errs.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("attempt %d: %v, want RateLimitError", limiter.DefaultMaxAttempts+1, err)
	}
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("RateLimitError does not match ErrRateLimited")
	}
	if m := rl.RemainingMinutes(); m < 1 || m > 15 {
		t.Fatalf("RemainingMinutes=%d", m)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventRateLimitExceeded {
		t.Fatalf("last event=%s", ev.Kind)
	}

	// Correct credentials are also locked out during the cooldown.
	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("correct-secret login during cooldown: %v", err)
	}

	// The window slides: once it passes, attempts flow again.
	env.clock.Advance(limiter.DefaultWindow)
	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); err != nil {
		t.Fatalf("login after window: %v", err)
	}
}

func TestAuth_Login_SuccessResetsLimiter(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	for i := 0; i < limiter.DefaultMaxAttempts-1; i++ {
		_, _ = env.svc.Login(ctx, "bob@example.com", "tiny", false)
	}
	res, err := env.svc.Login(ctx, "bob@example.com", "longenough", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AttemptsLeft != 0 {
		t.Fatalf("AttemptsLeft=%d on the last budgeted attempt", res.AttemptsLeft)
	}

	// The successful login cleared the ledger; the budget is full again.
	res, err = env.svc.Login(ctx, "bob@example.com", "longenough", false)
	if err != nil {
		t.Fatalf("Login after reset: %v", err)
	}
	if res.AttemptsLeft != limiter.DefaultMaxAttempts-1 {
		t.Fatalf("AttemptsLeft=%d, want %d", res.AttemptsLeft, limiter.DefaultMaxAttempts-1)
	}
}

func TestAuth_Login_SuspiciousActivity(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	for i := 0; i < DefaultSuspiciousMax+1; i++ {
		if err := env.history.Record(ctx, "bob@example.com"); err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	_, err := env.svc.Login(ctx, "bob@example.com", "longenough", false)
	var susp *errs.SuspiciousActivityError
	if !errors.As(err, &susp) {
		t.Fatalf("Login: %v, want SuspiciousActivityError", err)
	}
	if !errors.Is(err, errs.ErrSuspiciousActivity) {
		t.Fatalf("does not match ErrSuspiciousActivity")
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventSuspiciousActivity {
		t.Fatalf("last event=%s", ev.Kind)
	}

	// Clearing the flags makes login possible again.
	if err := env.svc.ClearSecurityFlags(ctx, "bob@example.com"); err != nil {
		t.Fatalf("ClearSecurityFlags: %v", err)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventSecurityFlagsClear {
		t.Fatalf("last event=%s", ev.Kind)
	}
	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); err != nil {
		t.Fatalf("Login after clear: %v", err)
	}
}

func TestAuth_SessionExpiry(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	env.svc.Close() // keep the idle watcher out of this test

	env.clock.Advance(session.DefaultTTL - time.Minute)
	if !env.svc.SessionValid(ctx) {
		t.Fatalf("session invalid before TTL")
	}

	env.clock.Advance(2 * time.Minute)
	if env.svc.SessionValid(ctx) {
		t.Fatalf("session valid past TTL")
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventSessionExpired {
		t.Fatalf("last event=%s, want %s", ev.Kind, audit.EventSessionExpired)
	}
	// The expired record was cleared.
	if _, err := env.svc.CurrentSession(ctx); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("CurrentSession after expiry: %v", err)
	}
}

func TestAuth_PersistentSessionOutlivesDefaultTTL(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	res, err := env.svc.Login(ctx, "bob@example.com", "longenough", true)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	env.svc.Close()

	if want := env.clock.Now().Add(session.PersistentTTL); !res.Session.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt=%v, want %v", res.Session.ExpiresAt, want)
	}

	env.clock.Advance(29 * 24 * time.Hour)
	if !env.svc.SessionValid(ctx) {
		t.Fatalf("persistent session invalid at day 29")
	}
	env.clock.Advance(2 * 24 * time.Hour)
	if env.svc.SessionValid(ctx) {
		t.Fatalf("persistent session valid at day 31")
	}
}

func TestAuth_IdleTimeout(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	env.clock.BlockUntil(1)
	env.clock.Advance(session.DefaultIdleTimeout)

	select {
	case <-env.idle:
	case <-time.After(2 * time.Second):
		t.Fatalf("idle callback not invoked")
	}

	if _, err := env.svc.CurrentSession(ctx); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("session survived idle timeout: %v", err)
	}
	found := false
	for _, ev := range env.trail.Events(ctx) {
		if ev.Kind == audit.EventSessionTimeout {
			found = true
		}
	}
	if !found {
		t.Fatalf("no %s event recorded", audit.EventSessionTimeout)
	}
}

func TestAuth_ActivityPostponesIdleTimeout(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	env.clock.BlockUntil(1)

	env.clock.Advance(session.DefaultIdleTimeout - 5*time.Minute)
	time.Sleep(50 * time.Millisecond)
	env.svc.Activity()
	time.Sleep(50 * time.Millisecond)

	// 25 more minutes: beyond the original deadline, within the rearmed one.
	env.clock.Advance(session.DefaultIdleTimeout - 5*time.Minute)
	select {
	case <-env.idle:
		t.Fatalf("idle fired despite activity")
	case <-time.After(100 * time.Millisecond):
	}
	if !env.svc.SessionValid(ctx) {
		t.Fatalf("session gone before the rearmed deadline")
	}

	env.clock.Advance(5 * time.Minute)
	select {
	case <-env.idle:
	case <-time.After(2 * time.Second):
		t.Fatalf("idle did not fire after the rearmed deadline")
	}
}

func TestAuth_Logout(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.svc.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if env.svc.SessionValid(ctx) {
		t.Fatalf("session survived logout")
	}
	found := false
	for _, ev := range env.trail.Events(ctx) {
		if ev.Kind == audit.EventLogout && ev.Details["email"] == "bob@example.com" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no logout event with email recorded")
	}

	// Logging out with no session is not an error.
	if err := env.svc.Logout(ctx); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestAuth_RestoreSession(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	if _, err := env.svc.RestoreSession(ctx); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("RestoreSession with nothing stored: %v", err)
	}

	res, err := env.svc.Login(ctx, "bob@example.com", "longenough", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	got, err := env.svc.RestoreSession(ctx)
	if err != nil {
		t.Fatalf("RestoreSession: %v", err)
	}
	if got.Token != res.Session.Token {
		t.Fatalf("restored a different session")
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventSessionRestored {
		t.Fatalf("last event=%s", ev.Kind)
	}
}

func TestAuth_TwoFactorFlow(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	// Enable the flag from an authenticated session, then start over.
	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.svc.SetTwoFactorEnabled(ctx, true); err != nil {
		t.Fatalf("SetTwoFactorEnabled: %v", err)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventTwoFactorEnabled {
		t.Fatalf("last event=%s", ev.Kind)
	}
	if err := env.svc.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	res, err := env.svc.Login(ctx, "bob@example.com", "longenough", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.RequiresTwoFactor || res.Session != nil {
		t.Fatalf("result: %+v, want pending two-factor with no session", res)
	}
	if len(res.TwoFactorCode) != 6 {
		t.Fatalf("code=%q, want 6 digits", res.TwoFactorCode)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventTwoFactorPending {
		t.Fatalf("last event=%s", ev.Kind)
	}
	if _, err := env.svc.CurrentSession(ctx); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("session committed before the code check: %v", err)
	}

	wrong := "000000"
	if wrong == res.TwoFactorCode {
		wrong = "000001"
	}
	if _, err := env.svc.VerifyTwoFactor(ctx, wrong); !errors.Is(err, errs.ErrInvalidCode) {
		t.Fatalf("VerifyTwoFactor wrong code: %v", err)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventTwoFactorFailed {
		t.Fatalf("last event=%s", ev.Kind)
	}

	sess, err := env.svc.VerifyTwoFactor(ctx, res.TwoFactorCode)
	if err != nil {
		t.Fatalf("VerifyTwoFactor: %v", err)
	}
	if sess.Email != "bob@example.com" {
		t.Fatalf("session: %+v", sess)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventTwoFactorSuccess {
		t.Fatalf("last event=%s", ev.Kind)
	}
	if !env.svc.SessionValid(ctx) {
		t.Fatalf("session not committed after the code check")
	}

	// The code is single-use.
	if _, err := env.svc.VerifyTwoFactor(ctx, res.TwoFactorCode); !errors.Is(err, errs.ErrNoPendingLogin) {
		t.Fatalf("VerifyTwoFactor reuse: %v", err)
	}
}

func TestAuth_TwoFactorAttemptCap(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Login(ctx, "bob@example.com", "longenough", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.svc.SetTwoFactorEnabled(ctx, true); err != nil {
		t.Fatalf("SetTwoFactorEnabled: %v", err)
	}
	_ = env.svc.Logout(ctx)

	res, err := env.svc.Login(ctx, "bob@example.com", "longenough", false)
	if err != nil || !res.RequiresTwoFactor {
		t.Fatalf("Login: %+v %v", res, err)
	}

	wrong := "000000"
	if wrong == res.TwoFactorCode {
		wrong = "000001"
	}
	for i := 0; i < DefaultTwoFactorAttempts; i++ {
		if _, err := env.svc.VerifyTwoFactor(ctx, wrong); !errors.Is(err, errs.ErrInvalidCode) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	// The pending login is gone; even the right code no longer completes it.
	if _, err := env.svc.VerifyTwoFactor(ctx, res.TwoFactorCode); !errors.Is(err, errs.ErrNoPendingLogin) {
		t.Fatalf("after cap: %v, want ErrNoPendingLogin", err)
	}
}

func TestAuth_VerifyTwoFactorWithoutPending(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	if _, err := env.svc.VerifyTwoFactor(context.Background(), "123456"); !errors.Is(err, errs.ErrNoPendingLogin) {
		t.Fatalf("VerifyTwoFactor: %v, want ErrNoPendingLogin", err)
	}
}

func TestAuth_Register(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	if err := env.svc.Register(ctx, "bad-email", "Bob", "G00d&Long#Secret"); !errors.Is(err, errs.ErrInvalidEmail) {
		t.Fatalf("Register bad email: %v", err)
	}
	if err := env.svc.Register(ctx, "bob@example.com", "Bob", "weak"); !errors.Is(err, errs.ErrWeakSecret) {
		t.Fatalf("Register weak secret: %v", err)
	}

	if err := env.svc.Register(ctx, "Bob@Example.com", " Bob ", "G00d&Long#Secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventRegistration {
		t.Fatalf("last event=%s", ev.Kind)
	}

	u, err := env.users.GetByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u.Name != "Bob" || u.Role != model.RoleUser || u.SecretHash == "" {
		t.Fatalf("stored user: %+v", u)
	}

	if err := env.svc.Register(ctx, "bob@example.com", "Bob", "G00d&Long#Secret"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("duplicate Register: %v", err)
	}
}

func TestAuth_ChangeSecret(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	if err := env.svc.ChangeSecret(ctx, "old", "G00d&Long#Secret"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("ChangeSecret without session: %v", err)
	}

	if err := env.svc.Register(ctx, "bob@example.com", "Bob", "G00d&Long#Secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := env.svc.Login(ctx, "bob@example.com", "G00d&Long#Secret", false); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := env.svc.ChangeSecret(ctx, "G00d&Long#Secret", "weak"); !errors.Is(err, errs.ErrWeakSecret) {
		t.Fatalf("weak new secret: %v", err)
	}
	if err := env.svc.ChangeSecret(ctx, "wrong-current", "An0ther&Long#One"); !errors.Is(err, errs.ErrIncorrectSecret) {
		t.Fatalf("wrong current secret: %v", err)
	}
	if err := env.svc.ChangeSecret(ctx, "G00d&Long#Secret", "An0ther&Long#One"); err != nil {
		t.Fatalf("ChangeSecret: %v", err)
	}
	if ev := env.lastEvent(t); ev.Kind != audit.EventPasswordChanged {
		t.Fatalf("last event=%s", ev.Kind)
	}

	// The stored hash rotated.
	u, _ := env.users.GetByEmail(ctx, "bob@example.com")
	if !env.svc.hasher.Compare("An0ther&Long#One", u.SecretHash) {
		t.Fatalf("stored hash does not match the new secret")
	}
}

func TestAuth_ChangeSecret_CreatesRecordForDemoAccount(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	ctx := context.Background()

	// The demo admin has no stored account record.
	if _, err := env.svc.Login(ctx, "admin@admin.com", "admin123", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := env.svc.ChangeSecret(ctx, "admin123", "An0ther&Long#One"); err != nil {
		t.Fatalf("ChangeSecret: %v", err)
	}
	u, err := env.users.GetByEmail(ctx, "admin@admin.com")
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if u.Role != model.RoleAdmin {
		t.Fatalf("role=%s", u.Role)
	}
}
