// Package audit maintains the capped security event trail and login history.
package audit

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/fingerprint"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/storage"
)

// Event kinds recorded by the security layer.
const (
	EventLoginSuccess       = "LOGIN_SUCCESS"
	EventLoginFailed        = "LOGIN_FAILED"
	EventLoginError         = "LOGIN_ERROR"
	EventRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity = "SUSPICIOUS_ACTIVITY"
	EventSessionRestored    = "SESSION_RESTORED"
	EventSessionExpired     = "SESSION_EXPIRED"
	EventSessionTimeout     = "SESSION_TIMEOUT"
	EventLogout             = "LOGOUT"
	EventRegistration       = "REGISTRATION_SUCCESS"
	EventRegistrationError  = "REGISTRATION_ERROR"
	EventPasswordChanged    = "PASSWORD_CHANGED"
	EventTwoFactorPending   = "2FA_REQUIRED"
	EventTwoFactorEnabled   = "2FA_ENABLED"
	EventTwoFactorDisabled  = "2FA_DISABLED"
	EventTwoFactorSuccess   = "2FA_SUCCESS"
	EventTwoFactorFailed    = "2FA_FAILED"
	EventSecurityFlagsClear = "SECURITY_FLAGS_CLEARED"
)

// Capacity bounds: the trail keeps the most recent entries, oldest evicted first.
const (
	LogCap     = 100
	HistoryCap = 50
)

// Log is the append-only security event trail persisted under the
// security-logs key.
type Log struct {
	store  *storage.Store
	fp     fingerprint.Provider
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewLog constructs the audit trail. Nil clock falls back to the real clock.
func NewLog(store *storage.Store, fp fingerprint.Provider, clock clockwork.Clock, logger *zap.Logger) *Log {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{store: store, fp: fp, clock: clock, logger: logger}
}

// Record appends one event, evicting from the front past capacity. Append is
// best-effort: a failed write must never abort the security operation that
// produced the event.
func (l *Log) Record(ctx context.Context, kind string, details map[string]string) {
	var events []model.AuditEvent
	l.store.Load(ctx, storage.KeySecurityLogs, &events)

	id, err := uuid.NewV4()
	if err != nil {
		l.logger.Warn("audit event id generation failed", zap.Error(err))
		return
	}
	events = append(events, model.AuditEvent{
		ID:          id,
		Kind:        kind,
		Details:     details,
		Timestamp:   l.clock.Now(),
		Fingerprint: l.fp.Fingerprint(),
	})
	if len(events) > LogCap {
		events = events[len(events)-LogCap:]
	}
	if err := l.store.Save(ctx, storage.KeySecurityLogs, events); err != nil {
		l.logger.Warn("audit event not persisted", zap.String("event", kind), zap.Error(err))
	}
}

// Events returns the retained trail, oldest first.
func (l *Log) Events(ctx context.Context) []model.AuditEvent {
	var events []model.AuditEvent
	l.store.Load(ctx, storage.KeySecurityLogs, &events)
	return events
}

// History is the capped list of successful logins persisted under the
// login-history key. It feeds the suspicious-activity heuristic.
type History struct {
	store *storage.Store
	fp    fingerprint.Provider
	clock clockwork.Clock
}

// NewHistory constructs the login history.
func NewHistory(store *storage.Store, fp fingerprint.Provider, clock clockwork.Clock) *History {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &History{store: store, fp: fp, clock: clock}
}

// Record appends one login for the email, keeping the most recent entries.
func (h *History) Record(ctx context.Context, email string) error {
	var records []model.LoginRecord
	h.store.Load(ctx, storage.KeyLoginHistory, &records)

	records = append(records, model.LoginRecord{
		Email:       email,
		Timestamp:   h.clock.Now(),
		Fingerprint: h.fp.Fingerprint(),
	})
	if len(records) > HistoryCap {
		records = records[len(records)-HistoryCap:]
	}
	return h.store.Save(ctx, storage.KeyLoginHistory, records)
}

// RecentCount reports logins for the email within the trailing window.
func (h *History) RecentCount(ctx context.Context, email string, window time.Duration) int {
	var records []model.LoginRecord
	h.store.Load(ctx, storage.KeyLoginHistory, &records)

	now := h.clock.Now()
	count := 0
	for _, r := range records {
		if r.Email == email && now.Sub(r.Timestamp) < window {
			count++
		}
	}
	return count
}

// ClearFor drops the email's entries, used when clearing security flags.
func (h *History) ClearFor(ctx context.Context, email string) error {
	var records []model.LoginRecord
	if !h.store.Load(ctx, storage.KeyLoginHistory, &records) {
		return nil
	}
	kept := records[:0]
	for _, r := range records {
		if r.Email != email {
			kept = append(kept, r)
		}
	}
	return h.store.Save(ctx, storage.KeyLoginHistory, kept)
}

// Records returns the retained history, oldest first.
func (h *History) Records(ctx context.Context) []model.LoginRecord {
	var records []model.LoginRecord
	h.store.Load(ctx, storage.KeyLoginHistory, &records)
	return records
}
