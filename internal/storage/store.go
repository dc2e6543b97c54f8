package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/errs"
)

// Store defaults.
const (
	// DefaultNamespace prefixes every key the application owns.
	DefaultNamespace = "ecommerce_"
	// DefaultCeiling is the aggregate byte budget across all namespaced keys.
	DefaultCeiling = 5 * 1024 * 1024
	// nearCapacityPercent is the usage threshold for pressure warnings.
	nearCapacityPercent = 80
)

// Well-known collection keys within the namespace.
const (
	KeyProducts     = "products"
	KeyOrders       = "orders"
	KeySettings     = "settings"
	KeySession      = "authToken"
	KeyCurrentUser  = "user"
	KeyLoginHistory = "loginHistory"
	KeySecurityLogs = "securityLogs"
)

// Store persists named documents under a namespace with aggregate size
// accounting. Values are serialized to JSON and base64-wrapped at rest; the
// wrapping is reversible obfuscation, not encryption.
type Store struct {
	backend   Backend
	namespace string
	ceiling   int
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace overrides the key prefix.
func WithNamespace(ns string) Option { return func(s *Store) { s.namespace = ns } }

// WithCeiling overrides the aggregate byte budget.
func WithCeiling(bytes int) Option { return func(s *Store) { s.ceiling = bytes } }

// WithLogger attaches a logger for degradation warnings.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.logger = l } }

// New constructs a Store over the given backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		namespace: DefaultNamespace,
		ceiling:   DefaultCeiling,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ceiling returns the configured aggregate byte budget.
func (s *Store) Ceiling() int { return s.ceiling }

func (s *Store) key(k string) string { return s.namespace + k }

// Load deserializes the document stored under key into `into` and reports
// whether it was found. Backend failures and corrupt payloads degrade to
// not-found with a logged warning, so callers fall back to their defaults.
func (s *Store) Load(ctx context.Context, key string, into any) bool {
	raw, err := s.backend.Get(ctx, s.key(key))
	if err != nil {
		s.logger.Warn("storage unavailable, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	if raw == nil {
		return false
	}
	jsonData, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		s.logger.Warn("corrupt stored document, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(jsonData, into); err != nil {
		s.logger.Warn("corrupt stored document, using defaults", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Save serializes v and writes it under key, rejecting the write outright
// when the prospective namespace footprint would exceed the ceiling.
func (s *Store) Save(ctx context.Context, key string, v any) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonData)
	full := s.key(key)

	sizes, err := s.backend.Sizes(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	// Prospective footprint: current usage minus this key's share, plus the
	// new serialized size.
	prospective := s.usage(sizes) - s.entrySize(full, sizes[full]) + len(full) + len(encoded)
	if prospective > s.ceiling {
		s.logger.Warn("write rejected, storage quota exceeded",
			zap.String("key", key),
			zap.Int("prospectiveBytes", prospective),
			zap.Int("ceilingBytes", s.ceiling),
		)
		return fmt.Errorf("saving %s: %w", key, errs.ErrQuotaExceeded)
	}

	if err := s.backend.Set(ctx, full, []byte(encoded)); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	return nil
}

// Delete removes the document stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, s.key(key))
}

// Clear removes every key within the namespace.
func (s *Store) Clear(ctx context.Context) error {
	sizes, err := s.backend.Sizes(ctx)
	if err != nil {
		return err
	}
	for k := range sizes {
		if !strings.HasPrefix(k, s.namespace) {
			continue
		}
		if err := s.backend.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// UsageBytes sums key length plus value length over every namespaced key.
func (s *Store) UsageBytes(ctx context.Context) int {
	sizes, err := s.backend.Sizes(ctx)
	if err != nil {
		s.logger.Warn("storage unavailable, reporting zero usage", zap.Error(err))
		return 0
	}
	return s.usage(sizes)
}

// UsagePercent reports usage relative to the ceiling, rounded.
func (s *Store) UsagePercent(ctx context.Context) int {
	return int(math.Round(float64(s.UsageBytes(ctx)) / float64(s.ceiling) * 100))
}

// NearCapacity reports whether usage has crossed the pressure threshold.
func (s *Store) NearCapacity(ctx context.Context) bool {
	return s.UsagePercent(ctx) > nearCapacityPercent
}

// DocumentSize returns the footprint a value would occupy when stored under
// key, accounted the same way Save does.
func (s *Store) DocumentSize(key string, v any) (int, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", key, err)
	}
	return len(s.key(key)) + base64.StdEncoding.EncodedLen(len(jsonData)), nil
}

// KeyFootprint returns the current stored footprint of key, zero when absent.
func (s *Store) KeyFootprint(ctx context.Context, key string) int {
	sizes, err := s.backend.Sizes(ctx)
	if err != nil {
		return 0
	}
	full := s.key(key)
	return s.entrySize(full, sizes[full])
}

func (s *Store) usage(sizes map[string]int) int {
	total := 0
	for k, n := range sizes {
		total += s.entrySize(k, n)
	}
	return total
}

func (s *Store) entrySize(fullKey string, valueLen int) int {
	if !strings.HasPrefix(fullKey, s.namespace) {
		return 0
	}
	if valueLen == 0 {
		return 0
	}
	return len(fullKey) + valueLen
}
