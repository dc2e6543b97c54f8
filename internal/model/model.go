// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is an authorization level attached to a user and its sessions.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ProductStatus marks whether a product is visible in the storefront.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

// OrderStatus is a stage in the order fulfilment pipeline.
type OrderStatus string

const (
	OrderPlaced     OrderStatus = "placed"
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// User is a registered account record. The secret hash is a simulation
// artifact, not a server-side credential store.
type User struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	SecretHash string    `json:"secretHash"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Session is a time-bounded authenticated context identified by a bearer token.
type Session struct {
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	Token       string      `json:"token"`
	IssuedAt    time.Time   `json:"issuedAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	Fingerprint Fingerprint `json:"fingerprint"`
}

// Valid reports whether the session has not yet expired at the given instant.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// IsAdmin reports whether the session carries the admin role.
func (s *Session) IsAdmin() bool { return s != nil && s.Role == RoleAdmin }

// Fingerprint is a derived, non-unique descriptor of the running environment,
// used for audit context only, never for identity.
type Fingerprint struct {
	Host     string `json:"host"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Language string `json:"language"`
	Timezone string `json:"timezone"`
	NumCPU   int    `json:"numCpu"`
	Hash     string `json:"hash"`
}

// Product is a catalog entry persisted in the products collection.
type Product struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Price       float64       `json:"price"`
	Category    string        `json:"category"`
	Stock       int           `json:"stock"`
	Image       string        `json:"image"`
	Images      []string      `json:"images"`
	Status      ProductStatus `json:"status"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// OrderLine is a single purchased position within an order.
type OrderLine struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// TimelineStep records one fulfilment transition of an order.
type TimelineStep struct {
	Status    OrderStatus `json:"status"`
	Date      time.Time   `json:"date"`
	Completed bool        `json:"completed"`
}

// Order is a purchase record persisted in the orders collection.
type Order struct {
	ID                string         `json:"id"`
	Customer          string         `json:"customer"`
	Email             string         `json:"email"`
	Lines             []OrderLine    `json:"products"`
	ItemCount         int            `json:"items"`
	Amount            float64        `json:"amount"`
	Status            OrderStatus    `json:"status"`
	Timeline          []TimelineStep `json:"timeline"`
	EstimatedDelivery time.Time      `json:"estimatedDelivery"`
	TrackingNumber    string         `json:"trackingNumber"`
	Date              time.Time      `json:"date"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Settings holds user-facing storefront preferences.
type Settings struct {
	EmailNotifications bool   `json:"emailNotifications"`
	PushNotifications  bool   `json:"pushNotifications"`
	OrderUpdates       bool   `json:"orderUpdates"`
	Promotions         bool   `json:"promotions"`
	Newsletter         bool   `json:"newsletter"`
	TwoFactor          bool   `json:"twoFactor"`
	Language           string `json:"language"`
}

// DefaultSettings returns the preferences applied to a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		EmailNotifications: true,
		OrderUpdates:       true,
		Promotions:         true,
		Language:           "en",
	}
}

// AuditEvent is an immutable record of a security-relevant action.
type AuditEvent struct {
	ID          uuid.UUID         `json:"id"`
	Kind        string            `json:"event"`
	Details     map[string]string `json:"details"`
	Timestamp   time.Time         `json:"timestamp"`
	Fingerprint Fingerprint       `json:"deviceFingerprint"`
}

// LoginRecord is one entry of the capped per-installation login history.
type LoginRecord struct {
	Email       string      `json:"email"`
	Timestamp   time.Time   `json:"timestamp"`
	Fingerprint Fingerprint `json:"deviceFingerprint"`
}

// Snapshot bundles all collections for user-initiated backup and restore.
type Snapshot struct {
	Version    string    `json:"version"`
	ExportDate time.Time `json:"exportDate"`
	Products   []Product `json:"products"`
	Orders     []Order   `json:"orders"`
	Settings   Settings  `json:"settings"`
}
