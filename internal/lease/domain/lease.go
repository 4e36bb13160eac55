// Package domain contains the dynamic database lease entities.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// LeaseStatus is the lifecycle state of a dynamic lease.
type LeaseStatus string

// Lease lifecycle states.
const (
	LeaseStatusActive  LeaseStatus = "ACTIVE"
	LeaseStatusExpired LeaseStatus = "EXPIRED"
	LeaseStatusRevoked LeaseStatus = "REVOKED"
)

// Backend types supported for credential provisioning.
const (
	BackendPostgreSQL = "postgresql"
	BackendMySQL      = "mysql"
)

// DynamicLease tracks one issued set of short-lived database credentials.
// EncryptedCredentials is the envelope holding the full credential map
// including the password; Metadata is the unencrypted annotation JSON and
// never contains the password.
type DynamicLease struct {
	ID                   string      `json:"id"`
	SecretID             uuid.UUID   `json:"secret_id"`
	SecretPath           string      `json:"secret_path"`
	BackendType          string      `json:"backend_type"`
	EncryptedCredentials string      `json:"-"`
	Status               LeaseStatus `json:"status"`
	TTLSeconds           int         `json:"ttl_seconds"`
	ExpiresAt            time.Time   `json:"expires_at"`
	RevokedAt            *time.Time  `json:"revoked_at"`
	RevokedByUserID      *uuid.UUID  `json:"revoked_by_user_id"`
	RequestedByUserID    uuid.UUID   `json:"requested_by_user_id"`
	Metadata             string      `json:"metadata"`
	CreatedAt            time.Time   `json:"created_at"`
}

// BackendConfig is the admin connection information parsed from the source
// secret's metadata.
type BackendConfig struct {
	BackendType   string
	Host          string
	Port          string
	Database      string
	AdminUser     string
	AdminPassword string
}

// Credentials is the plaintext credential set handed to the caller exactly
// once, at lease creation.
type Credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Host        string `json:"host"`
	Port        string `json:"port"`
	Database    string `json:"database"`
	BackendType string `json:"backend_type"`
}

// CreateLeaseInput carries the parameters for issuing a lease.
type CreateLeaseInput struct {
	TeamID            uuid.UUID
	Path              string
	TTLSeconds        int
	RequestedByUserID uuid.UUID
}

// CreateLeaseResult pairs the persisted lease with the one-time plaintext
// credentials.
type CreateLeaseResult struct {
	Lease       *DynamicLease
	Credentials *Credentials
}
