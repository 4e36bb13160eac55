// Package domain contains the audit trail entities.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records one service operation, successful or failed.
type AuditEntry struct {
	ID            uuid.UUID  `json:"id"`
	TeamID        *uuid.UUID `json:"team_id"`
	UserID        *uuid.UUID `json:"user_id"`
	Operation     string     `json:"operation"`
	Path          *string    `json:"path"`
	ResourceType  *string    `json:"resource_type"`
	ResourceID    *string    `json:"resource_id"`
	Success       bool       `json:"success"`
	ErrorMessage  *string    `json:"error_message"`
	IPAddress     string     `json:"ip_address"`
	CorrelationID string     `json:"correlation_id"`
	Details       *string    `json:"details"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Record carries the caller-supplied part of an audit entry. IP address and
// correlation id come from the request context, identifiers and timestamps
// from the use case.
type Record struct {
	TeamID       *uuid.UUID
	UserID       *uuid.UUID
	Operation    string
	Path         *string
	ResourceType *string
	ResourceID   *string
	Success      bool
	ErrorMessage *string
	Details      *string
}

// QueryFilter narrows an audit query. At most one filter applies per query,
// picked in field order: resource (type and id together), then user, then
// operation, then path, then time range, then success flag.
type QueryFilter struct {
	ResourceType *string
	ResourceID   *string
	UserID       *uuid.UUID
	Operation    *string
	Path         *string
	From         *time.Time
	Until        *time.Time
	SuccessOnly  bool
}
