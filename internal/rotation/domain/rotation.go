// Package domain contains the secret rotation entities.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Strategy selects how a rotation produces the new secret value.
type Strategy string

// Supported rotation strategies.
const (
	StrategyRandomGenerate Strategy = "RANDOM_GENERATE"
	StrategyExternalAPI    Strategy = "EXTERNAL_API"
	StrategyCustomScript   Strategy = "CUSTOM_SCRIPT"
)

// Defaults applied when a RANDOM_GENERATE policy leaves them unset.
const (
	DefaultRandomLength  = 32
	DefaultRandomCharset = "alphanumeric"
)

// RotationPolicy schedules automatic value rotation for one secret.
type RotationPolicy struct {
	ID                 uuid.UUID  `json:"id"`
	SecretID           uuid.UUID  `json:"secret_id"`
	Strategy           Strategy   `json:"strategy"`
	IntervalHours      int        `json:"interval_hours"`
	RandomLength       *int       `json:"random_length"`
	RandomCharset      *string    `json:"random_charset"`
	ExternalAPIURL     *string    `json:"external_api_url"`
	ExternalAPIHeaders *string    `json:"external_api_headers"`
	ScriptCommand      *string    `json:"script_command"`
	IsActive           bool       `json:"is_active"`
	FailureCount       int        `json:"failure_count"`
	MaxFailures        *int       `json:"max_failures"`
	LastRotatedAt      *time.Time `json:"last_rotated_at"`
	NextRotationAt     time.Time  `json:"next_rotation_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Interval returns the rotation interval as a duration.
func (p *RotationPolicy) Interval() time.Duration {
	return time.Duration(p.IntervalHours) * time.Hour
}

// RotationHistory is the append-only record of one rotation attempt.
type RotationHistory struct {
	ID                uuid.UUID  `json:"id"`
	SecretID          uuid.UUID  `json:"secret_id"`
	Path              string     `json:"path"`
	Strategy          Strategy   `json:"strategy"`
	PreviousVersion   uint       `json:"previous_version"`
	NewVersion        *uint      `json:"new_version"`
	Success           bool       `json:"success"`
	ErrorMessage      *string    `json:"error_message"`
	DurationMs        int64      `json:"duration_ms"`
	TriggeredByUserID *uuid.UUID `json:"triggered_by_user_id"`
	CreatedAt         time.Time  `json:"created_at"`
}

// CreateRotationPolicyInput carries the parameters for creating a policy.
type CreateRotationPolicyInput struct {
	SecretID           uuid.UUID
	Strategy           Strategy
	IntervalHours      int
	RandomLength       *int
	RandomCharset      *string
	ExternalAPIURL     *string
	ExternalAPIHeaders *string
	ScriptCommand      *string
	MaxFailures        *int
}

// UpdateRotationPolicyInput carries a partial policy update; only non-nil
// fields change.
type UpdateRotationPolicyInput struct {
	Strategy           *Strategy
	IntervalHours      *int
	RandomLength       *int
	RandomCharset      *string
	ExternalAPIURL     *string
	ExternalAPIHeaders *string
	ScriptCommand      *string
	MaxFailures        *int
	IsActive           *bool
}
