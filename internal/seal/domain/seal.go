// Package domain defines the seal state machine models. The vault boots
// sealed: data-plane operations are gated until enough key shares have been
// submitted to reconstruct and verify the master key.
package domain

import (
	"time"
)

// State is the seal state of the vault.
type State string

// Seal states.
const (
	// StateSealed is the initial state; no data-plane operation may proceed.
	StateSealed State = "SEALED"
	// StateUnsealing means at least one valid share has been accepted but the
	// threshold has not been reached yet.
	StateUnsealing State = "UNSEALING"
	// StateUnsealed means the master key was reconstructed and verified.
	StateUnsealed State = "UNSEALED"
)

// Status is a consistent snapshot of the seal state machine.
type Status struct {
	// State is the current seal state.
	State State
	// TotalShares is the configured number of shares N.
	TotalShares int
	// Threshold is the number of shares M required to unseal.
	Threshold int
	// CollectedShares is the number of distinct shares submitted so far.
	CollectedShares int
	// UnsealedAt is the UTC time of the last successful unseal (nil if never).
	UnsealedAt *time.Time
}
