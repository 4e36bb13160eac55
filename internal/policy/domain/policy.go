// Package domain defines the access-policy models. Policies carry a path
// pattern, an effect and a permission list; bindings attach them to users,
// teams or services. Evaluation is deny-overrides-allow with a default deny.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Effect is the outcome a policy contributes when it matches.
type Effect string

// Policy effects.
const (
	EffectAllow Effect = "ALLOW"
	EffectDeny  Effect = "DENY"
)

// BindingType identifies the kind of subject a binding targets.
type BindingType string

// Binding types.
const (
	BindingTypeUser    BindingType = "USER"
	BindingTypeTeam    BindingType = "TEAM"
	BindingTypeService BindingType = "SERVICE"
)

// Well-known permissions. Policies may carry arbitrary permission strings;
// these are the ones the HTTP surface asks for.
const (
	PermissionRead    = "read"
	PermissionWrite   = "write"
	PermissionList    = "list"
	PermissionDelete  = "delete"
	PermissionRotate  = "rotate"
	PermissionEncrypt = "encrypt"
	PermissionDecrypt = "decrypt"
)

// AccessPolicy grants or denies a permission set on a path pattern. A policy
// only participates in evaluation while it is active.
type AccessPolicy struct {
	ID          uuid.UUID
	TeamID      uuid.UUID
	Name        string
	Description *string
	// PathPattern uses "/"-separated segments where "*" matches exactly one
	// non-empty segment.
	PathPattern string
	Effect      Effect
	// Permissions this policy speaks for (e.g. "read", "write", "delete").
	Permissions     []string
	IsActive        bool
	CreatedByUserID uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasPermission reports whether the policy lists the permission.
func (p *AccessPolicy) HasPermission(permission string) bool {
	for _, candidate := range p.Permissions {
		if candidate == permission {
			return true
		}
	}
	return false
}

// PolicyBinding attaches a policy to a subject. (policy, type, target) is
// unique.
type PolicyBinding struct {
	ID          uuid.UUID
	PolicyID    uuid.UUID
	BindingType BindingType
	TargetID    uuid.UUID
	IsActive    bool
	CreatedAt   time.Time
}

// SubjectType classifies the caller being evaluated.
type SubjectType string

// Subject types.
const (
	SubjectTypeUser    SubjectType = "USER"
	SubjectTypeService SubjectType = "SERVICE"
)

// Subject is the caller an access decision is computed for.
type Subject struct {
	Type   SubjectType
	ID     uuid.UUID
	TeamID uuid.UUID
}

// BindingTarget is one (type, target) pair whose bindings feed the candidate
// set during evaluation.
type BindingTarget struct {
	Type     BindingType
	TargetID uuid.UUID
}

// Targets returns the binding targets whose policies apply to the subject:
// the subject itself plus its team.
func (s Subject) Targets() []BindingTarget {
	subjectType := BindingTypeUser
	if s.Type == SubjectTypeService {
		subjectType = BindingTypeService
	}
	return []BindingTarget{
		{Type: subjectType, TargetID: s.ID},
		{Type: BindingTypeTeam, TargetID: s.TeamID},
	}
}

// Decision is the result of an access evaluation. PolicyID and PolicyName are
// set when a specific policy decided; a default deny carries neither.
type Decision struct {
	Allowed    bool
	Reason     string
	PolicyID   *uuid.UUID
	PolicyName *string
}

// CreatePolicyInput carries the parameters for creating a policy.
type CreatePolicyInput struct {
	TeamID          uuid.UUID
	Name            string
	Description     *string
	PathPattern     string
	Effect          Effect
	Permissions     []string
	CreatedByUserID uuid.UUID
}

// UpdatePolicyInput carries partial updates; only non-nil fields change.
type UpdatePolicyInput struct {
	Name        *string
	Description *string
	PathPattern *string
	Effect      *Effect
	Permissions []string
	IsActive    *bool
}
