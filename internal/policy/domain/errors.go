package domain

import (
	"github.com/allisson/vault/internal/errors"
)

// Policy-specific error definitions.
var (
	// ErrPolicyNotFound indicates no policy exists with the given id.
	ErrPolicyNotFound = errors.Wrap(errors.ErrNotFound, "access policy not found")

	// ErrPolicyAlreadyExists indicates the (team, name) pair is taken.
	ErrPolicyAlreadyExists = errors.Wrap(errors.ErrConflict, "access policy already exists")

	// ErrBindingNotFound indicates no binding exists with the given id.
	ErrBindingNotFound = errors.Wrap(errors.ErrNotFound, "policy binding not found")

	// ErrBindingAlreadyExists indicates the (policy, type, target) triple is taken.
	ErrBindingAlreadyExists = errors.Wrap(errors.ErrConflict, "policy binding already exists")
)
