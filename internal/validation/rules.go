// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/vault/internal/errors"
)

var (
	// pathSegmentRegex constrains each secret path segment.
	pathSegmentRegex = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace.
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace.
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// SecretPath validates a "/"-separated secret path. A single leading slash is
// allowed, every segment must be non-empty and limited to letters, digits,
// "_", "." and "-".
var SecretPath = validation.NewStringRuleWithError(
	func(s string) bool {
		return isValidPath(s, false)
	},
	validation.NewError("validation_secret_path", "must be a valid /-separated path"),
)

// PathPattern validates a policy path pattern: a secret path whose segments
// may also be the "*" wildcard.
var PathPattern = validation.NewStringRuleWithError(
	func(s string) bool {
		return isValidPath(s, true)
	},
	validation.NewError("validation_path_pattern", "must be a valid /-separated path pattern"),
)

func isValidPath(s string, allowWildcard bool) bool {
	trimmed := strings.TrimPrefix(s, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return false
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "*" {
			if !allowWildcard {
				return false
			}
			continue
		}
		if !pathSegmentRegex.MatchString(segment) {
			return false
		}
	}
	return true
}
