// Package service implements the path pattern matcher used by policy
// evaluation.
package service

import (
	"strings"
)

// MatchPath reports whether a policy pattern matches a request path.
//
// Patterns and paths are compared segment by segment after splitting on "/".
// A "*" segment matches exactly one non-empty path segment and never crosses
// a "/". The segment counts must be equal; a single trailing slash on either
// side is normalised away. Empty pattern or path never matches.
func MatchPath(pattern, path string) bool {
	if pattern == "" || path == "" {
		return false
	}

	patternSegments := strings.Split(trimTrailingSlash(pattern), "/")
	pathSegments := strings.Split(trimTrailingSlash(path), "/")
	if len(patternSegments) != len(pathSegments) {
		return false
	}

	for i, segment := range patternSegments {
		if segment == "*" {
			if pathSegments[i] == "" {
				return false
			}
			continue
		}
		if segment != pathSegments[i] {
			return false
		}
	}
	return true
}

func trimTrailingSlash(s string) string {
	if len(s) > 1 && strings.HasSuffix(s, "/") {
		return s[:len(s)-1]
	}
	return s
}
