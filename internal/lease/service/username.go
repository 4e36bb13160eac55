// Package service contains stateless lease helpers: username generation and
// backend user provisioning.
package service

import (
	"strings"

	"github.com/google/uuid"
)

// maxUsernameLength is the identifier limit shared by PostgreSQL (63 bytes)
// and the generated MySQL usernames.
const maxUsernameLength = 63

// GenerateUsername builds "<prefix><sanitised(secretName)>_<shortUUID>",
// truncated to 63 characters. Runs of non-identifier characters collapse to a
// single underscore and the result is lowercase.
func GenerateUsername(prefix, secretName string) string {
	short := strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")[:8]
	username := prefix + Sanitise(secretName) + "_" + short
	if len(username) > maxUsernameLength {
		username = username[:maxUsernameLength]
	}
	return username
}

// Sanitise lowercases the input and replaces every run of characters outside
// [a-z0-9_] with a single underscore.
func Sanitise(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if valid {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return b.String()
}
