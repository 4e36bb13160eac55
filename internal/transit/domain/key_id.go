package domain

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/allisson/vault/internal/errors"
)

// FormatKeyID renders the key id embedded in envelopes: "<name>:v<N>".
func FormatKeyID(name string, version uint) string {
	return fmt.Sprintf("%s:v%d", name, version)
}

// ParseKeyID splits a "<name>:v<N>" key id into its parts. Any shape
// violation is a malformed envelope.
func ParseKeyID(keyID string) (string, uint, error) {
	idx := strings.LastIndex(keyID, ":v")
	if idx <= 0 {
		return "", 0, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "key id has no version suffix")
	}

	name := keyID[:idx]
	version, err := strconv.ParseUint(keyID[idx+2:], 10, 32)
	if err != nil || version == 0 {
		return "", 0, apperrors.Wrap(apperrors.ErrMalformedEnvelope, "key id has an invalid version")
	}

	return name, uint(version), nil
}
