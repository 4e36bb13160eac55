package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	apperrors "github.com/allisson/vault/internal/errors"
)

// Named charsets accepted by GenerateRandomString. Any other value is treated
// as the literal allowed alphabet.
const (
	CharsetAlphanumeric   = "alphanumeric"
	CharsetAlpha          = "alpha"
	CharsetNumeric        = "numeric"
	CharsetHex            = "hex"
	CharsetASCIIPrintable = "ascii-printable"
)

const (
	alphaChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	numericChars = "0123456789"
	hexChars     = "0123456789abcdef"
)

// asciiPrintableChars covers codes 33..126 (printable, excluding space).
var asciiPrintableChars = buildASCIIPrintable()

func buildASCIIPrintable() string {
	b := make([]byte, 0, 94)
	for c := byte(33); c <= 126; c++ {
		b = append(b, c)
	}
	return string(b)
}

// resolveCharset maps a charset name to its alphabet, passing unknown values
// through as literal alphabets.
func resolveCharset(charset string) string {
	switch charset {
	case CharsetAlphanumeric:
		return alphaChars + numericChars
	case CharsetAlpha:
		return alphaChars
	case CharsetNumeric:
		return numericChars
	case CharsetHex:
		return hexChars
	case CharsetASCIIPrintable:
		return asciiPrintableChars
	default:
		return charset
	}
}

// GenerateRandomString draws length characters uniformly from the resolved
// alphabet using a cryptographic RNG.
func GenerateRandomString(length int, charset string) (string, error) {
	if length < 1 {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "length must be at least 1")
	}

	alphabet := resolveCharset(charset)
	if alphabet == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "charset must not be empty")
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random index: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}

	return string(out), nil
}

// GenerateDataKey returns a fresh 32-byte data-encryption key from a
// cryptographic RNG.
func GenerateDataKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}
	return key, nil
}
