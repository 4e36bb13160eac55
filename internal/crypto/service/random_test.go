package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/vault/internal/errors"
)

func TestGenerateRandomString(t *testing.T) {
	t.Run("NamedCharsets", func(t *testing.T) {
		tests := []struct {
			charset  string
			alphabet string
		}{
			{CharsetAlphanumeric, alphaChars + numericChars},
			{CharsetAlpha, alphaChars},
			{CharsetNumeric, numericChars},
			{CharsetHex, hexChars},
			{CharsetASCIIPrintable, asciiPrintableChars},
		}

		for _, tt := range tests {
			t.Run(tt.charset, func(t *testing.T) {
				s, err := GenerateRandomString(64, tt.charset)
				require.NoError(t, err)
				assert.Len(t, s, 64)
				for _, r := range s {
					assert.Contains(t, tt.alphabet, string(r))
				}
			})
		}
	})

	t.Run("LiteralAlphabet", func(t *testing.T) {
		s, err := GenerateRandomString(100, "abc")
		require.NoError(t, err)
		assert.Len(t, s, 100)
		for _, r := range s {
			assert.Contains(t, "abc", string(r))
		}
	})

	t.Run("ZeroLength", func(t *testing.T) {
		_, err := GenerateRandomString(0, CharsetAlphanumeric)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("EmptyLiteralCharset", func(t *testing.T) {
		_, err := GenerateRandomString(10, "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("HexIsLowercase", func(t *testing.T) {
		s, err := GenerateRandomString(128, CharsetHex)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(s), s)
	})
}

func TestGenerateDataKey(t *testing.T) {
	first, err := GenerateDataKey()
	require.NoError(t, err)
	second, err := GenerateDataKey()
	require.NoError(t, err)

	assert.Len(t, first, 32)
	assert.Len(t, second, 32)
	assert.NotEqual(t, first, second)
}
