// Package service implements Shamir's Secret Sharing over GF(2^8), the field
// arithmetic backing the seal/unseal protocol.
package service

import (
	"crypto/rand"
	"fmt"

	sealDomain "github.com/allisson/vault/internal/seal/domain"
)

// The field GF(2^8) uses the AES irreducible polynomial 0x11B with generator 3.
// Log and anti-log tables are built once at startup; expTable is extended to
// 512 entries so multiplication can skip the mod-255 reduction.
var (
	expTable [512]byte
	logTable [256]byte
)

func init() {
	x := byte(1)
	for i := 0; i < 255; i++ {
		expTable[i] = x
		logTable[x] = byte(i)

		// Multiply x by the generator 3 (x ^ xtime(x)).
		next := uint16(x) << 1
		if next&0x100 != 0 {
			next ^= 0x11B
		}
		x = byte(next) ^ x
	}
	for i := 255; i < 512; i++ {
		expTable[i] = expTable[i-255]
	}
}

// gfMul multiplies two field elements.
func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

// gfDiv divides a by b in the field. b must be non-zero.
func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	return expTable[int(logTable[a])-int(logTable[b])+255]
}

// evalPolynomial evaluates the polynomial with the given coefficients
// (constant term first) at x using Horner's method in the field.
func evalPolynomial(coefficients []byte, x byte) byte {
	result := coefficients[len(coefficients)-1]
	for i := len(coefficients) - 2; i >= 0; i-- {
		result = gfMul(result, x) ^ coefficients[i]
	}
	return result
}

// Split shares a secret into n shares such that any m of them reconstruct it.
// Each share is len(secret) bytes; share i corresponds to x-coordinate i
// (1-based). Requires 2 <= m <= n <= 255 and a non-empty secret.
func Split(secret []byte, n, m int) ([][]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret must not be empty", sealDomain.ErrInvalidShareParams)
	}
	if m < 2 {
		return nil, fmt.Errorf("%w: threshold must be at least 2", sealDomain.ErrInvalidShareParams)
	}
	if m > n {
		return nil, fmt.Errorf(
			"%w: threshold %d exceeds share count %d",
			sealDomain.ErrInvalidShareParams, m, n,
		)
	}
	if n > 255 {
		return nil, fmt.Errorf("%w: at most 255 shares", sealDomain.ErrInvalidShareParams)
	}

	shares := make([][]byte, n)
	for i := range shares {
		shares[i] = make([]byte, len(secret))
	}

	coefficients := make([]byte, m)
	for pos, b := range secret {
		// Random polynomial of degree m-1 with the secret byte as constant term.
		coefficients[0] = b
		if _, err := rand.Read(coefficients[1:]); err != nil {
			return nil, fmt.Errorf("failed to generate polynomial coefficients: %w", err)
		}

		for i := 0; i < n; i++ {
			shares[i][pos] = evalPolynomial(coefficients, byte(i+1))
		}
	}

	return shares, nil
}

// Combine reconstructs the secret from k shares with the given 1-based
// x-coordinates via Lagrange interpolation at zero. Reconstruction is
// deterministic in the inputs; it does not (and cannot) verify that the
// shares belong to the same split.
func Combine(shares [][]byte, indices []int) ([]byte, error) {
	if len(shares) == 0 || len(shares) != len(indices) {
		return nil, fmt.Errorf("%w: mismatched shares and indices", sealDomain.ErrInvalidKeyShare)
	}

	length := len(shares[0])
	seen := make(map[int]struct{}, len(indices))
	for i, idx := range indices {
		if idx < 1 || idx > 255 {
			return nil, fmt.Errorf("%w: index %d out of range", sealDomain.ErrInvalidKeyShare, idx)
		}
		if _, dup := seen[idx]; dup {
			return nil, fmt.Errorf("%w: duplicate index %d", sealDomain.ErrInvalidKeyShare, idx)
		}
		seen[idx] = struct{}{}
		if len(shares[i]) != length {
			return nil, fmt.Errorf("%w: shares differ in length", sealDomain.ErrInvalidKeyShare)
		}
	}

	secret := make([]byte, length)
	for pos := 0; pos < length; pos++ {
		var value byte
		for i := range shares {
			xi := byte(indices[i])
			basis := byte(1)
			for j := range shares {
				if j == i {
					continue
				}
				xj := byte(indices[j])
				basis = gfMul(basis, gfDiv(xj, xi^xj))
			}
			value ^= gfMul(shares[i][pos], basis)
		}
		secret[pos] = value
	}

	return secret, nil
}
