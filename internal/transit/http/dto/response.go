// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	transitDomain "github.com/allisson/vault/internal/transit/domain"
)

// TransitKeyResponse represents a transit key in API responses.
// SECURITY: Key material never appears in any response.
type TransitKeyResponse struct {
	ID                   string    `json:"id"`
	TeamID               string    `json:"team_id"`
	Name                 string    `json:"name"`
	Description          *string   `json:"description,omitempty"`
	CurrentVersion       uint      `json:"current_version"`
	MinDecryptionVersion uint      `json:"min_decryption_version"`
	IsDeletable          bool      `json:"is_deletable"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ListTransitKeysResponse represents a paginated list of transit keys.
type ListTransitKeysResponse struct {
	Data []TransitKeyResponse `json:"data"`
}

// CiphertextResponse carries an envelope produced by encrypt or rewrap.
type CiphertextResponse struct {
	Ciphertext string `json:"ciphertext"`
}

// PlaintextResponse carries base64 plaintext produced by decrypt.
type PlaintextResponse struct {
	Plaintext string `json:"plaintext"`
}

// DataKeyResponse carries a freshly issued data key: the plaintext for
// immediate use and the wrapped form for storage.
// SECURITY: The plaintext key is returned exactly once.
type DataKeyResponse struct {
	Plaintext  string `json:"plaintext"`
	Ciphertext string `json:"ciphertext"`
}

// MapTransitKeyToResponse converts a domain transit key to an API response.
func MapTransitKeyToResponse(key *transitDomain.TransitKey) TransitKeyResponse {
	return TransitKeyResponse{
		ID:                   key.ID.String(),
		TeamID:               key.TeamID.String(),
		Name:                 key.Name,
		Description:          key.Description,
		CurrentVersion:       key.CurrentVersion,
		MinDecryptionVersion: key.MinDecryptionVersion,
		IsDeletable:          key.IsDeletable,
		CreatedAt:            key.CreatedAt,
		UpdatedAt:            key.UpdatedAt,
	}
}

// MapTransitKeysToListResponse converts a slice of domain keys to a list response.
func MapTransitKeysToListResponse(keys []*transitDomain.TransitKey) ListTransitKeysResponse {
	data := make([]TransitKeyResponse, 0, len(keys))
	for _, key := range keys {
		data = append(data, MapTransitKeyToResponse(key))
	}

	return ListTransitKeysResponse{Data: data}
}
