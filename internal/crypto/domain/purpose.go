package domain

// KekInfoPrefix is the fixed byte prefix combined with a purpose string to
// form the HKDF info parameter for key-encryption key derivation. Changing it
// invalidates every ciphertext ever produced, so it is a wire-level constant.
const KekInfoPrefix = "vault-kek-v1:"

// Purpose names a key-derivation domain. Each purpose yields an independent
// 32-byte KEK from the master key, so a compromise of one purpose's
// ciphertexts never crosses into another.
type Purpose string

// Key-derivation purposes used by the service.
const (
	PurposeSecretStorage      Purpose = "secret-storage"
	PurposeTransit            Purpose = "transit"
	PurposeDynamicCredentials Purpose = "dynamic-credentials"
)

// DefaultKeyID is the envelope key id embedded by Encrypt when the caller
// does not supply one.
const DefaultKeyID = "vault-master-v1"
