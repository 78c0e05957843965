package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// APIKeyPrefix marks personal API keys so they are recognizable in logs and secret scanners.
	APIKeyPrefix = "sk_live_"
	// apiKeyRandomBytes yields a 43 character random suffix.
	apiKeyRandomBytes = 32
	// maskedSuffixLength is the number of redaction markers shown after the prefix.
	maskedSuffixLength = 26
)

// GenerateAPIKey returns a new plaintext API key.
func GenerateAPIKey() (string, error) {
	random, err := GenerateRandomString(apiKeyRandomBytes)
	if err != nil {
		return "", err
	}
	return APIKeyPrefix + random, nil
}

// HashAPIKey returns the SHA-256 hex digest stored in place of the plaintext key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MaskAPIKey returns the display form of a key: its prefix followed by redaction markers.
// Only the prefix is used, so the masked form never depends on the secret part.
func MaskAPIKey(prefix string) string {
	if prefix == "" {
		prefix = APIKeyPrefix
	}
	return prefix + strings.Repeat("•", maskedSuffixLength)
}

// LooksLikeAPIKey reports whether value carries the API key prefix.
func LooksLikeAPIKey(value string) bool {
	return strings.HasPrefix(value, APIKeyPrefix) && len(value) > len(APIKeyPrefix)
}
