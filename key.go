package seal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateKey returns a new random KeySize-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// EncodeKey returns the hex encoding of key.
func EncodeKey(key []byte) string {
	return hex.EncodeToString(key)
}

// ParseKey decodes a hex-encoded key. Surrounding whitespace is ignored so
// keys can be read straight from files.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	return key, nil
}
