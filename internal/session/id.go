package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// IDBytes is the amount of randomness behind every session id.
const IDBytes = 16

// NewID mints an unguessable session id: 16 random bytes, hex encoded.
func NewID() (string, error) {
	buf := make([]byte, IDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidID accepts the ids produced by NewID as well as caller-chosen tokens made of
// URL-safe characters, so a chat can start on an id the server never minted.
func ValidID(id string) bool {
	if len(id) == 0 || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
