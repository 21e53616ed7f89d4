package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewSessionID returns an unguessable 128-bit session id as 32 hex chars.
func NewSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
