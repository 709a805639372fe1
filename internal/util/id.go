package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 32-character hex id used for request correlation. It stays
// within the charset and length bounds WithRequestID accepts, so generated
// ids always round-trip through the X-Request-Id header.
func NewID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
