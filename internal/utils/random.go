package utils

import (
	"crypto/rand" // secure random number generation
	"encoding/hex"
)

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewNotificationID returns the correlation id attached to a
// notification fan-out.  Clients echo it back so a stale approval
// prompt can be cancelled once any apartment responds.
func NewNotificationID() (string, error) {
	return RandomHex(16) // 16 bytes -> 32 hex chars
}
