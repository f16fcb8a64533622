package signals

import (
	"crypto/rand"
	"fmt"
)

const (
	slugAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	slugLength   = 10
)

// NewSlug returns an unguessable public token for a shareable URL. The
// slug is the only credential granting prospect access to a Signal, so
// it comes from crypto/rand, never math/rand.
func NewSlug() (string, error) {
	buf := make([]byte, slugLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("signals: slug generation failed: %w", err)
	}
	for i, b := range buf {
		buf[i] = slugAlphabet[int(b)%len(slugAlphabet)]
	}
	return string(buf), nil
}
