package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintSize is the digest length in bytes.
const fingerprintSize = 16

// Fingerprint returns a stable hex digest of a bearer token.
// Revocation entries and logs use it so raw tokens are never stored.
func Fingerprint(token string) string {
	h, err := blake2b.New(fingerprintSize, nil)
	if err != nil {
		// Only returned for invalid sizes or oversized keys.
		panic(err)
	}
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}
