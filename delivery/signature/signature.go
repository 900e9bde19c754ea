package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Prefix identifies the scheme in the signature header value
	Prefix = "sha256="

	// SecretBytes is the size of generated signing secrets (256 bits)
	SecretBytes = 32
)

// GenerateSecret creates a new cryptographically secure signing secret,
// hex-encoded so it can be stored and diffed as plain text
func GenerateSecret() (string, error) {
	bytes := make([]byte, SecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

/* Sign computes the signature header value for a payload:
 * "sha256=" + lowercase hex HMAC-SHA256 over the exact bytes given.
 * Callers must pass the same bytes they put on the wire; re-serializing
 * the payload on either side of signing breaks verification.
 */
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value against the payload using
// constant-time comparison to prevent timing attacks
func Verify(payload []byte, secret, sig string) bool {
	if !strings.HasPrefix(sig, Prefix) {
		return false
	}

	expected, err := hex.DecodeString(strings.TrimPrefix(sig, Prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	calculated := mac.Sum(nil)

	return subtle.ConstantTimeCompare(expected, calculated) == 1
}
