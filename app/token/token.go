package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GuestMemberID is the sentinel identity for unauthenticated
// checkouts. Member identity is always passed explicitly; return-URL
// validation never consults ambient session state.
const GuestMemberID uint64 = 0

// Generate mints the action token embedded in return URLs. The token
// binds the exact (transactionID, action, memberID) triple to the
// server secret; the secret appears both as HMAC key and inside the
// signed material, so the token is stable across browser sessions but
// unforgeable without the secret.
func Generate(transactionID uint64, action string, memberID uint64, secret string) string {
	data := fmt.Sprintf("%d:%s:%d:%s", transactionID, action, memberID, secret)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate recomputes the token for the given triple and compares in
// constant time. Empty tokens and empty secrets never validate.
func Validate(transactionID uint64, action string, memberID uint64, secret, candidate string) bool {
	if strings.TrimSpace(secret) == "" || strings.TrimSpace(candidate) == "" {
		return false
	}
	expected := Generate(transactionID, action, memberID, secret)
	return hmac.Equal([]byte(expected), []byte(candidate))
}
