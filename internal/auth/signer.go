// Package auth computes the request signatures the platform accepts from
// agents that hold an API secret. The bearer API key authenticates every
// call on its own; the signature is an additional integrity check over the
// request body. Identities without a secret (agents created through the
// dashboard's registration flow, which issues only a key) send no signature
// header at all.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the body signature on signed requests.
const SignatureHeader = "X-Signature"

// Sign returns hex(HMAC-SHA256(body, secret)).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches Sign(secret, body). The
// comparison is constant-time, as required for MACs.
func Verify(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
