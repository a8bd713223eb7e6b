package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	accessTokenScope  = "generate_access_token"
	callbackHashScope = "generate_callback_hash"
)

// ScopedHMAC returns the hex HMAC-SHA256 of message keyed by secret and bound to scope.
// Tokens computed for one scope never validate in another.
func ScopedHMAC(secret []byte, scope, message string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(scope))
	mac.Write([]byte{0})
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// GenerateAccessToken binds values to the server secret.
// Values are joined with "|" so order matters.
func GenerateAccessToken(secret []byte, values ...string) string {
	return ScopedHMAC(secret, accessTokenScope, strings.Join(values, "|"))
}

// CheckAccessToken recomputes the token for values and compares it in constant time
func CheckAccessToken(secret []byte, token string, values ...string) bool {
	if token == "" {
		return false
	}
	expected := GenerateAccessToken(secret, values...)
	return hmac.Equal([]byte(expected), []byte(token))
}

// GenerateCallbackHash signs a callback descriptor
func GenerateCallbackHash(secret []byte, model string, recordID int64, method string) string {
	return ScopedHMAC(secret, callbackHashScope, fmt.Sprintf("%s|%d|%s", model, recordID, method))
}

// CheckCallbackHash verifies a stored callback hash in constant time
func CheckCallbackHash(secret []byte, hash, model string, recordID int64, method string) bool {
	if hash == "" {
		return false
	}
	expected := GenerateCallbackHash(secret, model, recordID, method)
	return hmac.Equal([]byte(expected), []byte(hash))
}
