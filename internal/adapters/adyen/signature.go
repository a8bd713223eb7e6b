package adyen

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/kevin07696/payment-transactions/internal/domain"
)

var signatureKeys = []string{
	"pspReference",
	"originalReference",
	"merchantAccountCode",
	"merchantReference",
	"amount.value",
	"amount.currency",
	"eventCode",
	"success",
}

var signatureEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`)

// signingString joins the signed fields of a notification item with ":"
func signingString(item domain.FeedbackData) string {
	parts := make([]string, len(signatureKeys))
	for i, key := range signatureKeys {
		parts[i] = signatureEscaper.Replace(lookup(item, key))
	}
	return strings.Join(parts, ":")
}

// lookup reads a dotted path out of nested notification data
func lookup(item domain.FeedbackData, path string) string {
	keys := strings.Split(path, ".")
	node := item
	for _, key := range keys[:len(keys)-1] {
		node = node.Map(key)
	}
	return node.String(keys[len(keys)-1])
}

// ComputeSignature returns the base64 HMAC-SHA256 of the notification item.
// hmacKey is the hex encoded key configured on the Adyen webhook.
func ComputeSignature(hmacKey string, item domain.FeedbackData) (string, error) {
	key, err := hex.DecodeString(hmacKey)
	if err != nil {
		return "", fmt.Errorf("decode hmac key: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signingString(item)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature checks additionalData.hmacSignature against the notification content.
// A missing signature or an unusable key never verifies.
func VerifySignature(hmacKey string, item domain.FeedbackData) bool {
	received := item.Map("additionalData").String("hmacSignature")
	if received == "" || hmacKey == "" {
		return false
	}
	expected, err := ComputeSignature(hmacKey, item)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(received))
}
