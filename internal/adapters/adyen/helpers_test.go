package adyen

import (
	"context"
	"fmt"
	"strings"

	"github.com/kevin07696/payment-transactions/internal/domain"
	"github.com/kevin07696/payment-transactions/internal/testutil/fakeops"
)

const testHMACKey = "44782DEF547AAA06C910C43932B1EB0C71FC68D9D0C057550C48EC2ACF6BA056"

// newOps returns fake lifecycle operations whose transactions default to adyen
func newOps() *opsWithDefaults {
	return &opsWithDefaults{Ops: fakeops.New()}
}

type opsWithDefaults struct {
	*fakeops.Ops
}

func (o *opsWithDefaults) add(tx *domain.Transaction) *domain.Transaction {
	if tx.Provider == "" {
		tx.Provider = Provider
	}
	return o.Add(tx)
}

// staticKeys resolves secret:// references from a fixed map
type staticKeys struct {
	secret []byte
	values map[string]string
}

func (k staticKeys) ServerSecret(context.Context) ([]byte, error) {
	return k.secret, nil
}

func (k staticKeys) Resolve(_ context.Context, value string) (string, error) {
	path, ok := strings.CutPrefix(value, "secret://")
	if !ok {
		return value, nil
	}
	v, ok := k.values[path]
	if !ok {
		return "", fmt.Errorf("secret %s not found", path)
	}
	return v, nil
}

// signedItem builds a notification item signed with testHMACKey
func signedItem(fields domain.FeedbackData) domain.FeedbackData {
	item := domain.FeedbackData{
		"pspReference":        "PSP0001",
		"merchantAccountCode": "AzureInteriorECOM",
		"merchantReference":   "S00001",
		"amount":              map[string]interface{}{"value": "1111", "currency": "EUR"},
		"eventCode":           EventAuthorisation,
		"success":             "true",
	}
	for k, v := range fields {
		item[k] = v
	}
	sig, err := ComputeSignature(testHMACKey, item)
	if err != nil {
		panic(err)
	}
	item["additionalData"] = map[string]interface{}{"hmacSignature": sig}
	return item
}
