package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testSecret = []byte("server-secret")

func TestAccessToken_RoundTrip(t *testing.T) {
	token := GenerateAccessToken(testSecret, "42", "100.00", "EUR")

	assert.True(t, CheckAccessToken(testSecret, token, "42", "100.00", "EUR"))
	assert.Len(t, token, 64)
}

func TestAccessToken_AnyValueChanged(t *testing.T) {
	token := GenerateAccessToken(testSecret, "42", "100.00", "EUR")

	testCases := []struct {
		name   string
		values []string
	}{
		{name: "partner changed", values: []string{"43", "100.00", "EUR"}},
		{name: "amount changed", values: []string{"42", "100.01", "EUR"}},
		{name: "currency changed", values: []string{"42", "100.00", "USD"}},
		{name: "order changed", values: []string{"100.00", "42", "EUR"}},
		{name: "value missing", values: []string{"42", "100.00"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, CheckAccessToken(testSecret, token, tc.values...))
		})
	}
}

func TestAccessToken_WrongSecret(t *testing.T) {
	token := GenerateAccessToken(testSecret, "42")

	assert.False(t, CheckAccessToken([]byte("other-secret"), token, "42"))
}

func TestAccessToken_EmptyToken(t *testing.T) {
	assert.False(t, CheckAccessToken(testSecret, "", "42"))
}

func TestCallbackHash_ScopeIsolation(t *testing.T) {
	hash := GenerateCallbackHash(testSecret, "invoice", 7, "confirm_payment")

	assert.True(t, CheckCallbackHash(testSecret, hash, "invoice", 7, "confirm_payment"))
	assert.False(t, CheckCallbackHash(testSecret, hash, "invoice", 8, "confirm_payment"))
	assert.False(t, CheckCallbackHash(testSecret, hash, "invoice", 7, "cancel"))
	// Same bytes under the access token scope must not match
	assert.False(t, CheckAccessToken(testSecret, hash, "invoice|7|confirm_payment"))
}

func TestToASCII(t *testing.T) {
	assert.Equal(t, "Facture-ete", ToASCII("Facture-été"))
	assert.Equal(t, "INV/2024/0001", ToASCII("INV/2024/0001"))
	assert.Equal(t, "Munchen", ToASCII(" München "))
	assert.Equal(t, "", ToASCII("東京"))
}
