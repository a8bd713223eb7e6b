package ports

import "context"

// Secret is a value read from the secret backend
type Secret struct {
	Value    string
	Version  string
	Metadata map[string]string
}

// SecretManagerAdapter reads the server secret and acquirer credentials.
// Paths are backend-relative, e.g. "payment/server-secret" or "adyen/hmac".
type SecretManagerAdapter interface {
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
