package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
)

// ReferencePrefix marks a setting value that must be resolved through the secret manager
const ReferencePrefix = "secret://"

// Keyring hands out the server secret and resolves secret references in acquirer settings
type Keyring struct {
	manager          ports.SecretManagerAdapter
	serverSecretPath string
}

// NewKeyring creates a keyring reading the server secret from serverSecretPath
func NewKeyring(manager ports.SecretManagerAdapter, serverSecretPath string) *Keyring {
	return &Keyring{manager: manager, serverSecretPath: serverSecretPath}
}

// ServerSecret returns the key used for access tokens and callback hashes
func (k *Keyring) ServerSecret(ctx context.Context) ([]byte, error) {
	secret, err := k.manager.GetSecret(ctx, k.serverSecretPath)
	if err != nil {
		return nil, fmt.Errorf("load server secret: %w", err)
	}
	if secret.Value == "" {
		return nil, fmt.Errorf("server secret %s is empty", k.serverSecretPath)
	}
	return []byte(secret.Value), nil
}

// Resolve returns value unchanged unless it is a secret:// reference
func (k *Keyring) Resolve(ctx context.Context, value string) (string, error) {
	path, ok := strings.CutPrefix(value, ReferencePrefix)
	if !ok {
		return value, nil
	}
	secret, err := k.manager.GetSecret(ctx, path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return secret.Value, nil
}
