package secrets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"go.uber.org/zap"
)

// VaultConfig points the adapter at a KV mount.
// RoleID and SecretID switch authentication from Token to AppRole.
type VaultConfig struct {
	Address   string
	Token     string
	RoleID    string
	SecretID  string
	Namespace string
	MountPath string
	KVVersion string // "v1" or "v2"
	CacheTTL  time.Duration
}

// DefaultVaultConfig reads from the KV v2 engine mounted at "secret"
func DefaultVaultConfig(address string) *VaultConfig {
	return &VaultConfig{
		Address:   address,
		MountPath: "secret",
		KVVersion: "v2",
		CacheTTL:  5 * time.Minute,
	}
}

type vaultAdapter struct {
	read   func(ctx context.Context, path string) (*vault.KVSecret, error)
	logger *zap.Logger
	cache  *secretCache
}

// NewVaultAdapter logs in to Vault and reads secrets from the configured KV mount.
// The secret document must carry the value under the "value" key.
func NewVaultAdapter(ctx context.Context, cfg *VaultConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	clientCfg := vault.DefaultConfig()
	clientCfg.Address = cfg.Address
	client, err := vault.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	if err := vaultLogin(ctx, client, cfg); err != nil {
		return nil, err
	}

	a := &vaultAdapter{
		logger: logger,
		cache:  newSecretCache(cfg.CacheTTL > 0, cfg.CacheTTL),
	}
	if cfg.KVVersion == "v1" {
		a.read = client.KVv1(cfg.MountPath).Get
	} else {
		a.read = client.KVv2(cfg.MountPath).Get
	}

	logger.Info("Vault backend ready",
		zap.String("address", cfg.Address),
		zap.String("mount_path", cfg.MountPath),
		zap.String("kv_version", cfg.KVVersion),
	)
	return a, nil
}

func vaultLogin(ctx context.Context, client *vault.Client, cfg *VaultConfig) error {
	if cfg.RoleID == "" {
		if cfg.Token == "" {
			return errors.New("vault token or approle credentials are required")
		}
		client.SetToken(cfg.Token)
		return nil
	}

	resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
		"role_id":   cfg.RoleID,
		"secret_id": cfg.SecretID,
	})
	if err != nil {
		return fmt.Errorf("vault approle login: %w", err)
	}
	if resp == nil || resp.Auth == nil {
		return errors.New("vault approle login returned no token")
	}
	client.SetToken(resp.Auth.ClientToken)
	return nil
}

func (a *vaultAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		return cached, nil
	}

	kv, err := a.read(ctx, path)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return nil, fmt.Errorf("secret not found: %s", path)
	}
	if err != nil {
		a.logger.Error("Failed to read secret from Vault", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("read vault secret %s: %w", path, err)
	}

	secret, err := secretFromKV(kv)
	if err != nil {
		return nil, fmt.Errorf("vault secret %s: %w", path, err)
	}
	a.cache.set(path, secret)
	return secret, nil
}

// secretFromKV keeps "value" as the secret and the other string fields as metadata
func secretFromKV(kv *vault.KVSecret) (*ports.Secret, error) {
	value, _ := kv.Data["value"].(string)
	if value == "" {
		return nil, errors.New(`missing "value" field`)
	}

	secret := &ports.Secret{Value: value, Version: "1", Metadata: make(map[string]string)}
	if kv.VersionMetadata != nil {
		secret.Version = strconv.Itoa(kv.VersionMetadata.Version)
	}
	for k, v := range kv.Data {
		if s, ok := v.(string); ok && k != "value" {
			secret.Metadata[k] = s
		}
	}
	return secret, nil
}
