package secrets

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/kevin07696/payment-transactions/internal/config"
	"go.uber.org/zap"
)

// NewManager builds the secret manager selected by cfg.Backend
func NewManager(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Backend {
	case "local":
		logger.Warn("Using local secret manager - development only",
			zap.String("path", cfg.LocalPath),
		)
		return NewLocalSecretManager(cfg.LocalPath, logger), nil
	case "aws":
		return NewAWSSecretsManagerAdapter(ctx, &AWSSecretsManagerConfig{
			Region:   cfg.AWSRegion,
			Profile:  cfg.AWSProfile,
			Endpoint: cfg.AWSEndpoint,
			CacheTTL: cfg.CacheTTL,
		}, logger)
	case "vault":
		vaultCfg := DefaultVaultConfig(cfg.VaultAddress)
		vaultCfg.Token = cfg.VaultToken
		vaultCfg.RoleID = cfg.VaultRoleID
		vaultCfg.SecretID = cfg.VaultSecretID
		if cfg.VaultMountPath != "" {
			vaultCfg.MountPath = cfg.VaultMountPath
		}
		if cfg.VaultKVVersion != "" {
			vaultCfg.KVVersion = cfg.VaultKVVersion
		}
		vaultCfg.CacheTTL = cfg.CacheTTL
		return NewVaultAdapter(ctx, vaultCfg, logger)
	default:
		return nil, fmt.Errorf("unknown secret backend %q", cfg.Backend)
	}
}

// ResolveDatabasePassword returns the password stored at cfg.DatabaseSecretPath, or fallback when no path is set
func ResolveDatabasePassword(ctx context.Context, manager ports.SecretManagerAdapter, cfg config.SecretsConfig, fallback string) (string, error) {
	if cfg.DatabaseSecretPath == "" {
		return fallback, nil
	}
	secret, err := manager.GetSecret(ctx, cfg.DatabaseSecretPath)
	if err != nil {
		return "", fmt.Errorf("read database secret: %w", err)
	}
	return secret.Value, nil
}
