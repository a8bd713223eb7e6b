package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"go.uber.org/zap"
)

// AWSSecretsManagerConfig selects the region and optional LocalStack endpoint
type AWSSecretsManagerConfig struct {
	Region   string
	Profile  string
	Endpoint string
	CacheTTL time.Duration
}

// secretValueGetter is the subset of the secretsmanager client used here
type secretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type awsSecretsManagerAdapter struct {
	client secretValueGetter
	logger *zap.Logger
	cache  *secretCache
}

// NewAWSSecretsManagerAdapter loads the default AWS credential chain and caches reads for CacheTTL
func NewAWSSecretsManagerAdapter(ctx context.Context, cfg *AWSSecretsManagerConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsConfig, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	logger.Info("AWS Secrets Manager backend ready",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)
	return newAWSSecretsManagerAdapter(client, cfg, logger), nil
}

func newAWSSecretsManagerAdapter(client secretValueGetter, cfg *AWSSecretsManagerConfig, logger *zap.Logger) *awsSecretsManagerAdapter {
	return &awsSecretsManagerAdapter{
		client: client,
		logger: logger,
		cache:  newSecretCache(cfg.CacheTTL > 0, cfg.CacheTTL),
	}
}

func (a *awsSecretsManagerAdapter) GetSecret(ctx context.Context, path string) (*ports.Secret, error) {
	if cached := a.cache.get(path); cached != nil {
		return cached, nil
	}

	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(path)})
	if err != nil {
		a.logger.Error("Failed to read secret", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("get secret %s: %w", path, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", path)
	}

	secret := parsePayload(*out.SecretString, aws.ToString(out.VersionId))
	a.cache.set(path, secret)
	return secret, nil
}
