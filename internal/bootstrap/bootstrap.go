// Package bootstrap wires the payment service dependencies from the application config.
// The server and the admin CLI share it so both run the same lifecycle code.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/kevin07696/payment-transactions/internal/adapters/acquirer"
	"github.com/kevin07696/payment-transactions/internal/adapters/adyen"
	"github.com/kevin07696/payment-transactions/internal/adapters/database"
	"github.com/kevin07696/payment-transactions/internal/adapters/demo"
	"github.com/kevin07696/payment-transactions/internal/adapters/locking"
	"github.com/kevin07696/payment-transactions/internal/adapters/secrets"
	"github.com/kevin07696/payment-transactions/internal/adapters/transfer"
	"github.com/kevin07696/payment-transactions/internal/config"
	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/internal/services/payment"
	"github.com/kevin07696/payment-transactions/pkg/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies holds the long-lived components built from the config
type Dependencies struct {
	DB        *database.PostgreSQLAdapter
	Keyring   *secrets.Keyring
	Acquirers *acquirer.Registry
	Locker    ports.ReferenceLocker
	Redis     *redis.Client
	Payments  *payment.Service
}

// Close releases the connections opened by Build
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// Build connects to the database, the secret backend and the lock backend and
// assembles the payment service
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	manager, err := secrets.NewManager(ctx, cfg.Secrets, logger)
	if err != nil {
		return nil, fmt.Errorf("init secret manager: %w", err)
	}

	password, err := secrets.ResolveDatabasePassword(ctx, manager, cfg.Secrets, cfg.Database.Password)
	if err != nil {
		return nil, err
	}
	dbCfg := database.ConfigFromSettings(cfg.Database)
	dbCfg.Password = password

	deps := &Dependencies{Keyring: secrets.NewKeyring(manager, cfg.Secrets.ServerSecretPath)}

	deps.DB, err = database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.Database.MigrateOnStart {
		if err := deps.DB.Migrate(ctx, "up"); err != nil {
			deps.Close()
			return nil, err
		}
		logger.Info("Database migrations applied")
	}

	switch cfg.Locking.Backend {
	case "redis":
		deps.Redis, err = locking.Connect(ctx, cfg.Locking.RedisAddr, cfg.Locking.RedisPassword, cfg.Locking.RedisDB)
		if err != nil {
			deps.Close()
			return nil, err
		}
		lockCfg := locking.DefaultRedisLockerConfig()
		if cfg.Locking.TTL > 0 {
			lockCfg.TTL = cfg.Locking.TTL
		}
		deps.Locker = locking.NewRedisLocker(deps.Redis, lockCfg, logger)
	default:
		deps.Locker = locking.NewLocalLocker()
	}

	adyenClient := adyen.NewClient(adyen.ClientConfig{
		BaseURL:    cfg.Adyen.APIURL,
		Timeout:    cfg.Adyen.Timeout,
		MaxRetries: cfg.Adyen.MaxRetries,
	}, logger)
	deps.Acquirers = acquirer.NewRegistry(
		adyen.NewStrategy(adyenClient, deps.Keyring, logger),
		transfer.NewStrategy(logger),
		demo.NewStrategy(logger),
	)

	callbacks := payment.NewCallbackRegistry()
	if err := payment.RegisterInvoiceCallbacks(callbacks); err != nil {
		deps.Close()
		return nil, fmt.Errorf("register callbacks: %w", err)
	}

	deps.Payments = payment.NewService(
		deps.DB.Store(),
		deps.Acquirers,
		deps.Keyring,
		deps.Locker,
		callbacks,
		logging.NewZapLogger(logger),
		ServiceConfig(cfg.PostProcessing),
	)

	logger.Info("Payment service initialized",
		zap.String("acquirers", deps.Acquirers.String()),
		zap.String("locking", cfg.Locking.Backend),
		zap.String("secrets", cfg.Secrets.Backend),
	)
	return deps, nil
}

// ServiceConfig maps the post-processing section onto the lifecycle timings
func ServiceConfig(c config.PostProcessingConfig) payment.Config {
	cfg := payment.DefaultConfig()
	if c.ClientHandlingWindow > 0 {
		cfg.ClientHandlingWindow = c.ClientHandlingWindow
	}
	if c.RetryLimit > 0 {
		cfg.RetryLimit = c.RetryLimit
	}
	if c.PollWindow > 0 {
		cfg.PollWindow = c.PollWindow
	}
	cfg.SweepBatchSize = c.BatchSize
	if c.ReferenceAttempts > 0 {
		cfg.ReferenceAttempts = c.ReferenceAttempts
	}
	return cfg
}
