package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
)

// EnvPrefix prefixes every environment override; "__" separates nested keys
const EnvPrefix = "PAYMENT_"

var DefaultConfig = []byte(`
application: "payment-transactions"

server:
  http_port: 8080
  metrics_port: 9090
  read_timeout: "15s"
  write_timeout: "30s"
  idle_timeout: "60s"
  shutdown_timeout: "30s"

database:
  host: "localhost"
  port: 5432
  user: "postgres"
  password: ""
  name: "payment_transactions"
  ssl_mode: "disable"
  max_conns: 25
  min_conns: 5
  max_conn_lifetime: "1h"
  max_conn_idle_time: "30m"
  migrate_on_start: false
  pool_monitor_interval: "1m"

logger:
  level: "info"
  encoding: "json"
  development: false

secrets:
  backend: "local"
  local_path: "./secrets"
  server_secret_path: "payment/server-secret"
  database_secret_path: ""
  cache_ttl: "5m"
  aws_region: "us-east-1"
  aws_profile: ""
  aws_endpoint: ""
  vault_address: "http://localhost:8200"
  vault_token: ""
  vault_role_id: ""
  vault_secret_id: ""
  vault_mount_path: "secret"
  vault_kv_version: "v2"

postprocessing:
  interval: "1m"
  client_handling_window: "10m"
  retry_limit: "96h"
  poll_window: "24h"
  batch_size: 500
  reference_attempts: 3

locking:
  backend: "local"
  redis_addr: "localhost:6379"
  redis_password: ""
  redis_db: 0
  ttl: "30s"

cron:
  secret: ""

admin:
  secret: ""

adyen:
  api_url: "https://checkout-test.adyen.com/v70"
  timeout: "30s"
  max_retries: 2

ratelimit:
  rps: 20
  burst: 40
`)

// Config holds all application configuration
type Config struct {
	Application    string               `koanf:"application" validate:"required"`
	Server         ServerConfig         `koanf:"server"`
	Database       DatabaseConfig       `koanf:"database"`
	Logger         LoggerConfig         `koanf:"logger"`
	Secrets        SecretsConfig        `koanf:"secrets"`
	PostProcessing PostProcessingConfig `koanf:"postprocessing"`
	Locking        LockingConfig        `koanf:"locking"`
	Cron           SharedSecretConfig   `koanf:"cron"`
	Admin          SharedSecretConfig   `koanf:"admin"`
	Adyen          AdyenConfig          `koanf:"adyen"`
	RateLimit      RateLimitConfig      `koanf:"ratelimit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPPort        int           `koanf:"http_port" validate:"required,min=1,max=65535"`
	MetricsPort     int           `koanf:"metrics_port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host                string        `koanf:"host" validate:"required"`
	Port                int           `koanf:"port" validate:"required,min=1,max=65535"`
	User                string        `koanf:"user" validate:"required"`
	Password            string        `koanf:"password"`
	Name                string        `koanf:"name" validate:"required"`
	SSLMode             string        `koanf:"ssl_mode" validate:"required,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns            int32         `koanf:"max_conns" validate:"required,min=1"`
	MinConns            int32         `koanf:"min_conns" validate:"min=0"`
	MaxConnLifetime     time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime     time.Duration `koanf:"max_conn_idle_time"`
	MigrateOnStart      bool          `koanf:"migrate_on_start"`
	PoolMonitorInterval time.Duration `koanf:"pool_monitor_interval"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `koanf:"level" validate:"required,oneof=debug info warn error"`
	Encoding    string `koanf:"encoding" validate:"required,oneof=json console logfmt"`
	Development bool   `koanf:"development"`
}

// SecretsConfig selects the secret backend
type SecretsConfig struct {
	Backend            string        `koanf:"backend" validate:"required,oneof=local aws vault"`
	LocalPath          string        `koanf:"local_path"`
	ServerSecretPath   string        `koanf:"server_secret_path" validate:"required"`
	DatabaseSecretPath string        `koanf:"database_secret_path"`
	CacheTTL           time.Duration `koanf:"cache_ttl"`
	AWSRegion          string        `koanf:"aws_region"`
	AWSProfile         string        `koanf:"aws_profile"`
	AWSEndpoint        string        `koanf:"aws_endpoint"`
	VaultAddress       string        `koanf:"vault_address"`
	VaultToken         string        `koanf:"vault_token"`
	VaultRoleID        string        `koanf:"vault_role_id"`
	VaultSecretID      string        `koanf:"vault_secret_id"`
	VaultMountPath     string        `koanf:"vault_mount_path"`
	VaultKVVersion     string        `koanf:"vault_kv_version" validate:"omitempty,oneof=v1 v2"`
}

// PostProcessingConfig holds the lifecycle timings of the post-processing sweep
type PostProcessingConfig struct {
	Interval             time.Duration `koanf:"interval" validate:"required"`
	ClientHandlingWindow time.Duration `koanf:"client_handling_window" validate:"required"`
	RetryLimit           time.Duration `koanf:"retry_limit" validate:"required"`
	PollWindow           time.Duration `koanf:"poll_window" validate:"required"`
	BatchSize            int           `koanf:"batch_size" validate:"min=0"`
	ReferenceAttempts    int           `koanf:"reference_attempts" validate:"min=1"`
}

// LockingConfig selects the per-transaction lock backend
type LockingConfig struct {
	Backend       string        `koanf:"backend" validate:"required,oneof=local redis"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	TTL           time.Duration `koanf:"ttl"`
}

// SharedSecretConfig protects an internal endpoint group
type SharedSecretConfig struct {
	Secret string `koanf:"secret"`
}

// AdyenConfig holds client defaults; credentials live on each acquirer
type AdyenConfig struct {
	APIURL     string        `koanf:"api_url" validate:"required,url"`
	Timeout    time.Duration `koanf:"timeout" validate:"required"`
	MaxRetries int           `koanf:"max_retries" validate:"min=0"`
}

// RateLimitConfig bounds requests per client IP on the public endpoints
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" validate:"gt=0"`
	Burst int     `koanf:"burst" validate:"min=1"`
}

// Load layers the built-in defaults, the optional YAML file at path and PAYMENT_ environment variables
func Load(path string) (*Config, error) {
	k, err := load(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(DefaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	return k, nil
}

// envKey maps PAYMENT_DATABASE__MAX_CONNS to database.max_conns
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Locking.Backend == "redis" && c.Locking.RedisAddr == "" {
		return fmt.Errorf("invalid configuration: locking.redis_addr is required for the redis backend")
	}
	if c.Secrets.Backend == "vault" && c.Secrets.VaultAddress == "" {
		return fmt.Errorf("invalid configuration: secrets.vault_address is required for the vault backend")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid configuration: database.min_conns exceeds max_conns")
	}
	return nil
}
