package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"go.uber.org/zap"
)

// localSecretManager reads secrets from files under basePath. Development only.
type localSecretManager struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalSecretManager reads each secret from <basePath>/<path>
func NewLocalSecretManager(basePath string, logger *zap.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{basePath: basePath, logger: logger}
}

func (m *localSecretManager) GetSecret(_ context.Context, secretPath string) (*ports.Secret, error) {
	// Clean against "/" so "../" cannot climb out of basePath
	file := filepath.Join(m.basePath, filepath.Clean("/"+secretPath))
	m.logger.Debug("Reading secret file", zap.String("path", secretPath))

	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("secret not found: %s", secretPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read secret %s: %w", secretPath, err)
	}
	return parsePayload(string(data), "local"), nil
}
