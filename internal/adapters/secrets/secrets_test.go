package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/kevin07696/payment-transactions/internal/adapters/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSecretsManagerClient struct {
	mock.Mock
}

func (m *mockSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secretsmanager.GetSecretValueOutput), args.Error(1)
}

func writeSecret(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLocalSecretManager_PlainText(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "payment/server", "s3cret\n")

	m := NewLocalSecretManager(dir, zap.NewNop())
	secret, err := m.GetSecret(context.Background(), "payment/server")

	require.NoError(t, err)
	assert.Equal(t, "s3cret", secret.Value)
}

func TestLocalSecretManager_JSON(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "adyen/hmac", `{"value":"AABBCC","tags":{"owner":"payments"}}`)

	m := NewLocalSecretManager(dir, zap.NewNop())
	secret, err := m.GetSecret(context.Background(), "adyen/hmac")

	require.NoError(t, err)
	assert.Equal(t, "AABBCC", secret.Value)
	assert.Equal(t, "payments", secret.Metadata["owner"])
}

func TestLocalSecretManager_NotFound(t *testing.T) {
	m := NewLocalSecretManager(t.TempDir(), zap.NewNop())

	_, err := m.GetSecret(context.Background(), "missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret not found")
}

func TestLocalSecretManager_PathCannotEscapeBase(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "secrets")
	writeSecret(t, root, "outside", "nope")
	require.NoError(t, os.MkdirAll(base, 0o700))

	m := NewLocalSecretManager(base, zap.NewNop())
	_, err := m.GetSecret(context.Background(), "../outside")

	require.Error(t, err)
}

func TestAWSSecretsManager_CachesValue(t *testing.T) {
	client := new(mockSecretsManagerClient)
	client.On("GetSecretValue", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
		return aws.ToString(in.SecretId) == "payment/server" && in.VersionId == nil
	})).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String("from-aws"),
		VersionId:    aws.String("v7"),
		Name:         aws.String("payment/server"),
	}, nil).Once()

	a := newAWSSecretsManagerAdapter(client, &AWSSecretsManagerConfig{CacheTTL: time.Minute}, zap.NewNop())

	first, err := a.GetSecret(context.Background(), "payment/server")
	require.NoError(t, err)
	second, err := a.GetSecret(context.Background(), "payment/server")
	require.NoError(t, err)

	assert.Equal(t, "from-aws", first.Value)
	assert.Equal(t, "v7", first.Version)
	assert.Same(t, first, second)
	client.AssertExpectations(t)
}

func TestAWSSecretsManager_Error(t *testing.T) {
	client := new(mockSecretsManagerClient)
	client.On("GetSecretValue", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	a := newAWSSecretsManagerAdapter(client, &AWSSecretsManagerConfig{}, zap.NewNop())
	_, err := a.GetSecret(context.Background(), "payment/server")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestSecretCache_Expiry(t *testing.T) {
	c := newSecretCache(true, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.set("k", &ports.Secret{Value: "v"})
	assert.NotNil(t, c.get("k"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.get("k"))
}

func TestKeyring_ServerSecretAndResolve(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "payment/server", "server-key")
	writeSecret(t, dir, "adyen/api", "api-key")

	k := NewKeyring(NewLocalSecretManager(dir, zap.NewNop()), "payment/server")

	secret, err := k.ServerSecret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("server-key"), secret)

	resolved, err := k.Resolve(context.Background(), "secret://adyen/api")
	require.NoError(t, err)
	assert.Equal(t, "api-key", resolved)

	plain, err := k.Resolve(context.Background(), "inline-value")
	require.NoError(t, err)
	assert.Equal(t, "inline-value", plain)
}
