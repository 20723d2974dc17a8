package secrets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgsecrets "github.com/streamtip/swap-adapter/pkg/secrets"
)

type mockProvider struct {
	secrets map[string]map[string]string
	err     error
	calls   int
}

func (m *mockProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.secrets[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("secret not found: %s", key)
}

func newCache() *pkgsecrets.Cache[Credential] {
	return pkgsecrets.NewCache[Credential](5 * time.Minute)
}

func TestResolver_EnvFallback(t *testing.T) {
	mock := &mockProvider{}
	r := NewResolver(zap.NewNop(), mock, newCache(), "", "env-key-123")

	cred, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "env-key-123", cred.APIKey)
	assert.Equal(t, 0, mock.calls, "env fallback must not call the provider")
}

func TestResolver_FetchFromProvider(t *testing.T) {
	mock := &mockProvider{
		secrets: map[string]map[string]string{
			"prod/trocador": {"api_key": "sm-key-456"},
		},
	}
	r := NewResolver(zap.NewNop(), mock, newCache(), "prod/trocador", "")

	cred, err := r.Resolve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "sm-key-456", cred.APIKey)
	assert.Equal(t, 1, mock.calls)
}

func TestResolver_CacheHitSkipsProvider(t *testing.T) {
	mock := &mockProvider{
		secrets: map[string]map[string]string{
			"prod/trocador": {"api_key": "sm-key-456"},
		},
	}
	r := NewResolver(zap.NewNop(), mock, newCache(), "prod/trocador", "")

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	cred, err := r.Resolve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sm-key-456", cred.APIKey)
	assert.Equal(t, 1, mock.calls, "second resolve must come from cache")
}

func TestResolver_ProviderError(t *testing.T) {
	mock := &mockProvider{err: fmt.Errorf("aws unreachable")}
	r := NewResolver(zap.NewNop(), mock, newCache(), "prod/trocador", "")

	_, err := r.Resolve(context.Background())

	require.Error(t, err)
}

func TestResolver_MissingAPIKeyField(t *testing.T) {
	mock := &mockProvider{
		secrets: map[string]map[string]string{
			"prod/trocador": {"unrelated": "x"},
		},
	}
	r := NewResolver(zap.NewNop(), mock, newCache(), "prod/trocador", "")

	_, err := r.Resolve(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}
