package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgsecrets "github.com/streamtip/swap-adapter/pkg/secrets"
)

// Credential holds the aggregator API credential.
type Credential struct {
	APIKey string
}

// Resolver resolves the Trocador API credential. When a secret name is
// configured the credential comes from the secrets provider (cached with a
// TTL so rotation is picked up without a restart); otherwise the
// environment-supplied key is used as-is.
//
// Secret JSON format: {"api_key": "..."}
type Resolver struct {
	logger     *zap.Logger
	provider   pkgsecrets.Provider
	cache      *pkgsecrets.Cache[Credential]
	secretName string
	envKey     string
}

// NewResolver constructs a credential resolver. provider may be nil when no
// secret name is configured.
func NewResolver(
	logger *zap.Logger,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[Credential],
	secretName string,
	envKey string,
) *Resolver {
	return &Resolver{
		logger:     logger,
		provider:   provider,
		cache:      cache,
		secretName: secretName,
		envKey:     envKey,
	}
}

// Resolve returns the current aggregator credential. An empty credential is
// not an error here; the gateway treats it as "unavailable".
func (r *Resolver) Resolve(ctx context.Context) (Credential, error) {
	if r.secretName == "" || r.provider == nil {
		return Credential{APIKey: r.envKey}, nil
	}

	if cred, ok := r.cache.Get(r.secretName); ok {
		return cred, nil
	}

	raw, err := r.provider.GetSecret(ctx, r.secretName)
	if err != nil {
		r.logger.Error("secrets.resolve_failed",
			zap.String("secret", r.secretName),
			zap.Error(err))
		return Credential{}, fmt.Errorf("resolve aggregator credential: %w", err)
	}

	cred := Credential{APIKey: raw["api_key"]}
	if cred.APIKey == "" {
		return Credential{}, fmt.Errorf("secret [%s] missing required field 'api_key'", r.secretName)
	}

	r.cache.Put(r.secretName, cred)
	return cred, nil
}
