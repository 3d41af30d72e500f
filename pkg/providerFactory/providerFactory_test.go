package providerFactory

import (
	"context"
	"testing"

	"github.com/ghanemar/stakeledger/pkg/chainRegistry"
	"github.com/ghanemar/stakeledger/pkg/providerRegistry"
	"github.com/ghanemar/stakeledger/pkg/providers"
	"github.com/ghanemar/stakeledger/pkg/storage"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testChainConfig = `
chains:
  - chain_id: solana-mainnet
    period_type: epoch
    native_unit: SOL
    native_decimals: 9
    finality_lag: 32
    providers:
      rewards: solanabeach
      mev: jito
      fees: disabled-vendor
`

const testProviderConfig = `
providers:
  - provider_name: solanabeach
    base_url: https://api.solanabeach.io
    rate_limit: 5
    retry_attempts: 2
  - provider_name: jito
    base_url: https://kobe.mainnet.jito.network
  - provider_name: disabled-vendor
    enabled: false
`

type nullAdapter struct {
	name string
}

func (n *nullAdapter) Name() string { return n.name }

func (n *nullAdapter) EventTypeRules() map[string]storage.EventType {
	return map[string]storage.EventType{}
}

func (n *nullAdapter) Fetch(ctx context.Context, req *providers.FetchRequest) (*providers.Page, error) {
	return &providers.Page{}, nil
}

func setupFactory(t *testing.T) *ProviderFactory {
	t.Helper()

	chains, err := chainRegistry.NewChainRegistry("chains.yaml", []byte(testChainConfig))
	assert.Nil(t, err)
	providerCfgs, err := providerRegistry.NewProviderRegistry("providers.yaml", []byte(testProviderConfig))
	assert.Nil(t, err)

	return NewProviderFactory(chains, providerCfgs, zap.NewNop())
}

func Test_ProviderFactory(t *testing.T) {
	t.Run("Should construct a throttled adapter for a bound provider", func(t *testing.T) {
		factory := setupFactory(t)
		factory.RegisterAdapter("solanabeach", func(cfg *providerRegistry.ProviderConfig, l *zap.Logger) (providers.Adapter, error) {
			assert.Equal(t, "https://api.solanabeach.io", cfg.BaseUrl)
			assert.Equal(t, 5, cfg.GetRateLimit())
			assert.Equal(t, 2, cfg.GetRetryAttempts())
			return &nullAdapter{name: "solanabeach"}, nil
		})

		adapter, err := factory.ForChain("solana-mainnet", providers.DataKind_Rewards)
		assert.Nil(t, err)
		assert.Equal(t, "solanabeach", adapter.Name())
	})
	t.Run("Should fail for an unknown chain", func(t *testing.T) {
		factory := setupFactory(t)
		_, err := factory.ForChain("cosmos-hub", providers.DataKind_Rewards)
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
	t.Run("Should fail when no provider is bound for the kind", func(t *testing.T) {
		factory := setupFactory(t)
		_, err := factory.ForChain("solana-mainnet", providers.DataKind_Meta)
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "no provider bound")
	})
	t.Run("Should fail with a disabled-provider error, not a silent no-op", func(t *testing.T) {
		factory := setupFactory(t)
		factory.RegisterAdapter("disabled-vendor", func(cfg *providerRegistry.ProviderConfig, l *zap.Logger) (providers.Adapter, error) {
			return &nullAdapter{name: "disabled-vendor"}, nil
		})

		_, err := factory.ForChain("solana-mainnet", providers.DataKind_Fees)
		assert.NotNil(t, err)
		disabledErr, ok := err.(*DisabledProviderError)
		assert.True(t, ok)
		assert.Equal(t, "disabled-vendor", disabledErr.ProviderName)
	})
	t.Run("Should list registered adapters in the unregistered-adapter error", func(t *testing.T) {
		factory := setupFactory(t)
		factory.RegisterAdapter("solanabeach", func(cfg *providerRegistry.ProviderConfig, l *zap.Logger) (providers.Adapter, error) {
			return &nullAdapter{name: "solanabeach"}, nil
		})

		_, err := factory.ForChain("solana-mainnet", providers.DataKind_Mev)
		assert.NotNil(t, err)
		unregisteredErr, ok := err.(*UnregisteredAdapterError)
		assert.True(t, ok)
		assert.Equal(t, "jito", unregisteredErr.ProviderName)
		assert.Equal(t, []string{"solanabeach"}, unregisteredErr.Registered)
	})
	t.Run("Should let the last registration for a name win", func(t *testing.T) {
		factory := setupFactory(t)
		factory.RegisterAdapter("solanabeach", func(cfg *providerRegistry.ProviderConfig, l *zap.Logger) (providers.Adapter, error) {
			return &nullAdapter{name: "first"}, nil
		})
		factory.RegisterAdapter("solanabeach", func(cfg *providerRegistry.ProviderConfig, l *zap.Logger) (providers.Adapter, error) {
			return &nullAdapter{name: "second"}, nil
		})

		adapter, err := factory.ForChain("solana-mainnet", providers.DataKind_Rewards)
		assert.Nil(t, err)
		assert.Equal(t, "second", adapter.Name())
	})
}
