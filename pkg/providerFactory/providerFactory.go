package providerFactory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ghanemar/stakeledger/pkg/chainRegistry"
	"github.com/ghanemar/stakeledger/pkg/providerRegistry"
	"github.com/ghanemar/stakeledger/pkg/providers"
	"go.uber.org/zap"
)

// AdapterConstructor builds a bare (unwrapped) adapter from its provider
// configuration. Constructors are registered at process start, keyed by
// provider name; last registration for a name wins.
type AdapterConstructor func(cfg *providerRegistry.ProviderConfig, l *zap.Logger) (providers.Adapter, error)

type DisabledProviderError struct {
	ProviderName string
}

func (e *DisabledProviderError) Error() string {
	return fmt.Sprintf("provider '%s' is disabled", e.ProviderName)
}

type UnregisteredAdapterError struct {
	ProviderName string
	Registered   []string
}

func (e *UnregisteredAdapterError) Error() string {
	return fmt.Sprintf("no adapter registered for provider '%s'; registered adapters: %s",
		e.ProviderName, strings.Join(e.Registered, ", "))
}

// ProviderFactory resolves (chain, data kind) to a configured, rate-limited
// adapter. It holds no per-call state; adapters are constructed on demand and
// not pooled.
type ProviderFactory struct {
	chains       *chainRegistry.ChainRegistry
	providerCfgs *providerRegistry.ProviderRegistry
	constructors map[string]AdapterConstructor
	logger       *zap.Logger
}

func NewProviderFactory(
	chains *chainRegistry.ChainRegistry,
	providerCfgs *providerRegistry.ProviderRegistry,
	l *zap.Logger,
) *ProviderFactory {
	return &ProviderFactory{
		chains:       chains,
		providerCfgs: providerCfgs,
		constructors: make(map[string]AdapterConstructor),
		logger:       l,
	}
}

func (f *ProviderFactory) RegisterAdapter(name string, constructor AdapterConstructor) {
	f.constructors[name] = constructor
}

func (f *ProviderFactory) RegisteredAdapters() []string {
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForChain resolves the chain's binding for the data kind and returns the
// provider's adapter wrapped with its rate limit and retry policy.
func (f *ProviderFactory) ForChain(chainId string, kind providers.DataKind) (*providers.Throttled, error) {
	chain, err := f.chains.GetChain(chainId)
	if err != nil {
		return nil, err
	}

	providerName, ok := chain.ProviderFor(string(kind))
	if !ok {
		return nil, fmt.Errorf("chain '%s' has no provider bound for data kind '%s'", chainId, kind)
	}

	providerCfg, err := f.providerCfgs.GetProvider(providerName)
	if err != nil {
		return nil, err
	}
	if !providerCfg.IsEnabled() {
		return nil, &DisabledProviderError{ProviderName: providerName}
	}

	constructor, ok := f.constructors[providerName]
	if !ok {
		return nil, &UnregisteredAdapterError{
			ProviderName: providerName,
			Registered:   f.RegisteredAdapters(),
		}
	}

	adapter, err := constructor(providerCfg, f.logger)
	if err != nil {
		return nil, err
	}

	return providers.NewThrottled(adapter, providerCfg.GetRateLimit(), providerCfg.GetRetryAttempts(), f.logger), nil
}
