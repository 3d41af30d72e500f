package chainRegistry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ghanemar/stakeledger/internal/config"
	"gopkg.in/yaml.v3"
)

type PeriodType string

const (
	PeriodType_Epoch       PeriodType = "epoch"
	PeriodType_BlockWindow PeriodType = "block_window"
	PeriodType_SlotRange   PeriodType = "slot_range"
)

func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodType_Epoch, PeriodType_BlockWindow, PeriodType_SlotRange:
		return true
	}
	return false
}

// Binding keys accepted under a chain's `providers` map. rpc_url is not a
// provider name but a chain-level endpoint some adapters consume directly.
const (
	BindingKey_Fees    = "fees"
	BindingKey_Mev     = "mev"
	BindingKey_Rewards = "rewards"
	BindingKey_Meta    = "meta"
	BindingKey_RpcUrl  = "rpc_url"
)

var allowedBindingKeys = map[string]bool{
	BindingKey_Fees:    true,
	BindingKey_Mev:     true,
	BindingKey_Rewards: true,
	BindingKey_Meta:    true,
	BindingKey_RpcUrl:  true,
}

type ChainConfig struct {
	ChainId        string            `yaml:"chain_id"`
	PeriodType     PeriodType        `yaml:"period_type"`
	NativeUnit     string            `yaml:"native_unit"`
	NativeDecimals int32             `yaml:"native_decimals"`
	FinalityLag    int64             `yaml:"finality_lag"`
	Providers      map[string]string `yaml:"providers"`
}

// ProviderFor returns the provider name bound to the given data kind.
func (c *ChainConfig) ProviderFor(kind string) (string, bool) {
	name, ok := c.Providers[kind]
	return name, ok
}

func (c *ChainConfig) RpcUrl() string {
	return c.Providers[BindingKey_RpcUrl]
}

type chainConfigDocument struct {
	Chains []*ChainConfig `yaml:"chains"`
}

// ChainRegistry is built once at startup and never mutated afterwards; it is
// safe to share by reference across ingestion workers without locking.
type ChainRegistry struct {
	chains map[string]*ChainConfig
	ids    []string
}

func NewChainRegistryFromFile(path string) (*ChainRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, config.NewConfigError(path, "", "unable to read chain configuration", err)
	}
	return NewChainRegistry(path, data)
}

func NewChainRegistry(sourceName string, data []byte) (*ChainRegistry, error) {
	var doc chainConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, config.NewConfigError(sourceName, "chains", "malformed chain configuration document", err)
	}
	if doc.Chains == nil {
		return nil, config.NewConfigError(sourceName, "chains", "missing required top-level key 'chains'", nil)
	}
	if len(doc.Chains) == 0 {
		return nil, config.NewConfigError(sourceName, "chains", "chain configuration is empty", nil)
	}

	chains := make(map[string]*ChainConfig)
	for i, chain := range doc.Chains {
		if err := validateChainConfig(sourceName, i, chain); err != nil {
			return nil, err
		}
		if _, ok := chains[chain.ChainId]; ok {
			return nil, config.NewConfigError(sourceName, "chain_id",
				fmt.Sprintf("duplicate chain_id '%s'", chain.ChainId), nil)
		}
		chains[chain.ChainId] = chain
	}

	ids := make([]string, 0, len(chains))
	for id := range chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &ChainRegistry{
		chains: chains,
		ids:    ids,
	}, nil
}

func validateChainConfig(sourceName string, index int, chain *ChainConfig) error {
	fieldAt := func(field string) string {
		return fmt.Sprintf("chains[%d].%s", index, field)
	}

	chain.ChainId = strings.TrimSpace(chain.ChainId)
	chain.NativeUnit = strings.TrimSpace(chain.NativeUnit)

	if chain.ChainId == "" {
		return config.NewConfigError(sourceName, fieldAt("chain_id"), "chain_id must be non-empty", nil)
	}
	if !chain.PeriodType.IsValid() {
		return config.NewConfigError(sourceName, fieldAt("period_type"),
			fmt.Sprintf("invalid period_type '%s' (expected epoch, block_window or slot_range)", chain.PeriodType), nil)
	}
	if chain.NativeUnit == "" {
		return config.NewConfigError(sourceName, fieldAt("native_unit"), "native_unit must be non-empty", nil)
	}
	if chain.NativeDecimals < 0 || chain.NativeDecimals > 18 {
		return config.NewConfigError(sourceName, fieldAt("native_decimals"),
			fmt.Sprintf("native_decimals must be in [0,18], got %d", chain.NativeDecimals), nil)
	}
	if chain.FinalityLag < 0 {
		return config.NewConfigError(sourceName, fieldAt("finality_lag"),
			fmt.Sprintf("finality_lag must be >= 0, got %d", chain.FinalityLag), nil)
	}
	for key, value := range chain.Providers {
		if !allowedBindingKeys[key] {
			return config.NewConfigError(sourceName, fieldAt("providers"),
				fmt.Sprintf("unknown provider binding key '%s'", key), nil)
		}
		if strings.TrimSpace(value) == "" {
			return config.NewConfigError(sourceName, fieldAt("providers."+key), "binding value must be non-empty", nil)
		}
		chain.Providers[key] = strings.TrimSpace(value)
	}
	return nil
}

func (r *ChainRegistry) GetChain(chainId string) (*ChainConfig, error) {
	chain, ok := r.chains[chainId]
	if !ok {
		return nil, fmt.Errorf("chain '%s' not found; available chains: %s", chainId, strings.Join(r.ids, ", "))
	}
	return chain, nil
}

func (r *ChainRegistry) HasChain(chainId string) bool {
	_, ok := r.chains[chainId]
	return ok
}

// ListChains returns chain ids in lexicographic order.
func (r *ChainRegistry) ListChains() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

func (r *ChainRegistry) Len() int {
	return len(r.chains)
}
