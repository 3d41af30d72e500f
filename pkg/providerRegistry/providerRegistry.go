package providerRegistry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ghanemar/stakeledger/internal/config"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRateLimit     = 10
	DefaultTimeoutSecs   = 30
	DefaultRetryAttempts = 3
)

type ProviderConfig struct {
	ProviderName  string            `yaml:"provider_name"`
	Enabled       *bool             `yaml:"enabled"`
	BaseUrl       string            `yaml:"base_url"`
	ApiKey        string            `yaml:"api_key"`
	RateLimit     *int              `yaml:"rate_limit"`
	TimeoutSecs   *int              `yaml:"timeout"`
	RetryAttempts *int              `yaml:"retry_attempts"`
	Metadata      map[string]string `yaml:"metadata"`
}

func (p *ProviderConfig) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

func (p *ProviderConfig) GetRateLimit() int {
	if p.RateLimit == nil {
		return DefaultRateLimit
	}
	return *p.RateLimit
}

func (p *ProviderConfig) GetTimeoutSecs() int {
	if p.TimeoutSecs == nil {
		return DefaultTimeoutSecs
	}
	return *p.TimeoutSecs
}

func (p *ProviderConfig) GetRetryAttempts() int {
	if p.RetryAttempts == nil {
		return DefaultRetryAttempts
	}
	return *p.RetryAttempts
}

type providerConfigDocument struct {
	Providers []*ProviderConfig `yaml:"providers"`
}

// ProviderRegistry is immutable after construction, same sharing contract as
// the chain registry.
type ProviderRegistry struct {
	providers map[string]*ProviderConfig
	names     []string
}

func NewProviderRegistryFromFile(path string) (*ProviderRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, config.NewConfigError(path, "", "unable to read provider configuration", err)
	}
	return NewProviderRegistry(path, data)
}

func NewProviderRegistry(sourceName string, data []byte) (*ProviderRegistry, error) {
	var doc providerConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, config.NewConfigError(sourceName, "providers", "malformed provider configuration document", err)
	}
	if doc.Providers == nil {
		return nil, config.NewConfigError(sourceName, "providers", "missing required top-level key 'providers'", nil)
	}
	if len(doc.Providers) == 0 {
		return nil, config.NewConfigError(sourceName, "providers", "provider configuration is empty", nil)
	}

	providers := make(map[string]*ProviderConfig)
	for i, provider := range doc.Providers {
		if err := validateProviderConfig(sourceName, i, provider); err != nil {
			return nil, err
		}
		if _, ok := providers[provider.ProviderName]; ok {
			return nil, config.NewConfigError(sourceName, "provider_name",
				fmt.Sprintf("duplicate provider_name '%s'", provider.ProviderName), nil)
		}
		providers[provider.ProviderName] = provider
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	return &ProviderRegistry{
		providers: providers,
		names:     names,
	}, nil
}

func validateProviderConfig(sourceName string, index int, provider *ProviderConfig) error {
	fieldAt := func(field string) string {
		return fmt.Sprintf("providers[%d].%s", index, field)
	}

	provider.ProviderName = strings.TrimSpace(provider.ProviderName)
	provider.BaseUrl = strings.TrimSpace(provider.BaseUrl)

	if provider.ProviderName == "" {
		return config.NewConfigError(sourceName, fieldAt("provider_name"), "provider_name must be non-empty", nil)
	}
	if provider.BaseUrl != "" && !strings.HasPrefix(provider.BaseUrl, "http://") && !strings.HasPrefix(provider.BaseUrl, "https://") {
		return config.NewConfigError(sourceName, fieldAt("base_url"),
			fmt.Sprintf("base_url must start with http:// or https://, got '%s'", provider.BaseUrl), nil)
	}
	if provider.RateLimit != nil && *provider.RateLimit < 1 {
		return config.NewConfigError(sourceName, fieldAt("rate_limit"),
			fmt.Sprintf("rate_limit must be >= 1, got %d", *provider.RateLimit), nil)
	}
	if provider.TimeoutSecs != nil && (*provider.TimeoutSecs < 1 || *provider.TimeoutSecs > 300) {
		return config.NewConfigError(sourceName, fieldAt("timeout"),
			fmt.Sprintf("timeout must be in [1,300] seconds, got %d", *provider.TimeoutSecs), nil)
	}
	if provider.RetryAttempts != nil && (*provider.RetryAttempts < 0 || *provider.RetryAttempts > 10) {
		return config.NewConfigError(sourceName, fieldAt("retry_attempts"),
			fmt.Sprintf("retry_attempts must be in [0,10], got %d", *provider.RetryAttempts), nil)
	}
	return nil
}

func (r *ProviderRegistry) GetProvider(name string) (*ProviderConfig, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider '%s' not found; available providers: %s", name, strings.Join(r.names, ", "))
	}
	return provider, nil
}

func (r *ProviderRegistry) HasProvider(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// ListProviders returns provider names in lexicographic order.
func (r *ProviderRegistry) ListProviders() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

func (r *ProviderRegistry) Len() int {
	return len(r.providers)
}
