package backend

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dbjwhs/cql-sub000/internal/optimize"
	"github.com/dbjwhs/cql-sub000/internal/security"
)

// Provider types understood by the registry.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ProviderConfig describes one LLM provider. Credentials are never
// stored in the file; APIKeyEnv names the environment variable that
// holds the key.
type ProviderConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// ModelConfig describes one model offered by a provider. Tier, Speed
// and Cost steer failover ordering.
type ModelConfig struct {
	Name     string `yaml:"name"`
	Code     string `yaml:"code"`
	Provider string `yaml:"provider"`
	Tier     string `yaml:"tier"`
	Speed    string `yaml:"speed"`
	Cost     string `yaml:"cost"`
}

// TierRank orders capability tiers for failover distance.
func (m *ModelConfig) TierRank() int {
	switch m.Tier {
	case "full":
		return 4
	case "excellent":
		return 3
	case "good":
		return 2
	case "usable":
		return 1
	}
	return 0
}

// Registry holds the provider and model catalog.
type Registry struct {
	providers  map[string]*ProviderConfig
	models     map[string]*ModelConfig
	modelOrder []string
}

type registryFile struct {
	Providers []*ProviderConfig `yaml:"providers"`
	Models    []*ModelConfig    `yaml:"models"`
}

// DefaultRegistry returns the built-in catalog used when no
// providers file exists.
func DefaultRegistry() *Registry {
	r := newRegistry()
	r.addProvider(&ProviderConfig{
		Name:      "anthropic",
		Type:      ProviderAnthropic,
		APIKeyEnv: optimize.AnthropicAPIKeyEnvVar,
	})
	r.addProvider(&ProviderConfig{
		Name:      "openai",
		Type:      ProviderOpenAI,
		APIKeyEnv: optimize.OpenAIAPIKeyEnvVar,
	})
	r.addModel(&ModelConfig{
		Name: "claude-sonnet", Code: "claude-3-5-sonnet-latest",
		Provider: "anthropic", Tier: "excellent", Speed: "fast", Cost: "medium",
	})
	r.addModel(&ModelConfig{
		Name: "claude-haiku", Code: "claude-3-5-haiku-latest",
		Provider: "anthropic", Tier: "good", Speed: "fast", Cost: "low",
	})
	r.addModel(&ModelConfig{
		Name: "gpt-4o", Code: "gpt-4o",
		Provider: "openai", Tier: "excellent", Speed: "fast", Cost: "medium",
	})
	r.addModel(&ModelConfig{
		Name: "gpt-4o-mini", Code: "gpt-4o-mini",
		Provider: "openai", Tier: "good", Speed: "fast", Cost: "low",
	})
	return r
}

// LoadRegistry reads the provider catalog from a YAML file. A missing
// file yields the built-in defaults.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRegistry(), nil
		}
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	r := newRegistry()
	for _, p := range file.Providers {
		if p.Type != ProviderAnthropic && p.Type != ProviderOpenAI {
			return nil, fmt.Errorf("provider %q has unsupported type %q", p.Name, p.Type)
		}
		// Loopback endpoints may use plain http; anything remote must
		// pass the https URL check.
		if p.BaseURL != "" && !isLoopbackURL(p.BaseURL) {
			if err := security.ValidateURL(p.BaseURL); err != nil {
				return nil, fmt.Errorf("provider %q has invalid base_url: %w", p.Name, err)
			}
		}
		r.addProvider(p)
	}
	for _, m := range file.Models {
		if _, ok := r.providers[m.Provider]; !ok {
			return nil, fmt.Errorf("model %q references unknown provider %q", m.Name, m.Provider)
		}
		r.addModel(m)
	}
	if len(r.models) == 0 {
		return nil, fmt.Errorf("no models defined in %s", path)
	}
	return r, nil
}

// Save writes the catalog back to a YAML file with owner-only
// permissions.
func (r *Registry) Save(path string) error {
	file := registryFile{}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		file.Providers = append(file.Providers, r.providers[name])
	}
	for _, name := range r.modelOrder {
		file.Models = append(file.Models, r.models[name])
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal providers file: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func newRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*ProviderConfig),
		models:    make(map[string]*ModelConfig),
	}
}

func (r *Registry) addProvider(p *ProviderConfig) {
	r.providers[p.Name] = p
}

func (r *Registry) addModel(m *ModelConfig) {
	if _, exists := r.models[m.Name]; !exists {
		r.modelOrder = append(r.modelOrder, m.Name)
	}
	r.models[m.Name] = m
}

// GetProvider looks up a provider by name.
func (r *Registry) GetProvider(name string) (*ProviderConfig, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// GetModel looks up a model by name.
func (r *Registry) GetModel(name string) (*ModelConfig, bool) {
	m, ok := r.models[name]
	return m, ok
}

// ListModels returns models in declaration order.
func (r *Registry) ListModels() []*ModelConfig {
	models := make([]*ModelConfig, 0, len(r.modelOrder))
	for _, name := range r.modelOrder {
		models = append(models, r.models[name])
	}
	return models
}

// DefaultModel returns the first declared model.
func (r *Registry) DefaultModel() *ModelConfig {
	if len(r.modelOrder) == 0 {
		return nil
	}
	return r.models[r.modelOrder[0]]
}

// Build constructs an optimizer backend for the named model. The
// API key is read from CQL_API_KEY or the provider's own variable.
func (r *Registry) Build(modelName string) (optimize.Backend, *ModelConfig, error) {
	model, ok := r.GetModel(modelName)
	if !ok {
		return nil, nil, fmt.Errorf("model not found: %s", modelName)
	}
	provider, ok := r.GetProvider(model.Provider)
	if !ok {
		return nil, nil, fmt.Errorf("provider not found: %s", model.Provider)
	}

	key := keyFor(provider)
	switch provider.Type {
	case ProviderAnthropic:
		return optimize.NewAnthropicBackend(key, model.Code), model, nil
	case ProviderOpenAI:
		return optimize.NewOpenAIBackend(key, provider.BaseURL, model.Code), model, nil
	}
	return nil, nil, fmt.Errorf("provider %q has unsupported type %q", provider.Name, provider.Type)
}

func isLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func keyFor(provider *ProviderConfig) *security.SecureString {
	if key, ok := security.SecureFromEnv(optimize.APIKeyEnvVar); ok {
		return key
	}
	envVar := provider.APIKeyEnv
	if envVar == "" {
		switch provider.Type {
		case ProviderAnthropic:
			envVar = optimize.AnthropicAPIKeyEnvVar
		case ProviderOpenAI:
			envVar = optimize.OpenAIAPIKeyEnvVar
		}
	}
	key, _ := security.SecureFromEnv(envVar)
	return key
}
