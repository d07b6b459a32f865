package services

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "livepage"

// KeyringService resolves provider API keys. Environment variables win over
// keys stored in the OS keyring.
type KeyringService struct {
	envVars   map[string]string
	lookupEnv func(string) (string, bool)
}

// NewKeyringService maps provider ids to the environment variables checked
// before the keyring. Providers without an entry use <PROVIDER>_API_KEY.
func NewKeyringService(envVars map[string]string) *KeyringService {
	vars := make(map[string]string, len(envVars))
	for provider, name := range envVars {
		vars[provider] = name
	}
	return &KeyringService{envVars: vars, lookupEnv: os.LookupEnv}
}

func (s *KeyringService) envVar(provider string) string {
	if name := strings.TrimSpace(s.envVars[provider]); name != "" {
		return name
	}
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(provider)) + "_API_KEY"
}

// APIKey implements client.KeySource. A missing key is not an error.
func (s *KeyringService) APIKey(_ context.Context, provider string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", errors.New("provider is required")
	}
	if v, ok := s.lookupEnv(s.envVar(provider)); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}
	key, err := s.GetApiKey(provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return key, err
}

func (s *KeyringService) StoreApiKey(provider string, apiKey []byte) error {
	if len(apiKey) == 0 {
		return errors.New("API key is empty")
	}
	if provider == "" {
		return errors.New("provider is required")
	}
	return keyring.Set(serviceName, provider, string(apiKey))
}

func (s *KeyringService) GetApiKey(provider string) (string, error) {
	if provider == "" {
		return "", errors.New("provider is required")
	}
	return keyring.Get(serviceName, provider)
}

func (s *KeyringService) DeleteApiKey(provider string) error {
	if provider == "" {
		return errors.New("provider is required")
	}
	err := keyring.Delete(serviceName, provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// ListApiKeys reports, for every known provider that has a key, where the
// key comes from.
func (s *KeyringService) ListApiKeys() ([]map[string]string, error) {
	providers := make([]string, 0, len(s.envVars))
	for provider := range s.envVars {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	var results []map[string]string
	for _, provider := range providers {
		source := ""
		if v, ok := s.lookupEnv(s.envVar(provider)); ok && strings.TrimSpace(v) != "" {
			source = "environment"
		} else if _, err := keyring.Get(serviceName, provider); err == nil {
			source = "keyring"
		}
		if source == "" {
			continue
		}
		results = append(results, map[string]string{
			"provider":    provider,
			"source":      source,
			"description": "API key for " + provider + " used by livepage",
		})
	}
	return results, nil
}
