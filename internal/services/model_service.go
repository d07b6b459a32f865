package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"livepage/internal/assets"
	"livepage/internal/llm/client"
	"livepage/internal/models"
)

// ModelCatalogService exposes the embedded provider catalog and derives the
// gateway's routing table from it.
type ModelCatalogService interface {
	Startup(ctx context.Context) error
	ListModelGroups() ([]models.LLMModelGroup, error)
	GetModel(modelID string) (*models.LLMModel, error)
	DefaultModel() string
	Routes() []client.Route
	ProviderConfigs() []client.ProviderConfig
	KeyEnvVars() map[string]string
}

type modelCatalogService struct {
	data      []byte
	overrides CatalogOverrides
	ctx       context.Context

	mu            sync.RWMutex
	providerOrder []string
	providers     map[string]*catalogProvider
	models        map[string]*catalogModel
	defaultModel  string
}

type catalogProvider struct {
	ID          string
	DisplayName string
	Variant     client.Variant
	APIKeyEnv   string
	BaseURL     string
	MaxTokens   int
	Prefixes    []string
}

type catalogModel struct {
	ID          string
	ProviderID  string
	DisplayName string
	Default     bool
}

type rawModelFile struct {
	Providers []rawProvider `json:"providers"`
}

type rawProvider struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Variant     string     `json:"variant"`
	APIKeyEnv   string     `json:"apiKeyEnv"`
	BaseURL     string     `json:"baseURL,omitempty"`
	MaxTokens   int        `json:"maxTokens,omitempty"`
	Prefixes    []string   `json:"prefixes"`
	Models      []rawModel `json:"models"`
}

type rawModel struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Default     bool   `json:"default,omitempty"`
}

// CatalogOverrides adjusts the embedded catalog from configuration.
type CatalogOverrides struct {
	DefaultModel     string
	FireworksBaseURL string
}

// NewModelCatalogService reads the embedded catalog.
func NewModelCatalogService(overrides CatalogOverrides) ModelCatalogService {
	return newModelCatalogService(assets.ModelsData, overrides)
}

func newModelCatalogService(data []byte, overrides CatalogOverrides) *modelCatalogService {
	return &modelCatalogService{
		data:      data,
		overrides: overrides,
		providers: make(map[string]*catalogProvider),
		models:    make(map[string]*catalogModel),
	}
}

func (s *modelCatalogService) Startup(ctx context.Context) error {
	s.ctx = ctx

	var parsed rawModelFile
	if err := json.Unmarshal(s.data, &parsed); err != nil {
		return fmt.Errorf("parse models asset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.providerOrder = make([]string, 0, len(parsed.Providers))
	catalogDefault := ""
	for _, provider := range parsed.Providers {
		providerID := strings.TrimSpace(provider.ID)
		if providerID == "" {
			continue
		}
		if _, dup := s.providers[providerID]; dup {
			return fmt.Errorf("provider %s is listed twice", providerID)
		}
		variant := client.Variant(strings.TrimSpace(provider.Variant))
		if variant == "" {
			variant = client.Variant(providerID)
		}
		baseURL := strings.TrimSpace(provider.BaseURL)
		if variant == client.VariantFireworks && strings.TrimSpace(s.overrides.FireworksBaseURL) != "" {
			baseURL = strings.TrimSpace(s.overrides.FireworksBaseURL)
		}
		s.providers[providerID] = &catalogProvider{
			ID:          providerID,
			DisplayName: strings.TrimSpace(provider.DisplayName),
			Variant:     variant,
			APIKeyEnv:   strings.TrimSpace(provider.APIKeyEnv),
			BaseURL:     baseURL,
			MaxTokens:   provider.MaxTokens,
			Prefixes:    trimmedNonEmpty(provider.Prefixes),
		}
		s.providerOrder = append(s.providerOrder, providerID)

		for _, mdl := range provider.Models {
			id := strings.TrimSpace(mdl.ID)
			if id == "" {
				continue
			}
			s.models[id] = &catalogModel{
				ID:          id,
				ProviderID:  providerID,
				DisplayName: strings.TrimSpace(mdl.DisplayName),
				Default:     mdl.Default,
			}
			if mdl.Default && catalogDefault == "" {
				catalogDefault = id
			}
		}
	}

	s.defaultModel = strings.TrimSpace(s.overrides.DefaultModel)
	if s.defaultModel == "" {
		s.defaultModel = catalogDefault
	}
	return nil
}

func (s *modelCatalogService) ListModelGroups() ([]models.LLMModelGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]models.LLMModelGroup, 0, len(s.providerOrder))
	for _, providerID := range s.providerOrder {
		provider := s.providers[providerID]
		group := models.LLMModelGroup{
			ProviderID:   providerID,
			ProviderName: s.providerName(providerID),
			Prefixes:     append([]string(nil), provider.Prefixes...),
		}
		var modelsForProvider []models.LLMModel
		for _, mdl := range s.models {
			if mdl.ProviderID != providerID {
				continue
			}
			modelsForProvider = append(modelsForProvider, s.toLLMModel(mdl))
		}
		sort.SliceStable(modelsForProvider, func(i, j int) bool {
			return strings.ToLower(modelsForProvider[i].DisplayName) < strings.ToLower(modelsForProvider[j].DisplayName)
		})
		group.Models = modelsForProvider
		groups = append(groups, group)
	}
	return groups, nil
}

func (s *modelCatalogService) GetModel(modelID string) (*models.LLMModel, error) {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		return nil, fmt.Errorf("model id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	catalog, ok := s.models[modelID]
	if !ok {
		return nil, nil
	}
	model := s.toLLMModel(catalog)
	return &model, nil
}

func (s *modelCatalogService) DefaultModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultModel
}

// Routes lists one route per provider prefix, in catalog order.
func (s *modelCatalogService) Routes() []client.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var routes []client.Route
	for _, providerID := range s.providerOrder {
		for _, prefix := range s.providers[providerID].Prefixes {
			routes = append(routes, client.Route{Prefix: prefix, Provider: providerID})
		}
	}
	return routes
}

func (s *modelCatalogService) ProviderConfigs() []client.ProviderConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]client.ProviderConfig, 0, len(s.providerOrder))
	for _, providerID := range s.providerOrder {
		p := s.providers[providerID]
		out = append(out, client.ProviderConfig{
			ID:        p.ID,
			Variant:   p.Variant,
			BaseURL:   p.BaseURL,
			MaxTokens: p.MaxTokens,
		})
	}
	return out
}

// KeyEnvVars maps provider ids to the environment variable holding their key.
func (s *modelCatalogService) KeyEnvVars() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.providers))
	for id, p := range s.providers {
		if p.APIKeyEnv != "" {
			out[id] = p.APIKeyEnv
		}
	}
	return out
}

func (s *modelCatalogService) providerName(providerID string) string {
	if p, ok := s.providers[providerID]; ok && strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return providerID
}

func (s *modelCatalogService) toLLMModel(mdl *catalogModel) models.LLMModel {
	return models.LLMModel{
		ID:           mdl.ID,
		DisplayName:  mdl.DisplayName,
		ProviderID:   mdl.ProviderID,
		ProviderName: s.providerName(mdl.ProviderID),
		Default:      mdl.ID == s.defaultModel,
	}
}

func trimmedNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// NewGateway builds one chat provider per catalog entry and routes the
// catalog's prefixes to them.
func NewGateway(catalog ModelCatalogService, keys client.KeySource, opts client.Options) (*client.Gateway, error) {
	providers := make(map[string]client.Provider)
	for _, cfg := range catalog.ProviderConfigs() {
		p, err := client.NewChatProvider(cfg, keys)
		if err != nil {
			return nil, err
		}
		providers[cfg.ID] = p
	}
	return client.NewGateway(catalog.Routes(), providers, opts)
}
