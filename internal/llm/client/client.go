package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"livepage/internal/prompt"
)

// Provider produces the raw completion text for a payload.
type Provider interface {
	Complete(ctx context.Context, modelID string, payload prompt.Payload) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, modelID string, payload prompt.Payload) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, modelID string, payload prompt.Payload) (string, error) {
	return f(ctx, modelID, payload)
}

// KeySource resolves the API key for a provider id. An empty key with a nil
// error means none is configured.
type KeySource interface {
	APIKey(ctx context.Context, provider string) (string, error)
}

// Variant names one of the supported provider backends.
type Variant string

const (
	VariantAnthropic Variant = "anthropic"
	VariantOpenAI    Variant = "openai"
	VariantFireworks Variant = "fireworks"
	VariantGemini    Variant = "gemini"
)

const (
	FireworksBaseURL    = "https://api.fireworks.ai/inference/v1"
	defaultClaudeTokens = 8192
)

// ProviderConfig describes one configured backend.
type ProviderConfig struct {
	// ID is the credential name and the route target.
	ID        string
	Variant   Variant
	BaseURL   string
	MaxTokens int
}

type modelBuilder func(ctx context.Context, apiKey, modelID string) (model.BaseChatModel, error)

// ChatProvider talks to one backend through an eino chat model. One model is
// built per model id and reused.
type ChatProvider struct {
	cfg   ProviderConfig
	keys  KeySource
	build modelBuilder

	mu     sync.Mutex
	models map[string]model.BaseChatModel
}

func NewChatProvider(cfg ProviderConfig, keys KeySource) (*ChatProvider, error) {
	cfg.ID = strings.TrimSpace(cfg.ID)
	if cfg.ID == "" {
		cfg.ID = string(cfg.Variant)
	}
	if keys == nil {
		return nil, fmt.Errorf("key source is required for provider %s", cfg.ID)
	}

	p := &ChatProvider{cfg: cfg, keys: keys, models: make(map[string]model.BaseChatModel)}
	switch cfg.Variant {
	case VariantAnthropic:
		p.build = p.newClaudeModel
	case VariantOpenAI:
		p.build = p.newOpenAIModel
	case VariantFireworks:
		if strings.TrimSpace(p.cfg.BaseURL) == "" {
			p.cfg.BaseURL = FireworksBaseURL
		}
		p.build = p.newOpenAIModel
	case VariantGemini:
		p.build = p.newGeminiModel
	default:
		return nil, fmt.Errorf("unsupported provider variant: %q", cfg.Variant)
	}
	return p, nil
}

func (p *ChatProvider) ID() string { return p.cfg.ID }

func (p *ChatProvider) Complete(ctx context.Context, modelID string, payload prompt.Payload) (string, error) {
	chat, err := p.chatModel(ctx, modelID)
	if err != nil {
		return "", err
	}
	out, err := chat.Generate(ctx, toMessages(payload))
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", &ProviderError{Kind: KindMalformed, Err: fmt.Errorf("provider returned no message")}
	}
	return out.Content, nil
}

func (p *ChatProvider) chatModel(ctx context.Context, modelID string) (model.BaseChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.models[modelID]; ok {
		return m, nil
	}

	apiKey, err := p.keys.APIKey(ctx, p.cfg.ID)
	if err != nil {
		return nil, &ProviderError{Kind: KindConfig, Err: fmt.Errorf("failed to get API key for %s: %w", p.cfg.ID, err)}
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProviderError{Kind: KindConfig, Err: fmt.Errorf("API key for %s is not configured", p.cfg.ID)}
	}

	m, err := p.build(ctx, apiKey, modelID)
	if err != nil {
		return nil, &ProviderError{Kind: KindConfig, Err: fmt.Errorf("failed to create %s client: %w", p.cfg.ID, err)}
	}
	p.models[modelID] = m
	return m, nil
}

func (p *ChatProvider) newClaudeModel(ctx context.Context, apiKey, modelID string) (model.BaseChatModel, error) {
	maxTokens := p.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeTokens
	}
	cfg := &claude.Config{
		APIKey:    apiKey,
		Model:     modelID,
		MaxTokens: maxTokens,
	}
	if base := strings.TrimSpace(p.cfg.BaseURL); base != "" {
		cfg.BaseURL = &base
	}
	return claude.NewChatModel(ctx, cfg)
}

func (p *ChatProvider) newOpenAIModel(ctx context.Context, apiKey, modelID string) (model.BaseChatModel, error) {
	cfg := &openai.ChatModelConfig{
		APIKey:  apiKey,
		Model:   modelID,
		BaseURL: strings.TrimSpace(p.cfg.BaseURL),
	}
	if p.cfg.MaxTokens > 0 {
		maxTokens := p.cfg.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	return openai.NewChatModel(ctx, cfg)
}

func (p *ChatProvider) newGeminiModel(ctx context.Context, apiKey, modelID string) (model.BaseChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  modelID,
	})
}

func toMessages(payload prompt.Payload) []*schema.Message {
	out := make([]*schema.Message, 0, len(payload.Messages)+1)
	if strings.TrimSpace(payload.System) != "" {
		out = append(out, schema.SystemMessage(payload.System))
	}
	for _, m := range payload.Messages {
		if m.Role == prompt.RoleAssistant {
			out = append(out, schema.AssistantMessage(m.Content, nil))
			continue
		}
		out = append(out, schema.UserMessage(m.Content))
	}
	return out
}
