package models

// LLMModel is one model identifier the gateway can route.
type LLMModel struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	ProviderID   string `json:"providerId"`
	ProviderName string `json:"providerName"`
	Default      bool   `json:"default"`
}

// LLMModelGroup groups models by their provider for presentation.
type LLMModelGroup struct {
	ProviderID   string     `json:"providerId"`
	ProviderName string     `json:"providerName"`
	Prefixes     []string   `json:"prefixes"`
	Models       []LLMModel `json:"models"`
}
