package contract

import (
	"fmt"
	"slices"
	"strings"
)

// Provider names an LLM backend the server routes chat and extraction calls to.
type Provider string

// Providers accepted by the backend.
const (
	ProviderUpstage   Provider = "upstage"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// DefaultProvider is used when no provider has been selected.
const DefaultProvider = ProviderUpstage

var providers = []Provider{
	ProviderUpstage,
	ProviderOllama,
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGemini,
}

var providerLabels = map[Provider]string{
	ProviderUpstage:   "Upstage Solar",
	ProviderOllama:    "Ollama",
	ProviderOpenAI:    "OpenAI",
	ProviderAnthropic: "Anthropic Claude",
	ProviderGemini:    "Google Gemini",
}

// Providers returns the accepted provider names in display order.
func Providers() []Provider {
	return slices.Clone(providers)
}

// Label returns the human-readable provider name.
func (p Provider) Label() string {
	if label, ok := providerLabels[p]; ok {
		return label
	}
	return string(p)
}

// ParseProvider validates s (case-insensitive, surrounding space ignored)
// as a known provider.
func ParseProvider(s string) (Provider, error) {
	v := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(providers, v) {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return v, nil
}
