package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	screrrors "github.com/trieloff/scriptrag/internal/errors"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderClaudeCode calls the local Claude Code model-serving endpoint.
	ProviderClaudeCode ProviderType = "claude_code"

	// ProviderGitHubModels calls the GitHub Models inference API.
	ProviderGitHubModels ProviderType = "github_models"

	// ProviderOpenAICompatible calls any OpenAI-embeddings-wire-format
	// endpoint the user points it at (self-hosted, Azure OpenAI, etc.).
	ProviderOpenAICompatible ProviderType = "openai_compatible"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings, the guaranteed-available
	// fallback when every network provider fails.
	ProviderStatic ProviderType = "static"
)

// providerOrder is the fallback chain NewEmbedder walks when no explicit
// provider is requested: try the hosted providers first, fall back to a
// local Ollama server, and finally the deterministic static embedder so
// indexing never hard-fails for lack of network access.
var providerOrder = []ProviderType{
	ProviderClaudeCode,
	ProviderGitHubModels,
	ProviderOpenAICompatible,
	ProviderOllama,
	ProviderStatic,
}

// NewEmbedder creates an embedder for the requested provider. The
// SCRIPTRAG_EMBEDDER environment variable overrides provider selection;
// SCRIPTRAG_EMBED_CACHE=false disables the query-embedding cache wrapper.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	requested := provider
	if envProvider := os.Getenv("SCRIPTRAG_EMBEDDER"); envProvider != "" {
		requested = ParseProvider(envProvider)
	}

	embedder, err := newProvider(ctx, requested, model)
	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}
	return embedder, nil
}

// NewEmbedderWithFallback tries each provider in providerOrder starting
// from the requested one, falling back through the remaining providers
// (culminating in static) on failure, and logging which provider was
// finally selected — the "all_providers_failed" error is only returned
// if even the static embedder cannot be constructed, which never happens.
func NewEmbedderWithFallback(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	start := 0
	for i, p := range providerOrder {
		if p == provider {
			start = i
			break
		}
	}

	attempts := map[string]error{}
	var order []string
	for _, p := range providerOrder[start:] {
		order = append(order, string(p))
		embedder, err := newProvider(ctx, p, model)
		if err == nil {
			if !isCacheDisabled() {
				embedder = NewCachedEmbedderWithDefaults(embedder)
			}
			if p != provider {
				slog.Warn("scriptrag_embedder_fallback",
					slog.String("requested", string(provider)), slog.String("used", string(p)))
			}
			return embedder, nil
		}
		attempts[string(p)] = err
	}

	return nil, screrrors.AllProvidersFailed(order, attempts)
}

func newProvider(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	switch provider {
	case ProviderClaudeCode:
		return newClaudeCodeEmbedder(model)
	case ProviderGitHubModels:
		return newGitHubModelsEmbedder(model)
	case ProviderOpenAICompatible:
		return newOpenAICompatibleEmbedder(model)
	case ProviderOllama:
		return newOllamaEmbedder(ctx, model)
	case ProviderStatic:
		return NewStaticEmbedder768(), nil
	default:
		return newOllamaEmbedder(ctx, model)
	}
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("SCRIPTRAG_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newClaudeCodeEmbedder builds an OpenAICompatibleEmbedder preset for the
// local Claude Code model-serving endpoint.
func newClaudeCodeEmbedder(model string) (Embedder, error) {
	cfg := OpenAICompatibleConfig{
		Tag:     string(ProviderClaudeCode),
		BaseURL: envOr("SCRIPTRAG_CLAUDE_CODE_BASE_URL", "http://localhost:8787/v1"),
		APIKey:  resolveAPIKey("SCRIPTRAG_CLAUDE_CODE_API_KEY"),
		Model:   firstNonEmpty(os.Getenv("SCRIPTRAG_CLAUDE_CODE_MODEL"), model, "claude-embedding-v1"),
	}
	return NewOpenAICompatibleEmbedder(cfg)
}

// newGitHubModelsEmbedder builds an OpenAICompatibleEmbedder preset for
// the GitHub Models inference API.
func newGitHubModelsEmbedder(model string) (Embedder, error) {
	cfg := OpenAICompatibleConfig{
		Tag:     string(ProviderGitHubModels),
		BaseURL: envOr("SCRIPTRAG_GITHUB_MODELS_BASE_URL", "https://models.inference.ai.azure.com"),
		APIKey:  resolveAPIKey("GITHUB_TOKEN"),
		Model:   firstNonEmpty(os.Getenv("SCRIPTRAG_GITHUB_MODELS_MODEL"), model, "text-embedding-3-small"),
	}
	return NewOpenAICompatibleEmbedder(cfg)
}

// newOpenAICompatibleEmbedder builds an OpenAICompatibleEmbedder against a
// user-supplied endpoint — for self-hosted or Azure OpenAI deployments.
func newOpenAICompatibleEmbedder(model string) (Embedder, error) {
	cfg := OpenAICompatibleConfig{
		Tag:     string(ProviderOpenAICompatible),
		BaseURL: os.Getenv("SCRIPTRAG_OPENAI_COMPATIBLE_BASE_URL"),
		APIKey:  resolveAPIKey("SCRIPTRAG_OPENAI_COMPATIBLE_API_KEY"),
		Model:   firstNonEmpty(os.Getenv("SCRIPTRAG_OPENAI_COMPATIBLE_MODEL"), model, "text-embedding-3-small"),
	}
	return NewOpenAICompatibleEmbedder(cfg)
}

func newOllamaEmbedder(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" && isOllamaModelName(model) {
		cfg.Model = model
	}
	if host := os.Getenv("SCRIPTRAG_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("SCRIPTRAG_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}
	if timeoutStr := os.Getenv("SCRIPTRAG_OLLAMA_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w", err)
	}
	return embedder, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewDefaultEmbedder creates the guaranteed-available static embedder.
//
// Deprecated: prefer NewEmbedderWithFallback(ctx, cfg.Embeddings.Provider,
// cfg.Embeddings.Model), which tries network providers before falling
// back to static.
func NewDefaultEmbedder(ctx context.Context) (Embedder, error) {
	return NewEmbedder(ctx, ProviderStatic, "")
}

// ParseProvider converts a string to ProviderType, defaulting unrecognized
// values to ProviderOllama so a typo'd config value still produces a
// locally-runnable embedder rather than failing closed.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "claude_code", "claude-code":
		return ProviderClaudeCode
	case "github_models", "github-models":
		return ProviderGitHubModels
	case "openai_compatible", "openai-compatible", "openai":
		return ProviderOpenAICompatible
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// String returns the string representation of ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// isOllamaModelName checks if a model name looks like an Ollama model.
// Ollama models carry a ":" tag (e.g. "qwen3-embedding:8b"); GGUF-style
// names with version suffixes ("nomic-embed-text-v1.5") are not.
func isOllamaModelName(model string) bool {
	if strings.Contains(model, ":") {
		return true
	}
	if strings.Contains(model, "-v") && (strings.Contains(model, ".") || strings.HasSuffix(model, "-v1") || strings.HasSuffix(model, "-v2")) {
		return false
	}
	if strings.HasSuffix(strings.ToLower(model), ".gguf") {
		return false
	}
	return false
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	out := make([]string, len(providerOrder))
	for i, p := range providerOrder {
		out[i] = string(p)
	}
	return out
}

// IsValidProvider checks if a provider name is valid.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder, surfaced by the
// "scriptrag status" CLI command.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch v := inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	case *OpenAICompatibleEmbedder:
		info.Provider = ParseProvider(v.cfg.Tag)
	default:
		info.Provider = ProviderStatic
	}

	return info
}
