package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// OpenAICompatibleConfig configures a single HTTP-based embedding provider
// that speaks the OpenAI embeddings wire format (POST {base_url}/embeddings
// with {"input": [...], "model": "..."}, response {"data": [{"embedding":
// [...]}]}). claude_code, github_models, and openai_compatible are all
// instances of this client with different default endpoints and auth.
type OpenAICompatibleConfig struct {
	// Tag is the stable provider name used in error messages and EmbedderInfo.
	Tag string

	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
}

// OpenAICompatibleEmbedder is the HTTP client shared by the claude_code,
// github_models, and openai_compatible provider tags (§ Embedding
// subsystem's provider fallback chain).
type OpenAICompatibleEmbedder struct {
	client *http.Client
	cfg    OpenAICompatibleConfig

	mu           sync.RWMutex
	closed       bool
	batchIndex   int
	isFinalBatch bool
}

var _ Embedder = (*OpenAICompatibleEmbedder)(nil)

type openAIEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAICompatibleEmbedder builds a client against cfg. BaseURL and
// Model must already be resolved by the caller (env var overrides,
// config-file defaults).
func NewOpenAICompatibleEmbedder(cfg OpenAICompatibleConfig) (*OpenAICompatibleEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", cfg.Tag)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWarmTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}

	return &OpenAICompatibleEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}, nil
}

func (e *OpenAICompatibleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("%s: empty embedding response", e.cfg.Tag)
	}
	return vecs[0], nil
}

func (e *OpenAICompatibleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("%s: embedder is closed", e.cfg.Tag)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	retryCfg := DefaultRetryConfig()
	retryCfg.MaxRetries = e.cfg.MaxRetries - 1
	if retryCfg.MaxRetries < 0 {
		retryCfg.MaxRetries = 0
	}

	var vecs [][]float32
	err := DownloadWithRetry(ctx, retryCfg, func() error {
		v, err := e.doEmbed(ctx, texts)
		if err != nil {
			return err
		}
		vecs = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.cfg.Tag, err)
	}
	return vecs, nil
}

func (e *OpenAICompatibleEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIEmbedRequest{Input: texts, Model: e.cfg.Model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed openAIEmbedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("provider error (status %d): %s", resp.StatusCode, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	vecs := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (e *OpenAICompatibleEmbedder) Dimensions() int { return e.cfg.Dimensions }
func (e *OpenAICompatibleEmbedder) ModelName() string { return e.cfg.Model }

func (e *OpenAICompatibleEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}
	_, err := e.doEmbed(ctx, []string{"ping"})
	return err == nil
}

func (e *OpenAICompatibleEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *OpenAICompatibleEmbedder) SetBatchIndex(idx int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchIndex = idx
}

func (e *OpenAICompatibleEmbedder) SetFinalBatch(isFinal bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isFinalBatch = isFinal
}

// resolveAPIKey reads an API key from the named environment variable,
// used by each provider preset in factory.go.
func resolveAPIKey(envVar string) string {
	return os.Getenv(envVar)
}
