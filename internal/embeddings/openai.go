package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings API. Pointing BaseURL at
// a self-hosted server (TEI, vLLM, Ollama) serves open models such as
// bge-base-zh-v1.5.
type OpenAIEmbedder struct {
	model   string
	timeout time.Duration
	client  *openai.Client
}

// OpenAIConfig configures NewOpenAIEmbedder.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

const defaultEmbeddingTimeout = 30 * time.Second

// NewOpenAIEmbedder creates a new embedder. An API key is required unless a
// custom BaseURL is given.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("api key required when no base url is set")
	}
	if cfg.Model == "" {
		cfg.Model = DemoModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEmbeddingTimeout
	}
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(opts...)
	return &OpenAIEmbedder{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  &cli,
	}, nil
}

func (e *OpenAIEmbedder) Model() string {
	return e.model
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if e == nil || e.client == nil {
		return nil, fmt.Errorf("nil openai embedder")
	}
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(reqCtx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	embedding := resp.Data[0].Embedding
	vec := make(Vector, len(embedding))
	for i, v := range embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
