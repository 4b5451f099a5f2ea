package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ModelOpenAI3Small supports the dimensions parameter, so it can produce
// 512-component vectors directly.
const ModelOpenAI3Small = "text-embedding-3-small"

// OpenAIConfig configures the OpenAI embeddings client.
type OpenAIConfig struct {
	APIKey string
	// BaseURL targets an OpenAI-compatible endpoint. Empty uses api.openai.com.
	BaseURL    string
	Model      string
	Dim        int
	HTTPClient *http.Client
}

// OpenAIClient calls the OpenAI embeddings API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAI creates an OpenAI client. The SDK's automatic retries are
// disabled; a failed call surfaces immediately.
func NewOpenAI(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = ModelOpenAI3Small
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIClient{
		client: &client,
		model:  cfg.Model,
		dim:    cfg.Dim,
	}
}

func (o *OpenAIClient) name() string { return "openai" }

func (o *OpenAIClient) embed(ctx context.Context, text string) (vector.Embedding, error) {
	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Dimensions:     openai.Int(int64(o.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(ctx, err)
	}

	for _, item := range resp.Data {
		if item.Index == 0 {
			return vector.Float64s(item.Embedding), nil
		}
	}
	return nil, errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate",
		fmt.Errorf("response contained %d embeddings and none for index 0", len(resp.Data)))
}

// mapOpenAIError maps API errors by status and code. Context-length
// rejections become InputTooLarge.
func mapOpenAIError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if isContextLengthError(apiErr) {
			return errkind.New(errkind.KindProvider, errkind.CodeInputTooLarge, "generate", err)
		}
		if apiErr.StatusCode == http.StatusGatewayTimeout || apiErr.StatusCode == http.StatusRequestTimeout {
			return errkind.New(errkind.KindProvider, errkind.CodeTimeoutExceeded, "generate", err)
		}
		return errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate", err)
	}
	return transportError(ctx, err)
}

func isContextLengthError(e *openai.Error) bool {
	if e.Code == "context_length_exceeded" {
		return true
	}
	if e.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(e.Message + " " + e.Error())
	return strings.Contains(msg, "maximum context length") || strings.Contains(msg, "context_length_exceeded")
}
