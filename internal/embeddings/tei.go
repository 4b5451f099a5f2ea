package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
)

// TEIConfig configures a Text Embeddings Inference endpoint.
type TEIConfig struct {
	// BaseURL is the TEI server root, e.g. http://localhost:8080.
	BaseURL string
	// Model is informational; TEI serves a single model per deployment.
	Model string
	// APIKey is sent as a bearer token when set.
	APIKey     string
	Dim        int
	HTTPClient *http.Client
}

// Validate validates the configuration.
func (c TEIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// TEIClient posts to the TEI /embed endpoint.
type TEIClient struct {
	config TEIConfig
	client *http.Client
}

// NewTEI creates a TEI client.
func NewTEI(cfg TEIConfig) (*TEIClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &TEIClient{config: cfg, client: client}, nil
}

// teiRequest is the request body for TEI embed endpoint. Truncation is off
// so oversized tickets are rejected instead of silently cut.
type teiRequest struct {
	Inputs     string `json:"inputs"`
	Truncate   bool   `json:"truncate"`
	Dimensions int    `json:"dimensions,omitempty"`
}

func (t *TEIClient) name() string { return "tei" }

func (t *TEIClient) embed(ctx context.Context, text string) (vector.Embedding, error) {
	body, err := json.Marshal(teiRequest{
		Inputs:     text,
		Truncate:   false,
		Dimensions: t.config.Dim,
	})
	if err != nil {
		return nil, errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate",
			fmt.Errorf("marshaling request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate",
			fmt.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, mapTEIStatus(resp.StatusCode, respBody)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate",
			fmt.Errorf("decoding response: %w", err))
	}
	if len(vectors) == 0 {
		return nil, errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate",
			fmt.Errorf("empty response"))
	}

	return vector.Embedding(vectors[0]), nil
}

// mapTEIStatus maps TEI error statuses. TEI answers 413 for oversized
// payloads and 422 for inputs over the model's token limit.
func mapTEIStatus(status int, body []byte) error {
	cause := fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusRequestEntityTooLarge:
		return errkind.New(errkind.KindProvider, errkind.CodeInputTooLarge, "generate", cause)
	case status == http.StatusUnprocessableEntity && bytes.Contains(bytes.ToLower(body), []byte("must have less than")):
		return errkind.New(errkind.KindProvider, errkind.CodeInputTooLarge, "generate", cause)
	case status == http.StatusGatewayTimeout:
		return errkind.New(errkind.KindProvider, errkind.CodeTimeoutExceeded, "generate", cause)
	default:
		return errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate", cause)
	}
}
