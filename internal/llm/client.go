// Package llm provides the Gemini vision client used by the decision engine
// and the deterministic double used in tests.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
)

// Transient upstream failures the decision engine may retry.
var (
	ErrRateLimited = errors.New("llm: rate limited")
	ErrUnavailable = errors.New("llm: temporarily unavailable")
)

// GeminiClient calls the generateContent endpoint with a text part and an
// inline PNG part.
type GeminiClient struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ schemas.VisionClient = (*GeminiClient)(nil)

// NewGeminiClient initializes the client. The API key must be present.
func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required (set AJETE_LLM_APIKEY or GEMINI_API_KEY)")
	}
	return &GeminiClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger.Named("llm.gemini"),
	}, nil
}

// Wire shapes of the generateContent call; internal to this file.
type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Generate sends the prompt plus screenshot and returns the raw model text.
// Rate limiting and 5xx map onto the package's transient errors; the caller
// owns the retry policy.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	model := req.ModelName
	if model == "" {
		model = c.cfg.DefaultModel
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.Endpoint, model)

	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: req.Prompt},
				{InlineData: &geminiInlineData{
					MimeType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(req.PNG),
				}},
			},
		}},
	}
	payload.GenerationConfig.Temperature = 0.4
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: %s", ErrRateLimited, truncateBody(respBody))
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("llm: failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llm: response contained no candidates")
	}

	c.logger.Debug("Vision generation complete.", zap.String("model", model))
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func truncateBody(b []byte) string {
	const maxLen = 300
	if len(b) > maxLen {
		b = b[:maxLen]
	}
	return string(b)
}
