package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/internal/config"
)

// ModelInfo is one selectable vision model.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalogue sources reported alongside the model list.
const (
	SourceUpstream = "upstream"
	SourceFallback = "fallback"
)

// fallbackModels answers /models when the upstream catalogue is unreachable.
var fallbackModels = []ModelInfo{
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash"},
	{ID: "gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash Lite"},
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro"},
	{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash"},
}

// modelCatalogue proxies the upstream model list with a short-lived cache.
type modelCatalogue struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	logger     *zap.Logger

	cached   []ModelInfo
	cachedAt time.Time
}

const catalogueTTL = 5 * time.Minute

func newModelCatalogue(cfg config.LLMConfig, logger *zap.Logger) *modelCatalogue {
	return &modelCatalogue{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("models"),
	}
}

// List returns the vision-capable models and where they came from: the
// upstream catalogue when reachable, the static fallback list otherwise.
func (m *modelCatalogue) List(ctx context.Context) ([]ModelInfo, string) {
	if m.cached != nil && time.Since(m.cachedAt) < catalogueTTL {
		return m.cached, SourceUpstream
	}

	var models []ModelInfo
	fetch := func() error {
		var err error
		models, err = m.fetch(ctx)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(fetch, policy); err != nil {
		m.logger.Warn("Upstream model catalogue unreachable; using fallback.", zap.Error(err))
		return fallbackModels, SourceFallback
	}
	m.cached = models
	m.cachedAt = time.Now()
	return models, SourceUpstream
}

type upstreamModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		DisplayName                string   `json:"displayName"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

func (m *modelCatalogue) fetch(ctx context.Context) ([]ModelInfo, error) {
	if m.cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.Endpoint+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", m.cfg.APIKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var parsed upstreamModelList
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	var out []ModelInfo
	for _, model := range parsed.Models {
		supported := false
		for _, method := range model.SupportedGenerationMethods {
			if method == "generateContent" {
				supported = true
				break
			}
		}
		if !supported {
			continue
		}
		id := strings.TrimPrefix(model.Name, "models/")
		name := model.DisplayName
		if name == "" {
			name = id
		}
		out = append(out, ModelInfo{ID: id, Name: name})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("catalogue empty")
	}
	return out, nil
}
