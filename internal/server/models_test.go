package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/internal/config"
)

func TestContainsWildcard(t *testing.T) {
	assert.False(t, containsWildcard(nil))
	assert.False(t, containsWildcard([]string{"http://localhost:3000"}))
	assert.True(t, containsWildcard([]string{"http://localhost:3000", "*"}))
}

func TestCatalogueFetchRequiresKey(t *testing.T) {
	cat := newModelCatalogue(config.LLMConfig{}, zap.NewNop())
	_, err := cat.fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestCatalogueFetchFiltersAndStrips(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash",
			 "supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/embedding-001","displayName":"Embedding",
			 "supportedGenerationMethods":["embedContent"]}
		]}`))
	}))
	defer upstream.Close()

	cat := newModelCatalogue(config.LLMConfig{APIKey: "secret", Endpoint: upstream.URL}, zap.NewNop())
	models, err := cat.fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, models, 1, "models without generateContent are dropped")
	assert.Equal(t, "gemini-2.0-flash", models[0].ID)
	assert.Equal(t, "Gemini 2.0 Flash", models[0].Name)
}

func TestCatalogueListReportsSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash",
			 "supportedGenerationMethods":["generateContent"]}
		]}`))
	}))
	defer upstream.Close()

	cat := newModelCatalogue(config.LLMConfig{APIKey: "secret", Endpoint: upstream.URL}, zap.NewNop())
	models, source := cat.List(context.Background())
	require.Len(t, models, 1)
	assert.Equal(t, SourceUpstream, source)

	// A second call within the TTL answers from cache with the same source,
	// even after the upstream goes away.
	upstream.Close()
	cached, source := cat.List(context.Background())
	assert.Equal(t, models, cached)
	assert.Equal(t, SourceUpstream, source)
}

func TestCatalogueFallbackSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	cat := newModelCatalogue(config.LLMConfig{APIKey: "secret", Endpoint: upstream.URL}, zap.NewNop())
	models, source := cat.List(context.Background())
	assert.Equal(t, fallbackModels, models)
	assert.Equal(t, SourceFallback, source)
	assert.NotEmpty(t, models[0].ID)
}

func TestCatalogueFetchRejectsUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	cat := newModelCatalogue(config.LLMConfig{APIKey: "secret", Endpoint: upstream.URL}, zap.NewNop())
	_, err := cat.fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
