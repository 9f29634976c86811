package speech

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
)

// ttsUpstream fakes the synthesis endpoint and records request bodies.
type ttsUpstream struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func (u *ttsUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.bodies = append(u.bodies, string(body))
		status := u.status
		u.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		pcm := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"` + pcm + `"}}]}}]}`))
	}
}

func (u *ttsUpstream) lastBody(t *testing.T) string {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	require.NotEmpty(t, u.bodies)
	return u.bodies[len(u.bodies)-1]
}

func newTestSynthesizer(t *testing.T, upstream *ttsUpstream, models ...string) *GeminiSynthesizer {
	t.Helper()
	srv := httptest.NewServer(upstream.handler())
	t.Cleanup(srv.Close)

	s, err := NewGeminiSynthesizer(config.TTSConfig{
		Models:      models,
		Endpoint:    srv.URL,
		MaxWatchdog: 5 * time.Second,
	}, "test-key", zap.NewNop())
	require.NoError(t, err)
	s.httpClient = srv.Client()
	return s
}

func TestSynthesizeCarriesVoiceConfig(t *testing.T) {
	upstream := &ttsUpstream{}
	s := newTestSynthesizer(t, upstream, "tts-a")

	voice := &schemas.VoiceConfig{
		VoiceName:         "Puck",
		LanguageCode:      "de-DE",
		SystemInstruction: "Speak slowly and warmly.",
	}
	req, ok, err := s.Synthesize(context.Background(), "Hallo Welt", voice)
	require.NoError(t, err)
	require.True(t, ok)

	body := upstream.lastBody(t)
	assert.Contains(t, body, `"voiceName":"Puck"`)
	assert.Contains(t, body, `"languageCode":"de-DE"`)
	assert.Contains(t, body, `"systemInstruction"`)
	assert.Contains(t, body, "Speak slowly and warmly.")
	assert.Contains(t, body, `"responseModalities":["AUDIO"]`)

	assert.Equal(t, "audio/wav", req.Mime)
	assert.NotEmpty(t, req.ID)
	require.GreaterOrEqual(t, len(req.Audio), 44)
	assert.Equal(t, "RIFF", string(req.Audio[:4]))
}

func TestSynthesizeDefaultsVoice(t *testing.T) {
	upstream := &ttsUpstream{}
	s := newTestSynthesizer(t, upstream, "tts-a")

	_, ok, err := s.Synthesize(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.True(t, ok)

	body := upstream.lastBody(t)
	assert.Contains(t, body, `"voiceName":"Kore"`)
	assert.NotContains(t, body, "languageCode")
	assert.NotContains(t, body, "systemInstruction")
}

func TestSynthesizeWalksModelList(t *testing.T) {
	upstream := &ttsUpstream{status: http.StatusServiceUnavailable}
	s := newTestSynthesizer(t, upstream, "tts-a", "tts-b")

	_, ok, err := s.Synthesize(context.Background(), "hello", nil)
	require.NoError(t, err, "all models declining is silence, not failure")
	assert.False(t, ok)

	upstream.mu.Lock()
	calls := len(upstream.bodies)
	upstream.mu.Unlock()
	assert.Equal(t, 2, calls, "each configured model gets one attempt")
}

func TestSynthesizeSkipsEmptyText(t *testing.T) {
	upstream := &ttsUpstream{}
	s := newTestSynthesizer(t, upstream, "tts-a")

	_, ok, err := s.Synthesize(context.Background(), "   ", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
