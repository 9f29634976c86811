// Package speech turns thoughts into audio and sequences playback so the
// agent never talks over itself.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
)

// GeminiSynthesizer renders text through the preview TTS models, walking the
// configured model list until one answers.
type GeminiSynthesizer struct {
	cfg        config.TTSConfig
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ schemas.Synthesizer = (*GeminiSynthesizer)(nil)

// NewGeminiSynthesizer initializes the synthesizer. The key is shared with
// the vision client.
func NewGeminiSynthesizer(cfg config.TTSConfig, apiKey string, logger *zap.Logger) (*GeminiSynthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("speech: API key is required")
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("speech: no TTS models configured")
	}
	return &GeminiSynthesizer{
		cfg:        cfg,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: cfg.MaxWatchdog},
		logger:     logger.Named("speech.gemini"),
	}, nil
}

type ttsPart struct {
	Text string `json:"text"`
}

type ttsContent struct {
	Parts []ttsPart `json:"parts"`
}

type ttsRequest struct {
	Contents          []ttsContent `json:"contents"`
	SystemInstruction *ttsContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		ResponseModalities []string `json:"responseModalities"`
		SpeechConfig       struct {
			LanguageCode string `json:"languageCode,omitempty"`
			VoiceConfig  struct {
				PrebuiltVoiceConfig struct {
					VoiceName string `json:"voiceName"`
				} `json:"prebuiltVoiceConfig"`
			} `json:"voiceConfig"`
		} `json:"speechConfig"`
	} `json:"generationConfig"`
}

type ttsResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Synthesize renders text with the persona voice. Each configured model is
// tried once; ok=false means all of them declined, which the loop treats as
// silence rather than failure.
func (s *GeminiSynthesizer) Synthesize(ctx context.Context, text string, voice *schemas.VoiceConfig) (schemas.SpeechRequest, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return schemas.SpeechRequest{}, false, nil
	}

	effective := schemas.VoiceConfig{VoiceName: "Kore"}
	if voice != nil {
		effective = *voice
		if effective.VoiceName == "" {
			effective.VoiceName = "Kore"
		}
	}

	var lastErr error
	for _, model := range s.cfg.Models {
		audio, mime, err := s.callModel(ctx, model, text, effective)
		if err != nil {
			lastErr = err
			s.logger.Warn("TTS model declined; trying next.",
				zap.String("model", model), zap.Error(err))
			continue
		}
		wav := wrapPCM16(audio, sampleRateFromMime(mime))
		return schemas.SpeechRequest{
			ID:    uuid.NewString(),
			Text:  text,
			Mime:  "audio/wav",
			Audio: wav,
		}, true, nil
	}

	if lastErr != nil {
		s.logger.Warn("All TTS models declined.", zap.Error(lastErr))
	}
	return schemas.SpeechRequest{}, false, nil
}

func (s *GeminiSynthesizer) callModel(ctx context.Context, model, text string, voice schemas.VoiceConfig) ([]byte, string, error) {
	var payload ttsRequest
	payload.Contents = []ttsContent{{Parts: []ttsPart{{Text: text}}}}
	if voice.SystemInstruction != "" {
		payload.SystemInstruction = &ttsContent{Parts: []ttsPart{{Text: voice.SystemInstruction}}}
	}
	payload.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	payload.GenerationConfig.SpeechConfig.LanguageCode = voice.LanguageCode
	payload.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice.VoiceName

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("speech: failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", s.cfg.Endpoint, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("speech: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("speech: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("speech: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("speech: %s returned status %d", model, resp.StatusCode)
	}

	var parsed ttsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, "", fmt.Errorf("speech: failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, "", fmt.Errorf("speech: %s returned no audio candidates", model)
	}
	inline := parsed.Candidates[0].Content.Parts[0].InlineData
	if inline == nil || inline.Data == "" {
		return nil, "", fmt.Errorf("speech: %s returned no inline audio", model)
	}

	audio, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return nil, "", fmt.Errorf("speech: failed to decode audio: %w", err)
	}
	return audio, inline.MimeType, nil
}
