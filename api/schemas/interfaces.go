package schemas

import "context"

// GenerationRequest is the provider-agnostic vision prompt: the assembled
// text plus the marked screenshot as an inline PNG.
type GenerationRequest struct {
	Prompt    string
	System    string
	PNG       []byte
	ModelName string
}

// VisionClient is the contract every decision provider honours. The real
// Gemini client and the deterministic test double both satisfy it.
type VisionClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// SpeechRequest is one pending utterance. At most one is outstanding per run.
type SpeechRequest struct {
	ID    string
	Text  string
	Mime  string
	Audio []byte
}

// Synthesizer renders a thought to audio. Returns ok=false when every
// candidate model declined; that is not an error.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice *VoiceConfig) (SpeechRequest, bool, error)
}
