package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
	"github.com/ard14n/AJETE/internal/llm"
	"github.com/ard14n/AJETE/internal/speech"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LLM:       config.LLMConfig{DefaultModel: "gemini-2.0-flash", MaxAttempts: 1},
		Artifacts: config.ArtifactsConfig{Dir: t.TempDir()},
	}
}

func testController(t *testing.T) *Controller {
	t.Helper()
	return NewController(testConfig(t), &llm.MockClient{}, nil, schemas.NopSink, zap.NewNop())
}

func TestStartRequiresURL(t *testing.T) {
	c := testController(t)
	_, err := c.Start(schemas.RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestStartConflictsWithActiveRun(t *testing.T) {
	c := testController(t)

	// Simulate a run in flight without launching a browser.
	done := make(chan struct{})
	close(done)
	c.active = &run{
		id:     "existing",
		cancel: func() {},
		gate:   speech.NewGate(c.cfg.TTS, schemas.NopSink, false, zap.NewNop()),
		done:   done,
	}

	_, err := c.Start(schemas.RunOptions{URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrRunActive)
}

func TestStopWithoutRunIsNoop(t *testing.T) {
	c := testController(t)
	c.Stop()
	assert.Equal(t, schemas.StatusIdle, c.Status())
}

func TestStopReleasesFinishedRun(t *testing.T) {
	c := testController(t)

	done := make(chan struct{})
	close(done)
	cancelled := false
	c.active = &run{
		id:     "existing",
		cancel: func() { cancelled = true },
		gate:   speech.NewGate(c.cfg.TTS, schemas.NopSink, false, zap.NewNop()),
		done:   done,
	}

	c.Stop()
	assert.True(t, cancelled)
}

func TestSpeechForwardingWithoutRun(t *testing.T) {
	c := testController(t)
	// Neither call may panic with no active run.
	c.AckSpeech("any")
	c.SetVoice(true)
}

func TestStatusTransitionsEmit(t *testing.T) {
	var seen []schemas.RunStatus
	sink := schemas.SinkFunc(func(e schemas.Event) {
		if e.Kind == schemas.EventStatus {
			seen = append(seen, e.Payload.(schemas.StatusPayload).Status)
		}
	})
	cfg := &config.Config{
		LLM:       config.LLMConfig{DefaultModel: "m", MaxAttempts: 1},
		Artifacts: config.ArtifactsConfig{Dir: t.TempDir()},
	}
	c := NewController(cfg, &llm.MockClient{}, nil, sink, zap.NewNop())

	c.setStatus(schemas.StatusScanning)
	c.setStatus(schemas.StatusThinking)

	require.Equal(t, []schemas.RunStatus{schemas.StatusScanning, schemas.StatusThinking}, seen)
	assert.Equal(t, schemas.StatusThinking, c.Status())
}

func TestDownloadURL(t *testing.T) {
	assert.Equal(t, "/downloads/run-1/trace/trace.json", downloadURL("run-1", "trace/trace.json"))
}

func TestSleepCtxCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, 0), context.Canceled)
}
