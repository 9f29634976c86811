package speech

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
)

// Gate holds the loop while the frontend plays an utterance. At most one
// utterance is in flight; acknowledgement, the watchdog, or cancellation
// releases the slot.
type Gate struct {
	cfg    config.TTSConfig
	sink   schemas.EventSink
	logger *zap.Logger

	mu        sync.Mutex
	enabled   bool
	pendingID string
	released  chan struct{}
}

// NewGate creates a Gate. Voice starts in whatever state the run requested.
func NewGate(cfg config.TTSConfig, sink schemas.EventSink, enabled bool, logger *zap.Logger) *Gate {
	return &Gate{
		cfg:     cfg,
		sink:    sink,
		logger:  logger.Named("speech.gate"),
		enabled: enabled,
	}
}

// Enabled reports whether voice is currently on.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// SetEnabled flips voice at runtime. Turning voice off releases any utterance
// currently holding the loop.
func (g *Gate) SetEnabled(on bool) {
	g.mu.Lock()
	g.enabled = on
	if !on {
		g.releaseLocked()
	}
	g.mu.Unlock()
}

// Speak streams the utterance to the frontend and blocks until the frontend
// acknowledges playback, the watchdog fires, or the context ends. A disabled
// gate returns immediately.
func (g *Gate) Speak(ctx context.Context, req schemas.SpeechRequest) error {
	g.mu.Lock()
	if !g.enabled {
		g.mu.Unlock()
		return nil
	}
	g.releaseLocked()
	released := make(chan struct{})
	g.pendingID = req.ID
	g.released = released
	g.mu.Unlock()

	g.sink.Emit(schemas.Event{Kind: schemas.EventTTS, Payload: schemas.TTSPayload{
		ID:    req.ID,
		Text:  req.Text,
		Mime:  req.Mime,
		Audio: base64.StdEncoding.EncodeToString(req.Audio),
	}})

	watchdog := time.NewTimer(g.watchdogFor(req.Text))
	defer watchdog.Stop()

	select {
	case <-released:
		return nil
	case <-watchdog.C:
		g.logger.Warn("Speech watchdog fired; releasing the loop.", zap.String("id", req.ID))
		g.Cancel()
		return nil
	case <-ctx.Done():
		g.Cancel()
		return ctx.Err()
	}
}

// Ack releases the slot when the frontend confirms playback of the matching
// utterance. Stale or unknown ids are ignored.
func (g *Gate) Ack(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pendingID != id || g.released == nil {
		return
	}
	g.releaseLocked()
}

// Cancel releases any pending utterance unconditionally.
func (g *Gate) Cancel() {
	g.mu.Lock()
	g.releaseLocked()
	g.mu.Unlock()
}

func (g *Gate) releaseLocked() {
	if g.released != nil {
		close(g.released)
		g.released = nil
	}
	g.pendingID = ""
}

// watchdogFor scales the timeout with utterance length and clamps it to the
// configured range.
func (g *Gate) watchdogFor(text string) time.Duration {
	d := time.Duration(len(text)) * g.cfg.PerChar
	if d > g.cfg.MaxWatchdog {
		d = g.cfg.MaxWatchdog
	}
	if d < g.cfg.MinWatchdog {
		d = g.cfg.MinWatchdog
	}
	return d
}
