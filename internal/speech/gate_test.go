package speech

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testGateConfig() config.TTSConfig {
	return config.TTSConfig{
		MinWatchdog: 80 * time.Millisecond,
		MaxWatchdog: 300 * time.Millisecond,
		PerChar:     time.Millisecond,
	}
}

// collectSink records emitted events under a lock.
type collectSink struct {
	mu     sync.Mutex
	events []schemas.Event
}

func (s *collectSink) Emit(e schemas.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *collectSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func utterance(id string) schemas.SpeechRequest {
	return schemas.SpeechRequest{ID: id, Text: "hello there", Mime: "audio/wav", Audio: []byte{1, 2}}
}

func TestGateAckReleases(t *testing.T) {
	sink := &collectSink{}
	g := NewGate(testGateConfig(), sink, true, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- g.Speak(context.Background(), utterance("u-1")) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	g.Ack("u-1")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ack did not release the gate")
	}
}

func TestGateIgnoresForeignAck(t *testing.T) {
	g := NewGate(testGateConfig(), schemas.NopSink, true, zap.NewNop())

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- g.Speak(context.Background(), utterance("u-1")) }()

	time.Sleep(10 * time.Millisecond)
	g.Ack("someone-else")

	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond,
		"a non-matching ack must not release; the watchdog does")
}

func TestGateWatchdogScalesWithLength(t *testing.T) {
	g := NewGate(testGateConfig(), schemas.NopSink, true, zap.NewNop())

	assert.Equal(t, 80*time.Millisecond, g.watchdogFor("short"), "clamped to the minimum")
	assert.Equal(t, 150*time.Millisecond, g.watchdogFor(string(make([]byte, 150))))
	assert.Equal(t, 300*time.Millisecond, g.watchdogFor(string(make([]byte, 5000))), "clamped to the maximum")
}

func TestGateDisabledSkips(t *testing.T) {
	sink := &collectSink{}
	g := NewGate(testGateConfig(), sink, false, zap.NewNop())

	require.NoError(t, g.Speak(context.Background(), utterance("u-1")))
	assert.Zero(t, sink.count(), "a disabled gate emits nothing")
}

func TestGateDisableReleasesPending(t *testing.T) {
	g := NewGate(testGateConfig(), schemas.NopSink, true, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- g.Speak(context.Background(), utterance("u-1")) }()

	time.Sleep(10 * time.Millisecond)
	g.SetEnabled(false)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("disabling voice did not release the gate")
	}
	assert.False(t, g.Enabled())
}

func TestGateContextCancel(t *testing.T) {
	g := NewGate(testGateConfig(), schemas.NopSink, true, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Speak(ctx, utterance("u-1")) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
}

func TestGateSecondUtteranceReleasesFirst(t *testing.T) {
	g := NewGate(testGateConfig(), schemas.NopSink, true, zap.NewNop())

	first := make(chan error, 1)
	go func() { first <- g.Speak(context.Background(), utterance("u-1")) }()
	time.Sleep(10 * time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- g.Speak(context.Background(), utterance("u-2")) }()

	require.NoError(t, <-first, "a new utterance displaces the pending one")
	g.Ack("u-2")
	require.NoError(t, <-second)
}
