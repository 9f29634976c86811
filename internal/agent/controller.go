// Package agent owns the run lifecycle: one controller, at most one active
// journey, and the perceive-decide-act loop that drives it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/artifacts"
	"github.com/ard14n/AJETE/internal/config"
	"github.com/ard14n/AJETE/internal/speech"
)

// ErrRunActive is returned when a start request arrives while a journey is
// still running.
var ErrRunActive = errors.New("agent: a run is already active")

// defaultObjective applies when the start request names none.
const defaultObjective = "Explore this website like a first-time visitor and narrate what you find."

// ResolvedRun echoes the effective run parameters back to the caller.
type ResolvedRun struct {
	RunID     string `json:"runId"`
	URL       string `json:"url"`
	Persona   string `json:"persona"`
	Objective string `json:"objective"`
	ModelName string `json:"modelName"`
}

// run is the state of one journey.
type run struct {
	id            string
	opts          schemas.RunOptions
	persona       schemas.Persona
	recorder      *artifacts.Recorder
	gate          *speech.Gate
	cancel        context.CancelFunc
	done          chan struct{}
	followedPopup bool
}

// Controller serialises run lifecycle operations. It survives across runs;
// the run state does not.
type Controller struct {
	cfg    *config.Config
	client schemas.VisionClient
	synth  schemas.Synthesizer
	sink   schemas.EventSink
	logger *zap.Logger

	mu     sync.Mutex
	active *run
	status schemas.RunStatus
}

// NewController wires the controller. synth may be nil; voice is then off
// for every run.
func NewController(cfg *config.Config, client schemas.VisionClient, synth schemas.Synthesizer,
	sink schemas.EventSink, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		client: client,
		synth:  synth,
		sink:   sink,
		logger: logger.Named("agent"),
		status: schemas.StatusIdle,
	}
}

// Status returns the current controller state.
func (c *Controller) Status() schemas.RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start launches a journey. Exactly one run may be active; a second start
// fails with ErrRunActive.
func (c *Controller) Start(opts schemas.RunOptions) (ResolvedRun, error) {
	if opts.URL == "" {
		return ResolvedRun{}, fmt.Errorf("agent: url is required")
	}
	if opts.Objective == "" {
		opts.Objective = defaultObjective
	}
	if opts.ModelName == "" {
		opts.ModelName = c.cfg.LLM.DefaultModel
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return ResolvedRun{}, ErrRunActive
	}

	persona := c.cfg.ResolvePersona(opts.PersonaName)
	runID := schemas.NewRunID(time.Now(), persona.Name)

	recorder, err := artifacts.NewRecorder(c.cfg.Artifacts.Dir, runID, c.logger)
	if err != nil {
		return ResolvedRun{}, err
	}

	voice := opts.Voice && c.synth != nil
	gate := speech.NewGate(c.cfg.TTS, c.sink, voice, c.logger)

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:       runID,
		opts:     opts,
		persona:  persona,
		recorder: recorder,
		gate:     gate,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.active = r
	c.setStatusLocked(schemas.StatusStarting)

	go c.runLoop(ctx, r)

	c.logger.Info("Run started.",
		zap.String("run_id", runID), zap.String("url", opts.URL), zap.String("persona", persona.Name))
	return ResolvedRun{
		RunID:     runID,
		URL:       opts.URL,
		Persona:   persona.Name,
		Objective: opts.Objective,
		ModelName: opts.ModelName,
	}, nil
}

// Stop ends the active run and waits for teardown to finish. Calling Stop
// with no active run is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	r.gate.Cancel()
	<-r.done
}

// AckSpeech forwards a playback acknowledgement to the active run's gate.
func (c *Controller) AckSpeech(id string) {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r != nil {
		r.gate.Ack(id)
	}
}

// SetVoice flips voice for the active run.
func (c *Controller) SetVoice(on bool) {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r != nil {
		r.gate.SetEnabled(on && c.synth != nil)
	}
}

// setStatus publishes a state transition on the event stream.
func (c *Controller) setStatus(status schemas.RunStatus) {
	c.mu.Lock()
	c.setStatusLocked(status)
	c.mu.Unlock()
}

func (c *Controller) setStatusLocked(status schemas.RunStatus) {
	c.status = status
	c.sink.Emit(schemas.Event{Kind: schemas.EventStatus, Payload: schemas.StatusPayload{Status: status}})
}

// finishRun clears the active slot after the loop goroutine exits.
func (c *Controller) finishRun(r *run) {
	c.mu.Lock()
	if c.active == r {
		c.active = nil
	}
	c.setStatusLocked(schemas.StatusStopped)
	c.mu.Unlock()
}
