// Package artifacts accumulates the run's durable outputs and writes them
// under artifacts/<run-id>/: the replayable trace, the think-aloud log,
// screenshots, and the final report set.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
)

const screenshotDirName = "screenshots"

// Recorder is the append-only ledger for one run. Safe for use from the loop
// goroutine and the websocket readers.
type Recorder struct {
	runID  string
	dir    string
	logger *zap.Logger

	mu          sync.Mutex
	thoughts    []schemas.ThoughtRecord
	steps       []schemas.StepRecord
	errors      []schemas.ErrorRecord
	screenshots []schemas.ScreenshotRecord
	trace       []schemas.TraceStep
}

// NewRecorder creates the per-run directory and an empty ledger.
func NewRecorder(baseDir, runID string, logger *zap.Logger) (*Recorder, error) {
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: failed to create run directory: %w", err)
	}
	return &Recorder{
		runID:  runID,
		dir:    dir,
		logger: logger.Named("artifacts"),
	}, nil
}

// RunID returns the run identifier the recorder was created for.
func (r *Recorder) RunID() string { return r.runID }

// Dir returns the per-run artifact directory.
func (r *Recorder) Dir() string { return r.dir }

// RecordThought appends one think-aloud entry.
func (r *Recorder) RecordThought(message, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.thoughts = append(r.thoughts, schemas.ThoughtRecord{
		Timestamp: time.Now().UTC(),
		Message:   message,
		URL:       url,
	})
}

// RecordStep appends one executed decision and returns its id.
func (r *Recorder) RecordStep(d schemas.Decision, url string) schemas.StepRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := schemas.StepRecord{
		ID:        len(r.steps) + 1,
		Timestamp: time.Now().UTC(),
		Action:    d.Action,
		TargetID:  d.TargetID,
		Value:     d.Value,
		Thought:   d.Thought,
		URL:       url,
	}
	r.steps = append(r.steps, rec)
	return rec
}

// RecordError appends one loop failure.
func (r *Recorder) RecordError(message, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, schemas.ErrorRecord{
		Timestamp: time.Now().UTC(),
		Message:   message,
		URL:       url,
	})
}

// RecordTrace appends one replayable interaction, assigning the next dense
// id. Timestamps not supplied by the caller are filled in.
func (r *Recorder) RecordTrace(step schemas.TraceStep) schemas.TraceStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.ID = len(r.trace) + 1
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now().UTC()
	}
	r.trace = append(r.trace, step)
	return step
}

// SaveScreenshot persists one capture as screenshots/step-NNNN.png and
// records it.
func (r *Recorder) SaveScreenshot(png []byte, url string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.dir, screenshotDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("step-%04d.png", len(r.screenshots)+1))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: failed to write screenshot: %w", err)
	}
	r.screenshots = append(r.screenshots, schemas.ScreenshotRecord{
		Timestamp: time.Now().UTC(),
		Path:      path,
		URL:       url,
	})
	return path, nil
}

// Snapshot copies out the ledger state for the writers.
func (r *Recorder) Snapshot() (thoughts []schemas.ThoughtRecord, steps []schemas.StepRecord,
	errs []schemas.ErrorRecord, screenshots []schemas.ScreenshotRecord, trace []schemas.TraceStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schemas.ThoughtRecord(nil), r.thoughts...),
		append([]schemas.StepRecord(nil), r.steps...),
		append([]schemas.ErrorRecord(nil), r.errors...),
		append([]schemas.ScreenshotRecord(nil), r.screenshots...),
		append([]schemas.TraceStep(nil), r.trace...)
}
