package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ard14n/AJETE/api/schemas"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const traceVersion = 1

// RunMeta carries the run facts every artifact header repeats.
type RunMeta struct {
	StartURL  string
	FinalURL  string
	Objective string
	Persona   string
	ModelName string
}

// TraceDocument is the persisted, versioned trace file.
type TraceDocument struct {
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"createdAt"`
	RunID     string              `json:"runId"`
	StartURL  string              `json:"startUrl"`
	FinalURL  string              `json:"finalUrl"`
	Objective string              `json:"objective,omitempty"`
	Persona   string              `json:"persona"`
	ModelName string              `json:"modelName,omitempty"`
	Steps     []schemas.TraceStep `json:"steps"`
}

// BuildTrace assembles the document from the ledger.
func (r *Recorder) BuildTrace(meta RunMeta) TraceDocument {
	_, _, _, _, trace := r.Snapshot()
	return TraceDocument{
		Version:   traceVersion,
		CreatedAt: time.Now().UTC(),
		RunID:     r.runID,
		StartURL:  meta.StartURL,
		FinalURL:  meta.FinalURL,
		Objective: meta.Objective,
		Persona:   meta.Persona,
		ModelName: meta.ModelName,
		Steps:     trace,
	}
}

// WriteTrace persists trace/trace-<run-id>.json and the standalone replay
// program trace/replay_<run-id>.go. Returns both paths.
func (r *Recorder) WriteTrace(meta RunMeta) (jsonPath, scriptPath string, err error) {
	doc := r.BuildTrace(meta)

	dir := filepath.Join(r.dir, "trace")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("artifacts: failed to create trace directory: %w", err)
	}

	data, err := jsonAPI.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("artifacts: failed to marshal trace: %w", err)
	}
	jsonPath = filepath.Join(dir, fmt.Sprintf("trace-%s.json", sanitizeFileStem(r.runID)))
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("artifacts: failed to write trace: %w", err)
	}

	script := RenderReplayScript(doc)
	scriptPath = filepath.Join(dir, fmt.Sprintf("replay_%s.go", sanitizeFileStem(r.runID)))
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		return "", "", fmt.Errorf("artifacts: failed to write replay script: %w", err)
	}
	return jsonPath, scriptPath, nil
}

// sanitizeFileStem keeps the run id usable as a file name component.
func sanitizeFileStem(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
