package schemas

// EventKind is the fixed enumeration of operator-stream event types.
type EventKind string

const (
	EventStatus      EventKind = "status"
	EventThought     EventKind = "thought"
	EventStep        EventKind = "step"
	EventScreenshot  EventKind = "screenshot"
	EventCursor      EventKind = "cursor"
	EventTTS         EventKind = "tts"
	EventTraceSaved  EventKind = "trace_saved"
	EventReportReady EventKind = "report_ready"
	EventError       EventKind = "error"
)

// Event is one fan-out message to the operator stream.
type Event struct {
	Kind    EventKind `json:"type"`
	Payload any       `json:"payload"`
}

// StatusPayload carries the controller state label.
type StatusPayload struct {
	Status RunStatus `json:"status"`
}

// ThoughtPayload carries one think-aloud message.
type ThoughtPayload struct {
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// StepPayload mirrors StepRecord for the stream.
type StepPayload struct {
	ID       int        `json:"id"`
	Action   ActionKind `json:"action"`
	TargetID string     `json:"targetId,omitempty"`
	Value    string     `json:"value,omitempty"`
	Thought  string     `json:"thought"`
}

// ScreenshotPayload carries a data URL of the streamed capture.
type ScreenshotPayload struct {
	DataURL string `json:"dataUrl"`
}

// CursorPayload carries the ghost-cursor position in viewport coordinates.
type CursorPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ViewportW int64   `json:"viewportW"`
	ViewportH int64   `json:"viewportH"`
}

// TTSPayload carries one synthesised utterance awaiting playback.
type TTSPayload struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Mime  string `json:"mime"`
	Audio string `json:"audio"` // base64
}

// ArtifactPayload announces a persisted artifact with its download URL.
type ArtifactPayload struct {
	Path        string `json:"path"`
	DownloadURL string `json:"downloadUrl"`
}

// ErrorPayload carries a non-fatal loop error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// EventSink receives the typed event stream. Implementations must not block
// the loop; slow consumers drop rather than stall.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Emit implements EventSink.
func (f SinkFunc) Emit(e Event) { f(e) }

// NopSink discards every event.
var NopSink EventSink = SinkFunc(func(Event) {})
