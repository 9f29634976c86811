// Package schemas holds the shared data contracts of the journey agent:
// personas, run options, decisions, perception results, and trace records.
package schemas

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RunStatus describes the controller state machine.
type RunStatus string

const (
	StatusIdle     RunStatus = "idle"
	StatusStarting RunStatus = "starting"
	StatusScanning RunStatus = "scanning"
	StatusThinking RunStatus = "thinking"
	StatusActing   RunStatus = "acting"
	StatusStopped  RunStatus = "stopped"
)

// VoiceConfig selects the TTS voice for a persona.
type VoiceConfig struct {
	VoiceName         string `json:"voiceName" mapstructure:"voice_name"`
	LanguageCode      string `json:"languageCode" mapstructure:"language_code"`
	SystemInstruction string `json:"systemInstruction,omitempty" mapstructure:"system_instruction"`
}

// Persona bundles the base prompt with the browsing-context options that
// shape the emulated environment. Immutable for the lifetime of a run.
type Persona struct {
	Name          string       `json:"name" mapstructure:"name"`
	BasePrompt    string       `json:"basePrompt" mapstructure:"base_prompt"`
	Width         int64        `json:"width" mapstructure:"width"`
	Height        int64        `json:"height" mapstructure:"height"`
	DeviceScale   float64      `json:"deviceScale" mapstructure:"device_scale"`
	Locale        string       `json:"locale" mapstructure:"locale"`
	Timezone      string       `json:"timezone" mapstructure:"timezone"`
	ReducedMotion bool         `json:"reducedMotion" mapstructure:"reduced_motion"`
	Voice         *VoiceConfig `json:"voice,omitempty" mapstructure:"voice"`
}

// RunOptions is the explicit record of everything a run can be configured
// with. No implicit global state.
type RunOptions struct {
	URL             string `json:"url"`
	PersonaName     string `json:"personaName"`
	Objective       string `json:"objective"`
	DebugMarks      bool   `json:"debugMode"`
	Voice           bool   `json:"ttsEnabled"`
	Headless        bool   `json:"headlessMode"`
	SaveTrace       bool   `json:"saveTrace"`
	SaveThoughts    bool   `json:"saveThoughts"`
	SaveScreenshots bool   `json:"saveScreenshots"`
	ModelName       string `json:"modelName"`
	MonkeyMode      bool   `json:"monkeyMode"`
	BareMode        bool   `json:"bareMode"`
}

// ActionKind enumerates the normalised decision actions.
type ActionKind string

const (
	ActionClick  ActionKind = "click"
	ActionScroll ActionKind = "scroll"
	ActionType   ActionKind = "type"
	ActionWait   ActionKind = "wait"
	ActionDone   ActionKind = "done"
)

// Decision is one normalised output of the decision engine.
type Decision struct {
	Thought  string     `json:"thought"`
	Action   ActionKind `json:"action"`
	TargetID string     `json:"targetId,omitempty"`
	Value    string     `json:"value,omitempty"`
}

// HistoryEntry is a decision snapshot kept for prompt context.
type HistoryEntry struct {
	Step     int      `json:"step"`
	Decision Decision `json:"decision"`
}

// Rect is a viewport-relative bounding rectangle.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns the rectangle area, never negative.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Intersect returns the overlap area between two rectangles.
func (r Rect) Intersect(o Rect) float64 {
	x := max64(r.X, o.X)
	y := max64(r.Y, o.Y)
	x2 := min64(r.X+r.W, o.X+o.W)
	y2 := min64(r.Y+r.H, o.Y+o.H)
	if x2 <= x || y2 <= y {
		return 0
	}
	return (x2 - x) * (y2 - y)
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// SoMElement is one accepted, marked candidate within a single observation.
// Mark ids are dense from 0 and stable only until the next injection.
type SoMElement struct {
	ID        int    `json:"id"`
	Tag       string `json:"tag"`
	Role      string `json:"role,omitempty"`
	Text      string `json:"text,omitempty"`
	AriaLabel string `json:"ariaLabel,omitempty"`
	Title     string `json:"title,omitempty"`
	Href      string `json:"href,omitempty"`
	Score     int    `json:"score"`
	Rect      Rect   `json:"rect"`
}

// SoMResult is the perception output for one loop turn.
type SoMResult struct {
	Count    int          `json:"count"`
	Elements []SoMElement `json:"elements"`
}

// TraceKind enumerates replayable interaction kinds.
type TraceKind string

const (
	TraceGoto      TraceKind = "goto"
	TraceClick     TraceKind = "click"
	TraceType      TraceKind = "type"
	TraceScroll    TraceKind = "scroll"
	TraceWait      TraceKind = "wait"
	TraceTabSwitch TraceKind = "tab-switch"
)

// TraceStep is one deterministic, replayable record of a page interaction.
type TraceStep struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Kind      TraceKind `json:"kind"`
	Selector  string    `json:"selector,omitempty"`
	X         float64   `json:"x,omitempty"`
	Y         float64   `json:"y,omitempty"`
	HasPoint  bool      `json:"hasPoint,omitempty"`
	Value     string    `json:"value,omitempty"`
	WaitMs    int       `json:"waitMs,omitempty"`
	DeltaY    float64   `json:"deltaY,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// ThoughtRecord is an append-only think-aloud entry.
type ThoughtRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
}

// StepRecord is an append-only executed-decision entry.
type StepRecord struct {
	ID        int        `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Action    ActionKind `json:"action"`
	TargetID  string     `json:"targetId,omitempty"`
	Value     string     `json:"value,omitempty"`
	Thought   string     `json:"thought"`
	URL       string     `json:"url,omitempty"`
}

// ErrorRecord is an append-only loop failure entry.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	URL       string    `json:"url,omitempty"`
}

// ScreenshotRecord points at a persisted per-step capture.
type ScreenshotRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	URL       string    `json:"url,omitempty"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// PersonaSlug lowercases the persona name and collapses every
// non-alphanumeric sequence to a single hyphen.
func PersonaSlug(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// NewRunID derives the run identifier from the wall clock and persona name.
// Layout: YYYY-MM-DDTHH-MM-SS-mmm-<persona-slug>.
func NewRunID(now time.Time, personaName string) string {
	t := now.UTC()
	stamp := fmt.Sprintf("%s-%03d", t.Format("2006-01-02T15-04-05"), t.Nanosecond()/int(time.Millisecond))
	slug := PersonaSlug(personaName)
	if slug == "" {
		slug = "default"
	}
	return stamp + "-" + slug
}
