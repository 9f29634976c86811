package decision

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ard14n/AJETE/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// defaultThought replaces missing or empty model thoughts.
const defaultThought = "I'm not sure what I'm seeing yet, so I'll take a careful look around."

// rawDecision is the tolerant wire shape of a model response. TargetID
// accepts both strings and integers; value keeps the legacy inputValue
// alias.
type rawDecision struct {
	Thought    string      `json:"thought"`
	Action     string      `json:"action"`
	TargetID   interface{} `json:"targetId"`
	Value      string      `json:"value"`
	InputValue string      `json:"inputValue"`
}

// ExtractJSON returns the first balanced {…} substring of s, tolerating
// fenced code blocks and surrounding prose. ok is false when no balanced
// object exists.
func ExtractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Normalize converts arbitrary model output into a well-formed Decision.
// Guarantees: action is one of {click, scroll, type, wait, done}; stop and
// fail alias done; anything unrecognised degrades to wait; the thought is
// never empty.
func Normalize(response string) schemas.Decision {
	var raw rawDecision
	if body, ok := ExtractJSON(response); ok {
		// A malformed object still normalises; the zero value degrades to wait.
		_ = json.Unmarshal([]byte(body), &raw)
	}

	d := schemas.Decision{
		Thought:  strings.TrimSpace(raw.Thought),
		TargetID: stringifyTarget(raw.TargetID),
		Value:    raw.Value,
	}
	if d.Value == "" {
		d.Value = raw.InputValue
	}
	if d.Thought == "" {
		d.Thought = defaultThought
	}

	switch strings.ToLower(strings.TrimSpace(raw.Action)) {
	case "click":
		d.Action = schemas.ActionClick
	case "scroll":
		d.Action = schemas.ActionScroll
	case "type":
		d.Action = schemas.ActionType
	case "done", "stop", "fail":
		d.Action = schemas.ActionDone
	default:
		d.Action = schemas.ActionWait
	}
	return d
}

func stringifyTarget(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%d", int(t))
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
