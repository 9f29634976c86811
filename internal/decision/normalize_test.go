package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ard14n/AJETE/api/schemas"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"surrounding prose", `Sure! Here you go: {"a":1} hope that helps`, `{"a":1}`, true},
		{"fenced block", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"nested objects", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"braces inside strings", `{"t":"use { and } freely"}`, `{"t":"use { and } freely"}`, true},
		{"escaped quote", `{"t":"say \"{\""}`, `{"t":"say \"{\""}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"no object", "just words", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeActions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want schemas.ActionKind
	}{
		{"click", `{"thought":"t","action":"click","targetId":"3"}`, schemas.ActionClick},
		{"scroll", `{"thought":"t","action":"scroll"}`, schemas.ActionScroll},
		{"type", `{"thought":"t","action":"type","targetId":"1","value":"x"}`, schemas.ActionType},
		{"done", `{"thought":"t","action":"done"}`, schemas.ActionDone},
		{"stop aliases done", `{"thought":"t","action":"stop"}`, schemas.ActionDone},
		{"fail aliases done", `{"thought":"t","action":"fail"}`, schemas.ActionDone},
		{"mixed case", `{"thought":"t","action":" Click "}`, schemas.ActionClick},
		{"unknown degrades to wait", `{"thought":"t","action":"teleport"}`, schemas.ActionWait},
		{"garbage degrades to wait", `no json at all`, schemas.ActionWait},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in).Action)
		})
	}
}

func TestNormalizeTargetID(t *testing.T) {
	d := Normalize(`{"thought":"t","action":"click","targetId":7}`)
	assert.Equal(t, "7", d.TargetID, "numeric target ids become strings")

	d = Normalize(`{"thought":"t","action":"click","targetId":" 12 "}`)
	assert.Equal(t, "12", d.TargetID)

	d = Normalize(`{"thought":"t","action":"scroll"}`)
	assert.Empty(t, d.TargetID)
}

func TestNormalizeValueFallback(t *testing.T) {
	d := Normalize(`{"thought":"t","action":"type","targetId":"1","inputValue":"legacy"}`)
	assert.Equal(t, "legacy", d.Value, "inputValue is honoured when value is absent")

	d = Normalize(`{"thought":"t","action":"type","targetId":"1","value":"new","inputValue":"legacy"}`)
	assert.Equal(t, "new", d.Value, "value wins over inputValue")
}

func TestNormalizeThoughtNeverEmpty(t *testing.T) {
	d := Normalize(`{"action":"wait"}`)
	require.NotEmpty(t, d.Thought)

	d = Normalize(`{"thought":"   ","action":"wait"}`)
	assert.Equal(t, defaultThought, d.Thought)
}
