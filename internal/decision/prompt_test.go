package decision

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ard14n/AJETE/api/schemas"
)

func entry(step int, action schemas.ActionKind, target string) schemas.HistoryEntry {
	return schemas.HistoryEntry{Step: step, Decision: schemas.Decision{
		Thought: "t", Action: action, TargetID: target,
	}}
}

func TestLoopGuardHint(t *testing.T) {
	t.Run("no repetition no hint", func(t *testing.T) {
		history := []schemas.HistoryEntry{
			entry(1, schemas.ActionClick, "1"),
			entry(2, schemas.ActionClick, "2"),
			entry(3, schemas.ActionScroll, ""),
		}
		assert.Empty(t, LoopGuardHint(history))
	})

	t.Run("repeated pair triggers", func(t *testing.T) {
		history := []schemas.HistoryEntry{
			entry(1, schemas.ActionClick, "4"),
			entry(2, schemas.ActionScroll, ""),
			entry(3, schemas.ActionClick, "4"),
		}
		hint := LoopGuardHint(history)
		require.NotEmpty(t, hint)
		assert.Contains(t, hint, "click #4")
	})

	t.Run("repetition outside window ignored", func(t *testing.T) {
		history := []schemas.HistoryEntry{
			entry(1, schemas.ActionClick, "4"),
			entry(2, schemas.ActionClick, "4"),
		}
		for i := 3; i <= 10; i++ {
			history = append(history, entry(i, schemas.ActionClick, fmt.Sprintf("%d", i)))
		}
		assert.Empty(t, LoopGuardHint(history), "only the last eight entries count")
	})

	t.Run("same action different targets no hint", func(t *testing.T) {
		history := []schemas.HistoryEntry{
			entry(1, schemas.ActionClick, "1"),
			entry(2, schemas.ActionClick, "2"),
			entry(3, schemas.ActionClick, "3"),
		}
		assert.Empty(t, LoopGuardHint(history))
	})
}

func somWith(elements ...schemas.SoMElement) *schemas.SoMResult {
	return &schemas.SoMResult{Count: len(elements), Elements: elements}
}

func TestBuildPromptPersonaAndBare(t *testing.T) {
	base := Context{
		Persona:   schemas.Persona{BasePrompt: "You are a patient explorer."},
		Objective: "find the pricing page",
		URL:       "https://example.com",
		Title:     "Example",
	}

	prompt := BuildPrompt(base)
	assert.Contains(t, prompt, "You are a patient explorer.")
	assert.Contains(t, prompt, "find the pricing page")

	base.Bare = true
	prompt = BuildPrompt(base)
	assert.NotContains(t, prompt, "You are a patient explorer.")
	assert.Contains(t, prompt, bareInstruction)
}

func TestBuildPromptMarksAndFailures(t *testing.T) {
	elements := make([]schemas.SoMElement, 30)
	for i := range elements {
		elements[i] = schemas.SoMElement{
			ID: i, Tag: "a", Text: fmt.Sprintf("link %d", i),
			Score: i % 5, Rect: schemas.Rect{W: 50, H: 20},
		}
	}

	prompt := BuildPrompt(Context{
		Persona:       schemas.Persona{BasePrompt: "p"},
		Objective:     "explore",
		SoM:           somWith(elements...),
		FailedTargets: map[string]int{"7": 2, "3": 1},
	})

	assert.Contains(t, prompt, "Visible interactable marks: 30")
	assert.LessOrEqual(t, strings.Count(prompt, "  #"), maxPromptMarks, "top marks are capped")
	assert.Contains(t, prompt, "#3 (x1)")
	assert.Contains(t, prompt, "#7 (x2)")
}

func TestBuildPromptNoPerception(t *testing.T) {
	prompt := BuildPrompt(Context{
		Persona:   schemas.Persona{BasePrompt: "p"},
		Objective: "explore",
	})
	assert.Contains(t, prompt, "Perception is unavailable this turn")
}

func TestMenuLabels(t *testing.T) {
	ctx := Context{
		Objective: "buy cheap toaster",
		SoM: somWith(
			schemas.SoMElement{ID: 0, Tag: "a", Text: "Home"},
			schemas.SoMElement{ID: 1, Tag: "a", Text: "Toaster deals"},
			schemas.SoMElement{ID: 2, Tag: "a", Text: "Imprint"},
			schemas.SoMElement{ID: 3, Tag: "a", Text: "Shop"},
		),
	}

	labels := menuLabels(ctx)
	joined := strings.Join(labels, "|")
	assert.Contains(t, joined, "Home")
	assert.Contains(t, joined, "Toaster deals", "objective words count as keywords")
	assert.Contains(t, joined, "Shop")
	assert.NotContains(t, joined, "Imprint")
}

func TestFormatMark(t *testing.T) {
	el := schemas.SoMElement{ID: 4, Tag: "button", Role: "tab", Text: "Overview"}
	assert.Equal(t, `#4 <button role=tab> "Overview"`, FormatMark(el))

	el = schemas.SoMElement{ID: 1, Tag: "a", AriaLabel: "Close dialog"}
	assert.Equal(t, `#1 <a> "Close dialog"`, FormatMark(el))
}
