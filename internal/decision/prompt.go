package decision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ard14n/AJETE/api/schemas"
)

// bareInstruction replaces persona rules when bare mode is on.
const bareInstruction = "You are a precise, evidence-driven web agent. Base every decision only on what " +
	"is visible in the screenshot and the listed marks."

// navigationKeywords are menu-like labels always worth surfacing.
var navigationKeywords = []string{
	"home", "shop", "store", "product", "menu", "search", "kategorie",
	"about", "contact", "login", "sign in", "account", "cart", "warenkorb",
	"news", "service", "pricing", "blog", "support", "angebot", "suche",
}

const (
	maxMenuLabels  = 10
	maxPromptMarks = 20
	historyWindow  = 10
	loopGuardSpan  = 8
)

// Context is everything the prompt assembly reads. Borrowed read-only from
// the controller's ledgers.
type Context struct {
	Persona       schemas.Persona
	Objective     string
	URL           string
	Title         string
	SoM           *schemas.SoMResult
	History       []schemas.HistoryEntry
	FailedTargets map[string]int
	Bare          bool
}

// BuildPrompt composes the full decision prompt: persona or bare rules, the
// mission, the dynamic page context, anti-loop steering, and recent history.
func BuildPrompt(c Context) string {
	var b strings.Builder

	if c.Bare {
		b.WriteString(bareInstruction)
	} else {
		b.WriteString(c.Persona.BasePrompt)
	}
	b.WriteString("\n\nYour mission: ")
	b.WriteString(c.Objective)
	b.WriteString("\n\n")

	writePageContext(&b, c)
	writeFailedTargets(&b, c.FailedTargets)
	if hint := LoopGuardHint(c.History); hint != "" {
		b.WriteString(hint)
		b.WriteString("\n")
	}
	writeHistory(&b, c.History)

	b.WriteString("\nThe screenshot shows the page with numbered marks on interactable elements.\n")
	b.WriteString("Respond with a single JSON object: ")
	b.WriteString(`{"thought": "first-person reasoning", "action": "click"|"scroll"|"type"|"wait"|"done", "targetId": "mark id", "value": "text to type"}`)
	return b.String()
}

func writePageContext(b *strings.Builder, c Context) {
	fmt.Fprintf(b, "Current page: %s (%q)\n", c.URL, c.Title)
	if c.SoM == nil {
		b.WriteString("Perception is unavailable this turn; reason from the screenshot alone.\n")
		return
	}
	fmt.Fprintf(b, "Visible interactable marks: %d\n", c.SoM.Count)

	if menu := menuLabels(c); len(menu) > 0 {
		b.WriteString("Menu-like labels: ")
		b.WriteString(strings.Join(menu, ", "))
		b.WriteString("\n")
	}

	marks := topMarks(c.SoM.Elements, maxPromptMarks)
	if len(marks) > 0 {
		b.WriteString("Top marks:\n")
		for _, el := range marks {
			b.WriteString("  ")
			b.WriteString(FormatMark(el))
			b.WriteString("\n")
		}
	}
}

// FormatMark renders one SoM element as `#id <tag role=…> "short label"`.
func FormatMark(el schemas.SoMElement) string {
	var tag strings.Builder
	tag.WriteString("<")
	tag.WriteString(el.Tag)
	if el.Role != "" {
		tag.WriteString(" role=")
		tag.WriteString(el.Role)
	}
	tag.WriteString(">")

	label := el.Text
	if label == "" {
		label = el.AriaLabel
	}
	if label == "" {
		label = el.Title
	}
	return fmt.Sprintf("#%d %s %q", el.ID, tag.String(), label)
}

// menuLabels surfaces up to ten visible labels containing an objective
// keyword or a fixed navigation keyword.
func menuLabels(c Context) []string {
	keywords := append([]string{}, navigationKeywords...)
	for _, w := range strings.Fields(strings.ToLower(c.Objective)) {
		if len(w) >= 4 {
			keywords = append(keywords, w)
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, el := range c.SoM.Elements {
		label := el.Text
		if label == "" {
			label = el.AriaLabel
		}
		if label == "" {
			continue
		}
		lower := strings.ToLower(label)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				if !seen[lower] {
					seen[lower] = true
					out = append(out, fmt.Sprintf("#%d %q", el.ID, label))
				}
				break
			}
		}
		if len(out) >= maxMenuLabels {
			break
		}
	}
	return out
}

// topMarks returns up to n elements by interactive score, ties by area.
func topMarks(elements []schemas.SoMElement, n int) []schemas.SoMElement {
	sorted := make([]schemas.SoMElement, len(elements))
	copy(sorted, elements)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Rect.Area() > sorted[j].Rect.Area()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func writeFailedTargets(b *strings.Builder, failed map[string]int) {
	if len(failed) == 0 {
		return
	}
	ids := make([]string, 0, len(failed))
	for id := range failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteString("These marks failed before; avoid them: ")
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("#%s (x%d)", id, failed[id]))
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString("\n")
}

// LoopGuardHint returns a steering paragraph iff some (action, targetId)
// pair repeats at least twice within the last eight history entries.
func LoopGuardHint(history []schemas.HistoryEntry) string {
	window := history
	if len(window) > loopGuardSpan {
		window = window[len(window)-loopGuardSpan:]
	}

	counts := make(map[string]int)
	for _, h := range window {
		counts[actionKey(h.Decision)]++
	}

	var repeated []string
	for key, n := range counts {
		if n >= 2 {
			repeated = append(repeated, key)
		}
	}
	if len(repeated) == 0 {
		return ""
	}
	sort.Strings(repeated)
	return fmt.Sprintf("You have been repeating %s without progress. Choose a different mark this time, "+
		"and prefer elements inside any open overlay or dialog over the background page.",
		strings.Join(repeated, ", "))
}

func actionKey(d schemas.Decision) string {
	if d.TargetID == "" {
		return string(d.Action)
	}
	return fmt.Sprintf("%s #%s", d.Action, d.TargetID)
}

func writeHistory(b *strings.Builder, history []schemas.HistoryEntry) {
	window := history
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	if len(window) == 0 {
		return
	}
	b.WriteString("Recent steps:\n")
	for _, h := range window {
		fmt.Fprintf(b, "  step %d: %s -> %s", h.Step, shorten(h.Decision.Thought, 70), h.Decision.Action)
		if h.Decision.TargetID != "" {
			fmt.Fprintf(b, " #%s", h.Decision.TargetID)
		}
		if h.Decision.Value != "" {
			fmt.Fprintf(b, " %q", h.Decision.Value)
		}
		b.WriteString("\n")
	}
}

func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
