package artifacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ard14n/AJETE/api/schemas"
)

func sampleTrace() TraceDocument {
	return TraceDocument{
		Version:   traceVersion,
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		RunID:     "2026-03-14T09-26-53-589-tester",
		StartURL:  "https://example.com",
		FinalURL:  "https://example.com/cart",
		Persona:   "tester",
		Steps: []schemas.TraceStep{
			{ID: 1, Kind: schemas.TraceClick, Selector: "#menu", X: 10, Y: 20, HasPoint: true},
			{ID: 2, Kind: schemas.TraceType, Selector: `input[name="q"]`, Value: `tea "green"`},
			{ID: 3, Kind: schemas.TraceScroll, DeltaY: 480},
			{ID: 4, Kind: schemas.TraceWait, WaitMs: 2000},
			{ID: 5, Kind: schemas.TraceTabSwitch, URL: "https://example.com/popup"},
			{ID: 6, Kind: schemas.TraceClick, X: 120, Y: 240, HasPoint: true},
		},
	}
}

func TestOpsFromTrace(t *testing.T) {
	ops := OpsFromTrace(sampleTrace())
	require.Len(t, ops, 7, "implicit goto plus six steps")

	assert.Equal(t, schemas.TraceGoto, ops[0].Kind)
	assert.Equal(t, "https://example.com", ops[0].URL)

	assert.Equal(t, schemas.TraceClick, ops[1].Kind)
	assert.Equal(t, "#menu", ops[1].Selector)

	assert.Equal(t, schemas.TraceType, ops[2].Kind)
	assert.Equal(t, `tea "green"`, ops[2].Value)

	assert.Equal(t, schemas.TraceScroll, ops[3].Kind)
	assert.Equal(t, 480.0, ops[3].DeltaY)

	assert.Equal(t, schemas.TraceWait, ops[4].Kind)
	assert.Equal(t, 2000, ops[4].WaitMs)

	assert.Equal(t, schemas.TraceTabSwitch, ops[5].Kind)

	assert.Equal(t, schemas.TraceClick, ops[6].Kind)
	assert.Empty(t, ops[6].Selector)
	assert.True(t, ops[6].HasPoint)
}

func TestOpsFromTraceRecordedGotoComesFirst(t *testing.T) {
	doc := sampleTrace()
	doc.Steps = append([]schemas.TraceStep{
		{ID: 0, Kind: schemas.TraceGoto, URL: "https://example.com"},
	}, doc.Steps...)

	ops := OpsFromTrace(doc)
	require.Len(t, ops, 7, "a recorded leading goto replaces the implicit one")

	gotos := 0
	for _, op := range ops {
		if op.Kind == schemas.TraceGoto {
			gotos++
		}
	}
	assert.Equal(t, 1, gotos, "the start page is navigated exactly once")
}

func TestOpsFromTraceWithoutStartURL(t *testing.T) {
	doc := sampleTrace()
	doc.StartURL = ""
	ops := OpsFromTrace(doc)
	require.Len(t, ops, 6)
	assert.NotEqual(t, schemas.TraceGoto, ops[0].Kind)
}

func TestRenderReplayScript(t *testing.T) {
	script := RenderReplayScript(sampleTrace())

	assert.Contains(t, script, "package main")
	assert.Contains(t, script, `chromedp.Navigate("https://example.com")`)
	assert.Contains(t, script, `chromedp.Click("#menu", chromedp.ByQuery)`)
	// Strings are Go-quoted, including embedded quotes.
	assert.Contains(t, script, `chromedp.SendKeys("input[name=\"q\"]", "tea \"green\"", chromedp.ByQuery)`)
	assert.Contains(t, script, `window.scrollBy(0, 480)`)
	assert.Contains(t, script, "chromedp.Sleep(2000*time.Millisecond)")
	assert.Contains(t, script, "// tab switch to https://example.com/popup")
	// Selector-less clicks fall back to coordinates.
	assert.Contains(t, script, "chromedp.MouseClickXY(120, 240)")
}
