package decision

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
	"github.com/ard14n/AJETE/internal/llm"
)

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		DefaultModel: "gemini-2.0-flash",
		MaxAttempts:  3,
		BackoffStep:  1200 * time.Millisecond,
	}
}

// recordedSleeps swaps the engine's sleep for a recorder.
func recordedSleeps(e *Engine) *[]time.Duration {
	var slept []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return &slept
}

func TestDecideSuccess(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		`{"thought":"I'll open the menu.","action":"click","targetId":"2"}`,
	}}
	e := NewEngine(mock, testLLMConfig(), nil, zap.NewNop())

	d := e.Decide(context.Background(), Context{Objective: "explore"}, nil, "", false)

	require.Equal(t, schemas.ActionClick, d.Action)
	assert.Equal(t, "2", d.TargetID)
	assert.Equal(t, 1, mock.Calls())
}

func TestDecideRetriesTransientErrors(t *testing.T) {
	mock := &llm.MockClient{
		Errs:      []error{llm.ErrRateLimited, llm.ErrUnavailable, nil},
		Responses: []string{`{"thought":"t","action":"scroll"}`},
	}
	e := NewEngine(mock, testLLMConfig(), nil, zap.NewNop())
	slept := recordedSleeps(e)

	d := e.Decide(context.Background(), Context{}, nil, "", false)

	require.Equal(t, schemas.ActionScroll, d.Action)
	assert.Equal(t, 3, mock.Calls())
	// Linear backoff: attempt * step.
	require.Len(t, *slept, 2)
	assert.Equal(t, 1200*time.Millisecond, (*slept)[0])
	assert.Equal(t, 2400*time.Millisecond, (*slept)[1])
}

func TestDecideNonTransientErrorNoRetry(t *testing.T) {
	mock := &llm.MockClient{Errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	e := NewEngine(mock, testLLMConfig(), nil, zap.NewNop())
	recordedSleeps(e)

	d := e.Decide(context.Background(), Context{}, nil, "", false)

	assert.Equal(t, schemas.ActionWait, d.Action)
	assert.Equal(t, 1, mock.Calls(), "non-transient errors are not retried")
}

func TestDecideDegradesToWaitWithRateLimitThought(t *testing.T) {
	mock := &llm.MockClient{Errs: []error{llm.ErrRateLimited, llm.ErrRateLimited, llm.ErrRateLimited}}
	e := NewEngine(mock, testLLMConfig(), nil, zap.NewNop())
	recordedSleeps(e)

	d := e.Decide(context.Background(), Context{}, nil, "", false)

	require.Equal(t, schemas.ActionWait, d.Action)
	assert.Equal(t, rateLimitThought, d.Thought)
	assert.Equal(t, 3, mock.Calls())
}

func TestMonkeyDecisionNoMarksScrolls(t *testing.T) {
	e := NewEngine(&llm.MockClient{}, testLLMConfig(), rand.New(rand.NewSource(1)), zap.NewNop())

	d := e.MonkeyDecision(nil)
	assert.Equal(t, schemas.ActionScroll, d.Action)

	d = e.MonkeyDecision(&schemas.SoMResult{})
	assert.Equal(t, schemas.ActionScroll, d.Action)
}

func TestMonkeyDecisionNeverTypesWithoutInputs(t *testing.T) {
	som := &schemas.SoMResult{Count: 2, Elements: []schemas.SoMElement{
		{ID: 0, Tag: "a"}, {ID: 1, Tag: "button"},
	}}
	e := NewEngine(&llm.MockClient{}, testLLMConfig(), rand.New(rand.NewSource(7)), zap.NewNop())

	for i := 0; i < 200; i++ {
		d := e.MonkeyDecision(som)
		require.NotEqual(t, schemas.ActionType, d.Action, "type must fall through to click without inputs")
		require.NotEqual(t, schemas.ActionDone, d.Action, "monkey mode never finishes on its own")
	}
}

func TestMonkeyDecisionTypesIntoInputs(t *testing.T) {
	som := &schemas.SoMResult{Count: 2, Elements: []schemas.SoMElement{
		{ID: 0, Tag: "a"}, {ID: 1, Tag: "input"},
	}}
	e := NewEngine(&llm.MockClient{}, testLLMConfig(), rand.New(rand.NewSource(7)), zap.NewNop())

	sawType := false
	for i := 0; i < 200 && !sawType; i++ {
		d := e.MonkeyDecision(som)
		if d.Action == schemas.ActionType {
			sawType = true
			assert.Equal(t, "1", d.TargetID)
			assert.NotEmpty(t, d.Value)
		}
	}
	assert.True(t, sawType, "with an input present the type branch should fire eventually")
}

func TestDecideMonkeyModeSkipsModel(t *testing.T) {
	mock := &llm.MockClient{}
	e := NewEngine(mock, testLLMConfig(), rand.New(rand.NewSource(3)), zap.NewNop())

	e.Decide(context.Background(), Context{SoM: &schemas.SoMResult{
		Count: 1, Elements: []schemas.SoMElement{{ID: 0, Tag: "a"}},
	}}, nil, "", true)

	assert.Zero(t, mock.Calls())
}
