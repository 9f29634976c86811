// Package decision turns observations into normalised actions: prompt
// assembly, model invocation with bounded retries, and the monkey fallback.
package decision

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
	"github.com/ard14n/AJETE/internal/llm"
)

const (
	rateLimitThought = "The model is rate limiting me, so I'll wait a moment before my next move."
	genericThought   = "Something went wrong while I was thinking; I'll pause and reassess."
)

// Engine decides the next action for each loop turn.
type Engine struct {
	client schemas.VisionClient
	cfg    config.LLMConfig
	rng    *rand.Rand
	logger *zap.Logger
	// sleep is swappable so retry timing is testable.
	sleep func(context.Context, time.Duration) error
}

// NewEngine creates an Engine. A nil rng seeds from the clock.
func NewEngine(client schemas.VisionClient, cfg config.LLMConfig, rng *rand.Rand, logger *zap.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		client: client,
		cfg:    cfg,
		rng:    rng,
		logger: logger.Named("decision"),
		sleep:  sleepCtx,
	}
}

// Decide returns exactly one normalised decision. Model failures never
// propagate; they degrade to wait decisions with explanatory thoughts.
func (e *Engine) Decide(ctx context.Context, dctx Context, png []byte, modelName string, monkey bool) schemas.Decision {
	if monkey {
		return e.MonkeyDecision(dctx.SoM)
	}

	prompt := BuildPrompt(dctx)
	req := schemas.GenerationRequest{Prompt: prompt, PNG: png, ModelName: modelName}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		response, err := e.client.Generate(ctx, req)
		if err == nil {
			return Normalize(response)
		}
		lastErr = err

		if !errors.Is(err, llm.ErrRateLimited) && !errors.Is(err, llm.ErrUnavailable) {
			break
		}
		e.logger.Warn("Transient model error; backing off.",
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt < e.cfg.MaxAttempts {
			if err := e.sleep(ctx, time.Duration(attempt)*e.cfg.BackoffStep); err != nil {
				break
			}
		}
	}

	e.logger.Error("Decision failed; degrading to wait.", zap.Error(lastErr))
	thought := genericThought
	if errors.Is(lastErr, llm.ErrRateLimited) {
		thought = rateLimitThought
	}
	return schemas.Decision{Thought: thought, Action: schemas.ActionWait}
}

// Monkey mode action split. Type only fires when a fillable mark exists;
// its share otherwise falls to click.
const (
	monkeyWaitP   = 0.16
	monkeyScrollP = 0.20
	monkeyTypeP   = 0.20
)

var monkeyWords = []string{"test", "hello", "news", "sale", "info", "bmw"}

// MonkeyDecision picks an action without the model: weighted random over the
// observed marks. No marks means scroll.
func (e *Engine) MonkeyDecision(som *schemas.SoMResult) schemas.Decision {
	if som == nil || som.Count == 0 {
		return schemas.Decision{Thought: "Monkey sees nothing clickable; scrolling.", Action: schemas.ActionScroll}
	}

	r := e.rng.Float64()
	switch {
	case r < monkeyWaitP:
		return schemas.Decision{Thought: "Monkey pauses.", Action: schemas.ActionWait}
	case r < monkeyWaitP+monkeyScrollP:
		return schemas.Decision{Thought: "Monkey scrolls.", Action: schemas.ActionScroll}
	case r < monkeyWaitP+monkeyScrollP+monkeyTypeP:
		if input, ok := e.randomInput(som); ok {
			word := monkeyWords[e.rng.Intn(len(monkeyWords))]
			return schemas.Decision{
				Thought:  fmt.Sprintf("Monkey types %q into #%d.", word, input.ID),
				Action:   schemas.ActionType,
				TargetID: fmt.Sprintf("%d", input.ID),
				Value:    word,
			}
		}
		fallthrough
	default:
		el := som.Elements[e.rng.Intn(len(som.Elements))]
		return schemas.Decision{
			Thought:  fmt.Sprintf("Monkey clicks #%d.", el.ID),
			Action:   schemas.ActionClick,
			TargetID: fmt.Sprintf("%d", el.ID),
		}
	}
}

func (e *Engine) randomInput(som *schemas.SoMResult) (schemas.SoMElement, bool) {
	var inputs []schemas.SoMElement
	for _, el := range som.Elements {
		if el.Tag == "input" || el.Tag == "textarea" || el.Role == "textbox" || el.Role == "searchbox" {
			inputs = append(inputs, el)
		}
	}
	if len(inputs) == 0 {
		return schemas.SoMElement{}, false
	}
	return inputs[e.rng.Intn(len(inputs))], true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
