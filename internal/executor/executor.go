// Package executor carries out normalised decisions against the live page:
// mark resolution, human-path clicks, field typing, scrolling, and waits.
package executor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/humanoid"
)

const (
	waitDuration = 2 * time.Second

	// Per-character typing cadence.
	typeDelayMinMs = 35
	typeDelayMaxMs = 85

	// Wheel distance range for one scroll action.
	scrollMin  = 320.0
	scrollSpan = 360.0
)

// TargetError reports that a decision named a mark the page could not honour.
// The controller charges the failed-target ledger with the id.
type TargetError struct {
	ID     string
	Reason string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("mark #%s: %s", e.ID, e.Reason)
}

// Result is the replayable record of one executed action. Note carries a
// human-readable caveat (such as a redirected target) for the trace and the
// think-aloud stream.
type Result struct {
	Kind     schemas.TraceKind
	Selector string
	X, Y     float64
	HasPoint bool
	Value    string
	WaitMs   int
	DeltaY   float64
	Note     string
}

// locate mirrors the locate-script return shape.
type locate struct {
	Selector string       `json:"selector"`
	Rect     schemas.Rect `json:"rect"`
	Fillable bool         `json:"fillable"`
}

// Executor binds the cursor to one browser tab for the duration of a run.
type Executor struct {
	cursor *humanoid.Cursor
	rng    *rand.Rand
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
	eval   func(ctx context.Context, js string, out interface{}) error
}

// New creates an Executor. A nil rng seeds from the clock.
func New(cursor *humanoid.Cursor, rng *rand.Rand, logger *zap.Logger) *Executor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Executor{
		cursor: cursor,
		rng:    rng,
		logger: logger.Named("executor"),
		sleep:  sleepCtx,
		eval:   chromedpEval,
	}
}

func chromedpEval(ctx context.Context, js string, out interface{}) error {
	return chromedp.Run(ctx, chromedp.Evaluate(js, out))
}

// Execute performs one decision and returns its trace record. Unknown or
// unusable targets come back as *TargetError.
func (e *Executor) Execute(ctx context.Context, d schemas.Decision) (*Result, error) {
	switch d.Action {
	case schemas.ActionClick:
		return e.click(ctx, d.TargetID)
	case schemas.ActionType:
		return e.typeInto(ctx, d.TargetID, d.Value)
	case schemas.ActionScroll:
		return e.scroll(ctx)
	case schemas.ActionWait:
		return e.wait(ctx)
	default:
		return nil, fmt.Errorf("executor: unsupported action %q", d.Action)
	}
}

func (e *Executor) click(ctx context.Context, targetID string) (*Result, error) {
	loc, err := e.resolve(ctx, targetID)
	if err != nil {
		return nil, err
	}

	point := e.pointInRect(loc.Rect)
	if err := e.cursor.MoveTo(ctx, point); err != nil {
		return nil, err
	}
	if err := e.cursor.Click(ctx); err != nil {
		return nil, err
	}

	e.logger.Debug("Click executed.",
		zap.String("target", targetID), zap.String("selector", loc.Selector))
	return &Result{
		Kind:     schemas.TraceClick,
		Selector: loc.Selector,
		X:        point.X,
		Y:        point.Y,
		HasPoint: true,
	}, nil
}

func (e *Executor) typeInto(ctx context.Context, targetID, value string) (*Result, error) {
	loc, err := e.resolve(ctx, targetID)
	if err != nil {
		return nil, err
	}

	// A non-fillable target redirects to the nearest visible field; the model
	// often names the label next to an input rather than the input itself.
	fieldID := targetID
	note := ""
	if !loc.Fillable {
		center := loc.Rect
		var handle string
		err := e.eval(ctx,
			fmt.Sprintf(nearestFillableScript, center.X+center.W/2, center.Y+center.H/2), &handle)
		if err != nil || handle == "" {
			return nil, &TargetError{ID: targetID, Reason: "not fillable and no field nearby"}
		}
		fieldID = handle
		if loc, err = e.resolve(ctx, fieldID); err != nil {
			return nil, err
		}
		note = fmt.Sprintf("mark #%s is not fillable; typed into the nearest field instead", targetID)
		e.logger.Debug("Type target redirected to nearby field.",
			zap.String("target", targetID), zap.String("selector", loc.Selector))
	}

	point := e.pointInRect(loc.Rect)
	if err := e.cursor.MoveTo(ctx, point); err != nil {
		return nil, err
	}
	if err := e.cursor.Click(ctx); err != nil {
		return nil, err
	}

	var cleared bool
	if err := e.eval(ctx, fmt.Sprintf(clearFieldScript, fieldID), &cleared); err != nil {
		return nil, fmt.Errorf("executor: clearing field failed: %w", err)
	}

	for _, r := range value {
		if err := chromedp.Run(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return nil, fmt.Errorf("executor: key event failed: %w", err)
		}
		delay := time.Duration(typeDelayMinMs+e.rng.Intn(typeDelayMaxMs-typeDelayMinMs+1)) * time.Millisecond
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("Typed into field.",
		zap.String("target", targetID), zap.String("selector", loc.Selector), zap.Int("chars", len(value)))
	return &Result{
		Kind:     schemas.TraceType,
		Selector: loc.Selector,
		X:        point.X,
		Y:        point.Y,
		HasPoint: true,
		Value:    value,
		Note:     note,
	}, nil
}

func (e *Executor) scroll(ctx context.Context) (*Result, error) {
	if err := e.cursor.Nudge(ctx); err != nil {
		return nil, err
	}
	deltaY := scrollMin + e.rng.Float64()*scrollSpan
	if err := e.cursor.Wheel(ctx, deltaY); err != nil {
		return nil, err
	}
	return &Result{Kind: schemas.TraceScroll, DeltaY: deltaY}, nil
}

func (e *Executor) wait(ctx context.Context) (*Result, error) {
	if err := e.sleep(ctx, waitDuration); err != nil {
		return nil, err
	}
	return &Result{Kind: schemas.TraceWait, WaitMs: int(waitDuration / time.Millisecond)}, nil
}

// resolve maps a mark id onto its element, scrolled into view.
func (e *Executor) resolve(ctx context.Context, targetID string) (*locate, error) {
	if targetID == "" {
		return nil, &TargetError{ID: targetID, Reason: "no target id given"}
	}
	var loc *locate
	if err := e.eval(ctx, fmt.Sprintf(locateScript, targetID), &loc); err != nil {
		return nil, fmt.Errorf("executor: locating mark failed: %w", err)
	}
	if loc == nil {
		return nil, &TargetError{ID: targetID, Reason: "not found on page"}
	}
	if loc.Rect.W <= 0 || loc.Rect.H <= 0 {
		return nil, &TargetError{ID: targetID, Reason: "has no visible area"}
	}
	return loc, nil
}

// pointInRect picks a click point inset from the edges so clicks land inside
// the element even with micro-drift. Inset is 20 percent of the minor
// dimension, clamped to 2..10px.
func (e *Executor) pointInRect(r schemas.Rect) humanoid.Vector2D {
	minor := r.W
	if r.H < minor {
		minor = r.H
	}
	inset := minor * 0.2
	if inset < 2 {
		inset = 2
	}
	if inset > 10 {
		inset = 10
	}

	w := r.W - 2*inset
	h := r.H - 2*inset
	if w <= 0 || h <= 0 {
		return humanoid.Vector2D{X: r.X + r.W/2, Y: r.Y + r.H/2}
	}
	return humanoid.Vector2D{
		X: r.X + inset + e.rng.Float64()*w,
		Y: r.Y + inset + e.rng.Float64()*h,
	}
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
