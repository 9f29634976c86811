// Package cookies recognises and removes consent surfaces with escalating
// layers: strict vendor selectors, container text patterns, same-origin
// iframes, and finally a vision-coordinate click through the cursor.
package cookies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/internal/humanoid"
)

// verifyDelay is how long a dismissal attempt gets to take effect before
// detection runs again.
const verifyDelay = 850 * time.Millisecond

// Layer names recorded in trace-step notes.
const (
	LayerStrict    = "strict selector"
	LayerContainer = "text pattern"
	LayerIframe    = "iframe"
	LayerVision    = "vision fallback"
)

// Outcome describes one successful dismissal for trace annotation.
type Outcome struct {
	Layer    string
	Detail   string
	X, Y     float64
	HasPoint bool
}

// Note renders the trace-step annotation, e.g.
// "cookie banner vision fallback (Alle akzeptieren)".
func (o Outcome) Note() string {
	if o.Detail == "" {
		return fmt.Sprintf("cookie banner %s", o.Layer)
	}
	return fmt.Sprintf("cookie banner %s (%s)", o.Layer, o.Detail)
}

// Dismisser runs the layered recogniser once per loop turn.
type Dismisser struct {
	cursor *humanoid.Cursor
	logger *zap.Logger
	// sleep is swappable in tests.
	sleep func(context.Context, time.Duration) error
}

// NewDismisser builds a Dismisser around the run's cursor.
func NewDismisser(cursor *humanoid.Cursor, logger *zap.Logger) *Dismisser {
	return &Dismisser{
		cursor: cursor,
		logger: logger.Named("cookies"),
		sleep:  sleepCtx,
	}
}

// Dismiss detects a cookie surface and escalates through the layers until
// it disappears. Returns nil when no surface was present. Errors never
// propagate to the loop; the caller logs and continues.
func (d *Dismisser) Dismiss(ctx context.Context) (*Outcome, error) {
	present, err := d.detect(ctx)
	if err != nil || !present {
		return nil, err
	}

	if outcome := d.tryScriptLayer(ctx, LayerStrict,
		fmt.Sprintf(strictDismissScript, strictSelectorsJSON)); outcome != nil {
		return outcome, nil
	}
	if outcome := d.tryScriptLayer(ctx, LayerContainer,
		fmt.Sprintf(containerDismissScript, acceptPhrasesJSON)); outcome != nil {
		return outcome, nil
	}
	if outcome := d.tryScriptLayer(ctx, LayerIframe,
		fmt.Sprintf(iframeDismissScript, strictSelectorsJSON)); outcome != nil {
		return outcome, nil
	}
	return d.tryVisionLayer(ctx)
}

func (d *Dismisser) detect(ctx context.Context) (bool, error) {
	detectCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var present bool
	if err := chromedp.Run(detectCtx, chromedp.Evaluate(detectScript, &present)); err != nil {
		return false, fmt.Errorf("cookie detection failed: %w", err)
	}
	return present, nil
}

// tryScriptLayer runs one DOM-click layer and verifies the surface is gone.
func (d *Dismisser) tryScriptLayer(ctx context.Context, layer, script string) *Outcome {
	runCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	var matched string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &matched)); err != nil {
		d.logger.Debug("Cookie layer errored.", zap.String("layer", layer), zap.Error(err))
		return nil
	}
	if matched == "" {
		return nil
	}

	detail := matched
	if i := strings.Index(matched, "@@"); i >= 0 {
		detail = fmt.Sprintf("%s in frame %s", matched[:i], matched[i+2:])
	}

	if !d.verifyGone(ctx) {
		d.logger.Debug("Cookie surface survived layer.", zap.String("layer", layer), zap.String("match", matched))
		return nil
	}
	d.logger.Info("Cookie surface dismissed.", zap.String("layer", layer), zap.String("match", matched))
	return &Outcome{Layer: layer, Detail: detail}
}

// visionTarget mirrors the locate-script result.
type visionTarget struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// tryVisionLayer locates the best accept-phrase node by score and clicks its
// centre with simulated mouse motion.
func (d *Dismisser) tryVisionLayer(ctx context.Context) (*Outcome, error) {
	locateCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var target *visionTarget
	if err := chromedp.Run(locateCtx, chromedp.Evaluate(fmt.Sprintf(visionLocateScript, acceptPhrasesJSON), &target)); err != nil {
		return nil, fmt.Errorf("cookie vision locate failed: %w", err)
	}
	if target == nil {
		return nil, nil
	}

	if err := d.cursor.MoveTo(ctx, humanoid.Vector2D{X: target.X, Y: target.Y}); err != nil {
		return nil, err
	}
	if err := d.cursor.Click(ctx); err != nil {
		return nil, err
	}

	if !d.verifyGone(ctx) {
		d.logger.Debug("Cookie surface survived vision click.", zap.String("label", target.Label))
		return nil, nil
	}
	d.logger.Info("Cookie surface dismissed via vision fallback.", zap.String("label", target.Label))
	return &Outcome{Layer: LayerVision, Detail: target.Label, X: target.X, Y: target.Y, HasPoint: true}, nil
}

func (d *Dismisser) verifyGone(ctx context.Context) bool {
	if err := d.sleep(ctx, verifyDelay); err != nil {
		return false
	}
	present, err := d.detect(ctx)
	return err == nil && !present
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
