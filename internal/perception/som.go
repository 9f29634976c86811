// Package perception implements the Set-of-Marks layer: in-page candidate
// harvest plus Go-side ranking, dedup, mark assignment and overlay layout.
package perception

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Scanner drives one SoM pass against the active page.
type Scanner struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewScanner creates a Scanner with the loop's perception ceilings.
func NewScanner(cfg config.BrowserConfig, logger *zap.Logger) *Scanner {
	return &Scanner{cfg: cfg, logger: logger.Named("som")}
}

// renderMark is the overlay payload for one accepted candidate.
type renderMark struct {
	ID        int          `json:"id"`
	CandIndex int          `json:"candIndex"`
	Rect      schemas.Rect `json:"rect"`
	Label     struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"label"`
}

// Scan discovers, ranks, marks and overlays the interactable elements of the
// current viewport. It is bounded by the perception timeout; callers treat a
// nil result as "proceed with the raw screenshot".
func (s *Scanner) Scan(ctx context.Context) (*schemas.SoMResult, error) {
	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.PerceptionTimeout)
	defer cancel()

	started := time.Now()

	script := fmt.Sprintf(harvestScript,
		s.cfg.StabilityQuiet.Milliseconds(), s.cfg.StabilityCap.Milliseconds())

	var raw harvest
	if err := chromedp.Run(scanCtx, chromedp.Evaluate(script, &raw, awaitPromise)); err != nil {
		return nil, fmt.Errorf("som harvest failed: %w", err)
	}

	accepted := rankAndDedup(raw.Candidates)
	labels := placeLabels(accepted, raw.ViewportW, raw.ViewportH)

	marks := make([]renderMark, len(accepted))
	elements := make([]schemas.SoMElement, len(accepted))
	for i, a := range accepted {
		m := renderMark{ID: a.ID, CandIndex: a.CandIndex, Rect: a.Element.Rect}
		m.Label.X = labels[i].X
		m.Label.Y = labels[i].Y
		marks[i] = m
		elements[i] = a.Element
	}

	payload, err := json.Marshal(marks)
	if err != nil {
		return nil, fmt.Errorf("som overlay payload: %w", err)
	}

	var drawn int
	if err := chromedp.Run(scanCtx, chromedp.Evaluate(fmt.Sprintf(renderScript, payload), &drawn)); err != nil {
		return nil, fmt.Errorf("som overlay render failed: %w", err)
	}

	s.logger.Debug("SoM pass complete",
		zap.Int("candidates", len(raw.Candidates)),
		zap.Int("marks", len(accepted)),
		zap.Duration("took", time.Since(started)))

	return &schemas.SoMResult{Count: len(elements), Elements: elements}, nil
}

// SetOverlayVisible toggles the rendered overlay without re-running
// discovery. Used to produce the clean operator capture.
func (s *Scanner) SetOverlayVisible(ctx context.Context, visible bool) error {
	var ok bool
	return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(toggleScript, visible), &ok))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}
