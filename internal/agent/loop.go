package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/target"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/artifacts"
	"github.com/ard14n/AJETE/internal/browser"
	"github.com/ard14n/AJETE/internal/cookies"
	"github.com/ard14n/AJETE/internal/decision"
	"github.com/ard14n/AJETE/internal/executor"
	"github.com/ard14n/AJETE/internal/humanoid"
	"github.com/ard14n/AJETE/internal/perception"
)

// runLoop is the whole journey: launch, navigate, then perceive-decide-act
// until done, stagnation, stop, or loss of the page.
func (c *Controller) runLoop(ctx context.Context, r *run) {
	defer close(r.done)
	defer c.finishRun(r)
	defer r.gate.Cancel()

	logger := c.logger.With(zap.String("run_id", r.id))

	// The browser outlives the loop context so teardown can still render the
	// report PDF after a stop request.
	session := browser.NewSession(c.cfg.Browser, r.persona, logger)
	if err := session.Launch(context.Background(), r.opts.Headless); err != nil {
		logger.Error("Browser launch failed.", zap.Error(err))
		r.recorder.RecordError(err.Error(), r.opts.URL)
		c.sink.Emit(schemas.Event{Kind: schemas.EventError, Payload: schemas.ErrorPayload{Message: err.Error()}})
		return
	}
	defer session.Close()
	defer c.writeArtifacts(r, session, logger)

	c.say(ctx, r, fmt.Sprintf("Alright, I'm opening %s. Let's see what we have here.", r.opts.URL), r.opts.URL)

	if err := session.Navigate(r.opts.URL); err != nil {
		logger.Warn("Initial navigation did not settle; continuing with what loaded.", zap.Error(err))
		c.say(ctx, r, "The page is taking its time to load fully. I'll work with whatever has arrived.", r.opts.URL)
	}
	r.recorder.RecordTrace(schemas.TraceStep{Kind: schemas.TraceGoto, URL: r.opts.URL})
	if err := sleepCtx(ctx, c.cfg.Browser.HydrationWait); err != nil {
		return
	}

	cursor := humanoid.NewCursor(humanoid.CDPDispatcher{}, c.sink,
		r.persona.Width, r.persona.Height, nil, logger)
	if err := cursor.InitCenter(session.Active()); err != nil {
		logger.Warn("Cursor init failed.", zap.Error(err))
	}

	scanner := perception.NewScanner(c.cfg.Browser, logger)
	dismisser := cookies.NewDismisser(cursor, logger)
	exec := executor.New(cursor, nil, logger)
	engine := decision.NewEngine(c.client, c.cfg.LLM, nil, logger)
	ledger := NewLedger()

	for ctx.Err() == nil {
		if !c.handleTabEvents(ctx, r, session, cursor, logger) {
			break
		}
		pageCtx := session.Active()

		if outcome, err := dismisser.Dismiss(pageCtx); err != nil {
			logger.Debug("Cookie pass errored; moving on.", zap.Error(err))
		} else if outcome != nil {
			url, _ := session.Location(pageCtx)
			c.say(ctx, r, "There's a cookie banner in the way. Accepting it so I can see the page.", url)
			r.recorder.RecordTrace(schemas.TraceStep{
				Kind: schemas.TraceClick, URL: url,
				X: outcome.X, Y: outcome.Y, HasPoint: outcome.HasPoint,
				Note: outcome.Note(),
			})
		}

		url, title := session.Location(pageCtx)

		c.setStatus(schemas.StatusScanning)
		som, err := scanner.Scan(pageCtx)
		if err != nil {
			logger.Warn("Perception incomplete this turn.", zap.Error(err))
			c.say(ctx, r, "The page is still settling, so I couldn't map it out properly. I'll go with what I can see.", url)
			som = nil
		}

		marked, err := session.Screenshot(pageCtx)
		if err != nil {
			c.reportFailure(ctx, r, err, url, logger)
			continue
		}
		c.streamCapture(r, session, scanner, pageCtx, marked, som, url, logger)

		c.setStatus(schemas.StatusThinking)
		d := engine.Decide(ctx, decision.Context{
			Persona:       r.persona,
			Objective:     r.opts.Objective,
			URL:           url,
			Title:         title,
			SoM:           som,
			History:       ledger.Entries(),
			FailedTargets: ledger.FailedTargets(),
			Bare:          r.opts.BareMode,
		}, marked, r.opts.ModelName, r.opts.MonkeyMode)

		ledger.Append(d)
		if ledger.ObserveStagnation() {
			d = schemas.Decision{
				Thought: "I keep going in circles here, so I'll wrap up this journey.",
				Action:  schemas.ActionDone,
			}
		}

		c.say(ctx, r, d.Thought, url)
		step := r.recorder.RecordStep(d, url)
		c.sink.Emit(schemas.Event{Kind: schemas.EventStep, Payload: schemas.StepPayload{
			ID: step.ID, Action: d.Action, TargetID: d.TargetID, Value: d.Value, Thought: d.Thought,
		}})

		if d.Action == schemas.ActionDone {
			logger.Info("Journey finished.", zap.Int("steps", step.ID))
			break
		}

		c.setStatus(schemas.StatusActing)
		res, err := exec.Execute(pageCtx, d)
		if err != nil {
			var te *executor.TargetError
			if errors.As(err, &te) {
				ledger.ChargeFailure(te.ID)
			}
			c.reportFailure(ctx, r, err, url, logger)
			continue
		}
		if d.TargetID != "" {
			ledger.CreditSuccess(d.TargetID)
		}
		if res.Note != "" {
			c.say(ctx, r, "That spot wasn't a text box after all, so I typed into the field right next to it.", url)
		}
		r.recorder.RecordTrace(schemas.TraceStep{
			Kind:     res.Kind,
			URL:      url,
			Selector: res.Selector,
			X:        res.X,
			Y:        res.Y,
			HasPoint: res.HasPoint,
			Value:    res.Value,
			WaitMs:   res.WaitMs,
			DeltaY:   res.DeltaY,
			Note:     res.Note,
		})

		if err := sleepCtx(ctx, c.cfg.Browser.SettleWait); err != nil {
			break
		}
	}
}

// pageCapturer is the slice of the browser session the capture path needs.
type pageCapturer interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// overlayControl toggles the mark overlay on the live page.
type overlayControl interface {
	SetOverlayVisible(ctx context.Context, visible bool) error
}

// streamCapture pushes the operator-facing screenshot. Debug mode streams
// the marked view; otherwise the overlay is hidden for a clean capture and
// restored right after.
func (c *Controller) streamCapture(r *run, page pageCapturer, overlay overlayControl,
	pageCtx context.Context, marked []byte, som *schemas.SoMResult, url string, logger *zap.Logger) {
	png := marked
	if !r.opts.DebugMarks && som != nil {
		if err := overlay.SetOverlayVisible(pageCtx, false); err == nil {
			if clean, err := page.Screenshot(pageCtx); err == nil {
				png = clean
			}
			if err := overlay.SetOverlayVisible(pageCtx, true); err != nil {
				logger.Debug("Overlay not restored.", zap.Error(err))
			}
		}
	}

	c.sink.Emit(schemas.Event{Kind: schemas.EventScreenshot, Payload: schemas.ScreenshotPayload{
		DataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}})
	if r.opts.SaveScreenshots {
		if _, err := r.recorder.SaveScreenshot(png, url); err != nil {
			logger.Warn("Screenshot not saved.", zap.Error(err))
		}
	}
}

// reportFailure applies the unified failure policy: record, stream, narrate,
// then give the page time to recover.
func (c *Controller) reportFailure(ctx context.Context, r *run, err error, url string, logger *zap.Logger) {
	logger.Warn("Step failed.", zap.Error(err))
	r.recorder.RecordError(err.Error(), url)
	c.sink.Emit(schemas.Event{Kind: schemas.EventError, Payload: schemas.ErrorPayload{Message: err.Error()}})
	c.say(ctx, r, "Hmm, that didn't work as expected. Let me take another look.", url)
	_ = sleepCtx(ctx, c.cfg.Browser.FailureWait)
}

// tabDriver is the slice of the browser session the tab-follow path needs.
type tabDriver interface {
	Events() <-chan browser.TabEvent
	Active() context.Context
	ActiveID() target.ID
	SurvivingPage(except target.ID) (target.ID, bool)
	SwitchTo(id target.ID) error
	Location(ctx context.Context) (url, title string)
}

// handleTabEvents drains pending tab notifications. Returns false when no
// page is left to drive. Only the first popup of a run is followed; later
// ones would drag the journey across every tab a page opens.
func (c *Controller) handleTabEvents(ctx context.Context, r *run, session tabDriver,
	cursor *humanoid.Cursor, logger *zap.Logger) bool {
	for {
		select {
		case ev := <-session.Events():
			switch ev.Kind {
			case browser.TabOpened:
				if r.followedPopup {
					logger.Debug("Additional popup ignored.", zap.String("target_id", string(ev.TargetID)))
					continue
				}
				if err := session.SwitchTo(ev.TargetID); err != nil {
					logger.Warn("Could not follow new tab.", zap.Error(err))
					continue
				}
				r.followedPopup = true
				url, _ := session.Location(session.Active())
				c.say(ctx, r, "A new tab just opened. I'll follow it.", url)
				r.recorder.RecordTrace(schemas.TraceStep{
					Kind: schemas.TraceTabSwitch, URL: url, Note: "followed popup",
				})
				if err := cursor.InitCenter(session.Active()); err != nil {
					logger.Debug("Cursor reinit failed.", zap.Error(err))
				}
			case browser.TabClosed, browser.TabCrashed:
				if ev.TargetID != session.ActiveID() {
					continue
				}
				survivor, ok := session.SurvivingPage(ev.TargetID)
				if !ok {
					c.say(ctx, r, "The page I was on is gone and nothing is left. Ending the journey here.", "")
					return false
				}
				if err := session.SwitchTo(survivor); err != nil {
					logger.Error("Could not switch to surviving tab.", zap.Error(err))
					return false
				}
				url, _ := session.Location(session.Active())
				c.say(ctx, r, "My tab went away, so I'm continuing in the one that's left.", url)
				r.recorder.RecordTrace(schemas.TraceStep{
					Kind: schemas.TraceTabSwitch, URL: url, Note: "active tab closed",
				})
				if err := cursor.InitCenter(session.Active()); err != nil {
					logger.Debug("Cursor reinit failed.", zap.Error(err))
				}
			}
		default:
			return true
		}
	}
}

// say records and streams a thought, then holds the loop while it is spoken.
func (c *Controller) say(ctx context.Context, r *run, message, url string) {
	if message == "" {
		return
	}
	r.recorder.RecordThought(message, url)
	c.sink.Emit(schemas.Event{Kind: schemas.EventThought, Payload: schemas.ThoughtPayload{
		Message: message, URL: url,
	}})

	if c.synth == nil || !r.gate.Enabled() {
		return
	}
	synthCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	req, ok, err := c.synth.Synthesize(synthCtx, message, r.persona.Voice)
	cancel()
	if err != nil {
		c.logger.Warn("Speech synthesis failed; continuing silently.", zap.Error(err))
		return
	}
	if ok {
		_ = r.gate.Speak(ctx, req)
	}
}

// writeArtifacts persists the run outputs and announces them. The report set
// is written even for a zero-step run.
func (c *Controller) writeArtifacts(r *run, session *browser.Session, logger *zap.Logger) {
	finalURL, _ := session.Location(session.Active())
	meta := artifacts.RunMeta{
		StartURL:  r.opts.URL,
		FinalURL:  finalURL,
		Objective: r.opts.Objective,
		Persona:   r.persona.Name,
		ModelName: r.opts.ModelName,
	}

	if r.opts.SaveThoughts {
		if _, err := r.recorder.WriteThoughts(); err != nil {
			logger.Warn("Thought log not written.", zap.Error(err))
		}
	}

	if r.opts.SaveTrace {
		jsonPath, _, err := r.recorder.WriteTrace(meta)
		if err != nil {
			logger.Warn("Trace not written.", zap.Error(err))
		} else {
			c.sink.Emit(schemas.Event{Kind: schemas.EventTraceSaved, Payload: schemas.ArtifactPayload{
				Path:        jsonPath,
				DownloadURL: downloadURL(r.id, "trace/"+filepath.Base(jsonPath)),
			}})
		}
	}

	reportCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()
	if _, err := r.recorder.WriteReport(reportCtx, meta, session); err != nil {
		logger.Warn("Report not written.", zap.Error(err))
		return
	}
	c.sink.Emit(schemas.Event{Kind: schemas.EventReportReady, Payload: schemas.ArtifactPayload{
		Path:        r.recorder.Dir() + "/report/report.json",
		DownloadURL: downloadURL(r.id, "report/report.json"),
	}})
}

func downloadURL(runID, rel string) string {
	return "/downloads/" + runID + "/" + rel
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
