// Package humanoid renders human-like cursor motion: bent Bezier paths with
// eased timing, Perlin micro-drift, occasional overshoot, and the in-page
// ghost cursor with click ripples.
package humanoid

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
)

// perlinAmplitude bounds the micro-drift applied on top of the ideal path.
const perlinAmplitude = 1.4

// Cursor owns the pointer position for one run and animates it.
type Cursor struct {
	dispatcher Dispatcher
	sink       schemas.EventSink
	logger     *zap.Logger

	rng    *rand.Rand
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin

	pos       Vector2D
	viewportW int64
	viewportH int64
}

// NewCursor creates a cursor for a viewport. A nil rng seeds from the clock.
func NewCursor(d Dispatcher, sink schemas.EventSink, viewportW, viewportH int64, rng *rand.Rand, logger *zap.Logger) *Cursor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	seed := rng.Int63()
	return &Cursor{
		dispatcher: d,
		sink:       sink,
		logger:     logger.Named("cursor"),
		rng:        rng,
		noiseX:     perlin.NewPerlin(2, 2, 3, seed),
		noiseY:     perlin.NewPerlin(2, 2, 3, seed+1),
		viewportW:  viewportW,
		viewportH:  viewportH,
	}
}

// Pos returns the current pointer position.
func (c *Cursor) Pos() Vector2D { return c.pos }

// InitCenter warps the pointer to mid-viewport and shows the ghost cursor.
// Used at run start and after every tab switch.
func (c *Cursor) InitCenter(ctx context.Context) error {
	c.pos = Vector2D{X: float64(c.viewportW) / 2, Y: float64(c.viewportH) / 2}
	if err := c.dispatcher.Eval(ctx, ghostCursorScript); err != nil {
		return err
	}
	if err := c.dispatcher.DispatchMouse(ctx, MouseEvent{Type: MouseMove, X: c.pos.X, Y: c.pos.Y}); err != nil {
		return err
	}
	return c.dispatcher.Eval(ctx, fmt.Sprintf(moveGhostScript, c.pos.X, c.pos.Y))
}

// MoveTo animates the pointer to target along a human-like path. Every step
// moves the real mouse and the ghost cursor; every second step streams a
// cursor event.
func (c *Cursor) MoveTo(ctx context.Context, target Vector2D) error {
	path := BuildPath(c.rng, c.pos, target)
	start := time.Now()

	for i, step := range path {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if wait := step.At - time.Since(start); wait > 0 {
			if err := c.dispatcher.Sleep(ctx, wait); err != nil {
				return err
			}
		}

		elapsed := time.Since(start).Seconds()
		pos := step.Pos.Add(Vector2D{
			X: c.noiseX.Noise1D(elapsed*0.8) * perlinAmplitude,
			Y: c.noiseY.Noise1D(elapsed*0.8) * perlinAmplitude,
		})
		// The path must still terminate on the target.
		if i == len(path)-1 {
			pos = step.Pos
		}

		if err := c.dispatcher.DispatchMouse(ctx, MouseEvent{Type: MouseMove, X: pos.X, Y: pos.Y}); err != nil {
			return err
		}
		if err := c.dispatcher.Eval(ctx, fmt.Sprintf(moveGhostScript, pos.X, pos.Y)); err != nil {
			c.logger.Debug("Ghost cursor update failed.", zap.Error(err))
		}
		c.pos = pos

		if i%2 == 0 {
			c.sink.Emit(schemas.Event{Kind: schemas.EventCursor, Payload: schemas.CursorPayload{
				X: pos.X, Y: pos.Y, ViewportW: c.viewportW, ViewportH: c.viewportH,
			}})
		}
	}
	return nil
}

// Click fires a down/up pair at the current position with a human pause in
// between, each wrapped in a ripple animation.
func (c *Cursor) Click(ctx context.Context) error {
	if err := c.dispatcher.Eval(ctx, fmt.Sprintf(rippleScript, c.pos.X, c.pos.Y, "down")); err != nil {
		c.logger.Debug("Ripple render failed.", zap.Error(err))
	}
	if err := c.dispatcher.DispatchMouse(ctx, MouseEvent{Type: MousePress, X: c.pos.X, Y: c.pos.Y, ClickCount: 1}); err != nil {
		return err
	}

	hold := time.Duration(35+c.rng.Intn(61)) * time.Millisecond
	if err := c.dispatcher.Sleep(ctx, hold); err != nil {
		return err
	}

	if err := c.dispatcher.Eval(ctx, fmt.Sprintf(rippleScript, c.pos.X, c.pos.Y, "up")); err != nil {
		c.logger.Debug("Ripple render failed.", zap.Error(err))
	}
	return c.dispatcher.DispatchMouse(ctx, MouseEvent{Type: MouseRelease, X: c.pos.X, Y: c.pos.Y, ClickCount: 1})
}

// Nudge makes a small random move so a scroll does not look robotic.
func (c *Cursor) Nudge(ctx context.Context) error {
	target := c.pos.Add(Vector2D{
		X: (c.rng.Float64() - 0.5) * 60,
		Y: (c.rng.Float64() - 0.5) * 40,
	})
	target = c.clampToViewport(target)
	return c.MoveTo(ctx, target)
}

// Wheel dispatches a wheel event at the current position.
func (c *Cursor) Wheel(ctx context.Context, deltaY float64) error {
	return c.dispatcher.DispatchMouse(ctx, MouseEvent{Type: MouseWheel, X: c.pos.X, Y: c.pos.Y, DeltaY: deltaY})
}

func (c *Cursor) clampToViewport(v Vector2D) Vector2D {
	v.X = clampF(v.X, 2, float64(c.viewportW)-2)
	v.Y = clampF(v.Y, 2, float64(c.viewportH)-2)
	return v
}

// ghostCursorScript installs the visual cursor element once per document.
const ghostCursorScript = `(function() {
  if (document.getElementById('__ajete_cursor__')) return;
  const c = document.createElement('div');
  c.id = '__ajete_cursor__';
  c.style.cssText = 'position:fixed;width:14px;height:14px;border-radius:50%;' +
    'background:rgba(30,110,240,0.85);border:2px solid #fff;box-shadow:0 0 6px rgba(0,0,0,0.4);' +
    'z-index:2147483647;pointer-events:none;transform:translate(-50%,-50%);left:-20px;top:-20px;';
  document.documentElement.appendChild(c);
})()`

// moveGhostScript repositions the ghost cursor.
const moveGhostScript = `(function() {
  const c = document.getElementById('__ajete_cursor__');
  if (c) { c.style.left = '%fpx'; c.style.top = '%fpx'; }
})()`

// rippleScript renders a click ripple: small solid on press, larger outline
// on release.
const rippleScript = `(function() {
  const r = document.createElement('div');
  const kind = '%[3]s';
  const size = kind === 'down' ? 18 : 34;
  r.style.cssText = 'position:fixed;border-radius:50%%;pointer-events:none;z-index:2147483647;' +
    'left:%[1]fpx;top:%[2]fpx;width:' + size + 'px;height:' + size + 'px;' +
    'transform:translate(-50%%,-50%%);transition:opacity 0.45s ease-out, transform 0.45s ease-out;' +
    (kind === 'down'
      ? 'background:rgba(30,110,240,0.45);'
      : 'border:2px solid rgba(30,110,240,0.7);background:transparent;');
  document.documentElement.appendChild(r);
  requestAnimationFrame(() => {
    r.style.opacity = '0';
    r.style.transform = 'translate(-50%%,-50%%) scale(1.8)';
  });
  setTimeout(() => r.remove(), 500);
})()`
