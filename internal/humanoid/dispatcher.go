package humanoid

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// CDPDispatcher sends mouse events and overlay scripts through chromedp. The
// context passed to its methods must belong to the active tab.
type CDPDispatcher struct{}

var _ Dispatcher = CDPDispatcher{}

// DispatchMouse implements Dispatcher.
func (CDPDispatcher) DispatchMouse(ctx context.Context, ev MouseEvent) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		p := input.DispatchMouseEvent(input.MouseType(ev.Type), ev.X, ev.Y)
		switch ev.Type {
		case MousePress, MouseRelease:
			p = p.WithButton(input.Left).WithClickCount(int64(ev.ClickCount))
		case MouseWheel:
			p = p.WithDeltaX(0).WithDeltaY(ev.DeltaY)
		default:
			p = p.WithButton(input.None)
		}
		return p.Do(c)
	}))
}

// Eval implements Dispatcher; the script result is discarded.
func (CDPDispatcher) Eval(ctx context.Context, js string) error {
	return chromedp.Run(ctx, chromedp.Evaluate(js, nil))
}

// Sleep implements Dispatcher honouring context cancellation.
func (CDPDispatcher) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
