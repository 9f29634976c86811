package humanoid

import (
	"context"
	"time"
)

// MouseEventType mirrors the CDP input event names.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
	MouseWheel   MouseEventType = "mouseWheel"
)

// MouseEvent is the agnostic event record handed to the Dispatcher.
type MouseEvent struct {
	Type       MouseEventType
	X          float64
	Y          float64
	ClickCount int
	DeltaY     float64
}

// Dispatcher abstracts the browser side effects of cursor motion so the
// kinematics stay testable without a live CDP target.
type Dispatcher interface {
	// DispatchMouse sends one raw mouse event to the page.
	DispatchMouse(ctx context.Context, ev MouseEvent) error
	// Eval fires a page-side script whose result is discarded (ghost cursor,
	// ripple effects).
	Eval(ctx context.Context, js string) error
	// Sleep suspends between motion steps.
	Sleep(ctx context.Context, d time.Duration) error
}

// PathStep is one sampled point of a cursor trajectory with its offset from
// the motion start time.
type PathStep struct {
	Pos Vector2D
	At  time.Duration
}
