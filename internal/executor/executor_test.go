package executor

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ard14n/AJETE/api/schemas"
	"github.com/ard14n/AJETE/internal/humanoid"
)

func testExecutor() *Executor {
	return New(nil, rand.New(rand.NewSource(11)), zap.NewNop())
}

func TestPointInRectStaysInset(t *testing.T) {
	e := testExecutor()
	r := schemas.Rect{X: 100, Y: 200, W: 80, H: 30}

	// Minor dimension 30 gives an inset of 6.
	for i := 0; i < 500; i++ {
		p := e.pointInRect(r)
		require.GreaterOrEqual(t, p.X, 106.0)
		require.LessOrEqual(t, p.X, 174.0)
		require.GreaterOrEqual(t, p.Y, 206.0)
		require.LessOrEqual(t, p.Y, 224.0)
	}
}

func TestPointInRectInsetClamps(t *testing.T) {
	e := testExecutor()

	// Large element: 20 percent of the minor dimension exceeds 10, clamped.
	big := schemas.Rect{X: 0, Y: 0, W: 400, H: 300}
	for i := 0; i < 200; i++ {
		p := e.pointInRect(big)
		require.GreaterOrEqual(t, p.X, 10.0)
		require.LessOrEqual(t, p.X, 390.0)
	}

	// Tiny element: the inset floor wins and the shrunken box collapses, so
	// the click lands dead centre.
	tiny := schemas.Rect{X: 50, Y: 50, W: 4, H: 4}
	p := e.pointInRect(tiny)
	assert.Equal(t, 52.0, p.X)
	assert.Equal(t, 52.0, p.Y)
}

func TestTargetErrorMessage(t *testing.T) {
	err := &TargetError{ID: "7", Reason: "not found on page"}
	assert.Equal(t, "mark #7: not found on page", err.Error())
}

// quietDispatcher satisfies humanoid.Dispatcher without a browser.
type quietDispatcher struct{}

func (quietDispatcher) DispatchMouse(context.Context, humanoid.MouseEvent) error { return nil }
func (quietDispatcher) Eval(context.Context, string) error                       { return nil }
func (quietDispatcher) Sleep(ctx context.Context, _ time.Duration) error         { return ctx.Err() }

// pageStub answers the executor's page evaluations from a fixed element map.
type pageStub struct {
	elements map[string]locate
	nearest  string
}

func (p *pageStub) eval(_ context.Context, js string, out interface{}) error {
	switch v := out.(type) {
	case **locate:
		for id, loc := range p.elements {
			if strings.Contains(js, `"`+id+`"`) {
				cp := loc
				*v = &cp
				return nil
			}
		}
		*v = nil
	case *string:
		*v = p.nearest
	case *bool:
		*v = true
	}
	return nil
}

func stubbedExecutor(page *pageStub) *Executor {
	rng := rand.New(rand.NewSource(11))
	cursor := humanoid.NewCursor(quietDispatcher{}, schemas.NopSink, 1440, 900, rng, zap.NewNop())
	e := New(cursor, rng, zap.NewNop())
	e.eval = page.eval
	e.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return e
}

func TestTypeRedirectsToNearestField(t *testing.T) {
	page := &pageStub{
		elements: map[string]locate{
			"7": {Selector: "label[for=email]", Rect: schemas.Rect{X: 100, Y: 100, W: 80, H: 30}},
			"__field__": {
				Selector: "#email",
				Rect:     schemas.Rect{X: 200, Y: 100, W: 200, H: 28},
				Fillable: true,
			},
		},
		nearest: "__field__",
	}
	e := stubbedExecutor(page)

	res, err := e.Execute(context.Background(),
		schemas.Decision{Action: schemas.ActionType, TargetID: "7"})
	require.NoError(t, err)

	assert.Equal(t, schemas.TraceType, res.Kind)
	assert.Equal(t, "#email", res.Selector, "typing lands in the redirected field")
	assert.Contains(t, res.Note, "mark #7 is not fillable")
}

func TestTypeIntoFillableTargetHasNoNote(t *testing.T) {
	page := &pageStub{
		elements: map[string]locate{
			"3": {Selector: "#q", Rect: schemas.Rect{X: 50, Y: 50, W: 300, H: 28}, Fillable: true},
		},
	}
	e := stubbedExecutor(page)

	res, err := e.Execute(context.Background(),
		schemas.Decision{Action: schemas.ActionType, TargetID: "3"})
	require.NoError(t, err)
	assert.Equal(t, "#q", res.Selector)
	assert.Empty(t, res.Note)
}

func TestTypeWithNoFieldNearbyFails(t *testing.T) {
	page := &pageStub{
		elements: map[string]locate{
			"7": {Selector: "h1", Rect: schemas.Rect{X: 0, Y: 0, W: 400, H: 40}},
		},
	}
	e := stubbedExecutor(page)

	_, err := e.Execute(context.Background(),
		schemas.Decision{Action: schemas.ActionType, TargetID: "7"})
	var te *TargetError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "7", te.ID)
}
