package humanoid

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPathEndsOnTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	start := Vector2D{X: 100, Y: 100}
	end := Vector2D{X: 900, Y: 500}

	for i := 0; i < 50; i++ {
		path := BuildPath(rng, start, end)
		require.NotEmpty(t, path)
		last := path[len(path)-1]
		assert.Equal(t, end, last.Pos, "iteration %d", i)
	}
}

func TestBuildPathTrivialMove(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	end := Vector2D{X: 10.4, Y: 10.4}

	path := BuildPath(rng, Vector2D{X: 10, Y: 10}, end)
	require.Len(t, path, 1)
	assert.Equal(t, end, path[0].Pos)
	assert.Zero(t, path[0].At)
}

func TestBuildPathStepAndDurationBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	tests := []struct {
		name string
		end  Vector2D
	}{
		{"short hop", Vector2D{X: 40, Y: 20}},
		{"medium", Vector2D{X: 400, Y: 300}},
		{"cross viewport", Vector2D{X: 1400, Y: 850}},
	}
	start := Vector2D{X: 10, Y: 10}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 30; i++ {
				path := BuildPath(rng, start, tt.end)

				// An overshoot appends a correction of at most 10 steps.
				require.GreaterOrEqual(t, len(path), minSteps)
				require.LessOrEqual(t, len(path), maxSteps+10)

				total := path[len(path)-1].At
				assert.GreaterOrEqual(t, total, time.Duration(minDurationMs)*time.Millisecond)
				assert.LessOrEqual(t, total,
					time.Duration(maxDurationMs)*time.Millisecond+150*time.Millisecond)
			}
		})
	}
}

func TestBuildPathTimesNondecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 50; i++ {
		path := BuildPath(rng, Vector2D{}, Vector2D{X: 800, Y: 400})
		for j := 1; j < len(path); j++ {
			require.GreaterOrEqual(t, path[j].At, path[j-1].At,
				"step %d of iteration %d goes backwards in time", j, i)
		}
	}
}

func TestEaseInOutCubic(t *testing.T) {
	assert.Equal(t, 0.0, easeInOutCubic(0))
	assert.Equal(t, 1.0, easeInOutCubic(1))
	assert.InDelta(t, 0.5, easeInOutCubic(0.5), 1e-9)
	assert.Less(t, easeInOutCubic(0.25), 0.25, "slow start")
	assert.Greater(t, easeInOutCubic(0.75), 0.75, "fast finish")
}

func TestVector2D(t *testing.T) {
	a := Vector2D{X: 3, Y: 4}

	assert.Equal(t, 5.0, a.Mag())
	assert.Equal(t, Vector2D{X: 6, Y: 8}, a.Mul(2))
	assert.Equal(t, Vector2D{X: 4, Y: 6}, a.Add(Vector2D{X: 1, Y: 2}))
	assert.Equal(t, Vector2D{X: 2, Y: 2}, a.Sub(Vector2D{X: 1, Y: 2}))
	assert.Equal(t, 5.0, Vector2D{}.Dist(a))

	n := a.Normalize()
	assert.InDelta(t, 1.0, n.Mag(), 1e-9)

	p := a.Perp()
	assert.InDelta(t, 0.0, p.X*a.X+p.Y*a.Y, 1e-9, "perpendicular has zero dot product")
	assert.InDelta(t, 1.0, p.Mag(), 1e-9, "perpendicular is unit length")
}
