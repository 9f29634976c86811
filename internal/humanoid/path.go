package humanoid

import (
	"math"
	"math/rand"
	"time"
)

// Trajectory tuning. Bend and timing constants are calibrated against real
// pointer traces.
const (
	bendPerPixel    = 0.18
	minBend         = 16.0
	maxBend         = 130.0
	pixelsPerStep   = 14.0
	minSteps        = 12
	maxSteps        = 64
	baseDurationMs  = 170.0
	msPerPixel      = 0.95
	minDurationMs   = 220.0
	maxDurationMs   = 960.0
	overshootChance = 0.32
	overshootMinPx  = 8.0
	overshootMaxPx  = 26.0
	overshootDist   = 140.0
)

// easeInOutCubic shapes acceleration and deceleration along the path.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// clampF bounds v to [lo, hi].
func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BuildPath generates a cubic-Bezier cursor trajectory from start to end
// whose control points are bent perpendicular to the straight line. With
// probability 0.32 on long moves it appends an overshoot past the target and
// a short correction back. Steps carry eased time offsets from motion start.
func BuildPath(rng *rand.Rand, start, end Vector2D) []PathStep {
	dist := start.Dist(end)
	if dist < 1.0 {
		return []PathStep{{Pos: end, At: 0}}
	}

	finalTarget := end
	overshoot := dist > overshootDist && rng.Float64() < overshootChance
	if overshoot {
		beyond := overshootMinPx + rng.Float64()*(overshootMaxPx-overshootMinPx)
		end = end.Add(end.Sub(start).Normalize().Mul(beyond))
	}

	path := bezierSegment(rng, start, end, 0)

	if overshoot {
		last := path[len(path)-1]
		correction := bezierShortSegment(rng, last.Pos, finalTarget, last.At)
		path = append(path, correction...)
	}
	return path
}

// bezierSegment samples one full-length eased Bezier segment.
func bezierSegment(rng *rand.Rand, start, end Vector2D, offset time.Duration) []PathStep {
	dist := start.Dist(end)

	bend := clampF(dist*bendPerPixel, minBend, maxBend)
	if rng.Intn(2) == 0 {
		bend = -bend
	}

	steps := int(clampF(dist/pixelsPerStep, minSteps, maxSteps))
	duration := time.Duration(clampF(baseDurationMs+msPerPixel*dist, minDurationMs, maxDurationMs)) * time.Millisecond

	return sampleBezier(start, end, bend, steps, duration, offset)
}

// bezierShortSegment is the quick correction hop after an overshoot.
func bezierShortSegment(rng *rand.Rand, start, end Vector2D, offset time.Duration) []PathStep {
	dist := start.Dist(end)
	bend := clampF(dist*bendPerPixel, 2, 12)
	if rng.Intn(2) == 0 {
		bend = -bend
	}
	steps := int(clampF(dist/4.0, 4, 10))
	duration := time.Duration(80+rng.Intn(70)) * time.Millisecond
	return sampleBezier(start, end, bend, steps, duration, offset)
}

func sampleBezier(start, end Vector2D, bend float64, steps int, duration time.Duration, offset time.Duration) []PathStep {
	dir := end.Sub(start)
	perp := dir.Perp()

	p0 := start
	p1 := start.Add(dir.Mul(1.0 / 3.0)).Add(perp.Mul(bend))
	p2 := start.Add(dir.Mul(2.0 / 3.0)).Add(perp.Mul(bend * 0.6))
	p3 := end

	path := make([]PathStep, steps)
	for i := 0; i < steps; i++ {
		t := easeInOutCubic(float64(i) / float64(steps-1))
		omt := 1.0 - t
		pos := p0.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(p3.Mul(t * t * t))
		path[i] = PathStep{Pos: pos, At: offset + time.Duration(t*float64(duration))}
	}
	// The segment always terminates exactly on the target.
	path[steps-1].Pos = end
	return path
}
