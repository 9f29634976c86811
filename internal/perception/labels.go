package perception

import (
	"strconv"

	"github.com/ard14n/AJETE/api/schemas"
)

// Label placement weights. Chosen empirically; may need tuning on smaller
// viewports.
const (
	weightOverflow     = 220.0
	weightTargetRects  = 1.25
	weightOtherLabels  = 2.8
	weightOwnRect      = 4.5
	labelHeight        = 16.0
	labelCharWidth     = 8.0
	labelPaddingWidth  = 8.0
	labelInteriorInset = 2.0
)

// positionPreference biases towards the top corners when scores tie. Index
// order: top-left, top-right, bottom-left, bottom-right, left side, right
// side, interior.
var positionPreference = [7]float64{0, 2, 4, 6, 8, 10, 26}

// labelBox returns the estimated pixel box of a mark label.
func labelBox(id int) (w, h float64) {
	digits := len(strconv.Itoa(id))
	return labelCharWidth*float64(digits) + labelPaddingWidth, labelHeight
}

// placeLabels picks, per mark, the minimum-cost position out of seven
// candidates (four outside corners, two outside sides, interior fallback),
// penalising viewport overflow and collisions with target rectangles,
// previously placed labels, and the mark's own rectangle. The winner is
// clamped inside the viewport.
func placeLabels(marks []acceptedMark, viewportW, viewportH float64) []schemas.Rect {
	targets := make([]schemas.Rect, len(marks))
	for i, m := range marks {
		targets[i] = m.Element.Rect
	}

	viewport := schemas.Rect{X: 0, Y: 0, W: viewportW, H: viewportH}
	placed := make([]schemas.Rect, 0, len(marks))

	for _, m := range marks {
		w, h := labelBox(m.ID)
		r := m.Element.Rect

		options := [7]schemas.Rect{
			{X: r.X - w, Y: r.Y - h, W: w, H: h},
			{X: r.X + r.W, Y: r.Y - h, W: w, H: h},
			{X: r.X - w, Y: r.Y + r.H, W: w, H: h},
			{X: r.X + r.W, Y: r.Y + r.H, W: w, H: h},
			{X: r.X - w, Y: r.Y + r.H/2 - h/2, W: w, H: h},
			{X: r.X + r.W, Y: r.Y + r.H/2 - h/2, W: w, H: h},
			{X: r.X + labelInteriorInset, Y: r.Y + labelInteriorInset, W: w, H: h},
		}

		best := options[0]
		bestCost := labelCost(options[0], r, targets, placed, viewport) + positionPreference[0]
		for i := 1; i < len(options); i++ {
			cost := labelCost(options[i], r, targets, placed, viewport) + positionPreference[i]
			if cost < bestCost {
				best, bestCost = options[i], cost
			}
		}

		best = clampIntoViewport(best, viewport)
		placed = append(placed, best)
	}
	return placed
}

func labelCost(label, own schemas.Rect, targets, placed []schemas.Rect, viewport schemas.Rect) float64 {
	overflow := label.Area() - label.Intersect(viewport)
	cost := overflow * weightOverflow

	for _, t := range targets {
		if t == own {
			continue
		}
		cost += label.Intersect(t) * weightTargetRects
	}
	for _, p := range placed {
		cost += label.Intersect(p) * weightOtherLabels
	}
	cost += label.Intersect(own) * weightOwnRect
	return cost
}

func clampIntoViewport(r, viewport schemas.Rect) schemas.Rect {
	if r.X < viewport.X {
		r.X = viewport.X
	}
	if r.Y < viewport.Y {
		r.Y = viewport.Y
	}
	if r.X+r.W > viewport.X+viewport.W {
		r.X = viewport.X + viewport.W - r.W
	}
	if r.Y+r.H > viewport.Y+viewport.H {
		r.Y = viewport.Y + viewport.H - r.H
	}
	return r
}
