package humanoid

import "math"

// Vector2D is a 2D point or displacement in viewport pixels.
type Vector2D struct {
	X float64
	Y float64
}

func (v Vector2D) Add(o Vector2D) Vector2D { return Vector2D{v.X + o.X, v.Y + o.Y} }
func (v Vector2D) Sub(o Vector2D) Vector2D { return Vector2D{v.X - o.X, v.Y - o.Y} }
func (v Vector2D) Mul(s float64) Vector2D  { return Vector2D{v.X * s, v.Y * s} }

// Mag returns the vector magnitude.
func (v Vector2D) Mag() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the distance to another point.
func (v Vector2D) Dist(o Vector2D) float64 { return v.Sub(o).Mag() }

// Normalize returns the unit vector, or zero for a zero vector.
func (v Vector2D) Normalize() Vector2D {
	m := v.Mag()
	if m < 1e-9 {
		return Vector2D{}
	}
	return Vector2D{v.X / m, v.Y / m}
}

// Perp returns the counter-clockwise perpendicular unit vector.
func (v Vector2D) Perp() Vector2D {
	n := v.Normalize()
	return Vector2D{-n.Y, n.X}
}
