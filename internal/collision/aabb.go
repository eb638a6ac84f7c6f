// Package collision implements the static and swept axis-aligned bounding
// box tests used to arbitrate asteroid/ship/bullet contact (§4.5). Ported
// from the DigiPen Asteroids original's Collision.cpp, which implements the
// same case analysis against AEVec2/AABB types; here it runs against plain
// float32 vectors so it has no rendering-engine dependency.
package collision

// Vec2 is a minimal 2D vector, independent of any rendering library.
type Vec2 struct {
	X, Y float32
}

// AABB is an axis-aligned bounding box in world units.
type AABB struct {
	Min, Max Vec2
}

// Static reports whether two AABBs overlap at their current positions
// (§4.5 "Static overlap").
func Static(a, b AABB) bool {
	return a.Max.X > b.Min.X && b.Max.X > a.Min.X &&
		a.Max.Y > b.Min.Y && b.Max.Y > a.Min.Y
}

// Swept implements §4.5's swept-AABB test: given per-box velocities and a
// tick length dt, returns the first time of overlap in [0, dt] and true if
// the boxes collide at any point during the tick. Symmetric in its a/b
// arguments (§8 invariant 7): Swept(a, b, va, vb, dt) == Swept(b, a, vb, va, dt)
// and returns the same tFirst, because only the relative velocity vb-va
// enters the per-axis case analysis.
func Swept(a, b AABB, va, vb Vec2, dt float32) (tFirst float32, collides bool) {
	if Static(a, b) {
		return 0, true
	}

	tFirst = 0
	tLast := dt

	rel := Vec2{X: vb.X - va.X, Y: vb.Y - va.Y}

	if ok := sweepAxis(a.Min.X, a.Max.X, b.Min.X, b.Max.X, rel.X, &tFirst, &tLast); !ok {
		return 0, false
	}
	if tFirst > tLast {
		return 0, false
	}
	if ok := sweepAxis(a.Min.Y, a.Max.Y, b.Min.Y, b.Max.Y, rel.Y, &tFirst, &tLast); !ok {
		return 0, false
	}
	if tFirst > tLast {
		return 0, false
	}
	return tFirst, true
}

// sweepAxis applies one axis of the case analysis from Collision.cpp:
// relative-velocity sign determines which edge pair bounds tFirst/tLast.
func sweepAxis(aMin, aMax, bMin, bMax, relVel float32, tFirst, tLast *float32) bool {
	switch {
	case relVel < 0:
		if aMin > bMax {
			return false
		}
		if aMax < bMin {
			*tFirst = maxF(*tFirst, (aMax-bMin)/relVel)
		}
		if aMin < bMax {
			*tLast = minF(*tLast, (aMin-bMax)/relVel)
		}
	case relVel > 0:
		if aMax < bMin {
			return false
		}
		if aMin > bMax {
			*tFirst = maxF(*tFirst, (aMin-bMax)/relVel)
		}
		if aMax > bMin {
			*tLast = minF(*tLast, (aMax-bMin)/relVel)
		}
	default: // relVel == 0
		if aMax < bMin || aMin > bMax {
			return false
		}
	}
	return true
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
