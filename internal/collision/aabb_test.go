package collision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func box(minX, minY, maxX, maxY float32) AABB {
	return AABB{Min: Vec2{minX, minY}, Max: Vec2{maxX, maxY}}
}

func TestStaticOverlapDetectsIntersection(t *testing.T) {
	a := box(0, 0, 2, 2)
	b := box(1, 1, 3, 3)
	assert.True(t, Static(a, b))
}

func TestStaticOverlapRejectsSeparated(t *testing.T) {
	a := box(0, 0, 1, 1)
	b := box(5, 5, 6, 6)
	assert.False(t, Static(a, b))
}

func TestStaticOverlapTouchingEdgesDoNotCount(t *testing.T) {
	// Collision.cpp uses strict inequalities: boxes that merely touch at an
	// edge are not considered overlapping.
	a := box(0, 0, 1, 1)
	b := box(1, 0, 2, 1)
	assert.False(t, Static(a, b))
}

// S4: ship min=(-8,-8) max=(8,8) vel=(0,0); asteroid min=(100,-8) max=(116,8)
// vel=(-1000,0), dt=1.0. Expected tFirst = (8-100)/(-1000-0) = 0.092.
func TestSweptCollisionS4(t *testing.T) {
	ship := box(-8, -8, 8, 8)
	asteroid := box(100, -8, 116, 8)
	shipVel := Vec2{X: 0, Y: 0}
	asteroidVel := Vec2{X: -1000, Y: 0}

	tFirst, hit := Swept(ship, asteroid, shipVel, asteroidVel, 1.0)
	assert.True(t, hit)
	assert.InDelta(t, 0.092, tFirst, 1e-6)
}

func TestSweptCollisionNoHitWhenDivergent(t *testing.T) {
	a := box(0, 0, 1, 1)
	b := box(10, 10, 11, 11)
	va := Vec2{X: -10, Y: -10}
	vb := Vec2{X: 10, Y: 10}
	_, hit := Swept(a, b, va, vb, 1.0/60.0)
	assert.False(t, hit)
}

func TestSweptCollisionAlreadyOverlappingReturnsZero(t *testing.T) {
	a := box(0, 0, 2, 2)
	b := box(1, 1, 3, 3)
	tFirst, hit := Swept(a, b, Vec2{}, Vec2{}, 1.0/60.0)
	assert.True(t, hit)
	assert.Equal(t, float32(0), tFirst)
}

// Invariant 7: the swept test is symmetric under swapping the two boxes.
func TestSweptCollisionSymmetric(t *testing.T) {
	a := box(0, 0, 1, 1)
	b := box(1.4, 0, 2.4, 1)
	va := Vec2{X: 20, Y: 0}
	vb := Vec2{X: 0, Y: 0}
	const dt = float32(1.0 / 60.0)

	tFirstAB, hitAB := Swept(a, b, va, vb, dt)
	tFirstBA, hitBA := Swept(b, a, vb, va, dt)

	assert.Equal(t, hitAB, hitBA)
	assert.InDelta(t, tFirstAB, tFirstBA, 1e-6)
}

func TestSweptCollisionZeroRelativeVelocityNonOverlapping(t *testing.T) {
	a := box(0, 0, 1, 1)
	b := box(5, 5, 6, 6)
	_, hit := Swept(a, b, Vec2{}, Vec2{}, 1.0/60.0)
	assert.False(t, hit)
}
