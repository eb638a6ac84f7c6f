package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyUpSetsMotionAndClearsOpposite(t *testing.T) {
	l := New()
	l.Apply(ActionDown)
	l.Apply(ActionUp)
	s := l.Consume()
	assert.True(t, s.Up)
	assert.False(t, s.Down)
}

func TestApplyNoneClearsAllMotion(t *testing.T) {
	l := New()
	l.Apply(ActionLeft)
	l.Apply(ActionNone)
	s := l.Consume()
	assert.False(t, s.Left)
	assert.False(t, s.Right)
}

func TestFireEdgeFiresOnceWhileHeld(t *testing.T) {
	l := New()
	l.Apply(ActionFire)

	s1 := l.Consume()
	assert.True(t, s1.FireEdge)

	// Still held (no new ActionNone/action arrived); next consume must not
	// re-trigger the edge.
	s2 := l.Consume()
	assert.False(t, s2.FireEdge)
}

func TestFireEdgeRetriggersAfterClear(t *testing.T) {
	l := New()
	l.Apply(ActionFire)
	s1 := l.Consume()
	require := assert.New(t)
	require.True(s1.FireEdge)

	l.ClearFire()
	l.Apply(ActionFire)
	s2 := l.Consume()
	require.True(s2.FireEdge)
}

func TestMultipleActionsCollapseToLastNonNone(t *testing.T) {
	l := New()
	l.Apply(ActionLeft)
	l.Apply(ActionRight)
	s := l.Consume()
	assert.True(t, s.Right)
	assert.False(t, s.Left)
}
