package pathset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsSegmentBoundary(t *testing.T) {
	ps := New("/workspace")
	assert.True(t, ps.Contains("/workspace"))
	assert.True(t, ps.Contains("/workspace/src/x"))
	assert.False(t, ps.Contains("/workspacelike"))
	assert.False(t, ps.Contains("/other"))
}

func TestUnion(t *testing.T) {
	a := New("/a")
	b := New("/b")
	u := a.Union(b)
	assert.Equal(t, 2, u.Len())
	assert.True(t, u.Contains("/a"))
	assert.True(t, u.Contains("/b"))
}

func TestDisjoint(t *testing.T) {
	a := New("/ws/src")
	b := New("/ws/bin")
	assert.True(t, a.Disjoint(b))

	c := New("/ws")
	assert.False(t, a.Disjoint(c))
}

func TestIntersect(t *testing.T) {
	a := New("/ws/src", "/tmp")
	b := New("/ws")
	i := a.Intersect(b)
	assert.Equal(t, 1, i.Len())
	assert.True(t, i.Contains("/ws/src"))
}
