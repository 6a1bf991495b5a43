package seqn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, uint8(0), Distance(5, 5))
	assert.Equal(t, uint8(1), Distance(0, 255))
	assert.Equal(t, uint8(255), Distance(255, 0))
	assert.Equal(t, uint8(10), Distance(4, 250))
}

func TestInWindow(t *testing.T) {
	assert.True(t, InWindow(0, 0, 1))
	assert.False(t, InWindow(1, 0, 1))
	assert.True(t, InWindow(3, 250, 32), "window spanning the wrap")
	assert.False(t, InWindow(249, 250, 32), "just behind the anchor is maximally far ahead")
}

func TestDistance_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := uint8(rapid.IntRange(0, 255).Draw(t, "a"))
		anchor := uint8(rapid.IntRange(0, 255).Draw(t, "anchor"))
		d := Distance(a, anchor)
		// Walking d steps from the anchor lands on a.
		assert.Equal(t, a, anchor+d)
		// The anchor is the only sequence at distance zero.
		assert.Equal(t, d == 0, a == anchor)
	})
}

func TestLess_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := uint8(rapid.IntRange(0, 255).Draw(t, "a"))
		b := uint8(rapid.IntRange(0, 255).Draw(t, "b"))
		anchor := uint8(rapid.IntRange(0, 255).Draw(t, "anchor"))
		if a == b {
			assert.False(t, Less(a, b, anchor))
			return
		}
		// Exactly one of the two precedes the other.
		assert.NotEqual(t, Less(a, b, anchor), Less(b, a, anchor))
	})
}

func TestApart_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := uint8(rapid.IntRange(0, 255).Draw(t, "a"))
		b := uint8(rapid.IntRange(0, 255).Draw(t, "b"))
		d := Apart(a, b)
		assert.Equal(t, d, Apart(b, a), "symmetric")
		assert.LessOrEqual(t, d, uint8(128))
		// Apart is the shorter way around the ring.
		fwd, back := Distance(a, b), Distance(b, a)
		if fwd <= back {
			assert.Equal(t, fwd, d)
		} else {
			assert.Equal(t, back, d)
		}
	})
}
