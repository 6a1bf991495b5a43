package pqueue

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type elem struct {
	key   int
	stamp int
}

func byKey(a, b elem) int {
	return a.key - b.key
}

func drain(q *Queue[elem]) []elem {
	var out []elem
	for {
		e, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestPush_KeepsOrder(t *testing.T) {
	q := New(16, byKey)
	for _, k := range []int{5, 1, 3, 2, 4, 0} {
		require.NoError(t, q.Push(elem{key: k}))
	}
	var keys []int
	for _, e := range drain(q) {
		keys = append(keys, e.key)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, keys)
}

func TestPush_StableOnTies(t *testing.T) {
	q := New(16, byKey)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(elem{key: 7, stamp: i}))
	}
	require.NoError(t, q.Push(elem{key: 1, stamp: 99}))
	out := drain(q)
	require.Len(t, out, 5)
	assert.Equal(t, 1, out[0].key)
	for i, e := range out[1:] {
		assert.Equal(t, i, e.stamp, "equal keys keep insertion order")
	}
}

func TestPush_Full(t *testing.T) {
	q := New(2, byKey)
	require.NoError(t, q.Push(elem{key: 1}))
	require.NoError(t, q.Push(elem{key: 2}))
	assert.ErrorIs(t, q.Push(elem{key: 3}), ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestGuard(t *testing.T) {
	rejected := errors.New("too far from head")
	q := New(16, byKey)
	q.SetGuard(func(head, el elem) error {
		if el.key-head.key > 10 || head.key-el.key > 10 {
			return rejected
		}
		return nil
	})

	// First element is never guarded.
	require.NoError(t, q.Push(elem{key: 100}))
	require.NoError(t, q.Push(elem{key: 105}))
	assert.ErrorIs(t, q.Push(elem{key: 250}), rejected)
	assert.Equal(t, 2, q.Len())

	// The guard sees the current head, not the first insertion.
	require.NoError(t, q.Push(elem{key: 95}))
	require.NoError(t, q.Push(elem{key: 88}))
}

func TestPeekPopEmpty(t *testing.T) {
	q := New(4, byKey)
	_, ok := q.Peek()
	assert.False(t, ok)
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.True(t, q.Empty())

	require.NoError(t, q.Push(elem{key: 9}))
	e, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 9, e.key)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 16, q.BufferSize(16))
}

func TestTraversal(t *testing.T) {
	q := New(8, byKey)
	for _, k := range []int{3, 1, 2} {
		require.NoError(t, q.Push(elem{key: k}))
	}
	q.Lock()
	var keys []int
	for n := q.Head(); n != nil; n = n.Next() {
		keys = append(keys, n.Value.key)
	}
	q.Unlock()
	assert.Equal(t, []int{1, 2, 3}, keys)
}

func TestClear(t *testing.T) {
	q := New(8, byKey)
	require.NoError(t, q.Push(elem{key: 1}))
	require.NoError(t, q.Push(elem{key: 2}))
	q.Clear()
	assert.True(t, q.Empty())
	require.NoError(t, q.Push(elem{key: 3}))
	assert.Equal(t, 1, q.Len())
}

func TestPush_SortedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfN(rapid.IntRange(0, 50), 0, 40).Draw(t, "keys")
		q := New(64, byKey)
		for i, k := range keys {
			require.NoError(t, q.Push(elem{key: k, stamp: i}))
		}
		out := drain(q)
		require.Len(t, out, len(keys))
		for i := 1; i < len(out); i++ {
			prev, cur := out[i-1], out[i]
			assert.LessOrEqual(t, prev.key, cur.key)
			if prev.key == cur.key {
				assert.Less(t, prev.stamp, cur.stamp, "ties must preserve arrival order")
			}
		}
	})
}
