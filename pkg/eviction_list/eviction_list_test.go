package eviction_list

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmkol/rrcache-x/pkg/list"
)

func order(q *EvictionList[int]) []int {
	var s []int
	q.Range(func(v int) bool {
		s = append(s, v)
		return true
	})
	return s
}

func TestEvictionList_Add(t *testing.T) {
	q := New[int](3)
	for i := 0; i < 3; i++ {
		_, _, evicted := q.Add(i)
		require.False(t, evicted)
	}
	assert.Equal(t, []int{2, 1, 0}, order(q))

	_, victim, evicted := q.Add(3)
	assert.True(t, evicted)
	assert.Equal(t, 0, victim)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []int{3, 2, 1}, order(q))
}

func TestEvictionList_Touch(t *testing.T) {
	q := New[int](3)
	elems := make([]*list.Elem[int], 3)
	for i := range elems {
		elems[i], _, _ = q.Add(i)
	}

	q.Touch(elems[0])
	assert.Equal(t, []int{0, 2, 1}, order(q))

	_, victim, evicted := q.Add(3)
	assert.True(t, evicted)
	assert.Equal(t, 1, victim)
	assert.False(t, q.Contains(elems[1]))
	assert.True(t, q.Contains(elems[0]))
}

func TestEvictionList_Remove(t *testing.T) {
	q := New[int](2)
	e0, _, _ := q.Add(0)
	q.Add(1)

	q.Remove(e0)
	assert.Equal(t, 1, q.Len())
	assert.False(t, q.Contains(e0))

	// Room was freed by Remove, so no eviction.
	_, _, evicted := q.Add(2)
	assert.False(t, evicted)
	assert.Equal(t, []int{2, 1}, order(q))

	assert.Panics(t, func() { q.Remove(e0) })
}

func TestEvictionList_Bound(t *testing.T) {
	q := New[int](16)
	evictions := 0
	for i := 0; i < 100; i++ {
		_, victim, evicted := q.Add(i)
		if evicted {
			assert.Equal(t, evictions, victim)
			evictions++
		}
		assert.LessOrEqual(t, q.Len(), q.Cap())
	}
	assert.Equal(t, 84, evictions)
	assert.Panics(t, func() { New[int](0) })
}
