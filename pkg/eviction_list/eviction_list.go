package eviction_list

import (
	"fmt"

	"github.com/pmkol/rrcache-x/pkg/list"
)

// EvictionList is a capacity bounded recency list. The front is the most
// recently used end, the back is the eviction end.
//
// EvictionList never calls back into its owner. When an Add pushes it over
// capacity, the least recently used value is unlinked and handed back to the
// caller, which is responsible for dropping any other reference to it.
type EvictionList[V any] struct {
	maxSize int
	l       *list.List[V]
}

func New[V any](maxSize int) *EvictionList[V] {
	if maxSize <= 0 {
		panic(fmt.Sprintf("eviction_list: invalid max size: %d", maxSize))
	}
	return &EvictionList[V]{
		maxSize: maxSize,
		l:       list.New[V](),
	}
}

// Add inserts v at the most recently used end and returns its element.
// If that exceeds the capacity, the least recently used value is removed
// and returned as victim with evicted set to true.
func (q *EvictionList[V]) Add(v V) (e *list.Elem[V], victim V, evicted bool) {
	e = q.l.PushFront(list.NewElem(v))
	if q.l.Len() > q.maxSize {
		oldest := q.l.PopElem(q.l.Back())
		return e, oldest.Value, true
	}
	return e, victim, false
}

// Touch moves e to the most recently used end.
func (q *EvictionList[V]) Touch(e *list.Elem[V]) {
	q.l.MoveToFront(e)
}

// Remove unlinks e. It is not an eviction.
func (q *EvictionList[V]) Remove(e *list.Elem[V]) {
	q.l.PopElem(e)
}

// Contains reports whether e is a member of q.
func (q *EvictionList[V]) Contains(e *list.Elem[V]) bool {
	return e.Linked(q.l)
}

// Range walks the list from the most recently used end until f returns false.
// f must not modify q.
func (q *EvictionList[V]) Range(f func(v V) bool) {
	for e := q.l.Front(); e != nil; e = e.Next() {
		if !f(e.Value) {
			return
		}
	}
}

func (q *EvictionList[V]) Len() int {
	return q.l.Len()
}

func (q *EvictionList[V]) Cap() int {
	return q.maxSize
}
