package list

// List is an intrusive doubly linked list. The front is the most recently
// used end when it backs an eviction list.
type List[V any] struct {
	front, back *Elem[V]
	length      int
}

type Elem[V any] struct {
	Value      V
	prev, next *Elem[V]
	list       *List[V]
}

func NewElem[V any](v V) *Elem[V] {
	return &Elem[V]{Value: v}
}

// Next returns the element after e, towards the back.
func (e *Elem[V]) Next() *Elem[V] {
	return e.next
}

// Prev returns the element before e, towards the front.
func (e *Elem[V]) Prev() *Elem[V] {
	return e.prev
}

// Linked reports whether e currently belongs to l.
func (e *Elem[V]) Linked(l *List[V]) bool {
	return e != nil && e.list == l
}

func New[V any]() *List[V] {
	return &List[V]{}
}

func (l *List[V]) Front() *Elem[V] {
	return l.front
}

func (l *List[V]) Back() *Elem[V] {
	return l.back
}

func (l *List[V]) Len() int {
	return l.length
}

func (l *List[V]) PushFront(e *Elem[V]) *Elem[V] {
	if e.list != nil {
		panic("elem already belongs to a list")
	}
	l.length++
	e.list = l

	if l.front == nil {
		l.front = e
		l.back = e
		return e
	}

	e.next = l.front
	l.front.prev = e
	l.front = e
	return e
}

// MoveToFront moves an existing element to the front in O(1).
// Does not change length.
func (l *List[V]) MoveToFront(e *Elem[V]) {
	if e.list != l {
		panic("elem does not belong to this list")
	}

	if l.front == e {
		return
	}

	p, n := e.prev, e.next

	// detach, e is not the front so p is never nil
	p.next = n
	if n != nil {
		n.prev = p
	} else {
		l.back = p
	}

	// attach at front
	e.prev = nil
	e.next = l.front

	l.front.prev = e
	l.front = e
}

func (l *List[V]) PopElem(e *Elem[V]) *Elem[V] {
	if e.list != l {
		panic("elem does not belong to this list")
	}

	l.length--

	p, n := e.prev, e.next

	if p != nil {
		p.next = n
	} else {
		l.front = n
	}

	if n != nil {
		n.prev = p
	} else {
		l.back = p
	}

	e.prev = nil
	e.next = nil
	e.list = nil

	return e
}
