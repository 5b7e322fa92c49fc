package rrset_cache

import (
	"github.com/pmkol/rrcache-x/pkg/list"
)

// handle addresses a slot of entryStore. gen guards against a handle that
// outlived the entry it was issued for.
type handle struct {
	idx uint32
	gen uint32
}

type slot struct {
	gen   uint32
	entry *Entry
	elem  *list.Elem[handle] // position in the eviction list
}

// entryStore owns every live entry. The hash index and the eviction list
// only hold handles into it.
type entryStore struct {
	slots []slot
	free  []uint32
}

func newEntryStore(sizeHint int) entryStore {
	return entryStore{slots: make([]slot, 0, sizeHint)}
}

func (s *entryStore) alloc(e *Entry) handle {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		sl := &s.slots[idx]
		sl.entry = e
		return handle{idx: idx, gen: sl.gen}
	}
	s.slots = append(s.slots, slot{entry: e})
	return handle{idx: uint32(len(s.slots) - 1)}
}

func (s *entryStore) get(h handle) (*slot, bool) {
	if int(h.idx) >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[h.idx]
	if sl.gen != h.gen || sl.entry == nil {
		return nil, false
	}
	return sl, true
}

// release frees the slot of h. Later gets with h fail.
func (s *entryStore) release(h handle) {
	sl := &s.slots[h.idx]
	sl.gen++
	sl.entry = nil
	sl.elem = nil
	s.free = append(s.free, h.idx)
}

func (s *entryStore) live() int {
	return len(s.slots) - len(s.free)
}
