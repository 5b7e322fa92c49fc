package hash_index

import (
	"errors"
	"fmt"
)

var ErrDuplicateKey = errors.New("duplicate key")

// Hasher returns the hash of a key. Keys that Equal considers equal must
// hash identically.
type Hasher[K any] func(key K) uint64

// Equal reports whether two keys name the same slot.
type Equal[K any] func(a, b K) bool

// HashIndex is a fixed bucket count hash table with separate chaining.
// It does not grow. Chain length is bounded by whatever bounds the number
// of entries, usually an eviction list sitting next to it.
// HashIndex is not concurrent safe.
type HashIndex[K any, V any] struct {
	hash    Hasher[K]
	equal   Equal[K]
	buckets []*node[K, V]
	length  int
}

type node[K any, V any] struct {
	key  K
	v    V
	next *node[K, V]
}

func New[K any, V any](bucketNum int, hash Hasher[K], equal Equal[K]) *HashIndex[K, V] {
	if bucketNum <= 0 {
		panic(fmt.Sprintf("hash_index: invalid bucket num: %d", bucketNum))
	}
	if hash == nil || equal == nil {
		panic("hash_index: nil hasher or comparator")
	}
	return &HashIndex[K, V]{
		hash:    hash,
		equal:   equal,
		buckets: make([]*node[K, V], bucketNum),
	}
}

func (h *HashIndex[K, V]) bucket(key K) int {
	return int(h.hash(key) % uint64(len(h.buckets)))
}

// Get returns the value stored under key.
func (h *HashIndex[K, V]) Get(key K) (v V, ok bool) {
	for n := h.buckets[h.bucket(key)]; n != nil; n = n.next {
		if h.equal(n.key, key) {
			return n.v, true
		}
	}
	return
}

// Add stores v under key. If key is present and overwrite is false,
// Add returns ErrDuplicateKey and leaves the index unchanged.
func (h *HashIndex[K, V]) Add(key K, v V, overwrite bool) error {
	b := h.bucket(key)
	for n := h.buckets[b]; n != nil; n = n.next {
		if h.equal(n.key, key) {
			if !overwrite {
				return ErrDuplicateKey
			}
			n.key = key
			n.v = v
			return nil
		}
	}

	h.buckets[b] = &node[K, V]{key: key, v: v, next: h.buckets[b]}
	h.length++
	return nil
}

// Remove deletes key. It reports whether key was present.
func (h *HashIndex[K, V]) Remove(key K) bool {
	b := h.bucket(key)
	var prev *node[K, V]
	for n := h.buckets[b]; n != nil; n = n.next {
		if h.equal(n.key, key) {
			if prev == nil {
				h.buckets[b] = n.next
			} else {
				prev.next = n.next
			}
			h.length--
			return true
		}
		prev = n
	}
	return false
}

func (h *HashIndex[K, V]) Len() int {
	return h.length
}

func (h *HashIndex[K, V]) BucketNum() int {
	return len(h.buckets)
}

// Range calls f for every key and value until f returns false.
// f must not modify h.
func (h *HashIndex[K, V]) Range(f func(key K, v V) bool) {
	for _, n := range h.buckets {
		for ; n != nil; n = n.next {
			if !f(n.key, n.v) {
				return
			}
		}
	}
}
