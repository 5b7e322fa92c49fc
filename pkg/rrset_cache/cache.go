package rrset_cache

import (
	"errors"
	"fmt"
	"hash/maphash"
	"time"

	"github.com/miekg/dns"

	"github.com/pmkol/rrcache-x/pkg/eviction_list"
	"github.com/pmkol/rrcache-x/pkg/hash_index"
	"github.com/pmkol/rrcache-x/pkg/utils"
)

// EvictionFactor is the ratio between the eviction list capacity and the
// hash bucket count.
const EvictionFactor = 3

var (
	ErrInvalidRRset = errors.New("invalid rrset")

	// ErrInternal is wrapped by the value of panics raised when the hash
	// index and the eviction list disagree.
	ErrInternal = errors.New("rrset cache internal error")
)

type RRsetCacheOpts struct {
	// Size is the hash bucket count. The cache holds at most
	// EvictionFactor*Size entries. Must be positive.
	Size int

	// Class is the record class served by this cache.
	// Default is IN.
	Class uint16

	// Now returns the current time. Default is time.Now.
	Now func() time.Time
}

func (opts *RRsetCacheOpts) Init() error {
	if opts.Size <= 0 {
		return fmt.Errorf("invalid cache size %d", opts.Size)
	}
	utils.SetDefaultNum(&opts.Class, dns.ClassINET)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return nil
}

// Stats are the counters of a RRsetCache since it was created.
type Stats struct {
	Hits      uint64
	Misses    uint64 // includes Expired
	Expired   uint64
	Evictions uint64
	Updates   uint64
	Rejected  uint64 // updates dropped in favour of a more trusted entry
}

// UpdateResult describes the outcome of Apply.
type UpdateResult struct {
	// Entry is the entry cached for the key after the update.
	Entry *Entry

	// Applied is false if a more trusted entry was kept.
	Applied bool

	// Evicted is the unrelated entry dropped to make room, if any.
	Evicted *Entry
}

// RRsetCache stores RRsets of one class keyed by owner name and type.
// Entries expire lazily when a lookup finds them stale, and the least
// recently used entry is evicted when the cache is full.
// RRsetCache is not concurrent safe, see ConcurrentRRsetCache.
type RRsetCache struct {
	class uint16
	size  int
	now   func() time.Time
	seed  maphash.Seed

	index *hash_index.HashIndex[CacheKey, handle]
	lru   *eviction_list.EvictionList[handle]
	store entryStore

	stats Stats
}

func NewRRsetCache(opts RRsetCacheOpts) (*RRsetCache, error) {
	if err := opts.Init(); err != nil {
		return nil, err
	}
	c := &RRsetCache{
		class: opts.Class,
		size:  opts.Size,
		now:   opts.Now,
		seed:  maphash.MakeSeed(),
		lru:   eviction_list.New[handle](EvictionFactor * opts.Size),
		store: newEntryStore(opts.Size),
	}
	c.index = hash_index.New[CacheKey, handle](opts.Size, func(k CacheKey) uint64 {
		return k.Hash(c.seed)
	}, keyEqual)
	return c, nil
}

// Lookup returns the live entry for name and rtype, or nil. A hit marks the
// entry as recently used. A stale entry is removed and reported as a miss.
func (c *RRsetCache) Lookup(name string, rtype uint16) *Entry {
	if _, sl := c.lookup(NewCacheKey(name, rtype, c.class)); sl != nil {
		return sl.entry
	}
	return nil
}

func (c *RRsetCache) lookup(key CacheKey) (handle, *slot) {
	h, ok := c.index.Get(key)
	if !ok {
		c.stats.Misses++
		return handle{}, nil
	}
	sl := c.mustSlot(h, key)
	if sl.entry.expired(c.now()) {
		c.purge(h, sl)
		c.stats.Expired++
		c.stats.Misses++
		return handle{}, nil
	}
	c.lru.Touch(sl.elem)
	c.stats.Hits++
	return h, sl
}

// Update caches rrset with the given trust level and returns the entry that
// is cached for its key afterwards. If the cached entry is strictly more
// trusted it is kept and returned, otherwise rrset replaces it.
func (c *RRsetCache) Update(rrset []dns.RR, trust TrustLevel) (*Entry, error) {
	res, err := c.Apply(rrset, trust)
	if err != nil {
		return nil, err
	}
	return res.Entry, nil
}

// Apply is Update with details about what happened.
func (c *RRsetCache) Apply(rrset []dns.RR, trust TrustLevel) (UpdateResult, error) {
	if !trust.Valid() {
		return UpdateResult{}, fmt.Errorf("%w: %d", ErrUnknownTrustLevel, uint8(trust))
	}
	key, err := c.checkRRset(rrset)
	if err != nil {
		return UpdateResult{}, err
	}

	if old, sl := c.lookup(key); sl != nil {
		if sl.entry.TrustLevel().MoreTrustedThan(trust) {
			c.stats.Rejected++
			return UpdateResult{Entry: sl.entry}, nil
		}
		// The hash index slot is overwritten below, only the list
		// membership and the store slot go away here.
		c.lru.Remove(sl.elem)
		c.store.release(old)
	}

	e := newEntry(key, rrset, trust, c.now())
	h := c.store.alloc(e)
	if err := c.index.Add(key, h, true); err != nil {
		panic(fmt.Errorf("%w: add %s: %v", ErrInternal, key, err))
	}
	elem, victim, evicted := c.lru.Add(h)
	sl, _ := c.store.get(h)
	sl.elem = elem
	c.stats.Updates++

	res := UpdateResult{Entry: e, Applied: true}
	if evicted {
		res.Evicted = c.evict(victim)
	}
	return res, nil
}

// evict drops an entry that the eviction list has already unlinked.
func (c *RRsetCache) evict(h handle) *Entry {
	sl, ok := c.store.get(h)
	if !ok {
		panic(fmt.Errorf("%w: evicted a stale handle", ErrInternal))
	}
	e := sl.entry
	if !c.index.Remove(e.key) {
		panic(fmt.Errorf("%w: evicted %s is not indexed", ErrInternal, e.key))
	}
	c.store.release(h)
	c.stats.Evictions++
	return e
}

func (c *RRsetCache) purge(h handle, sl *slot) {
	if !c.index.Remove(sl.entry.key) {
		panic(fmt.Errorf("%w: purged %s is not indexed", ErrInternal, sl.entry.key))
	}
	c.lru.Remove(sl.elem)
	c.store.release(h)
}

func (c *RRsetCache) mustSlot(h handle, key CacheKey) *slot {
	sl, ok := c.store.get(h)
	if !ok {
		panic(fmt.Errorf("%w: %s maps to a stale handle", ErrInternal, key))
	}
	if !c.lru.Contains(sl.elem) {
		panic(fmt.Errorf("%w: %s is indexed but not in the eviction list", ErrInternal, key))
	}
	return sl
}

// Clean removes every entry that is stale at now and returns how many were
// removed. Lookup does the same for a single key, so calling Clean is never
// required for correctness.
func (c *RRsetCache) Clean(now time.Time) (removed int) {
	var stale []handle
	c.lru.Range(func(h handle) bool {
		if sl, ok := c.store.get(h); ok && sl.entry.expired(now) {
			stale = append(stale, h)
		}
		return true
	})
	for _, h := range stale {
		sl, _ := c.store.get(h)
		c.purge(h, sl)
		removed++
	}
	c.stats.Expired += uint64(removed)
	return removed
}

func (c *RRsetCache) checkRRset(rrset []dns.RR) (CacheKey, error) {
	if len(rrset) == 0 {
		return CacheKey{}, fmt.Errorf("%w: empty rrset", ErrInvalidRRset)
	}
	if rrset[0] == nil {
		return CacheKey{}, fmt.Errorf("%w: nil record", ErrInvalidRRset)
	}
	base := rrset[0].Header()
	if _, ok := dns.IsDomainName(base.Name); !ok {
		return CacheKey{}, fmt.Errorf("%w: bad owner name %q", ErrInvalidRRset, base.Name)
	}
	if base.Rrtype == dns.TypeOPT {
		return CacheKey{}, fmt.Errorf("%w: OPT is not cacheable", ErrInvalidRRset)
	}
	if base.Class != c.class {
		return CacheKey{}, fmt.Errorf("%w: class %d, cache serves class %d", ErrInvalidRRset, base.Class, c.class)
	}
	key := NewCacheKey(base.Name, base.Rrtype, base.Class)
	for i, rr := range rrset[1:] {
		if rr == nil {
			return CacheKey{}, fmt.Errorf("%w: nil record #%d", ErrInvalidRRset, i+1)
		}
		h := rr.Header()
		if h.Rrtype != key.Type || h.Class != key.Class || dns.CanonicalName(h.Name) != key.Name {
			return CacheKey{}, fmt.Errorf("%w: record #%d %s does not belong to %s", ErrInvalidRRset, i+1, rr, key)
		}
	}
	return key, nil
}

// Len returns the number of cached entries, stale ones included.
func (c *RRsetCache) Len() int {
	return c.index.Len()
}

// Cap returns the maximum number of entries.
func (c *RRsetCache) Cap() int {
	return c.lru.Cap()
}

// Size returns the hash bucket count the cache was built with.
func (c *RRsetCache) Size() int {
	return c.size
}

func (c *RRsetCache) Class() uint16 {
	return c.class
}

func (c *RRsetCache) Stats() Stats {
	return c.stats
}
