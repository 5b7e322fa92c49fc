package rrset_cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pmkol/rrcache-x/mlog"
)

const defaultResolveTimeout = 5 * time.Second

// ResolveFunc fetches the RRset for a missed key, together with the trust
// level of the source it came from.
type ResolveFunc func(ctx context.Context) ([]dns.RR, TrustLevel, error)

type ConcurrentRRsetCacheOpts struct {
	RRsetCacheOpts

	// CleanerInterval enables a background sweep of stale entries.
	// Zero or negative disables it.
	CleanerInterval time.Duration

	// ResolveTimeout bounds a shared resolve call of LookupOrResolve.
	// Default is 5s.
	ResolveTimeout time.Duration

	// Logger is the *zap.Logger for this cache.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

// ConcurrentRRsetCache guards one RRsetCache with a single mutex so that the
// hash index and the eviction list are always mutated together.
type ConcurrentRRsetCache struct {
	m      sync.Mutex
	c      *RRsetCache
	logger *zap.Logger
	sf     singleflight.Group

	resolveTimeout time.Duration

	closed           uint32
	closeCleanerChan chan struct{}
	cleanerWG        sync.WaitGroup
}

func NewConcurrentRRsetCache(opts ConcurrentRRsetCacheOpts) (*ConcurrentRRsetCache, error) {
	c, err := NewRRsetCache(opts.RRsetCacheOpts)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = mlog.Nop()
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	cc := &ConcurrentRRsetCache{
		c:                c,
		logger:           opts.Logger,
		resolveTimeout:   opts.ResolveTimeout,
		closeCleanerChan: make(chan struct{}),
	}
	if opts.CleanerInterval > 0 {
		cc.cleanerWG.Add(1)
		go cc.startCleaner(opts.CleanerInterval)
	}
	return cc, nil
}

func (cc *ConcurrentRRsetCache) Lookup(name string, rtype uint16) *Entry {
	cc.m.Lock()
	defer cc.m.Unlock()
	return cc.c.Lookup(name, rtype)
}

func (cc *ConcurrentRRsetCache) Update(rrset []dns.RR, trust TrustLevel) (*Entry, error) {
	res, err := cc.Apply(rrset, trust)
	if err != nil {
		return nil, err
	}
	return res.Entry, nil
}

func (cc *ConcurrentRRsetCache) Apply(rrset []dns.RR, trust TrustLevel) (UpdateResult, error) {
	cc.m.Lock()
	res, err := cc.c.Apply(rrset, trust)
	cc.m.Unlock()
	if err != nil {
		return res, err
	}

	if !res.Applied {
		cc.logger.Debug("update rejected by a more trusted entry",
			zap.Stringer("key", res.Entry.Key()),
			zap.Stringer("cached_trust", res.Entry.TrustLevel()),
			zap.Stringer("trust", trust))
	}
	if res.Evicted != nil {
		cc.logger.Debug("entry evicted", zap.Stringer("key", res.Evicted.Key()))
	}
	return res, nil
}

// LookupOrResolve returns the cached entry for name and rtype. On a miss it
// calls resolve and caches its result. Concurrent misses of the same key
// share one resolve call. That call keeps the values of the first caller's
// ctx but not its cancellation, and is bounded by ResolveTimeout. A caller
// only stops waiting when its own ctx is done.
// The resolved RRset must belong to the looked up key.
func (cc *ConcurrentRRsetCache) LookupOrResolve(ctx context.Context, name string, rtype uint16, resolve ResolveFunc) (*Entry, error) {
	if e := cc.Lookup(name, rtype); e != nil {
		return e, nil
	}

	key := NewCacheKey(name, rtype, cc.c.Class())
	ch := cc.sf.DoChan(key.String(), func() (interface{}, error) {
		rCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cc.resolveTimeout)
		defer cancel()
		rrset, trust, err := resolve(rCtx)
		if err != nil {
			return nil, err
		}
		if len(rrset) > 0 && rrset[0] != nil {
			h := rrset[0].Header()
			if got := NewCacheKey(h.Name, h.Rrtype, h.Class); got != key {
				return nil, fmt.Errorf("%w: resolved %s for %s", ErrInvalidRRset, got, key)
			}
		}
		return cc.Update(rrset, trust)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Entry), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Clean removes stale entries, see RRsetCache.Clean.
func (cc *ConcurrentRRsetCache) Clean(now time.Time) int {
	cc.m.Lock()
	defer cc.m.Unlock()
	return cc.c.Clean(now)
}

func (cc *ConcurrentRRsetCache) Stats() Stats {
	cc.m.Lock()
	defer cc.m.Unlock()
	return cc.c.Stats()
}

func (cc *ConcurrentRRsetCache) Len() int {
	cc.m.Lock()
	defer cc.m.Unlock()
	return cc.c.Len()
}

func (cc *ConcurrentRRsetCache) Cap() int {
	return cc.c.Cap()
}

func (cc *ConcurrentRRsetCache) Class() uint16 {
	return cc.c.Class()
}

// Close stops the background cleaner and waits for it to exit.
// The cache stays usable.
func (cc *ConcurrentRRsetCache) Close() error {
	if atomic.CompareAndSwapUint32(&cc.closed, 0, 1) {
		close(cc.closeCleanerChan)
	}
	cc.cleanerWG.Wait()
	return nil
}

func (cc *ConcurrentRRsetCache) startCleaner(interval time.Duration) {
	defer cc.cleanerWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cc.closeCleanerChan:
			return
		case <-ticker.C:
			cc.m.Lock()
			removed := cc.c.Clean(cc.c.now())
			cc.m.Unlock()
			if removed > 0 {
				cc.logger.Debug("stale entries removed", zap.Int("removed", removed))
			}
		}
	}
}
