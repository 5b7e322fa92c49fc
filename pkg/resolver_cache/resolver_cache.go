package resolver_cache

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pmkol/rrcache-x/mlog"
	"github.com/pmkol/rrcache-x/pkg/dnsutils"
	"github.com/pmkol/rrcache-x/pkg/rrset_cache"
)

var ErrUnknownClass = errors.New("class is not cached")

type ResolverCacheOpts struct {
	// Size is the hash bucket count of every per-class cache.
	Size int

	// Classes lists the record classes to cache.
	// Default is IN only.
	Classes []uint16

	// CleanerInterval enables a background sweep of stale entries.
	CleanerInterval time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time

	// Logger is the *zap.Logger for this cache.
	// A nil Logger will disable logging.
	Logger *zap.Logger
}

func (opts *ResolverCacheOpts) Init() error {
	if opts.Size <= 0 {
		return fmt.Errorf("invalid cache size %d", opts.Size)
	}
	if len(opts.Classes) == 0 {
		opts.Classes = []uint16{dns.ClassINET}
	}
	if opts.Logger == nil {
		opts.Logger = mlog.Nop()
	}
	return nil
}

// ResolverCache keeps one RRset cache per record class and routes lookups
// and updates to the cache of the requested class.
type ResolverCache struct {
	logger  *zap.Logger
	caches  map[uint16]*rrset_cache.ConcurrentRRsetCache
	classes []uint16
}

func NewResolverCache(opts ResolverCacheOpts) (*ResolverCache, error) {
	if err := opts.Init(); err != nil {
		return nil, err
	}

	rc := &ResolverCache{
		logger: opts.Logger,
		caches: make(map[uint16]*rrset_cache.ConcurrentRRsetCache, len(opts.Classes)),
	}
	for _, class := range opts.Classes {
		if _, dup := rc.caches[class]; dup {
			return nil, fmt.Errorf("duplicated class %s", dnsutils.QclassToString(class))
		}
		cc, err := rrset_cache.NewConcurrentRRsetCache(rrset_cache.ConcurrentRRsetCacheOpts{
			RRsetCacheOpts: rrset_cache.RRsetCacheOpts{
				Size:  opts.Size,
				Class: class,
				Now:   opts.Now,
			},
			CleanerInterval: opts.CleanerInterval,
			Logger:          opts.Logger.With(zap.String("class", dnsutils.QclassToString(class))),
		})
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to init cache for class %s, %w", dnsutils.QclassToString(class), err)
		}
		rc.caches[class] = cc
		rc.classes = append(rc.classes, class)
	}
	sort.Slice(rc.classes, func(i, j int) bool { return rc.classes[i] < rc.classes[j] })
	return rc, nil
}

// Classes returns the cached classes in ascending order.
func (rc *ResolverCache) Classes() []uint16 {
	return append([]uint16(nil), rc.classes...)
}

// Cache returns the cache of class, or nil.
func (rc *ResolverCache) Cache(class uint16) *rrset_cache.ConcurrentRRsetCache {
	return rc.caches[class]
}

func (rc *ResolverCache) cache(class uint16) (*rrset_cache.ConcurrentRRsetCache, error) {
	cc := rc.caches[class]
	if cc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, dnsutils.QclassToString(class))
	}
	return cc, nil
}

// Lookup returns the live entry for the key, or nil on a miss.
func (rc *ResolverCache) Lookup(name string, rtype, class uint16) (*rrset_cache.Entry, error) {
	cc, err := rc.cache(class)
	if err != nil {
		return nil, err
	}
	return cc.Lookup(name, rtype), nil
}

// Update caches rrset in the cache of its class.
func (rc *ResolverCache) Update(rrset []dns.RR, trust rrset_cache.TrustLevel) (rrset_cache.UpdateResult, error) {
	if len(rrset) == 0 || rrset[0] == nil {
		return rrset_cache.UpdateResult{}, fmt.Errorf("%w: empty rrset", rrset_cache.ErrInvalidRRset)
	}
	cc, err := rc.cache(rrset[0].Header().Class)
	if err != nil {
		return rrset_cache.UpdateResult{}, err
	}
	return cc.Apply(rrset, trust)
}

// UpdateMsg caches every RRset of a response. Each section is ranked
// after RFC 2181 section 5.4.1, using the AA bit of msg. RRsets of classes
// that are not cached are skipped. It returns how many RRsets were stored
// and the first error met, later RRsets are still tried.
func (rc *ResolverCache) UpdateMsg(msg *dns.Msg) (applied int, err error) {
	if msg == nil {
		return 0, errors.New("nil msg")
	}
	for _, sec := range [...]struct {
		rrs   []dns.RR
		trust rrset_cache.TrustLevel
	}{
		{msg.Answer, SectionTrust(SectionAnswer, msg.Authoritative)},
		{msg.Ns, SectionTrust(SectionAuthority, msg.Authoritative)},
		{msg.Extra, SectionTrust(SectionAdditional, msg.Authoritative)},
	} {
		for _, rrset := range dnsutils.SplitRRsets(sec.rrs) {
			class := rrset[0].Header().Class
			if rc.caches[class] == nil {
				continue
			}
			res, uerr := rc.Update(rrset, sec.trust)
			if uerr != nil {
				rc.logger.Debug("rrset not cached", zap.Error(uerr))
				if err == nil {
					err = uerr
				}
				continue
			}
			if res.Applied {
				applied++
			}
		}
	}
	return applied, err
}

// Register registers a metrics collector for every class cache.
func (rc *ResolverCache) Register(reg prometheus.Registerer) error {
	for _, class := range rc.classes {
		if err := reg.Register(rrset_cache.NewCollector(rc.caches[class])); err != nil {
			return fmt.Errorf("failed to register metrics of class %s, %w", dnsutils.QclassToString(class), err)
		}
	}
	return nil
}

func (rc *ResolverCache) Close() error {
	for _, cc := range rc.caches {
		cc.Close()
	}
	return nil
}
