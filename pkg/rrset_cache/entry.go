package rrset_cache

import (
	"time"

	"github.com/miekg/dns"

	"github.com/pmkol/rrcache-x/pkg/dnsutils"
)

// Entry is one cached RRset. It is immutable once built. Callers must not
// modify the records returned by RRset, use RRsetWithTTL for a private copy.
type Entry struct {
	key      CacheKey
	rrset    []dns.RR
	trust    TrustLevel
	expireAt time.Time
}

// newEntry copies rrset. The expiry is fixed here from the smallest TTL
// of the set and never changes afterwards.
func newEntry(key CacheKey, rrset []dns.RR, trust TrustLevel, now time.Time) *Entry {
	rrs := make([]dns.RR, len(rrset))
	for i, rr := range rrset {
		rrs[i] = dns.Copy(rr)
	}
	minTTL, _ := dnsutils.GetMinimalTTL(rrs)
	return &Entry{
		key:      key,
		rrset:    rrs,
		trust:    trust,
		expireAt: now.Add(time.Duration(minTTL) * time.Second),
	}
}

func (e *Entry) Key() CacheKey {
	return e.key
}

func (e *Entry) RRset() []dns.RR {
	return e.rrset
}

func (e *Entry) TrustLevel() TrustLevel {
	return e.trust
}

func (e *Entry) ExpireAt() time.Time {
	return e.expireAt
}

func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.expireAt)
}

// TTL returns the remaining lifetime in whole seconds, 0 once expired.
func (e *Entry) TTL(now time.Time) uint32 {
	d := e.expireAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Second)
}

// RRsetWithTTL returns copies of the records with TTL set to the remaining
// lifetime of e.
func (e *Entry) RRsetWithTTL(now time.Time) []dns.RR {
	return dnsutils.CopyWithTTL(e.rrset, e.TTL(now))
}
