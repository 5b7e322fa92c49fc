package rrset_cache

import (
	"hash/maphash"

	"github.com/miekg/dns"

	"github.com/pmkol/rrcache-x/pkg/dnsutils"
)

// CacheKey identifies one cache slot. Name is always in canonical form
// (lower case, fully qualified), so keys can be compared with ==.
type CacheKey struct {
	Name  string
	Type  uint16
	Class uint16
}

func NewCacheKey(name string, rtype, class uint16) CacheKey {
	return CacheKey{
		Name:  dns.CanonicalName(name),
		Type:  rtype,
		Class: class,
	}
}

func (k CacheKey) Hash(seed maphash.Seed) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteString(k.Name)
	h.Write([]byte{byte(k.Type >> 8), byte(k.Type), byte(k.Class >> 8), byte(k.Class)})
	return h.Sum64()
}

func (k CacheKey) String() string {
	return k.Name + "/" + dnsutils.QtypeToString(k.Type) + "/" + dnsutils.QclassToString(k.Class)
}

func keyEqual(a, b CacheKey) bool {
	return a == b
}
