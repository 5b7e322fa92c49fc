package dnsutils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// --- TTL Management ---

// GetMinimalTTL returns the smallest TTL of rrs, skipping OPT records.
// ok is false if rrs has no record other than OPT.
func GetMinimalTTL(rrs []dns.RR) (minTTL uint32, ok bool) {
	minTTL = ^uint32(0)
	for _, rr := range rrs {
		if rr == nil {
			continue
		}
		hdr := rr.Header()
		if hdr.Rrtype != dns.TypeOPT {
			ok = true
			if hdr.Ttl < minTTL {
				minTTL = hdr.Ttl
			}
		}
	}
	if !ok {
		return 0, false
	}
	return minTTL, true
}

// CopyWithTTL returns deep copies of rrs with every TTL set to ttl.
func CopyWithTTL(rrs []dns.RR, ttl uint32) []dns.RR {
	out := make([]dns.RR, 0, len(rrs))
	for _, rr := range rrs {
		c := dns.Copy(rr)
		c.Header().Ttl = ttl
		out = append(out, c)
	}
	return out
}

// --- RRset grouping ---

// SplitRRsets groups rrs by canonical owner name, type and class, keeping
// the order in which each group first appears. OPT and TSIG records are
// dropped, they never form cacheable data.
func SplitRRsets(rrs []dns.RR) [][]dns.RR {
	type setKey struct {
		name   string
		rrtype uint16
		class  uint16
	}
	idx := make(map[setKey]int)
	var sets [][]dns.RR
	for _, rr := range rrs {
		if rr == nil {
			continue
		}
		hdr := rr.Header()
		switch hdr.Rrtype {
		case dns.TypeOPT, dns.TypeTSIG:
			continue
		}
		k := setKey{name: dns.CanonicalName(hdr.Name), rrtype: hdr.Rrtype, class: hdr.Class}
		if i, ok := idx[k]; ok {
			sets[i] = append(sets[i], rr)
			continue
		}
		idx[k] = len(sets)
		sets = append(sets, []dns.RR{rr})
	}
	return sets
}

// --- Helpers ---

func QclassToString(u uint16) string {
	return uint16Conv(u, dns.ClassToString)
}

func QtypeToString(u uint16) string {
	return uint16Conv(u, dns.TypeToString)
}

func uint16Conv(u uint16, m map[uint16]string) string {
	if s, ok := m[u]; ok {
		return s
	}
	return strconv.Itoa(int(u))
}

// StringToQtype parses a type mnemonic ("AAAA"), an RFC 3597 name ("TYPE65")
// or a decimal number.
func StringToQtype(s string) (uint16, error) {
	return stringConv(s, "TYPE", dns.StringToType)
}

// StringToQclass parses a class mnemonic ("IN"), an RFC 3597 name ("CLASS3")
// or a decimal number.
func StringToQclass(s string) (uint16, error) {
	return stringConv(s, "CLASS", dns.StringToClass)
}

func stringConv(s, prefix string, m map[string]uint16) (uint16, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if v, ok := m[u]; ok {
		return v, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(u, prefix), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", strings.ToLower(prefix), s)
	}
	return uint16(n), nil
}
