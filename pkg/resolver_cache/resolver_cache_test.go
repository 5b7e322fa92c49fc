package resolver_cache

import (
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmkol/rrcache-x/pkg/rrset_cache"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func newTestResolverCache(t *testing.T, classes ...uint16) *ResolverCache {
	t.Helper()
	now := time.Now()
	rc, err := NewResolverCache(ResolverCacheOpts{
		Size:    8,
		Classes: classes,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return rc
}

func referral(aa bool) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion("www.example.", dns.TypeA)
	m.Response = true
	m.Authoritative = aa
	m.Answer = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "www.example.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300}, A: []byte{192, 0, 2, 1}},
		&dns.A{Hdr: dns.RR_Header{Name: "www.example.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300}, A: []byte{192, 0, 2, 2}},
	}
	m.Ns = []dns.RR{
		&dns.NS{Hdr: dns.RR_Header{Name: "example.", Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 3600}, Ns: "ns1.example."},
	}
	m.Extra = []dns.RR{
		&dns.A{Hdr: dns.RR_Header{Name: "ns1.example.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 3600}, A: []byte{192, 0, 2, 53}},
	}
	m.SetEdns0(1232, false)
	return m
}

func TestNewResolverCache(t *testing.T) {
	_, err := NewResolverCache(ResolverCacheOpts{})
	assert.Error(t, err)

	_, err = NewResolverCache(ResolverCacheOpts{Size: 1, Classes: []uint16{dns.ClassINET, dns.ClassINET}})
	assert.Error(t, err)

	rc := newTestResolverCache(t, dns.ClassCHAOS, dns.ClassINET)
	assert.Equal(t, []uint16{dns.ClassINET, dns.ClassCHAOS}, rc.Classes())
	assert.NotNil(t, rc.Cache(dns.ClassCHAOS))
	assert.Nil(t, rc.Cache(dns.ClassHESIOD))

	rc = newTestResolverCache(t)
	assert.Equal(t, []uint16{dns.ClassINET}, rc.Classes())
}

func TestResolverCache_RoutesByClass(t *testing.T) {
	rc := newTestResolverCache(t, dns.ClassINET, dns.ClassCHAOS)

	_, err := rc.Update([]dns.RR{mustRR(t, `version.bind. 60 CH TXT "1.0"`)}, rrset_cache.TrustAnswerAA)
	require.NoError(t, err)
	_, err = rc.Update([]dns.RR{mustRR(t, "version.bind. 60 IN A 192.0.2.1")}, rrset_cache.TrustAnswerAA)
	require.NoError(t, err)

	e, err := rc.Lookup("version.bind.", dns.TypeTXT, dns.ClassCHAOS)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, uint16(dns.ClassCHAOS), e.Key().Class)

	e, err = rc.Lookup("version.bind.", dns.TypeTXT, dns.ClassINET)
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = rc.Lookup("version.bind.", dns.TypeTXT, dns.ClassHESIOD)
	assert.ErrorIs(t, err, ErrUnknownClass)
	_, err = rc.Update([]dns.RR{mustRR(t, "x. 60 HS A 192.0.2.1")}, rrset_cache.TrustAnswerAA)
	assert.ErrorIs(t, err, ErrUnknownClass)
	_, err = rc.Update(nil, rrset_cache.TrustAnswerAA)
	assert.ErrorIs(t, err, rrset_cache.ErrInvalidRRset)
}

func TestResolverCache_UpdateMsg(t *testing.T) {
	rc := newTestResolverCache(t)

	n, err := rc.UpdateMsg(referral(false))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, tt := range []struct {
		name  string
		rtype uint16
		trust rrset_cache.TrustLevel
		size  int
	}{
		{"www.example.", dns.TypeA, rrset_cache.TrustAnswerNonAA, 2},
		{"example.", dns.TypeNS, rrset_cache.TrustAuthorityNonAA, 1},
		{"ns1.example.", dns.TypeA, rrset_cache.TrustAdditionalNonAA, 1},
	} {
		e, err := rc.Lookup(tt.name, tt.rtype, dns.ClassINET)
		require.NoError(t, err)
		require.NotNil(t, e, tt.name)
		assert.Equal(t, tt.trust, e.TrustLevel(), tt.name)
		assert.Len(t, e.RRset(), tt.size, tt.name)
	}

	// An authoritative answer outranks everything cached above.
	n, err = rc.UpdateMsg(referral(true))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	e, _ := rc.Lookup("www.example.", dns.TypeA, dns.ClassINET)
	assert.Equal(t, rrset_cache.TrustAnswerAA, e.TrustLevel())

	// Non-authoritative data can no longer replace it.
	n, err = rc.UpdateMsg(referral(false))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = rc.UpdateMsg(nil)
	assert.Error(t, err)
}

func TestSectionTrust(t *testing.T) {
	assert.Equal(t, rrset_cache.TrustAnswerAA, SectionTrust(SectionAnswer, true))
	assert.Equal(t, rrset_cache.TrustAuthorityAA, SectionTrust(SectionAuthority, true))
	assert.Equal(t, rrset_cache.TrustAdditionalAA, SectionTrust(SectionAdditional, true))
	assert.Equal(t, rrset_cache.TrustAdditionalNonAA, SectionTrust(SectionAdditional, false))
	assert.Equal(t, rrset_cache.TrustDefault, SectionTrust(Section(9), true))

	// Glue must never outrank an answer of the same authority.
	assert.True(t, SectionTrust(SectionAnswer, false) > SectionTrust(SectionAdditional, false))
	assert.True(t, SectionTrust(SectionAnswer, true) > SectionTrust(SectionAuthority, true))
}

func TestResolverCache_Register(t *testing.T) {
	rc := newTestResolverCache(t, dns.ClassINET, dns.ClassCHAOS)
	reg := prometheus.NewRegistry()
	require.NoError(t, rc.Register(reg))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
	for _, mf := range mfs {
		assert.Len(t, mf.GetMetric(), 2, mf.GetName())
	}
}
