package rrset_cache

import (
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	cc := newTestConcurrentCache(t, 2, 0)
	_, err := cc.Update(aRRset(t, "a.example.", 300, "192.0.2.1"), TrustAnswerAA)
	require.NoError(t, err)
	_, err = cc.Update(aRRset(t, "a.example.", 300, "192.0.2.2"), TrustAdditionalNonAA)
	require.NoError(t, err)
	cc.Lookup("a.example.", dns.TypeA)
	cc.Lookup("b.example.", dns.TypeA)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(cc)))

	const want = `
# HELP rrset_cache_capacity The maximum number of entries
# TYPE rrset_cache_capacity gauge
rrset_cache_capacity{class="IN"} 6
# HELP rrset_cache_entries The current number of entries
# TYPE rrset_cache_entries gauge
rrset_cache_entries{class="IN"} 1
# HELP rrset_cache_hit_total The total number of lookups that found a live entry
# TYPE rrset_cache_hit_total counter
rrset_cache_hit_total{class="IN"} 2
# HELP rrset_cache_miss_total The total number of lookups that found nothing or a stale entry
# TYPE rrset_cache_miss_total counter
rrset_cache_miss_total{class="IN"} 2
# HELP rrset_cache_rejected_update_total The total number of updates dropped in favour of a more trusted entry
# TYPE rrset_cache_rejected_update_total counter
rrset_cache_rejected_update_total{class="IN"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want),
		"rrset_cache_capacity",
		"rrset_cache_entries",
		"rrset_cache_hit_total",
		"rrset_cache_miss_total",
		"rrset_cache_rejected_update_total",
	))
}
