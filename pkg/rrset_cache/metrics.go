package rrset_cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pmkol/rrcache-x/pkg/dnsutils"
)

// Collector exports the counters of a ConcurrentRRsetCache. Every metric
// carries a "class" label with the class mnemonic of the cache.
type Collector struct {
	cc *ConcurrentRRsetCache

	hits, misses, expired, evictions, updates, rejected *prometheus.Desc
	entries, capacity                                   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(cc *ConcurrentRRsetCache) *Collector {
	labels := prometheus.Labels{"class": dnsutils.QclassToString(cc.Class())}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("", "rrset_cache", name), help, nil, labels)
	}
	return &Collector{
		cc:        cc,
		hits:      desc("hit_total", "The total number of lookups that found a live entry"),
		misses:    desc("miss_total", "The total number of lookups that found nothing or a stale entry"),
		expired:   desc("expired_total", "The total number of stale entries removed"),
		evictions: desc("eviction_total", "The total number of entries evicted to keep the cache within capacity"),
		updates:   desc("update_total", "The total number of updates that replaced or created an entry"),
		rejected:  desc("rejected_update_total", "The total number of updates dropped in favour of a more trusted entry"),
		entries:   desc("entries", "The current number of entries"),
		capacity:  desc("capacity", "The maximum number of entries"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.hits, c.misses, c.expired, c.evictions, c.updates, c.rejected, c.entries, c.capacity,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.cc.m.Lock()
	s := c.cc.c.Stats()
	n := c.cc.c.Len()
	c.cc.m.Unlock()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(s.Expired))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.updates, prometheus.CounterValue, float64(s.Updates))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.Rejected))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(n))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(c.cc.Cap()))
}
