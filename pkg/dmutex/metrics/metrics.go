// Package metrics exposes Prometheus instrumentation for a dmutex
// instance. Every metric here is updated directly by the parent dmutex
// package (from AddPeer, Request, Release and the dispatch loop) and
// can be registered with any
// prometheus.Registerer the host already runs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups the counters and gauges a single mutex instance
// updates. Construct one per instance with NewCollectors and register
// it with a prometheus.Registerer; the zero value is not usable.
type Collectors struct {
	RequestsTotal   prometheus.Counter
	GrantsTotal     prometheus.Counter
	DenialsTotal    prometheus.Counter
	HolderLostTotal prometheus.Counter
	PeerCount       prometheus.Gauge
}

// NewCollectors builds the metric set for a mutex identified by name,
// labeling every series so several instances in one process remain
// distinguishable in a shared registry.
func NewCollectors(name string) *Collectors {
	labels := prometheus.Labels{"mutex": name}
	return &Collectors{
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dmutex_requests_total",
			Help:        "Number of Request() calls made while Available.",
			ConstLabels: labels,
		}),
		GrantsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dmutex_grants_total",
			Help:        "Number of times this instance transitioned to Ours.",
			ConstLabels: labels,
		}),
		DenialsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dmutex_denials_total",
			Help:        "Number of times a Denied callback fired.",
			ConstLabels: labels,
		}),
		HolderLostTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "dmutex_holder_lost_total",
			Help:        "Number of times the remote holder was lost mid-protocol.",
			ConstLabels: labels,
		}),
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "dmutex_peer_count",
			Help:        "Current size of the peer table.",
			ConstLabels: labels,
		}),
	}
}

// Describe and Collect implement prometheus.Collector by delegating to
// each field, so a Collectors value can be registered directly.
func (c *Collectors) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.RequestsTotal.Desc()
	ch <- c.GrantsTotal.Desc()
	ch <- c.DenialsTotal.Desc()
	ch <- c.HolderLostTotal.Desc()
	ch <- c.PeerCount.Desc()
}

func (c *Collectors) Collect(ch chan<- prometheus.Metric) {
	ch <- c.RequestsTotal
	ch <- c.GrantsTotal
	ch <- c.DenialsTotal
	ch <- c.HolderLostTotal
	ch <- c.PeerCount
}
