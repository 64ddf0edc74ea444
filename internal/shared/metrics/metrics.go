package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsync",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Reads served from a warm entity cache without a network call.",
	}, []string{"entity"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsync",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Reads that issued an upstream fetch.",
	}, []string{"entity"})

	CacheCoalesced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsync",
		Subsystem: "cache",
		Name:      "coalesced_total",
		Help:      "Reads that joined an already in-flight fetch for the same key.",
	}, []string{"entity"})

	SocketReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "courtsync",
		Subsystem: "realtime",
		Name:      "reconnects_total",
		Help:      "Successful upstream socket reconnections.",
	})

	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsync",
		Subsystem: "realtime",
		Name:      "events_dispatched_total",
		Help:      "Domain events applied to a store, by kind.",
	}, []string{"kind"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtsync",
		Subsystem: "realtime",
		Name:      "events_dropped_total",
		Help:      "Domain events discarded before application, by reason.",
	}, []string{"reason"})
)

// Handler exposes the default prometheus registry for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}
