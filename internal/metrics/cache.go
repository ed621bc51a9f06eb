// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dosemux_cache_lookups_total",
		Help: "Artifact cache lookups by backend and result",
	}, []string{"backend", "result"}) // result=hit|miss|error

	cacheStores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dosemux_cache_stores_total",
		Help: "Artifact cache writes by backend and outcome",
	}, []string{"backend", "outcome"})

	singleflightShared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dosemux_jobs_deduplicated_total",
		Help: "Optimization requests that joined an in-flight identical request",
	})
)

// RecordCacheLookup counts a cache lookup.
func RecordCacheLookup(backend, result string) {
	cacheLookups.WithLabelValues(backend, result).Inc()
}

// RecordCacheStore counts a cache write.
func RecordCacheStore(backend string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	cacheStores.WithLabelValues(backend, outcome).Inc()
}

// RecordDeduplicated counts a request served by an in-flight job.
func RecordDeduplicated() {
	singleflightShared.Inc()
}
