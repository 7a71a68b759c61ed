// Package metrics holds the Prometheus collectors shared by the pipeline
// packages and the optional /metrics endpoint.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	once sync.Once

	// Resolves counts mod resolutions by source: cache, archive or error.
	Resolves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "voxura_mod_resolves_total", Help: "Mod resolutions by source"},
		[]string{"source"},
	)
	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxura_scan_duration_seconds",
		Help:    "Time spent scanning one mods directory",
		Buckets: prometheus.DefBuckets,
	})
	Downloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "voxura_downloads_total", Help: "Downloads by result"},
		[]string{"result"},
	)
	DownloadBytes = prometheus.NewCounter(prometheus.CounterOpts{Name: "voxura_download_bytes_total", Help: "Total bytes downloaded"})
	Extractions   = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "voxura_extractions_total", Help: "Archive extractions by format and result"},
		[]string{"format", "result"},
	)
	AuthCaptures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "voxura_auth_requests_total", Help: "Loopback auth requests by outcome"},
		[]string{"outcome"},
	)
)

// Register adds every collector to the default registry. Safe to call repeatedly.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(Resolves, ScanDuration, Downloads, DownloadBytes, Extractions, AuthCaptures)
	})
}

// Result maps an error to a "ok"/"error" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve exposes /metrics on addr in the background. An empty addr disables it.
// The returned server can be shut down by the caller.
func Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithField("addr", addr).Info("Metrics listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Metrics server error")
		}
	}()
	return srv
}
