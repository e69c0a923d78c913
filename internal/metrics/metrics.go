package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 8000}

var (
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "travelgeo_geocode_requests_total",
		Help: "Total reverse geocoding requests sent upstream",
	})
	GeocodeSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "travelgeo_geocode_success_total",
		Help: "Reverse geocoding requests that returned a country code",
	})
	GeocodeFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travelgeo_geocode_fail_total",
		Help: "Reverse geocoding failures by reason",
	}, []string{"reason"})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "travelgeo_geocode_duration_ms",
		Help:    "Reverse geocoding call duration in milliseconds",
		Buckets: durationBuckets,
	})
	GeocodeCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travelgeo_geocode_cache_total",
		Help: "Geocode cache lookups by tier and result",
	}, []string{"tier", "result"})
	PhotoRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "travelgeo_photo_requests_total",
		Help: "Photo enrichment lookups",
	})
	PhotoFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "travelgeo_photo_fail_total",
		Help: "Photo enrichment lookups that degraded to an empty list",
	})
	PhotoDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "travelgeo_photo_duration_ms",
		Help:    "Photo enrichment duration in milliseconds",
		Buckets: durationBuckets,
	})
	DetectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travelgeo_detections_total",
		Help: "Country detections by resolution source",
	}, []string{"source"})
	PendingResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travelgeo_pending_resets_total",
		Help: "Pending country changes discarded, by reason",
	}, []string{"reason"})
	ConfirmationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "travelgeo_confirmations_total",
		Help: "Confirmed country changes",
	}, []string{"kind"})
	StaleFixesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "travelgeo_stale_fixes_total",
		Help: "Fixes dropped because they arrived out of order or after a reset",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "travelgeo_active_sessions",
		Help: "Travel Mode sessions currently active",
	})
)

func init() {
	prometheus.MustRegister(
		GeocodeRequestsTotal,
		GeocodeSuccessTotal,
		GeocodeFailTotal,
		GeocodeDurationMs,
		GeocodeCacheTotal,
		PhotoRequestsTotal,
		PhotoFailTotal,
		PhotoDurationMs,
		DetectionsTotal,
		PendingResetsTotal,
		ConfirmationsTotal,
		StaleFixesTotal,
		ActiveSessions,
	)
}

// Handler 暴露默认注册表，由主入口挂载到 <API_BASE>/metrics
func Handler() http.Handler { return promhttp.Handler() }
