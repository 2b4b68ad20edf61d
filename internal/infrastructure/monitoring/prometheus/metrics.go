package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds all dashboard metrics.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Refresh pipeline
	RefreshTotal         CounterVec
	RefreshDuration      HistogramVec
	SnapshotRecords      GaugeVec
	CriticalClusters     GaugeVec
	LastRefreshTimestamp GaugeVec
	SinkFailuresTotal    CounterVec
	TransitionsTotal     CounterVec

	// Notifications
	NotificationsTotal    CounterVec
	ConsumerMessagesTotal CounterVec

	// Infrastructure
	DBQueryDuration  HistogramVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	ErrorsTotal      CounterVec
}

var (
	DefaultHTTPDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultRefreshDurationBuckets = []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60}
	DefaultDBDurationBuckets      = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.RefreshTotal = collector.RegisterCounter("refresh_total", "Feed refresh attempts", "source", "status")
	m.RefreshDuration = collector.RegisterHistogram("refresh_duration_seconds", "Feed refresh duration", DefaultRefreshDurationBuckets, "source")
	m.SnapshotRecords = collector.RegisterGauge("snapshot_records", "Records in the current snapshot", "dataset")
	m.CriticalClusters = collector.RegisterGauge("critical_clusters", "Clusters currently holding a critical record", "dataset")
	m.LastRefreshTimestamp = collector.RegisterGauge("last_refresh_timestamp_seconds", "Unix time of the last successful refresh", "source")
	m.SinkFailuresTotal = collector.RegisterCounter("sink_failures_total", "Refresh sink failures", "sink")
	m.TransitionsTotal = collector.RegisterCounter("critical_transitions_total", "Cluster criticality transitions", "dataset", "direction")

	m.NotificationsTotal = collector.RegisterCounter("notifications_total", "Outbound notifications", "channel", "status")
	m.ConsumerMessagesTotal = collector.RegisterCounter("consumer_messages_total", "Consumed event messages", "topic", "status")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// The Record helpers accept a nil *AppMetrics so callers can run without a collector.

func RecordHTTPRequest(m *AppMetrics, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordRefresh(m *AppMetrics, source string, err error, duration time.Duration, at time.Time) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.RefreshTotal.WithLabelValues(source, status).Inc()
	m.RefreshDuration.WithLabelValues(source).Observe(duration.Seconds())
	if err == nil {
		m.LastRefreshTimestamp.WithLabelValues(source).Set(float64(at.Unix()))
	}
}

// RecordSnapshot sets the per-dataset gauges for the snapshot just stored.
func RecordSnapshot(m *AppMetrics, dataset string, records, criticalClusters int) {
	if m == nil {
		return
	}
	m.SnapshotRecords.WithLabelValues(dataset).Set(float64(records))
	m.CriticalClusters.WithLabelValues(dataset).Set(float64(criticalClusters))
}

func RecordSinkFailure(m *AppMetrics, sink string) {
	if m == nil {
		return
	}
	m.SinkFailuresTotal.WithLabelValues(sink).Inc()
}

func RecordTransition(m *AppMetrics, dataset string, critical bool) {
	if m == nil {
		return
	}
	direction := "cleared"
	if critical {
		direction = "raised"
	}
	m.TransitionsTotal.WithLabelValues(dataset, direction).Inc()
}

func RecordNotification(m *AppMetrics, channel string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.NotificationsTotal.WithLabelValues(channel, status).Inc()
}

func RecordConsumed(m *AppMetrics, topic string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ConsumerMessagesTotal.WithLabelValues(topic, status).Inc()
}

func RecordDBQuery(m *AppMetrics, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues("postgres", "query_error").Inc()
	}
}

func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(m *AppMetrics, component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
