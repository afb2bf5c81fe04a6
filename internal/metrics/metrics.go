package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guilherme-santos/calsync/internal/syncer"
)

// Collector records the outcome of sync runs.
type Collector struct {
	runs     *prometheus.CounterVec
	events   *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calsync_runs_total",
			Help: "Sync runs by provider and status.",
		}, []string{"provider", "status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calsync_events_stored_total",
			Help: "Event rows written, split parts included.",
		}, []string{"provider"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calsync_event_errors_total",
			Help: "Events that could not be stored.",
		}, []string{"provider"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calsync_run_duration_seconds",
			Help:    "Duration of sync runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"provider"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "calsync_last_run_timestamp_seconds",
			Help: "Unix time of the last finished run per account.",
		}, []string{"account_id"}),
	}

	reg.MustRegister(c.runs, c.events, c.errors, c.duration, c.lastRun)
	return c
}

func (c *Collector) ObserveRun(res *syncer.Result, err error) {
	if res == nil {
		return
	}
	provider := res.Provider.String()

	status := "ok"
	switch {
	case err != nil:
		status = "failed"
	case res.Errors > 0:
		status = "partial"
	}
	c.runs.WithLabelValues(provider, status).Inc()
	c.events.WithLabelValues(provider).Add(float64(res.Events))
	c.errors.WithLabelValues(provider).Add(float64(res.Errors))
	c.duration.WithLabelValues(provider).Observe(res.Duration.Seconds())
	c.lastRun.WithLabelValues(strconv.FormatInt(res.AccountID, 10)).SetToCurrentTime()
}

// Handler serves the metrics of gatherer for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
