package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doridoridoriand/holdwatch/internal/history"
	"github.com/doridoridoriand/holdwatch/internal/job"
)

// Sample results used as label values on holdwatch_samples_total.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Recorder keeps sampling metrics in its own registry. It implements
// job.Observer.
type Recorder struct {
	registry      *prometheus.Registry
	holders       prometheus.Gauge
	ath           prometheus.Gauge
	change        *prometheus.GaugeVec
	samples       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	records       prometheus.Gauge
	lastSuccess   prometheus.Gauge
	now           func() time.Time
}

// NewRecorder registers every holdwatch metric on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		holders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holdwatch_holders",
			Help: "Most recently recorded holder count.",
		}),
		ath: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holdwatch_holders_ath",
			Help: "Highest holder count in the retained history.",
		}),
		change: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "holdwatch_holders_change",
			Help: "Holder count change over a trailing window.",
		}, []string{"window"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdwatch_samples_total",
			Help: "Sampling runs by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "holdwatch_fetch_duration_seconds",
			Help:    "Time spent fetching the rendered page.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holdwatch_history_records",
			Help: "Records currently retained in the history file.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holdwatch_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sample.",
		}),
		now: time.Now,
	}
	r.registry.MustRegister(r.holders, r.ath, r.change, r.samples, r.fetchDuration, r.records, r.lastSuccess)
	for _, res := range []string{ResultSuccess, ResultError, ResultSkipped} {
		r.samples.WithLabelValues(res)
	}
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRun updates counters and gauges from a finished run.
func (r *Recorder) ObserveRun(res job.Result, err error) {
	switch {
	case err != nil:
		r.samples.WithLabelValues(ResultError).Inc()
	case res.Success:
		r.samples.WithLabelValues(ResultSuccess).Inc()
	case res.Skipped():
		r.samples.WithLabelValues(ResultSkipped).Inc()
	default:
		r.samples.WithLabelValues(ResultError).Inc()
	}
	if res.FetchDuration > 0 {
		r.fetchDuration.Observe(res.FetchDuration.Seconds())
	}
	if err == nil {
		r.ObserveHistory(res.History)
	}
}

// ObserveHistory sets the gauges derived from the retained history.
func (r *Recorder) ObserveHistory(h []history.Observation) {
	r.records.Set(float64(len(h)))
	st := history.ComputeStats(h, r.now())
	if !st.HasCurrent {
		return
	}
	r.holders.Set(float64(st.Current))
	r.ath.Set(float64(st.ATH))
	for _, w := range history.Windows {
		r.change.WithLabelValues(w.Label).Set(float64(st.Change(w.Label)))
	}
	if !st.LastSuccess.IsZero() {
		r.lastSuccess.Set(float64(st.LastSuccess.Unix()))
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	h := promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(w, req)
	})
}

// Serve starts an HTTP server and blocks until context cancellation.
func Serve(ctx context.Context, addr string, r *Recorder) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return context.Canceled
		}
		return err
	}
}
