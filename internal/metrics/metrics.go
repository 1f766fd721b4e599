package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"waxscore/internal"
)

const namespace = "waxscore"

// Recorder collects pipeline telemetry on its own registry so several
// instances can coexist in tests.
type Recorder struct {
	registry  *prometheus.Registry
	documents *prometheus.CounterVec
	failures  *prometheus.CounterVec
	fallbacks prometheus.Counter
	scores    prometheus.Histogram
	duration  *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents scored, by source format and extraction strategy.",
		}, []string{"kind", "strategy"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Documents that could not be decoded, by source format.",
		}, []string{"kind"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_fallback_total",
			Help:      "Documents whose table yielded too few fields and were re-read line by line.",
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Distribution of suitability scores.",
			Buckets:   prometheus.LinearBuckets(0, 1, 13),
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Time spent decoding, extracting and scoring one document.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.documents, r.failures, r.fallbacks, r.scores, r.duration)
	r.registry.MustRegister(prometheus.NewGoCollector())
	return r
}

// ObserveDocument records one scored document. fallback reports that its table
// rows were too thin and the text lines were read as well.
func (r *Recorder) ObserveDocument(kind internal.SourceKind, rec internal.WaxRecord, fallback bool, elapsed time.Duration) {
	r.documents.WithLabelValues(string(kind), string(rec.Strategy)).Inc()
	if fallback {
		r.fallbacks.Inc()
	}
	r.scores.Observe(float64(rec.Score))
	r.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveFailure(kind internal.SourceKind) {
	if kind == "" {
		kind = "unknown"
	}
	r.failures.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr
// disables the endpoint.
func (r *Recorder) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	if addr == "" {
		<-ctx.Done()
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
