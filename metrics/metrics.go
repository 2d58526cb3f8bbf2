// Package metrics exports training and evaluation progress as Prometheus gauges.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	registerOnce sync.Once

	trainGauges = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rres",
			Subsystem: "train",
			Name:      "value",
			Help:      "Latest training step values by name.",
		},
		[]string{"name"},
	)
	evalGauges = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rres",
			Subsystem: "eval",
			Name:      "value",
			Help:      "Latest evaluation pass values by name.",
		},
		[]string{"name"},
	)
	checkpointPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rres",
			Subsystem: "eval",
			Name:      "checkpoint_polls_total",
			Help:      "Checkpoint polls by outcome.",
		},
		[]string{"result"},
	)
)

// Poll outcomes.
const (
	PollEvaluated   = "evaluated"
	PollMissing     = "missing"
	PollUnavailable = "unavailable"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(trainGauges, evalGauges, checkpointPolls)
	})
}

// RecordTrainStep publishes the values of the latest training step.
func RecordTrainStep(step int64, loss, precision, learningRate float64) {
	RegisterMetrics()
	trainGauges.WithLabelValues("global_step").Set(float64(step))
	trainGauges.WithLabelValues("loss").Set(loss)
	trainGauges.WithLabelValues("precision").Set(precision)
	trainGauges.WithLabelValues("learning_rate").Set(learningRate)
}

// RecordEval publishes the result of an evaluation pass.
func RecordEval(step int64, loss, precision, bestPrecision float64) {
	RegisterMetrics()
	evalGauges.WithLabelValues("global_step").Set(float64(step))
	evalGauges.WithLabelValues("loss").Set(loss)
	evalGauges.WithLabelValues("precision").Set(precision)
	evalGauges.WithLabelValues("best_precision").Set(bestPrecision)
}

// RecordPoll counts one checkpoint poll.
func RecordPoll(result string) {
	RegisterMetrics()
	checkpointPolls.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("serving metrics")

	select {
	case err := <-errc:
		return errors.Wrapf(err, "metrics listener %s", addr)
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}
