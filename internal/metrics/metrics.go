// Package metrics exposes Prometheus collectors for session and decode
// activity. Collectors register themselves on the default registry so
// any process that imports the package and serves promhttp picks them
// up.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var totalGenerated atomic.Int64

var (
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crucible_sessions_total",
		Help: "Total number of inference sessions created",
	})

	PrefillTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crucible_prefill_tokens_total",
		Help: "Total number of prompt tokens processed during prefill",
	})

	GeneratedTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crucible_generated_tokens_total",
		Help: "Total number of tokens generated",
	})

	DecodeCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crucible_decode_calls_total",
		Help: "Total number of backend decode calls",
	})

	DecodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crucible_decode_failures_total",
		Help: "Total number of failed backend decode calls",
	})

	CompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crucible_completions_total",
		Help: "Completed generations by stop reason",
	}, []string{"reason"})

	PromptLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crucible_prompt_length_tokens",
		Help:    "Distribution of fitted prompt lengths",
		Buckets: []float64{16, 64, 256, 1024, 2048, 4096, 8192, 16384, 32768},
	})

	PrefillDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crucible_prefill_duration_seconds",
		Help:    "Time spent processing the prompt before decoding",
		Buckets: prometheus.DefBuckets,
	})

	TimeToFirstToken = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crucible_time_to_first_token_seconds",
		Help:    "Latency from prefill start to the first sampled token",
		Buckets: prometheus.DefBuckets,
	})

	GenerationRate = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "crucible_generation_tokens_per_second",
		Help: "Decode throughput per completed generation",
	})
)

// RecordSessionStart counts a newly created session.
func RecordSessionStart() {
	SessionsTotal.Inc()
}

// RecordPrefill records the size and duration of one prefill pass.
func RecordPrefill(tokens int, duration time.Duration) {
	PrefillTokensTotal.Add(float64(tokens))
	PromptLength.Observe(float64(tokens))
	PrefillDuration.Observe(duration.Seconds())
}

// RecordDecode counts one backend decode call and its outcome.
func RecordDecode(err error) {
	DecodeCallsTotal.Inc()
	if err != nil {
		DecodeFailuresTotal.Inc()
	}
}

// RecordCompletion records a finished generation.
func RecordCompletion(reason string, tokens int, timeToFirst time.Duration, tokensPerSecond float64) {
	CompletionsTotal.WithLabelValues(reason).Inc()
	GeneratedTokensTotal.Add(float64(tokens))
	totalGenerated.Add(int64(tokens))
	if timeToFirst > 0 {
		TimeToFirstToken.Observe(timeToFirst.Seconds())
	}
	if tokensPerSecond > 0 {
		GenerationRate.Observe(tokensPerSecond)
	}
}

// TotalGenerated reports the process-lifetime count of generated tokens.
func TotalGenerated() int64 {
	return totalGenerated.Load()
}
