// Package metrics implements brain.Metrics on Prometheus client_golang,
// and serves /metrics for scraping.
//
// Grounded on the pack's runtime/metrics/prometheus/metrics.go
// (AltairaLabs-PromptKit): package-level NewHistogramVec/NewCounterVec
// registered via MustRegister in an init-style constructor, namespaced
// metric names, DefBuckets for generic durations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tank"

// Prometheus implements brain.Metrics (pkg/brain/metrics.go) and the
// metrics surface this codebase's SPEC_FULL.md adds beyond spec.md's
// distilled scope.
type Prometheus struct {
	llmTurnDuration      prometheus.Histogram
	toolExecDuration     *prometheus.HistogramVec
	toolLoopExceeded     prometheus.Counter
	activeSessions       prometheus.Gauge
	perceptionLatency    prometheus.Histogram
	llmFirstDeltaLatency prometheus.Histogram
	ttsFirstChunkLatency prometheus.Histogram
}

// stageBuckets covers the sub-second-to-low-seconds range the three
// per-stage latencies (perception, LLM-to-first-delta, TTS-to-first-chunk)
// are expected to fall in; finer than prometheus.DefBuckets' top end.
var stageBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5}

func New(registry *prometheus.Registry) *Prometheus {
	factory := promauto.With(registry)
	return &Prometheus{
		llmTurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_turn_duration_seconds",
			Help:      "Duration of one brain turn, including tool iterations.",
			Buckets:   prometheus.DefBuckets,
		}),
		toolExecDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_execution_duration_seconds",
			Help:      "Duration of a single tool execution, by tool name.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"tool"}),
		toolLoopExceeded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_loop_exceeded_total",
			Help:      "Turns aborted for exceeding the tool-call iteration cap.",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of currently live sessions.",
		}),
		// SPEC_FULL.md "Supplemented features" per-stage histograms, mirroring
		// the teacher's ManagedStream stage timestamps.
		perceptionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "perception_stage_duration_seconds",
			Help:      "Duration of one ASR Feed call in the perception worker.",
			Buckets:   stageBuckets,
		}),
		llmFirstDeltaLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_first_delta_duration_seconds",
			Help:      "Time from LLM stream start to the first delta.",
			Buckets:   stageBuckets,
		}),
		ttsFirstChunkLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tts_first_chunk_duration_seconds",
			Help:      "Time from TTS stream start to the first audio chunk.",
			Buckets:   stageBuckets,
		}),
	}
}

func (p *Prometheus) ObserveLLMTurn(d time.Duration) { p.llmTurnDuration.Observe(d.Seconds()) }
func (p *Prometheus) ObserveToolExecution(name string, d time.Duration) {
	p.toolExecDuration.WithLabelValues(name).Observe(d.Seconds())
}
func (p *Prometheus) IncToolLoopExceeded() { p.toolLoopExceeded.Inc() }

func (p *Prometheus) ObservePerceptionLatency(d time.Duration) {
	p.perceptionLatency.Observe(d.Seconds())
}
func (p *Prometheus) ObserveLLMFirstDelta(d time.Duration) {
	p.llmFirstDeltaLatency.Observe(d.Seconds())
}
func (p *Prometheus) ObserveTTSFirstChunk(d time.Duration) {
	p.ttsFirstChunkLatency.Observe(d.Seconds())
}

// SetActiveSessions reports the registry's current live-session count
// (pkg/session.Registry.Len), polled by cmd/server on an interval.
func (p *Prometheus) SetActiveSessions(n int) { p.activeSessions.Set(float64(n)) }

// Handler serves the metrics in the Prometheus text exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
