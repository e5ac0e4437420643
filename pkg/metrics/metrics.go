// Package metrics exposes Prometheus instrumentation for the assistant.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "suradas"

// Metrics holds the assistant's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	commands  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	turnStage *prometheus.HistogramVec
	clients   *prometheus.GaugeVec
	frames    prometheus.Counter
}

// New creates and registers all collectors, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands received, by kind and input source.",
		}, []string{"kind", "source"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed operations, by operation and error class.",
		}, []string{"operation", "class"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of external calls, by operation.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"operation"}),
		turnStage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "voice_turn_seconds",
			Help:      "Voice turn latency measured from end of speech, by stage.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		}, []string{"stage"}),
		clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients, by hub.",
		}, []string{"hub"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "camera_frames_total",
			Help:      "Camera frames decoded.",
		}),
	}

	m.registry.MustRegister(
		m.commands, m.errors, m.latency, m.turnStage, m.clients, m.frames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Command counts a received command.
func (m *Metrics) Command(kind, source string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind, source).Inc()
}

// Error counts a failed operation.
func (m *Metrics) Error(operation, class string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(operation, class).Inc()
}

// Observe records how long an operation took.
func (m *Metrics) Observe(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(operation).Observe(d.Seconds())
}

// Since records the time elapsed since start. Use with defer.
func (m *Metrics) Since(operation string, start time.Time) {
	m.Observe(operation, time.Since(start))
}

// Frame counts a decoded camera frame.
func (m *Metrics) Frame() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

// ClientConnected adjusts the websocket client gauge for hub by delta.
func (m *Metrics) ClientConnected(hub string, delta int) {
	if m == nil {
		return
	}
	m.clients.WithLabelValues(hub).Add(float64(delta))
}

// Turn tracks latency at each stage of one voice interaction.
// All durations are measured from the moment speech ends.
type Turn struct {
	mu        sync.Mutex
	m         *Metrics
	speechEnd time.Time
	stages    map[string]time.Duration
}

// Turn stages.
const (
	StageTranscript = "transcript"
	StageAnswer     = "answer"
	StageAudio      = "audio"
)

// NewTurn starts tracking a voice turn.
func (m *Metrics) NewTurn() *Turn {
	return &Turn{m: m, stages: make(map[string]time.Duration)}
}

// MarkSpeechEnd records when the user stopped speaking.
// This is the reference point for all latency measurements.
func (t *Turn) MarkSpeechEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speechEnd = time.Now()
}

// Mark records that stage completed. Stages marked before MarkSpeechEnd or
// more than once are ignored.
func (t *Turn) Mark(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.speechEnd.IsZero() {
		return
	}
	if _, done := t.stages[stage]; done {
		return
	}
	d := time.Since(t.speechEnd)
	t.stages[stage] = d
	if t.m != nil {
		t.m.turnStage.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// Stage returns the latency recorded for stage.
func (t *Turn) Stage(stage string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.stages[stage]
	return d, ok
}
