// Package metrics exposes Prometheus collectors for the toolkit:
// toggle outcomes, rollbacks, dropped duplicate toggles, realtime
// channel activity and notification volume.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the Prometheus collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "atelier").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for toggle duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "atelier",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Set holds the toolkit's collectors. A nil *Set is valid and records
// nothing, so metrics stay optional for library consumers.
type Set struct {
	togglesTotal       *prometheus.CounterVec
	toggleDuration     *prometheus.HistogramVec
	rollbacksTotal     prometheus.Counter
	inflightDropped    prometheus.Counter
	channelConnects    *prometheus.CounterVec
	channelEvents      *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
}

var (
	defaultSet     *Set
	defaultSetOnce sync.Once
)

// Default returns the process-wide Set registered against the default
// registry. Created on first call.
func Default() *Set {
	defaultSetOnce.Do(func() {
		defaultSet = NewSet()
	})
	return defaultSet
}

// NewSet creates a Set. Pass WithRegistry to keep test collectors out
// of the default registry.
func NewSet(opts ...Option) *Set {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Set{
		togglesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "toggles_total",
			Help:        "Optimistic toggles by action and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"action", "outcome"}),

		toggleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "toggle_duration_seconds",
			Help:        "Remote mutation duration for optimistic toggles",
			Buckets:     config.Buckets,
			ConstLabels: config.ConstLabels,
		}, []string{"action"}),

		rollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "rollbacks_total",
			Help:        "Optimistic writes rolled back after a remote failure",
			ConstLabels: config.ConstLabels,
		}),

		inflightDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "inflight_dropped_total",
			Help:        "Duplicate toggles dropped by the in-flight guard",
			ConstLabels: config.ConstLabels,
		}),

		channelConnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "channel_connects_total",
			Help:        "Realtime channel connection attempts by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		channelEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "channel_events_total",
			Help:        "Realtime channel events by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "notifications_total",
			Help:        "User notifications shown by level",
			ConstLabels: config.ConstLabels,
		}, []string{"level"}),
	}
}

// ToggleOutcome records one finished toggle.
func (s *Set) ToggleOutcome(action, outcome string) {
	if s == nil {
		return
	}
	s.togglesTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveToggleDuration records the remote mutation latency.
func (s *Set) ObserveToggleDuration(action string, d time.Duration) {
	if s == nil {
		return
	}
	s.toggleDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RollbackInc records one rolled-back optimistic write.
func (s *Set) RollbackInc() {
	if s == nil {
		return
	}
	s.rollbacksTotal.Inc()
}

// InflightDroppedInc records one duplicate toggle dropped.
func (s *Set) InflightDroppedInc() {
	if s == nil {
		return
	}
	s.inflightDropped.Inc()
}

// ChannelConnect records a connection attempt outcome ("ok"/"error").
func (s *Set) ChannelConnect(outcome string) {
	if s == nil {
		return
	}
	s.channelConnects.WithLabelValues(outcome).Inc()
}

// ChannelEvent records one received realtime event.
func (s *Set) ChannelEvent(kind string) {
	if s == nil {
		return
	}
	s.channelEvents.WithLabelValues(kind).Inc()
}

// NotificationInc records one notification shown.
func (s *Set) NotificationInc(level string) {
	if s == nil {
		return
	}
	s.notificationsTotal.WithLabelValues(level).Inc()
}
