package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections      = promauto.NewGauge(prometheus.GaugeOpts{Name: "wslink_active_connections", Help: "Live WebSocket sessions (0 or 1)"})
	ConnectTotal           = promauto.NewCounter(prometheus.CounterOpts{Name: "wslink_connect_total", Help: "Successful connects"})
	ConnectErrorsTotal     = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wslink_connect_errors_total", Help: "Failed connects by kind"}, []string{"kind"})
	MessagesRelayedTotal   = promauto.NewCounter(prometheus.CounterOpts{Name: "wslink_messages_relayed_total", Help: "Text frames published to the sink"})
	FramesIgnoredTotal     = promauto.NewCounter(prometheus.CounterOpts{Name: "wslink_frames_ignored_total", Help: "Non-text frames dropped by the relay"})
	RelayTerminationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wslink_relay_terminations_total", Help: "Relay exits by reason"}, []string{"reason"})
	SinkErrorsTotal        = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wslink_sink_errors_total", Help: "Publish failures by sink"}, []string{"sink"})
	RateLimitedTotal       = promauto.NewCounter(prometheus.CounterOpts{Name: "wslink_rate_limited_total", Help: "Connect commands rejected by the rate limiter"})
	SessionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{Name: "wslink_session_duration_seconds", Help: "Session lifetime seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 20)})
)
