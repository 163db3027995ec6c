package reconcile

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reporter surfaces a failed operation to the user after local state was restored.
type Reporter interface {
	Report(ctx context.Context, op string, err error)
}

type ReporterFunc func(ctx context.Context, op string, err error)

func (f ReporterFunc) Report(ctx context.Context, op string, err error) { f(ctx, op, err) }

// LogReporter writes failures to a slog logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(ctx context.Context, op string, err error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, "operation failed", "op", op, "error", err)
}

// Hooks carries the ambient collaborators shared by the reconcilers.
// Zero values are valid.
type Hooks struct {
	Reporter Reporter
	Metrics  *Metrics
	Logger   *slog.Logger
}

func (h Hooks) withDefaults() Hooks {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.Reporter == nil {
		h.Reporter = LogReporter{Logger: h.Logger}
	}
	return h
}

type Metrics struct {
	applied    *prometheus.CounterVec
	settled    *prometheus.CounterVec
	rolledBack *prometheus.CounterVec
	suppressed *prometheus.CounterVec
}

// NewMetrics registers the reconciler counters on reg. A nil reg creates
// unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		applied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "infobase_optimistic_applied_total",
			Help: "Optimistic vote mutations applied to the local store",
		}, []string{"kind"}),
		settled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "infobase_optimistic_settled_total",
			Help: "Optimistic vote mutations confirmed by the server",
		}, []string{"kind"}),
		rolledBack: f.NewCounterVec(prometheus.CounterOpts{
			Name: "infobase_optimistic_rollbacks_total",
			Help: "Optimistic vote mutations inverted after a failed request",
		}, []string{"kind"}),
		suppressed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "infobase_vote_suppressed_total",
			Help: "Vote gestures rejected because a vote on the same entity was in flight",
		}, []string{"kind"}),
	}
}

func (m *Metrics) inc(vec func(*Metrics) *prometheus.CounterVec, kind string) {
	if m == nil {
		return
	}
	vec(m).WithLabelValues(kind).Inc()
}

func appliedVec(m *Metrics) *prometheus.CounterVec    { return m.applied }
func settledVec(m *Metrics) *prometheus.CounterVec    { return m.settled }
func rolledBackVec(m *Metrics) *prometheus.CounterVec { return m.rolledBack }
func suppressedVec(m *Metrics) *prometheus.CounterVec { return m.suppressed }
