package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the engine exposes, grouped by
// concern the way the pack's metrics packages do (counters for discrete
// occurrences, gauges for current state, histograms for durations).
type Metrics struct {
	SignalsProposed   *prometheus.CounterVec
	SignalsRejected   *prometheus.CounterVec
	OrdersSubmitted   *prometheus.CounterVec
	OrdersFailed      *prometheus.CounterVec
	PositionsOpened   prometheus.Counter
	PositionsClosed   prometheus.Counter
	OpenPositionCount prometheus.Gauge
	CurrentEquity     prometheus.Gauge
	CycleDuration     prometheus.Histogram
	CircuitTrips      prometheus.Counter
	PhantomsDetected  prometheus.Counter
	OrphansRecovered  prometheus.Counter
}

// NewMetrics registers all collectors against the default registry.
func NewMetrics() *Metrics { return NewMetricsWithRegistry(prometheus.DefaultRegisterer) }

// NewMetricsWithRegistry registers against a caller-supplied registry,
// useful for isolated test registries.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SignalsProposed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_proposed_total",
			Help: "Strategy signals proposed, by strategy and action.",
		}, []string{"strategy", "action"}),
		SignalsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_rejected_total",
			Help: "Signals rejected by the confidence gate or the risk gate, by reason.",
		}, []string{"reason"}),
		OrdersSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_submitted_total",
			Help: "Orders submitted to the broker, by intent.",
		}, []string{"intent"}),
		OrdersFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_failed_total",
			Help: "Order submissions that failed, by intent.",
		}, []string{"intent"}),
		PositionsOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "trader_positions_opened_total",
			Help: "Positions created on confirmed entry fill.",
		}),
		PositionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "trader_positions_closed_total",
			Help: "Positions closed (stop, target, or session-end).",
		}),
		OpenPositionCount: f.NewGauge(prometheus.GaugeOpts{
			Name: "trader_open_positions",
			Help: "Current number of open positions.",
		}),
		CurrentEquity: f.NewGauge(prometheus.GaugeOpts{
			Name: "trader_current_equity",
			Help: "Current account equity.",
		}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_cycle_duration_seconds",
			Help:    "Wall-clock duration of one per-symbol engine cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		CircuitTrips: f.NewCounter(prometheus.CounterOpts{
			Name: "trader_circuit_trips_total",
			Help: "Times the circuit breaker tripped.",
		}),
		PhantomsDetected: f.NewCounter(prometheus.CounterOpts{
			Name: "trader_phantom_positions_total",
			Help: "Internal positions deleted as phantoms during reconciliation.",
		}),
		OrphansRecovered: f.NewCounter(prometheus.CounterOpts{
			Name: "trader_orphan_positions_total",
			Help: "Broker positions reconstructed as orphans during reconciliation.",
		}),
	}
}

func (m *Metrics) observe(ev Event) {
	switch ev.Type {
	case SignalProposed:
		m.SignalsProposed.WithLabelValues(str(ev.Fields["strategy"]), str(ev.Fields["action"])).Inc()
	case SignalRejected, RiskLimitViolation, DailyLossBreach:
		m.SignalsRejected.WithLabelValues(str(ev.Fields["reason"])).Inc()
	case OrderSubmitted:
		m.OrdersSubmitted.WithLabelValues(str(ev.Fields["intent"])).Inc()
	case OrderFailed:
		m.OrdersFailed.WithLabelValues(str(ev.Fields["intent"])).Inc()
	case PositionOpened:
		m.PositionsOpened.Inc()
	case PositionClosed:
		m.PositionsClosed.Inc()
	case CircuitTripped:
		m.CircuitTrips.Inc()
	case PhantomDetected:
		m.PhantomsDetected.Inc()
	case OrphanRecovered:
		m.OrphansRecovered.Inc()
	}
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
