// Package events is the typed event/metrics surface (C13): structured
// logging over zerolog, a Prometheus metrics registry, and
// publish-with-NOTIFY for external listeners, generalized from the
// teacher's internal/dashboard LISTEN/NOTIFY pattern without the
// websocket broadcast fan-out (dashboards are out of scope).
package events

import (
	"context"
	"fmt"
	"time"
)

// Type names a discrete lifecycle event. Values are stable strings since
// they double as the NOTIFY channel/payload tag.
type Type string

const (
	CycleStarted       Type = "CYCLE_STARTED"
	CycleCompleted     Type = "CYCLE_COMPLETED"
	SignalProposed     Type = "SIGNAL_PROPOSED"
	SignalRejected     Type = "SIGNAL_REJECTED"
	RiskLimitViolation Type = "RISK_LIMIT_VIOLATION"
	OrderSubmitted     Type = "ORDER_SUBMITTED"
	OrderFilled        Type = "ORDER_FILLED"
	OrderFailed        Type = "ORDER_FAILED"
	PositionOpened     Type = "POSITION_OPENED"
	PositionClosed     Type = "POSITION_CLOSED"
	StopTriggered      Type = "STOP_TRIGGERED"
	TargetReached      Type = "TARGET_REACHED"
	PhantomDetected    Type = "PHANTOM_DETECTED"
	OrphanRecovered    Type = "ORPHAN_RECOVERED"
	CalendarDegraded   Type = "CALENDAR_DEGRADED"
	CircuitTripped     Type = "CIRCUIT_TRIPPED"
	KillSwitchLatched  Type = "KILL_SWITCH_LATCHED"
	DailyLossBreach    Type = "DAILY_LOSS_BREACH"
	SessionStarted     Type = "SESSION_STARTED"
	SessionEnded       Type = "SESSION_ENDED"
)

// Event is one occurrence of Type, with a free-form attribute bag for
// structured-log fields (symbol, reason, orderId, ...).
type Event struct {
	Type   Type
	Ts     time.Time
	Fields map[string]any
}

// Publisher delivers events to external listeners. Implementations
// must not block the emitting goroutine indefinitely.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Sink fans an Event out to structured logging, metrics, and an optional
// Publisher, mirroring the teacher's separation of "log it" from
// "broadcast it" — only the broadcast side is in scope here.
type Sink struct {
	log       Logger
	metrics   *Metrics
	publisher Publisher // nil is valid: logging/metrics still happen
}

// Logger is the minimal structured-logging surface events.Sink needs; the
// real implementation is a *zerolog.Logger (kept as an interface here so
// this package never imports zerolog's concrete type into its public API).
type Logger interface {
	EventLog(ev Event)
}

// NewSink builds a Sink. publisher may be nil (e.g. dryRun / no DSN).
func NewSink(log Logger, metrics *Metrics, publisher Publisher) *Sink {
	return &Sink{log: log, metrics: metrics, publisher: publisher}
}

// Emit logs, records metrics, and (if configured) publishes ev.
// Publish errors are logged, never returned — an event-bus outage must not
// halt the trading loop.
func (s *Sink) Emit(ctx context.Context, ev Event) {
	if ev.Ts.IsZero() {
		ev.Ts = time.Now()
	}
	if s.log != nil {
		s.log.EventLog(ev)
	}
	if s.metrics != nil {
		s.metrics.observe(ev)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ev); err != nil && s.log != nil {
			s.log.EventLog(Event{
				Type: "PUBLISH_FAILED",
				Ts:   time.Now(),
				Fields: map[string]any{
					"original_type": string(ev.Type),
					"error":         fmt.Sprint(err),
				},
			})
		}
	}
}
