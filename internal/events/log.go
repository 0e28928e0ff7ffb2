package events

import "github.com/rs/zerolog"

// ZerologSink adapts a zerolog.Logger to events.Logger.
type ZerologSink struct {
	log zerolog.Logger
}

// NewZerologSink wraps log for use as a Sink's structured-logging backend.
func NewZerologSink(log zerolog.Logger) ZerologSink { return ZerologSink{log: log} }

// EventLog writes ev as a structured log line, one field per entry in
// ev.Fields, matching the teacher's field-per-context-value logging idiom.
func (z ZerologSink) EventLog(ev Event) {
	level := zerolog.InfoLevel
	switch ev.Type {
	case OrderFailed, CircuitTripped, KillSwitchLatched, CalendarDegraded, DailyLossBreach, RiskLimitViolation:
		level = zerolog.WarnLevel
	}
	entry := z.log.WithLevel(level).Str("event", string(ev.Type)).Time("ts", ev.Ts)
	for k, v := range ev.Fields {
		entry = entry.Interface(k, v)
	}
	entry.Msg(string(ev.Type))
}
