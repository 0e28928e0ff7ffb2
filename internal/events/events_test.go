package events

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct{ events []Event }

func (r *recordingLogger) EventLog(ev Event) { r.events = append(r.events, ev) }

type recordingPublisher struct {
	published []Event
	failNext  bool
}

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	if r.failNext {
		return errors.New("boom")
	}
	r.published = append(r.published, ev)
	return nil
}

func TestSink_EmitLogsAndPublishes(t *testing.T) {
	logger := &recordingLogger{}
	publisher := &recordingPublisher{}
	sink := NewSink(logger, NewMetricsWithRegistry(prometheus.NewRegistry()), publisher)

	sink.Emit(context.Background(), Event{Type: PositionOpened, Fields: map[string]any{"symbol": "SOFI"}})

	require.Len(t, logger.events, 1)
	assert.Equal(t, PositionOpened, logger.events[0].Type)
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "SOFI", publisher.published[0].Fields["symbol"])
}

func TestSink_PublishFailureDoesNotPanicOrBlockCaller(t *testing.T) {
	logger := &recordingLogger{}
	publisher := &recordingPublisher{failNext: true}
	sink := NewSink(logger, NewMetricsWithRegistry(prometheus.NewRegistry()), publisher)

	assert.NotPanics(t, func() {
		sink.Emit(context.Background(), Event{Type: OrderFailed})
	})
	// Two log lines: the original event and the publish-failure notice.
	assert.Len(t, logger.events, 2)
}

func TestMetrics_ObservesCountersByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	sink := NewSink(&recordingLogger{}, m, nil)
	ctx := context.Background()

	sink.Emit(ctx, Event{Type: SignalProposed, Fields: map[string]any{"strategy": "MeanReversion", "action": "BUY"}})
	sink.Emit(ctx, Event{Type: SignalRejected, Fields: map[string]any{"reason": "ReasonKillSwitch"}})
	sink.Emit(ctx, Event{Type: RiskLimitViolation, Fields: map[string]any{"reason": "SHORT_EXPOSURE_EXCEEDED"}})
	sink.Emit(ctx, Event{Type: DailyLossBreach, Fields: map[string]any{"reason": "DAILY_LOSS_BREACH"}})
	sink.Emit(ctx, Event{Type: PositionOpened})
	sink.Emit(ctx, Event{Type: PhantomDetected})

	assert.Equal(t, float64(1), counterValue(t, m.SignalsProposed.WithLabelValues("MeanReversion", "BUY")))
	assert.Equal(t, float64(1), counterValue(t, m.SignalsRejected.WithLabelValues("ReasonKillSwitch")))
	assert.Equal(t, float64(1), counterValue(t, m.SignalsRejected.WithLabelValues("SHORT_EXPOSURE_EXCEEDED")))
	assert.Equal(t, float64(1), counterValue(t, m.SignalsRejected.WithLabelValues("DAILY_LOSS_BREACH")))
	assert.Equal(t, float64(1), gaugeOrCounterCollect(t, m.PositionsOpened))
	assert.Equal(t, float64(1), gaugeOrCounterCollect(t, m.PhantomsDetected))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeOrCounterCollect(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
