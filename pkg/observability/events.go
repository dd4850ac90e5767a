package observability

import (
	"context"
	"time"

	"site-research-be/internal/pkg/logger"
	"site-research-be/pkg/agent"
	"site-research-be/pkg/events"
)

// Publisher delivers events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// EventSink logs every session event, counts it and, when a publisher is
// set, forwards it. Publish failures are logged and dropped.
type EventSink struct {
	logger    logger.ILogger
	publisher Publisher
	metrics   *Metrics
	timeout   time.Duration
}

var _ agent.EventSink = &EventSink{}

func NewEventSink(log logger.ILogger, publisher Publisher, metrics *Metrics) *EventSink {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &EventSink{
		logger:    log,
		publisher: publisher,
		metrics:   metrics,
		timeout:   2 * time.Second,
	}
}

func (s *EventSink) Emit(ctx context.Context, eventType string, details map[string]interface{}) {
	if eventType == agent.EventError {
		s.logger.Error("Event", eventType, details)
	} else {
		s.logger.Info("Event", eventType, details)
	}

	if s.metrics != nil {
		s.metrics.Events.WithLabelValues(eventType).Inc()
	}
	if s.publisher == nil {
		return
	}

	payload := make(map[string]interface{}, len(details))
	for k, v := range details {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		payload[k] = v
	}

	// detached from the run's cancellation
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	evt := events.BaseEvent{Type: eventType, Data: payload, OccurredAt: time.Now().UTC()}
	if err := s.publisher.Publish(pubCtx, evt); err != nil {
		s.logger.Warn("Event", "Failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}
