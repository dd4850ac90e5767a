package observability

import (
	"context"
	"time"

	"site-research-be/internal/pkg/logger"
	"site-research-be/pkg/agent"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NodeLogging logs start, end and failure of every node with its elapsed time.
func NodeLogging(log logger.ILogger) agent.Middleware {
	return func(node string, next agent.NodeFunc) agent.NodeFunc {
		return func(ctx context.Context, state agent.SessionState) (agent.Update, error) {
			start := time.Now()
			log.Info("Node", "Node started", map[string]interface{}{
				"node":      node,
				"thread_id": state.ThreadID,
				"iteration": state.Iterations,
			})

			update, err := next(ctx, state)
			elapsed := time.Since(start).Milliseconds()
			if err != nil {
				log.Error("Node", "Node failed", map[string]interface{}{
					"node":       node,
					"thread_id":  state.ThreadID,
					"elapsed_ms": elapsed,
					"error":      err,
				})
				return update, err
			}

			log.Info("Node", "Node completed", map[string]interface{}{
				"node":       node,
				"thread_id":  state.ThreadID,
				"elapsed_ms": elapsed,
			})
			return update, nil
		}
	}
}

// NodeTracing opens one span per node execution.
func NodeTracing(tracer trace.Tracer) agent.Middleware {
	return func(node string, next agent.NodeFunc) agent.NodeFunc {
		return func(ctx context.Context, state agent.SessionState) (agent.Update, error) {
			ctx, span := tracer.Start(ctx, "agent."+node, trace.WithAttributes(
				attribute.String("agent.node", node),
				attribute.String("agent.thread_id", state.ThreadID),
				attribute.Int("agent.iteration", state.Iterations),
			))
			defer span.End()

			update, err := next(ctx, state)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return update, err
			}
			span.SetAttributes(attribute.Int("agent.evidence_added", len(update.AddEvidence)))
			return update, nil
		}
	}
}

// NodeMetrics observes node durations labelled by outcome.
func NodeMetrics(m *Metrics) agent.Middleware {
	return func(node string, next agent.NodeFunc) agent.NodeFunc {
		return func(ctx context.Context, state agent.SessionState) (agent.Update, error) {
			start := time.Now()
			update, err := next(ctx, state)
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.NodeDuration.WithLabelValues(node, status).Observe(time.Since(start).Seconds())
			return update, err
		}
	}
}
