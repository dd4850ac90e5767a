package service

import (
	"context"
	"encoding/json"
	"errors"

	"site-research-be/internal/dto"
	"site-research-be/internal/pkg/logger"
	"site-research-be/pkg/retrieval"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Ingester is the write side of the document index.
type Ingester interface {
	Ingest(ctx context.Context, url string) (int, error)
	Clear(ctx context.Context) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	ingester   Ingester
	logger     logger.ILogger
	done       func(job dto.IngestJobMessage, err error)
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	ingester Ingester,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		ingester:   ingester,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var job dto.IngestJobMessage
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		cs.logger.Error("IngestConsumer", "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // malformed payloads never become valid
		return
	}

	err := cs.run(ctx, job)
	if cs.done != nil {
		cs.done(job, err)
	}

	// gochannel redelivers a nacked message immediately, so failed jobs are
	// acked and logged; the operator resubmits.
	switch {
	case err == nil:
	case errors.Is(err, retrieval.ErrEmptyDocument):
		cs.logger.Warn("IngestConsumer", "Page had no content", map[string]interface{}{"job_id": job.JobID, "url": job.URL})
	default:
		cs.logger.Error("IngestConsumer", "Ingest job failed", map[string]interface{}{
			"job_id": job.JobID,
			"url":    job.URL,
			"error":  err.Error(),
		})
	}
	msg.Ack()
}

func (cs *consumerService) run(ctx context.Context, job dto.IngestJobMessage) error {
	if job.Clear {
		if err := cs.ingester.Clear(ctx); err != nil {
			return err
		}
		cs.logger.Info("IngestConsumer", "Index cleared", map[string]interface{}{"job_id": job.JobID})
		return nil
	}

	n, err := cs.ingester.Ingest(ctx, job.URL)
	if err != nil {
		return err
	}
	cs.logger.Info("IngestConsumer", "Page ingested", map[string]interface{}{
		"job_id": job.JobID,
		"url":    job.URL,
		"chunks": n,
	})
	return nil
}
