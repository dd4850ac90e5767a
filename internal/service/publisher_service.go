package service

import (
	"context"
	"encoding/json"
	"time"

	"site-research-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IPublisherService interface {
	PublishIngest(ctx context.Context, url string) (*dto.IngestAcceptedResponse, error)
	PublishClear(ctx context.Context) (*dto.IngestAcceptedResponse, error)
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (p *publisherService) PublishIngest(ctx context.Context, url string) (*dto.IngestAcceptedResponse, error) {
	job := dto.IngestJobMessage{JobID: watermill.NewUUID(), URL: url, RequestedAt: time.Now().UTC()}
	if err := p.publish(ctx, job); err != nil {
		return nil, err
	}
	return &dto.IngestAcceptedResponse{JobID: job.JobID, URL: url}, nil
}

func (p *publisherService) PublishClear(ctx context.Context) (*dto.IngestAcceptedResponse, error) {
	job := dto.IngestJobMessage{JobID: watermill.NewUUID(), Clear: true, RequestedAt: time.Now().UTC()}
	if err := p.publish(ctx, job); err != nil {
		return nil, err
	}
	return &dto.IngestAcceptedResponse{JobID: job.JobID}, nil
}

func (p *publisherService) publish(ctx context.Context, job dto.IngestJobMessage) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	msg := message.NewMessage(job.JobID, payload)
	msg.SetContext(ctx)
	return p.publisher.Publish(p.topicName, msg)
}
