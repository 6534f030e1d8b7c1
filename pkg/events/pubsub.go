// Package events publishes batch lifecycle notifications to Google Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/noah-isme/merch-batch-api/pkg/config"
)

// TypeBatchPosted is published once a posted batch has been dispatched.
const TypeBatchPosted = "batch.posted"

// BatchEvent is the message body.
type BatchEvent struct {
	Type          string    `json:"type"`
	BatchNumber   string    `json:"batch_number"`
	RequestType   string    `json:"request_type"`
	TotalRecord   int       `json:"total_record"`
	ArtifactKey   string    `json:"artifact_key,omitempty"`
	PostedBy      string    `json:"posted_by,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Publisher delivers batch events.
type Publisher interface {
	Publish(ctx context.Context, event BatchEvent) (string, error)
}

// NopPublisher drops events. It is used when Pub/Sub is disabled.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, BatchEvent) (string, error) { return "", nil }

// PubSubPublisher publishes to a single topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubPublisher connects to the project and makes sure the topic exists.
func NewPubSubPublisher(ctx context.Context, cfg config.PubSubConfig, logger *zap.Logger) (*PubSubPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("PUBSUB_TOPIC is required")
	}
	opts := make([]option.ClientOption, 0, 1)
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.Topic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %q: %w", cfg.Topic, err)
	}
	if !exists {
		if topic, err = client.CreateTopic(ctx, cfg.Topic); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("create topic %q: %w", cfg.Topic, err)
		}
	}
	logger.Info("pubsub publisher ready", zap.String("project_id", cfg.ProjectID), zap.String("topic", cfg.Topic))
	return &PubSubPublisher{client: client, topic: topic, logger: logger}, nil
}

// Publish sends event and waits for the server assigned message id.
func (p *PubSubPublisher) Publish(ctx context.Context, event BatchEvent) (string, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"type":         event.Type,
			"request_type": event.RequestType,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s for %s: %w", event.Type, event.BatchNumber, err)
	}
	p.logger.Debug("event published", zap.String("type", event.Type), zap.String("batch_number", event.BatchNumber), zap.String("message_id", id))
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
