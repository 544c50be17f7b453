// Package pubsub publishes job notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Publisher implements crawler.Publisher on top of a Pub/Sub topic.
type Publisher struct {
	client    *pubsub.Client
	topic     *pubsub.Topic
	ownClient bool
}

// New creates a Pub/Sub client for projectID and returns a Publisher bound to
// topicID. The topic must already exist.
func New(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	p, err := NewWithClient(ctx, client, topicID)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	p.ownClient = true
	return p, nil
}

// NewWithClient binds a Publisher to topicID using an existing client. The
// caller keeps ownership of the client.
func NewWithClient(ctx context.Context, client *pubsub.Client, topicID string) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %q does not exist", topicID)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish marshals the event to JSON and waits for the server to accept it.
func (p *Publisher) Publish(ctx context.Context, event crawler.JobValidated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job_id": event.JobID,
			"term":   event.Term,
		},
	}
	if event.RunID != "" {
		msg.Attributes["run_id"] = event.RunID
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish job %s: %w", event.JobID, err)
	}
	return nil
}

// Close flushes pending messages and closes the client when this Publisher
// created it.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if !p.ownClient {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}
