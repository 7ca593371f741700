// Package pubsub publishes run notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/zap"
)

// SourceAttribute identifies this service on every message.
const SourceAttribute = "nepjol-importer"

var errNotConfigured = errors.New("pubsub publisher is not configured")

// EventTyper lets a payload name its event in the message attributes.
type EventTyper interface {
	EventType() string
}

// Publisher wraps a Pub/Sub topic publisher.
type Publisher struct {
	publisher *pubsub.Publisher
	client    *pubsub.Client
}

// New creates a Publisher for the provided topic publisher.
func New(publisher *pubsub.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

func fullTopicName(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

// Open creates a client with Application Default Credentials and checks that
// the topic exists and is active before any run tries to publish to it.
func Open(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	name := fullTopicName(projectID, topicID)
	topic, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	if err == nil && topic.State != pubsubpb.Topic_ACTIVE {
		err = fmt.Errorf("topic state is %s", topic.State)
	}
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("get pubsub topic %q: %w", topicID, err)
	}
	return &Publisher{publisher: client.Publisher(name), client: client}, nil
}

// Close flushes pending messages and closes the client opened by Open.
func (p *Publisher) Close() error {
	if p.publisher != nil {
		p.publisher.Stop()
	}
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// Publish marshals the payload to JSON and waits for the server ID. The topic
// argument is ignored because the wrapped publisher is bound to one topic.
func (p *Publisher) Publish(ctx context.Context, _ string, payload any) (string, error) {
	if p.publisher == nil {
		return "", errNotConfigured
	}
	msg, err := newMessage(payload)
	if err != nil {
		return "", err
	}
	id, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func newMessage(payload any) (*pubsub.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	attrs := map[string]string{"source": SourceAttribute}
	if typed, ok := payload.(EventTyper); ok {
		attrs["event_type"] = typed.EventType()
	}
	return &pubsub.Message{Data: data, Attributes: attrs}, nil
}
