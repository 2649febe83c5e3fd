package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// NotificationMessage is the envelope handed to the external mailer.
type NotificationMessage struct {
	EventType     string          `json:"event_type"`
	BusinessId    string          `json:"business_id"`
	ReferenceId   int             `json:"reference_id"`
	ReferenceType string          `json:"reference_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationId string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	// Cloud Run/Cloud Functions often set this.
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

// NewPubSubClient creates a client, retrying until ctx is done.
// Uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func NewPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	var attempt int
	for {
		attempt++
		c, err := pubsub.NewClient(ctx, projectID, opts...)
		if err == nil {
			log.Printf("pubsub client ready (project_id=%s attempt=%d)", projectID, attempt)
			return c, nil
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", projectID, attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func CreateTopicIfNotExists(ctx context.Context, c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	if c == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}

// PubSubPublisher publishes NotificationMessages to a single topic.
type PubSubPublisher struct {
	Topic *pubsub.Topic
}

// NewPubSubPublisher resolves PUBSUB_NOTIFICATION_TOPIC on the client.
func NewPubSubPublisher(ctx context.Context, c *pubsub.Client) (*PubSubPublisher, error) {
	topicName := os.Getenv("PUBSUB_NOTIFICATION_TOPIC")
	if topicName == "" {
		return nil, errors.New("PUBSUB_NOTIFICATION_TOPIC is required")
	}
	t, err := CreateTopicIfNotExists(ctx, c, topicName)
	if err != nil {
		return nil, err
	}
	return &PubSubPublisher{Topic: t}, nil
}

// Publish blocks until the server acknowledges the message and returns its id.
func (p *PubSubPublisher) Publish(ctx context.Context, msg NotificationMessage) (string, error) {
	if p == nil || p.Topic == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := p.Topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":  msg.EventType,
			"business_id": msg.BusinessId,
		},
	})
	return result.Get(ctx)
}

func (p *PubSubPublisher) Stop() {
	if p != nil && p.Topic != nil {
		p.Topic.Stop()
	}
}
