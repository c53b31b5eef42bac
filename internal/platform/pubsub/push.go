package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// PushPublisher delivers readings straight to a push endpoint, wrapping each
// in the envelope a push subscription would send.
type PushPublisher struct {
	client       *resty.Client
	endpoint     string
	subscription string
}

func NewPushPublisher(endpoint, subscription string, timeout time.Duration) *PushPublisher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &PushPublisher{client: client, endpoint: endpoint, subscription: subscription}
}

// Publish POSTs the envelope and treats any non-2xx response as a failure.
func (p *PushPublisher) Publish(ctx context.Context, data []byte) (string, error) {
	id := uuid.New().String()
	envelope := NewPushEnvelope(data, id, p.subscription, time.Now())

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(envelope).
		Post(p.endpoint)
	if err != nil {
		return "", fmt.Errorf("pushing message: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("push endpoint returned %d: %s", resp.StatusCode(), resp.String())
	}
	return id, nil
}

func (p *PushPublisher) Close() error {
	return nil
}
