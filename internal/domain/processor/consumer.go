package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vitals/vitals/internal/platform/pubsub"
)

// Consumer feeds messages from a pull transport through the same path as
// push requests.
type Consumer struct {
	svc          *Service
	sub          pubsub.Subscriber
	subscription string
	logger       zerolog.Logger
}

func NewConsumer(svc *Service, sub pubsub.Subscriber, subscription string, logger zerolog.Logger) *Consumer {
	return &Consumer{svc: svc, sub: sub, subscription: subscription, logger: logger}
}

// Run blocks until ctx is cancelled or the subscriber fails.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Str("subscription", c.subscription).Msg("consumer started")
	err := c.sub.Run(ctx, c.Handle)
	c.logger.Info().Msg("consumer stopped")
	return err
}

// Handle wraps the payload in a push envelope and processes it. Malformed
// messages are reported as poison so the transport drops them.
func (c *Consumer) Handle(ctx context.Context, msg pubsub.Message) error {
	body, err := pubsub.EncodePush(msg.Data, msg.ID, c.subscription)
	if err != nil {
		return fmt.Errorf("%w: %v", pubsub.ErrPoison, err)
	}

	res := c.svc.Process(ctx, body)
	switch res.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeBadRequest:
		return fmt.Errorf("%w: %s", pubsub.ErrPoison, res.Body)
	}
	return errors.New(res.Body)
}
