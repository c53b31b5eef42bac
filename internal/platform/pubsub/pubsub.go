package pubsub

import (
	"context"
	"errors"
	"time"
)

// ErrPoison marks a message that can never be processed. Subscribers
// acknowledge it instead of leaving it for redelivery.
var ErrPoison = errors.New("poison message")

// Publisher hands serialized readings to a transport. Publish blocks until
// the transport acknowledges the message and returns its delivery id.
type Publisher interface {
	Publish(ctx context.Context, data []byte) (string, error)
	Close() error
}

// Message is a payload received from a pull transport.
type Message struct {
	ID          string
	Data        []byte
	PublishTime time.Time
}

// Handler processes one received message. Returning nil or an error
// wrapping ErrPoison acknowledges it.
type Handler func(ctx context.Context, msg Message) error

// Subscriber delivers messages to a Handler until ctx is cancelled.
type Subscriber interface {
	Run(ctx context.Context, handle Handler) error
	Close() error
}

func shouldAck(err error) bool {
	return err == nil || errors.Is(err, ErrPoison)
}
