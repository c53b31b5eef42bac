package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vitals/vitals/internal/platform/pubsub"
)

type stubSubscriber struct {
	messages []pubsub.Message
	results  []error
}

func (s *stubSubscriber) Run(ctx context.Context, handle pubsub.Handler) error {
	for _, m := range s.messages {
		s.results = append(s.results, handle(ctx, m))
	}
	return nil
}

func (s *stubSubscriber) Close() error { return nil }

func TestConsumer_Handle(t *testing.T) {
	store := &mockStore{}
	c := NewConsumer(NewService(store, 0, zerolog.Nop()), nil, "vitals-local", zerolog.Nop())

	err := c.Handle(context.Background(), pubsub.Message{ID: "1", Data: []byte(`{"type":"temperature","value":36.8,"unit":"Cel"}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 1 {
		t.Errorf("expected one Observation, got %d", len(store.created))
	}
}

func TestConsumer_HandlePoison(t *testing.T) {
	store := &mockStore{}
	c := NewConsumer(NewService(store, 0, zerolog.Nop()), nil, "vitals-local", zerolog.Nop())

	err := c.Handle(context.Background(), pubsub.Message{ID: "2", Data: []byte(`not json`)})
	if !errors.Is(err, pubsub.ErrPoison) {
		t.Fatalf("expected poison error, got %v", err)
	}
	if len(store.created) != 0 {
		t.Error("expected nothing stored")
	}
}

func TestConsumer_HandleStoreFailure(t *testing.T) {
	store := &mockStore{err: errors.New("unavailable")}
	c := NewConsumer(NewService(store, 0, zerolog.Nop()), nil, "vitals-local", zerolog.Nop())

	err := c.Handle(context.Background(), pubsub.Message{ID: "3", Data: []byte(`{"type":"spo2"}`)})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, pubsub.ErrPoison) {
		t.Error("store failures must not be treated as poison")
	}
	if err.Error() != "Error: unavailable" {
		t.Errorf("unexpected error %q", err.Error())
	}
}

func TestConsumer_Run(t *testing.T) {
	sub := &stubSubscriber{messages: []pubsub.Message{
		{ID: "a", Data: []byte(`{"type":"heart_rate","value":80}`)},
		{ID: "b", Data: []byte(`[]`)},
	}}
	store := &mockStore{}
	c := NewConsumer(NewService(store, 0, zerolog.Nop()), sub, "vitals-local", zerolog.Nop())

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sub.results) != 2 {
		t.Fatalf("expected 2 handled messages, got %d", len(sub.results))
	}
	if sub.results[0] != nil {
		t.Errorf("expected first message to succeed, got %v", sub.results[0])
	}
	if !errors.Is(sub.results[1], pubsub.ErrPoison) {
		t.Errorf("expected second message to be poison, got %v", sub.results[1])
	}
}
