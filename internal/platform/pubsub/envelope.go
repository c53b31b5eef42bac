// Package pubsub moves vitals readings between the simulator and the
// processor. It speaks the Pub/Sub push envelope on the HTTP side and carries
// raw payloads over MQTT or Redis Streams for local pipelines.
package pubsub

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Envelope errors. Their messages are the literal reasons returned to the
// push caller.
var (
	ErrNoMessage     = errors.New("no Pub/Sub message received")
	ErrInvalidFormat = errors.New("invalid Pub/Sub message format")
	ErrNoData        = errors.New("no data in Pub/Sub message")
	ErrInvalidData   = errors.New("invalid data in Pub/Sub message")
)

var envelopeErrors = []error{ErrNoMessage, ErrInvalidFormat, ErrNoData, ErrInvalidData}

// IsEnvelopeError reports whether err was caused by a malformed envelope.
func IsEnvelopeError(err error) bool {
	_, ok := EnvelopeReason(err)
	return ok
}

// EnvelopeReason returns the caller-facing reason for an envelope error.
func EnvelopeReason(err error) (string, bool) {
	for _, sentinel := range envelopeErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

// PushMessage is the message part of a push envelope.
type PushMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId,omitempty"`
	PublishTime string            `json:"publishTime,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// PushEnvelope is the body POSTed by a push subscription.
type PushEnvelope struct {
	Message      PushMessage `json:"message"`
	Subscription string      `json:"subscription,omitempty"`
}

// NewPushEnvelope wraps a raw payload the way a push subscription would.
func NewPushEnvelope(data []byte, messageID, subscription string, publishTime time.Time) PushEnvelope {
	env := PushEnvelope{
		Message: PushMessage{
			Data:      base64.StdEncoding.EncodeToString(data),
			MessageID: messageID,
		},
		Subscription: subscription,
	}
	if !publishTime.IsZero() {
		env.Message.PublishTime = publishTime.UTC().Format(time.RFC3339Nano)
	}
	return env
}

// EncodePush returns the JSON body of a push envelope carrying data.
func EncodePush(data []byte, messageID, subscription string) ([]byte, error) {
	return json.Marshal(NewPushEnvelope(data, messageID, subscription, time.Now()))
}

// DecodePush validates a push envelope and returns the decoded message data.
// Each shape failure maps to its own sentinel error.
func DecodePush(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrNoMessage
	}

	var envelope interface{}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if isFalsy(envelope) {
		return nil, ErrNoMessage
	}

	obj, ok := envelope.(map[string]interface{})
	if !ok {
		return nil, ErrInvalidFormat
	}
	rawMessage, ok := obj["message"]
	if !ok {
		return nil, ErrInvalidFormat
	}

	message, ok := rawMessage.(map[string]interface{})
	if !ok {
		return nil, ErrNoData
	}
	rawData, ok := message["data"]
	if !ok {
		return nil, ErrNoData
	}

	encoded, ok := rawData.(string)
	if !ok {
		return nil, fmt.Errorf("%w: data is not a string", ErrInvalidData)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: data is not valid UTF-8", ErrInvalidData)
	}
	return data, nil
}

// isFalsy mirrors the truthiness of a decoded JSON value: null, false, zero,
// and empty strings, arrays and objects carry no message.
func isFalsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}
