package processor

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitals/vitals/internal/domain/observation"
	"github.com/vitals/vitals/internal/platform/fhir"
	"github.com/vitals/vitals/internal/platform/pubsub"
	"github.com/vitals/vitals/pkg/fhirmodels"
)

// DefaultStoreTimeout bounds a single store call.
const DefaultStoreTimeout = 30 * time.Second

// Store persists FHIR resources. Both the Cloud Healthcare client and the
// Postgres observation store satisfy it.
type Store interface {
	Create(ctx context.Context, resourceType string, resource interface{}) (*fhir.CreatedResource, error)
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeBadRequest
	OutcomeInternalError
)

// Result is the response to one push request.
type Result struct {
	Outcome    Outcome
	Body       string
	ResourceID string
}

func (r Result) StatusCode() int {
	switch r.Outcome {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type Service struct {
	store   Store
	timeout time.Duration
	logger  zerolog.Logger
}

func NewService(store Store, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Service{store: store, timeout: timeout, logger: logger}
}

// Process handles one push envelope: decode, map, store. Nothing is written
// unless the whole message maps to an Observation.
func (s *Service) Process(ctx context.Context, body []byte) Result {
	data, err := pubsub.DecodePush(body)
	if err != nil {
		return s.badRequest(err)
	}

	rec, err := observation.ParseRecord(data)
	if err != nil {
		return s.badRequest(pubsub.ErrInvalidData)
	}

	obs := observation.ToObservation(rec)

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.store.Create(storeCtx, fhirmodels.ResourceObservation, obs)
	if err != nil {
		s.logger.Error().Err(err).Str("subject", obs.PatientReference()).Msg("failed to create Observation")
		return Result{Outcome: OutcomeInternalError, Body: "Error: " + err.Error()}
	}

	s.logger.Info().Str("id", created.ID).Str("subject", obs.PatientReference()).Msg("Created Observation")
	return Result{Outcome: OutcomeSuccess, Body: "OK", ResourceID: created.ID}
}

func (s *Service) badRequest(err error) Result {
	reason, ok := pubsub.EnvelopeReason(err)
	if !ok {
		reason = err.Error()
	}
	s.logger.Warn().Err(err).Msg("rejected push request")
	return Result{Outcome: OutcomeBadRequest, Body: "Bad Request: " + reason}
}
