// Package healthcare is a minimal client for the FHIR store REST surface of
// the Cloud Healthcare API.
package healthcare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/vitals/vitals/internal/platform/auth"
	"github.com/vitals/vitals/internal/platform/fhir"
	"github.com/vitals/vitals/pkg/fhirmodels"
)

// DefaultBaseURL is the public Healthcare API v1 endpoint.
const DefaultBaseURL = "https://healthcare.googleapis.com/v1"

// StoreError is returned when the FHIR store rejects a request.
type StoreError struct {
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("FHIR store returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if oo := parseOutcome(body); oo != nil {
		body = oo.Diagnostics()
	}
	return fmt.Sprintf("FHIR store returned %d: %s", e.StatusCode, body)
}

// Retryable reports whether the failure is worth another attempt.
func (e *StoreError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config holds client settings. StorePath is the full FHIR store resource
// name, projects/{p}/locations/{l}/datasets/{d}/fhirStores/{s}.
type Config struct {
	BaseURL    string
	StorePath  string
	Timeout    time.Duration
	MaxRetries int
}

// Client creates resources in a single FHIR store.
type Client struct {
	http   *resty.Client
	tokens auth.TokenSource
	path   string
	logger zerolog.Logger
}

func NewClient(cfg Config, tokens auth.TokenSource, logger zerolog.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", fhirmodels.ContentTypeFHIRJSON)
	if cfg.MaxRetries > 0 {
		rc.SetRetryCount(cfg.MaxRetries).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				code := r.StatusCode()
				return code == http.StatusTooManyRequests || code >= 500
			})
	}

	return &Client{
		http:   rc,
		tokens: tokens,
		path:   strings.Trim(cfg.StorePath, "/"),
		logger: logger,
	}
}

// ResourceURL returns the path, relative to the base URL, of a resource type
// collection in the store.
func (c *Client) ResourceURL(resourceType string) string {
	return fmt.Sprintf("/%s/fhir/%s", c.path, resourceType)
}

// Create POSTs a resource to the store and returns what the store assigned.
func (c *Client) Create(ctx context.Context, resourceType string, resource interface{}) (*fhir.CreatedResource, error) {
	body, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", resourceType, err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", fhirmodels.ContentTypeFHIRJSON).
		SetBody(body).
		Post(c.ResourceURL(resourceType))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", resourceType, err)
	}
	if resp.IsError() {
		return nil, &StoreError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var created fhir.Resource
	if err := json.Unmarshal(resp.Body(), &created); err != nil {
		return nil, fmt.Errorf("decoding created %s: %w", resourceType, err)
	}

	out := &fhir.CreatedResource{ResourceType: created.ResourceType, ID: created.ID}
	if out.ResourceType == "" {
		out.ResourceType = resourceType
	}
	if created.Meta != nil {
		out.VersionID = created.Meta.VersionID
		out.LastUpdated = created.Meta.LastUpdated
	}
	c.logger.Debug().
		Str("resource_type", out.ResourceType).
		Str("id", out.ID).
		Int("attempts", resp.Request.Attempt).
		Msg("resource created")
	return out, nil
}

func parseOutcome(body string) *fhir.OperationOutcome {
	var oo fhir.OperationOutcome
	if err := json.Unmarshal([]byte(body), &oo); err != nil || oo.ResourceType != "OperationOutcome" || len(oo.Issue) == 0 {
		return nil
	}
	return &oo
}
