// Package auth obtains OAuth2 access tokens for outbound calls to the
// Cloud Healthcare API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CloudPlatformScope is the scope requested for Healthcare API access.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// expirySkew refreshes tokens this long before they expire.
const expirySkew = 30 * time.Second

// Token modes.
const (
	ModeMetadata       = "metadata"
	ModeServiceAccount = "service_account"
	ModeStatic         = "static"
)

var ErrNoToken = errors.New("no access token available")

// Token is an OAuth2 bearer token with its expiry.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Valid reports whether the token can still be used at now.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.Expiry.IsZero() || now.Before(t.Expiry.Add(-expirySkew))
}

// TokenSource returns a bearer token for an outbound request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// tokenResponse is the standard OAuth2 token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (r *tokenResponse) token(now time.Time) (*Token, error) {
	if r.AccessToken == "" {
		return nil, ErrNoToken
	}
	t := &Token{AccessToken: r.AccessToken}
	if r.ExpiresIn > 0 {
		t.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return t, nil
}

// fetchFunc retrieves a fresh token.
type fetchFunc func(ctx context.Context) (*Token, error)

// cachingSource serves a cached token until it is about to expire.
type cachingSource struct {
	mu    sync.Mutex
	tok   *Token
	fetch fetchFunc
	now   func() time.Time
}

func newCachingSource(fetch fetchFunc) *cachingSource {
	return &cachingSource{fetch: fetch, now: time.Now}
}

func (s *cachingSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok.Valid(s.now()) {
		return s.tok.AccessToken, nil
	}
	tok, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.tok = tok
	return tok.AccessToken, nil
}

// StaticTokenSource always returns the same token.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Config selects and configures a token source.
type Config struct {
	Mode            string
	AccessToken     string
	CredentialsFile string
	MetadataURL     string
	Timeout         time.Duration
}

// NewTokenSource builds the token source for cfg.Mode.
func NewTokenSource(cfg Config) (TokenSource, error) {
	switch cfg.Mode {
	case ModeStatic:
		if cfg.AccessToken == "" {
			return nil, fmt.Errorf("ACCESS_TOKEN is required for %s auth", ModeStatic)
		}
		return StaticTokenSource(cfg.AccessToken), nil
	case ModeServiceAccount:
		if cfg.CredentialsFile == "" {
			return nil, fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS is required for %s auth", ModeServiceAccount)
		}
		return NewServiceAccountTokenSourceFromFile(cfg.CredentialsFile, cfg.Timeout)
	case ModeMetadata, "":
		return NewMetadataTokenSource(cfg.MetadataURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
