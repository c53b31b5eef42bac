package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL    = time.Hour
)

// ServiceAccountKey is the subset of a service account JSON key file used
// for the JWT bearer grant.
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// ParseServiceAccountKey decodes and checks a JSON key file.
func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}
	if key.Type != "service_account" {
		return nil, fmt.Errorf("credentials type %q is not service_account", key.Type)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("service account key is missing client_email or private_key")
	}
	if key.TokenURI == "" {
		key.TokenURI = defaultTokenURI
	}
	return &key, nil
}

// NewServiceAccountTokenSourceFromFile loads a key file and returns a
// cached token source for it.
func NewServiceAccountTokenSourceFromFile(path string, timeout time.Duration) (TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	key, err := ParseServiceAccountKey(data)
	if err != nil {
		return nil, err
	}
	return NewServiceAccountTokenSource(key, timeout)
}

// NewServiceAccountTokenSource exchanges RS256-signed assertions for access
// tokens at the key's token URI.
func NewServiceAccountTokenSource(key *ServiceAccountKey, timeout time.Duration) (TokenSource, error) {
	signer, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parsing service account private key: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().SetTimeout(timeout)

	src := newCachingSource(nil)
	src.fetch = func(ctx context.Context) (*Token, error) {
		now := src.now()
		assertion, err := signAssertion(key, signer, now)
		if err != nil {
			return nil, err
		}

		var tr tokenResponse
		resp, err := client.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"grant_type": jwtBearerGrant,
				"assertion":  assertion,
			}).
			SetResult(&tr).
			Post(key.TokenURI)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("token exchange failed status %d: %s", resp.StatusCode(), resp.String())
		}
		return tr.token(now)
	}
	return src, nil
}

func signAssertion(key *ServiceAccountKey, signer *rsa.PrivateKey, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   key.ClientEmail,
		"scope": CloudPlatformScope,
		"aud":   key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if key.PrivateKeyID != "" {
		token.Header["kid"] = key.PrivateKeyID
	}
	signed, err := token.SignedString(signer)
	if err != nil {
		return "", fmt.Errorf("signing assertion: %w", err)
	}
	return signed, nil
}
