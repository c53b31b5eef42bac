package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTokenSource(t *testing.T) {
	tok, err := StaticTokenSource("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticTokenSource("").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenValid(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var nilTok *Token
	assert.False(t, nilTok.Valid(now))
	assert.True(t, (&Token{AccessToken: "a"}).Valid(now))
	assert.True(t, (&Token{AccessToken: "a", Expiry: now.Add(time.Minute)}).Valid(now))
	assert.False(t, (&Token{AccessToken: "a", Expiry: now.Add(20 * time.Second)}).Valid(now))
}

func TestCachingSource_RefreshesNearExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	src := newCachingSource(func(context.Context) (*Token, error) {
		calls++
		return &Token{AccessToken: "tok", Expiry: now.Add(time.Hour)}, nil
	})
	src.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := src.Token(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	now = now.Add(time.Hour - 10*time.Second)
	_, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestMetadataTokenSource(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Metadata-Flavor") != "Google" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "meta-token",
			"expires_in":   3599,
			"token_type":   "Bearer",
		})
	}))
	defer srv.Close()

	src := NewMetadataTokenSource(srv.URL, time.Second)
	for i := 0; i < 2; i++ {
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "meta-token", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestMetadataTokenSource_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewMetadataTokenSource(srv.URL, time.Second).Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func writeTestKey(t *testing.T, tokenURI string) (string, *rsa.PrivateKey) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(pk)})

	data, err := json.Marshal(ServiceAccountKey{
		Type:         "service_account",
		ProjectID:    "demo",
		PrivateKeyID: "key-1",
		PrivateKey:   string(pemKey),
		ClientEmail:  "vitals@demo.iam.gserviceaccount.com",
		TokenURI:     tokenURI,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path, pk
}

func TestServiceAccountTokenSource(t *testing.T) {
	var pub *rsa.PublicKey
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, jwtBearerGrant, r.PostForm.Get("grant_type"))

		parsed, err := jwt.Parse(r.PostForm.Get("assertion"), func(tok *jwt.Token) (interface{}, error) {
			assert.Equal(t, "key-1", tok.Header["kid"])
			return pub, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, "vitals@demo.iam.gserviceaccount.com", claims["iss"])
		assert.Equal(t, CloudPlatformScope, claims["scope"])
		assert.Equal(t, srvURL, claims["aud"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "sa-token",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()
	srvURL = srv.URL

	path, pk := writeTestKey(t, srv.URL)
	pub = &pk.PublicKey

	src, err := NewTokenSource(Config{Mode: ModeServiceAccount, CredentialsFile: path, Timeout: time.Second})
	require.NoError(t, err)

	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sa-token", tok)
}

func TestParseServiceAccountKey_Invalid(t *testing.T) {
	_, err := ParseServiceAccountKey([]byte(`{"type":"authorized_user"}`))
	assert.Error(t, err)

	_, err = ParseServiceAccountKey([]byte(`{"type":"service_account"}`))
	assert.Error(t, err)

	_, err = ParseServiceAccountKey([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewTokenSource_Modes(t *testing.T) {
	_, err := NewTokenSource(Config{Mode: ModeStatic})
	assert.Error(t, err)

	src, err := NewTokenSource(Config{Mode: ModeStatic, AccessToken: "x"})
	require.NoError(t, err)
	assert.Equal(t, StaticTokenSource("x"), src)

	_, err = NewTokenSource(Config{Mode: ModeServiceAccount})
	assert.Error(t, err)

	src, err = NewTokenSource(Config{Mode: ModeMetadata})
	require.NoError(t, err)
	assert.NotNil(t, src)

	_, err = NewTokenSource(Config{Mode: "kerberos"})
	assert.Error(t, err)
}
