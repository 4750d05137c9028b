package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aquamarinepk/aqm"
)

// makeToken builds an unsigned JWT with the given expiry. The provider
// never verifies signatures, it only reads the exp claim.
func makeToken(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]interface{}{"exp": exp.Unix()})
	if err != nil {
		t.Fatalf("encoding claims: %v", err)
	}
	body := base64.RawURLEncoding.EncodeToString(claims)
	return fmt.Sprintf("%s.%s.", header, body)
}

func TestTokenWithoutInitial(t *testing.T) {
	p := NewProvider("http://localhost/refresh", "", aqm.NewNoopLogger())

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Token() error = %v, want ErrNoToken", err)
	}
}

func TestTokenStillFresh(t *testing.T) {
	fresh := makeToken(t, time.Now().Add(time.Hour))
	p := NewProvider("http://localhost/refresh", fresh, aqm.NewNoopLogger())

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != fresh {
		t.Error("Token() refreshed a token that was still fresh")
	}
}

func TestTokenRefreshesWhenExpiring(t *testing.T) {
	renewed := makeToken(t, time.Now().Add(time.Hour))

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Method != http.MethodPost {
			t.Errorf("refresh method = %s, want POST", r.Method)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": renewed})
	}))
	defer server.Close()

	expiring := makeToken(t, time.Now().Add(2*time.Minute))
	p := NewProvider(server.URL, expiring, aqm.NewNoopLogger())

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != renewed {
		t.Error("Token() did not return the renewed token")
	}
	if hits != 1 {
		t.Errorf("refresh endpoint hit %d times, want 1", hits)
	}

	// The renewed token is cached; no second refresh.
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("Token() second call error = %v", err)
	}
	if hits != 1 {
		t.Errorf("refresh endpoint hit %d times after cached call, want 1", hits)
	}
}

func TestTokenRefreshesUndecodable(t *testing.T) {
	renewed := makeToken(t, time.Now().Add(time.Hour))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": renewed})
	}))
	defer server.Close()

	p := NewProvider(server.URL, "not-a-jwt", aqm.NewNoopLogger())

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != renewed {
		t.Error("Token() did not return the renewed token (camelCase alias)")
	}
}

func TestTokenRefreshRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	expiring := makeToken(t, time.Now().Add(time.Minute))
	p := NewProvider(server.URL, expiring, aqm.NewNoopLogger())

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrReauthRequired) {
		t.Errorf("Token() error = %v, want ErrReauthRequired", err)
	}
}

func TestTokenRefreshEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	expiring := makeToken(t, time.Now().Add(time.Minute))
	p := NewProvider(server.URL, expiring, aqm.NewNoopLogger())

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrReauthRequired) {
		t.Errorf("Token() error = %v, want ErrReauthRequired", err)
	}
}

func TestSetToken(t *testing.T) {
	p := NewProvider("http://localhost/refresh", "", aqm.NewNoopLogger())
	fresh := makeToken(t, time.Now().Add(time.Hour))
	p.SetToken(fresh)

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != fresh {
		t.Error("Token() did not return the seeded token")
	}
}
