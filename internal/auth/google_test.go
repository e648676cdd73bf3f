package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newGoogleTestServers(t *testing.T, userInfo googleUserInfo) (*httptest.Server, *httptest.Server) {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token request method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token form: %v", err)
		}
		if r.PostFormValue("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", r.PostFormValue("grant_type"))
		}
		json.NewEncoder(w).Encode(googleTokenResponse{
			AccessToken: "test-access-token",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("Authorization header = %q", got)
		}
		json.NewEncoder(w).Encode(userInfo)
	}))
	t.Cleanup(userInfoServer.Close)

	return tokenServer, userInfoServer
}

func TestGoogleLoginURL_ContainsRequiredParams(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{
		ClientID:    "client-123",
		RedirectURL: "https://example.com/auth/google/callback",
	})

	loginURL := p.LoginURL("state-abc")
	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login URL: %v", err)
	}

	q := parsed.Query()
	if q.Get("client_id") != "client-123" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "https://example.com/auth/google/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	if q.Get("state") != "state-abc" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if !strings.Contains(q.Get("scope"), "email") {
		t.Errorf("scope = %q, want email included", q.Get("scope"))
	}
}

func TestGoogleExchange_Success(t *testing.T) {
	ctx := context.Background()

	tokenServer, userInfoServer := newGoogleTestServers(t, googleUserInfo{
		Sub:           "google-sub-1",
		Email:         "user@example.com",
		EmailVerified: true,
		Name:          "Test User",
	})

	p := NewGoogleProvider(GoogleConfig{
		ClientID:     "client-123",
		ClientSecret: "secret",
		RedirectURL:  "https://example.com/callback",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	claim, err := p.Exchange(ctx, "auth-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if claim.Provider != "google" {
		t.Errorf("provider = %q", claim.Provider)
	}
	if claim.SubjectID != "google-sub-1" {
		t.Errorf("subject ID = %q", claim.SubjectID)
	}
	if claim.Name != "Test User" {
		t.Errorf("name = %q", claim.Name)
	}
	if len(claim.Emails) != 1 || claim.Emails[0] != "user@example.com" {
		t.Errorf("emails = %v", claim.Emails)
	}
}

func TestGoogleExchange_UnverifiedEmail_IsExcluded(t *testing.T) {
	ctx := context.Background()

	tokenServer, userInfoServer := newGoogleTestServers(t, googleUserInfo{
		Sub:           "google-sub-2",
		Email:         "unverified@example.com",
		EmailVerified: false,
		Name:          "Unverified",
	})

	p := NewGoogleProvider(GoogleConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	claim, err := p.Exchange(ctx, "auth-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	// 未検証のメールアドレスはクレームに含めない
	if len(claim.Emails) != 0 {
		t.Errorf("emails = %v, want empty", claim.Emails)
	}
}

func TestGoogleExchange_TokenEndpointError(t *testing.T) {
	ctx := context.Background()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	t.Cleanup(tokenServer.Close)

	p := NewGoogleProvider(GoogleConfig{TokenURL: tokenServer.URL})

	_, err := p.Exchange(ctx, "expired-code")
	if err == nil {
		t.Fatal("expected error for token endpoint failure")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("error = %v, want status 400 mentioned", err)
	}
}

func TestGoogleExchange_EmptyAccessToken(t *testing.T) {
	ctx := context.Background()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(googleTokenResponse{})
	}))
	t.Cleanup(tokenServer.Close)

	p := NewGoogleProvider(GoogleConfig{TokenURL: tokenServer.URL})

	_, err := p.Exchange(ctx, "auth-code")
	if err == nil {
		t.Fatal("expected error for empty access token")
	}
}

func TestGoogleExchange_UserInfoEndpointError(t *testing.T) {
	ctx := context.Background()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(googleTokenResponse{AccessToken: "tok"})
	}))
	t.Cleanup(tokenServer.Close)

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(userInfoServer.Close)

	p := NewGoogleProvider(GoogleConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	_, err := p.Exchange(ctx, "auth-code")
	if err == nil {
		t.Fatal("expected error for user info failure")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("error = %v, want status 401 mentioned", err)
	}
}

func TestGoogleExchange_MissingSub(t *testing.T) {
	ctx := context.Background()

	tokenServer, userInfoServer := newGoogleTestServers(t, googleUserInfo{
		Email:         "nosub@example.com",
		EmailVerified: true,
	})

	p := NewGoogleProvider(GoogleConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	_, err := p.Exchange(ctx, "auth-code")
	if err == nil {
		t.Fatal("expected error for missing sub")
	}
}
