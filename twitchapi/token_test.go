package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// idTransport rewrites id.twitch.tv requests to the test server.
type idTransport struct {
	host string
}

func (t *idTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.host, "http://")
	return http.DefaultTransport.RoundTrip(req)
}

func testClient(serverURL string) *Client {
	return &Client{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		HTTPClient:   &http.Client{Transport: &idTransport{host: serverURL}},
	}
}

func TestRefresh(t *testing.T) {
	var gotGrant, gotRefresh string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotGrant = r.Form.Get("grant_type")
		gotRefresh = r.Form.Get("refresh_token")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
			"scope":         []string{"chat:read"},
		})
	}))
	defer server.Close()

	res, err := testClient(server.URL).Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if gotGrant != "refresh_token" || gotRefresh != "old-refresh" {
		t.Errorf("request form = (%q, %q), want (refresh_token, old-refresh)", gotGrant, gotRefresh)
	}
	if res.AccessToken != "new-access" || res.RefreshToken != "new-refresh" {
		t.Errorf("Refresh() = %+v, want new-access/new-refresh", res)
	}
}

func TestRefreshMissingParams(t *testing.T) {
	c := &Client{}
	if _, err := c.Refresh(context.Background(), "rt"); err == nil {
		t.Error("Refresh() with missing client creds should return error")
	}
	c = &Client{ClientID: "id", ClientSecret: "secret"}
	if _, err := c.Refresh(context.Background(), ""); err == nil {
		t.Error("Refresh() with empty refresh token should return error")
	}
}

func TestRefreshServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Refresh(context.Background(), "expired"); err == nil {
		t.Error("Refresh() with server error should return error")
	}
}

func TestRefreshEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "", "expires_in": 3600})
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Refresh(context.Background(), "rt"); err == nil {
		t.Error("Refresh() with empty access_token should return error")
	}
}

func TestValidate(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"client_id":  "test-client",
			"login":      "wallbot",
			"user_id":    "1234",
			"scopes":     []string{"chat:read"},
			"expires_in": 5000,
		})
	}))
	defer server.Close()

	v, err := testClient(server.URL).Validate(context.Background(), "oauth:sometoken")
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	// the oauth: prefix used by IRC must be stripped for the identity API
	if gotAuth != "OAuth sometoken" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "OAuth sometoken")
	}
	if v.Login != "wallbot" || v.ExpiresIn != 5000 {
		t.Errorf("Validate() = %+v, want login=wallbot expires_in=5000", v)
	}
}

func TestValidateUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Validate(context.Background(), "revoked"); err == nil {
		t.Error("Validate() of a revoked token should return error")
	}
}

func TestComputeExpiry(t *testing.T) {
	now := time.Now()
	if exp := ComputeExpiry(3600); exp.Sub(now) < 59*time.Minute || exp.Sub(now) > 61*time.Minute {
		t.Errorf("ComputeExpiry(3600) = %v, want ~1h from now", exp)
	}
	// unknown lifetime defaults to an hour
	if exp := ComputeExpiry(0); exp.Sub(now) < 59*time.Minute || exp.Sub(now) > 61*time.Minute {
		t.Errorf("ComputeExpiry(0) = %v, want ~1h from now", exp)
	}
}
