package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"synckit/internal/auth"
	"synckit/internal/coordinator"
	"synckit/internal/obs/log"
)

type allowAll struct{}

func (allowAll) CanRead(string, string) bool  { return true }
func (allowAll) CanWrite(string, string) bool { return true }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := coordinator.Config{
		BatchWindow:         10 * time.Millisecond,
		OutboundQueueDepth:  16,
		MaxDocumentIDLength: 256,
		AwarenessTTL:        time.Minute,
		MaxMessagesPerMin:   10000,
		LocalNodeID:         "node-test",
	}
	var n int64
	clock := func() int64 { n++; return n }
	logger := log.NewConsole(zerolog.Disabled)
	c := coordinator.New(cfg, allowAll{}, clock, nil, nil, logger)
	issuer, _ := auth.NewIssuer([]byte(strings.Repeat("x", 32)), time.Hour)
	perms := auth.NewPermissions()
	reg := prometheus.NewRegistry()
	return New(c, issuer, perms, logger, Capability{ProtocolVersion: 1}, reg, 30*time.Second, time.Minute, 2_000_000)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCapabilityEndpoint(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/capability")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	var cap Capability
	if err := json.NewDecoder(resp.Body).Decode(&cap); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if cap.ProtocolVersion != 1 {
		t.Fatalf("expected protocol version 1, got %d", cap.ProtocolVersion)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	body, _ := json.Marshal(loginRequest{ClientID: "client-a", Password: "wrong", PasswordHash: ""})
	resp, err := http.Post(ts.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginIssuesTokenOnGoodCredentials(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	hash, err := auth.HashPassword("secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, _ := json.Marshal(loginRequest{ClientID: "client-a", Password: "secret", PasswordHash: hash})
	resp, err := http.Post(ts.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if tr.Token == "" {
		t.Fatal("expected a non-empty token")
	}
}

func TestMetricsEndpointServed(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
