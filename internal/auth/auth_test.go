package auth

import (
	"strings"
	"testing"
	"time"
)

func testSecret() []byte {
	return []byte(strings.Repeat("x", 32))
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	iss, err := NewIssuer(testSecret(), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tok, err := iss.Issue("client-a", []string{"doc1"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claims, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
	if claims.ClientID != "client-a" {
		t.Fatalf("expected client-a, got %s", claims.ClientID)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	iss, _ := NewIssuer(testSecret(), -time.Hour)
	tok, err := iss.Issue("client-a", nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := iss.Verify(tok); err == nil {
		t.Fatal("expected verification of an expired token to fail")
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	iss1, _ := NewIssuer(testSecret(), time.Hour)
	iss2, _ := NewIssuer([]byte(strings.Repeat("y", 32)), time.Hour)
	tok, _ := iss1.Issue("client-a", nil, false)
	if _, err := iss2.Verify(tok); err == nil {
		t.Fatal("expected verification with a different secret to fail")
	}
}

func TestNewIssuerRejectsShortSecret(t *testing.T) {
	if _, err := NewIssuer([]byte("too-short"), time.Hour); err == nil {
		t.Fatal("expected an error for a secret under 32 bytes")
	}
}

func TestPermissionsScopesToAllowedDocs(t *testing.T) {
	p := NewPermissions()
	p.Register("client-a", &Claims{ClientID: "client-a", AllowedDocs: []string{"doc1"}})

	if !p.CanRead("client-a", "doc1") {
		t.Fatal("expected read access to doc1")
	}
	if p.CanRead("client-a", "doc2") {
		t.Fatal("expected no read access to doc2")
	}
	if p.CanWrite("unknown-client", "doc1") {
		t.Fatal("expected no write access for an unregistered client")
	}
}

func TestPermissionsReadOnlyBlocksWrite(t *testing.T) {
	p := NewPermissions()
	p.Register("client-a", &Claims{ClientID: "client-a", ReadOnly: true})

	if !p.CanRead("client-a", "doc1") {
		t.Fatal("expected read-only client to retain read access")
	}
	if p.CanWrite("client-a", "doc1") {
		t.Fatal("expected read-only client to be denied write access")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !CheckPassword(hash, "correct-horse-battery-staple") {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong-password") {
		t.Fatal("expected mismatched password to fail")
	}
}
