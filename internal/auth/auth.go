// Package auth issues and verifies the bearer tokens that gate
// §6's /ws upgrade and document-level read/write permission checks.
// Grounded on test-workspace/main.go's HMAC-validated JWT pattern
// (golang-jwt/jwt/v5) and bcrypt password hashing from the broader
// example pack.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned for any token that fails signature,
// expiry, or claim-shape validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims identifies a client and the documents it's allowed to touch.
// An empty AllowedDocs means "no document scoping configured" —
// Permissions treats that as allow-all for that client, matching a
// single-tenant deployment; multi-tenant deployments should always set
// AllowedDocs.
type Claims struct {
	ClientID     string   `json:"client_id"`
	AllowedDocs  []string `json:"allowed_docs,omitempty"`
	ReadOnly     bool     `json:"read_only,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HMAC-signed tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer. secret must be at least 32 bytes, mirroring
// the teacher's minimum JWT_SECRET length check.
func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: secret must be at least 32 bytes")
	}
	return &Issuer{secret: secret, ttl: ttl}, nil
}

// Issue mints a signed token for clientID scoped to allowedDocs (nil or
// empty means unscoped).
func (i *Issuer) Issue(clientID string, allowedDocs []string, readOnly bool) (string, error) {
	now := time.Now()
	claims := Claims{
		ClientID:    clientID,
		AllowedDocs: allowedDocs,
		ReadOnly:    readOnly,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates tokenString, returning its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether plaintext matches the stored bcrypt hash.
func CheckPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// docAllowed reports whether docID is within claims' scope.
func (c *Claims) docAllowed(docID string) bool {
	if len(c.AllowedDocs) == 0 {
		return true
	}
	for _, d := range c.AllowedDocs {
		if d == docID {
			return true
		}
	}
	return false
}

// Permissions adapts verified Claims into coordinator.Permissions by
// checking each call's clientID against the token the connection
// presented at upgrade time.
type Permissions struct {
	mu       sync.RWMutex
	byClient map[string]*Claims
}

// NewPermissions builds an empty registry of verified claims keyed by
// client id; Register adds one claims set per authenticated client. The
// coordinator always calls CanRead/CanWrite with the clientID that
// authenticated the connection, and an unregistered client is denied.
func NewPermissions() *Permissions {
	return &Permissions{byClient: make(map[string]*Claims)}
}

// Register associates clientID with its verified claims for the
// lifetime of its connection.
func (p *Permissions) Register(clientID string, claims *Claims) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byClient[clientID] = claims
}

// Forget drops a client's claims on disconnect.
func (p *Permissions) Forget(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byClient, clientID)
}

// CanRead implements coordinator.Permissions.
func (p *Permissions) CanRead(clientID, docID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byClient[clientID]
	if !ok {
		return false
	}
	return c.docAllowed(docID)
}

// CanWrite implements coordinator.Permissions.
func (p *Permissions) CanWrite(clientID, docID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byClient[clientID]
	if !ok || c.ReadOnly {
		return false
	}
	return c.docAllowed(docID)
}
