// Package token mints short-lived, room-scoped access credentials for the
// media platform. The issuer is stateless; every credential is an HS256 JWT
// carrying a LiveKit video grant for exactly one identity in one room.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"warm-transfer-service/internal/registry"
)

// AccessCredential is a signed, time-bounded credential plus the media
// endpoint the client should connect to.
type AccessCredential struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// Issuer mints media-platform access credentials.
type Issuer struct {
	apiKey    string
	apiSecret string
	serverURL string
	ttl       time.Duration
}

// NewIssuer creates a credential issuer for the given media-platform
// key pair and endpoint.
func NewIssuer(apiKey, apiSecret, serverURL string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		serverURL: serverURL,
		ttl:       ttl,
	}
}

// URL returns the media-platform endpoint clients should connect to.
func (i *Issuer) URL() string {
	return i.serverURL
}

// Configured reports whether the issuer has a usable key pair.
func (i *Issuer) Configured() bool {
	return i.apiKey != "" && i.apiSecret != ""
}

// Mint returns a credential admitting identity into room. Minting fails only
// on configuration or signing problems, which are fatal to the enclosing
// operation.
func (i *Issuer) Mint(identity, room string) (AccessCredential, error) {
	if !i.Configured() {
		return AccessCredential{}, registry.NewError(registry.KindCredentialMint, "media platform credentials not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"jti": uuid.NewString(),
		"iss": i.apiKey,
		"sub": identity,
		"iat": now.Unix(),
		"exp": now.Add(i.ttl).Unix(),
		"video": map[string]any{
			"room":           room,
			"roomJoin":       true,
			"canPublish":     true,
			"canSubscribe":   true,
			"canPublishData": true,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.apiSecret))
	if err != nil {
		return AccessCredential{}, registry.NewError(registry.KindCredentialMint, "signing credential: %v", err)
	}

	return AccessCredential{
		Token:    signed,
		URL:      i.serverURL,
		Identity: identity,
		Room:     room,
	}, nil
}
