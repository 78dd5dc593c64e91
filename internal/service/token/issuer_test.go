package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"warm-transfer-service/internal/registry"
)

func TestMint_ClaimShape(t *testing.T) {
	issuer := NewIssuer("api-key", "api-secret", "ws://livekit:7880", time.Hour)

	cred, err := issuer.Mint("Jane Doe", "call_abc")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if cred.URL != "ws://livekit:7880" {
		t.Errorf("expected endpoint URL, got %s", cred.URL)
	}
	if cred.Identity != "Jane Doe" || cred.Room != "call_abc" {
		t.Errorf("unexpected credential scope %s/%s", cred.Identity, cred.Room)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(cred.Token, claims, func(tok *jwt.Token) (any, error) {
		return []byte("api-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parsing minted token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("minted token not valid")
	}

	if claims["iss"] != "api-key" {
		t.Errorf("expected iss api-key, got %v", claims["iss"])
	}
	if claims["sub"] != "Jane Doe" {
		t.Errorf("expected sub Jane Doe, got %v", claims["sub"])
	}
	if claims["jti"] == "" || claims["jti"] == nil {
		t.Error("expected non-empty jti")
	}

	video, ok := claims["video"].(map[string]any)
	if !ok {
		t.Fatalf("expected video grant object, got %T", claims["video"])
	}
	if video["room"] != "call_abc" {
		t.Errorf("expected grant scoped to call_abc, got %v", video["room"])
	}
	for _, grant := range []string{"roomJoin", "canPublish", "canSubscribe", "canPublishData"} {
		if video[grant] != true {
			t.Errorf("expected %s grant true, got %v", grant, video[grant])
		}
	}

	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)
	if got := time.Duration(exp-iat) * time.Second; got != time.Hour {
		t.Errorf("expected 1h validity, got %v", got)
	}
}

func TestMint_DistinctTokens(t *testing.T) {
	issuer := NewIssuer("api-key", "api-secret", "ws://livekit:7880", time.Hour)

	a, err := issuer.Mint("caller", "room")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	b, err := issuer.Mint("caller", "room")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if a.Token == b.Token {
		t.Error("expected distinct jti per mint, got identical tokens")
	}
}

func TestMint_Unconfigured(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		secret string
	}{
		{"no key", "", "secret"},
		{"no secret", "key", ""},
		{"neither", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := NewIssuer(tt.key, tt.secret, "ws://livekit:7880", time.Hour)
			if issuer.Configured() {
				t.Error("expected issuer to report unconfigured")
			}
			_, err := issuer.Mint("id", "room")
			if registry.KindOf(err) != registry.KindCredentialMint {
				t.Errorf("expected credential_mint error, got %v", err)
			}
		})
	}
}

func TestNewIssuer_DefaultTTL(t *testing.T) {
	issuer := NewIssuer("k", "s", "url", 0)
	if issuer.ttl != 24*time.Hour {
		t.Errorf("expected default 24h TTL, got %v", issuer.ttl)
	}
}
