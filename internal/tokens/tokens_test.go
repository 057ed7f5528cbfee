package tokens

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/stridedash/stridedash/internal/config"
	"github.com/stridedash/stridedash/internal/sessions"
)

func testConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.Session.Secret = secret
	return cfg
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	cfg := testConfig("test-secret-32-bytes-should-be-long-enough")

	tokenStr, err := GenerateAccessToken(cfg, 1234567, "Test Athlete", 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	ver := NewVerifier(cfg)
	verified, err := ver.Verify(context.Background(), tokenStr)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	var claims map[string]interface{}
	if err := verified.Claims(&claims); err != nil {
		t.Fatalf("claims: %v", err)
	}
	if claims["sub"] != "1234567" {
		t.Fatalf("unexpected sub claim: got=%v want=1234567", claims["sub"])
	}
	if claims["name"] != "Test Athlete" {
		t.Fatalf("unexpected name claim: got=%v", claims["name"])
	}
}

func TestVerify_Expired(t *testing.T) {
	cfg := testConfig("another-secret-32-bytes-longgggg")
	tokenStr, err := GenerateAccessToken(cfg, 7, "X", 1*time.Second)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	time.Sleep(2 * time.Second)
	if _, err := NewVerifier(cfg).Verify(context.Background(), tokenStr); err == nil {
		t.Fatalf("expected verification to fail after expiry")
	}
}

func TestVerify_WrongSecretFails(t *testing.T) {
	cfg := testConfig("secret-one-32-bytes-xxxxxxxxxxxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, 7, "Bob", 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	other := NewVerifier(testConfig("different-secret-xxxxxxxxxxxxxxxx"))
	if _, err := other.Verify(context.Background(), tokenStr); err == nil {
		t.Fatalf("expected verification to fail with wrong secret")
	}
}

func TestVerify_Malformed(t *testing.T) {
	ver := NewVerifier(testConfig("x"))
	if _, err := ver.Verify(context.Background(), "not.a.jwt"); err == nil {
		t.Fatalf("expected verification to fail for malformed token")
	}
}

// Rejected when alg=none (unsigned token)
func TestVerify_AlgNoneRejected(t *testing.T) {
	headerEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payloadEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u-none","exp":9999999999}`))
	tok := headerEnc + "." + payloadEnc + "."
	if _, err := NewVerifier(testConfig("x")).Verify(context.Background(), tok); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}
}

// Tampering with payload must fail signature verification
func TestVerify_TamperedPayload(t *testing.T) {
	cfg := testConfig("tamper-test-secret-32-bytes-xxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, 99, "Tamper", 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token parts")
	}
	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	payloadStr := strings.Replace(string(payloadBytes), `"99"`, `"1"`, 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(payloadStr))
	tampered := strings.Join(parts, ".")
	if _, err := NewVerifier(cfg).Verify(context.Background(), tampered); err == nil {
		t.Fatalf("expected signature verification to fail for tampered token")
	}
}

func TestVerify_BlacklistedTokenRejected(t *testing.T) {
	m, err := mr.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer m.Close()
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer sessions.SetBlacklistClient(nil)

	cfg := testConfig("blacklist-secret-32-bytes-xxxxxxxxx")
	tokenStr, err := GenerateAccessToken(cfg, 5, "A", 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	if err := sessions.BlacklistAccessToken(context.Background(), tokenStr, time.Minute); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if _, err := NewVerifier(cfg).Verify(context.Background(), tokenStr); err == nil {
		t.Fatalf("expected blacklisted token to be rejected")
	}
}
