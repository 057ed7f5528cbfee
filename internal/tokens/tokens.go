package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stridedash/stridedash/internal/config"
	"github.com/stridedash/stridedash/internal/sessions"
	"github.com/stridedash/stridedash/pkg/middleware"
)

// GenerateAccessToken creates a signed JWT access token for the dashboard
// session. Athlete identity comes from Strava; sub carries the athlete id.
func GenerateAccessToken(cfg *config.Config, athleteID int64, name string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", athleteID),
		"name": name,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.Session.Secret))
}

// Verifier validates locally issued HS256 access tokens and, when Redis is
// configured, rejects tokens that were blacklisted on logout.
type Verifier struct {
	secret []byte
}

func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{secret: []byte(cfg.Session.Secret)}
}

// VerifiedToken exposes the parsed claims of a verified token.
type VerifiedToken struct {
	claims jwt.MapClaims
}

func (t *VerifiedToken) Claims(v interface{}) error {
	m, ok := v.(*map[string]interface{})
	if !ok {
		return fmt.Errorf("unsupported claims target %T", v)
	}
	*m = map[string]interface{}(t.claims)
	return nil
}

// Verify parses and validates the raw token string and returns a
// middleware.Token. Blacklisted tokens fail verification even if their
// signature and expiry are valid.
func (ver *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	black, err := sessions.IsAccessTokenBlacklisted(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("blacklist check: %w", err)
	}
	if black {
		return nil, fmt.Errorf("token revoked")
	}

	parsed, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return ver.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return &VerifiedToken{claims: claims}, nil
}
