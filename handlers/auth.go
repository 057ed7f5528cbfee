package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stridedash/stridedash/internal/config"
	"github.com/stridedash/stridedash/internal/sessions"
	"github.com/stridedash/stridedash/internal/strava"
	"github.com/stridedash/stridedash/internal/tokens"
	"github.com/stridedash/stridedash/pkg/logger"
)

// AuthHandler wires the Strava OAuth flow to local dashboard sessions.
type AuthHandler struct {
	cfg         *config.Config
	auth        *strava.Authenticator
	api         *strava.Client
	sessionsSvc *sessions.Service
}

func NewAuthHandler(cfg *config.Config, a *strava.Authenticator, api *strava.Client, s *sessions.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, auth: a, api: api, sessionsSvc: s}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.GET("/login", h.Login)
	a.GET("/callback", h.Callback)
	a.POST("/authorize", h.Authorize)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// Login redirects the browser to Strava's authorization page.
func (h *AuthHandler) Login(c *gin.Context) {
	c.Redirect(http.StatusFound, h.auth.AuthorizationURL())
}

// Callback is the registered OAuth redirect target. Strava sends the
// authorization code (or an error) as query parameters.
func (h *AuthHandler) Callback(c *gin.Context) {
	if e := c.Query("error"); e != "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization denied", "details": e})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code query parameter missing"})
		return
	}
	if _, err := h.auth.Exchange(c.Request.Context(), code); err != nil {
		logger.Errorf("code exchange failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed", "details": err.Error()})
		return
	}
	h.issueSession(c)
}

// AuthorizeRequest carries the full redirect URL a user pasted after
// approving the app in a browser without a reachable callback.
type AuthorizeRequest struct {
	RedirectURL string `json:"redirect_url" binding:"required"`
}

// Authorize completes the flow from a pasted redirect URL.
func (h *AuthHandler) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.auth.Authorize(c.Request.Context(), req.RedirectURL); err != nil {
		var ae *strava.AuthError
		if errors.As(err, &ae) && ae.Op == "authorize" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid redirect URL", "details": err.Error()})
			return
		}
		logger.Errorf("authorization failed: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed", "details": err.Error()})
		return
	}
	h.issueSession(c)
}

// issueSession creates the local refresh session and JWT once a Strava
// credential is in place, and writes the login response.
func (h *AuthHandler) issueSession(c *gin.Context) {
	athlete, err := h.api.Athlete(c.Request.Context())
	if err != nil {
		// the credential works, profile fetch is cosmetic
		logger.Warnf("athlete profile fetch failed: %v", err)
		athlete = &strava.Athlete{}
	}

	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), h.cfg.Session.RefreshTokenTTL)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, athlete.ID, athlete.FullName(), h.cfg.Session.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": rft,
		"athlete":      athlete,
		"expiresIn":    int(h.cfg.Session.AccessTokenTTL.Seconds()),
	})
}

// Refresh accepts a refresh token and returns a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.sessionsSvc.ValidateRefresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	athlete, err := h.api.Athlete(c.Request.Context())
	if err != nil {
		athlete = &strava.Athlete{}
	}
	access, err := tokens.GenerateAccessToken(h.cfg, athlete.ID, athlete.FullName(), h.cfg.Session.AccessTokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": access,
		"expires_in":   int(h.cfg.Session.AccessTokenTTL.Seconds()),
	})
}

// Logout invalidates the refresh token and blacklists the current access token
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	auth := c.GetHeader("Authorization")
	if at, found := strings.CutPrefix(auth, "Bearer "); found && at != "" {
		if exp, err := parseExpFromJWT(at); err == nil {
			if ttl := time.Until(exp); ttl > 0 {
				if err := sessions.BlacklistAccessToken(c.Request.Context(), at, ttl); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
					return
				}
			}
		}
	}

	if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// parseExpFromJWT decodes the JWT payload and returns the exp claim. Payload
// only, no signature check; the remaining TTL is all the blacklist needs.
func parseExpFromJWT(tok string) (time.Time, error) {
	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid token")
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(b, &claims); err != nil {
		return time.Time{}, err
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	return time.Unix(int64(exp), 0), nil
}
