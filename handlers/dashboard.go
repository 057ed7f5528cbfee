package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stridedash/stridedash/internal/activities"
	"github.com/stridedash/stridedash/internal/archive"
	"github.com/stridedash/stridedash/internal/strava"
	"github.com/stridedash/stridedash/pkg/logger"
)

// DashboardHandler serves the athlete data endpoints behind the session
// guard. The archive is optional; export returns 503 without it.
type DashboardHandler struct {
	api     *strava.Client
	svc     *activities.Service
	archive *archive.Archive
}

func NewDashboardHandler(api *strava.Client, svc *activities.Service, arc *archive.Archive) *DashboardHandler {
	return &DashboardHandler{api: api, svc: svc, archive: arc}
}

// Register routes under /api/v1
func (h *DashboardHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/athlete", h.Athlete)
	rg.GET("/activities", h.Activities)
	rg.POST("/sync", h.Sync)
	rg.GET("/stats", h.Stats)
	rg.POST("/export", h.Export)
}

// Athlete returns the authenticated athlete's Strava profile.
func (h *DashboardHandler) Athlete(c *gin.Context) {
	athlete, err := h.api.Athlete(c.Request.Context())
	if err != nil {
		writeStravaError(c, err)
		return
	}
	c.JSON(http.StatusOK, athlete)
}

// Activities fetches one page of the history live from Strava, normalized
// for the dashboard. Defaults: page 1, Strava's default page size.
func (h *DashboardHandler) Activities(c *gin.Context) {
	page, err := positiveQueryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	perPage, err := positiveQueryInt(c, "per_page", strava.DefaultPerPage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := h.api.FetchPage(c.Request.Context(), page, perPage)
	if err != nil {
		writeStravaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"page":       page,
		"per_page":   perPage,
		"count":      len(batch),
		"activities": activities.NormalizeAll(batch),
	})
}

// Sync walks the complete history into the repository.
func (h *DashboardHandler) Sync(c *gin.Context) {
	count, err := h.svc.Sync(c.Request.Context())
	if err != nil {
		logger.Errorf("sync failed after %d activities: %v", count, err)
		writeStravaError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": count})
}

// Stats aggregates the stored history.
func (h *DashboardHandler) Stats(c *gin.Context) {
	sum, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats computation failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Export writes a snapshot of the stored history to the object archive.
func (h *DashboardHandler) Export(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive not configured"})
		return
	}
	records, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load activities"})
		return
	}
	key, err := h.archive.PutSnapshot(c.Request.Context(), records)
	if err != nil {
		logger.Errorf("export failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "export failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "count": len(records)})
}

func positiveQueryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}

// writeStravaError maps upstream failures onto the API surface: expired or
// missing authorization is 401, Strava telling us to back off is 429 with
// Retry-After, anything else upstream is 502.
func writeStravaError(c *gin.Context, err error) {
	var ae *strava.AuthError
	if errors.As(err, &ae) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "strava authorization required", "details": err.Error()})
		return
	}
	var rle *strava.RateLimitError
	if errors.As(err, &rle) {
		if rle.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(rle.RetryAfter.Seconds())))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "strava rate limit exceeded"})
		return
	}
	var fe *strava.FetchError
	if errors.As(err, &fe) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "strava request failed", "details": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
