package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stridedash/stridedash/internal/credentials"
	"github.com/stridedash/stridedash/pkg/metrics"
)

const (
	apiPath            = "/api/v3"
	activitiesEndpoint = "athlete/activities"
	athleteEndpoint    = "athlete"

	// DefaultPerPage matches the Strava API default page size.
	DefaultPerPage = 30

	// Strava allows 100 requests per 15 minutes for a personal app; one
	// request every 9 seconds with a small burst stays under that.
	throttleInterval = 9 * time.Second
	throttleBurst    = 15
)

// Client fetches the authenticated athlete's data. Requests are throttled
// client-side to stay inside Strava's quota; a 429 from the server is still
// surfaced as RateLimitError and never retried internally.
type Client struct {
	auth     *Authenticator
	client   *http.Client
	throttle *rate.Limiter
}

func NewClient(auth *Authenticator) *Client {
	return &Client{
		auth:     auth,
		client:   &http.Client{Timeout: 30 * time.Second},
		throttle: rate.NewLimiter(rate.Every(throttleInterval), throttleBurst),
	}
}

// ListActivities fetches one page of the athlete's activity history in the
// order the API returns it. A stale credential is refreshed and persisted
// before the request; a fresh one is used as-is.
func (c *Client) ListActivities(ctx context.Context, cred *credentials.Credential, page, perPage int) ([]Activity, error) {
	cred, err := c.auth.Refresh(ctx, cred)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	var activities []Activity
	if err := c.get(ctx, cred, activitiesEndpoint, q, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// FetchPage fetches one page of activities using the persisted credential.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) ([]Activity, error) {
	cred, err := c.credential(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListActivities(ctx, cred, page, perPage)
}

// Athlete fetches the authenticated athlete's profile using the persisted
// credential.
func (c *Client) Athlete(ctx context.Context) (*Athlete, error) {
	cred, err := c.credential(ctx)
	if err != nil {
		return nil, err
	}
	var athlete Athlete
	if err := c.get(ctx, cred, athleteEndpoint, nil, &athlete); err != nil {
		return nil, err
	}
	return &athlete, nil
}

// Activities returns a pager over the complete activity history. Each pager
// is independent state, so creating a new one restarts the sequence from the
// first page.
func (c *Client) Activities(perPage int) *ActivityPager {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &ActivityPager{client: c, perPage: perPage}
}

// credential loads the persisted credential and refreshes it when stale.
func (c *Client) credential(ctx context.Context) (*credentials.Credential, error) {
	cred, err := c.auth.Load(ctx)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, &AuthError{Op: "load", Err: err}
		}
		return nil, err
	}
	return c.auth.Refresh(ctx, cred)
}

func (c *Client) get(ctx context.Context, cred *credentials.Credential, endpoint string, q url.Values, out interface{}) error {
	if err := c.throttle.Wait(ctx); err != nil {
		return err
	}
	u := c.auth.cfg.BaseURL + apiPath + "/" + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &FetchError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.StravaRequests.WithLabelValues(endpoint, "network_error").Inc()
		return &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.StravaRequests.WithLabelValues(endpoint, "throttled").Inc()
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized:
		metrics.StravaRequests.WithLabelValues(endpoint, "unauthorized").Inc()
		return &AuthError{Op: endpoint, Err: errors.New("access token rejected")}
	case resp.StatusCode != http.StatusOK:
		metrics.StravaRequests.WithLabelValues(endpoint, "error").Inc()
		b, _ := io.ReadAll(resp.Body)
		return &FetchError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(b)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.StravaRequests.WithLabelValues(endpoint, "malformed").Inc()
		return &FetchError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	metrics.StravaRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// ActivityPager walks the full activity history lazily, page by page. The
// persisted credential is resolved, and refreshed at most once, when the
// first page is requested.
type ActivityPager struct {
	client  *Client
	cred    *credentials.Credential
	perPage int
	page    int
	done    bool
}

// Next returns the next page in remote order, or (nil, nil) once the history
// is exhausted. On error the page counter is not advanced, so the caller may
// call Next again after e.g. a rate limit wait.
func (p *ActivityPager) Next(ctx context.Context) ([]Activity, error) {
	if p.done {
		return nil, nil
	}
	if p.cred == nil {
		cred, err := p.client.credential(ctx)
		if err != nil {
			return nil, err
		}
		p.cred = cred
	}
	batch, err := p.client.ListActivities(ctx, p.cred, p.page+1, p.perPage)
	if err != nil {
		return nil, err
	}
	p.page++
	if len(batch) < p.perPage {
		p.done = true
	}
	if len(batch) == 0 {
		return nil, nil
	}
	return batch, nil
}
