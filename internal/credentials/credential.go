package credentials

import "time"

// Credential is the single persisted Strava token set for the authenticated
// athlete. It is overwritten in place whenever a refresh succeeds.
type Credential struct {
	AccessToken  string `json:"access_token" bson:"accessToken"`
	RefreshToken string `json:"refresh_token" bson:"refreshToken"`
	ExpiresAt    int64  `json:"expires_at" bson:"expiresAt"` // epoch seconds
}

// Stale reports whether the access token expires within the given margin.
func (c *Credential) Stale(margin time.Duration) bool {
	return time.Now().Add(margin).Unix() >= c.ExpiresAt
}

// ExpiryTime returns ExpiresAt as a time.Time.
func (c *Credential) ExpiryTime() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}
