package strava

import "time"

// Activity is one summary record from GET /api/v3/athlete/activities,
// immutable once fetched. Units are Strava's: meters, seconds, meters/second.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	Distance           float64   `json:"distance"`
	MovingTime         int       `json:"moving_time"`
	ElapsedTime        int       `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	StartDate          time.Time `json:"start_date"`
	AverageSpeed       float64   `json:"average_speed"`
	AverageHeartrate   *float64  `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64  `json:"max_heartrate,omitempty"`
}

// Athlete is the authenticated athlete's profile from GET /api/v3/athlete.
type Athlete struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	Profile       string `json:"profile"`
	FollowerCount int    `json:"follower_count"`
	FriendCount   int    `json:"friend_count"`
}

// FullName joins first and last name for display.
func (a *Athlete) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}
