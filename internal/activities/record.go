package activities

import (
	"math"
	"time"

	"github.com/stridedash/stridedash/internal/strava"
)

// Record is one activity normalized for display: kilometers, minutes and
// km/h instead of Strava's raw meters and seconds. Immutable once built.
type Record struct {
	ID               int64     `json:"id" bson:"_id"`
	Name             string    `json:"name" bson:"name"`
	Type             string    `json:"type" bson:"type"`
	StartDate        time.Time `json:"start_date" bson:"startDate"`
	DistanceKm       float64   `json:"distance_km" bson:"distanceKm"`
	MovingTimeMin    float64   `json:"moving_time_min" bson:"movingTimeMin"`
	ElapsedTimeMin   float64   `json:"elapsed_time_min" bson:"elapsedTimeMin"`
	ElevationGain    float64   `json:"total_elevation_gain" bson:"elevationGain"`
	AverageSpeedKmh  float64   `json:"average_speed_kmh" bson:"averageSpeedKmh"`
	AverageHeartrate *float64  `json:"average_heartrate,omitempty" bson:"averageHeartrate,omitempty"`
	MaxHeartrate     *float64  `json:"max_heartrate,omitempty" bson:"maxHeartrate,omitempty"`
}

// Normalize converts a raw Strava activity into a display Record.
func Normalize(a strava.Activity) Record {
	name := a.Name
	if name == "" {
		name = "Unnamed Activity"
	}
	kind := a.Type
	if kind == "" {
		kind = "Unknown"
	}
	return Record{
		ID:               a.ID,
		Name:             name,
		Type:             kind,
		StartDate:        a.StartDate,
		DistanceKm:       round2(a.Distance / 1000),
		MovingTimeMin:    round2(float64(a.MovingTime) / 60),
		ElapsedTimeMin:   round2(float64(a.ElapsedTime) / 60),
		ElevationGain:    round2(a.TotalElevationGain),
		AverageSpeedKmh:  round2(a.AverageSpeed * 3.6),
		AverageHeartrate: a.AverageHeartrate,
		MaxHeartrate:     a.MaxHeartrate,
	}
}

// NormalizeAll converts a batch, preserving order.
func NormalizeAll(raw []strava.Activity) []Record {
	out := make([]Record, len(raw))
	for i, a := range raw {
		out[i] = Normalize(a)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
