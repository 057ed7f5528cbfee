package activities

import (
	"context"

	"github.com/stridedash/stridedash/internal/strava"
	"github.com/stridedash/stridedash/pkg/logger"
	"github.com/stridedash/stridedash/pkg/metrics"
)

// syncPerPage is the page size used for full syncs; 200 is the Strava maximum.
const syncPerPage = 200

// Service pages the athlete's history out of Strava into the repository and
// aggregates it for the dashboard.
type Service struct {
	client *strava.Client
	repo   Repository
}

func NewService(client *strava.Client, repo Repository) *Service {
	return &Service{client: client, repo: repo}
}

// Sync walks the complete activity history and upserts normalized records.
// Returns the number of records written. A rate-limited or failed page aborts
// the run; records from earlier pages stay persisted, and the next run
// re-walks from the first page.
func (s *Service) Sync(ctx context.Context) (int, error) {
	pager := s.client.Activities(syncPerPage)
	total := 0
	for {
		batch, err := pager.Next(ctx)
		if err != nil {
			return total, err
		}
		if batch == nil {
			break
		}
		records := NormalizeAll(batch)
		if err := s.repo.Upsert(ctx, records); err != nil {
			return total, err
		}
		total += len(records)
	}
	metrics.ActivitiesSynced.Add(float64(total))
	logger.Infof("sync complete: %d activities", total)
	return total, nil
}

// List returns the stored records, newest first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.repo.List(ctx)
}

// Summary aggregates the stored history for the dashboard's headline cards.
type Summary struct {
	TotalActivities    int                    `json:"total_activities"`
	TotalDistanceKm    float64                `json:"total_distance_km"`
	TotalMovingTimeMin float64                `json:"total_moving_time_min"`
	TotalElevationGain float64                `json:"total_elevation_gain"`
	ByType             map[string]TypeSummary `json:"by_type"`
}

type TypeSummary struct {
	Count         int     `json:"count"`
	DistanceKm    float64 `json:"distance_km"`
	MovingTimeMin float64 `json:"moving_time_min"`
	AvgSpeedKmh   float64 `json:"avg_speed_kmh"`
	AvgDistanceKm float64 `json:"avg_distance_km"`
}

// Stats computes summary statistics over the stored records.
func (s *Service) Stats(ctx context.Context) (*Summary, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sum := &Summary{ByType: map[string]TypeSummary{}}
	speedSums := map[string]float64{}
	for _, rec := range records {
		sum.TotalActivities++
		sum.TotalDistanceKm += rec.DistanceKm
		sum.TotalMovingTimeMin += rec.MovingTimeMin
		sum.TotalElevationGain += rec.ElevationGain

		ts := sum.ByType[rec.Type]
		ts.Count++
		ts.DistanceKm += rec.DistanceKm
		ts.MovingTimeMin += rec.MovingTimeMin
		speedSums[rec.Type] += rec.AverageSpeedKmh
		sum.ByType[rec.Type] = ts
	}
	for kind, ts := range sum.ByType {
		if ts.Count > 0 {
			ts.AvgSpeedKmh = speedSums[kind] / float64(ts.Count)
			ts.AvgDistanceKm = ts.DistanceKm / float64(ts.Count)
		}
		sum.ByType[kind] = ts
	}
	return sum, nil
}
