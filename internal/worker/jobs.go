package worker

import (
	"context"
	"time"

	"github.com/address-ranker/internal/config"
	"github.com/address-ranker/internal/service"
	"github.com/address-ranker/internal/types"
)

// Job names
const (
	JobUpdateCycle = "update_cycle"
	JobHourRanking = "hour_ranking"
	JobDayRanking  = "day_ranking"
)

// The HOUR window ends one minute past the hour and is ranked late in the same
// hour, after the cycle started on the hour has finished. The DAY window ends
// at midnight.
const (
	hourRankingOffset = 45 * time.Minute
	dayRankingOffset  = 5 * time.Minute
)

// UpdateCycler runs one update cycle over all tracked addresses
type UpdateCycler interface {
	RunUpdateCycle(ctx context.Context) (*service.CycleResult, error)
}

// Ranker runs one ranking of the given type
type Ranker interface {
	RunRanking(ctx context.Context, rankingType types.RankingType) (*service.RankingResult, error)
}

// NewRankerScheduler registers the update cycle and ranking jobs
func NewRankerScheduler(cfg config.SchedulerConfig, cycler UpdateCycler, ranker Ranker, s *Scheduler) error {
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = config.DefaultUpdateInterval
	}

	jobs := []Job{
		{
			Name:       JobUpdateCycle,
			Schedule:   Aligned(interval, 0),
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := cycler.RunUpdateCycle(ctx)
				return err
			},
		},
		{
			Name:     JobHourRanking,
			Schedule: Aligned(time.Hour, hourRankingOffset),
			Run:      rankingJob(ranker, types.RankingHour),
		},
	}
	if cfg.DailyRankingEnabled {
		jobs = append(jobs, Job{
			Name:     JobDayRanking,
			Schedule: Aligned(24*time.Hour, dayRankingOffset),
			Run:      rankingJob(ranker, types.RankingDay),
		})
	}

	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return err
		}
	}
	return nil
}

func rankingJob(ranker Ranker, rankingType types.RankingType) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := ranker.RunRanking(ctx, rankingType)
		return err
	}
}
