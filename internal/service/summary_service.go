package service

import (
	"context"
	"encoding/json"
	"time"

	"fleetdeploy/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const summaryCacheKey = "fleetdeploy:summary"
const summaryCacheTTL = 10 * time.Second

// Summary holds dashboard counts
type Summary struct {
	Machines      int64 `json:"machines"`
	Packages      int64 `json:"packages"`
	Assignments   int64 `json:"assignments"`
	Jobs          int64 `json:"jobs"`
	SucceededJobs int64 `json:"succeeded_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
}

// SummaryService computes dashboard counts, cached in Redis
type SummaryService struct {
	db    *gorm.DB
	cache *redis.Client
}

// NewSummaryService creates a new summary service. cache may be nil, in
// which case counts are computed on every call.
func NewSummaryService(db *gorm.DB, cache *redis.Client) *SummaryService {
	return &SummaryService{db: db, cache: cache}
}

// Get returns the dashboard summary
func (s *SummaryService) Get(ctx context.Context) (*Summary, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, summaryCacheKey).Result(); err == nil {
			var cached Summary
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &cached, nil
			}
		}
	}

	var sum Summary
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&sum.Machines, s.db.Model(&model.Machine{})},
		{&sum.Packages, s.db.Model(&model.Package{})},
		{&sum.Assignments, s.db.Model(&model.Assignment{})},
		{&sum.Jobs, s.db.Model(&model.Job{})},
		{&sum.SucceededJobs, s.db.Model(&model.Job{}).Where("status = ?", model.JobStatusSucceeded)},
		{&sum.FailedJobs, s.db.Model(&model.Job{}).Where("status = ?", model.JobStatusFailed)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		if raw, err := json.Marshal(&sum); err == nil {
			_ = s.cache.Set(ctx, summaryCacheKey, raw, summaryCacheTTL).Err()
		}
	}
	return &sum, nil
}
