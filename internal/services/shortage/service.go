// Package shortage finds open blood requests whose fulfillment sits below a
// caller-supplied ceiling.
package shortage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

const (
	DefaultThresholdPercent = 50.0
	DefaultLimit            = 50

	cacheTTL = 30 * time.Second
)

type Service struct {
	requests  ports.RequestRepository
	donations ports.DonationRepository
	hospitals ports.HospitalRepository
	cache     ports.AnalyticsCache // may be nil
	logger    *zap.Logger
}

func New(requests ports.RequestRepository, donations ports.DonationRepository, hospitals ports.HospitalRepository, cache ports.AnalyticsCache, logger *zap.Logger) *Service {
	return &Service{requests: requests, donations: donations, hospitals: hospitals, cache: cache, logger: logger}
}

// FindShortages lists open requests of the given blood type strictly below
// the fulfillment ceiling, most urgent and soonest-due first. Read-only.
func (s *Service) FindShortages(ctx context.Context, q ports.ShortageQuery) ([]ports.ShortageRow, error) {
	if _, err := domain.ParseBloodType(string(q.BloodType)); err != nil {
		return nil, err
	}
	if q.ThresholdPercent <= 0 {
		q.ThresholdPercent = DefaultThresholdPercent
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	key := fmt.Sprintf("shortages:%s:%.1f:%d", q.BloodType, q.ThresholdPercent, q.Limit)
	var cached []ports.ShortageRow
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	bt := q.BloodType
	open, err := s.requests.ListOpenRequests(ctx, ports.OpenRequestFilter{BloodType: &bt})
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return []ports.ShortageRow{}, nil
	}

	ids := make([]int64, len(open))
	hospitalIDs := make([]int64, 0, len(open))
	seen := map[int64]bool{}
	for i, r := range open {
		ids[i] = r.ID
		if !seen[r.HospitalRef] {
			seen[r.HospitalRef] = true
			hospitalIDs = append(hospitalIDs, r.HospitalRef)
		}
	}

	collected, err := s.donations.CollectedByRequests(ctx, ids)
	if err != nil {
		return nil, err
	}
	hospitals, err := s.hospitals.ListHospitals(ctx, hospitalIDs)
	if err != nil {
		return nil, err
	}

	rows := make([]ports.ShortageRow, 0, len(open))
	for _, r := range open {
		got := collected[r.ID]
		pct := 0.0
		if r.AmountNeededML > 0 {
			pct = float64(got) / float64(r.AmountNeededML) * 100
			if pct > 100 {
				pct = 100
			}
		}
		if pct >= q.ThresholdPercent {
			continue
		}
		rows = append(rows, ports.ShortageRow{
			Hospital:           hospitals[r.HospitalRef],
			Request:            r,
			CollectedML:        got,
			ShortageML:         r.AmountNeededML - got,
			FulfillmentPercent: pct,
			Urgency:            r.UrgencyLevel,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Urgency != rows[j].Urgency {
			return rows[i].Urgency > rows[j].Urgency
		}
		di, dj := rows[i].Request.NeededByDate, rows[j].Request.NeededByDate
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		case di != nil && dj == nil:
			return true // dated requests ahead of undated ones
		case di == nil && dj != nil:
			return false
		}
		return rows[i].FulfillmentPercent < rows[j].FulfillmentPercent
	})

	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	s.cacheSet(ctx, key, rows)
	return rows, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("shortage cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, cacheTTL); err != nil {
		s.logger.Warn("shortage cache write failed", zap.String("key", key), zap.Error(err))
	}
}
