// Package reporting exposes the aggregate hospital and regional donation
// views. Thin pass-throughs over the repository with parameter defaulting.
package reporting

import (
	"context"

	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

type Service struct {
	hospitals ports.HospitalRepository
	donations ports.DonationRepository
	trends    ports.TrendRepository
	logger    *zap.Logger
}

func New(hospitals ports.HospitalRepository, donations ports.DonationRepository, trends ports.TrendRepository, logger *zap.Logger) *Service {
	return &Service{hospitals: hospitals, donations: donations, trends: trends, logger: logger}
}

func (s *Service) HospitalStats(ctx context.Context, hospitalID int64) (ports.HospitalStats, error) {
	return s.hospitals.HospitalStats(ctx, hospitalID)
}

func (s *Service) RegionDonationStats(ctx context.Context, q ports.RegionStatsQuery) ([]ports.RegionStats, error) {
	if q.BloodType != nil {
		if _, err := domain.ParseBloodType(string(*q.BloodType)); err != nil {
			return nil, err
		}
	}
	if q.MinDonations <= 0 {
		q.MinDonations = 10
	}
	if q.MinTotalML <= 0 {
		q.MinTotalML = 5000
	}
	if q.Months <= 0 {
		q.Months = 3
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return s.donations.RegionDonationStats(ctx, q)
}

// StaffPerformance ranks staff by blood-request fulfillment rate. A zero
// MinFulfillmentRate keeps every staff member above the request floor.
func (s *Service) StaffPerformance(ctx context.Context, q ports.StaffPerformanceQuery) ([]ports.StaffPerformanceRow, error) {
	if q.MinRequests <= 0 {
		q.MinRequests = 5
	}
	if q.Months <= 0 {
		q.Months = 12
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return s.trends.StaffPerformance(ctx, q)
}

func (s *Service) SeasonalDemand(ctx context.Context, q ports.SeasonalQuery) ([]ports.SeasonalPatternRow, error) {
	if q.MinRequestCount <= 0 {
		q.MinRequestCount = 10
	}
	if q.Years <= 0 {
		q.Years = 2
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return s.trends.SeasonalDemand(ctx, q)
}
