package ports

import (
	"context"
	"time"

	"bloodlink/internal/domain"
)

// OpenRequestFilter narrows open (pending/approved) request listings.
type OpenRequestFilter struct {
	BloodType *domain.BloodType
	Region    *string
}

// DonorRepository fetches and mutates donor records.
type DonorRepository interface {
	GetDonor(ctx context.Context, id int64) (domain.Donor, error)
	// ListFlaggedEligible returns donors whose eligibility flag is set,
	// optionally restricted to one blood type. Temporal checks are the
	// eligibility evaluator's job, not the store's.
	ListFlaggedEligible(ctx context.Context, bloodType *domain.BloodType) ([]domain.Donor, error)
	// SetEligibility applies an admin eligibility update.
	SetEligibility(ctx context.Context, id int64, eligible bool, until *time.Time, notes *string) (domain.Donor, error)
}

// RequestRepository reads blood requests.
type RequestRepository interface {
	GetRequest(ctx context.Context, id int64) (domain.BloodRequest, error)
	ListOpenRequests(ctx context.Context, f OpenRequestFilter) ([]domain.BloodRequest, error)
	RequestSummary(ctx context.Context, hospitalID *int64) (RequestSummary, error)
}

// DonationRepository reads donations and donation aggregates.
type DonationRepository interface {
	GetDonation(ctx context.Context, id int64) (domain.Donation, error)
	ListByRequest(ctx context.Context, requestID int64) ([]domain.Donation, error)
	ListByDonor(ctx context.Context, donorID int64) ([]domain.Donation, error)
	// CollectedByRequests sums completed-donation volume per request id.
	// Requests with no completed donations are absent from the map.
	CollectedByRequests(ctx context.Context, requestIDs []int64) (map[int64]int, error)
	RegionDonationStats(ctx context.Context, q RegionStatsQuery) ([]RegionStats, error)
}

// HospitalRepository reads hospital context and aggregates.
type HospitalRepository interface {
	GetHospital(ctx context.Context, id int64) (domain.Hospital, error)
	ListHospitals(ctx context.Context, ids []int64) (map[int64]domain.Hospital, error)
	HospitalStats(ctx context.Context, id int64) (HospitalStats, error)
}

// PatternRepository provides the precomputed per-entity sets the similarity
// scorer compares. Each method builds every entity's set in one pass so the
// scorer can do indexed intersections instead of pairwise sub-queries.
type PatternRepository interface {
	HospitalRequestPatterns(ctx context.Context, months, minRequests int) ([]EntityPattern, error)
	StaffRequestPatterns(ctx context.Context, months, minBloodTypes int) ([]EntityPattern, error)
	DoctorDonorSets(ctx context.Context, hospitalID *int64, minDonors int) ([]DonorSet, error)
	HospitalShortageProfiles(ctx context.Context, days int, minShortagePercent float64) ([]ShortageProfile, error)
}

// TrendRepository aggregates demand history for the reporting views: per-staff
// fulfillment rates and seasonal request patterns.
type TrendRepository interface {
	StaffPerformance(ctx context.Context, q StaffPerformanceQuery) ([]StaffPerformanceRow, error)
	SeasonalDemand(ctx context.Context, q SeasonalQuery) ([]SeasonalPatternRow, error)
}

// TransitionRepository applies status transitions atomically. The write is
// conditioned on the expected current status; if the row exists but the
// condition no longer holds, the transition lost a race and the repository
// returns domain.ErrConflict. Transitioning a request to fulfilled cascades
// its scheduled donations to completed and credits donors, all in the same
// transaction, with one audit event per applied change.
type TransitionRepository interface {
	TransitionRequest(ctx context.Context, id int64, from, to domain.RequestStatus, reason *string) (domain.BloodRequest, error)
	TransitionDonation(ctx context.Context, id int64, from, to domain.DonationStatus, reason *string) (domain.Donation, error)
}

// EntityPattern is one entity's blood-type demand set.
type EntityPattern struct {
	EntityID      int64
	Name          string
	City          *string
	Region        *string
	BloodTypes    []domain.BloodType
	ActivityCount int
}

// DonorSet is one doctor's pool of distinct donor ids.
type DonorSet struct {
	StaffID      int64
	StaffName    string
	HospitalID   int64
	HospitalName string
	DonorIDs     []int64
}

// ShortageProfile is the set of blood types a hospital is currently short on.
type ShortageProfile struct {
	HospitalID int64
	Name       string
	City       *string
	Region     *string
	ShortTypes []domain.BloodType
}

type RegionStatsQuery struct {
	MinDonations int
	MinTotalML   int
	BloodType    *domain.BloodType
	Months       int
	Limit        int
}

type RegionStats struct {
	Region        string           `json:"region"`
	BloodType     domain.BloodType `json:"blood_type"`
	DonationCount int              `json:"donation_count"`
	CollectedML   int              `json:"collected_ml"`
	HospitalCount int              `json:"hospital_count"`
	DonorCount    int              `json:"donor_count"`
	AvgDonationML float64          `json:"avg_donation_ml"`
	Hospitals     []string         `json:"hospitals"`
}

type RequestSummary struct {
	TotalRequests     int                      `json:"total_requests"`
	PendingRequests   int                      `json:"pending_requests"`
	FulfilledRequests int                      `json:"fulfilled_requests"`
	UrgentRequests    int                      `json:"urgent_requests"` // urgency >= 4
	ByBloodType       map[domain.BloodType]int `json:"by_blood_type"`
}

type StaffPerformanceQuery struct {
	MinRequests        int
	MinFulfillmentRate float64
	Months             int
	Limit              int
}

type StaffPerformanceRow struct {
	StaffID         int64   `json:"staff_id"`
	StaffName       string  `json:"staff_name"`
	HospitalName    string  `json:"hospital_name"`
	Role            string  `json:"role"`
	RequestCount    int     `json:"request_count"`
	FulfilledCount  int     `json:"fulfilled_count"`
	FulfillmentRate float64 `json:"fulfillment_rate"`
}

type SeasonalQuery struct {
	MinRequestCount int
	Years           int
	Region          *string
	Limit           int
}

// SeasonalPatternRow is one season/blood-type demand bucket.
// PercentOfSeason is the bucket's share of all retained requests in its season.
type SeasonalPatternRow struct {
	Season          string           `json:"season"`
	BloodType       domain.BloodType `json:"blood_type"`
	RequestCount    int              `json:"request_count"`
	TotalNeededML   int              `json:"total_needed_ml"`
	HospitalCount   int              `json:"hospital_count"`
	AvgUrgency      float64          `json:"avg_urgency"`
	PercentOfSeason float64          `json:"percent_of_season"`
}

type HospitalStats struct {
	HospitalID         int64  `json:"hospital_id"`
	Name               string `json:"name"`
	StaffCount         int    `json:"staff_count"`
	BloodRequestCount  int    `json:"blood_request_count"`
	ActiveRequests     int    `json:"active_requests"`
	ScheduledDonations int    `json:"scheduled_donations"`
	CompletedDonations int    `json:"completed_donations"`
}
