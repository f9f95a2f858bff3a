package ports

import (
	"context"
	"time"

	"bloodlink/internal/domain"
)

// Service ports consumed by the HTTP adapter.

// Eligibility evaluates and administers donor eligibility.
type Eligibility interface {
	EvaluateDonor(ctx context.Context, donorID int64, asOf time.Time) (EligibilityResult, error)
	SetEligibility(ctx context.Context, donorID int64, upd EligibilityUpdate) (domain.Donor, error)
}

// Fulfillment computes request fulfillment and owns the mutating
// status-transition paths.
type Fulfillment interface {
	RequestFulfillment(ctx context.Context, requestID int64) (FulfillmentResult, error)
	TransitionRequest(ctx context.Context, requestID int64, to domain.RequestStatus, reason *string) (domain.BloodRequest, error)
	TransitionDonation(ctx context.Context, donationID int64, to domain.DonationStatus, reason *string) (domain.Donation, error)
	Summary(ctx context.Context, hospitalID *int64) (RequestSummary, error)
}

// ShortageFinder locates under-fulfilled open requests.
type ShortageFinder interface {
	FindShortages(ctx context.Context, q ShortageQuery) ([]ShortageRow, error)
}

// Matcher finds donors able to relieve several open requests at once.
type Matcher interface {
	FindMultiRequestDonors(ctx context.Context, q MatchQuery) ([]DonorMatch, error)
}

// SimilarityAnalyzer compares demand patterns between entities.
type SimilarityAnalyzer interface {
	HospitalBloodPatterns(ctx context.Context, q PatternQuery) ([]SimilarPair, error)
	StaffRequestPatterns(ctx context.Context, q PatternQuery) ([]SimilarPair, error)
	DoctorDonorSupersets(ctx context.Context, q SupersetQuery) ([]SimilarPair, error)
	IdenticalNeeds(ctx context.Context, q IdenticalNeedsQuery) ([]IdenticalNeedsRow, error)
}

// Reporting exposes the aggregate views carried over from the original
// hospital and donation reports.
type Reporting interface {
	HospitalStats(ctx context.Context, hospitalID int64) (HospitalStats, error)
	RegionDonationStats(ctx context.Context, q RegionStatsQuery) ([]RegionStats, error)
	StaffPerformance(ctx context.Context, q StaffPerformanceQuery) ([]StaffPerformanceRow, error)
	SeasonalDemand(ctx context.Context, q SeasonalQuery) ([]SeasonalPatternRow, error)
}

type EligibilityResult struct {
	CanDonate             bool       `json:"can_donate"`
	AgeEligible           bool       `json:"age_eligible"`
	TimeEligible          bool       `json:"time_eligible"`
	DeferralEligible      bool       `json:"deferral_eligible"`
	DaysUntilEligible     *int       `json:"days_until_eligible,omitempty"`
	DeferralDaysRemaining *int       `json:"deferral_days_remaining,omitempty"`
	IneligibleUntil       *time.Time `json:"ineligible_until,omitempty"`
	Reason                string     `json:"reason"`
}

type EligibilityUpdate struct {
	Eligible        bool       `json:"eligible"`
	IneligibleUntil *time.Time `json:"ineligible_until,omitempty"`
	HealthNotes     *string    `json:"health_notes,omitempty"`
}

type FulfillmentResult struct {
	CollectedML        int     `json:"collected_ml"`
	FulfillmentPercent float64 `json:"fulfillment_percentage"`
	IsFulfilled        bool    `json:"is_fulfilled"`
	DaysUntilNeeded    *int    `json:"days_until_needed,omitempty"`
}

type ShortageQuery struct {
	BloodType        domain.BloodType
	ThresholdPercent float64
	Limit            int
}

type ShortageRow struct {
	Hospital           domain.Hospital     `json:"hospital"`
	Request            domain.BloodRequest `json:"request"`
	CollectedML        int                 `json:"collected_ml"`
	ShortageML         int                 `json:"shortage_ml"`
	FulfillmentPercent float64             `json:"fulfillment_percentage"`
	Urgency            int                 `json:"urgency"`
}

type MatchQuery struct {
	MinMatchCount int
	Region        *string
	BloodType     *domain.BloodType
	Limit         int
}

type DonorMatch struct {
	Donor               domain.Donor       `json:"donor"`
	MatchCount          int                `json:"match_count"`
	PerfectMatches      int                `json:"perfect_matches"`
	PerfectMatchPercent float64            `json:"perfect_match_percent"`
	UniqueHospitals     int                `json:"unique_hospitals"`
	MatchedHospitals    []string           `json:"matched_hospitals"`
	MatchedBloodTypes   []domain.BloodType `json:"matched_blood_types"`
}

type SimilarityScore struct {
	SimilarityPercent float64 `json:"similarity_percent"`
	Intersection      int     `json:"intersection"`
	Union             int     `json:"union"`
	Category          string  `json:"category"`
}

type PatternQuery struct {
	MinSimilarityPercent float64
	MinSetSize           int
	Months               int
	Limit                int
}

type SupersetQuery struct {
	MinSimilarityPercent float64
	MinDonorCount        int
	HospitalID           *int64
	Limit                int
}

type IdenticalNeedsQuery struct {
	ReferenceHospitalID int64
	Days                int
	MinShortagePercent  float64
	Limit               int
}

// SimilarPair is one scored entity pair. SharedItems holds the intersection
// (blood types or donor ids rendered as strings) for display.
type SimilarPair struct {
	AID              int64           `json:"a_id"`
	AName            string          `json:"a_name"`
	BID              int64           `json:"b_id"`
	BName            string          `json:"b_name"`
	Score            SimilarityScore `json:"score"`
	SharedItems      []string        `json:"shared_items"`
	CombinedActivity int             `json:"combined_activity"`
	// OverlapPercent is the directional |A∩B|/|B| score, set only for the
	// donor-superset comparison.
	OverlapPercent *float64 `json:"overlap_percent,omitempty"`
}

type IdenticalNeedsRow struct {
	HospitalID            int64              `json:"hospital_id"`
	HospitalName          string             `json:"hospital_name"`
	City                  *string            `json:"city,omitempty"`
	Region                *string            `json:"region,omitempty"`
	BloodTypes            []domain.BloodType `json:"blood_types"`
	BloodTypeCount        int                `json:"blood_type_count"`
	ReferenceHospitalName string             `json:"reference_hospital_name"`
}
