// Package eligibility decides whether a donor may give blood. Evaluate is a
// pure predicate over a donor snapshot; Service wraps it with repository
// access and the admin eligibility-update rule.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

const (
	// MinIntervalDays is the minimum interval between completed donations.
	MinIntervalDays = 56

	MinDonorAge = 18
	MaxDonorAge = 65
)

// Evaluate runs the three independent sub-checks against the snapshot.
// Ineligibility is a normal outcome, never an error. A lapsed deferral is
// reported as-is; clearing the flag is the caller's write to make.
func Evaluate(d domain.Donor, asOf time.Time) ports.EligibilityResult {
	res := ports.EligibilityResult{
		AgeEligible:      true,
		TimeEligible:     true,
		DeferralEligible: d.IsEligible,
	}

	age := d.Age(asOf)
	if age < MinDonorAge || age > MaxDonorAge {
		res.AgeEligible = false
	}

	daysSince := -1
	if d.LastDonationDate != nil {
		daysSince = daysBetween(*d.LastDonationDate, asOf)
		if daysSince < MinIntervalDays {
			res.TimeEligible = false
			wait := MinIntervalDays - daysSince
			res.DaysUntilEligible = &wait
		}
	}

	if !d.IsEligible && d.IneligibleUntil != nil {
		until := *d.IneligibleUntil
		remaining := daysBetween(asOf, until) // negative once the deferral lapses
		res.DeferralDaysRemaining = &remaining
		res.IneligibleUntil = &until
	}

	res.CanDonate = res.AgeEligible && res.TimeEligible && res.DeferralEligible

	switch {
	case res.CanDonate:
		res.Reason = "eligible to donate"
	case !res.AgeEligible:
		res.Reason = fmt.Sprintf("age %d is outside the %d-%d donor range", age, MinDonorAge, MaxDonorAge)
	case !res.TimeEligible:
		res.Reason = fmt.Sprintf("last donation was %d days ago, %d more required between donations", daysSince, MinIntervalDays)
	default:
		res.Reason = "donor is deferred from donating"
	}
	return res
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

type Service struct {
	donors ports.DonorRepository
	logger *zap.Logger
}

func New(donors ports.DonorRepository, logger *zap.Logger) *Service {
	return &Service{donors: donors, logger: logger}
}

func (s *Service) EvaluateDonor(ctx context.Context, donorID int64, asOf time.Time) (ports.EligibilityResult, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	donor, err := s.donors.GetDonor(ctx, donorID)
	if err != nil {
		return ports.EligibilityResult{}, err
	}
	return Evaluate(donor, asOf), nil
}

// SetEligibility applies an admin update. Restoring eligibility clears the
// deferral fields; revoking it requires a future ineligible_until date.
func (s *Service) SetEligibility(ctx context.Context, donorID int64, upd ports.EligibilityUpdate) (domain.Donor, error) {
	if upd.Eligible {
		upd.IneligibleUntil = nil
		upd.HealthNotes = nil
	} else {
		if upd.IneligibleUntil == nil {
			return domain.Donor{}, fmt.Errorf("%w: ineligible_until is required when revoking eligibility", domain.ErrValidation)
		}
		if !upd.IneligibleUntil.After(time.Now()) {
			return domain.Donor{}, fmt.Errorf("%w: ineligible_until must be in the future", domain.ErrValidation)
		}
	}
	donor, err := s.donors.SetEligibility(ctx, donorID, upd.Eligible, upd.IneligibleUntil, upd.HealthNotes)
	if err != nil {
		return domain.Donor{}, err
	}
	s.logger.Info("donor eligibility updated",
		zap.Int64("donor_id", donorID),
		zap.Bool("eligible", upd.Eligible))
	return donor, nil
}
