// Package fulfillment aggregates donations into request fulfillment state and
// owns the status-transition paths, the engine's only writes.
package fulfillment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

// Compute derives the fulfillment state of a request from its donation set.
// Only completed donations count; the percentage is clamped to [0,100] and a
// zero needed amount yields 0 rather than dividing.
func Compute(req domain.BloodRequest, donations []domain.Donation, now time.Time) ports.FulfillmentResult {
	collected := 0
	for _, d := range donations {
		if d.Status == domain.DonationCompleted {
			collected += d.BloodAmountML
		}
	}

	pct := 0.0
	if req.AmountNeededML > 0 {
		pct = float64(collected) / float64(req.AmountNeededML) * 100
		if pct > 100 {
			pct = 100
		}
	}

	res := ports.FulfillmentResult{
		CollectedML:        collected,
		FulfillmentPercent: pct,
		IsFulfilled:        req.Status == domain.RequestFulfilled || pct >= 100,
	}

	if req.NeededByDate != nil {
		days := int(req.NeededByDate.Sub(now).Hours() / 24)
		if days < 0 {
			days = 0
		}
		res.DaysUntilNeeded = &days
	}
	return res
}

type Service struct {
	requests    ports.RequestRepository
	donations   ports.DonationRepository
	transitions ports.TransitionRepository
	logger      *zap.Logger
}

func New(requests ports.RequestRepository, donations ports.DonationRepository, transitions ports.TransitionRepository, logger *zap.Logger) *Service {
	return &Service{requests: requests, donations: donations, transitions: transitions, logger: logger}
}

func (s *Service) RequestFulfillment(ctx context.Context, requestID int64) (ports.FulfillmentResult, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return ports.FulfillmentResult{}, err
	}
	donations, err := s.donations.ListByRequest(ctx, requestID)
	if err != nil {
		return ports.FulfillmentResult{}, err
	}
	return Compute(req, donations, time.Now()), nil
}

// TransitionRequest validates the move against the state machine and applies
// it through the transactional repository. The repository performs the
// status-conditioned write; a lost race surfaces as domain.ErrConflict for
// the caller to retry. Moving to fulfilled cascades the request's scheduled
// donations to completed.
func (s *Service) TransitionRequest(ctx context.Context, requestID int64, to domain.RequestStatus, reason *string) (domain.BloodRequest, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return domain.BloodRequest{}, err
	}
	if err := domain.ValidateRequestTransition(req.Status, to); err != nil {
		return domain.BloodRequest{}, err
	}
	updated, err := s.transitions.TransitionRequest(ctx, requestID, req.Status, to, reason)
	if err != nil {
		return domain.BloodRequest{}, err
	}
	s.logger.Info("request status changed",
		zap.Int64("request_id", requestID),
		zap.String("from", string(req.Status)),
		zap.String("to", string(to)))
	return updated, nil
}

// TransitionDonation validates and applies a donation move. Completing a
// donation also credits the donor (last donation date, total count) in the
// same transaction.
func (s *Service) TransitionDonation(ctx context.Context, donationID int64, to domain.DonationStatus, reason *string) (domain.Donation, error) {
	don, err := s.donations.GetDonation(ctx, donationID)
	if err != nil {
		return domain.Donation{}, err
	}
	if err := domain.ValidateDonationTransition(don.Status, to); err != nil {
		return domain.Donation{}, err
	}
	updated, err := s.transitions.TransitionDonation(ctx, donationID, don.Status, to, reason)
	if err != nil {
		return domain.Donation{}, err
	}
	s.logger.Info("donation status changed",
		zap.Int64("donation_id", donationID),
		zap.String("from", string(don.Status)),
		zap.String("to", string(to)))
	return updated, nil
}

func (s *Service) Summary(ctx context.Context, hospitalID *int64) (ports.RequestSummary, error) {
	return s.requests.RequestSummary(ctx, hospitalID)
}
