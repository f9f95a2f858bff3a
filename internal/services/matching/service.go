// Package matching finds high-impact donors: those whose blood type and
// current eligibility let them relieve several distinct open requests.
package matching

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
	"bloodlink/internal/services/eligibility"
)

const (
	DefaultMinMatchCount = 2
	DefaultLimit         = 50
)

type Service struct {
	donors    ports.DonorRepository
	requests  ports.RequestRepository
	hospitals ports.HospitalRepository
	logger    *zap.Logger
}

func New(donors ports.DonorRepository, requests ports.RequestRepository, hospitals ports.HospitalRepository, logger *zap.Logger) *Service {
	return &Service{donors: donors, requests: requests, hospitals: hospitals, logger: logger}
}

// FindMultiRequestDonors crosses currently-eligible donors against open
// requests. The open requests are indexed by blood type once, then each donor
// is joined through its compatible-recipient list; no donor×request cross
// product is materialized.
func (s *Service) FindMultiRequestDonors(ctx context.Context, q ports.MatchQuery) ([]ports.DonorMatch, error) {
	if q.BloodType != nil {
		if _, err := domain.ParseBloodType(string(*q.BloodType)); err != nil {
			return nil, err
		}
	}
	if q.MinMatchCount <= 0 {
		q.MinMatchCount = DefaultMinMatchCount
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	candidates, err := s.donors.ListFlaggedEligible(ctx, q.BloodType)
	if err != nil {
		return nil, err
	}
	open, err := s.requests.ListOpenRequests(ctx, ports.OpenRequestFilter{Region: q.Region})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 || len(open) == 0 {
		return []ports.DonorMatch{}, nil
	}

	byType := make(map[domain.BloodType][]domain.BloodRequest, len(domain.BloodTypes))
	for _, r := range open {
		byType[r.BloodType] = append(byType[r.BloodType], r)
	}

	now := time.Now()
	var matches []ports.DonorMatch
	var matchHospitals [][]int64 // parallel to matches
	allHospitals := map[int64]bool{}

	for _, donor := range candidates {
		if !eligibility.Evaluate(donor, now).CanDonate {
			continue
		}
		m := ports.DonorMatch{Donor: donor}
		hospitals := map[int64]bool{}
		types := map[domain.BloodType]bool{}
		for _, recipient := range domain.CompatibleRecipients(donor.BloodType) {
			reqs := byType[recipient]
			if len(reqs) == 0 {
				continue
			}
			priority := domain.MatchPriority(donor.BloodType, recipient)
			for _, r := range reqs {
				m.MatchCount++
				if priority == domain.PriorityExact {
					m.PerfectMatches++
				}
				hospitals[r.HospitalRef] = true
				types[r.BloodType] = true
			}
		}
		if m.MatchCount < q.MinMatchCount {
			continue
		}
		m.UniqueHospitals = len(hospitals)
		m.PerfectMatchPercent = float64(m.PerfectMatches) / float64(m.MatchCount) * 100
		for _, bt := range domain.BloodTypes {
			if types[bt] {
				m.MatchedBloodTypes = append(m.MatchedBloodTypes, bt)
			}
		}
		ids := make([]int64, 0, len(hospitals))
		for id := range hospitals {
			ids = append(ids, id)
			allHospitals[id] = true
		}
		matches = append(matches, m)
		matchHospitals = append(matchHospitals, ids)
	}

	if len(matches) == 0 {
		return []ports.DonorMatch{}, nil
	}

	ids := make([]int64, 0, len(allHospitals))
	for id := range allHospitals {
		ids = append(ids, id)
	}
	named, err := s.hospitals.ListHospitals(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		names := make([]string, 0, len(matchHospitals[i]))
		for _, id := range matchHospitals[i] {
			// A hospital deleted between the two reads has no record to name.
			h, ok := named[id]
			if !ok {
				continue
			}
			names = append(names, h.Name)
		}
		sort.Strings(names)
		matches[i].MatchedHospitals = names
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MatchCount != matches[j].MatchCount {
			return matches[i].MatchCount > matches[j].MatchCount
		}
		if matches[i].PerfectMatchPercent != matches[j].PerfectMatchPercent {
			return matches[i].PerfectMatchPercent > matches[j].PerfectMatchPercent
		}
		// Longer-idle donors first; never-donated counts as longest idle.
		li, lj := matches[i].Donor.LastDonationDate, matches[j].Donor.LastDonationDate
		switch {
		case li == nil && lj != nil:
			return true
		case li != nil && lj == nil:
			return false
		case li == nil && lj == nil:
			return false
		}
		return li.Before(*lj)
	})

	if len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	s.logger.Debug("multi-request donor matching done",
		zap.Int("candidates", len(candidates)),
		zap.Int("open_requests", len(open)),
		zap.Int("matches", len(matches)))
	return matches, nil
}
