package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func completed(ml int) domain.Donation {
	return domain.Donation{BloodAmountML: ml, BloodType: domain.OPositive, Status: domain.DonationCompleted}
}

func scheduled(ml int) domain.Donation {
	return domain.Donation{BloodAmountML: ml, BloodType: domain.OPositive, Status: domain.DonationScheduled}
}

func TestComputeCountsOnlyCompleted(t *testing.T) {
	req := domain.BloodRequest{AmountNeededML: 1000, Status: domain.RequestApproved}
	res := Compute(req, []domain.Donation{
		completed(300),
		completed(200),
		scheduled(400),
		{BloodAmountML: 500, Status: domain.DonationCanceled},
		{BloodAmountML: 500, Status: domain.DonationRejected},
	}, now)

	assert.Equal(t, 500, res.CollectedML)
	assert.InDelta(t, 50.0, res.FulfillmentPercent, 0.001)
	assert.False(t, res.IsFulfilled)
}

func TestComputeClampAndOverflow(t *testing.T) {
	req := domain.BloodRequest{AmountNeededML: 1000, Status: domain.RequestApproved}
	res := Compute(req, []domain.Donation{completed(1500)}, now)
	assert.Equal(t, 1500, res.CollectedML)
	assert.Equal(t, 100.0, res.FulfillmentPercent)
	assert.True(t, res.IsFulfilled, "over-collection fulfills even while status is approved")
}

func TestComputeZeroNeededGuard(t *testing.T) {
	req := domain.BloodRequest{AmountNeededML: 0}
	res := Compute(req, []domain.Donation{completed(500)}, now)
	assert.Equal(t, 0.0, res.FulfillmentPercent)
}

func TestComputeIdempotent(t *testing.T) {
	req := domain.BloodRequest{AmountNeededML: 900, Status: domain.RequestApproved}
	set := []domain.Donation{completed(300), completed(200)}
	first := Compute(req, set, now)
	second := Compute(req, set, now)
	assert.Equal(t, first, second)
}

func TestComputeFulfilledStatusWins(t *testing.T) {
	req := domain.BloodRequest{AmountNeededML: 1000, Status: domain.RequestFulfilled}
	res := Compute(req, nil, now)
	assert.True(t, res.IsFulfilled)
	assert.Equal(t, 0, res.CollectedML)
}

func TestComputeDaysUntilNeeded(t *testing.T) {
	req := domain.BloodRequest{AmountNeededML: 1000}
	res := Compute(req, nil, now)
	assert.Nil(t, res.DaysUntilNeeded)

	due := now.AddDate(0, 0, 10)
	req.NeededByDate = &due
	res = Compute(req, nil, now)
	require.NotNil(t, res.DaysUntilNeeded)
	assert.Equal(t, 10, *res.DaysUntilNeeded)

	past := now.AddDate(0, 0, -5)
	req.NeededByDate = &past
	res = Compute(req, nil, now)
	require.NotNil(t, res.DaysUntilNeeded)
	assert.Equal(t, 0, *res.DaysUntilNeeded, "overdue clamps to zero")
}

// End-to-end: 1000ml O+ request collects 300+200, then 600 more.
func TestComputeProgressScenario(t *testing.T) {
	req := domain.BloodRequest{BloodType: domain.OPositive, AmountNeededML: 1000, Status: domain.RequestApproved}

	set := []domain.Donation{completed(300), completed(200)}
	res := Compute(req, set, now)
	assert.Equal(t, 500, res.CollectedML)
	assert.InDelta(t, 50.0, res.FulfillmentPercent, 0.001)
	assert.False(t, res.IsFulfilled)

	set = append(set, completed(600))
	res = Compute(req, set, now)
	assert.Equal(t, 100.0, res.FulfillmentPercent)
	assert.True(t, res.IsFulfilled, "fulfilled by volume even though status is approved")
}

// In-memory store emulating the transactional repository semantics.
type fakeStore struct {
	requests  map[int64]domain.BloodRequest
	donations map[int64]domain.Donation
	donors    map[int64]domain.Donor
	events    int
	conflict  bool // force the conditioned write to lose the race
}

func (f *fakeStore) GetRequest(_ context.Context, id int64) (domain.BloodRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return domain.BloodRequest{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) ListOpenRequests(context.Context, ports.OpenRequestFilter) ([]domain.BloodRequest, error) {
	return nil, nil
}

func (f *fakeStore) RequestSummary(context.Context, *int64) (ports.RequestSummary, error) {
	return ports.RequestSummary{}, nil
}

func (f *fakeStore) GetDonation(_ context.Context, id int64) (domain.Donation, error) {
	d, ok := f.donations[id]
	if !ok {
		return domain.Donation{}, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) ListByRequest(_ context.Context, requestID int64) ([]domain.Donation, error) {
	var out []domain.Donation
	for _, d := range f.donations {
		if d.RequestRef != nil && *d.RequestRef == requestID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByDonor(context.Context, int64) ([]domain.Donation, error) { return nil, nil }

func (f *fakeStore) CollectedByRequests(context.Context, []int64) (map[int64]int, error) {
	return nil, nil
}

func (f *fakeStore) RegionDonationStats(context.Context, ports.RegionStatsQuery) ([]ports.RegionStats, error) {
	return nil, nil
}

func (f *fakeStore) TransitionRequest(ctx context.Context, id int64, from, to domain.RequestStatus, _ *string) (domain.BloodRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return domain.BloodRequest{}, domain.ErrNotFound
	}
	if f.conflict || r.Status != from {
		return domain.BloodRequest{}, domain.ErrConflict
	}
	r.Status = to
	f.requests[id] = r
	f.events++
	if to == domain.RequestFulfilled {
		for did, d := range f.donations {
			if d.RequestRef != nil && *d.RequestRef == id && d.Status == domain.DonationScheduled {
				f.completeDonation(did)
			}
		}
	}
	return r, nil
}

func (f *fakeStore) TransitionDonation(_ context.Context, id int64, from, to domain.DonationStatus, _ *string) (domain.Donation, error) {
	d, ok := f.donations[id]
	if !ok {
		return domain.Donation{}, domain.ErrNotFound
	}
	if f.conflict || d.Status != from {
		return domain.Donation{}, domain.ErrConflict
	}
	if to == domain.DonationCompleted {
		f.completeDonation(id)
	} else {
		d.Status = to
		f.donations[id] = d
		f.events++
	}
	return f.donations[id], nil
}

func (f *fakeStore) completeDonation(id int64) {
	d := f.donations[id]
	d.Status = domain.DonationCompleted
	f.donations[id] = d
	f.events++
	donor := f.donors[d.DonorRef]
	if donor.LastDonationDate == nil || d.DonationDate.After(*donor.LastDonationDate) {
		date := d.DonationDate
		donor.LastDonationDate = &date
	}
	donor.TotalDonations++
	f.donors[d.DonorRef] = donor
}

func newFakeStore() *fakeStore {
	ref := int64(1)
	return &fakeStore{
		requests: map[int64]domain.BloodRequest{
			1: {ID: 1, BloodType: domain.OPositive, AmountNeededML: 1000, Status: domain.RequestPending},
		},
		donations: map[int64]domain.Donation{
			10: {ID: 10, DonorRef: 7, RequestRef: &ref, BloodAmountML: 450, Status: domain.DonationScheduled, DonationDate: now},
			11: {ID: 11, DonorRef: 8, RequestRef: &ref, BloodAmountML: 450, Status: domain.DonationScheduled, DonationDate: now},
			12: {ID: 12, DonorRef: 7, BloodAmountML: 450, Status: domain.DonationScheduled, DonationDate: now},
		},
		donors: map[int64]domain.Donor{
			7: {ID: 7, BloodType: domain.OPositive},
			8: {ID: 8, BloodType: domain.OPositive},
		},
	}
}

func TestTransitionRequestRejectsIllegalMove(t *testing.T) {
	store := newFakeStore()
	svc := New(store, store, store, zap.NewNop())

	_, err := svc.TransitionRequest(context.Background(), 1, domain.RequestFulfilled, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pending -> fulfilled must be rejected")
	assert.Equal(t, 0, store.events, "no writes before validation passes")
}

func TestTransitionRequestFulfillCascades(t *testing.T) {
	store := newFakeStore()
	svc := New(store, store, store, zap.NewNop())
	ctx := context.Background()

	_, err := svc.TransitionRequest(ctx, 1, domain.RequestApproved, nil)
	require.NoError(t, err)

	updated, err := svc.TransitionRequest(ctx, 1, domain.RequestFulfilled, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestFulfilled, updated.Status)

	// Both linked scheduled donations completed; the unlinked one untouched.
	assert.Equal(t, domain.DonationCompleted, store.donations[10].Status)
	assert.Equal(t, domain.DonationCompleted, store.donations[11].Status)
	assert.Equal(t, domain.DonationScheduled, store.donations[12].Status)

	// Donors credited once each.
	assert.Equal(t, 1, store.donors[7].TotalDonations)
	assert.Equal(t, 1, store.donors[8].TotalDonations)
	require.NotNil(t, store.donors[7].LastDonationDate)
}

func TestTransitionDonationLifecycle(t *testing.T) {
	store := newFakeStore()
	svc := New(store, store, store, zap.NewNop())
	ctx := context.Background()

	don, err := svc.TransitionDonation(ctx, 12, domain.DonationCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationCompleted, don.Status)
	assert.Equal(t, 1, store.donors[7].TotalDonations)

	// Terminal states refuse further moves.
	_, err = svc.TransitionDonation(ctx, 12, domain.DonationCanceled, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// scheduled -> rejected is not a permitted move.
	_, err = svc.TransitionDonation(ctx, 10, domain.DonationRejected, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.TransitionDonation(ctx, 99, domain.DonationCompleted, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionConflictSurfaces(t *testing.T) {
	store := newFakeStore()
	svc := New(store, store, store, zap.NewNop())

	store.conflict = true
	_, err := svc.TransitionRequest(context.Background(), 1, domain.RequestApproved, nil)
	assert.ErrorIs(t, err, domain.ErrConflict, "losing the race is surfaced, not retried")
	assert.Equal(t, 0, store.events, "losing transitions leave no audit trail")
	assert.Equal(t, domain.RequestPending, store.requests[1].Status)
}
