package eligibility

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

var asOf = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func donorAged(years int) domain.Donor {
	return domain.Donor{
		BloodType:   domain.OPositive,
		DateOfBirth: asOf.AddDate(-years, 0, 0),
		WeightKG:    70,
		HeightCM:    175,
		IsEligible:  true,
	}
}

func daysAgo(n int) *time.Time {
	d := asOf.AddDate(0, 0, -n)
	return &d
}

func TestEvaluateHealthyDonor(t *testing.T) {
	res := Evaluate(donorAged(30), asOf)
	assert.True(t, res.CanDonate)
	assert.True(t, res.AgeEligible)
	assert.True(t, res.TimeEligible)
	assert.True(t, res.DeferralEligible)
	assert.Equal(t, "eligible to donate", res.Reason)
	assert.Nil(t, res.DaysUntilEligible)
}

func TestEvaluateAgeBounds(t *testing.T) {
	assert.False(t, Evaluate(donorAged(17), asOf).CanDonate)
	assert.True(t, Evaluate(donorAged(18), asOf).CanDonate)
	assert.True(t, Evaluate(donorAged(65), asOf).CanDonate)
	assert.False(t, Evaluate(donorAged(66), asOf).CanDonate)

	// A 17 year old is never eligible regardless of other fields.
	minor := donorAged(17)
	minor.LastDonationDate = daysAgo(400)
	res := Evaluate(minor, asOf)
	assert.False(t, res.CanDonate)
	assert.False(t, res.AgeEligible)
	assert.Contains(t, res.Reason, "age 17")
}

func TestEvaluateDayBeforeBirthday(t *testing.T) {
	d := donorAged(30)
	// Turns 18 tomorrow: still 17 today.
	d.DateOfBirth = asOf.AddDate(-18, 0, 1)
	assert.False(t, Evaluate(d, asOf).AgeEligible)
	d.DateOfBirth = asOf.AddDate(-18, 0, 0)
	assert.True(t, Evaluate(d, asOf).AgeEligible)
}

func TestEvaluateDonationInterval(t *testing.T) {
	d := donorAged(40)

	d.LastDonationDate = daysAgo(55)
	res := Evaluate(d, asOf)
	assert.False(t, res.CanDonate)
	assert.False(t, res.TimeEligible)
	require.NotNil(t, res.DaysUntilEligible)
	assert.Equal(t, 1, *res.DaysUntilEligible)

	// Exactly 56 days is eligible.
	d.LastDonationDate = daysAgo(56)
	res = Evaluate(d, asOf)
	assert.True(t, res.CanDonate)
	assert.Nil(t, res.DaysUntilEligible)

	d.LastDonationDate = daysAgo(100)
	assert.True(t, Evaluate(d, asOf).CanDonate)
}

func TestEvaluateDeferral(t *testing.T) {
	d := donorAged(40)
	d.IsEligible = false
	until := asOf.AddDate(0, 0, 14)
	d.IneligibleUntil = &until

	res := Evaluate(d, asOf)
	assert.False(t, res.CanDonate)
	assert.False(t, res.DeferralEligible)
	require.NotNil(t, res.DeferralDaysRemaining)
	assert.Equal(t, 14, *res.DeferralDaysRemaining)
	assert.Equal(t, "donor is deferred from donating", res.Reason)

	// A lapsed deferral is reported with a negative remainder, not cleared.
	lapsed := asOf.AddDate(0, 0, -3)
	d.IneligibleUntil = &lapsed
	res = Evaluate(d, asOf)
	assert.False(t, res.CanDonate)
	require.NotNil(t, res.DeferralDaysRemaining)
	assert.Equal(t, -3, *res.DeferralDaysRemaining)
}

func TestEvaluateReasonPrecedence(t *testing.T) {
	d := donorAged(70)
	d.IsEligible = false
	d.LastDonationDate = daysAgo(10)

	res := Evaluate(d, asOf)
	assert.Contains(t, res.Reason, "age", "age failure outranks the others")

	d = donorAged(40)
	d.IsEligible = false
	d.LastDonationDate = daysAgo(10)
	res = Evaluate(d, asOf)
	assert.Contains(t, res.Reason, "last donation", "recency failure outranks deferral")
}

type fakeDonorRepo struct {
	donors map[int64]domain.Donor
}

func (f *fakeDonorRepo) GetDonor(_ context.Context, id int64) (domain.Donor, error) {
	d, ok := f.donors[id]
	if !ok {
		return domain.Donor{}, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeDonorRepo) ListFlaggedEligible(context.Context, *domain.BloodType) ([]domain.Donor, error) {
	return nil, nil
}

func (f *fakeDonorRepo) SetEligibility(_ context.Context, id int64, eligible bool, until *time.Time, notes *string) (domain.Donor, error) {
	d, ok := f.donors[id]
	if !ok {
		return domain.Donor{}, domain.ErrNotFound
	}
	d.IsEligible = eligible
	d.IneligibleUntil = until
	d.HealthNotes = notes
	f.donors[id] = d
	return d, nil
}

func TestServiceSetEligibility(t *testing.T) {
	repo := &fakeDonorRepo{donors: map[int64]domain.Donor{1: donorAged(30)}}
	svc := New(repo, zap.NewNop())
	ctx := context.Background()

	// Revoking without a date is rejected before any write.
	_, err := svc.SetEligibility(ctx, 1, ports.EligibilityUpdate{Eligible: false})
	assert.ErrorIs(t, err, domain.ErrValidation)

	past := time.Now().AddDate(0, 0, -1)
	_, err = svc.SetEligibility(ctx, 1, ports.EligibilityUpdate{Eligible: false, IneligibleUntil: &past})
	assert.ErrorIs(t, err, domain.ErrValidation)

	future := time.Now().AddDate(0, 1, 0)
	notes := "low hemoglobin"
	donor, err := svc.SetEligibility(ctx, 1, ports.EligibilityUpdate{
		Eligible: false, IneligibleUntil: &future, HealthNotes: &notes,
	})
	require.NoError(t, err)
	assert.False(t, donor.IsEligible)
	require.NotNil(t, donor.IneligibleUntil)

	// Restoring eligibility clears the deferral fields.
	donor, err = svc.SetEligibility(ctx, 1, ports.EligibilityUpdate{Eligible: true, HealthNotes: &notes})
	require.NoError(t, err)
	assert.True(t, donor.IsEligible)
	assert.Nil(t, donor.IneligibleUntil)
	assert.Nil(t, donor.HealthNotes)

	_, err = svc.SetEligibility(ctx, 99, ports.EligibilityUpdate{Eligible: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
