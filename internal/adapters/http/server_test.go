package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

type fakeEligibility struct {
	result ports.EligibilityResult
	err    error
	gotID  int64
}

func (f *fakeEligibility) EvaluateDonor(_ context.Context, donorID int64, _ time.Time) (ports.EligibilityResult, error) {
	f.gotID = donorID
	return f.result, f.err
}

func (f *fakeEligibility) SetEligibility(_ context.Context, donorID int64, _ ports.EligibilityUpdate) (domain.Donor, error) {
	f.gotID = donorID
	return domain.Donor{ID: donorID}, f.err
}

type fakeFulfillment struct {
	request domain.BloodRequest
	err     error
	gotTo   domain.RequestStatus
}

func (f *fakeFulfillment) RequestFulfillment(context.Context, int64) (ports.FulfillmentResult, error) {
	pct := 50.0
	return ports.FulfillmentResult{CollectedML: 250, FulfillmentPercent: pct}, f.err
}

func (f *fakeFulfillment) TransitionRequest(_ context.Context, _ int64, to domain.RequestStatus, _ *string) (domain.BloodRequest, error) {
	f.gotTo = to
	return f.request, f.err
}

func (f *fakeFulfillment) TransitionDonation(context.Context, int64, domain.DonationStatus, *string) (domain.Donation, error) {
	return domain.Donation{}, f.err
}

func (f *fakeFulfillment) Summary(context.Context, *int64) (ports.RequestSummary, error) {
	return ports.RequestSummary{TotalRequests: 3}, f.err
}

type fakeShortages struct {
	got ports.ShortageQuery
}

func (f *fakeShortages) FindShortages(_ context.Context, q ports.ShortageQuery) ([]ports.ShortageRow, error) {
	f.got = q
	return []ports.ShortageRow{}, nil
}

type fakeMatcher struct{}

func (fakeMatcher) FindMultiRequestDonors(context.Context, ports.MatchQuery) ([]ports.DonorMatch, error) {
	return nil, nil
}

type fakeSimilarity struct {
	got ports.PatternQuery
}

func (f *fakeSimilarity) HospitalBloodPatterns(_ context.Context, q ports.PatternQuery) ([]ports.SimilarPair, error) {
	f.got = q
	return nil, nil
}

func (f *fakeSimilarity) StaffRequestPatterns(_ context.Context, q ports.PatternQuery) ([]ports.SimilarPair, error) {
	f.got = q
	return nil, nil
}

func (f *fakeSimilarity) DoctorDonorSupersets(context.Context, ports.SupersetQuery) ([]ports.SimilarPair, error) {
	return nil, nil
}

func (f *fakeSimilarity) IdenticalNeeds(context.Context, ports.IdenticalNeedsQuery) ([]ports.IdenticalNeedsRow, error) {
	return nil, nil
}

type fakeReporting struct {
	gotPerf     ports.StaffPerformanceQuery
	gotSeasonal ports.SeasonalQuery
}

func (*fakeReporting) HospitalStats(context.Context, int64) (ports.HospitalStats, error) {
	return ports.HospitalStats{}, nil
}

func (*fakeReporting) RegionDonationStats(context.Context, ports.RegionStatsQuery) ([]ports.RegionStats, error) {
	return nil, nil
}

func (f *fakeReporting) StaffPerformance(_ context.Context, q ports.StaffPerformanceQuery) ([]ports.StaffPerformanceRow, error) {
	f.gotPerf = q
	return nil, nil
}

func (f *fakeReporting) SeasonalDemand(_ context.Context, q ports.SeasonalQuery) ([]ports.SeasonalPatternRow, error) {
	f.gotSeasonal = q
	return nil, nil
}

type testEnv struct {
	eligibility *fakeEligibility
	fulfillment *fakeFulfillment
	shortages   *fakeShortages
	similarity  *fakeSimilarity
	reporting   *fakeReporting
	router      http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		eligibility: &fakeEligibility{},
		fulfillment: &fakeFulfillment{},
		shortages:   &fakeShortages{},
		similarity:  &fakeSimilarity{},
		reporting:   &fakeReporting{},
	}
	srv := New(env.eligibility, env.fulfillment, env.shortages, fakeMatcher{}, env.similarity, env.reporting, zap.NewNop())
	env.router = srv.Routes()
	return env
}

func (env *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestDonorEligibility(t *testing.T) {
	env := newTestEnv()
	env.eligibility.result = ports.EligibilityResult{CanDonate: true, AgeEligible: true, Reason: "eligible to donate"}

	rec := env.do(t, http.MethodGet, "/api/donors/42/eligibility", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), env.eligibility.gotID)

	var result ports.EligibilityResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.CanDonate)
	assert.Equal(t, "eligible to donate", result.Reason)
}

func TestDonorEligibilityBadID(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/donors/abc/eligibility", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDonorEligibilityNotFound(t *testing.T) {
	env := newTestEnv()
	env.eligibility.err = fmt.Errorf("%w: donor 42", domain.ErrNotFound)

	rec := env.do(t, http.MethodGet, "/api/donors/42/eligibility", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDonorEligibilityBadAsOf(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/donors/42/eligibility?as_of=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestStatusTransition(t *testing.T) {
	env := newTestEnv()
	env.fulfillment.request = domain.BloodRequest{ID: 5, Status: domain.RequestApproved}

	rec := env.do(t, http.MethodPost, "/api/requests/5/status", `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.RequestApproved, env.fulfillment.gotTo)
}

func TestRequestStatusUnknownValue(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/requests/5/status", `{"status":"open"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestStatusInvalidTransition(t *testing.T) {
	env := newTestEnv()
	env.fulfillment.err = fmt.Errorf("%w: request 5 pending -> fulfilled", domain.ErrInvalidTransition)

	rec := env.do(t, http.MethodPost, "/api/requests/5/status", `{"status":"fulfilled"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequestStatusConflict(t *testing.T) {
	env := newTestEnv()
	env.fulfillment.err = fmt.Errorf("%w: blood request 5 changed status concurrently", domain.ErrConflict)

	rec := env.do(t, http.MethodPost, "/api/requests/5/status", `{"status":"approved"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestShortagesRequiresBloodType(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/analytics/shortages", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShortagesQueryParsing(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/analytics/shortages?blood_type=O-&threshold_percent=40&limit=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.ONegative, env.shortages.got.BloodType)
	assert.Equal(t, 40.0, env.shortages.got.ThresholdPercent)
	assert.Equal(t, 10, env.shortages.got.Limit)
}

func TestIdenticalNeedsRequiresHospitalID(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/analytics/identical-needs", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/analytics/identical-needs?hospital_id=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaffPerformanceQueryParsing(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/analytics/staff-performance?min_requests=3&min_fulfillment_rate=75&months=6&limit=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, env.reporting.gotPerf.MinRequests)
	assert.Equal(t, 75.0, env.reporting.gotPerf.MinFulfillmentRate)
	assert.Equal(t, 6, env.reporting.gotPerf.Months)
	assert.Equal(t, 5, env.reporting.gotPerf.Limit)
}

func TestSeasonalBloodPatternsQueryParsing(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/analytics/seasonal-blood-patterns?min_request_count=4&years=1&region=west", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, env.reporting.gotSeasonal.MinRequestCount)
	assert.Equal(t, 1, env.reporting.gotSeasonal.Years)
	require.NotNil(t, env.reporting.gotSeasonal.Region)
	assert.Equal(t, "west", *env.reporting.gotSeasonal.Region)
	assert.Zero(t, env.reporting.gotSeasonal.Limit)
}

func TestPatternQueryDefaultsToZero(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/analytics/hospital-blood-patterns?min_similarity_percent=80&months=6", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 80.0, env.similarity.got.MinSimilarityPercent)
	assert.Equal(t, 6, env.similarity.got.Months)
	assert.Zero(t, env.similarity.got.MinSetSize)
	assert.Zero(t, env.similarity.got.Limit)
}
