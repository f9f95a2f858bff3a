package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

// Server exposes the engine over JSON HTTP.
type Server struct {
	eligibility ports.Eligibility
	fulfillment ports.Fulfillment
	shortages   ports.ShortageFinder
	matcher     ports.Matcher
	similarity  ports.SimilarityAnalyzer
	reporting   ports.Reporting
	logger      *zap.Logger
}

func New(
	eligibility ports.Eligibility,
	fulfillment ports.Fulfillment,
	shortages ports.ShortageFinder,
	matcher ports.Matcher,
	similarity ports.SimilarityAnalyzer,
	reporting ports.Reporting,
	logger *zap.Logger,
) *Server {
	return &Server{
		eligibility: eligibility,
		fulfillment: fulfillment,
		shortages:   shortages,
		matcher:     matcher,
		similarity:  similarity,
		reporting:   reporting,
		logger:      logger,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/donors/{id}/eligibility", func(r chi.Router) {
			r.Get("/", s.handleDonorEligibility)
			r.Put("/", s.handleSetEligibility)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/summary", s.handleRequestSummary)
			r.Get("/{id}/fulfillment", s.handleRequestFulfillment)
			r.Post("/{id}/status", s.handleRequestStatus)
		})

		r.Post("/donations/{id}/status", s.handleDonationStatus)
		r.Get("/hospitals/{id}/stats", s.handleHospitalStats)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/shortages", s.handleShortages)
			r.Get("/multi-request-donors", s.handleMultiRequestDonors)
			r.Get("/hospital-blood-patterns", s.handleHospitalBloodPatterns)
			r.Get("/staff-request-patterns", s.handleStaffRequestPatterns)
			r.Get("/doctor-donor-supersets", s.handleDoctorDonorSupersets)
			r.Get("/identical-needs", s.handleIdenticalNeeds)
			r.Get("/region-donation-stats", s.handleRegionDonationStats)
			r.Get("/staff-performance", s.handleStaffPerformance)
			r.Get("/seasonal-blood-patterns", s.handleSeasonalDemand)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDonorEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err = time.Parse("2006-01-02", raw)
		if err != nil {
			s.respondError(w, r, validationf("as_of %q is not a YYYY-MM-DD date", raw))
			return
		}
	}
	result, err := s.eligibility.EvaluateDonor(r.Context(), id, asOf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSetEligibility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var upd ports.EligibilityUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.respondError(w, r, validationf("invalid request body: %v", err))
		return
	}
	donor, err := s.eligibility.SetEligibility(r.Context(), id, upd)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, donor)
}

func (s *Server) handleRequestFulfillment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.fulfillment.RequestFulfillment(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type statusChange struct {
	Status string  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var body statusChange
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, r, validationf("invalid request body: %v", err))
		return
	}
	to, err := domain.ParseRequestStatus(body.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	req, err := s.fulfillment.TransitionRequest(r.Context(), id, to, body.Reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (s *Server) handleDonationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var body statusChange
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, r, validationf("invalid request body: %v", err))
		return
	}
	to, err := domain.ParseDonationStatus(body.Status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	don, err := s.fulfillment.TransitionDonation(r.Context(), id, to, body.Reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, don)
}

func (s *Server) handleRequestSummary(w http.ResponseWriter, r *http.Request) {
	var hospitalID *int64
	if raw := r.URL.Query().Get("hospital_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, r, validationf("hospital_id %q is not an integer", raw))
			return
		}
		hospitalID = &id
	}
	summary, err := s.fulfillment.Summary(r.Context(), hospitalID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHospitalStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	stats, err := s.reporting.HospitalStats(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleShortages(w http.ResponseWriter, r *http.Request) {
	bloodType, err := domain.ParseBloodType(r.URL.Query().Get("blood_type"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q := ports.ShortageQuery{
		BloodType:        bloodType,
		ThresholdPercent: queryFloat(r, "threshold_percent"),
		Limit:            queryInt(r, "limit"),
	}
	rows, err := s.shortages.FindShortages(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMultiRequestDonors(w http.ResponseWriter, r *http.Request) {
	q := ports.MatchQuery{
		MinMatchCount: queryInt(r, "min_match_count"),
		Limit:         queryInt(r, "limit"),
	}
	if raw := r.URL.Query().Get("region"); raw != "" {
		q.Region = &raw
	}
	if raw := r.URL.Query().Get("blood_type"); raw != "" {
		bt, err := domain.ParseBloodType(raw)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		q.BloodType = &bt
	}
	matches, err := s.matcher.FindMultiRequestDonors(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, matches)
}

func (s *Server) handleHospitalBloodPatterns(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.similarity.HospitalBloodPatterns(r.Context(), patternQuery(r, "min_request_count"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleStaffRequestPatterns(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.similarity.StaffRequestPatterns(r.Context(), patternQuery(r, "min_blood_types"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleDoctorDonorSupersets(w http.ResponseWriter, r *http.Request) {
	q := ports.SupersetQuery{
		MinSimilarityPercent: queryFloat(r, "min_similarity_percent"),
		MinDonorCount:        queryInt(r, "min_donor_count"),
		Limit:                queryInt(r, "limit"),
	}
	if raw := r.URL.Query().Get("hospital_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, r, validationf("hospital_id %q is not an integer", raw))
			return
		}
		q.HospitalID = &id
	}
	pairs, err := s.similarity.DoctorDonorSupersets(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleIdenticalNeeds(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("hospital_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, r, validationf("hospital_id %q is not a positive integer", raw))
		return
	}
	q := ports.IdenticalNeedsQuery{
		ReferenceHospitalID: id,
		Days:                queryInt(r, "days"),
		MinShortagePercent:  queryFloat(r, "min_shortage_percent"),
		Limit:               queryInt(r, "limit"),
	}
	rows, err := s.similarity.IdenticalNeeds(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleRegionDonationStats(w http.ResponseWriter, r *http.Request) {
	q := ports.RegionStatsQuery{
		MinDonations: queryInt(r, "min_donations"),
		MinTotalML:   queryInt(r, "min_total_ml"),
		Months:       queryInt(r, "months"),
		Limit:        queryInt(r, "limit"),
	}
	if raw := r.URL.Query().Get("blood_type"); raw != "" {
		bt, err := domain.ParseBloodType(raw)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		q.BloodType = &bt
	}
	stats, err := s.reporting.RegionDonationStats(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStaffPerformance(w http.ResponseWriter, r *http.Request) {
	q := ports.StaffPerformanceQuery{
		MinRequests:        queryInt(r, "min_requests"),
		MinFulfillmentRate: queryFloat(r, "min_fulfillment_rate"),
		Months:             queryInt(r, "months"),
		Limit:              queryInt(r, "limit"),
	}
	rows, err := s.reporting.StaffPerformance(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSeasonalDemand(w http.ResponseWriter, r *http.Request) {
	q := ports.SeasonalQuery{
		MinRequestCount: queryInt(r, "min_request_count"),
		Years:           queryInt(r, "years"),
		Limit:           queryInt(r, "limit"),
	}
	if raw := r.URL.Query().Get("region"); raw != "" {
		q.Region = &raw
	}
	rows, err := s.reporting.SeasonalDemand(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// patternQuery reads the shared similarity knobs; zero means service default.
// The minimum-activity parameter is named per endpoint.
func patternQuery(r *http.Request, minParam string) ports.PatternQuery {
	return ports.PatternQuery{
		MinSimilarityPercent: queryFloat(r, "min_similarity_percent"),
		MinSetSize:           queryInt(r, minParam),
		Months:               queryInt(r, "months"),
		Limit:                queryInt(r, "limit"),
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, validationf("id %q is not a positive integer", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func queryFloat(r *http.Request, name string) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrValidation}, args...)...)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
